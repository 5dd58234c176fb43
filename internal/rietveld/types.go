package rietveld

// Issue is a code review issue.
type Issue struct {
	Issue       int       `json:"issue"`
	Owner       string    `json:"owner_email"`
	Description string    `json:"description"`
	Reviewers   []string  `json:"reviewers"`
	Messages    []Message `json:"messages"`
	BaseURL     string    `json:"base_url"`
	Patchsets   []int     `json:"patchsets"`
	Closed      bool      `json:"closed"`
	Commit      bool      `json:"commit"`
	Subject     string    `json:"subject"`
}

// LatestPatchset returns the highest patchset id of the issue, 0 if it has
// none.
func (i *Issue) LatestPatchset() int {
	var res int

	for _, ps := range i.Patchsets {
		if ps > res {
			res = ps
		}
	}

	return res
}

type Message struct {
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	Approval bool   `json:"approval"`
}

// TryJobResult references a build that was run for a patchset.
type TryJobResult struct {
	Key         string `json:"key"`
	Builder     string `json:"builder"`
	BuildNumber int    `json:"buildnumber"`
}

type patchsetInfo struct {
	Issue         int            `json:"issue"`
	Patchset      int            `json:"patchset"`
	TryJobResults []TryJobResult `json:"try_job_results"`
}
