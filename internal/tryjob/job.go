package tryjob

import (
	"time"

	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/set"
)

const (
	TypeTryJob        = "RietveldTryJob"
	TypeTryJobPending = "RietveldTryJobPending"
)

// TryJob is a build that was observed on the grid.
type TryJob struct {
	Builder  string `json:"builder"`
	Build    int    `json:"build"`
	Revision string `json:"revision"`
	// RequestedSteps are the steps that were requested when the job was
	// triggered. It is empty for jobs that were not triggered by the
	// commit queue, they are assumed to run all steps.
	RequestedSteps []string  `json:"requested_steps"`
	Started        time.Time `json:"started"`
	// Completed is the zero value while the build is running.
	Completed   time.Time `json:"completed"`
	InitTime    time.Time `json:"init_time"`
	StepsPassed []string  `json:"steps_passed"`
	StepsFailed []string  `json:"steps_failed"`
	Clobber     bool      `json:"clobber"`
	Tries       int       `json:"tries"`
	// ParentKey is the key of the job that triggered this job, it is empty
	// for jobs that were not triggered by another job.
	ParentKey string `json:"parent_key,omitempty"`
}

func (j *TryJob) IsCompleted() bool {
	return !j.Completed.IsZero()
}

func (j *TryJob) passed() set.Set[string] {
	return set.From(j.StepsPassed)
}

func (j *TryJob) failed() set.Set[string] {
	return set.From(j.StepsFailed)
}

func (j *TryJob) requested() set.Set[string] {
	return set.From(j.RequestedSteps)
}

func (j *TryJob) MarshalJSON() ([]byte, error) {
	type plain TryJob
	return persist.Marshal(TypeTryJob, (*plain)(j))
}

func (j *TryJob) UnmarshalJSON(b []byte) error {
	type plain TryJob
	return persist.Unmarshal(b, TypeTryJob, (*plain)(j))
}

// TryJobPending is a trigger request that was sent but was not matched to
// an observed build yet.
type TryJobPending struct {
	Builder        string    `json:"builder"`
	Revision       string    `json:"revision"`
	RequestedSteps []string  `json:"requested_steps"`
	Clobber        bool      `json:"clobber"`
	Tries          int       `json:"tries"`
	InitTime       time.Time `json:"init_time"`
}

func (p *TryJobPending) MarshalJSON() ([]byte, error) {
	type plain TryJobPending
	return persist.Marshal(TypeTryJobPending, (*plain)(p))
}

func (p *TryJobPending) UnmarshalJSON(b []byte) error {
	type plain TryJobPending
	return persist.Unmarshal(b, TypeTryJobPending, (*plain)(p))
}

// Jobs maps job keys to the observed jobs.
type Jobs map[string]*TryJob

// Parent returns the job that triggered j.
func (jobs Jobs) Parent(j *TryJob) (*TryJob, bool) {
	if j.ParentKey == "" {
		return nil, false
	}

	p, exist := jobs[j.ParentKey]
	return p, exist
}

// KeyOf returns the key of the job for a build.
func (jobs Jobs) KeyOf(builder string, build int) (string, bool) {
	for k, j := range jobs {
		if j.Builder == builder && j.Build == build {
			return k, true
		}
	}

	return "", false
}

// passedOn returns the union of the steps that passed on builder.
func (jobs Jobs) passedOn(builder string) set.Set[string] {
	res := set.New[string]()

	for _, j := range jobs {
		if j.Builder == builder {
			res = res.Union(j.passed())
		}
	}

	return res
}

// children returns the jobs on builder that were triggered by the job with
// the key parentKey.
func (jobs Jobs) children(parentKey, builder string) []*TryJob {
	var res []*TryJob

	for _, j := range jobs {
		if j.Builder == builder && j.ParentKey == parentKey {
			res = append(res, j)
		}
	}

	return res
}
