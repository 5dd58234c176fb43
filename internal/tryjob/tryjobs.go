package tryjob

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/set"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const TypeTryJobs = "RietveldTryJobs"

// TryJobs is the verification record of the try job verifier for one
// commit.
type TryJobs struct {
	// StepVerifiers are the policies that were configured when the
	// record was last updated.
	StepVerifiers []StepVerifier   `json:"step_verifiers"`
	TryJobs       Jobs             `json:"try_jobs"`
	Pendings      []*TryJobPending `json:"pendings"`
	// TimedOut contains pendings that were never matched to a build. They
	// are kept to count their tries.
	TimedOut   []*TryJobPending `json:"timed_out,omitempty"`
	Irrelevant []string         `json:"irrelevant"`
	Skipped    bool             `json:"skipped"`
	Error      string           `json:"error_message,omitempty"`
}

func newTryJobs(verifiers []StepVerifier) *TryJobs {
	return &TryJobs{
		StepVerifiers: verifiers,
		TryJobs:       Jobs{},
	}
}

func (t *TryJobs) State() verification.State {
	if t.Skipped {
		return verification.Succeeded
	}

	if t.Error != "" {
		return verification.Failed
	}

	if len(t.WaitingFor()) == 0 {
		return verification.Succeeded
	}

	return verification.Processing
}

// WaitingFor returns per builder the steps that did not pass yet.
// Builders without outstanding steps are omitted.
func (t *TryJobs) WaitingFor() map[string]set.Set[string] {
	res := map[string]set.Set[string]{}

	for _, v := range t.StepVerifiers {
		builder, steps := v.WaitingFor(t.TryJobs)
		if steps.IsEmpty() {
			continue
		}

		res[builder] = steps.Union(res[builder])
	}

	return res
}

func (t *TryJobs) WhyNot() string {
	if t.State() != verification.Processing {
		return ""
	}

	waiting := t.WaitingFor()

	builders := make([]string, 0, len(waiting))
	for b := range waiting {
		builders = append(builders, b)
	}
	sort.Strings(builders)

	var sb strings.Builder
	sb.WriteString("Waiting for the following jobs:\n")

	for _, b := range builders {
		fmt.Fprintf(&sb, "  %s: %s\n", b, strings.Join(set.Sorted(waiting[b]), ","))
	}

	return sb.String()
}

func (*TryJobs) Postpone() bool {
	return false
}

func (t *TryJobs) ErrorMessage() string {
	return t.Error
}

func (*TryJobs) PersistentType() string {
	return TypeTryJobs
}

func (t *TryJobs) isIrrelevant(key string) bool {
	for _, k := range t.Irrelevant {
		if k == key {
			return true
		}
	}

	return false
}

// popPending removes and returns the oldest pending for builder that can
// have started build. The pending must be for the revision the build ran
// against and must not be younger than the build.
func (t *TryJobs) popPending(builder, revision string, started time.Time) (*TryJobPending, bool) {
	idx := -1

	for i, p := range t.Pendings {
		if p.Builder != builder || !sameRevision(p.Revision, revision) {
			continue
		}

		if !started.IsZero() && started.Before(p.InitTime) {
			continue
		}

		if idx == -1 || p.InitTime.Before(t.Pendings[idx].InitTime) {
			idx = i
		}
	}

	if idx == -1 {
		return nil, false
	}

	p := t.Pendings[idx]
	t.Pendings = append(t.Pendings[:idx], t.Pendings[idx+1:]...)

	return p, true
}

// minRevisionPrefixLen is the minimal length of an abbreviated revision.
const minRevisionPrefixLen = 7

// sameRevision returns true if a and b are equal or one is an abbreviation
// of the other. A pending without a revision was requested for the latest
// one and matches every revision.
func sameRevision(requested, built string) bool {
	if requested == "" || requested == built {
		return true
	}

	if len(requested) < minRevisionPrefixLen || len(built) < minRevisionPrefixLen {
		return false
	}

	return strings.HasPrefix(requested, built) || strings.HasPrefix(built, requested)
}

// pendingCovers returns the steps on builder that are requested by pendings.
// all is true if a pending requested all steps.
func (t *TryJobs) pendingCovers(builder string) (steps set.Set[string], all bool) {
	steps = set.New[string]()

	for _, p := range t.Pendings {
		if p.Builder != builder {
			continue
		}

		if len(p.RequestedSteps) == 0 {
			return steps, true
		}

		steps.Add(p.RequestedSteps...)
	}

	return steps, false
}

// lineageTries returns the highest tries value of all jobs and pendings on
// builder whose requested steps overlap with steps or that requested all
// steps.
func (t *TryJobs) lineageTries(builder string, steps set.Set[string]) int {
	var res int

	inLineage := func(b string, requested []string) bool {
		if b != builder {
			return false
		}

		if len(requested) == 0 {
			return true
		}

		return !set.From(requested).Intersection(steps).IsEmpty()
	}

	for _, j := range t.TryJobs {
		if inLineage(j.Builder, j.RequestedSteps) && j.Tries > res {
			res = j.Tries
		}
	}

	for _, pendings := range [][]*TryJobPending{t.Pendings, t.TimedOut} {
		for _, p := range pendings {
			if inLineage(p.Builder, p.RequestedSteps) && p.Tries > res {
				res = p.Tries
			}
		}
	}

	return res
}

// lastFailedJob returns the job with the highest build number on builder
// that failed one of steps. If none failed one of the steps, the job with
// the highest build number on builder is returned.
func (t *TryJobs) lastFailedJob(builder string, steps set.Set[string]) (*TryJob, bool) {
	var last, lastFailed *TryJob

	for _, j := range t.TryJobs {
		if j.Builder != builder {
			continue
		}

		if last == nil || j.Build > last.Build {
			last = j
		}

		if j.failed().Intersection(steps).IsEmpty() {
			continue
		}

		if lastFailed == nil || j.Build > lastFailed.Build {
			lastFailed = j
		}
	}

	if lastFailed != nil {
		return lastFailed, true
	}

	return last, last != nil
}

func (t *TryJobs) MarshalJSON() ([]byte, error) {
	type plain TryJobs
	return persist.Marshal(TypeTryJobs, (*plain)(t))
}

func (t *TryJobs) UnmarshalJSON(b []byte) error {
	var aux struct {
		StepVerifiers []json.RawMessage `json:"step_verifiers"`
		TryJobs       Jobs              `json:"try_jobs"`
		Pendings      []*TryJobPending  `json:"pendings"`
		TimedOut      []*TryJobPending  `json:"timed_out"`
		Irrelevant    []string          `json:"irrelevant"`
		Skipped       bool              `json:"skipped"`
		Error         string            `json:"error_message"`
	}

	if err := persist.Unmarshal(b, TypeTryJobs, &aux); err != nil {
		return err
	}

	verifiers := make([]StepVerifier, 0, len(aux.StepVerifiers))
	for _, raw := range aux.StepVerifiers {
		v, err := decodeStepVerifier(raw)
		if err != nil {
			return err
		}

		verifiers = append(verifiers, v)
	}

	if aux.TryJobs == nil {
		aux.TryJobs = Jobs{}
	}

	*t = TryJobs{
		StepVerifiers: verifiers,
		TryJobs:       aux.TryJobs,
		Pendings:      aux.Pendings,
		TimedOut:      aux.TimedOut,
		Irrelevant:    aux.Irrelevant,
		Skipped:       aux.Skipped,
		Error:         aux.Error,
	}

	return nil
}

// Decode decodes a persisted TryJobs record.
func Decode(data []byte) (*TryJobs, error) {
	var res TryJobs

	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}

	return &res, nil
}
