package tryjob

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/set"
)

const (
	TypeTryJobSteps                  = "TryJobSteps"
	TypeTryJobTriggeredSteps         = "TryJobTriggeredSteps"
	TypeTryJobTriggeredOrNormalSteps = "TryJobTriggeredOrNormalSteps"
)

// StepVerifier is a policy that defines which steps must pass on which
// builder.
// All methods are pure functions of their arguments, they never modify the
// passed jobs.
type StepVerifier interface {
	// NeedToTrigger returns the builder and the steps that must be
	// triggered on it.
	NeedToTrigger(jobs Jobs, now time.Time) (string, set.Set[string])
	// WaitingFor returns the builder and the steps that did not pass yet.
	WaitingFor(jobs Jobs) (string, set.Set[string])
	// TriggeredSteps returns the builder and the steps that are started
	// as a side effect of running steps on builder. An empty builder name
	// is returned when nothing is triggered.
	TriggeredSteps(builder string, steps set.Set[string]) (string, set.Set[string])
	// UnmetPrereqs returns the prerequisite steps that did not pass yet.
	UnmetPrereqs(jobs Jobs) set.Set[string]
	PersistentType() string
}

// TryJobSteps requires that Steps pass on Builder.
// If PrereqBuilder is set, nothing is triggered before PrereqTests passed on
// it.
type TryJobSteps struct {
	Builder       string   `json:"builder_name" toml:"builder"`
	Steps         []string `json:"steps" toml:"steps"`
	PrereqBuilder string   `json:"prereq_builder,omitempty" toml:"prereq_builder"`
	PrereqTests   []string `json:"prereq_tests,omitempty" toml:"prereq_tests"`
}

func (s *TryJobSteps) NeedToTrigger(jobs Jobs, _ time.Time) (string, set.Set[string]) {
	if !s.UnmetPrereqs(jobs).IsEmpty() {
		return s.Builder, set.New[string]()
	}

	toTrigger := set.From(s.Steps)

	for _, j := range jobs {
		if j.Builder != s.Builder {
			continue
		}

		toTrigger = toTrigger.Difference(j.passed())

		if j.IsCompleted() {
			continue
		}

		// a running job without requested steps runs everything
		if len(j.RequestedSteps) == 0 {
			return s.Builder, set.New[string]()
		}

		// failures of a running job are retried when it completed
		toTrigger = toTrigger.Difference(j.requested())
	}

	return s.Builder, toTrigger
}

func (s *TryJobSteps) WaitingFor(jobs Jobs) (string, set.Set[string]) {
	return s.Builder, set.From(s.Steps).Difference(jobs.passedOn(s.Builder))
}

func (*TryJobSteps) TriggeredSteps(string, set.Set[string]) (string, set.Set[string]) {
	return "", set.New[string]()
}

func (s *TryJobSteps) UnmetPrereqs(jobs Jobs) set.Set[string] {
	if s.PrereqBuilder == "" {
		return set.New[string]()
	}

	return set.From(s.PrereqTests).Difference(jobs.passedOn(s.PrereqBuilder))
}

func (*TryJobSteps) PersistentType() string {
	return TypeTryJobSteps
}

func (s *TryJobSteps) Validate() error {
	if s.Builder == "" {
		return fmt.Errorf("%s: builder is empty", TypeTryJobSteps)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("%s: no steps defined for builder %s", TypeTryJobSteps, s.Builder)
	}

	if s.PrereqBuilder != "" && len(s.PrereqTests) == 0 {
		return fmt.Errorf("%s: prereq builder %s has no prereq tests", TypeTryJobSteps, s.PrereqBuilder)
	}

	return nil
}

func (s *TryJobSteps) MarshalJSON() ([]byte, error) {
	type plain TryJobSteps
	return persist.Marshal(TypeTryJobSteps, (*plain)(s))
}

func (s *TryJobSteps) UnmarshalJSON(b []byte) error {
	type plain TryJobSteps
	return persist.Unmarshal(b, TypeTryJobSteps, (*plain)(s))
}

// decodeStepVerifier decodes a persisted StepVerifier by its type tag.
func decodeStepVerifier(data json.RawMessage) (StepVerifier, error) {
	typ, err := persist.PeekType(data)
	if err != nil {
		return nil, err
	}

	var res StepVerifier

	switch typ {
	case TypeTryJobSteps:
		res = &TryJobSteps{}
	case TypeTryJobTriggeredSteps:
		res = &TryJobTriggeredSteps{}
	case TypeTryJobTriggeredOrNormalSteps:
		res = &TryJobTriggeredOrNormalSteps{}
	default:
		return nil, fmt.Errorf("unsupported step verifier type: %q", typ)
	}

	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("decoding %s failed: %w", typ, err)
	}

	return res, nil
}
