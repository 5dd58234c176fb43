package tryjob

import (
	"fmt"
	"time"

	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/set"
)

// DefaultPropagationDelay is how long a completed trigger job is assumed
// to still start its triggered job.
const DefaultPropagationDelay = 3 * time.Hour

// TryJobTriggeredSteps requires steps on a builder that is only started by
// another builder.
// Steps maps the steps of Builder to the steps on TriggerName that start
// them. Only jobs on Builder whose parent is a job on TriggerName are
// considered.
type TryJobTriggeredSteps struct {
	Builder     string            `json:"builder_name" toml:"builder"`
	TriggerName string            `json:"trigger_name" toml:"trigger"`
	Steps       map[string]string `json:"steps" toml:"steps"`
	// PropagationDelay is the time after which a completed trigger job
	// that did not start its triggered job is not waited for anymore.
	// When zero, DefaultPropagationDelay is used.
	PropagationDelay time.Duration `json:"-" toml:"-"`
}

func (s *TryJobTriggeredSteps) propagationDelay() time.Duration {
	if s.PropagationDelay == 0 {
		return DefaultPropagationDelay
	}

	return s.PropagationDelay
}

func (s *TryJobTriggeredSteps) triggeredStepNames() set.Set[string] {
	res := make(set.Set[string], len(s.Steps))
	for triggered := range s.Steps {
		res.Add(triggered)
	}

	return res
}

// triggerStepsOf maps triggered steps to the trigger steps starting them.
func (s *TryJobTriggeredSteps) triggerStepsOf(triggered set.Set[string]) set.Set[string] {
	res := set.New[string]()

	for step := range triggered {
		if trigger, exist := s.Steps[step]; exist {
			res.Add(trigger)
		}
	}

	return res
}

// isTriggered returns true if j runs on Builder and was started by a job on
// TriggerName.
func (s *TryJobTriggeredSteps) isTriggered(jobs Jobs, j *TryJob) bool {
	if j.Builder != s.Builder {
		return false
	}

	parent, exist := jobs.Parent(j)
	return exist && parent.Builder == s.TriggerName
}

func (s *TryJobTriggeredSteps) WaitingFor(jobs Jobs) (string, set.Set[string]) {
	passed := set.New[string]()

	for _, j := range jobs {
		if s.isTriggered(jobs, j) {
			passed = passed.Union(j.passed())
		}
	}

	return s.Builder, s.triggeredStepNames().Difference(passed)
}

func (s *TryJobTriggeredSteps) NeedToTrigger(jobs Jobs, now time.Time) (string, set.Set[string]) {
	_, outstanding := s.WaitingFor(jobs)
	return s.TriggerName, s.triggerStepsFor(jobs, now, outstanding)
}

// triggerStepsFor returns the trigger steps that must run to start the
// outstanding triggered steps.
// Trigger steps are not returned when a running trigger job requested them,
// when a completed trigger job passed them less than the propagation delay
// ago and did not start a triggered job yet, or when a triggered job that
// covers them is still running.
func (s *TryJobTriggeredSteps) triggerStepsFor(jobs Jobs, now time.Time, outstanding set.Set[string]) set.Set[string] {
	toTrigger := s.triggerStepsOf(outstanding)

	for key, j := range jobs {
		if j.Builder != s.TriggerName {
			continue
		}

		if !j.IsCompleted() {
			if len(j.RequestedSteps) == 0 {
				return set.New[string]()
			}

			toTrigger = toTrigger.Difference(j.requested())
			continue
		}

		children := jobs.children(key, s.Builder)
		if len(children) == 0 {
			if now.Sub(j.Completed) < s.propagationDelay() {
				toTrigger = toTrigger.Difference(j.passed())
			}

			continue
		}

		for _, child := range children {
			if child.IsCompleted() {
				continue
			}

			covered := child.requested()
			if covered.IsEmpty() {
				covered = s.triggeredStepNames()
			}

			toTrigger = toTrigger.Difference(s.triggerStepsOf(covered))
		}
	}

	return toTrigger
}

func (s *TryJobTriggeredSteps) TriggeredSteps(builder string, steps set.Set[string]) (string, set.Set[string]) {
	if builder != s.TriggerName {
		return "", set.New[string]()
	}

	res := set.New[string]()
	for triggered, trigger := range s.Steps {
		if steps.Contains(trigger) {
			res.Add(triggered)
		}
	}

	return s.Builder, res
}

func (*TryJobTriggeredSteps) UnmetPrereqs(Jobs) set.Set[string] {
	return set.New[string]()
}

func (*TryJobTriggeredSteps) PersistentType() string {
	return TypeTryJobTriggeredSteps
}

func (s *TryJobTriggeredSteps) Validate() error {
	if s.Builder == "" || s.TriggerName == "" {
		return fmt.Errorf("%s: builder and trigger must be set", TypeTryJobTriggeredSteps)
	}

	if s.Builder == s.TriggerName {
		return fmt.Errorf("%s: builder %s can not trigger itself", TypeTryJobTriggeredSteps, s.Builder)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("%s: no steps defined for builder %s", TypeTryJobTriggeredSteps, s.Builder)
	}

	return nil
}

func (s *TryJobTriggeredSteps) MarshalJSON() ([]byte, error) {
	type plain TryJobTriggeredSteps
	return persist.Marshal(TypeTryJobTriggeredSteps, (*plain)(s))
}

func (s *TryJobTriggeredSteps) UnmarshalJSON(b []byte) error {
	type plain TryJobTriggeredSteps
	return persist.Unmarshal(b, TypeTryJobTriggeredSteps, (*plain)(s))
}

// TryJobTriggeredOrNormalSteps requires steps that can either run on the
// triggered builder or directly on the trigger builder.
// TriggerBotSteps always run on the trigger builder. When UseTriggeredBot is
// false, the steps of Steps are requested on the trigger builder under
// their own name instead of being triggered.
// Steps that passed directly on the trigger builder are accepted in both
// modes.
type TryJobTriggeredOrNormalSteps struct {
	Builder          string            `json:"builder_name" toml:"builder"`
	TriggerName      string            `json:"trigger_name" toml:"trigger"`
	Steps            map[string]string `json:"steps" toml:"steps"`
	TriggerBotSteps  []string          `json:"trigger_bot_steps" toml:"trigger_bot_steps"`
	UseTriggeredBot  bool              `json:"use_triggered_bot" toml:"use_triggered_bot"`
	PropagationDelay time.Duration     `json:"-" toml:"-"`
}

func (s *TryJobTriggeredOrNormalSteps) triggered() *TryJobTriggeredSteps {
	return &TryJobTriggeredSteps{
		Builder:          s.Builder,
		TriggerName:      s.TriggerName,
		Steps:            s.Steps,
		PropagationDelay: s.PropagationDelay,
	}
}

// outstanding returns the steps of Steps that neither passed on a
// triggered job nor directly on the trigger builder.
func (s *TryJobTriggeredOrNormalSteps) outstanding(jobs Jobs) set.Set[string] {
	_, waiting := s.triggered().WaitingFor(jobs)
	return waiting.Difference(jobs.passedOn(s.TriggerName))
}

func (s *TryJobTriggeredOrNormalSteps) botSteps(jobs Jobs) set.Set[string] {
	return set.From(s.TriggerBotSteps).Difference(jobs.passedOn(s.TriggerName))
}

// WaitingFor returns all outstanding steps under the name of the trigger
// builder.
func (s *TryJobTriggeredOrNormalSteps) WaitingFor(jobs Jobs) (string, set.Set[string]) {
	return s.TriggerName, s.outstanding(jobs).Union(s.botSteps(jobs))
}

func (s *TryJobTriggeredOrNormalSteps) NeedToTrigger(jobs Jobs, now time.Time) (string, set.Set[string]) {
	var toTrigger set.Set[string]

	outstanding := s.outstanding(jobs)
	if s.UseTriggeredBot {
		toTrigger = s.triggered().triggerStepsFor(jobs, now, outstanding)
	} else {
		toTrigger = outstanding
	}

	toTrigger = toTrigger.Union(s.botSteps(jobs))

	for _, j := range jobs {
		if j.Builder != s.TriggerName || j.IsCompleted() {
			continue
		}

		if len(j.RequestedSteps) == 0 {
			return s.TriggerName, set.New[string]()
		}

		toTrigger = toTrigger.Difference(j.requested())
	}

	return s.TriggerName, toTrigger
}

func (s *TryJobTriggeredOrNormalSteps) TriggeredSteps(builder string, steps set.Set[string]) (string, set.Set[string]) {
	if !s.UseTriggeredBot {
		return "", set.New[string]()
	}

	return s.triggered().TriggeredSteps(builder, steps)
}

func (*TryJobTriggeredOrNormalSteps) UnmetPrereqs(Jobs) set.Set[string] {
	return set.New[string]()
}

func (*TryJobTriggeredOrNormalSteps) PersistentType() string {
	return TypeTryJobTriggeredOrNormalSteps
}

func (s *TryJobTriggeredOrNormalSteps) Validate() error {
	if err := s.triggered().Validate(); err != nil {
		return fmt.Errorf("%s: %w", TypeTryJobTriggeredOrNormalSteps, err)
	}

	return nil
}

func (s *TryJobTriggeredOrNormalSteps) MarshalJSON() ([]byte, error) {
	type plain TryJobTriggeredOrNormalSteps
	return persist.Marshal(TypeTryJobTriggeredOrNormalSteps, (*plain)(s))
}

func (s *TryJobTriggeredOrNormalSteps) UnmarshalJSON(b []byte) error {
	type plain TryJobTriggeredOrNormalSteps
	return persist.Unmarshal(b, TypeTryJobTriggeredOrNormalSteps, (*plain)(s))
}

// WithPropagationDelay returns a copy of verifiers with the propagation
// delay of the triggered policies set to d.
func WithPropagationDelay(verifiers []StepVerifier, d time.Duration) []StepVerifier {
	res := make([]StepVerifier, 0, len(verifiers))

	for _, v := range verifiers {
		switch sv := v.(type) {
		case *TryJobTriggeredSteps:
			c := *sv
			c.PropagationDelay = d
			res = append(res, &c)
		case *TryJobTriggeredOrNormalSteps:
			c := *sv
			c.PropagationDelay = d
			res = append(res, &c)
		default:
			res = append(res, v)
		}
	}

	return res
}
