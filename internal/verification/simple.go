package verification

import "github.com/simplesurance/commitqueue/internal/persist"

const TypeSimple = "SimpleVerification"

// Simple is a Record for verifiers that only need to store their result.
type Simple struct {
	Result  State  `json:"state"`
	Message string `json:"error_message,omitempty"`
	Reason  string `json:"why_not,omitempty"`
}

func NewSucceeded() *Simple {
	return &Simple{Result: Succeeded}
}

func NewFailed(errMsg string) *Simple {
	return &Simple{Result: Failed, Message: errMsg}
}

func NewIgnored(reason string) *Simple {
	return &Simple{Result: Ignored, Reason: reason}
}

func (s *Simple) State() State {
	return s.Result
}

func (s *Simple) WhyNot() string {
	if s.Result == Succeeded {
		return ""
	}

	if s.Reason != "" {
		return s.Reason
	}

	return s.Message
}

func (*Simple) Postpone() bool {
	return false
}

func (s *Simple) ErrorMessage() string {
	return s.Message
}

func (*Simple) PersistentType() string {
	return TypeSimple
}

func (s *Simple) MarshalJSON() ([]byte, error) {
	type plain Simple
	return persist.Marshal(TypeSimple, (*plain)(s))
}

func (s *Simple) UnmarshalJSON(b []byte) error {
	type plain Simple
	return persist.Unmarshal(b, TypeSimple, (*plain)(s))
}
