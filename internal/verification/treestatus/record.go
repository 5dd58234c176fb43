package treestatus

import (
	"time"

	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const TypeRecord = "TreeStatusVerification"

// Record is the tree status verification of a commit.
type Record struct {
	Open bool `json:"open"`
	// TreeMessage is the message of the tree status when it was last
	// checked.
	TreeMessage string `json:"tree_message,omitempty"`
	// ClosedSince is the time when the tree was first seen closed. It is
	// zero while the tree is open.
	ClosedSince time.Time `json:"closed_since"`
	Failure     string    `json:"error_message,omitempty"`
}

func (r *Record) State() verification.State {
	if r.Failure != "" {
		return verification.Failed
	}

	return verification.Succeeded
}

func (r *Record) WhyNot() string {
	if r.Open || r.Failure != "" {
		return ""
	}

	return "Tree is currently not open: " + r.TreeMessage
}

func (r *Record) Postpone() bool {
	return !r.Open && r.Failure == ""
}

func (r *Record) ErrorMessage() string {
	return r.Failure
}

func (*Record) PersistentType() string {
	return TypeRecord
}

func (r *Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return persist.Marshal(TypeRecord, (*plain)(r))
}

func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	return persist.Unmarshal(b, TypeRecord, (*plain)(r))
}
