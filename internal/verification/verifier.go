package verification

import (
	"context"
)

// Record is the state a verifier keeps for one commit.
type Record interface {
	State() State
	// WhyNot returns a human readable reason why the verification did not
	// succeed yet. It is empty when there is nothing to wait for.
	WhyNot() string
	// Postpone returns true if the verifier wants to delay landing the
	// commit, without failing it.
	Postpone() bool
	// ErrorMessage returns the details of a failed verification.
	ErrorMessage() string
	// PersistentType returns the type tag used when the record is
	// persisted.
	PersistentType() string
}

type Verifier interface {
	Name() string
	// Verify starts the verification of a commit. It must store a Record
	// for the commit in pc.Verifications.
	Verify(ctx context.Context, pc *PendingCommit) error
	// UpdateStatus advances the records of the passed commits.
	// It is idempotent, actions already in flight are not repeated.
	UpdateStatus(ctx context.Context, pcs []*PendingCommit) error
}

// Aggregate combines the states of records into the state of the commit.
// A single Failed record fails the commit. Otherwise a single Ignored
// record makes the commit Ignored, and a single Processing record keeps it
// Processing. The commit is Succeeded when all records are Succeeded.
func Aggregate(records ...Record) State {
	var ignored, processing bool

	for _, r := range records {
		switch r.State() {
		case Failed:
			return Failed
		case Ignored:
			ignored = true
		case Processing:
			processing = true
		}
	}

	if ignored {
		return Ignored
	}

	if processing {
		return Processing
	}

	return Succeeded
}
