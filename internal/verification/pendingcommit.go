package verification

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/persist"
)

const TypePendingCommit = "PendingCommit"

// Message is a comment on a code review issue.
type Message struct {
	Sender   string `json:"sender"`
	Text     string `json:"text,omitempty"`
	Approval bool   `json:"approval"`
}

// PendingCommit is a code review issue patchset that is tracked by the
// commit queue.
type PendingCommit struct {
	Issue       int       `json:"issue"`
	Patchset    int       `json:"patchset"`
	Owner       string    `json:"owner"`
	Description string    `json:"description"`
	Reviewers   []string  `json:"reviewers"`
	Messages    []Message `json:"messages"`
	BaseURL     string    `json:"base_url"`
	RelPath     string    `json:"relpath"`
	Verifications Records `json:"verifications"`
	// LastWhyNot is the why-not message that was last pushed to the status
	// channel.
	LastWhyNot string `json:"last_why_not,omitempty"`
}

func (pc *PendingCommit) Get(verifierName string) Record {
	return pc.Verifications.Get(verifierName)
}

func (pc *PendingCommit) Set(verifierName string, rec Record) {
	pc.Verifications.Set(verifierName, rec)
}

// State returns the aggregated state of all records of the commit.
// A commit without records is Processing.
func (pc *PendingCommit) State() State {
	if pc.Verifications.Len() == 0 {
		return Processing
	}

	records := make([]Record, 0, pc.Verifications.Len())
	pc.Verifications.Foreach(func(_ string, r Record) bool {
		records = append(records, r)
		return true
	})

	return Aggregate(records...)
}

// Postpone returns true if any record asks to delay landing.
func (pc *PendingCommit) Postpone() bool {
	var postpone bool

	pc.Verifications.Foreach(func(_ string, r Record) bool {
		postpone = r.Postpone()
		return !postpone
	})

	return postpone
}

// WhyNot returns the concatenated why-not messages of all records in
// verifier order.
func (pc *PendingCommit) WhyNot() string {
	var sb strings.Builder

	pc.Verifications.Foreach(func(_ string, r Record) bool {
		msg := r.WhyNot()
		if msg == "" {
			return true
		}

		sb.WriteString(msg)
		if !strings.HasSuffix(msg, "\n") {
			sb.WriteString("\n")
		}

		return true
	})

	return sb.String()
}

// ErrorMessage returns the error messages of all failed records in verifier
// order.
func (pc *PendingCommit) ErrorMessage() string {
	var msgs []string

	pc.Verifications.Foreach(func(_ string, r Record) bool {
		if r.State() != Failed {
			return true
		}

		if msg := r.ErrorMessage(); msg != "" {
			msgs = append(msgs, msg)
		}

		return true
	})

	return strings.Join(msgs, "\n")
}

// Approvers returns the senders of all approval messages.
func (pc *PendingCommit) Approvers() []string {
	var res []string

	for _, m := range pc.Messages {
		if m.Approval {
			res = append(res, m.Sender)
		}
	}

	return res
}

func (pc *PendingCommit) LogFields() []zap.Field {
	return []zap.Field{
		logfields.Issue(pc.Issue),
		logfields.Patchset(pc.Patchset),
		logfields.Owner(pc.Owner),
	}
}

func (pc *PendingCommit) String() string {
	return fmt.Sprintf("issue %d#%d", pc.Issue, pc.Patchset)
}

func (pc *PendingCommit) MarshalJSON() ([]byte, error) {
	type plain PendingCommit
	return persist.Marshal(TypePendingCommit, (*plain)(pc))
}
