// Package reviewer provides a verifier that requires an approval from a
// committer other than the owner of the issue.
package reviewer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const loggerName = "reviewer_verifier"

const Name = "reviewer_lgtm"

const noLGTMMsg = "No LGTM from a valid reviewer yet. Only full committers are accepted.\n" +
	"Even if an LGTM may have been provided, it was from a non-committer or\n" +
	"the lgtm'ed patchset is not the last one."

// Verifier succeeds when the issue has an approval message from a sender
// matching one of the committer expressions who is not the owner.
type Verifier struct {
	committers []*regexp.Regexp
	logger     *zap.Logger
}

// New returns a verifier accepting approvals of senders that fully match
// one of the regular expressions in committers.
func New(committers []string) (*Verifier, error) {
	v := Verifier{logger: zap.L().Named(loggerName)}

	for _, c := range committers {
		re, err := regexp.Compile("^(?:" + c + ")$")
		if err != nil {
			return nil, fmt.Errorf("parsing committer expression %q failed: %w", c, err)
		}

		v.committers = append(v.committers, re)
	}

	return &v, nil
}

func (*Verifier) Name() string {
	return Name
}

func (v *Verifier) isCommitter(email string) bool {
	for _, re := range v.committers {
		if re.MatchString(email) {
			return true
		}
	}

	return false
}

func (v *Verifier) Verify(_ context.Context, pc *verification.PendingCommit) error {
	for _, approver := range pc.Approvers() {
		if strings.EqualFold(approver, pc.Owner) {
			continue
		}

		if v.isCommitter(approver) {
			v.logger.Debug(
				"commit was approved by a committer",
				append(pc.LogFields(),
					zap.String("cq.approver", approver),
					logfields.Event("commit_approved"),
				)...,
			)

			pc.Set(Name, verification.NewSucceeded())

			return nil
		}
	}

	pc.Set(Name, verification.NewFailed(noLGTMMsg))

	return nil
}

func (*Verifier) UpdateStatus(context.Context, []*verification.PendingCommit) error {
	return nil
}
