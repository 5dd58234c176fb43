// Package treestatus provides a verifier that postpones landing commits
// while the tree is closed.
package treestatus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const loggerName = "tree_status_verifier"

const Name = "tree status"

type StatusSource interface {
	Status(context.Context) (*Status, error)
}

// Verifier postpones commits while the tree is closed.
// When the tree stays closed for longer than maxClosedWait, the
// verification of the commit fails. A maxClosedWait of 0 waits forever.
type Verifier struct {
	src           StatusSource
	maxClosedWait time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

func New(src StatusSource, maxClosedWait time.Duration) *Verifier {
	return &Verifier{
		src:           src,
		maxClosedWait: maxClosedWait,
		now:           time.Now,
		logger:        zap.L().Named(loggerName),
	}
}

func (*Verifier) Name() string {
	return Name
}

func (v *Verifier) Verify(ctx context.Context, pc *verification.PendingCommit) error {
	st, err := v.src.Status(ctx)
	if err != nil {
		return fmt.Errorf("retrieving tree status failed: %w", err)
	}

	rec := Record{}
	v.apply(pc, &rec, st, v.now())
	pc.Set(Name, &rec)

	return nil
}

func (v *Verifier) UpdateStatus(ctx context.Context, pcs []*verification.PendingCommit) error {
	type entry struct {
		pc  *verification.PendingCommit
		rec *Record
	}

	var outstanding []entry

	for _, pc := range pcs {
		rec, ok := pc.Get(Name).(*Record)
		if !ok || rec.State() == verification.Failed {
			continue
		}

		outstanding = append(outstanding, entry{pc: pc, rec: rec})
	}

	if len(outstanding) == 0 {
		return nil
	}

	st, err := v.src.Status(ctx)
	if err != nil {
		return fmt.Errorf("retrieving tree status failed: %w", err)
	}

	now := v.now()
	for _, e := range outstanding {
		v.apply(e.pc, e.rec, st, now)
	}

	return nil
}

func (v *Verifier) apply(pc *verification.PendingCommit, rec *Record, st *Status, now time.Time) {
	rec.TreeMessage = st.Message

	if st.IsOpen() {
		rec.Open = true
		rec.ClosedSince = time.Time{}
		return
	}

	if rec.Open || rec.ClosedSince.IsZero() {
		rec.ClosedSince = now
	}
	rec.Open = false

	if v.maxClosedWait <= 0 {
		return
	}

	if closedFor := now.Sub(rec.ClosedSince); closedFor > v.maxClosedWait {
		rec.Failure = fmt.Sprintf(
			"The tree was closed for more than %s, giving up.\nTree status: %s",
			v.maxClosedWait, st.Message,
		)

		v.logger.Info(
			"tree was closed for too long, failing verification",
			append(pc.LogFields(),
				zap.Duration("closed_for", closedFor),
				logfields.Event("tree_closed_timeout"),
			)...,
		)
	}
}
