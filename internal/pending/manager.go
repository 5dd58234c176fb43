// Package pending tracks the code review issues that were requested to be
// committed, runs the verifiers on them and lands the verified ones.
package pending

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/rietveld"
	"github.com/simplesurance/commitqueue/internal/routines"
	"github.com/simplesurance/commitqueue/internal/set"
	"github.com/simplesurance/commitqueue/internal/status"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const loggerName = "pending_manager"

// DefFetchConcurrency is the default number of issues that are retrieved in
// parallel from the code review service.
const DefFetchConcurrency = 8

// commitFlag is the name of the review flag that requests a commit.
const commitFlag = "commit"

//go:generate mockgen -destination=mocks/manager.go -package=mocks . ReviewClient,Checkout,StatusPusher

type ReviewClient interface {
	PendingIssues(ctx context.Context) ([]int, error)
	Issue(ctx context.Context, issue int) (*rietveld.Issue, error)
	Patch(ctx context.Context, issue, patchset int) ([]byte, error)
	SetFlag(ctx context.Context, issue, patchset int, flag string, value bool) error
	AddComment(ctx context.Context, issue int, message string) error
	UpdateDescription(ctx context.Context, issue int, description string) error
	CloseIssue(ctx context.Context, issue int) error
	IssueURL(issue int) string
}

// Checkout is a working copy of the repository commits are landed in.
type Checkout interface {
	// Sync resets the checkout to the latest upstream revision.
	Sync(ctx context.Context) error
	// Apply applies patch in the directory relPath.
	Apply(ctx context.Context, relPath string, patch []byte) error
	// Commit commits all changes and returns the revision.
	Commit(ctx context.Context, message, author string) (string, error)
	Push(ctx context.Context) error
}

type StatusPusher interface {
	Push(*status.Event)
}

// Manager is the state machine of the pending commits.
// Cycle runs the operations LookForNew, ProcessNew, UpdateStatus and
// ScanResults in this order. The methods must not be called concurrently.
type Manager struct {
	review    ReviewClient
	checkout  Checkout
	status    StatusPusher
	prePatch  []verification.Verifier
	postPatch []verification.Verifier
	limiter   *BurstLimiter

	queue *Queue
	// ignored maps issues to the patchset for that a pre-patch verifier
	// reported Ignored.
	ignored   map[int]int
	newIssues []int

	fetchConcurrency int
	now              func() time.Time

	listing *atomic.String
	logger  *zap.Logger
}

func NewManager(
	review ReviewClient,
	checkout Checkout,
	statusPusher StatusPusher,
	prePatch []verification.Verifier,
	postPatch []verification.Verifier,
	limiter *BurstLimiter,
) *Manager {
	m := Manager{
		review:           review,
		checkout:         checkout,
		status:           statusPusher,
		prePatch:         prePatch,
		postPatch:        postPatch,
		limiter:          limiter,
		queue:            NewQueue(),
		ignored:          map[int]int{},
		fetchConcurrency: DefFetchConcurrency,
		now:              time.Now,
		listing:          atomic.NewString(""),
		logger:           zap.L().Named(loggerName),
	}

	m.updateListing()

	return &m
}

func (m *Manager) verifiers() []verification.Verifier {
	res := make([]verification.Verifier, 0, len(m.prePatch)+len(m.postPatch))
	res = append(res, m.prePatch...)
	res = append(res, m.postPatch...)

	return res
}

// Queue returns the queue of the pending commits.
func (m *Manager) Queue() *Queue {
	return m.queue
}

// Load replaces the queue with the one stored in the state file at path.
// If the file does not exist, the queue is empty.
func (m *Manager) Load(path string) error {
	q := NewQueue()

	err := persist.LoadFile(path, q)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.logger.Info(
				"state file does not exist, starting with empty queue",
				zap.String("state_file", path),
				logfields.Event("state_file_not_found"),
			)

			return nil
		}

		return fmt.Errorf("loading state file failed: %w", err)
	}

	m.queue = q
	m.updateListing()
	metrics.QueueSizeSet(q.Len())

	m.logger.Info(
		"state loaded",
		zap.String("state_file", path),
		zap.Int("pending_commits", q.Len()),
		logfields.Event("state_loaded"),
	)

	return nil
}

// Save writes the queue to the state file at path.
func (m *Manager) Save(path string) error {
	if err := persist.SaveFile(path, m.queue); err != nil {
		return fmt.Errorf("saving state file failed: %w", err)
	}

	return nil
}

// Cycle runs one poll cycle.
// Errors of single commits do not abort the cycle, they are returned
// combined.
func (m *Manager) Cycle(ctx context.Context) error {
	var errs *multierror.Error

	startTime := time.Now()
	defer func() { metrics.CycleDurationObserve(time.Since(startTime)) }()

	if err := m.LookForNew(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := m.ProcessNew(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := m.UpdateStatus(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := m.ScanResults(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}

	m.updateListing()
	metrics.QueueSizeSet(m.queue.Len())

	if err := errs.ErrorOrNil(); err != nil {
		metrics.CycleErrorsInc()
		return err
	}

	return nil
}

type fetchResult struct {
	issue *rietveld.Issue
	err   error
}

func (m *Manager) fetchIssues(ctx context.Context, issues []int) map[int]*fetchResult {
	var lock sync.Mutex
	res := make(map[int]*fetchResult, len(issues))

	pool := routines.NewPool(m.fetchConcurrency)
	for _, nr := range issues {
		nr := nr

		pool.Queue(func() {
			issue, err := m.review.Issue(ctx, nr)

			lock.Lock()
			res[nr] = &fetchResult{issue: issue, err: err}
			lock.Unlock()
		})
	}
	pool.Wait()

	return res
}

// LookForNew retrieves the issues that are requested to be committed.
// Tracked commits whose issue disappeared, was closed, is not requested to be
// committed anymore or has a new patchset are removed. Issues that are not
// tracked are verified by the pre-patch verifiers and added to the queue if
// none of them ignored or failed it.
func (m *Manager) LookForNew(ctx context.Context) error {
	var errs *multierror.Error

	issues, err := m.review.PendingIssues(ctx)
	if err != nil {
		return fmt.Errorf("retrieving pending issues failed: %w", err)
	}

	candidates := set.From(issues)

	for _, pc := range m.queue.Commits() {
		if !candidates.Contains(pc.Issue) {
			m.abort(pc, "The commit was removed from the queue, the issue is not requested to be committed anymore.")
		}
	}

	fetched := m.fetchIssues(ctx, set.Sorted(candidates))

	for _, nr := range set.Sorted(candidates) {
		res := fetched[nr]
		logger := m.logger.With(logfields.Issue(nr))

		if res.err != nil {
			if rietveld.IsNotFound(res.err) {
				if pc := m.queue.Get(nr); pc != nil {
					m.abort(pc, "The commit was removed from the queue, the issue was deleted.")
				}

				continue
			}

			logger.Info(
				"retrieving issue failed",
				logfields.Event("retrieving_issue_failed"),
				zap.Error(res.err),
			)

			errs = multierror.Append(errs, fmt.Errorf("issue %d: %w", nr, res.err))

			continue
		}

		issue := res.issue

		if pc := m.queue.Get(nr); pc != nil {
			switch {
			case issue.Closed:
				m.abort(pc, "The commit was removed from the queue, the issue was closed.")
				continue

			case !issue.Commit:
				m.abort(pc, "The commit was removed from the queue, the commit flag was unset.")
				continue

			case issue.LatestPatchset() != pc.Patchset:
				m.abort(pc, fmt.Sprintf(
					"The commit was removed from the queue, patchset %d was uploaded.",
					issue.LatestPatchset(),
				))

			default:
				continue
			}
		}

		if err := m.admit(ctx, logger, issue); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for nr := range m.ignored {
		if !candidates.Contains(nr) {
			delete(m.ignored, nr)
		}
	}

	return errs.ErrorOrNil()
}

func newPendingCommit(issue *rietveld.Issue) *verification.PendingCommit {
	pc := verification.PendingCommit{
		Issue:       issue.Issue,
		Patchset:    issue.LatestPatchset(),
		Owner:       issue.Owner,
		Description: issue.Description,
		Reviewers:   issue.Reviewers,
		BaseURL:     issue.BaseURL,
	}

	for _, msg := range issue.Messages {
		pc.Messages = append(pc.Messages, verification.Message{
			Sender:   msg.Sender,
			Text:     msg.Text,
			Approval: msg.Approval,
		})
	}

	return &pc
}

// admit runs the pre-patch verifiers on the issue and queues it if they
// did not ignore or fail it.
func (m *Manager) admit(ctx context.Context, logger *zap.Logger, issue *rietveld.Issue) error {
	if issue.Closed || !issue.Commit || issue.LatestPatchset() == 0 {
		return nil
	}

	if ps, exist := m.ignored[issue.Issue]; exist && ps == issue.LatestPatchset() {
		return nil
	}

	pc := newPendingCommit(issue)
	logger = logger.With(pc.LogFields()...)

	for _, v := range m.prePatch {
		if err := v.Verify(ctx, pc); err != nil {
			logger.Info(
				"pre-patch verification failed with an error",
				logfields.Verifier(v.Name()),
				logfields.Event("pre_patch_verification_error"),
				zap.Error(err),
			)

			return fmt.Errorf("%s: verifier %s: %w", pc, v.Name(), err)
		}
	}

	switch st := pc.State(); st {
	case verification.Ignored:
		m.ignored[pc.Issue] = pc.Patchset
		metrics.DiscardedInc(discardReasonIgnored)

		logger.Info(
			"commit is ignored",
			zap.String("cq.why_not", pc.WhyNot()),
			logfields.Event("commit_ignored"),
		)

		return nil

	case verification.Failed:
		logger.Debug(
			"commit is not admitted, pre-patch verification failed",
			zap.String("cq.why_not", pc.WhyNot()),
			logfields.Event("commit_not_admitted"),
		)

		return nil
	}

	m.queue.Add(pc)
	m.newIssues = append(m.newIssues, pc.Issue)

	logger.Info("commit added to queue", logfields.Event("commit_queued"))

	m.pushEvent(status.EventInitial, pc, "", "")

	return nil
}

// ProcessNew runs the post-patch verifiers on the commits that were added
// by LookForNew. Commits that fail immediately are discarded.
func (m *Manager) ProcessNew(ctx context.Context) error {
	var errs *multierror.Error

	newIssues := m.newIssues
	m.newIssues = nil

	for _, nr := range newIssues {
		pc := m.queue.Get(nr)
		if pc == nil {
			continue
		}

		logger := m.logger.With(pc.LogFields()...)

		for _, v := range m.postPatch {
			if err := m.verify(ctx, logger, v, pc); err != nil {
				errs = multierror.Append(errs, err)
			}
		}

		switch pc.State() {
		case verification.Failed:
			if err := m.discardFailed(ctx, logger, pc); err != nil {
				errs = multierror.Append(errs, err)
			}

		case verification.Ignored:
			m.discardIgnored(logger, pc)
		}
	}

	return errs.ErrorOrNil()
}

func (m *Manager) verify(ctx context.Context, logger *zap.Logger, v verification.Verifier, pc *verification.PendingCommit) error {
	if err := v.Verify(ctx, pc); err != nil {
		logger.Info(
			"verification failed with an error, retrying next cycle",
			logfields.Verifier(v.Name()),
			logfields.Event("verification_error"),
			zap.Error(err),
		)

		return fmt.Errorf("%s: verifier %s: %w", pc, v.Name(), err)
	}

	return nil
}

// UpdateStatus advances the verifications of all queued commits and pushes
// a status event for every commit whose why-not message changed.
// Verifiers whose Verify call for a commit failed before are retried.
func (m *Manager) UpdateStatus(ctx context.Context) error {
	var errs *multierror.Error

	commits := m.queue.Commits()

	for _, v := range m.verifiers() {
		var tracked []*verification.PendingCommit

		for _, pc := range commits {
			if pc.Get(v.Name()) != nil {
				tracked = append(tracked, pc)
				continue
			}

			if err := m.verify(ctx, m.logger.With(pc.LogFields()...), v, pc); err != nil {
				errs = multierror.Append(errs, err)
			}
		}

		if len(tracked) == 0 {
			continue
		}

		if err := v.UpdateStatus(ctx, tracked); err != nil {
			m.logger.Info(
				"updating verification status failed, retrying next cycle",
				logfields.Verifier(v.Name()),
				logfields.Event("verification_update_error"),
				zap.Error(err),
			)

			errs = multierror.Append(errs, fmt.Errorf("verifier %s: %w", v.Name(), err))
		}
	}

	for _, pc := range commits {
		whyNot := pc.WhyNot()
		if whyNot == pc.LastWhyNot {
			continue
		}

		pc.LastWhyNot = whyNot
		m.pushEvent(status.EventWhyNot, pc, whyNot, "")
	}

	return errs.ErrorOrNil()
}

// state returns the aggregated state of pc. A commit that has no record
// of a configured verifier is Processing.
func (m *Manager) state(pc *verification.PendingCommit) verification.State {
	st := pc.State()
	if st == verification.Failed || st == verification.Ignored {
		return st
	}

	for _, v := range m.verifiers() {
		if pc.Get(v.Name()) == nil {
			return verification.Processing
		}
	}

	return st
}

// ScanResults discards failed and ignored commits and lands succeeded ones
// as long as the burst limiter allows it.
func (m *Manager) ScanResults(ctx context.Context) error {
	var errs *multierror.Error

	for _, pc := range m.queue.Commits() {
		logger := m.logger.With(pc.LogFields()...)

		switch m.state(pc) {
		case verification.Failed:
			if err := m.discardFailed(ctx, logger, pc); err != nil {
				errs = multierror.Append(errs, err)
			}

		case verification.Ignored:
			m.discardIgnored(logger, pc)

		case verification.Succeeded:
			if pc.Postpone() {
				logger.Debug("landing commit is postponed", logfields.Event("commit_postponed"))
				continue
			}

			if wait := m.limiter.Wait(); wait > 0 {
				logger.Info(
					"commit burst limit reached, delaying land",
					zap.Duration("wait", wait),
					logfields.Event("commit_burst_limited"),
				)

				continue
			}

			if err := m.commit(ctx, logger, pc); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	return errs.ErrorOrNil()
}

func (m *Manager) commit(ctx context.Context, logger *zap.Logger, pc *verification.PendingCommit) error {
	rev, err := m.land(ctx, logger, pc)
	if err != nil {
		logger.Warn(
			"landing commit failed",
			logfields.Event("commit_land_failed"),
			zap.Error(err),
		)

		pc.Set(landVerifierName, verification.NewFailed(fmt.Sprintf("Failed to commit the patch.\n%s", err)))

		return m.discardFailed(ctx, logger, pc)
	}

	m.limiter.Record()
	m.queue.Remove(pc.Issue)
	metrics.LandedInc()

	m.pushEvent(status.EventCommit, pc, "", rev)

	return nil
}

// discardFailed unchecks the commit flag of the issue, posts the error
// messages of the failed verifications and removes the commit from the
// queue.
// If the commit flag can not be unset, the commit stays in the queue.
func (m *Manager) discardFailed(ctx context.Context, logger *zap.Logger, pc *verification.PendingCommit) error {
	msg := pc.ErrorMessage()

	if err := m.review.SetFlag(ctx, pc.Issue, pc.Patchset, commitFlag, false); err != nil {
		logger.Warn(
			"unsetting commit flag failed, retrying next cycle",
			logfields.Event("unsetting_commit_flag_failed"),
			zap.Error(err),
		)

		return fmt.Errorf("%s: unsetting commit flag failed: %w", pc, err)
	}

	if err := m.review.AddComment(ctx, pc.Issue, msg); err != nil {
		logger.Warn(
			"adding failure comment to issue failed",
			logfields.Event("adding_issue_comment_failed"),
			zap.Error(err),
		)
	}

	m.queue.Remove(pc.Issue)
	metrics.DiscardedInc(discardReasonFailed)

	logger.Info(
		"commit discarded, verification failed",
		zap.String("cq.error", msg),
		logfields.Event("commit_discarded"),
	)

	m.pushEvent(status.EventAbort, pc, msg, "")

	return nil
}

func (m *Manager) discardIgnored(logger *zap.Logger, pc *verification.PendingCommit) {
	m.queue.Remove(pc.Issue)
	m.ignored[pc.Issue] = pc.Patchset
	metrics.DiscardedInc(discardReasonIgnored)

	logger.Info(
		"commit removed from queue, it is ignored",
		zap.String("cq.why_not", pc.WhyNot()),
		logfields.Event("commit_ignored"),
	)

	m.pushEvent(status.EventAbort, pc, pc.WhyNot(), "")
}

// abort removes pc from the queue without notifying the issue owner.
func (m *Manager) abort(pc *verification.PendingCommit, reason string) {
	if m.queue.Remove(pc.Issue) == nil {
		return
	}

	metrics.DiscardedInc(discardReasonAborted)

	m.logger.Info(
		"commit removed from queue",
		append(pc.LogFields(),
			zap.String("reason", reason),
			logfields.Event("commit_aborted"),
		)...,
	)

	m.pushEvent(status.EventAbort, pc, reason, "")
}

func (m *Manager) pushEvent(name string, pc *verification.PendingCommit, msg, rev string) {
	if m.status == nil {
		return
	}

	m.status.Push(&status.Event{
		Name:      name,
		Issue:     pc.Issue,
		Patchset:  pc.Patchset,
		Owner:     pc.Owner,
		Message:   msg,
		Revision:  rev,
		Timestamp: m.now(),
	})
}
