// Package tryjob implements the verifier that requires try jobs to pass on
// the build grid before a commit is landed.
//
// The required steps per builder are defined by StepVerifier policies. Every
// poll cycle the Runner discovers the builds that the code review service
// recorded for a patchset, asks the policies which steps are still missing
// and triggers them. Triggered but not yet observed builds are tracked as
// TryJobPending. Each (builder, steps) lineage is retried up to
// Options.MaxTries times before the verification fails.
package tryjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/buildbot"
	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/rietveld"
	"github.com/simplesurance/commitqueue/internal/set"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const loggerName = "try_job_runner"

// Name is the name of the verifier and the key of its records.
const Name = "try job rietveld"

const (
	DefaultMaxTries       = 3
	DefaultPendingTimeout = 30 * 24 * time.Hour
	DefaultReason         = "CQ"
)

//go:generate mockgen -destination=mocks/runner.go -package=mocks . ReviewClient,Grid,RevisionSource,RevisionFilter

type ReviewClient interface {
	TryJobResults(ctx context.Context, issue, patchset int) ([]rietveld.TryJobResult, error)
	TriggerTryJobs(ctx context.Context, issue, patchset int, reason string, clobber bool, revision string, builders map[string][]string) error
}

type Grid interface {
	Builder(ctx context.Context, builder string) (*buildbot.Builder, error)
	Build(ctx context.Context, builder string, number int) (*buildbot.Build, error)
	BuildURL(builder string, number int) string
}

// RevisionSource returns the revision try jobs are triggered for.
type RevisionSource interface {
	Revision(ctx context.Context) (string, error)
}

// RevisionFilter decides if a build that ran against revision can vouch for
// the current state of the tree.
type RevisionFilter interface {
	IsRelevant(ctx context.Context, revision string) (bool, error)
}

// AllRevisions is a RevisionFilter that considers every revision relevant.
type AllRevisions struct{}

func (AllRevisions) IsRelevant(context.Context, string) (bool, error) {
	return true, nil
}

type Options struct {
	// MaxTries is how often a (builder, steps) lineage is triggered.
	MaxTries int
	// PropagationDelay is passed to the triggered step policies.
	PropagationDelay time.Duration
	// PendingTimeout is the time after which a trigger request that was
	// not matched to a build is considered lost.
	PendingTimeout time.Duration
	// Clobber requests clean builds.
	Clobber bool
	Reason  string
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.MaxTries <= 0 {
		o.MaxTries = DefaultMaxTries
	}

	if o.PropagationDelay <= 0 {
		o.PropagationDelay = DefaultPropagationDelay
	}

	if o.PendingTimeout <= 0 {
		o.PendingTimeout = DefaultPendingTimeout
	}

	if o.Reason == "" {
		o.Reason = DefaultReason
	}

	if o.Now == nil {
		o.Now = time.Now
	}
}

// Runner is a post-patch verifier that triggers try jobs and waits for them
// to pass.
type Runner struct {
	review        ReviewClient
	grid          Grid
	revisions     RevisionSource
	filter        RevisionFilter
	stepVerifiers []StepVerifier
	opts          Options
	logger        *zap.Logger
}

func NewRunner(
	review ReviewClient,
	grid Grid,
	revisions RevisionSource,
	filter RevisionFilter,
	stepVerifiers []StepVerifier,
	opts Options,
) *Runner {
	opts.setDefaults()

	if filter == nil {
		filter = AllRevisions{}
	}

	return &Runner{
		review:        review,
		grid:          grid,
		revisions:     revisions,
		filter:        filter,
		stepVerifiers: WithPropagationDelay(stepVerifiers, opts.PropagationDelay),
		opts:          opts,
		logger:        zap.L().Named(loggerName),
	}
}

func (*Runner) Name() string {
	return Name
}

// Verify creates the record for pc and triggers the initial try jobs.
func (r *Runner) Verify(ctx context.Context, pc *verification.PendingCommit) error {
	st := newTryJobs(r.stepVerifiers)
	pc.Set(Name, st)

	if skipRequested(pc.Description) {
		st.Skipped = true
		r.logger.Info(
			"try jobs skipped on request of the author",
			append(pc.LogFields(), logfields.Event("try_jobs_skipped"))...,
		)

		return nil
	}

	return r.update(ctx, pc, st)
}

// UpdateStatus discovers new builds of the commits and triggers missing
// steps.
func (r *Runner) UpdateStatus(ctx context.Context, pcs []*verification.PendingCommit) error {
	var errs *multierror.Error

	for _, pc := range pcs {
		rec := pc.Get(Name)
		if rec == nil {
			continue
		}

		st, ok := rec.(*TryJobs)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%s: record has unexpected type %T", pc, rec))
			continue
		}

		if st.State() != verification.Processing {
			continue
		}

		if err := r.update(ctx, pc, st); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", pc, err))
		}
	}

	return errs.ErrorOrNil()
}

func (r *Runner) update(ctx context.Context, pc *verification.PendingCommit, st *TryJobs) error {
	logger := r.logger.With(pc.LogFields()...)
	now := r.opts.Now()

	r.syncStepVerifiers(logger, st)

	if err := r.discover(ctx, logger, pc, st, now); err != nil {
		return fmt.Errorf("discovering try jobs failed: %w", err)
	}

	r.expirePendings(logger, st, now)

	if st.State() != verification.Processing {
		return nil
	}

	return r.trigger(ctx, logger, pc, st, now)
}

// syncStepVerifiers replaces the policies of st when they differ from the
// configured ones.
func (r *Runner) syncStepVerifiers(logger *zap.Logger, st *TryJobs) {
	configured, err := json.Marshal(r.stepVerifiers)
	if err != nil {
		logger.Warn("encoding step verifiers failed", zap.Error(err))
		return
	}

	recorded, err := json.Marshal(st.StepVerifiers)
	if err == nil && string(configured) == string(recorded) {
		return
	}

	logger.Info(
		"step verifier configuration changed, using current configuration",
		logfields.Event("step_verifiers_changed"),
	)

	st.StepVerifiers = r.stepVerifiers
}

type buildRef struct {
	builder string
	number  int
}

func (r *Runner) discover(ctx context.Context, logger *zap.Logger, pc *verification.PendingCommit, st *TryJobs, now time.Time) error {
	results, err := r.review.TryJobResults(ctx, pc.Issue, pc.Patchset)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	builders := map[string]*buildbot.Builder{}
	parents := map[string]buildRef{}

	for _, res := range results {
		if st.isIrrelevant(res.Key) {
			continue
		}

		job, known := st.TryJobs[res.Key]
		if known && job.IsCompleted() {
			continue
		}

		jobLogger := logger.With(
			logfields.JobKey(res.Key),
			logfields.Builder(res.Builder),
			logfields.Build(res.BuildNumber),
		)

		build, err := r.grid.Build(ctx, res.Builder, res.BuildNumber)
		if err != nil {
			if errors.Is(err, buildbot.ErrNotFound) {
				discardVanished(jobLogger, st, res.Key, job, now)
				continue
			}

			errs = multierror.Append(errs, err)
			continue
		}

		if !known {
			relevant, err := r.filter.IsRelevant(ctx, build.Revision())
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("evaluating relevance of revision %q failed: %w", build.Revision(), err))
				continue
			}

			if !relevant {
				st.Irrelevant = append(st.Irrelevant, res.Key)
				jobLogger.Info(
					"ignoring try job for outdated revision",
					logfields.Revision(build.Revision()),
					logfields.Event("try_job_irrelevant"),
				)

				continue
			}

			job = newJob(st, res.Builder, build, now)
			st.TryJobs[res.Key] = job
			metrics.DiscoveredInc(res.Builder)

			jobLogger.Info(
				"try job discovered",
				logfields.Revision(job.Revision),
				logfields.Steps(job.RequestedSteps),
				zap.Int("tries", job.Tries),
				logfields.Event("try_job_discovered"),
			)
		}

		if job.ParentKey == "" {
			if pb, pn, ok := build.Parent(); ok {
				parents[res.Key] = buildRef{builder: pb, number: pn}
			}
		}

		builder, exist := builders[res.Builder]
		if !exist {
			builder, err = r.grid.Builder(ctx, res.Builder)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}

			builders[res.Builder] = builder
		}

		if err := updateJob(job, build, !builder.IsRunning(build.Number), now); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		if job.IsCompleted() {
			jobLogger.Debug(
				"try job completed",
				logfields.Steps(job.StepsPassed),
				zap.Strings("steps_failed", job.StepsFailed),
				logfields.Event("try_job_completed"),
			)
		}
	}

	r.resolveParents(logger, st, parents)

	return errs.ErrorOrNil()
}

// discardVanished files a try job result whose build does not exist on the
// grid anymore as irrelevant. A known job is marked as completed, it stays
// in the record to count its tries and its unpassed steps are triggered
// again.
func discardVanished(logger *zap.Logger, st *TryJobs, key string, job *TryJob, now time.Time) {
	st.Irrelevant = append(st.Irrelevant, key)

	if job != nil {
		job.Completed = now
	}

	logger.Info(
		"build of try job does not exist, ignoring it",
		logfields.Event("try_job_build_not_found"),
	)
}

// newJob creates the job for a build. If a pending trigger request of the
// builder for the revision of the build exists, the job inherits its
// requested steps and tries. Other builds were not requested by us.
func newJob(st *TryJobs, builder string, build *buildbot.Build, now time.Time) *TryJob {
	job := TryJob{
		Builder:  builder,
		Build:    build.Number,
		Revision: build.Revision(),
		InitTime: now,
	}

	if p, ok := st.popPending(builder, job.Revision, build.StartTime()); ok {
		job.RequestedSteps = p.RequestedSteps
		job.Clobber = p.Clobber
		job.Tries = p.Tries
		job.InitTime = p.InitTime
	}

	return &job
}

// resolveParents sets the ParentKey of the jobs in refs to the keys of the
// jobs that triggered them. Jobs without requested steps inherit the
// triggered steps of their parent.
func (r *Runner) resolveParents(logger *zap.Logger, st *TryJobs, refs map[string]buildRef) {
	for key, ref := range refs {
		parentKey, exist := st.TryJobs.KeyOf(ref.builder, ref.number)
		if !exist {
			logger.Debug(
				"parent of triggered try job is not known yet",
				logfields.JobKey(key),
				zap.String("grid.parent_builder", ref.builder),
				zap.Int("grid.parent_build", ref.number),
			)

			continue
		}

		job := st.TryJobs[key]
		job.ParentKey = parentKey

		if len(job.RequestedSteps) != 0 || job.Tries != 0 {
			continue
		}

		parent := st.TryJobs[parentKey]
		requested := set.New[string]()

		for _, v := range r.stepVerifiers {
			builder, steps := v.TriggeredSteps(parent.Builder, parent.requested())
			if builder == job.Builder {
				requested = requested.Union(steps)
			}
		}

		job.RequestedSteps = set.Sorted(requested)
		job.Tries = parent.Tries
	}
}

func updateJob(job *TryJob, build *buildbot.Build, completed bool, now time.Time) error {
	passed, failed, err := build.StepResults()
	if err != nil {
		return fmt.Errorf("evaluating step results of %s/%d failed: %w", job.Builder, job.Build, err)
	}

	job.StepsPassed = passed
	job.StepsFailed = failed

	if job.Started.IsZero() {
		job.Started = build.StartTime()
		if job.Started.IsZero() {
			job.Started = now
		}
	}

	if completed && !job.IsCompleted() {
		job.Completed = build.EndTime()
		if job.Completed.IsZero() {
			job.Completed = now
		}
	}

	return nil
}

// expirePendings moves pendings that were not matched to a build within
// PendingTimeout to the TimedOut list. Their steps are triggered again.
func (r *Runner) expirePendings(logger *zap.Logger, st *TryJobs, now time.Time) {
	remaining := st.Pendings[:0]

	for _, p := range st.Pendings {
		if now.Sub(p.InitTime) <= r.opts.PendingTimeout {
			remaining = append(remaining, p)
			continue
		}

		st.TimedOut = append(st.TimedOut, p)
		logger.Warn(
			"trigger request was not fulfilled in time, discarding it",
			logfields.Builder(p.Builder),
			logfields.Steps(p.RequestedSteps),
			zap.Time("trigger_time", p.InitTime),
			logfields.Event("try_job_pending_timed_out"),
		)
	}

	st.Pendings = remaining
}

func (r *Runner) trigger(ctx context.Context, logger *zap.Logger, pc *verification.PendingCommit, st *TryJobs, now time.Time) error {
	need := map[string]set.Set[string]{}

	for _, v := range r.stepVerifiers {
		builder, steps := v.NeedToTrigger(st.TryJobs, now)
		if steps.IsEmpty() {
			continue
		}

		need[builder] = steps.Union(need[builder])
	}

	type request struct {
		builder string
		steps   set.Set[string]
		tries   int
	}

	builders := make([]string, 0, len(need))
	for b := range need {
		builders = append(builders, b)
	}
	sort.Strings(builders)

	var requests []*request

	for _, b := range builders {
		covered, all := st.pendingCovers(b)
		if all {
			continue
		}

		steps := need[b].Difference(covered)
		if steps.IsEmpty() {
			continue
		}

		tries := st.lineageTries(b, steps) + 1
		if tries > r.opts.MaxTries {
			st.Error = r.retriesExceededMsg(st, b, steps)
			metrics.RetriesExhaustedInc(b)
			logger.Info(
				"try job was retried too often, giving up",
				logfields.Builder(b),
				logfields.Steps(set.Sorted(steps)),
				zap.Int("tries", tries-1),
				logfields.Event("try_job_retries_exhausted"),
			)

			return nil
		}

		requests = append(requests, &request{builder: b, steps: steps, tries: tries})
	}

	if len(requests) == 0 {
		return nil
	}

	revision, err := r.revisions.Revision(ctx)
	if err != nil {
		return fmt.Errorf("retrieving revision to test failed: %w", err)
	}

	for _, req := range requests {
		steps := set.Sorted(req.steps)

		err := r.review.TriggerTryJobs(
			ctx,
			pc.Issue,
			pc.Patchset,
			r.opts.Reason,
			r.opts.Clobber,
			revision,
			map[string][]string{req.builder: steps},
		)
		if err != nil {
			return fmt.Errorf("triggering try jobs on %s failed: %w", req.builder, err)
		}

		st.Pendings = append(st.Pendings, &TryJobPending{
			Builder:        req.builder,
			Revision:       revision,
			RequestedSteps: steps,
			Clobber:        r.opts.Clobber,
			Tries:          req.tries,
			InitTime:       now,
		})
		metrics.TriggeredInc(req.builder)

		logger.Info(
			"try job triggered",
			logfields.Builder(req.builder),
			logfields.Steps(steps),
			logfields.Revision(revision),
			zap.Int("tries", req.tries),
			logfields.Event("try_job_triggered"),
		)
	}

	return nil
}

func (r *Runner) retriesExceededMsg(st *TryJobs, builder string, steps set.Set[string]) string {
	msg := fmt.Sprintf(
		"Retried try job too often on %s for step(s) %s",
		builder, strings.Join(set.Sorted(steps), ", "),
	)

	if job, exist := st.lastFailedJob(builder, steps); exist {
		msg += "\n" + r.grid.BuildURL(job.Builder, job.Build)
	}

	return msg
}

// skipRequested returns true if the description contains a NOTRY=true
// line.
func skipRequested(description string) bool {
	for _, line := range strings.Split(description, "\n") {
		k, v, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(k), "NOTRY") && strings.EqualFold(strings.TrimSpace(v), "true") {
			return true
		}
	}

	return false
}
