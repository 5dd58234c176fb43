package pending

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/commitqueue/internal/pending/mocks"
	"github.com/simplesurance/commitqueue/internal/rietveld"
	"github.com/simplesurance/commitqueue/internal/status"
	"github.com/simplesurance/commitqueue/internal/verification"
)

const testReviewURL = "https://review.example.com"

type stubVerifier struct {
	name      string
	results   map[int]verification.Record
	verifyErr error

	verifyCalls map[int]int
	updateCalls int
}

func newStubVerifier(name string) *stubVerifier {
	return &stubVerifier{
		name:        name,
		results:     map[int]verification.Record{},
		verifyCalls: map[int]int{},
	}
}

func (s *stubVerifier) Name() string {
	return s.name
}

func (s *stubVerifier) record(issue int) verification.Record {
	if rec, exist := s.results[issue]; exist {
		return rec
	}

	return verification.NewSucceeded()
}

func (s *stubVerifier) Verify(_ context.Context, pc *verification.PendingCommit) error {
	s.verifyCalls[pc.Issue]++

	if s.verifyErr != nil {
		return s.verifyErr
	}

	pc.Set(s.name, s.record(pc.Issue))

	return nil
}

func (s *stubVerifier) UpdateStatus(_ context.Context, pcs []*verification.PendingCommit) error {
	s.updateCalls++

	for _, pc := range pcs {
		pc.Set(s.name, s.record(pc.Issue))
	}

	return nil
}

type processing struct {
	verification.Simple
}

func newProcessing(whyNot string) *processing {
	return &processing{Simple: verification.Simple{Result: verification.Processing, Reason: whyNot}}
}

type testEnv struct {
	t        *testing.T
	review   *mocks.MockReviewClient
	checkout *mocks.MockCheckout
	mgr      *Manager
	prePatch *stubVerifier
	tryJobs  *stubVerifier
	now      time.Time

	issues     map[int]*rietveld.Issue
	deleted    map[int]bool
	events     []*status.Event
	flagsOff   []int
	comments   map[int][]string
	setFlagErr error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)

	env := testEnv{
		t:        t,
		review:   mocks.NewMockReviewClient(mockctrl),
		checkout: mocks.NewMockCheckout(mockctrl),
		prePatch: newStubVerifier("reviewer"),
		tryJobs:  newStubVerifier("try jobs"),
		now:      time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
		issues:   map[int]*rietveld.Issue{},
		deleted:  map[int]bool{},
		comments: map[int][]string{},
	}

	env.review.EXPECT().
		PendingIssues(gomock.Any()).
		DoAndReturn(func(context.Context) ([]int, error) {
			var res []int
			for nr, issue := range env.issues {
				if issue.Commit && !issue.Closed {
					res = append(res, nr)
				}
			}

			return res, nil
		}).
		AnyTimes()

	env.review.EXPECT().
		Issue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, nr int) (*rietveld.Issue, error) {
			if env.deleted[nr] {
				return nil, rietveld.ErrNotFound
			}

			issue, exist := env.issues[nr]
			if !exist {
				return nil, rietveld.ErrNotFound
			}

			cp := *issue
			return &cp, nil
		}).
		AnyTimes()

	env.review.EXPECT().
		IssueURL(gomock.Any()).
		DoAndReturn(func(nr int) string {
			return fmt.Sprintf("%s/%d", testReviewURL, nr)
		}).
		AnyTimes()

	env.review.EXPECT().
		SetFlag(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("commit"), gomock.Eq(false)).
		DoAndReturn(func(_ context.Context, nr, _ int, _ string, _ bool) error {
			if env.setFlagErr != nil {
				return env.setFlagErr
			}

			env.flagsOff = append(env.flagsOff, nr)
			if issue, exist := env.issues[nr]; exist {
				issue.Commit = false
			}

			return nil
		}).
		AnyTimes()

	env.review.EXPECT().
		AddComment(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, nr int, msg string) error {
			env.comments[nr] = append(env.comments[nr], msg)
			return nil
		}).
		AnyTimes()

	pusher := mocks.NewMockStatusPusher(mockctrl)
	pusher.EXPECT().
		Push(gomock.Any()).
		Do(func(ev *status.Event) { env.events = append(env.events, ev) }).
		AnyTimes()

	limiter := NewBurstLimiter(DefMaxCommitBurst, DefCommitBurstDelay, func() time.Time { return env.now })

	env.mgr = NewManager(
		env.review,
		env.checkout,
		pusher,
		[]verification.Verifier{env.prePatch},
		[]verification.Verifier{env.tryJobs},
		limiter,
	)

	return &env
}

func (env *testEnv) addIssue(nr, patchset int) *rietveld.Issue {
	issue := rietveld.Issue{
		Issue:       nr,
		Owner:       fmt.Sprintf("author%d@example.com", nr),
		Description: fmt.Sprintf("change %d", nr),
		BaseURL:     "svn://svn.example.com/trunk",
		Patchsets:   []int{patchset},
		Commit:      true,
	}
	env.issues[nr] = &issue

	return &issue
}

// expectLand expects a successful land of the issue, it returns the revision
// of the commit.
func (env *testEnv) expectLand(nr, patchset int) string {
	rev := fmt.Sprintf("r%d", 1000+nr)
	patch := []byte(fmt.Sprintf("patch %d", nr))

	gomock.InOrder(
		env.checkout.EXPECT().Sync(gomock.Any()).Return(nil),
		env.review.EXPECT().Patch(gomock.Any(), gomock.Eq(nr), gomock.Eq(patchset)).Return(patch, nil),
		env.checkout.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Eq(patch)).Return(nil),
		env.checkout.EXPECT().
			Commit(
				gomock.Any(),
				gomock.Eq(fmt.Sprintf("change %d\n\nReview URL: %s/%d\n", nr, testReviewURL, nr)),
				gomock.Eq(fmt.Sprintf("author%d@example.com", nr)),
			).
			Return(rev, nil),
		env.checkout.EXPECT().Push(gomock.Any()).Return(nil),
		env.review.EXPECT().
			UpdateDescription(gomock.Any(), gomock.Eq(nr), gomock.Eq(fmt.Sprintf("change %d\n\nCommitted: %s", nr, rev))).
			Return(nil),
		env.review.EXPECT().CloseIssue(gomock.Any(), gomock.Eq(nr)).
			DoAndReturn(func(context.Context, int) error {
				env.issues[nr].Closed = true
				return nil
			}),
	)

	return rev
}

func (env *testEnv) cycle() {
	env.t.Helper()
	require.NoError(env.t, env.mgr.Cycle(context.Background()))
}

func (env *testEnv) eventNames(issue int) []string {
	var res []string
	for _, ev := range env.events {
		if ev.Issue == issue {
			res = append(res, ev.Name)
		}
	}

	return res
}

func TestCommitIsLanded(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 3)
	rev := env.expectLand(1, 3)

	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, []string{status.EventInitial, status.EventCommit}, env.eventNames(1))
	assert.Equal(t, rev, env.events[len(env.events)-1].Revision)
	assert.Equal(t, []string{"Change committed as " + rev}, env.comments[1])
	assert.Equal(t, 1, env.tryJobs.verifyCalls[1])

	// the closed issue is not picked up again
	env.cycle()
	assert.Equal(t, 1, env.prePatch.verifyCalls[1])
}

func TestProcessingCommitStaysQueued(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.tryJobs.results[1] = newProcessing("Waiting for the following jobs:\n  linux: t1\n")

	env.cycle()
	env.cycle()

	require.Equal(t, 1, env.mgr.Queue().Len())
	assert.Equal(t, 1, env.tryJobs.verifyCalls[1])
	assert.Equal(t, 2, env.tryJobs.updateCalls)

	// the why-not message is only pushed when it changes
	assert.Equal(t, []string{status.EventInitial, status.EventWhyNot}, env.eventNames(1))
	assert.Equal(t, "Waiting for the following jobs:\n  linux: t1\n", env.events[1].Message)

	env.tryJobs.results[1] = newProcessing("Waiting for the following jobs:\n  linux: t2\n")
	env.cycle()
	assert.Equal(t, []string{status.EventInitial, status.EventWhyNot, status.EventWhyNot}, env.eventNames(1))
}

func TestDeletedIssueIsAborted(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.addIssue(2, 1)
	env.tryJobs.results[1] = newProcessing("waiting")
	env.tryJobs.results[2] = newProcessing("waiting")

	env.cycle()
	require.Equal(t, 2, env.mgr.Queue().Len())

	// issue 1 still listed as pending but can not be retrieved anymore,
	// issue 2 vanished completely
	env.deleted[1] = true
	delete(env.issues, 2)

	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Contains(t, env.eventNames(1), status.EventAbort)
	assert.Contains(t, env.eventNames(2), status.EventAbort)
	assert.Empty(t, env.flagsOff)
	assert.Empty(t, env.comments)
}

func TestUncheckedCommitFlagIsAborted(t *testing.T) {
	env := newTestEnv(t)
	issue := env.addIssue(1, 1)
	env.tryJobs.results[1] = newProcessing("waiting")

	env.cycle()
	require.Equal(t, 1, env.mgr.Queue().Len())

	issue.Commit = false
	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, status.EventAbort, env.eventNames(1)[len(env.eventNames(1))-1])
}

func TestNewPatchsetReplacesCommit(t *testing.T) {
	env := newTestEnv(t)
	issue := env.addIssue(1, 1)
	env.tryJobs.results[1] = newProcessing("waiting")

	env.cycle()

	issue.Patchsets = append(issue.Patchsets, 2)
	env.cycle()

	require.Equal(t, 1, env.mgr.Queue().Len())
	assert.Equal(t, 2, env.mgr.Queue().Get(1).Patchset)
	assert.Equal(t, 2, env.tryJobs.verifyCalls[1])

	var abortedPatchsets, initialPatchsets []int
	for _, ev := range env.events {
		switch ev.Name {
		case status.EventAbort:
			abortedPatchsets = append(abortedPatchsets, ev.Patchset)
		case status.EventInitial:
			initialPatchsets = append(initialPatchsets, ev.Patchset)
		}
	}

	assert.Equal(t, []int{1}, abortedPatchsets)
	assert.Equal(t, []int{1, 2}, initialPatchsets)
}

func TestIgnoredCommitIsNotQueued(t *testing.T) {
	env := newTestEnv(t)
	issue := env.addIssue(1, 1)
	env.prePatch.results[1] = verification.NewIgnored("unsupported project")

	env.cycle()
	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, 1, env.prePatch.verifyCalls[1])
	assert.Zero(t, env.tryJobs.verifyCalls[1])
	assert.Empty(t, env.events)

	// a new patchset is verified again
	issue.Patchsets = append(issue.Patchsets, 2)
	env.cycle()
	assert.Equal(t, 2, env.prePatch.verifyCalls[1])
}

func TestPrePatchFailureIsNotQueued(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.prePatch.results[1] = verification.NewFailed("No LGTM from a valid reviewer yet.")

	env.cycle()
	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, 2, env.prePatch.verifyCalls[1])
	assert.Empty(t, env.flagsOff)
	assert.Empty(t, env.comments)
	assert.Empty(t, env.events)

	delete(env.prePatch.results, 1)
	env.tryJobs.results[1] = newProcessing("waiting")
	env.cycle()

	assert.Equal(t, 1, env.mgr.Queue().Len())
}

func TestFailedCommitIsDiscarded(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.tryJobs.results[1] = newProcessing("waiting")

	env.cycle()
	require.Equal(t, 1, env.mgr.Queue().Len())

	env.tryJobs.results[1] = verification.NewFailed("Retried try job too often on linux for step(s) t1")
	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, []int{1}, env.flagsOff)
	assert.Equal(t, []string{"Retried try job too often on linux for step(s) t1"}, env.comments[1])

	last := env.events[len(env.events)-1]
	assert.Equal(t, status.EventAbort, last.Name)
	assert.Equal(t, "Retried try job too often on linux for step(s) t1", last.Message)

	// the commit flag is unset, the issue is not picked up again
	env.cycle()
	assert.Equal(t, 1, env.prePatch.verifyCalls[1])
}

func TestImmediateFailureIsDiscarded(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.tryJobs.results[1] = verification.NewFailed("tree closed")

	require.NoError(t, env.mgr.LookForNew(context.Background()))
	require.Equal(t, 1, env.mgr.Queue().Len())

	require.NoError(t, env.mgr.ProcessNew(context.Background()))
	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, []int{1}, env.flagsOff)
}

func TestUnsetFlagErrorKeepsCommit(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.tryJobs.results[1] = verification.NewFailed("failed")
	env.setFlagErr = errors.New("service unavailable")

	assert.Error(t, env.mgr.Cycle(context.Background()))
	assert.Equal(t, 1, env.mgr.Queue().Len())
	assert.Empty(t, env.comments)

	env.setFlagErr = nil
	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, []string{"failed"}, env.comments[1])
}

func TestVerifyErrorIsRetried(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.tryJobs.verifyErr = errors.New("connection refused")

	assert.Error(t, env.mgr.Cycle(context.Background()))
	require.Equal(t, 1, env.mgr.Queue().Len())
	assert.Nil(t, env.mgr.Queue().Get(1).Get(env.tryJobs.Name()))

	env.tryJobs.verifyErr = nil
	env.expectLand(1, 1)
	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, 3, env.tryJobs.verifyCalls[1])
}

func TestLandFailureDiscardsCommit(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)

	env.checkout.EXPECT().Sync(gomock.Any()).Return(nil)
	env.review.EXPECT().Patch(gomock.Any(), gomock.Eq(1), gomock.Eq(1)).Return([]byte("patch"), nil)
	env.checkout.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("hunk #1 failed"))

	env.cycle()

	assert.Equal(t, 0, env.mgr.Queue().Len())
	assert.Equal(t, []int{1}, env.flagsOff)
	require.Len(t, env.comments[1], 1)
	assert.Contains(t, env.comments[1][0], "Failed to commit the patch")
	assert.Contains(t, env.comments[1][0], "hunk #1 failed")
	assert.Equal(t, status.EventAbort, env.events[len(env.events)-1].Name)
}

func TestPostponedCommitIsNotLanded(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(1, 1)
	env.tryJobs.results[1] = &postponing{Simple: verification.Simple{Result: verification.Succeeded}}

	env.cycle()
	env.cycle()

	assert.Equal(t, 1, env.mgr.Queue().Len())
}

type postponing struct {
	verification.Simple
}

func (*postponing) Postpone() bool {
	return true
}

func TestCommitBurstIsLimited(t *testing.T) {
	env := newTestEnv(t)

	for i := 1; i <= 6; i++ {
		env.addIssue(i, 1)
	}

	for i := 1; i <= DefMaxCommitBurst; i++ {
		env.expectLand(i, 1)
	}

	env.cycle()
	assert.Equal(t, 2, env.mgr.Queue().Len())

	env.now = env.now.Add(DefCommitBurstDelay / 2)
	env.cycle()
	assert.Equal(t, 2, env.mgr.Queue().Len())

	env.expectLand(5, 1)
	env.expectLand(6, 1)
	env.now = env.now.Add(DefCommitBurstDelay / 2)
	env.cycle()
	assert.Equal(t, 0, env.mgr.Queue().Len())
}

func TestSaveLoad(t *testing.T) {
	env := newTestEnv(t)
	env.addIssue(7, 1)
	env.addIssue(3, 2)
	env.tryJobs.results[7] = &verification.Simple{Result: verification.Processing, Reason: "waiting"}
	env.tryJobs.results[3] = &verification.Simple{Result: verification.Processing, Reason: "waiting"}
	env.cycle()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, env.mgr.Save(path))

	loaded := newTestEnv(t)
	require.NoError(t, loaded.mgr.Load(path))

	require.Equal(t, 2, loaded.mgr.Queue().Len())
	assert.Equal(t, env.mgr.Queue().Commits(), loaded.mgr.Queue().Commits())

	// a loaded commit is not verified again
	loaded.issues = env.issues
	loaded.tryJobs.results = env.tryJobs.results
	loaded.cycle()
	assert.Empty(t, loaded.tryJobs.verifyCalls)
	assert.Empty(t, loaded.prePatch.verifyCalls)
}

func TestLoadMissingStateFile(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.mgr.Load(filepath.Join(t.TempDir(), "state.json")))
	assert.Equal(t, 0, env.mgr.Queue().Len())
}
