package treestatus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/commitqueue/internal/verification"
)

type fakeSource struct {
	st  Status
	err error
}

func (f *fakeSource) Status(context.Context) (*Status, error) {
	if f.err != nil {
		return nil, f.err
	}

	st := f.st
	return &st, nil
}

func newTestVerifier(src StatusSource, maxClosedWait time.Duration, now *time.Time) *Verifier {
	v := New(src, maxClosedWait)
	v.now = func() time.Time { return *now }

	return v
}

func TestOpenTreeSucceeds(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	v := newTestVerifier(&fakeSource{st: Status{Message: "open", CanCommitFreely: true}}, time.Hour, &now)

	pc := verification.PendingCommit{Issue: 1}
	require.NoError(t, v.Verify(context.Background(), &pc))

	rec := pc.Get(Name)
	assert.Equal(t, verification.Succeeded, rec.State())
	assert.False(t, rec.Postpone())
	assert.Empty(t, rec.WhyNot())
}

func TestClosedTreePostponesThenFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	src := fakeSource{st: Status{Message: "closed for maintenance"}}
	v := newTestVerifier(&src, time.Hour, &now)

	pc := verification.PendingCommit{Issue: 1}
	require.NoError(t, v.Verify(context.Background(), &pc))

	rec := pc.Get(Name)
	assert.Equal(t, verification.Succeeded, rec.State())
	assert.True(t, rec.Postpone())
	assert.Equal(t, "Tree is currently not open: closed for maintenance", rec.WhyNot())

	now = now.Add(30 * time.Minute)
	require.NoError(t, v.UpdateStatus(context.Background(), []*verification.PendingCommit{&pc}))
	assert.Equal(t, verification.Succeeded, pc.Get(Name).State())
	assert.True(t, pc.Get(Name).Postpone())

	now = now.Add(31 * time.Minute)
	require.NoError(t, v.UpdateStatus(context.Background(), []*verification.PendingCommit{&pc}))
	rec = pc.Get(Name)
	assert.Equal(t, verification.Failed, rec.State())
	assert.False(t, rec.Postpone())
	assert.Contains(t, rec.ErrorMessage(), "closed for maintenance")
}

func TestReopenedTreeResetsDeadline(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	src := fakeSource{st: Status{Message: "closed"}}
	v := newTestVerifier(&src, time.Hour, &now)

	pc := verification.PendingCommit{Issue: 1}
	require.NoError(t, v.Verify(context.Background(), &pc))

	now = now.Add(50 * time.Minute)
	src.st = Status{Message: "open", CanCommitFreely: true}
	require.NoError(t, v.UpdateStatus(context.Background(), []*verification.PendingCommit{&pc}))
	assert.False(t, pc.Get(Name).Postpone())

	now = now.Add(10 * time.Minute)
	src.st = Status{Message: "closed again"}
	require.NoError(t, v.UpdateStatus(context.Background(), []*verification.PendingCommit{&pc}))

	now = now.Add(50 * time.Minute)
	require.NoError(t, v.UpdateStatus(context.Background(), []*verification.PendingCommit{&pc}))

	rec := pc.Get(Name)
	assert.Equal(t, verification.Succeeded, rec.State())
	assert.True(t, rec.Postpone())
}

func TestNoDeadlineWaitsForever(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	v := newTestVerifier(&fakeSource{st: Status{Message: "closed"}}, 0, &now)

	pc := verification.PendingCommit{Issue: 1}
	require.NoError(t, v.Verify(context.Background(), &pc))

	now = now.Add(24 * 365 * time.Hour)
	require.NoError(t, v.UpdateStatus(context.Background(), []*verification.PendingCommit{&pc}))
	assert.True(t, pc.Get(Name).Postpone())
	assert.Equal(t, verification.Succeeded, pc.Get(Name).State())
}

func TestStatusErrorKeepsRecord(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	now := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	src := fakeSource{st: Status{Message: "closed"}}
	v := newTestVerifier(&src, time.Hour, &now)

	pc := verification.PendingCommit{Issue: 1}
	require.NoError(t, v.Verify(context.Background(), &pc))
	before := *pc.Get(Name).(*Record)

	src.err = errors.New("connection refused")
	now = now.Add(2 * time.Hour)
	assert.Error(t, v.UpdateStatus(context.Background(), []*verification.PendingCommit{&pc}))
	assert.Equal(t, before, *pc.Get(Name).(*Record))

	other := verification.PendingCommit{Issue: 2}
	assert.Error(t, v.Verify(context.Background(), &other))
	assert.Nil(t, other.Get(Name))
}

func TestRecordIsTagged(t *testing.T) {
	rec := Record{TreeMessage: "closed", ClosedSince: time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)}

	b, err := json.Marshal(&rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"__persistent_type__":"TreeStatusVerification"`)

	var decoded Record
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, rec.TreeMessage, decoded.TreeMessage)
	assert.True(t, rec.ClosedSince.Equal(decoded.ClosedSince))
}

func TestClientStatus(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/current", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		_, _ = w.Write([]byte(`{"message": "Tree is open", "general_state": "open", "can_commit_freely": true}`))
	}))
	t.Cleanup(srv.Close)

	clt, err := NewClient(srv.URL)
	require.NoError(t, err)

	st, err := clt.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsOpen())
	assert.Equal(t, "Tree is open", st.Message)
	assert.Equal(t, "open", st.GeneralState)
}
