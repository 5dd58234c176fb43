package pending

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/commitqueue/internal/tryjob"
	"github.com/simplesurance/commitqueue/internal/verification"
	"github.com/simplesurance/commitqueue/internal/verification/treestatus"
)

func testTryJobs() *tryjob.TryJobs {
	start := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

	return &tryjob.TryJobs{
		StepVerifiers: []tryjob.StepVerifier{
			&tryjob.TryJobSteps{Builder: "linux", Steps: []string{"compile", "unit_tests"}},
			&tryjob.TryJobTriggeredSteps{
				Builder:     "tester1",
				TriggerName: "builder1",
				Steps:       map[string]string{"t3": "build"},
			},
		},
		TryJobs: tryjob.Jobs{
			"key-1": {
				Builder:     "builder1",
				Build:       12,
				Revision:    "1000",
				Started:     start,
				Completed:   start.Add(time.Hour),
				InitTime:    start,
				StepsPassed: []string{"build"},
				Tries:       1,
			},
			"key-2": {
				Builder:        "tester1",
				Build:          4,
				Revision:       "1000",
				RequestedSteps: []string{"t3"},
				Started:        start.Add(time.Hour),
				InitTime:       start.Add(time.Hour),
				Tries:          1,
				ParentKey:      "key-1",
			},
		},
		Pendings: []*tryjob.TryJobPending{
			{
				Builder:        "linux",
				Revision:       "1000",
				RequestedSteps: []string{"unit_tests"},
				Tries:          2,
				InitTime:       start,
			},
		},
		Irrelevant: []string{"key-0"},
	}
}

func testQueue() *Queue {
	q := NewQueue()

	for _, issue := range []int{5, 1, 3} {
		pc := verification.PendingCommit{
			Issue:       issue,
			Patchset:    issue * 10,
			Owner:       "author@example.com",
			Description: "a change",
			Reviewers:   []string{"reviewer@example.com"},
			Messages: []verification.Message{
				{Sender: "reviewer@example.com", Text: "lgtm", Approval: true},
			},
			BaseURL:    "svn://svn.example.com/trunk",
			LastWhyNot: "waiting\n",
		}

		pc.Set("reviewer_lgtm", verification.NewSucceeded())
		pc.Set("project_bases", verification.NewIgnored("unsupported"))
		pc.Set(treestatus.Name, &treestatus.Record{
			TreeMessage: "closed",
			ClosedSince: time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC),
		})
		pc.Set(tryjob.Name, testTryJobs())

		q.Add(&pc)
	}

	return q
}

// recordsByName compares verification records as name to record mapping.
var recordsByName = cmp.Transformer("records", func(r verification.Records) map[string]verification.Record {
	res := map[string]verification.Record{}
	r.Foreach(func(name string, rec verification.Record) bool {
		res[name] = rec
		return true
	})

	return res
})

func TestQueueRoundTrip(t *testing.T) {
	q := testQueue()

	b, err := json.Marshal(q)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(b), `{"__persistent_type__":"PendingQueue","pending_commits":{"5":`))

	decoded := NewQueue()
	require.NoError(t, json.Unmarshal(b, decoded))

	if diff := cmp.Diff(q.Commits(), decoded.Commits(), recordsByName); diff != "" {
		t.Errorf("decoded queue differs (-want +got):\n%s", diff)
	}

	assert.Equal(t,
		[]string{"reviewer_lgtm", "project_bases", treestatus.Name, tryjob.Name},
		decoded.Get(1).Verifications.Names(),
	)

	tj, ok := decoded.Get(1).Get(tryjob.Name).(*tryjob.TryJobs)
	require.True(t, ok)

	parent, ok := tj.TryJobs.Parent(tj.TryJobs["key-2"])
	require.True(t, ok)
	assert.Same(t, tj.TryJobs["key-1"], parent)
}

func TestQueueKeepsOrder(t *testing.T) {
	q := testQueue()

	b, err := json.Marshal(q)
	require.NoError(t, err)

	decoded := NewQueue()
	require.NoError(t, json.Unmarshal(b, decoded))

	var issues []int
	for _, pc := range decoded.Commits() {
		issues = append(issues, pc.Issue)
	}

	assert.Equal(t, []int{5, 1, 3}, issues)
}

func TestQueueAdd(t *testing.T) {
	q := NewQueue()

	assert.True(t, q.Add(&verification.PendingCommit{Issue: 1, Patchset: 1}))
	assert.False(t, q.Add(&verification.PendingCommit{Issue: 1, Patchset: 2}))
	assert.Equal(t, 1, q.Get(1).Patchset)

	assert.NotNil(t, q.Remove(1))
	assert.Nil(t, q.Remove(1))
	assert.Equal(t, 0, q.Len())
}

func TestEmptyQueueRoundTrip(t *testing.T) {
	b, err := json.Marshal(NewQueue())
	require.NoError(t, err)
	assert.JSONEq(t, `{"__persistent_type__":"PendingQueue","pending_commits":{}}`, string(b))

	decoded := NewQueue()
	require.NoError(t, json.Unmarshal(b, decoded))
	assert.Equal(t, 0, decoded.Len())
}

func TestDecodeUnknownRecordType(t *testing.T) {
	data := `{"__persistent_type__":"PendingQueue","pending_commits":{"1":{` +
		`"__persistent_type__":"PendingCommit","issue":1,"patchset":1,` +
		`"verifications":{"presubmit":{"__persistent_type__":"PresubmitVerification"}}}}}`

	err := json.Unmarshal([]byte(data), NewQueue())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PresubmitVerification")
}

func TestDecodeWrongQueueType(t *testing.T) {
	err := json.Unmarshal([]byte(`{"__persistent_type__":"PendingCommit"}`), NewQueue())
	assert.Error(t, err)
}

func TestDecodeMismatchingIssueKey(t *testing.T) {
	data := `{"__persistent_type__":"PendingQueue","pending_commits":{"2":{` +
		`"__persistent_type__":"PendingCommit","issue":1,"patchset":1}}}`

	assert.Error(t, json.Unmarshal([]byte(data), NewQueue()))
}
