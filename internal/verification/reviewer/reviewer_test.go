package reviewer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/commitqueue/internal/verification"
)

func TestVerify(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	v, err := New([]string{`.*@example\.org`, `maintainer@other\.org`})
	require.NoError(t, err)

	tcs := []struct {
		name     string
		messages []verification.Message
		expected verification.State
	}{
		{
			name:     "noMessages",
			expected: verification.Failed,
		},
		{
			name: "approvedByCommitter",
			messages: []verification.Message{
				{Sender: "reviewer@example.org", Text: "lgtm", Approval: true},
			},
			expected: verification.Succeeded,
		},
		{
			name: "approvedByOwner",
			messages: []verification.Message{
				{Sender: "owner@example.org", Text: "lgtm", Approval: true},
			},
			expected: verification.Failed,
		},
		{
			name: "approvedByNonCommitter",
			messages: []verification.Message{
				{Sender: "someone@other.org", Text: "lgtm", Approval: true},
			},
			expected: verification.Failed,
		},
		{
			name: "committerCommentWithoutApproval",
			messages: []verification.Message{
				{Sender: "maintainer@other.org", Text: "looks ok"},
			},
			expected: verification.Failed,
		},
		{
			name: "partialMatchIsNotACommitter",
			messages: []verification.Message{
				{Sender: "maintainer@other.org.evil.com", Approval: true},
			},
			expected: verification.Failed,
		},
		{
			name: "oneValidApprovalIsEnough",
			messages: []verification.Message{
				{Sender: "someone@other.org", Approval: true},
				{Sender: "maintainer@other.org", Approval: true},
			},
			expected: verification.Succeeded,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			pc := verification.PendingCommit{
				Issue:    1,
				Owner:    "owner@example.org",
				Messages: tc.messages,
			}

			require.NoError(t, v.Verify(context.Background(), &pc))

			rec := pc.Get(Name)
			require.NotNil(t, rec)
			assert.Equal(t, tc.expected, rec.State())

			if tc.expected == verification.Failed {
				assert.Contains(t, rec.ErrorMessage(), "No LGTM from a valid reviewer yet")
			}
		})
	}
}

func TestNewInvalidExpression(t *testing.T) {
	_, err := New([]string{"("})
	assert.Error(t, err)
}
