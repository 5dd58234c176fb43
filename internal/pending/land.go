package pending

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/verification"
)

// landVerifierName is the name of the record that is stored when landing a
// commit failed.
const landVerifierName = "commit"

func commitMessage(pc *verification.PendingCommit, reviewURL string) string {
	return strings.TrimRight(pc.Description, "\n ") + "\n\nReview URL: " + reviewURL + "\n"
}

// land applies the patch of pc to a clean checkout, commits and pushes it.
// It returns the revision of the new commit.
func (m *Manager) land(ctx context.Context, logger *zap.Logger, pc *verification.PendingCommit) (string, error) {
	if err := m.checkout.Sync(ctx); err != nil {
		return "", fmt.Errorf("updating the checkout failed: %w", err)
	}

	patch, err := m.review.Patch(ctx, pc.Issue, pc.Patchset)
	if err != nil {
		return "", fmt.Errorf("retrieving the patch failed: %w", err)
	}

	if err := m.checkout.Apply(ctx, pc.RelPath, patch); err != nil {
		return "", fmt.Errorf("applying the patch failed: %w", err)
	}

	rev, err := m.checkout.Commit(ctx, commitMessage(pc, m.review.IssueURL(pc.Issue)), pc.Owner)
	if err != nil {
		return "", fmt.Errorf("committing the patch failed: %w", err)
	}

	if err := m.checkout.Push(ctx); err != nil {
		return "", fmt.Errorf("pushing revision %s failed: %w", rev, err)
	}

	logger = logger.With(logfields.Revision(rev))
	logger.Info("commit landed", logfields.Event("commit_landed"))

	m.announceLand(ctx, logger, pc, rev)

	return rev, nil
}

// announceLand updates the review issue after pc was landed as rev.
// The commit can not be undone anymore, errors are only logged.
func (m *Manager) announceLand(ctx context.Context, logger *zap.Logger, pc *verification.PendingCommit, rev string) {
	desc := strings.TrimRight(pc.Description, "\n ") + "\n\nCommitted: " + rev
	if err := m.review.UpdateDescription(ctx, pc.Issue, desc); err != nil {
		logger.Warn(
			"updating issue description failed",
			logfields.Event("updating_issue_description_failed"),
			zap.Error(err),
		)
	}

	if err := m.review.CloseIssue(ctx, pc.Issue); err != nil {
		logger.Warn(
			"closing issue failed",
			logfields.Event("closing_issue_failed"),
			zap.Error(err),
		)
	}

	if err := m.review.AddComment(ctx, pc.Issue, "Change committed as "+rev); err != nil {
		logger.Warn(
			"adding commit comment to issue failed",
			logfields.Event("adding_issue_comment_failed"),
			zap.Error(err),
		)
	}
}
