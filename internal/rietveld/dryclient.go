package rietveld

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

// DryClient is a code review client that does not do any changes on the
// server.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to a wrapped Client.
type DryClient struct {
	*Client
	logger *zap.Logger
}

func NewDryClient(clt *Client, logger *zap.Logger) *DryClient {
	return &DryClient{
		Client: clt,
		logger: logger.Named("dry_review_client"),
	}
}

func (c *DryClient) TriggerTryJobs(_ context.Context, issue, patchset int, _ string, _ bool, revision string, builders map[string][]string) error {
	c.logger.Info(
		"simulated triggering of try jobs, no jobs scheduled",
		logfields.Issue(issue),
		logfields.Patchset(patchset),
		logfields.Revision(revision),
		zap.Any("builders", builders),
	)
	return nil
}

func (c *DryClient) SetFlag(_ context.Context, issue, _ int, flag string, value bool) error {
	c.logger.Info(
		"simulated setting issue flag, flag unchanged on server",
		logfields.Issue(issue),
		zap.String("flag", flag),
		zap.Bool("value", value),
	)
	return nil
}

func (c *DryClient) AddComment(_ context.Context, issue int, message string) error {
	c.logger.Info(
		"simulated adding of comment, no comment created on server",
		logfields.Issue(issue),
		zap.String("comment", message),
	)
	return nil
}

func (c *DryClient) UpdateDescription(_ context.Context, issue int, _ string) error {
	c.logger.Info("simulated updating of issue description", logfields.Issue(issue))
	return nil
}

func (c *DryClient) CloseIssue(_ context.Context, issue int) error {
	c.logger.Info("simulated closing of issue", logfields.Issue(issue))
	return nil
}
