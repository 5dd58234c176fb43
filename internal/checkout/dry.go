package checkout

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

// DryGit is a working copy that does not push commits upstream.
type DryGit struct {
	*Git
	logger *zap.Logger
}

func NewDryGit(g *Git) *DryGit {
	return &DryGit{
		Git:    g,
		logger: g.logger.Named("dry"),
	}
}

func (g *DryGit) Push(context.Context) error {
	g.logger.Info(
		"simulated pushing branch",
		logfields.Event("dry_run_push"),
	)

	return nil
}
