package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/buildbot"
	"github.com/simplesurance/commitqueue/internal/cfg"
	"github.com/simplesurance/commitqueue/internal/checkout"
	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/pending"
	"github.com/simplesurance/commitqueue/internal/persist"
	"github.com/simplesurance/commitqueue/internal/retryer"
	"github.com/simplesurance/commitqueue/internal/rietveld"
	"github.com/simplesurance/commitqueue/internal/status"
	"github.com/simplesurance/commitqueue/internal/tryjob"
	"github.com/simplesurance/commitqueue/internal/verification"
	"github.com/simplesurance/commitqueue/internal/verification/projectbase"
	"github.com/simplesurance/commitqueue/internal/verification/reviewer"
	"github.com/simplesurance/commitqueue/internal/verification/treestatus"
)

// app holds the components of a running commit queue.
type app struct {
	config  *cfg.Config
	manager *pending.Manager
	pusher  *status.Pusher
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type reviewClient interface {
	pending.ReviewClient
	tryjob.ReviewClient
}

type gitCheckout interface {
	pending.Checkout
	tryjob.RevisionSource
	tryjob.RevisionFilter
}

func mustLoadPolicy(path string) []tryjob.StepVerifier {
	f, err := os.Open(path)
	exitOnErr("could not open try job policy file", err)
	defer f.Close()

	policies, err := cfg.LoadPolicy(f)
	exitOnErr(fmt.Sprintf("could not load try job policy file: %s", path), err)

	return policies
}

func mustInitStatusSinks(ctx context.Context, a *app) []status.Sink {
	var sinks []status.Sink

	config := a.config.Status

	if config.Log {
		sinks = append(sinks, status.NewLogSink())
	}

	if config.HTTP.URL != "" {
		hdrs, err := config.HTTP.ParsedHeaders()
		exitOnErr("parsing status http headers failed", err)

		sink, err := status.NewHTTPSink(config.HTTP.URL, config.HTTP.User, config.HTTP.Password, hdrs)
		exitOnErr("creating http status sink failed", err)

		sinks = append(sinks, sink)
	}

	if config.Postgres.DSN != "" {
		sink, closeFn, err := status.NewPostgresSink(ctx, config.Postgres.DSN)
		exitOnErr("creating postgres status sink failed", err)

		a.closers = append(a.closers, closeFn)
		sinks = append(sinks, sink)
	}

	if config.PubSub.Topic != "" {
		sink, err := status.NewPubSubSink(ctx, config.PubSub.Project, config.PubSub.Topic)
		exitOnErr("creating pubsub status sink failed", err)

		a.closers = append(a.closers, func() {
			if err := sink.Close(); err != nil {
				logger.Warn(
					"closing pubsub client failed",
					logfields.Event("pubsub_close_failed"),
					zap.Error(err),
				)
			}
		})
		sinks = append(sinks, sink)
	}

	return sinks
}

func mustInitApp(ctx context.Context, config *cfg.Config) *app {
	a := app{config: config}

	stepVerifiers := mustLoadPolicy(config.TryJobs.PolicyFile)

	rvClt, err := rietveld.New(config.Review.URL, config.Review.APIToken)
	exitOnErr("creating review client failed", err)

	gridClt, err := buildbot.New(config.Grid.URL)
	exitOnErr("creating grid client failed", err)

	git, err := checkout.Open(ctx, &checkout.Options{
		URL:                config.Checkout.URL,
		Branch:             config.Checkout.Branch,
		Path:               config.Checkout.Path,
		Username:           config.Checkout.Username,
		Password:           config.Checkout.Password,
		CommitterName:      config.Checkout.CommitterName,
		CommitterEmail:     config.Checkout.CommitterEmail,
		MaxRevisionsBehind: config.Checkout.MaxRevisionsBehind,
	})
	exitOnErr("opening repository checkout failed", err)

	var review reviewClient = rvClt
	var co gitCheckout = git

	if config.DryRun {
		review = rietveld.NewDryClient(rvClt, logger)
		co = checkout.NewDryGit(git)
		logger.Info("dry run mode enabled", logfields.Event("dry_run_enabled"))
	}

	projectVerifier, err := projectbase.New(config.Project.BaseURLs, config.Project.FilterQuery)
	exitOnErr("creating project base verifier failed", err)

	reviewerVerifier, err := reviewer.New(config.Reviewers.Committers)
	exitOnErr("creating reviewer verifier failed", err)

	prePatch := []verification.Verifier{projectVerifier, reviewerVerifier}

	var postPatch []verification.Verifier

	if config.TreeStatus.URL != "" {
		tsClt, err := treestatus.NewClient(config.TreeStatus.URL)
		exitOnErr("creating tree status client failed", err)

		postPatch = append(postPatch, treestatus.New(tsClt, config.TreeStatus.MaxClosedWaitDuration()))
	}

	postPatch = append(postPatch, tryjob.NewRunner(
		review,
		gridClt,
		co,
		co,
		stepVerifiers,
		tryjob.Options{
			MaxTries:         config.TryJobs.MaxTries,
			PropagationDelay: config.TryJobs.PropagationDelayDuration(),
			PendingTimeout:   config.TryJobs.PendingTimeoutDuration(),
			Clobber:          config.TryJobs.Clobber,
			Reason:           config.TryJobs.Reason,
		},
	))

	a.pusher = status.NewPusher(retryer.New(), mustInitStatusSinks(ctx, &a)...)

	a.manager = pending.NewManager(
		review,
		co,
		a.pusher,
		prePatch,
		postPatch,
		pending.NewBurstLimiter(config.Commit.MaxBurst, config.Commit.BurstDelayDuration(), time.Now),
	)

	err = a.manager.Load(config.StateFile)
	exitOnErr("loading state failed", err)

	return &a
}

// cycle runs one poll cycle and persists the queue afterwards.
func (a *app) cycle(ctx context.Context) {
	err := a.manager.Cycle(ctx)
	if err != nil {
		logger.Warn(
			"poll cycle finished with errors",
			logfields.Event("cycle_failed"),
			zap.Error(err),
		)
	} else {
		logger.Debug("poll cycle finished", logfields.Event("cycle_finished"))
	}

	if err := a.manager.Save(a.config.StateFile); err != nil {
		logger.Error(
			"persisting state failed",
			logfields.Event("state_save_failed"),
			zap.Error(err),
		)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run poll cycles until a termination signal is received",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			config := mustParseCfg()
			mustInitLogger(config)
			logCfg(config)

			ctx, cancelFn := context.WithCancel(context.Background())
			a := mustInitApp(ctx, config)

			a.pusher.Start()
			startHTTPServer(config.HTTPListenAddr, newHTTPMux(a.manager))

			done := make(chan struct{})

			goodbye.Register(func(_ context.Context, sig os.Signal) {
				logger.Info(
					fmt.Sprintf("terminating, received signal %s", sig.String()),
					logfields.Event("terminating"),
				)

				cancelFn()
				<-done

				a.pusher.Stop()
				a.close()
			})

			defer close(done)

			ticker := time.NewTicker(config.PollIntervalDuration())
			defer ticker.Stop()

			for {
				a.cycle(ctx)

				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		},
	}
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and exit",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			config := mustParseCfg()
			mustInitLogger(config)
			logCfg(config)

			ctx := context.Background()
			a := mustInitApp(ctx, config)
			a.pusher.Start()

			a.cycle(ctx)

			a.pusher.Stop()
			a.close()
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the persisted pending queue and exit",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			config := mustParseCfg()

			q := pending.NewQueue()
			err := persist.LoadFile(config.StateFile, q)
			exitOnErr(fmt.Sprintf("could not load state file %s", config.StateFile), err)

			fmt.Print(pending.FormatQueue(q))
		},
	}
}
