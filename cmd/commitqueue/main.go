package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/commitqueue/internal/cfg"
	"github.com/simplesurance/commitqueue/internal/logfields"
	"github.com/simplesurance/commitqueue/internal/pending"
)

const appName = "commitqueue"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func newHTTPMux(mgr *pending.Manager) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/queue", mgr.HTTPHandlerList)

	return mux
}

type arguments struct {
	Verbose     bool
	ConfigFile  string
	DryRun      bool
	ShowVersion bool
}

var args arguments

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(args.ConfigFile)
	exitOnErr("could not open configuration file", err)
	defer file.Close()

	config, err := cfg.Load(file)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", args.ConfigFile), err)

	err = config.Validate()
	exitOnErr(fmt.Sprintf("invalid configuration file: %s", args.ConfigFile), err)

	if args.DryRun {
		config.DryRun = true
	}

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func logCfg(config *cfg.Config) {
	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.String("state_file", config.StateFile),
		zap.Duration("poll_interval", config.PollIntervalDuration()),
		zap.Bool("dry_run", config.DryRun),
		zap.String("review_url", config.Review.URL),
		zap.String("review_api_token", hide(config.Review.APIToken)),
		zap.String("grid_url", config.Grid.URL),
		zap.String("checkout_url", config.Checkout.URL),
		zap.String("checkout_branch", config.Checkout.Branch),
		zap.String("checkout_path", config.Checkout.Path),
		zap.String("checkout_password", hide(config.Checkout.Password)),
		zap.Strings("project_base_urls", config.Project.BaseURLs),
		zap.String("tree_status_url", config.TreeStatus.URL),
		zap.Int("commit_max_burst", config.Commit.MaxBurst),
		zap.Duration("commit_burst_delay", config.Commit.BurstDelayDuration()),
		zap.String("tryjobs_policy_file", config.TryJobs.PolicyFile),
		zap.Int("tryjobs_max_tries", config.TryJobs.MaxTries),
		zap.String("status_postgres_dsn", hide(config.Status.Postgres.DSN)),
		zap.String("status_http_url", config.Status.HTTP.URL),
		zap.String("status_pubsub_topic", config.Status.PubSub.Topic),
	)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Verify code review issues and commit them when all checks passed",
		Run: func(cmd *cobra.Command, _ []string) {
			if args.ShowVersion {
				fmt.Printf("%s %s\n", appName, Version)
				return
			}

			_ = cmd.Help()
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&args.Verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVarP(&args.ConfigFile, "cfg-file", "c", cfg.DefConfigFile, "path to the configuration file")
	flags.BoolVar(&args.DryRun, "dry-run", false, "do not change anything on the review server, the grid or the repository")
	root.Flags().BoolVar(&args.ShowVersion, "version", false, "print the version and exit")

	root.AddCommand(newRunCmd(), newOnceCmd(), newShowCmd())

	return root
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1) // nolint:gocritic // defer functions won't run
	}

	goodbye.Exit(context.Background(), 0)
}
