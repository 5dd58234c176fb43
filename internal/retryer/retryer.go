// Package retryer runs operations repeatedly until they succeed, fail with a
// non-retryable error or a timeout expires.
package retryer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/cqerr"
	"github.com/simplesurance/commitqueue/internal/logfields"
)

// DefRetryTimeout is the maximum duration an operation is retried when the
// passed context has no earlier deadline.
const DefRetryTimeout = 10 * time.Minute

const loggerName = "retryer"

// Retryer executes a function repeatedly until it was successful or cancel
// condition happened.
type Retryer struct {
	logger       *zap.Logger
	shutdownChan chan struct{}

	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64
}

func New() *Retryer {
	return &Retryer{
		logger:                     zap.L().Named(loggerName),
		shutdownChan:               make(chan struct{}),
		defTimeout:                 DefRetryTimeout,
		backoffInitialInterval:     5 * time.Second,
		backoffRandomizationFactor: backoff.DefaultRandomizationFactor,
	}
}

func logFieldActionResult(val string) zap.Field {
	return zap.String("action_result", val)
}

// Run executes fn until it was successful, it returned an error that
// does not wrap cqerr.RetryableError, the retry timeout expired or the
// execution was aborted via the context.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	ctx, cancelFn := context.WithTimeout(ctx, r.defTimeout)
	defer cancelFn()

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		tryCnt++
		logger := r.logger.With(logF...).With(zap.Uint("try_count", tryCnt))

		select {
		case <-ctx.Done():
			logger.Info(
				"action execution cancelled",
				logfields.Event("action_execution_cancelled"),
				logFieldActionResult("cancelled"),
				zap.Error(ctx.Err()),
			)

			return ctx.Err()

		case <-retryTimer.C:
			err := fn(ctx)
			if err == nil {
				logger.Debug(
					"action executed successfully",
					logfields.Event("action_executed_successfully"),
					logFieldActionResult("success"),
				)

				return nil
			}

			logger = logger.With(zap.Error(err))

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info(
					"action cancelled",
					logfields.Event("action_cancelled"),
					logFieldActionResult("cancelled"),
				)

				return err
			}

			var retryError *cqerr.RetryableError
			if !errors.As(err, &retryError) {
				logger.Warn(
					"action failed, not retryable",
					logfields.Event("action_failed"),
					logFieldActionResult("failure"),
				)

				return err
			}

			if deadline, ok := ctx.Deadline(); ok && retryError.After.After(deadline) {
				logger.Warn(
					"action failed, next possible retry time is after timeout expiration",
					logfields.Event("action_failed"),
					zap.Time("earliest_allowed_retry", retryError.After),
				)

				return err
			}

			retryIn := bo.NextBackOff()
			if !retryError.After.IsZero() {
				if d := time.Until(retryError.After); d > retryIn {
					retryIn = d
				}
			}

			retryTimer.Reset(retryIn)
			logger.Info(
				"action failed, retry scheduled",
				logfields.Event("action_retry_scheduled"),
				zap.Duration("retry_in", retryIn),
			)

		case <-r.shutdownChan:
			logger.Info(
				"retryer terminating, action not executed",
				logfields.Event("action_execution_cancelled_retryer_terminated"),
				logFieldActionResult("cancelled"),
			)

			return errors.New("retryer was stopped")
		}
	}
}

// Stop notifies all Run() methods to terminate.
// It does not wait for their termination.
func (r *Retryer) Stop() {
	r.logger.Debug("retryer terminating", logfields.Event("retryer_terminating"))

	select {
	case <-r.shutdownChan:
		return // already closed
	default:
		close(r.shutdownChan)
	}
}
