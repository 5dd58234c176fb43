package retryer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/commitqueue/internal/cqerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRetryerDefaultTimeout(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := New()
	t.Cleanup(r.Stop)

	r.defTimeout = time.Second
	r.backoffInitialInterval = 100 * time.Millisecond

	err := r.Run(context.Background(), func(context.Context) error {
		return cqerr.Retryable(errors.New("err"))
	}, nil)

	assert.ErrorIsf(t, err, context.DeadlineExceeded, "err: %+v", err)
}

func TestNonRetryableErrorIsReturnedImmediately(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := New()
	t.Cleanup(r.Stop)

	var calls int
	wantErr := errors.New("bad request")

	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	}, nil)

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestSucceedsAfterRetry(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := New()
	r.backoffInitialInterval = 10 * time.Millisecond
	t.Cleanup(r.Stop)

	var calls int
	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return cqerr.Retryable(errors.New("unavailable"))
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryAfterInThePast(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := New()
	r.backoffInitialInterval = 100 * time.Millisecond
	t.Cleanup(r.Stop)

	ctx, cancelFunc := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelFunc()

	var retryTimes []time.Time

	err := r.Run(ctx, func(context.Context) error {
		retryTimes = append(retryTimes, time.Now())
		return cqerr.RetryableAfter(errors.New("err"), time.Now().Add(-time.Second))
	}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.GreaterOrEqual(t, len(retryTimes), 2)

	for i := 1; i < len(retryTimes); i++ {
		d := retryTimes[i].Sub(retryTimes[i-1])
		require.GreaterOrEqualf(t, d, minInterval(r),
			"time between retry %d and %d is %s, expected >=%s",
			i-1, i, d, minInterval(r),
		)
	}
}

func TestStopAbortsRun(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := New()
	r.backoffInitialInterval = time.Hour

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(context.Background(), func(context.Context) error {
			return cqerr.Retryable(errors.New("err"))
		}, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	r.Stop()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func minInterval(retryer *Retryer) time.Duration {
	return time.Duration(math.Floor(float64(retryer.backoffInitialInterval) * (1 - retryer.backoffRandomizationFactor)))
}
