// Package cqerr provides error types shared by the commit queue packages.
package cqerr

import (
	"errors"
	"fmt"
	"time"
)

// RetryableError marks a transient failure, like an unreachable server or an
// exceeded rate limit. The state of a pending commit is never changed
// because of it, the operation is repeated later.
type RetryableError struct {
	Err error
	// After is the earliest time the operation should be repeated, zero
	// if there is no restriction.
	After time.Time
}

// Retryable wraps err in a RetryableError without a retry time.
func Retryable(err error) *RetryableError {
	return &RetryableError{Err: err}
}

// RetryableAfter wraps err in a RetryableError that should not be retried
// before after.
func RetryableAfter(err error, after time.Time) *RetryableError {
	return &RetryableError{Err: err, After: after}
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s (retry after %s)", e.Err, e.After.Format(time.RFC3339))
}

// IsRetryable returns true if a RetryableError is in the chain of err.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// RetryTime returns the After value of the first RetryableError in the
// chain of err. ok is false if err is not retryable.
func RetryTime(err error) (after time.Time, ok bool) {
	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		return time.Time{}, false
	}

	return retryErr.After, true
}
