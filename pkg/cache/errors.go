package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork marks a remote cache backend that could not be reached.
var ErrNetwork = errors.New("cache backend unreachable")

// RetryableError marks a transient failure worth retrying.
type RetryableError struct{ Err error }

// Retryable wraps err so RetryWithBackoff retries it. nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was wrapped by Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff schedule of RetryWithBackoff. Variables so tests can shorten them.
var (
	retryAttempts = 3
	retryDelay    = 200 * time.Millisecond
)

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable error,
// or the attempts run out. The delay doubles after each failure.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := retryDelay
	var lastErr error

	for i := 0; i < retryAttempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		if lastErr = err; !IsRetryable(err) {
			return err
		}
		if i < retryAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
