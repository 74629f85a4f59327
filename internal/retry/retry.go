package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrTooManyAttempts = errors.New("too many retry attempts")

// Callable returns an error wrapped with Error to ask for another attempt,
// any other error aborts the loop immediately.
type Callable func(attempt int) error

type retryableError struct {
	error
	attempt int
}

func (e *retryableError) Unwrap() error { return e.error }

func Error(err error, attempt int) error {
	if err == nil {
		return nil
	}
	return &retryableError{error: err, attempt: attempt}
}

func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

type Attempts interface {
	Next() (time.Duration, bool)
	Current() int
}

func Run(ctx context.Context, a Attempts, cb Callable) error {
	for {
		err := cb(a.Current())
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return errors.Wrapf(err, "attempt %d failed", a.Current())
		}

		next, stop := a.Next()
		if stop {
			return errors.Wrapf(ErrTooManyAttempts, "last error: %v", errors.Unwrap(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
	}
}

// Incremental waits step, 2*step, 3*step... between attempts
func Incremental(ctx context.Context, step time.Duration, maxAttempts int, cb Callable) error {
	return Run(ctx, IncrementalAttempts(step, maxAttempts), cb)
}

type incrementalAttempts struct {
	prev time.Duration
	step time.Duration
	max  int
	curr int
}

func (a *incrementalAttempts) Next() (time.Duration, bool) {
	a.curr++
	if a.curr > a.max {
		return 0, true
	}

	a.prev += a.step
	return a.prev, false
}

func (a *incrementalAttempts) Current() int {
	return a.curr
}

func IncrementalAttempts(step time.Duration, max int) Attempts {
	if max < 1 {
		max = 1
	}

	return &incrementalAttempts{step: step, max: max, curr: 1}
}
