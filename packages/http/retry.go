package http

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
)

// RetryPolicy configures WithRetry. The wait after failed attempt k is
// InitialDelay*k: linear, no jitter, no cap.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration

	// RetryIf, when set, stops retrying as soon as it returns false for a
	// failure. Nil retries every failure.
	RetryIf func(err error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
	}
}

// Delay returns the wait after the given 1-indexed failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.InitialDelay * time.Duration(attempt)
}

// WithRetry runs op up to policy.MaxAttempts times and returns the first
// success. When every attempt fails the last error is returned as is.
//
// A MaxAttempts below 1 is rejected with a *RequestSetupError before op
// runs. If ctx ends during a backoff wait, the returned error joins
// ctx.Err() with the last failure.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts < 1 {
		return zero, &RequestSetupError{
			Message: fmt.Sprintf("retry: maxAttempts must be at least 1, got %d", policy.MaxAttempts),
		}
	}

	sleep := policy.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		if policy.RetryIf != nil && !policy.RetryIf(err) {
			break
		}
		if werr := sleep(ctx, policy.Delay(attempt)); werr != nil {
			return zero, errors.Join(werr, lastErr)
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
