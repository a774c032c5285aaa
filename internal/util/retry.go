package util

import (
	"context"
	"errors"
	"time"
)

// RetryErrWithContext calls fn up to maxTries times without delay until it
// returns nil error, or until ctx is done. If maxTries <= 0, it defaults
// to 1. Returns the last error if all attempts fail.
func RetryErrWithContext(ctx context.Context, maxTries int, fn func(context.Context) error) error {
	if maxTries <= 0 {
		maxTries = 1
	}

	var lastErr error
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func sleepBackoff(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryBackoffErrWithContext calls fn up to maxTries times until it returns
// nil error, sleeping between attempts. The first delay is initialDelay and
// doubles after every failed attempt.
func RetryBackoffErrWithContext(
	ctx context.Context,
	maxTries int,
	initialDelay time.Duration,
	fn func(context.Context) error,
) error {
	if maxTries <= 0 {
		maxTries = 1
	}

	delay := initialDelay
	var lastErr error
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err

		if i < maxTries-1 {
			if err := sleepBackoff(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
	}
	return lastErr
}

// RetryBackoffWithContext is RetryBackoffErrWithContext for functions
// returning a result.
func RetryBackoffWithContext[T any](
	ctx context.Context,
	maxTries int,
	initialDelay time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}

	delay := initialDelay
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err

		if i < maxTries-1 {
			if err := sleepBackoff(ctx, delay); err != nil {
				return zero, err
			}
			delay *= 2
		}
	}
	return zero, lastErr
}

// RetryBackoff2WithContext is RetryBackoffErrWithContext for functions
// returning two results.
func RetryBackoff2WithContext[A, B any](
	ctx context.Context,
	maxTries int,
	initialDelay time.Duration,
	fn func(context.Context) (A, B, error),
) (A, B, error) {
	if maxTries <= 0 {
		maxTries = 1
	}

	delay := initialDelay
	var lastErr error
	var zeroA A
	var zeroB B
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zeroA, zeroB, ctx.Err()
		}
		a, b, err := fn(ctx)
		if err == nil {
			return a, b, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zeroA, zeroB, err
		}
		lastErr = err

		if i < maxTries-1 {
			if err := sleepBackoff(ctx, delay); err != nil {
				return zeroA, zeroB, err
			}
			delay *= 2
		}
	}
	return zeroA, zeroB, lastErr
}
