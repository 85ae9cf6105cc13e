package core

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times. After a failed attempt it waits
// base<<attempt (1x, 2x, 4x, ...) before trying again; there is no wait after
// the last attempt. If every attempt fails and fallback is non-nil, the
// fallback result is returned instead of the last error.
func Retry[T any](ctx context.Context, attempts int, base time.Duration, fn func(context.Context) (T, error), fallback func(context.Context, error) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		if err := sleepCtx(ctx, base<<attempt); err != nil {
			lastErr = err
			break
		}
	}
	if fallback != nil {
		return fallback(ctx, lastErr)
	}
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
