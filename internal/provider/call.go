package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// caller applies throttling, retries and metrics around one provider operation.
type caller struct {
	opts     Options
	provider string
}

// call runs fn until it succeeds, fails permanently or exhausts the retry budget.
// Only rate limited and transport failures are retried. fn must return errors
// built with newError.
func call[T any](ctx context.Context, c *caller, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	attempt := 0

	operation := func() (T, error) {
		attempt++
		var zero T

		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		var perr *Error
		if errors.As(err, &perr) && perr.retryable() {
			slog.WarnContext(ctx, "provider call failed, retrying",
				"provider", c.provider,
				"operation", op,
				"attempt", attempt,
				"kind", perr.Kind,
				"error", err,
			)
			return zero, err
		}
		return zero, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInitialInterval

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.MaxRetries+1)),
	)

	if c.opts.Recorder != nil {
		c.opts.Recorder.ObserveProviderCall(c.provider, op, outcome(err), time.Since(start))
	}
	return v, err
}
