package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// RetryPolicy bounds the retries of a single provider call. Only errors
// classified as driven.ErrTransient are retried.
type RetryPolicy struct {
	Attempts        int           // Total attempts including the first; <=0 means 1.
	InitialInterval time.Duration // First backoff; <=0 means 2s.
	MaxInterval     time.Duration // Backoff cap; <=0 means 1m.
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        5,
		InitialInterval: 2 * time.Second,
		MaxInterval:     time.Minute,
	}
}

// newBackOff builds an exponential backoff with jitter limited to the
// policy's attempt count and bound to ctx.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 2 * time.Second
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	eb.MaxInterval = time.Minute
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	eb.Reset()

	attempts := max(p.Attempts, 1)
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

// retryCall runs fn under policy p. Transient failures are retried with
// backoff; any other error, including context cancellation, returns at once.
// On exhaustion the last transient error is returned.
func retryCall[T any](ctx context.Context, p RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	operation := func() (T, error) {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !errors.Is(err, driven.ErrTransient) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("retrying provider call",
			"op", op,
			"error", err,
			"backoff", wait.Round(time.Millisecond),
		)
	}

	return backoff.RetryNotifyWithData(operation, p.newBackOff(ctx), notify)
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
