// Package retry re-runs idempotent operations that failed with a transient store error.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/thereayou/loci-chat/internal/apperrors"
)

const (
	initialInterval = 50 * time.Millisecond
	maxInterval     = 500 * time.Millisecond
	maxElapsed      = 2 * time.Second
)

func policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = maxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(b, 4), ctx)
}

// Do runs op until it succeeds, fails with a non-transient error, or the
// retry budget runs out.
func Do(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !apperrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy(ctx))
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var out T
	err := Do(ctx, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
