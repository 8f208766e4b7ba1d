// Package operation is the Operation Surface (spec §6): the facade the
// runtime calls into, composing the Memory Manager, Knowledge Store,
// Constraint Engine and Sync Bridge behind the exact method contracts
// spec §6 names, and applying the retry policy of spec §5 uniformly
// across all of them.
package operation

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mkc-dev/mkc/internal/mkcerr"
)

// retry wraps fn with spec §5's policy: exponential backoff with
// jitter, capped at 3 attempts, applied only to errors
// mkcerr.Retryable reports true for. Non-retryable errors and success
// both return immediately on the first attempt.
func retry(ctx context.Context, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.5
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, 2), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !mkcerr.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
