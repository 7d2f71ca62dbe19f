package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 50 * time.Millisecond
	DefaultRetryMaxDelay  = 1 * time.Second
)

// RetryPolicy bounds how RunWithRetry re-runs a unit of work.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used by repositories unless overridden.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultRetryAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
		MaxDelay:    DefaultRetryMaxDelay,
	}
}

// RunWithRetry runs fn up to policy.MaxAttempts times. Transient failures are
// retried after a short backoff; any other failure is returned immediately.
// The first successful result is returned. Retries are paced by m's limiter so
// a degraded store is not hot-looped by many callers at once; m may be nil.
func RunWithRetry[T any](ctx context.Context, m *Manager, policy RetryPolicy, operation string, fn func() (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	maxAttempts := max(policy.MaxAttempts, 1)
	backoff := policy.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && m != nil && m.retryLimiter != nil {
			if err := m.retryLimiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		value, err := fn()
		if err == nil {
			return value, nil
		}

		lastErr = classify(err)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if !IsTransient(lastErr) || attempt == maxAttempts {
			return zero, lastErr
		}

		wait := backoff
		if wait <= 0 {
			wait = DefaultRetryBaseDelay
		}

		log.Warn().
			Err(lastErr).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Store operation failed; retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		if policy.MaxDelay > 0 {
			backoff = min(backoff*2, policy.MaxDelay)
		} else {
			backoff *= 2
		}
	}

	return zero, lastErr
}
