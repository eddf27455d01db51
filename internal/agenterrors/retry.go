package agenterrors

import (
	"context"
	"time"
)

// RetryConfig configures the constant-backoff retry SPEC_FULL §7 mandates
// for Transport failures ("retried up to max_retries with constant
// backoff between iterations").
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// RetryableFunc is a unit of work that may fail transiently.
type RetryableFunc func(ctx context.Context) error

// Retry runs fn, retrying up to cfg.MaxRetries additional times with a
// constant delay between attempts whenever the returned error is
// IsRetryable. Any non-retryable error, or context cancellation, returns
// immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn RetryableFunc) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return New(KindCancellation, "retry aborted by context", err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return New(KindCancellation, "retry aborted by context", ctx.Err())
		case <-time.After(cfg.Backoff):
		}
	}
	return lastErr
}
