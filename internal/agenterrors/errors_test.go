package agenterrors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKindOfUnwrapsThroughStdlibWrap(t *testing.T) {
	t.Parallel()
	base := New(KindTransport, "dial failed", errors.New("connection refused"))
	wrapped := errors.Join(base)
	require.Equal(t, KindTransport, KindOf(wrapped))
}

func TestIsRetryableOnlyForTransport(t *testing.T) {
	t.Parallel()
	require.True(t, IsRetryable(New(KindTransport, "x", nil)))
	require.False(t, IsRetryable(New(KindProtocol, "x", nil)))
	require.False(t, IsRetryable(nil))
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(KindTransport, "flaky", nil)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryStopsImmediatelyOnNonRetryable(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		return New(KindProtocol, "bad input", nil)
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(2, 10*time.Millisecond)
	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())
	require.False(t, cb.Allow())

	time.Sleep(15 * time.Millisecond)
	require.True(t, cb.Allow())
	require.Equal(t, CircuitHalfOpen, cb.State())
	cb.RecordSuccess()
	require.Equal(t, CircuitClosed, cb.State())
}
