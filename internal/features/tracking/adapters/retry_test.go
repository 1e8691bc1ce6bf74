package adapter

import (
	"context"
	"net/http"
	"testing"

	"package-tracker/internal/features/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDoWithBackoff_SucceedsAfterRateLimit verifies a 429 is retried.
func TestDoWithBackoff_SucceedsAfterRateLimit(t *testing.T) {
	calls := 0
	err := doWithBackoff(context.Background(), domain.CarrierUPS, func() (int, error) {
		calls++
		if calls == 1 {
			return http.StatusTooManyRequests, nil
		}
		return http.StatusOK, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

// TestDoWithBackoff_TerminalErrorNotRetried verifies non-retryable statuses
// surface immediately.
func TestDoWithBackoff_TerminalErrorNotRetried(t *testing.T) {
	calls := 0
	notFound := &domain.NotFoundError{Carrier: domain.CarrierUPS, TrackingNumber: "X"}
	err := doWithBackoff(context.Background(), domain.CarrierUPS, func() (int, error) {
		calls++
		return http.StatusNotFound, notFound
	})

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, calls)
}

// TestDoWithBackoff_ExhaustsIntoTransient verifies persistent 5xx becomes a
// TransientError once attempts run out.
func TestDoWithBackoff_ExhaustsIntoTransient(t *testing.T) {
	calls := 0
	err := doWithBackoff(context.Background(), domain.CarrierDHL, func() (int, error) {
		calls++
		return http.StatusServiceUnavailable, nil
	})

	var te *domain.TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.CarrierDHL, te.Carrier)
	assert.Equal(t, http.StatusServiceUnavailable, te.Status)
	assert.Equal(t, maxFetchAttempts, calls)
}

// TestDoWithBackoff_ContextCancelStopsRetrying verifies cancellation wins
// over the backoff sleep.
func TestDoWithBackoff_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := doWithBackoff(ctx, domain.CarrierUSPS, func() (int, error) {
		calls++
		cancel()
		return http.StatusTooManyRequests, nil
	})

	var te *domain.TransientError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, te.Err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(http.StatusTooManyRequests))
	assert.True(t, retryable(http.StatusInternalServerError))
	assert.True(t, retryable(http.StatusBadGateway))
	assert.False(t, retryable(http.StatusOK))
	assert.False(t, retryable(http.StatusNotFound))
	assert.False(t, retryable(http.StatusUnauthorized))
}
