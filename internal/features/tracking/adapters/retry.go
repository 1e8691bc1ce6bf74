package adapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"

	"go.uber.org/zap"
)

const (
	// maxFetchAttempts bounds the retry loop for rate limits and outages.
	maxFetchAttempts = 4
	baseBackoff      = 500 * time.Millisecond
)

// terminal reports whether an error carries its own contract and must never
// be swallowed by the retry loop.
func terminal(err error) bool {
	if err == nil {
		return false
	}
	var authErr *domain.AuthError
	var notFound *domain.NotFoundError
	var parseErr *domain.ParseError
	return errors.As(err, &authErr) || errors.As(err, &notFound) || errors.As(err, &parseErr)
}

// retryable reports whether a status code is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// doWithBackoff executes fn with bounded exponential backoff on 429 and 5xx
// responses. fn returns the HTTP status it observed (0 for transport errors).
// Once attempts are exhausted the last failure surfaces as a TransientError.
func doWithBackoff(ctx context.Context, carrier domain.Carrier, fn func() (int, error)) error {
	delay := baseBackoff
	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		status, err := fn()
		if err == nil && !retryable(status) {
			return nil
		}

		if terminal(err) {
			return err
		}

		lastStatus, lastErr = status, err
		if err != nil && status == 0 {
			// Transport-level failures (timeouts, resets) retry too.
		} else if !retryable(status) {
			return err
		}

		if attempt == maxFetchAttempts {
			break
		}

		logger.Get().Warn("carrier request backing off",
			zap.String("carrier", string(carrier)),
			zap.Int("status", status),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return &domain.TransientError{Carrier: carrier, Status: lastStatus, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return &domain.TransientError{Carrier: carrier, Status: lastStatus, Err: lastErr}
}
