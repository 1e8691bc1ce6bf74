package domain

import (
	"errors"
	"fmt"
)

// ErrUnsupportedOperation is returned by adapters for capabilities a carrier
// does not expose (e.g. transit-time estimates). Callers degrade silently.
var ErrUnsupportedOperation = errors.New("operation not supported by carrier")

// AuthError indicates a credential or token failure. The adapter retries the
// refresh once before surfacing it; after that the carrier is skipped for the
// rest of the run.
type AuthError struct {
	Carrier Carrier
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Carrier, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError indicates the carrier does not recognize the tracking number.
// Non-fatal: the record is marked UNKNOWN rather than dropped.
type NotFoundError struct {
	Carrier        Carrier
	TrackingNumber string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s does not recognize tracking number %s", e.Carrier, e.TrackingNumber)
}

// TransientError indicates a rate-limit or upstream outage that survived
// bounded backoff. The prior persisted value stays untouched.
type TransientError struct {
	Carrier Carrier
	Status  int
	Err     error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transient failure: %v", e.Carrier, e.Err)
	}
	return fmt.Sprintf("%s transient failure: status %d", e.Carrier, e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ParseError indicates an unexpected payload shape. Logged; the affected
// fields stay unresolved and the run continues.
type ParseError struct {
	Carrier Carrier
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s payload parse failed: %v", e.Carrier, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreWriteError indicates the bulk store write failed after bounded retry.
// Fatal for the run; the store stays at its last committed batch.
type StoreWriteError struct {
	Attempts int
	Err      error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
