package ports

import (
	"context"
	"time"

	"package-tracker/internal/features/tracking/domain"
)

// CarrierAdapter is the interface each carrier integration implements.
// Implementations own their authentication lifecycle: a process-wide token
// session with expiry, refreshed under a single-writer discipline, never
// persisted to the store.
type CarrierAdapter interface {
	// Carrier identifies which carrier this adapter serves.
	Carrier() domain.Carrier

	// Fetch retrieves the raw tracking payload for one identifier.
	// Error contract: *domain.AuthError after a failed refresh-and-retry,
	// *domain.NotFoundError for unrecognized identifiers,
	// *domain.TransientError once backoff is exhausted,
	// *domain.ParseError for unexpected payload shapes.
	Fetch(ctx context.Context, trackingNumber string) (*domain.RawTrackingPayload, error)

	// EstimateTransit asks the carrier for a transit-time based delivery
	// estimate. Carriers without such an API return
	// domain.ErrUnsupportedOperation.
	EstimateTransit(ctx context.Context, origin, destination domain.RawAddress) (*time.Time, error)

	// ValidateAddress validates a destination address with the carrier.
	// Carriers without a validation API return domain.ErrUnsupportedOperation.
	ValidateAddress(ctx context.Context, destination domain.RawAddress) (string, error)
}
