package resolver

import (
	"context"
	"errors"
	"time"

	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"
	"package-tracker/internal/features/tracking/normalizer"
	"package-tracker/internal/features/tracking/ports"

	"go.uber.org/zap"
)

// EstimateResolver resolves a delivery estimate through an ordered fallback
// chain: the estimate embedded in the tracking payload, then the carrier's
// transit-time API, then nothing. Every strategy degrades silently; an
// absent estimate is a valid outcome, never an error.
type EstimateResolver struct {
	origin         domain.RawAddress
	transitEnabled bool
	logger         *zap.Logger
}

// NewEstimateResolver creates an EstimateResolver. origin is the shipper
// address used for transit-time lookups; transitEnabled gates the second
// strategy so deployments without transit API entitlements skip it.
func NewEstimateResolver(origin domain.RawAddress, transitEnabled bool) *EstimateResolver {
	return &EstimateResolver{
		origin:         origin,
		transitEnabled: transitEnabled,
		logger:         logger.Get(),
	}
}

// Resolve walks the fallback chain and returns the first estimate found, or
// nil when every strategy comes up empty.
func (r *EstimateResolver) Resolve(ctx context.Context, adapter ports.CarrierAdapter, payload *domain.RawTrackingPayload) *time.Time {
	if payload == nil {
		return nil
	}

	if est := r.fromPayload(adapter.Carrier(), payload); est != nil {
		return est
	}
	if est := r.fromTransitTimes(ctx, adapter, payload); est != nil {
		return est
	}
	return nil
}

// fromPayload parses the carrier-embedded estimate with the carrier's own
// date formats.
func (r *EstimateResolver) fromPayload(carrier domain.Carrier, payload *domain.RawTrackingPayload) *time.Time {
	if payload.DeliveryEstimate == "" {
		return nil
	}
	est := normalizer.ParseTimestamp(carrier, payload.DeliveryEstimate)
	if est == nil {
		r.logger.Debug("embedded delivery estimate not parseable",
			zap.String("carrier", string(carrier)),
			zap.String("raw", payload.DeliveryEstimate),
		)
	}
	return est
}

// fromTransitTimes asks the carrier's transit-time API when enabled and both
// postal codes are known. Failures log at Debug and fall through.
func (r *EstimateResolver) fromTransitTimes(ctx context.Context, adapter ports.CarrierAdapter, payload *domain.RawTrackingPayload) *time.Time {
	if !r.transitEnabled {
		return nil
	}
	if r.origin.PostalCode == "" || payload.Destination.PostalCode == "" {
		return nil
	}

	est, err := adapter.EstimateTransit(ctx, r.origin, payload.Destination)
	if err != nil {
		if !errors.Is(err, domain.ErrUnsupportedOperation) {
			r.logger.Debug("transit-time estimate failed",
				zap.String("carrier", string(adapter.Carrier())),
				zap.Error(err),
			)
		}
		return nil
	}
	return est
}
