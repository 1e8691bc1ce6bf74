package resolver

import (
	"context"
	"errors"

	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"
	"package-tracker/internal/features/tracking/ports"

	"go.uber.org/zap"
)

// AddressValidator enriches a record with a carrier-validated destination
// address. Strictly best-effort: disabled deployments, carriers without a
// validation API and upstream failures all produce an empty string, never an
// error, and never block the status pipeline.
type AddressValidator struct {
	enabled bool
	logger  *zap.Logger
}

// NewAddressValidator creates an AddressValidator.
func NewAddressValidator(enabled bool) *AddressValidator {
	return &AddressValidator{enabled: enabled, logger: logger.Get()}
}

// Validate runs the payload destination through the carrier when possible.
func (v *AddressValidator) Validate(ctx context.Context, adapter ports.CarrierAdapter, payload *domain.RawTrackingPayload) string {
	if !v.enabled || payload == nil || !payload.Destination.HasData() {
		return ""
	}

	validated, err := adapter.ValidateAddress(ctx, payload.Destination)
	if err != nil {
		if !errors.Is(err, domain.ErrUnsupportedOperation) {
			v.logger.Debug("address validation failed",
				zap.String("carrier", string(adapter.Carrier())),
				zap.Error(err),
			)
		}
		return ""
	}
	return validated
}
