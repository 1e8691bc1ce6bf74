package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDetectCarrier_UPS verifies UPS tracking number classification.
func TestDetectCarrier_UPS(t *testing.T) {
	assert.Equal(t, CarrierUPS, DetectCarrier("1Z999AA10123456784"))
	assert.Equal(t, CarrierUPS, DetectCarrier("T1234567890"))
	assert.Equal(t, CarrierUPS, DetectCarrier("123456789"))
	assert.Equal(t, CarrierUPS, DetectCarrier("R123456789"))
}

// TestDetectCarrier_USPS verifies USPS tracking number classification.
func TestDetectCarrier_USPS(t *testing.T) {
	assert.Equal(t, CarrierUSPS, DetectCarrier("9400111899561704681189"))
	assert.Equal(t, CarrierUSPS, DetectCarrier("EA123456789US"))
	assert.Equal(t, CarrierUSPS, DetectCarrier("12345678901234567890"))
}

// TestDetectCarrier_DHL verifies DHL tracking number classification.
func TestDetectCarrier_DHL(t *testing.T) {
	assert.Equal(t, CarrierDHL, DetectCarrier("1234567890"))
	assert.Equal(t, CarrierDHL, DetectCarrier("JD123456789012345678"))
	// Spaced DHL express form normalizes before matching.
	assert.Equal(t, CarrierDHL, DetectCarrier("1234 5678 90"))
}

// TestDetectCarrier_Unknown verifies unsupported formats fall through.
func TestDetectCarrier_Unknown(t *testing.T) {
	assert.Equal(t, CarrierUnknown, DetectCarrier(""))
	assert.Equal(t, CarrierUnknown, DetectCarrier("INVALID123"))
	assert.Equal(t, CarrierUnknown, DetectCarrier("1Zshort"))
}

// TestDetectCarrier_Deterministic verifies classification is stable across calls.
func TestDetectCarrier_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, CarrierUPS, DetectCarrier("1Z999AA10123456784"))
		assert.Equal(t, CarrierUSPS, DetectCarrier("9400111899561704681189"))
	}
}

// TestNormalizeTrackingNumber verifies cleanup of user-entered identifiers.
func TestNormalizeTrackingNumber(t *testing.T) {
	assert.Equal(t, "1Z999AA10123456784", NormalizeTrackingNumber("  1z999aa10123456784 "))
	assert.Equal(t, "1234567890", NormalizeTrackingNumber("1234 5678 90"))
}

// TestValidTrackingNumber verifies the validity shortcut.
func TestValidTrackingNumber(t *testing.T) {
	assert.True(t, ValidTrackingNumber("1Z999AA10123456784"))
	assert.False(t, ValidTrackingNumber("not-a-number"))
}
