package domain

import (
	"regexp"
	"strings"
)

// Carrier identifies the shipping carrier that issued a tracking number.
type Carrier string

const (
	CarrierUPS     Carrier = "UPS"
	CarrierUSPS    Carrier = "USPS"
	CarrierDHL     Carrier = "DHL"
	CarrierUnknown Carrier = "UNKNOWN"
)

// carrierPatterns maps each carrier to the lexical patterns of its tracking
// numbers. Order matters: UPS is checked first because its 9-digit form would
// otherwise be swallowed by broader numeric patterns.
var carrierPatterns = []struct {
	carrier  Carrier
	patterns []*regexp.Regexp
}{
	{
		carrier: CarrierUPS,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^1Z[0-9A-Z]{16}$`), // standard 1Z form
			regexp.MustCompile(`^T\d{10}$`),        // Mail Innovations
			regexp.MustCompile(`^\d{9}$`),
			regexp.MustCompile(`^\d{12}$`), // freight
			regexp.MustCompile(`^[HVRU]\d{9}$`),
		},
	},
	{
		carrier: CarrierUSPS,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^9[0-9]{15,21}$`), // Intelligent Mail
			regexp.MustCompile(`^[A-Z]{2}[0-9]{9}US$`),
			regexp.MustCompile(`^[0-9]{20}$`),
			regexp.MustCompile(`^([A-Z]{2})?[0-9]{13}$`),
		},
	},
	{
		carrier: CarrierDHL,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^[0-9]{10,11}$`), // express
			regexp.MustCompile(`^JD[0-9]{18}$`),  // eCommerce
		},
	},
}

// DetectCarrier classifies a tracking number by its lexical pattern.
// Classification is deterministic: the same input always yields the same
// carrier. Unrecognized formats return CarrierUnknown.
func DetectCarrier(trackingNumber string) Carrier {
	cleaned := NormalizeTrackingNumber(trackingNumber)
	if cleaned == "" {
		return CarrierUnknown
	}

	for _, entry := range carrierPatterns {
		for _, pattern := range entry.patterns {
			if pattern.MatchString(cleaned) {
				return entry.carrier
			}
		}
	}

	return CarrierUnknown
}

// NormalizeTrackingNumber strips whitespace and upper-cases a tracking number
// so the same physical identifier always maps to the same key.
func NormalizeTrackingNumber(trackingNumber string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(trackingNumber), " ", ""))
}

// ValidTrackingNumber reports whether the identifier matches any supported
// carrier pattern.
func ValidTrackingNumber(trackingNumber string) bool {
	return DetectCarrier(trackingNumber) != CarrierUnknown
}
