package domain

import "time"

// Status is the canonical, carrier-agnostic shipment status.
type Status string

const (
	StatusInTransit      Status = "IN_TRANSIT"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusException      Status = "EXCEPTION"
	StatusPending        Status = "PENDING"
	StatusUnknown        Status = "UNKNOWN"
)

// ExceptionSeverity classifies non-standard delivery events.
type ExceptionSeverity string

const (
	SeverityNone          ExceptionSeverity = "NONE"
	SeverityInformational ExceptionSeverity = "INFORMATIONAL"
	SeverityWarning       ExceptionSeverity = "WARNING"
	SeverityCritical      ExceptionSeverity = "CRITICAL"
)

// HumanTimestampLayout is the single display format for scan timestamps,
// e.g. "April 18, 2025, 2:32 PM".
const HumanTimestampLayout = "January 2, 2006, 3:04 PM"

// HumanDateLayout is the display format for delivery estimates.
const HumanDateLayout = "January 2, 2006"

// TrackingRecord is the canonical unit of state, one per physical shipment.
type TrackingRecord struct {
	// TrackingNumber is the carrier-issued natural key; immutable.
	TrackingNumber string `json:"tracking_number"`
	// Carrier is derived from the tracking number format or source metadata.
	// Immutable once set, except UNKNOWN may be upgraded.
	Carrier Carrier `json:"carrier"`
	// Status is the canonical status; never left unset in the store.
	Status Status `json:"status"`
	// RawStatusText preserves the carrier's original status string for audit.
	RawStatusText string `json:"raw_status_text,omitempty"`
	// LastUpdate is the instant of the most recent scan event; nil when the
	// carrier timestamp could not be parsed.
	LastUpdate *time.Time `json:"last_update,omitempty"`
	// CurrentLocation is a free-text city/state or facility.
	CurrentLocation string `json:"current_location,omitempty"`
	// ValidatedAddress is an optional destination enrichment.
	ValidatedAddress string `json:"validated_address,omitempty"`
	// EstimatedDelivery is resolved via the estimate fallback chain.
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	// ExceptionSeverity is derived from RawStatusText classification.
	ExceptionSeverity ExceptionSeverity `json:"exception_severity"`
}

// FormatHumanTimestamp renders a scan instant in the display format used by
// the sheet, preserving the instant's own zone offset.
func FormatHumanTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(HumanTimestampLayout)
}

// FormatHumanDate renders a delivery estimate date for the sheet.
func FormatHumanDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(HumanDateLayout)
}

// RunSummary reports what a single polling run did, for operator visibility.
type RunSummary struct {
	// Processed is the number of persisted rows the run attempted.
	Processed int `json:"processed"`
	// Updated is the number of rows changed by reconciliation.
	Updated int `json:"updated"`
	// Unchanged is the number of rows reconciliation left alone.
	Unchanged int `json:"unchanged"`
	// Failed is the number of rows whose fetch failed and kept prior values.
	Failed int `json:"failed"`
}
