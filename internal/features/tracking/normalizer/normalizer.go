package normalizer

import (
	"strings"
	"time"

	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"

	"go.uber.org/zap"
)

// Fields is the normalized slice of a TrackingRecord produced from one raw
// carrier payload.
type Fields struct {
	Status            domain.Status
	RawStatusText     string
	LastUpdate        *time.Time
	CurrentLocation   string
	ExceptionSeverity domain.ExceptionSeverity
}

// vocabRule maps a lowercase substring of a carrier's raw status text to the
// canonical status. Rules are checked in order; first match wins.
type vocabRule struct {
	match  string
	status domain.Status
}

// statusVocabulary holds the per-carrier raw status vocabulary. Unmapped raw
// values fall back to UNKNOWN and are logged so the tables can be maintained;
// they never cause a failure.
var statusVocabulary = map[domain.Carrier][]vocabRule{
	domain.CarrierUPS: {
		{"delivered", domain.StatusDelivered},
		{"out for delivery", domain.StatusOutForDelivery},
		{"exception", domain.StatusException},
		{"return to sender", domain.StatusException},
		{"returned to sender", domain.StatusException},
		{"address correction", domain.StatusException},
		{"in transit", domain.StatusInTransit},
		{"departed", domain.StatusInTransit},
		{"arrived", domain.StatusInTransit},
		{"on the way", domain.StatusInTransit},
		{"pickup scan", domain.StatusInTransit},
		{"origin scan", domain.StatusInTransit},
		{"order processed", domain.StatusPending},
		{"label created", domain.StatusPending},
		{"shipper created", domain.StatusPending},
	},
	domain.CarrierUSPS: {
		{"delivered", domain.StatusDelivered},
		{"out for delivery", domain.StatusOutForDelivery},
		{"alert", domain.StatusException},
		{"return to sender", domain.StatusException},
		{"undeliverable", domain.StatusException},
		{"in transit", domain.StatusInTransit},
		{"departed", domain.StatusInTransit},
		{"arrived", domain.StatusInTransit},
		{"accepted", domain.StatusInTransit},
		{"in/at mailbox", domain.StatusDelivered},
		{"pre-shipment", domain.StatusPending},
		{"shipping label created", domain.StatusPending},
	},
	domain.CarrierDHL: {
		{"delivered", domain.StatusDelivered},
		{"with delivery courier", domain.StatusOutForDelivery},
		{"out with courier", domain.StatusOutForDelivery},
		{"out for delivery", domain.StatusOutForDelivery},
		{"on hold", domain.StatusException},
		{"clearance event", domain.StatusException},
		{"returned", domain.StatusException},
		{"in transit", domain.StatusInTransit},
		{"departed facility", domain.StatusInTransit},
		{"arrived at", domain.StatusInTransit},
		{"processed at", domain.StatusInTransit},
		{"shipment picked up", domain.StatusInTransit},
		{"shipment information received", domain.StatusPending},
	},
}

// severityRule maps a raw status substring/code to an exception severity.
// Checked in order; first match wins. No match on a non-delivered status
// yields NONE.
type severityRule struct {
	match    string
	severity domain.ExceptionSeverity
}

var severityRules = []severityRule{
	{"return to sender", domain.SeverityCritical},
	{"returned to sender", domain.SeverityCritical},
	{"undeliverable", domain.SeverityCritical},
	{"damaged", domain.SeverityCritical},
	{"lost", domain.SeverityCritical},
	{"address correction", domain.SeverityWarning},
	{"incorrect address", domain.SeverityWarning},
	{"weather delay", domain.SeverityWarning},
	{"delivery attempted", domain.SeverityWarning},
	{"clearance delay", domain.SeverityWarning},
	{"held at access point", domain.SeverityInformational},
	{"held for pickup", domain.SeverityInformational},
	{"on hold", domain.SeverityInformational},
	{"delayed", domain.SeverityInformational},
}

// timestampLayouts lists the date/time layouts each carrier is known to emit.
// Layouts are tried in order; a total parse failure yields a nil timestamp
// and downstream reconciliation preserves the prior value.
var timestampLayouts = map[domain.Carrier][]string{
	domain.CarrierUPS: {
		"20060102 150405", // tracking activity date + time
		"20060102",
		time.RFC3339,
	},
	domain.CarrierUSPS: {
		"January 2, 2006, 3:04 pm", // TrackV2 event date + time
		"January 2, 2006 3:04 pm",
		"January 2, 2006, 3:04 PM",
		"January 2, 2006 3:04 PM",
		"January 2, 2006",
		time.RFC3339,
	},
	domain.CarrierDHL: {
		"2006-01-02T15:04:05", // unified tracking, no zone
		time.RFC3339,
		"2006-01-02",
	},
}

// eventOrdering documents each carrier's payload ordering of scan events.
// UPS, USPS and DHL all list the most recent event first; the ordering is
// only consulted as a tie-break when timestamps are equal or unparseable.
var eventOrdering = map[domain.Carrier]domain.EventOrdering{
	domain.CarrierUPS:  domain.NewestFirst,
	domain.CarrierUSPS: domain.NewestFirst,
	domain.CarrierDHL:  domain.NewestFirst,
}

// Normalize maps a raw carrier payload into the canonical record fields.
// It never fails: unmapped vocabulary degrades to UNKNOWN, bad timestamps
// degrade to nil.
func Normalize(carrier domain.Carrier, payload *domain.RawTrackingPayload) Fields {
	fields := Fields{
		Status:            domain.StatusUnknown,
		ExceptionSeverity: domain.SeverityNone,
	}

	if payload == nil || len(payload.Events) == 0 {
		return fields
	}

	event, ts := latestEvent(carrier, payload.Events)

	fields.RawStatusText = event.Description
	fields.LastUpdate = ts
	fields.CurrentLocation = event.Location
	fields.Status = mapStatus(carrier, event.Description)
	fields.ExceptionSeverity = classifySeverity(event.Description, event.Code)

	return fields
}

// ParseTimestamp parses a carrier-native date/time string into an absolute
// instant. Returns nil instead of raising on failure.
func ParseTimestamp(carrier domain.Carrier, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range timestampLayouts[carrier] {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}

	logger.Get().Debug("unparseable carrier timestamp",
		zap.String("carrier", string(carrier)),
		zap.String("timestamp", raw),
	)
	return nil
}

// latestEvent picks the most recent scan event: newest timestamp wins, ties
// fall back to the carrier's documented payload order.
func latestEvent(carrier domain.Carrier, events []domain.RawEvent) (domain.RawEvent, *time.Time) {
	ordering := eventOrdering[carrier]

	bestIdx := -1
	var bestTime *time.Time

	for i, event := range events {
		ts := ParseTimestamp(carrier, event.Timestamp)
		if ts == nil {
			continue
		}
		switch {
		case bestTime == nil, ts.After(*bestTime):
			bestIdx, bestTime = i, ts
		case ts.Equal(*bestTime) && ordering == domain.NewestLast:
			// Later-listed wins the tie only for newest-last carriers.
			bestIdx, bestTime = i, ts
		}
	}

	if bestIdx >= 0 {
		return events[bestIdx], bestTime
	}

	// No parseable timestamp anywhere: trust the documented payload order.
	if ordering == domain.NewestLast {
		return events[len(events)-1], nil
	}
	return events[0], nil
}

// mapStatus resolves a raw status string through the carrier vocabulary.
func mapStatus(carrier domain.Carrier, raw string) domain.Status {
	lowered := strings.ToLower(raw)

	for _, rule := range statusVocabulary[carrier] {
		if strings.Contains(lowered, rule.match) {
			return rule.status
		}
	}

	logger.Get().Warn("unmapped carrier status vocabulary",
		zap.String("carrier", string(carrier)),
		zap.String("raw_status", raw),
	)
	return domain.StatusUnknown
}

// classifySeverity matches the raw status text and code against the fixed
// exception list.
func classifySeverity(raw, code string) domain.ExceptionSeverity {
	lowered := strings.ToLower(raw + " " + code)

	for _, rule := range severityRules {
		if strings.Contains(lowered, rule.match) {
			return rule.severity
		}
	}
	return domain.SeverityNone
}
