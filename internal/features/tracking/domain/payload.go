package domain

import "strings"

// EventOrdering documents how a carrier orders scan events in its payloads.
// It only matters as a tie-break when timestamps are equal or unparseable.
type EventOrdering int

const (
	// NewestFirst means the first listed event is the most recent.
	NewestFirst EventOrdering = iota
	// NewestLast means the last listed event is the most recent.
	NewestLast
)

// RawEvent is a single scan event as reported by a carrier, before
// normalization. Timestamp stays a string because each carrier uses its own
// date format.
type RawEvent struct {
	// Description is the carrier's raw status text for the event.
	Description string `json:"description"`
	// Timestamp is the carrier-native date/time string.
	Timestamp string `json:"timestamp"`
	// Location is a free-text city/state/facility string.
	Location string `json:"location,omitempty"`
	// Code is the carrier-specific status code, when one exists.
	Code string `json:"code,omitempty"`
}

// RawAddress is a destination address extracted from a tracking payload.
type RawAddress struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// HasData reports whether the address carries anything worth validating.
func (a RawAddress) HasData() bool {
	return a.Street != "" || a.City != "" || a.State != "" || a.PostalCode != ""
}

// String renders the address as a single comma-joined line.
func (a RawAddress) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.PostalCode, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// RawTrackingPayload is the carrier-neutral intermediate a CarrierAdapter
// produces from one fetch. Events keep the carrier's payload order.
type RawTrackingPayload struct {
	// Carrier tags which adapter produced the payload.
	Carrier Carrier `json:"carrier"`
	// Events holds the scan events in payload order.
	Events []RawEvent `json:"events"`
	// DeliveryEstimate is an explicit estimate embedded in the payload, in
	// the carrier's native date format; empty when absent.
	DeliveryEstimate string `json:"delivery_estimate,omitempty"`
	// Destination is the ship-to address when the payload exposes one.
	Destination RawAddress `json:"destination,omitempty"`
}
