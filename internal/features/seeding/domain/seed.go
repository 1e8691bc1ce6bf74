package domain

import "time"

// Shipment is one upstream order-management shipment, reduced to what
// seeding needs.
type Shipment struct {
	// ShipmentID is the feed's own identifier, kept for traceability.
	ShipmentID string `json:"shipment_id"`
	// TrackingNumbers lists the tracking numbers attached via labels. Often
	// one, occasionally several for multi-package shipments.
	TrackingNumbers []string `json:"tracking_numbers"`
	// CreatedAt is when the feed created the shipment.
	CreatedAt time.Time `json:"created_at"`
}

// SeedSummary reports what one ingest pass did.
type SeedSummary struct {
	// Found is the number of tracking numbers seen in the feed window.
	Found int `json:"found"`
	// Added is the number of new rows appended to the store.
	Added int `json:"added"`
	// Duplicates is the number skipped because the store already has them.
	Duplicates int `json:"duplicates"`
	// Unsupported is the number discarded because no carrier pattern matched.
	Unsupported int `json:"unsupported"`
	// Pages is the number of feed pages consumed.
	Pages int `json:"pages"`
	// Errors is the number of feed page requests that failed. A non-zero
	// value means the pass committed a partial seed.
	Errors int `json:"errors"`
	// MorePages reports that the feed still had pages when the page cap was
	// reached, so part of the window was not ingested.
	MorePages bool `json:"more_pages"`
}
