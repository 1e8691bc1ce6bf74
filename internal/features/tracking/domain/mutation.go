package domain

// MutationKind tells the store what to do with a reconciled row.
type MutationKind string

const (
	// MutationUpsert inserts the row or updates it in place by key.
	MutationUpsert MutationKind = "UPSERT"
	// MutationNoop means reconciliation found nothing to change.
	MutationNoop MutationKind = "NOOP"
)

// RowMutation is the unit of change the ReconciliationEngine emits. All
// mutations of a run are committed as one batch.
type RowMutation struct {
	Kind MutationKind   `json:"kind"`
	Row  TrackingRecord `json:"row"`
}
