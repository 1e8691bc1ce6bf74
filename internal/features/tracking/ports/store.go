package ports

import "package-tracker/internal/features/tracking/domain"

// Store is the narrow contract to the tabular persistence layer. The sheet
// keeps the tracking number in its first column as the stable natural key;
// new fields only ever append as trailing columns.
type Store interface {
	// ReadAll returns the persisted rows in sheet order.
	ReadAll() ([]domain.TrackingRecord, error)

	// WriteBatch applies all mutations of a run as one write. It is atomic
	// from the caller's perspective: either every mutation lands or the
	// sheet stays at its previous state.
	WriteBatch(mutations []domain.RowMutation) error
}
