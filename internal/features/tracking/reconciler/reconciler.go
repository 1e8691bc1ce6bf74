package reconciler

import (
	"strings"
	"time"

	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"

	"go.uber.org/zap"
)

// Reconcile diffs a freshly fetched record against the persisted row with the
// same tracking number and emits the minimal mutation. With no existing row
// it emits a full append with UNKNOWN defaults; otherwise a field-level merge
// that never overwrites a known value with absence. Reconcile is idempotent:
// applying the same fresh record twice yields the same row.
func Reconcile(existing *domain.TrackingRecord, fresh domain.TrackingRecord) domain.RowMutation {
	if existing == nil {
		return domain.RowMutation{
			Kind: domain.MutationUpsert,
			Row:  withDefaults(fresh),
		}
	}

	merged := merge(*existing, fresh)
	if equal(merged, *existing) {
		return domain.RowMutation{Kind: domain.MutationNoop, Row: *existing}
	}

	return domain.RowMutation{Kind: domain.MutationUpsert, Row: merged}
}

// equal compares two rows by value, treating time pointers by instant.
func equal(a, b domain.TrackingRecord) bool {
	if a.TrackingNumber != b.TrackingNumber ||
		a.Carrier != b.Carrier ||
		a.Status != b.Status ||
		a.RawStatusText != b.RawStatusText ||
		a.CurrentLocation != b.CurrentLocation ||
		a.ValidatedAddress != b.ValidatedAddress ||
		a.ExceptionSeverity != b.ExceptionSeverity {
		return false
	}
	return timeEqual(a.LastUpdate, b.LastUpdate) && timeEqual(a.EstimatedDelivery, b.EstimatedDelivery)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// withDefaults fills the invariant fields of a brand-new row.
func withDefaults(rec domain.TrackingRecord) domain.TrackingRecord {
	if rec.Carrier == "" {
		rec.Carrier = domain.CarrierUnknown
	}
	if rec.Status == "" {
		rec.Status = domain.StatusUnknown
	}
	if rec.ExceptionSeverity == "" {
		rec.ExceptionSeverity = domain.SeverityNone
	}
	return rec
}

// merge applies every resolved field of fresh onto existing. Unresolved
// fields (empty strings, nil times) keep their stored value, so a partial
// fetch failure never erases history.
func merge(existing, fresh domain.TrackingRecord) domain.TrackingRecord {
	merged := existing

	// UNKNOWN may be upgraded to a concrete carrier, never the reverse.
	if fresh.Carrier != "" && fresh.Carrier != domain.CarrierUnknown &&
		merged.Carrier == domain.CarrierUnknown {
		merged.Carrier = fresh.Carrier
	}

	// The delivered-state guard is evaluated against the stored status, so a
	// fresh DELIVERED still carries its own severity in (clearing a delay
	// warning), while a post-delivery exception cannot reintroduce one.
	statusHeld := existing.Status == domain.StatusDelivered &&
		fresh.Status != "" && fresh.Status != domain.StatusDelivered

	mergeStatus(&merged, fresh)

	if fresh.LastUpdate != nil {
		t := *fresh.LastUpdate
		merged.LastUpdate = &t
	}
	if fresh.CurrentLocation != "" {
		merged.CurrentLocation = fresh.CurrentLocation
	}
	if fresh.ValidatedAddress != "" {
		merged.ValidatedAddress = fresh.ValidatedAddress
	}
	if fresh.EstimatedDelivery != nil {
		t := *fresh.EstimatedDelivery
		merged.EstimatedDelivery = &t
	}
	if fresh.ExceptionSeverity != "" && fresh.Status != "" && !statusHeld {
		merged.ExceptionSeverity = fresh.ExceptionSeverity
	}

	return merged
}

// mergeStatus applies the fresh canonical status under the delivered-state
// guard: a DELIVERED row never regresses; a later exception is appended to
// the audit text instead.
func mergeStatus(merged *domain.TrackingRecord, fresh domain.TrackingRecord) {
	if fresh.Status == "" {
		return
	}

	if merged.Status == domain.StatusDelivered && fresh.Status != domain.StatusDelivered {
		if fresh.Status == domain.StatusException && fresh.RawStatusText != "" &&
			!strings.Contains(merged.RawStatusText, fresh.RawStatusText) {
			merged.RawStatusText = merged.RawStatusText + " (later: " + fresh.RawStatusText + ")"
			logger.Get().Info("post-delivery exception recorded without regressing status",
				zap.String("tracking_number", merged.TrackingNumber),
				zap.String("exception", fresh.RawStatusText),
			)
		}
		return
	}

	merged.Status = fresh.Status
	if fresh.RawStatusText != "" {
		merged.RawStatusText = fresh.RawStatusText
	}
}

// Plan folds a set of fresh records against the persisted table and returns
// the mutations worth writing, preserving the order of the fresh batch.
func Plan(existing []domain.TrackingRecord, fresh []domain.TrackingRecord) []domain.RowMutation {
	index := make(map[string]*domain.TrackingRecord, len(existing))
	for i := range existing {
		index[existing[i].TrackingNumber] = &existing[i]
	}

	mutations := make([]domain.RowMutation, 0, len(fresh))
	for _, rec := range fresh {
		m := Reconcile(index[rec.TrackingNumber], rec)
		if m.Kind == domain.MutationUpsert {
			mutations = append(mutations, m)
		}
	}
	return mutations
}
