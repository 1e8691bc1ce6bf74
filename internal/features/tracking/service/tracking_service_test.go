package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"package-tracker/internal/features/tracking/domain"
	"package-tracker/internal/features/tracking/ports"
	"package-tracker/internal/features/tracking/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore is an in-memory Store for service tests.
type mockStore struct {
	mu          sync.Mutex
	records     []domain.TrackingRecord
	writeCalls  int
	failWrites  int
	lastWritten []domain.RowMutation
}

func (m *mockStore) ReadAll() ([]domain.TrackingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TrackingRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *mockStore) WriteBatch(mutations []domain.RowMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.writeCalls <= m.failWrites {
		return errors.New("sheet unavailable")
	}
	m.lastWritten = mutations
	for _, mut := range mutations {
		replaced := false
		for i := range m.records {
			if m.records[i].TrackingNumber == mut.Row.TrackingNumber {
				m.records[i] = mut.Row
				replaced = true
				break
			}
		}
		if !replaced {
			m.records = append(m.records, mut.Row)
		}
	}
	return nil
}

// mockCarrierAdapter serves canned payloads and records call order.
type mockCarrierAdapter struct {
	carrier  domain.Carrier
	payloads map[string]*domain.RawTrackingPayload
	errs     map[string]error

	mu    sync.Mutex
	calls []string
}

func (m *mockCarrierAdapter) Carrier() domain.Carrier { return m.carrier }

func (m *mockCarrierAdapter) Fetch(ctx context.Context, trackingNumber string) (*domain.RawTrackingPayload, error) {
	m.mu.Lock()
	m.calls = append(m.calls, trackingNumber)
	m.mu.Unlock()
	if err, ok := m.errs[trackingNumber]; ok {
		return nil, err
	}
	if p, ok := m.payloads[trackingNumber]; ok {
		return p, nil
	}
	return nil, &domain.NotFoundError{Carrier: m.carrier, TrackingNumber: trackingNumber}
}

func (m *mockCarrierAdapter) EstimateTransit(ctx context.Context, origin, destination domain.RawAddress) (*time.Time, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (m *mockCarrierAdapter) ValidateAddress(ctx context.Context, destination domain.RawAddress) (string, error) {
	return "", domain.ErrUnsupportedOperation
}

func newTestService(store *mockStore, adapters ...ports.CarrierAdapter) *TrackingService {
	return NewTrackingService(
		store,
		adapters,
		resolver.NewEstimateResolver(domain.RawAddress{}, false),
		resolver.NewAddressValidator(false),
		nil,
		3,
	)
}

func upsPayload(desc, ts string) *domain.RawTrackingPayload {
	return &domain.RawTrackingPayload{
		Carrier: domain.CarrierUPS,
		Events:  []domain.RawEvent{{Description: desc, Timestamp: ts}},
	}
}

// TestRunOnce_UpdatesChangedRows verifies the happy path end to end.
func TestRunOnce_UpdatesChangedRows(t *testing.T) {
	store := &mockStore{records: []domain.TrackingRecord{
		{TrackingNumber: "1Z1", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
		{TrackingNumber: "1Z2", Carrier: domain.CarrierUPS, Status: domain.StatusDelivered, RawStatusText: "Delivered"},
	}}
	adapter := &mockCarrierAdapter{
		carrier: domain.CarrierUPS,
		payloads: map[string]*domain.RawTrackingPayload{
			"1Z1": upsPayload("Out For Delivery Today", "20250418 093100"),
			"1Z2": upsPayload("Delivered", "20250417 141500"),
		},
	}

	svc := newTestService(store, adapter)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.Failed)

	rec, err := svc.Record("1Z1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOutForDelivery, rec.Status)
	require.NotNil(t, rec.LastUpdate)
}

// TestRunOnce_TransientFailureKeepsStoredValues verifies a row whose fetch
// exhausted backoff stays untouched and is counted as failed.
func TestRunOnce_TransientFailureKeepsStoredValues(t *testing.T) {
	store := &mockStore{records: []domain.TrackingRecord{
		{TrackingNumber: "1Z1", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit, CurrentLocation: "Louisville, KY"},
	}}
	adapter := &mockCarrierAdapter{
		carrier: domain.CarrierUPS,
		errs: map[string]error{
			"1Z1": &domain.TransientError{Carrier: domain.CarrierUPS, Status: 429},
		},
	}

	svc := newTestService(store, adapter)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Updated)
	assert.Zero(t, store.writeCalls)

	rec, err := svc.Record("1Z1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInTransit, rec.Status)
	assert.Equal(t, "Louisville, KY", rec.CurrentLocation)
}

// TestRunOnce_ClassifiesUnknownCarrierRows verifies a manually appended row
// with no carrier is classified from its tracking number at run time and
// ends up with the detected carrier persisted, instead of being skipped on
// every run.
func TestRunOnce_ClassifiesUnknownCarrierRows(t *testing.T) {
	store := &mockStore{records: []domain.TrackingRecord{
		{TrackingNumber: "1Z999AA10123456784", Carrier: domain.CarrierUnknown, Status: domain.StatusUnknown},
	}}
	adapter := &mockCarrierAdapter{
		carrier: domain.CarrierUPS,
		payloads: map[string]*domain.RawTrackingPayload{
			"1Z999AA10123456784": upsPayload("In Transit", "20250418 093100"),
		},
	}

	svc := newTestService(store, adapter)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"1Z999AA10123456784"}, adapter.calls)

	rec, err := svc.Record("1Z999AA10123456784")
	require.NoError(t, err)
	assert.Equal(t, domain.CarrierUPS, rec.Carrier)
	assert.Equal(t, domain.StatusInTransit, rec.Status)
}

// TestRunOnce_NotFoundMarksUnknown verifies the 404 contract: the row is
// updated to UNKNOWN rather than dropped or left as-is.
func TestRunOnce_NotFoundMarksUnknown(t *testing.T) {
	store := &mockStore{records: []domain.TrackingRecord{
		{TrackingNumber: "1Z1", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
	}}
	adapter := &mockCarrierAdapter{carrier: domain.CarrierUPS}

	svc := newTestService(store, adapter)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	rec, err := svc.Record("1Z1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, rec.Status)
}

// TestRunOnce_AuthFailureSkipsCarrier verifies one credential failure stops
// further calls to that carrier within the run.
func TestRunOnce_AuthFailureSkipsCarrier(t *testing.T) {
	store := &mockStore{records: []domain.TrackingRecord{
		{TrackingNumber: "1Z1", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
		{TrackingNumber: "1Z2", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
		{TrackingNumber: "1Z3", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
	}}
	adapter := &mockCarrierAdapter{
		carrier: domain.CarrierUPS,
		errs: map[string]error{
			"1Z1": &domain.AuthError{Carrier: domain.CarrierUPS, Err: errors.New("bad credentials")},
			"1Z2": &domain.AuthError{Carrier: domain.CarrierUPS, Err: errors.New("bad credentials")},
			"1Z3": &domain.AuthError{Carrier: domain.CarrierUPS, Err: errors.New("bad credentials")},
		},
	}

	svc := newTestService(store, adapter)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Failed)
	assert.Len(t, adapter.calls, 1)
}

// TestRunOnce_IndependentCarriers verifies one carrier's outage does not
// block another's updates.
func TestRunOnce_IndependentCarriers(t *testing.T) {
	store := &mockStore{records: []domain.TrackingRecord{
		{TrackingNumber: "1Z1", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
		{TrackingNumber: "9400", Carrier: domain.CarrierUSPS, Status: domain.StatusInTransit},
	}}
	ups := &mockCarrierAdapter{
		carrier: domain.CarrierUPS,
		errs: map[string]error{
			"1Z1": &domain.TransientError{Carrier: domain.CarrierUPS, Status: 503},
		},
	}
	usps := &mockCarrierAdapter{
		carrier: domain.CarrierUSPS,
		payloads: map[string]*domain.RawTrackingPayload{
			"9400": {
				Carrier: domain.CarrierUSPS,
				Events:  []domain.RawEvent{{Description: "Delivered", Timestamp: "April 18, 2025, 2:32 pm"}},
			},
		},
	}

	svc := newTestService(store, ups, usps)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Updated)

	rec, err := svc.Record("9400")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, rec.Status)
}

// TestRunOnce_WriteRetries verifies the bounded retry on the batch write.
func TestRunOnce_WriteRetries(t *testing.T) {
	store := &mockStore{
		records: []domain.TrackingRecord{
			{TrackingNumber: "1Z1", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
		},
		failWrites: 1,
	}
	adapter := &mockCarrierAdapter{
		carrier: domain.CarrierUPS,
		payloads: map[string]*domain.RawTrackingPayload{
			"1Z1": upsPayload("Delivered", "20250418 093100"),
		},
	}

	svc := newTestService(store, adapter)
	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 2, store.writeCalls)
}

// TestRunOnce_WriteExhaustionIsFatal verifies a StoreWriteError after the
// final attempt.
func TestRunOnce_WriteExhaustionIsFatal(t *testing.T) {
	store := &mockStore{
		records: []domain.TrackingRecord{
			{TrackingNumber: "1Z1", Carrier: domain.CarrierUPS, Status: domain.StatusInTransit},
		},
		failWrites: storeWriteAttempts,
	}
	adapter := &mockCarrierAdapter{
		carrier: domain.CarrierUPS,
		payloads: map[string]*domain.RawTrackingPayload{
			"1Z1": upsPayload("Delivered", "20250418 093100"),
		},
	}

	svc := newTestService(store, adapter)
	_, err := svc.RunOnce(context.Background())

	var writeErr *domain.StoreWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, storeWriteAttempts, writeErr.Attempts)
}

// TestRunOnce_EmptyStore verifies an empty sheet short-circuits.
func TestRunOnce_EmptyStore(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockCarrierAdapter{carrier: domain.CarrierUPS})

	summary, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, store.writeCalls)
}

// TestRecord_NotFound verifies the lookup error.
func TestRecord_NotFound(t *testing.T) {
	svc := newTestService(&mockStore{})

	_, err := svc.Record("1Z999AA10123456784")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
