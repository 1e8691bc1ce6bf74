package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"package-tracker/internal/core/cache"
	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"
	"package-tracker/internal/features/tracking/normalizer"
	"package-tracker/internal/features/tracking/ports"
	"package-tracker/internal/features/tracking/reconciler"
	"package-tracker/internal/features/tracking/resolver"

	"go.uber.org/zap"
)

// ErrRecordNotFound is returned when no persisted row matches a tracking number.
var ErrRecordNotFound = errors.New("tracking record not found")

const (
	// storeWriteAttempts bounds the retry on the final batch write.
	storeWriteAttempts = 3
	storeWriteBackoff  = 2 * time.Second

	// payloadCacheTTL keeps fetched payloads warm between closely spaced
	// runs without masking real status changes.
	payloadCacheTTL = 30 * time.Minute
)

// TrackingService orchestrates a polling run: load the sheet, fetch every
// row's carrier payload, normalize, resolve estimates and addresses, and
// reconcile the results back into the store in one batch.
type TrackingService struct {
	store       ports.Store
	adapters    map[domain.Carrier]ports.CarrierAdapter
	estimates   *resolver.EstimateResolver
	addresses   *resolver.AddressValidator
	cache       cache.Cache
	workerLimit int
	logger      *zap.Logger

	// runMu serializes runs; overlapping triggers queue rather than race
	// over the sheet.
	runMu sync.Mutex
}

// NewTrackingService creates a TrackingService. payloadCache may be nil when
// no cache backend is configured.
func NewTrackingService(
	store ports.Store,
	adapters []ports.CarrierAdapter,
	estimates *resolver.EstimateResolver,
	addresses *resolver.AddressValidator,
	payloadCache cache.Cache,
	workerLimit int,
) *TrackingService {
	byCarrier := make(map[domain.Carrier]ports.CarrierAdapter, len(adapters))
	for _, a := range adapters {
		byCarrier[a.Carrier()] = a
	}
	if workerLimit < 1 {
		workerLimit = 1
	}
	return &TrackingService{
		store:       store,
		adapters:    byCarrier,
		estimates:   estimates,
		addresses:   addresses,
		cache:       payloadCache,
		workerLimit: workerLimit,
		logger:      logger.Get(),
	}
}

// Records returns every persisted row in sheet order.
func (s *TrackingService) Records() ([]domain.TrackingRecord, error) {
	return s.store.ReadAll()
}

// Record returns the persisted row for one tracking number.
func (s *TrackingService) Record(trackingNumber string) (*domain.TrackingRecord, error) {
	key := domain.NormalizeTrackingNumber(trackingNumber)
	records, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].TrackingNumber == key {
			return &records[i], nil
		}
	}
	return nil, ErrRecordNotFound
}

// RunOnce executes one full polling run and reports what it did.
func (s *TrackingService) RunOnce(ctx context.Context) (*domain.RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	existing, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}

	summary := &domain.RunSummary{Processed: len(existing)}
	if len(existing) == 0 {
		s.logger.Info("run skipped, store is empty")
		return summary, nil
	}

	fresh := s.fetchAll(ctx, existing)

	mutations := reconciler.Plan(existing, fresh)
	summary.Updated = len(mutations)
	summary.Unchanged = len(fresh) - len(mutations)
	summary.Failed = len(existing) - len(fresh)

	if err := s.writeWithRetry(ctx, mutations); err != nil {
		return nil, err
	}

	s.logger.Info("run completed",
		zap.Int("processed", summary.Processed),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// fetchAll fans records out one goroutine per carrier, so each carrier sees
// its requests serialized, with a global semaphore capping outbound
// concurrency. Rows whose fetch failed are omitted from the result.
func (s *TrackingService) fetchAll(ctx context.Context, records []domain.TrackingRecord) []domain.TrackingRecord {
	byCarrier := make(map[domain.Carrier][]domain.TrackingRecord)
	for _, rec := range records {
		if rec.Carrier == "" || rec.Carrier == domain.CarrierUnknown {
			// Manually appended rows arrive with no carrier; classify them
			// here so they route to an adapter and the merge persists the
			// detected carrier.
			detected := domain.DetectCarrier(rec.TrackingNumber)
			if detected == domain.CarrierUnknown {
				s.logger.Warn("carrier unresolved, row skipped",
					zap.String("tracking_number", rec.TrackingNumber),
				)
				continue
			}
			rec.Carrier = detected
		}
		byCarrier[rec.Carrier] = append(byCarrier[rec.Carrier], rec)
	}

	sem := make(chan struct{}, s.workerLimit)
	results := make(chan domain.TrackingRecord, len(records))

	var wg sync.WaitGroup
	for carrier, group := range byCarrier {
		adapter, ok := s.adapters[carrier]
		if !ok {
			s.logger.Warn("no adapter for carrier, rows skipped",
				zap.String("carrier", string(carrier)),
				zap.Int("rows", len(group)),
			)
			continue
		}

		wg.Add(1)
		go func(adapter ports.CarrierAdapter, group []domain.TrackingRecord) {
			defer wg.Done()
			authFailed := false
			for _, rec := range group {
				if ctx.Err() != nil {
					return
				}
				if authFailed {
					// One credential failure condemns the whole carrier for
					// this run; skip the remaining rows instead of hammering.
					continue
				}

				sem <- struct{}{}
				fresh, err := s.fetchOne(ctx, adapter, rec)
				<-sem

				if err != nil {
					var authErr *domain.AuthError
					if errors.As(err, &authErr) {
						authFailed = true
						s.logger.Error("carrier authentication failed, skipping remaining rows",
							zap.String("carrier", string(adapter.Carrier())),
							zap.Error(err),
						)
					} else {
						s.logger.Warn("fetch failed, keeping stored values",
							zap.String("carrier", string(adapter.Carrier())),
							zap.String("tracking_number", rec.TrackingNumber),
							zap.Error(err),
						)
					}
					continue
				}
				results <- *fresh
			}
		}(adapter, group)
	}

	wg.Wait()
	close(results)

	fresh := make([]domain.TrackingRecord, 0, len(records))
	for rec := range results {
		fresh = append(fresh, rec)
	}
	return fresh
}

// fetchOne builds the fresh record for a single row. A NotFound answer is
// not an error: the carrier has no data, so the row is marked UNKNOWN.
func (s *TrackingService) fetchOne(ctx context.Context, adapter ports.CarrierAdapter, rec domain.TrackingRecord) (*domain.TrackingRecord, error) {
	payload, err := s.fetchPayload(ctx, adapter, rec.TrackingNumber)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			s.logger.Info("tracking number unknown to carrier",
				zap.String("carrier", string(adapter.Carrier())),
				zap.String("tracking_number", rec.TrackingNumber),
			)
			return &domain.TrackingRecord{
				TrackingNumber: rec.TrackingNumber,
				Carrier:        rec.Carrier,
				Status:         domain.StatusUnknown,
			}, nil
		}
		return nil, err
	}

	fields := normalizer.Normalize(adapter.Carrier(), payload)

	fresh := domain.TrackingRecord{
		TrackingNumber:    rec.TrackingNumber,
		Carrier:           adapter.Carrier(),
		Status:            fields.Status,
		RawStatusText:     fields.RawStatusText,
		LastUpdate:        fields.LastUpdate,
		CurrentLocation:   fields.CurrentLocation,
		ExceptionSeverity: fields.ExceptionSeverity,
	}
	fresh.EstimatedDelivery = s.estimates.Resolve(ctx, adapter, payload)
	fresh.ValidatedAddress = s.addresses.Validate(ctx, adapter, payload)

	return &fresh, nil
}

// fetchPayload consults the payload cache before going to the carrier.
// Cache failures degrade to a live fetch.
func (s *TrackingService) fetchPayload(ctx context.Context, adapter ports.CarrierAdapter, trackingNumber string) (*domain.RawTrackingPayload, error) {
	key := "payload:" + string(adapter.Carrier()) + ":" + trackingNumber

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var payload domain.RawTrackingPayload
			if err := json.Unmarshal(data, &payload); err == nil {
				s.logger.Debug("payload cache hit", zap.String("key", key))
				return &payload, nil
			}
		}
	}

	payload, err := adapter.Fetch(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(payload); err == nil {
			if err := s.cache.Set(ctx, key, data, payloadCacheTTL); err != nil {
				s.logger.Debug("payload cache write failed", zap.Error(err))
			}
		}
	}
	return payload, nil
}

// writeWithRetry commits the batch with bounded retry; persistent failure is
// fatal for the run.
func (s *TrackingService) writeWithRetry(ctx context.Context, mutations []domain.RowMutation) error {
	if len(mutations) == 0 {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= storeWriteAttempts; attempt++ {
		lastErr = s.store.WriteBatch(mutations)
		if lastErr == nil {
			return nil
		}

		s.logger.Warn("store write failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt == storeWriteAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return &domain.StoreWriteError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(storeWriteBackoff):
		}
	}

	return &domain.StoreWriteError{Attempts: storeWriteAttempts, Err: lastErr}
}
