package service

import (
	"context"
	"time"

	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/seeding/domain"
	"package-tracker/internal/features/seeding/ports"
	tracking "package-tracker/internal/features/tracking/domain"
	trackingports "package-tracker/internal/features/tracking/ports"

	"go.uber.org/zap"
)

// SeedService pulls recent shipments from the upstream feed and appends the
// tracking numbers the store does not know yet. Rows enter as UNKNOWN status
// and get their first real status on the next polling run.
type SeedService struct {
	feed       ports.ShipmentFeed
	store      trackingports.Store
	windowDays int
	maxPages   int
	pageSize   int
	logger     *zap.Logger
}

// NewSeedService creates a SeedService.
func NewSeedService(feed ports.ShipmentFeed, store trackingports.Store, windowDays, maxPages, pageSize int) *SeedService {
	return &SeedService{
		feed:       feed,
		store:      store,
		windowDays: windowDays,
		maxPages:   maxPages,
		pageSize:   pageSize,
		logger:     logger.Get(),
	}
}

// Ingest runs one seeding pass over the configured window.
func (s *SeedService) Ingest(ctx context.Context) (*domain.SeedSummary, error) {
	existing, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		known[rec.TrackingNumber] = struct{}{}
	}

	now := time.Now()
	createdAfter := now.AddDate(0, 0, -s.windowDays)

	summary := &domain.SeedSummary{}
	var mutations []tracking.RowMutation

	for page := 1; page <= s.maxPages; page++ {
		shipments, hasMore, err := s.feed.ListShipments(ctx, createdAfter, now, page, s.pageSize)
		if err != nil {
			// Pages already collected still count; commit what we have.
			summary.Errors++
			s.logger.Error("feed page failed, committing partial seed",
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		summary.Pages++

		for _, shipment := range shipments {
			for _, raw := range shipment.TrackingNumbers {
				summary.Found++
				number := tracking.NormalizeTrackingNumber(raw)
				if number == "" {
					summary.Unsupported++
					continue
				}

				carrier := tracking.DetectCarrier(number)
				if carrier == tracking.CarrierUnknown {
					summary.Unsupported++
					s.logger.Debug("no carrier pattern matched, discarding",
						zap.String("tracking_number", number),
						zap.String("shipment_id", shipment.ShipmentID),
					)
					continue
				}

				if _, dup := known[number]; dup {
					summary.Duplicates++
					continue
				}
				known[number] = struct{}{}

				mutations = append(mutations, tracking.RowMutation{
					Kind: tracking.MutationUpsert,
					Row: tracking.TrackingRecord{
						TrackingNumber:    number,
						Carrier:           carrier,
						Status:            tracking.StatusUnknown,
						ExceptionSeverity: tracking.SeverityNone,
					},
				})
				summary.Added++
			}
		}

		if !hasMore {
			break
		}
		if page == s.maxPages {
			// The window extends past the page cap; the rest stays
			// un-ingested until the next pass.
			summary.MorePages = true
			s.logger.Warn("page cap reached with pages remaining",
				zap.Int("max_pages", s.maxPages),
			)
		}
	}

	if err := s.store.WriteBatch(mutations); err != nil {
		return nil, err
	}

	s.logger.Info("seed completed",
		zap.Int("found", summary.Found),
		zap.Int("added", summary.Added),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("unsupported", summary.Unsupported),
		zap.Int("pages", summary.Pages),
		zap.Int("errors", summary.Errors),
		zap.Bool("more_pages", summary.MorePages),
	)
	return summary, nil
}
