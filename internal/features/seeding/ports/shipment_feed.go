package ports

import (
	"context"
	"time"

	"package-tracker/internal/features/seeding/domain"
)

// ShipmentFeed is the upstream order-management feed the seeder reads.
type ShipmentFeed interface {
	// ListShipments returns one page of shipments created inside the window,
	// newest first, and whether more pages remain. Pages start at 1.
	ListShipments(ctx context.Context, createdAfter, createdBefore time.Time, page, pageSize int) ([]domain.Shipment, bool, error)
}
