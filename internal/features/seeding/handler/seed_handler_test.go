package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	seeddomain "package-tracker/internal/features/seeding/domain"
	"package-tracker/internal/features/seeding/service"
	tracking "package-tracker/internal/features/tracking/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFeed serves one canned page.
type mockFeed struct {
	shipments []seeddomain.Shipment
}

func (m *mockFeed) ListShipments(ctx context.Context, createdAfter, createdBefore time.Time, page, pageSize int) ([]seeddomain.Shipment, bool, error) {
	return m.shipments, false, nil
}

// mockStore is an in-memory Store for handler tests.
type mockStore struct {
	records []tracking.TrackingRecord
}

func (m *mockStore) ReadAll() ([]tracking.TrackingRecord, error) { return m.records, nil }

func (m *mockStore) WriteBatch(mutations []tracking.RowMutation) error {
	for _, mut := range mutations {
		m.records = append(m.records, mut.Row)
	}
	return nil
}

// TestSeedHandler_TriggerSeed verifies the endpoint returns the summary.
func TestSeedHandler_TriggerSeed(t *testing.T) {
	feed := &mockFeed{shipments: []seeddomain.Shipment{
		{ShipmentID: "se-1", TrackingNumbers: []string{"1Z999AA10123456784"}, CreatedAt: time.Now()},
	}}
	store := &mockStore{}

	svc := service.NewSeedService(feed, store, 30, 20, 100)
	h := NewSeedHandler(svc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		return c.Next()
	})
	app.Post("/seed", h.TriggerSeed)

	resp, err := app.Test(httptest.NewRequest("POST", "/seed", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var summary seeddomain.SeedSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Added)
	require.Len(t, store.records, 1)
	assert.Equal(t, tracking.CarrierUPS, store.records[0].Carrier)
}
