package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"package-tracker/internal/core/config"
	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/seeding/domain"

	"go.uber.org/zap"
)

// ShipStationAdapter implements the ShipmentFeed interface against the
// ShipStation V2 API. Tracking numbers live on labels, not shipments, so
// each shipment costs one extra labels call.
type ShipStationAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewShipStationAdapter creates a ShipStationAdapter.
func NewShipStationAdapter(cfg config.ShipStationConfig, client *http.Client) *ShipStationAdapter {
	return &ShipStationAdapter{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  logger.Get(),
	}
}

// shipstationShipmentsResponse is one page of /v2/shipments.
type shipstationShipmentsResponse struct {
	Shipments []struct {
		ShipmentID     string `json:"shipment_id"`
		TrackingNumber string `json:"tracking_number"`
		CreatedAt      string `json:"created_at"`
	} `json:"shipments"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// shipstationLabelsResponse is the /v2/labels answer for one shipment.
type shipstationLabelsResponse struct {
	Labels []struct {
		TrackingNumber string `json:"tracking_number"`
		Status         string `json:"status"`
	} `json:"labels"`
}

// ListShipments returns one page of the feed, newest first.
func (a *ShipStationAdapter) ListShipments(ctx context.Context, createdAfter, createdBefore time.Time, page, pageSize int) ([]domain.Shipment, bool, error) {
	query := url.Values{
		"created_at_start": {createdAfter.UTC().Format(time.RFC3339)},
		"created_at_end":   {createdBefore.UTC().Format(time.RFC3339)},
		"sort_by":          {"created_at"},
		"sort_dir":         {"desc"},
		"page":             {fmt.Sprint(page)},
		"page_size":        {fmt.Sprint(pageSize)},
	}

	var listing shipstationShipmentsResponse
	if err := a.getJSON(ctx, "/v2/shipments?"+query.Encode(), &listing); err != nil {
		return nil, false, err
	}

	shipments := make([]domain.Shipment, 0, len(listing.Shipments))
	for _, sh := range listing.Shipments {
		shipment := domain.Shipment{ShipmentID: sh.ShipmentID}
		if created, err := time.Parse(time.RFC3339, sh.CreatedAt); err == nil {
			shipment.CreatedAt = created
		}

		if sh.TrackingNumber != "" {
			shipment.TrackingNumbers = []string{sh.TrackingNumber}
		} else {
			numbers, err := a.labelTrackingNumbers(ctx, sh.ShipmentID)
			if err != nil {
				// One broken shipment should not sink the page.
				a.logger.Warn("labels lookup failed",
					zap.String("shipment_id", sh.ShipmentID),
					zap.Error(err),
				)
				continue
			}
			shipment.TrackingNumbers = numbers
		}

		shipments = append(shipments, shipment)
	}

	return shipments, listing.Page < listing.Pages, nil
}

// labelTrackingNumbers fetches a shipment's label tracking numbers, skipping
// voided labels.
func (a *ShipStationAdapter) labelTrackingNumbers(ctx context.Context, shipmentID string) ([]string, error) {
	var labels shipstationLabelsResponse
	query := url.Values{"shipment_id": {shipmentID}}
	if err := a.getJSON(ctx, "/v2/labels?"+query.Encode(), &labels); err != nil {
		return nil, err
	}

	numbers := make([]string, 0, len(labels.Labels))
	for _, label := range labels.Labels {
		if label.TrackingNumber == "" || strings.EqualFold(label.Status, "voided") {
			continue
		}
		numbers = append(numbers, label.TrackingNumber)
	}
	return numbers, nil
}

func (a *ShipStationAdapter) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("api-key", a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("shipstation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shipstation API returned status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode shipstation response: %w", err)
	}
	return nil
}
