package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"package-tracker/internal/core/config"
	"package-tracker/internal/core/logger"
	"package-tracker/internal/features/tracking/domain"

	"go.uber.org/zap"
)

// DHLAdapter talks to the DHL unified shipment tracking API. Authentication
// is a static API key header, so there is no token session.
type DHLAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewDHLAdapter creates a DHLAdapter.
func NewDHLAdapter(cfg config.DHLConfig, client *http.Client) *DHLAdapter {
	return &DHLAdapter{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  logger.Get(),
	}
}

// Carrier identifies which carrier this adapter serves.
func (a *DHLAdapter) Carrier() domain.Carrier { return domain.CarrierDHL }

// dhlTrackResponse mirrors the unified tracking shape, reduced to the fields
// the pipeline reads. Events arrive newest-first.
type dhlTrackResponse struct {
	Shipments []struct {
		Status struct {
			Timestamp   string `json:"timestamp"`
			Description string `json:"description"`
			StatusCode  string `json:"statusCode"`
		} `json:"status"`
		EstimatedTimeOfDelivery    string `json:"estimatedTimeOfDelivery"`
		EstimatedDeliveryTimeFrame struct {
			EstimatedFrom    string `json:"estimatedFrom"`
			EstimatedThrough string `json:"estimatedThrough"`
		} `json:"estimatedDeliveryTimeFrame"`
		Destination struct {
			Address struct {
				AddressLocality string `json:"addressLocality"`
				PostalCode      string `json:"postalCode"`
				StreetAddress   string `json:"streetAddress"`
				CountryCode     string `json:"countryCode"`
			} `json:"address"`
		} `json:"destination"`
		Events []struct {
			Timestamp   string `json:"timestamp"`
			Description string `json:"description"`
			StatusCode  string `json:"statusCode"`
			Location    struct {
				Address struct {
					AddressLocality string `json:"addressLocality"`
				} `json:"address"`
			} `json:"location"`
		} `json:"events"`
	} `json:"shipments"`
}

// Fetch retrieves the raw tracking payload for one DHL tracking number.
func (a *DHLAdapter) Fetch(ctx context.Context, trackingNumber string) (*domain.RawTrackingPayload, error) {
	query := url.Values{"trackingNumber": {trackingNumber}}

	var payload *domain.RawTrackingPayload

	err := doWithBackoff(ctx, domain.CarrierDHL, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			a.baseURL+"/track/shipments?"+query.Encode(), nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("DHL-API-Key", a.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return resp.StatusCode, &domain.NotFoundError{
				Carrier:        domain.CarrierDHL,
				TrackingNumber: trackingNumber,
			}
		case authRejected(resp.StatusCode):
			// The key is static, so there is no token to invalidate and
			// retry with; a second attempt with the same key cannot
			// succeed. Surface immediately.
			return resp.StatusCode, &domain.AuthError{
				Carrier: domain.CarrierDHL,
				Err:     fmt.Errorf("api key rejected with status %d", resp.StatusCode),
			}
		case retryable(resp.StatusCode):
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		case resp.StatusCode != http.StatusOK:
			return resp.StatusCode, &domain.TransientError{
				Carrier: domain.CarrierDHL,
				Status:  resp.StatusCode,
			}
		}

		var tr dhlTrackResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return resp.StatusCode, &domain.ParseError{Carrier: domain.CarrierDHL, Err: err}
		}
		if len(tr.Shipments) == 0 {
			return resp.StatusCode, &domain.NotFoundError{
				Carrier:        domain.CarrierDHL,
				TrackingNumber: trackingNumber,
			}
		}

		payload = mapDHLResponse(tr)
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// mapDHLResponse flattens the first shipment into the neutral payload,
// preserving the newest-first event order. When an estimate window is given
// instead of a point estimate, the end of the window is used.
func mapDHLResponse(tr dhlTrackResponse) *domain.RawTrackingPayload {
	sh := tr.Shipments[0]
	payload := &domain.RawTrackingPayload{Carrier: domain.CarrierDHL}

	for _, ev := range sh.Events {
		payload.Events = append(payload.Events, domain.RawEvent{
			Description: ev.Description,
			Timestamp:   ev.Timestamp,
			Location:    ev.Location.Address.AddressLocality,
			Code:        ev.StatusCode,
		})
	}

	// The status block is the current state; some responses carry it without
	// a matching events entry.
	if len(payload.Events) == 0 && sh.Status.Description != "" {
		payload.Events = append(payload.Events, domain.RawEvent{
			Description: sh.Status.Description,
			Timestamp:   sh.Status.Timestamp,
			Code:        sh.Status.StatusCode,
		})
	}

	payload.DeliveryEstimate = firstNonEmpty(
		sh.EstimatedTimeOfDelivery,
		sh.EstimatedDeliveryTimeFrame.EstimatedThrough,
	)

	payload.Destination = domain.RawAddress{
		Street:     sh.Destination.Address.StreetAddress,
		City:       sh.Destination.Address.AddressLocality,
		PostalCode: sh.Destination.Address.PostalCode,
		Country:    sh.Destination.Address.CountryCode,
	}

	return payload
}

// EstimateTransit is not part of the unified tracking product.
func (a *DHLAdapter) EstimateTransit(ctx context.Context, origin, destination domain.RawAddress) (*time.Time, error) {
	return nil, domain.ErrUnsupportedOperation
}

// ValidateAddress is not part of the unified tracking product.
func (a *DHLAdapter) ValidateAddress(ctx context.Context, destination domain.RawAddress) (string, error) {
	return "", domain.ErrUnsupportedOperation
}
