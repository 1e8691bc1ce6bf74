package adapter

import (
	"context"
	"encoding/xml"
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

// USPSAdapter talks to the USPS Web Tools TrackV2 XML API. Web Tools carries
// the USERID inside the request XML rather than a token, so there is no
// session to manage.
type USPSAdapter struct {
	baseURL string
	userID  string
	client  *http.Client
	logger  *zap.Logger
}

// NewUSPSAdapter creates a USPSAdapter.
func NewUSPSAdapter(cfg config.USPSConfig, client *http.Client) *USPSAdapter {
	return &USPSAdapter{
		baseURL: cfg.BaseURL,
		userID:  cfg.UserID,
		client:  client,
		logger:  logger.Get(),
	}
}

// Carrier identifies which carrier this adapter serves.
func (a *USPSAdapter) Carrier() domain.Carrier { return domain.CarrierUSPS }

// uspsTrackResponse mirrors the TrackV2 response. TrackSummary is the most
// recent event; TrackDetail entries follow newest-first. No XMLName pin:
// credential failures come back with a bare <Error> root whose Description
// lands in the top-level field.
type uspsTrackResponse struct {
	TrackInfo struct {
		ID                   string   `xml:"ID,attr"`
		TrackSummary         string   `xml:"TrackSummary"`
		TrackDetail          []string `xml:"TrackDetail"`
		ExpectedDeliveryDate string   `xml:"ExpectedDeliveryDate"`
		Error                struct {
			Description string `xml:"Description"`
		} `xml:"Error"`
	} `xml:"TrackInfo"`
	Error struct {
		Description string `xml:"Description"`
	} `xml:"Error"`
	Description string `xml:"Description"`
}

// Fetch retrieves the raw tracking payload for one USPS tracking number.
func (a *USPSAdapter) Fetch(ctx context.Context, trackingNumber string) (*domain.RawTrackingPayload, error) {
	requestXML := fmt.Sprintf(
		`<TrackRequest USERID=%q><TrackID ID=%q></TrackID></TrackRequest>`,
		a.userID, trackingNumber,
	)

	query := url.Values{
		"API": {"TrackV2"},
		"XML": {requestXML},
	}

	var payload *domain.RawTrackingPayload

	err := doWithBackoff(ctx, domain.CarrierUSPS, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			a.baseURL+"?"+query.Encode(), nil)
		if err != nil {
			return 0, err
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if retryable(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &domain.TransientError{
				Carrier: domain.CarrierUSPS,
				Status:  resp.StatusCode,
			}
		}

		var tr uspsTrackResponse
		if err := xml.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return resp.StatusCode, &domain.ParseError{Carrier: domain.CarrierUSPS, Err: err}
		}

		// Web Tools signals every failure inside a 200 body.
		if desc := firstNonEmpty(tr.TrackInfo.Error.Description, tr.Error.Description, tr.Description); desc != "" {
			if isUSPSNotFound(desc) {
				return resp.StatusCode, &domain.NotFoundError{
					Carrier:        domain.CarrierUSPS,
					TrackingNumber: trackingNumber,
				}
			}
			if isUSPSAuthFailure(desc) {
				return resp.StatusCode, &domain.AuthError{
					Carrier: domain.CarrierUSPS,
					Err:     fmt.Errorf("%s", desc),
				}
			}
			return resp.StatusCode, &domain.TransientError{
				Carrier: domain.CarrierUSPS,
				Err:     fmt.Errorf("%s", desc),
			}
		}

		payload = mapUSPSResponse(tr)
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// mapUSPSResponse converts the summary plus detail lines into events,
// newest-first. USPS embeds the scan timestamp inside the prose, so the
// whole line travels as both description and timestamp for the normalizer
// to pick apart.
func mapUSPSResponse(tr uspsTrackResponse) *domain.RawTrackingPayload {
	payload := &domain.RawTrackingPayload{Carrier: domain.CarrierUSPS}

	lines := make([]string, 0, 1+len(tr.TrackInfo.TrackDetail))
	if tr.TrackInfo.TrackSummary != "" {
		lines = append(lines, tr.TrackInfo.TrackSummary)
	}
	lines = append(lines, tr.TrackInfo.TrackDetail...)

	for _, line := range lines {
		desc, ts, loc := splitUSPSLine(line)
		payload.Events = append(payload.Events, domain.RawEvent{
			Description: desc,
			Timestamp:   ts,
			Location:    loc,
		})
	}

	payload.DeliveryEstimate = tr.TrackInfo.ExpectedDeliveryDate
	return payload
}

// splitUSPSLine picks apart a Web Tools prose line such as
// "Delivered, April 18, 2025, 2:32 pm, DENVER, CO 80014" into its status,
// timestamp and location thirds. Lines that do not follow the pattern keep
// everything in the description.
func splitUSPSLine(line string) (desc, timestamp, location string) {
	parts := strings.Split(line, ", ")
	if len(parts) < 4 {
		return strings.TrimSpace(line), "", ""
	}

	// The timestamp spans three comma segments: month-day, year, clock time.
	for i := 0; i+2 < len(parts); i++ {
		candidate := strings.Join(parts[i:i+3], ", ")
		if _, err := time.Parse("January 2, 2006, 3:04 pm", candidate); err == nil {
			desc = strings.Join(parts[:i], ", ")
			timestamp = candidate
			location = strings.Join(parts[i+3:], ", ")
			return strings.TrimSpace(desc), timestamp, strings.TrimSpace(location)
		}
		if _, err := time.Parse("January 2, 2006, 3:04 PM", candidate); err == nil {
			desc = strings.Join(parts[:i], ", ")
			timestamp = candidate
			location = strings.Join(parts[i+3:], ", ")
			return strings.TrimSpace(desc), timestamp, strings.TrimSpace(location)
		}
	}

	return strings.TrimSpace(line), "", ""
}

func isUSPSNotFound(desc string) bool {
	lower := strings.ToLower(desc)
	return strings.Contains(lower, "could not locate") ||
		strings.Contains(lower, "no record of that item")
}

func isUSPSAuthFailure(desc string) bool {
	lower := strings.ToLower(desc)
	return strings.Contains(lower, "authorization failure") ||
		strings.Contains(lower, "username") && strings.Contains(lower, "invalid")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// EstimateTransit is not offered by Web Tools.
func (a *USPSAdapter) EstimateTransit(ctx context.Context, origin, destination domain.RawAddress) (*time.Time, error) {
	return nil, domain.ErrUnsupportedOperation
}

// ValidateAddress is not offered on the tracking credential tier.
func (a *USPSAdapter) ValidateAddress(ctx context.Context, destination domain.RawAddress) (string, error) {
	return "", domain.ErrUnsupportedOperation
}
