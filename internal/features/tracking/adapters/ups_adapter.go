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

// UPSAdapter talks to the UPS Track, Address Validation and Transit Times
// APIs using OAuth client credentials.
type UPSAdapter struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	session      *tokenSession
	logger       *zap.Logger
}

// NewUPSAdapter creates a UPSAdapter with its own token session.
func NewUPSAdapter(cfg config.UPSConfig, client *http.Client) *UPSAdapter {
	a := &UPSAdapter{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       client,
		logger:       logger.Get(),
	}
	a.session = newTokenSession(a.refreshToken)
	return a
}

// Carrier identifies which carrier this adapter serves.
func (a *UPSAdapter) Carrier() domain.Carrier { return domain.CarrierUPS }

// upsTokenResponse is the OAuth token endpoint payload. UPS returns
// expires_in as a string.
type upsTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// upsTrackResponse mirrors the UPS Track API shape, reduced to the fields
// the pipeline reads.
type upsTrackResponse struct {
	TrackResponse struct {
		Shipment []struct {
			Package []struct {
				Activity []struct {
					Status struct {
						Description string `json:"description"`
						Code        string `json:"code"`
					} `json:"status"`
					Date     string `json:"date"`
					Time     string `json:"time"`
					Location struct {
						Address upsAddress `json:"address"`
					} `json:"location"`
				} `json:"activity"`
				DeliveryDate []struct {
					Type string `json:"type"`
					Date string `json:"date"`
				} `json:"deliveryDate"`
				PackageAddress []struct {
					Type    string     `json:"type"`
					Address upsAddress `json:"address"`
				} `json:"packageAddress"`
			} `json:"package"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

type upsAddress struct {
	AddressLine1  string `json:"addressLine1"`
	City          string `json:"city"`
	StateProvince string `json:"stateProvince"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
	CountryCode   string `json:"countryCode"`
}

func (addr upsAddress) toRaw() domain.RawAddress {
	country := addr.Country
	if country == "" {
		country = addr.CountryCode
	}
	return domain.RawAddress{
		Street:     addr.AddressLine1,
		City:       addr.City,
		State:      addr.StateProvince,
		PostalCode: addr.PostalCode,
		Country:    country,
	}
}

func (addr upsAddress) location() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{addr.City, addr.StateProvince, addr.CountryCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// refreshToken exchanges the client credentials for a bearer token.
func (a *UPSAdapter) refreshToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/security/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, &domain.AuthError{
			Carrier: domain.CarrierUPS,
			Err:     fmt.Errorf("token endpoint returned %d", resp.StatusCode),
		}
	}

	var tok upsTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", 0, &domain.AuthError{Carrier: domain.CarrierUPS, Err: err}
	}
	if tok.AccessToken == "" {
		return "", 0, &domain.AuthError{
			Carrier: domain.CarrierUPS,
			Err:     fmt.Errorf("token endpoint returned empty access_token"),
		}
	}

	ttl := time.Hour
	if secs, err := time.ParseDuration(tok.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	return tok.AccessToken, ttl, nil
}

// authRejected reports whether the carrier rejected the bearer token. UPS
// answers both 401 and 403 for expired or revoked tokens.
func authRejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// authorizedGet performs a bearer-authenticated GET, refreshing the token and
// retrying exactly once on 401/403.
func (a *UPSAdapter) authorizedGet(ctx context.Context, rawURL string) (*http.Response, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := a.session.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("transId", fmt.Sprintf("track-%d", time.Now().UnixNano()))
		req.Header.Set("transactionSrc", "package-tracker")

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		if !authRejected(resp.StatusCode) {
			return resp, nil
		}

		resp.Body.Close()
		a.logger.Warn("UPS token rejected, refreshing once")
		a.session.Invalidate()
	}

	return nil, &domain.AuthError{
		Carrier: domain.CarrierUPS,
		Err:     fmt.Errorf("request still unauthorized after token refresh"),
	}
}

// Fetch retrieves the raw tracking payload for one UPS tracking number.
func (a *UPSAdapter) Fetch(ctx context.Context, trackingNumber string) (*domain.RawTrackingPayload, error) {
	var payload *domain.RawTrackingPayload

	err := doWithBackoff(ctx, domain.CarrierUPS, func() (int, error) {
		resp, err := a.authorizedGet(ctx,
			a.baseURL+"/api/track/v1/details/"+url.PathEscape(trackingNumber))
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return resp.StatusCode, &domain.NotFoundError{
				Carrier:        domain.CarrierUPS,
				TrackingNumber: trackingNumber,
			}
		case retryable(resp.StatusCode):
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		case resp.StatusCode != http.StatusOK:
			return resp.StatusCode, &domain.TransientError{
				Carrier: domain.CarrierUPS,
				Status:  resp.StatusCode,
			}
		}

		var tr upsTrackResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return resp.StatusCode, &domain.ParseError{Carrier: domain.CarrierUPS, Err: err}
		}

		payload = mapUPSResponse(tr)
		if payload == nil {
			return resp.StatusCode, &domain.NotFoundError{
				Carrier:        domain.CarrierUPS,
				TrackingNumber: trackingNumber,
			}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// mapUPSResponse flattens the first shipment/package into the neutral
// payload. UPS lists activity newest-first; the order is preserved.
func mapUPSResponse(tr upsTrackResponse) *domain.RawTrackingPayload {
	if len(tr.TrackResponse.Shipment) == 0 || len(tr.TrackResponse.Shipment[0].Package) == 0 {
		return nil
	}
	pkg := tr.TrackResponse.Shipment[0].Package[0]

	payload := &domain.RawTrackingPayload{Carrier: domain.CarrierUPS}

	for _, act := range pkg.Activity {
		payload.Events = append(payload.Events, domain.RawEvent{
			Description: act.Status.Description,
			Timestamp:   strings.TrimSpace(act.Date + " " + act.Time),
			Location:    act.Location.Address.location(),
			Code:        act.Status.Code,
		})
	}

	for _, dd := range pkg.DeliveryDate {
		if dd.Date != "" {
			payload.DeliveryEstimate = dd.Date
			break
		}
	}

	for _, pa := range pkg.PackageAddress {
		if strings.EqualFold(pa.Type, "DESTINATION") {
			payload.Destination = pa.Address.toRaw()
			break
		}
	}

	return payload
}

// upsXAVResponse is the Address Validation (XAV) API payload.
type upsXAVResponse struct {
	XAVResponse struct {
		Candidate []struct {
			AddressKeyFormat struct {
				AddressLine        []string `json:"AddressLine"`
				PoliticalDivision2 string   `json:"PoliticalDivision2"`
				PoliticalDivision1 string   `json:"PoliticalDivision1"`
				PostcodePrimaryLow string   `json:"PostcodePrimaryLow"`
				CountryCode        string   `json:"CountryCode"`
			} `json:"AddressKeyFormat"`
		} `json:"Candidate"`
	} `json:"XAVResponse"`
}

// ValidateAddress runs the destination through the UPS XAV API and returns
// the top candidate as a single line.
func (a *UPSAdapter) ValidateAddress(ctx context.Context, destination domain.RawAddress) (string, error) {
	body := map[string]any{
		"XAVRequest": map[string]any{
			"AddressKeyFormat": map[string]any{
				"AddressLine":        []string{destination.Street},
				"PoliticalDivision2": destination.City,
				"PoliticalDivision1": destination.State,
				"PostcodePrimaryLow": destination.PostalCode,
				"CountryCode":        destination.Country,
			},
		},
	}

	resp, err := a.authorizedPost(ctx, a.baseURL+"/api/addressvalidation/v1/1", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &domain.TransientError{Carrier: domain.CarrierUPS, Status: resp.StatusCode}
	}

	var xav upsXAVResponse
	if err := json.NewDecoder(resp.Body).Decode(&xav); err != nil {
		return "", &domain.ParseError{Carrier: domain.CarrierUPS, Err: err}
	}
	if len(xav.XAVResponse.Candidate) == 0 {
		return "", nil
	}

	c := xav.XAVResponse.Candidate[0].AddressKeyFormat
	validated := domain.RawAddress{
		Street:     strings.Join(c.AddressLine, " "),
		City:       c.PoliticalDivision2,
		State:      c.PoliticalDivision1,
		PostalCode: c.PostcodePrimaryLow,
		Country:    c.CountryCode,
	}
	return validated.String(), nil
}

// upsTransitResponse is the Transit Times API payload.
type upsTransitResponse struct {
	EmsResponse struct {
		Services []struct {
			ServiceLevel         string `json:"serviceLevel"`
			DeliveryDate         string `json:"deliveryDate"`
			EstimatedArrivalDate string `json:"estimatedArrival"`
		} `json:"services"`
	} `json:"emsResponse"`
}

// EstimateTransit asks the UPS Transit Times API for a ground delivery date
// between origin and destination.
func (a *UPSAdapter) EstimateTransit(ctx context.Context, origin, destination domain.RawAddress) (*time.Time, error) {
	if origin.PostalCode == "" || destination.PostalCode == "" {
		return nil, domain.ErrUnsupportedOperation
	}

	body := map[string]any{
		"originCountryCode":        orDefault(origin.Country, "US"),
		"originPostalCode":         origin.PostalCode,
		"originCityName":           origin.City,
		"originStateProvince":      origin.State,
		"destinationCountryCode":   orDefault(destination.Country, "US"),
		"destinationPostalCode":    destination.PostalCode,
		"destinationCityName":      destination.City,
		"destinationStateProvince": destination.State,
		"shipDate":                 time.Now().Format("2006-01-02"),
	}

	resp, err := a.authorizedPost(ctx, a.baseURL+"/api/shipments/v1/transittimes", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransientError{Carrier: domain.CarrierUPS, Status: resp.StatusCode}
	}

	var tt upsTransitResponse
	if err := json.NewDecoder(resp.Body).Decode(&tt); err != nil {
		return nil, &domain.ParseError{Carrier: domain.CarrierUPS, Err: err}
	}

	for _, svc := range tt.EmsResponse.Services {
		raw := svc.DeliveryDate
		if raw == "" {
			raw = svc.EstimatedArrivalDate
		}
		if raw == "" {
			continue
		}
		if est, err := time.Parse("2006-01-02", raw); err == nil {
			return &est, nil
		}
	}
	return nil, nil
}

// authorizedPost mirrors authorizedGet for JSON POST bodies.
func (a *UPSAdapter) authorizedPost(ctx context.Context, rawURL string, body any) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := a.session.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL,
			strings.NewReader(string(encoded)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		if !authRejected(resp.StatusCode) {
			return resp, nil
		}

		resp.Body.Close()
		a.session.Invalidate()
	}

	return nil, &domain.AuthError{
		Carrier: domain.CarrierUPS,
		Err:     fmt.Errorf("request still unauthorized after token refresh"),
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
