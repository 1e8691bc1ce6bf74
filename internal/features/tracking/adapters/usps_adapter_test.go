package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"package-tracker/internal/core/config"
	"package-tracker/internal/features/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uspsTrackBody = `<?xml version="1.0" encoding="UTF-8"?>
<TrackResponse>
  <TrackInfo ID="9400111899561704681189">
    <TrackSummary>Delivered, April 18, 2025, 2:32 pm, DENVER, CO 80014</TrackSummary>
    <TrackDetail>Out for Delivery, April 18, 2025, 8:04 am, DENVER, CO 80014</TrackDetail>
    <TrackDetail>Arrived at Post Office, April 18, 2025, 6:10 am, DENVER, CO 80014</TrackDetail>
    <ExpectedDeliveryDate>April 18, 2025</ExpectedDeliveryDate>
  </TrackInfo>
</TrackResponse>`

func uspsTestServer(t *testing.T, handler http.HandlerFunc) *USPSAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewUSPSAdapter(config.USPSConfig{
		BaseURL: srv.URL,
		UserID:  "TESTUSER",
	}, srv.Client())
}

// TestUSPSAdapter_Fetch verifies summary and detail lines map newest-first
// with the embedded timestamps split out.
func TestUSPSAdapter_Fetch(t *testing.T) {
	adapter := uspsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TrackV2", r.URL.Query().Get("API"))
		assert.Contains(t, r.URL.Query().Get("XML"), `USERID="TESTUSER"`)
		w.Write([]byte(uspsTrackBody))
	})

	payload, err := adapter.Fetch(context.Background(), "9400111899561704681189")
	require.NoError(t, err)

	assert.Equal(t, domain.CarrierUSPS, payload.Carrier)
	require.Len(t, payload.Events, 3)
	assert.Equal(t, "Delivered", payload.Events[0].Description)
	assert.Equal(t, "April 18, 2025, 2:32 pm", payload.Events[0].Timestamp)
	assert.Equal(t, "DENVER, CO 80014", payload.Events[0].Location)
	assert.Equal(t, "Out for Delivery", payload.Events[1].Description)
	assert.Equal(t, "April 18, 2025", payload.DeliveryEstimate)
}

// TestUSPSAdapter_Fetch_NotFound maps the in-body error to NotFoundError.
func TestUSPSAdapter_Fetch_NotFound(t *testing.T) {
	adapter := uspsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<TrackResponse>
  <TrackInfo ID="XX">
    <Error>
      <Description>A status update is not yet available... could not locate the tracking information</Description>
    </Error>
  </TrackInfo>
</TrackResponse>`))
	})

	_, err := adapter.Fetch(context.Background(), "9400111899561704681189")

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.CarrierUSPS, nf.Carrier)
}

// TestUSPSAdapter_Fetch_AuthFailure maps the credential error body.
func TestUSPSAdapter_Fetch_AuthFailure(t *testing.T) {
	adapter := uspsTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<Error>
  <Description>Authorization failure. Perhaps username and/or password is incorrect.</Description>
</Error>`))
	})

	_, err := adapter.Fetch(context.Background(), "9400111899561704681189")

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
}

// TestSplitUSPSLine covers the prose splitting edge cases.
func TestSplitUSPSLine(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantDesc     string
		wantTime     string
		wantLocation string
	}{
		{
			name:         "delivered with location",
			line:         "Delivered, In/At Mailbox, April 18, 2025, 2:32 pm, DENVER, CO 80014",
			wantDesc:     "Delivered, In/At Mailbox",
			wantTime:     "April 18, 2025, 2:32 pm",
			wantLocation: "DENVER, CO 80014",
		},
		{
			name:     "no timestamp",
			line:     "Pre-Shipment Info Sent to USPS, USPS Awaiting Item",
			wantDesc: "Pre-Shipment Info Sent to USPS, USPS Awaiting Item",
		},
		{
			name:         "uppercase meridiem",
			line:         "In Transit, April 17, 2025, 11:45 PM, KANSAS CITY, MO",
			wantDesc:     "In Transit",
			wantTime:     "April 17, 2025, 11:45 PM",
			wantLocation: "KANSAS CITY, MO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, ts, loc := splitUSPSLine(tt.line)
			assert.Equal(t, tt.wantDesc, desc)
			assert.Equal(t, tt.wantTime, ts)
			assert.Equal(t, tt.wantLocation, loc)
		})
	}
}

// TestUSPSAdapter_UnsupportedOperations verifies the degradation contract.
func TestUSPSAdapter_UnsupportedOperations(t *testing.T) {
	adapter := NewUSPSAdapter(config.USPSConfig{BaseURL: "http://unused"}, http.DefaultClient)

	_, err := adapter.EstimateTransit(context.Background(), domain.RawAddress{}, domain.RawAddress{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)

	_, err = adapter.ValidateAddress(context.Background(), domain.RawAddress{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
}
