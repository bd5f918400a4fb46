package shippo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateShipment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shipments", r.URL.Path)
		assert.Equal(t, "ShippoToken shippo_test_abc", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, false, payload["async"])
		parcels := payload["parcels"].([]any)
		parcel := parcels[0].(map[string]any)
		assert.Equal(t, "lb", parcel["mass_unit"])
		assert.Equal(t, "in", parcel["distance_unit"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"object_id": "shp-1",
			"status": "SUCCESS",
			"rates": [
				{"object_id":"rate-usps","amount":"7.33","currency":"USD","provider":"USPS","servicelevel":{"name":"Priority Mail","token":"usps_priority"}},
				{"object_id":"rate-ups","amount":"11.20","currency":"USD","provider":"UPS","servicelevel":{"name":"Ground","token":"ups_ground"}}
			]
		}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient("shippo_test_abc", WithBaseURL(srv.URL))
	rates, err := client.CreateShipment(context.Background(), Shipment{
		From:   Address{City: "Dallas", State: "TX", Zip: "75001", Country: "US"},
		To:     Address{City: "Reno", State: "NV", Zip: "89501", Country: "US"},
		Length: 10, Width: 8, Height: 4, Weight: 2.5,
	})
	require.NoError(t, err)
	require.Len(t, rates, 2)

	assert.Equal(t, "rate-usps", rates[0].ObjectID)
	assert.Equal(t, "USPS", rates[0].Provider)
	assert.Equal(t, "Priority Mail", rates[0].ServiceLevel)
	assert.Equal(t, "7.33", rates[0].Amount)
	assert.Equal(t, "USD", rates[0].Currency)
	assert.Equal(t, "UPS", rates[1].Provider)
}

func TestCreateShipmentStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"object_id":"shp-2","status":"ERROR","rates":[],"messages":[{"source":"Shippo","text":"address_to is invalid"}]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient("shippo_test_abc", WithBaseURL(srv.URL))
	_, err := client.CreateShipment(context.Background(), Shipment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address_to is invalid")
}

func TestCreateShipmentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid token"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client := NewClient("bad-token", WithBaseURL(srv.URL))
	_, err := client.CreateShipment(context.Background(), Shipment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCreateShipmentNoRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"object_id":"shp-3","status":"SUCCESS","rates":[]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient("shippo_test_abc", WithBaseURL(srv.URL))
	rates, err := client.CreateShipment(context.Background(), Shipment{})
	require.NoError(t, err)
	assert.Empty(t, rates)
}
