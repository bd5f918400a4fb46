package fedex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateServer(t *testing.T, rateStatus int, rateBody string) (*httptest.Server, *int) {
	t.Helper()
	rateCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		assert.Equal(t, "key", r.FormValue("client_id"))
		assert.Equal(t, "secret", r.FormValue("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","expires_in":3599}`))
	})
	mux.HandleFunc("/rate/v1/rates/quotes", func(w http.ResponseWriter, r *http.Request) {
		rateCalls++
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		acct := payload["accountNumber"].(map[string]any)
		assert.Equal(t, "acct-9", acct["value"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rateStatus)
		_, _ = w.Write([]byte(rateBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &rateCalls
}

func TestRateQuotes(t *testing.T) {
	body := `{"output":{"rateReplyDetails":[
		{"serviceType":"FEDEX_GROUND","serviceName":"FedEx Ground","ratedShipmentDetails":[{"totalNetCharge":12.47,"currency":"USD"}]},
		{"serviceType":"FEDEX_2_DAY","serviceName":"","ratedShipmentDetails":[{"totalNetCharge":21.05,"currency":"USD"}]},
		{"serviceType":"PRIORITY_OVERNIGHT","serviceName":"FedEx Priority Overnight","ratedShipmentDetails":[]}
	]}}`
	srv, _ := newRateServer(t, http.StatusOK, body)

	client := NewClient("key", "secret", "acct-9", WithBaseURL(srv.URL))
	rates, err := client.RateQuotes(context.Background(), Shipment{
		Shipper: Address{City: "Dallas", State: "TX", PostalCode: "75001", CountryCode: "US"},
		ShipTo:  Address{City: "Reno", State: "NV", PostalCode: "89501", CountryCode: "US"},
		Length:  10, Width: 8, Height: 4, Weight: 2.5,
	})
	require.NoError(t, err)
	require.Len(t, rates, 2)

	assert.Equal(t, "FedEx Ground", rates[0].ServiceName)
	assert.Equal(t, 12.47, rates[0].TotalCharge)
	assert.Equal(t, "USD", rates[0].Currency)

	// Missing display name falls back to a prettified service type.
	assert.Equal(t, "FedEx 2 Day", rates[1].ServiceName)
}

func TestRateQuotesEmpty(t *testing.T) {
	srv, _ := newRateServer(t, http.StatusOK, `{"output":{"rateReplyDetails":[]}}`)

	client := NewClient("key", "secret", "acct-9", WithBaseURL(srv.URL))
	rates, err := client.RateQuotes(context.Background(), Shipment{})
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestRateQuotesErrorStatus(t *testing.T) {
	srv, _ := newRateServer(t, http.StatusServiceUnavailable, `{"errors":[{"code":"SERVICE.UNAVAILABLE"}]}`)

	client := NewClient("key", "secret", "acct-9", WithBaseURL(srv.URL))
	_, err := client.RateQuotes(context.Background(), Shipment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRateQuotesTokenFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"code":"NOT.AUTHORIZED.ERROR"}]}`, http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient("bad", "creds", "acct-9", WithBaseURL(srv.URL))
	_, err := client.RateQuotes(context.Background(), Shipment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestServiceDisplayName(t *testing.T) {
	assert.Equal(t, "FedEx Home Delivery", serviceDisplayName("FEDEX_HOME_DELIVERY"))
	assert.Equal(t, "Priority Overnight", serviceDisplayName("PRIORITY_OVERNIGHT"))
}
