package ups

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShipment() Shipment {
	return Shipment{
		Shipper: Address{Name: "Ship Hub", City: "Dallas", State: "TX", PostalCode: "75201", CountryCode: "US"},
		ShipTo:  Address{Name: "Jordan Reyes", City: "Austin", State: "TX", PostalCode: "73301", CountryCode: "US"},
		Length:  7, Width: 4, Height: 4, Weight: 0.25,
	}
}

func rateServer(t *testing.T, tokenStatus, rateStatus int, rateBody string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/security/v1/oauth/token":
			tokenCalls.Add(1)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			w.WriteHeader(tokenStatus)
			w.Write([]byte(`{"access_token": "tok-1", "expires_in": "14399"}`))
		case "/api/rating/v2409/Shop":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			shipment := payload["RateRequest"].(map[string]any)["Shipment"].(map[string]any)
			pkg := shipment["Package"].(map[string]any)
			weight := pkg["PackageWeight"].(map[string]any)
			assert.Equal(t, "LBS", weight["UnitOfMeasurement"].(map[string]any)["Code"])

			w.WriteHeader(rateStatus)
			w.Write([]byte(rateBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func TestShopRates_Success(t *testing.T) {
	srv, tokenCalls := rateServer(t, http.StatusOK, http.StatusOK, `{
		"RateResponse": {
			"RatedShipment": [
				{"Service": {"Code": "03"}, "TotalCharges": {"CurrencyCode": "USD", "MonetaryValue": "7.35"}},
				{"Service": {"Code": "12"}, "TotalCharges": {"CurrencyCode": "USD", "MonetaryValue": "14.80"}}
			]
		}
	}`)

	c := NewClient("client-id", "client-secret", "A1B2C3", WithBaseURL(srv.URL))
	rates, err := c.ShopRates(context.Background(), testShipment())
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "UPS Ground", rates[0].ServiceName)
	assert.Equal(t, "7.35", rates[0].TotalCharges)
	assert.Equal(t, "USD", rates[0].Currency)
	assert.Equal(t, "UPS 3 Day Select", rates[1].ServiceName)
	assert.EqualValues(t, 1, tokenCalls.Load())
}

func TestShopRates_EmptyResponse(t *testing.T) {
	srv, _ := rateServer(t, http.StatusOK, http.StatusOK, `{"RateResponse": {"RatedShipment": []}}`)

	c := NewClient("client-id", "client-secret", "A1B2C3", WithBaseURL(srv.URL))
	rates, err := c.ShopRates(context.Background(), testShipment())
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestShopRates_UnauthorizedRetriesOnce(t *testing.T) {
	var rateCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/security/v1/oauth/token":
			w.Write([]byte(`{"access_token": "tok-1"}`))
		case "/api/rating/v2409/Shop":
			if rateCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"response": {"errors": [{"code": "250002", "message": "Invalid token"}]}}`))
				return
			}
			w.Write([]byte(`{"RateResponse": {"RatedShipment": [{"Service": {"Code": "03"}, "TotalCharges": {"CurrencyCode": "USD", "MonetaryValue": "7.35"}}]}}`))
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient("client-id", "client-secret", "A1B2C3", WithBaseURL(srv.URL))
	rates, err := c.ShopRates(context.Background(), testShipment())
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.EqualValues(t, 2, rateCalls.Load())
}

func TestShopRates_TokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"response": {"errors": [{"code": "10401", "message": "ClientId is invalid"}]}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("bad-id", "bad-secret", "A1B2C3", WithBaseURL(srv.URL))
	_, err := c.ShopRates(context.Background(), testShipment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token returned status 401")
}

func TestServiceName_UnknownCode(t *testing.T) {
	assert.Equal(t, "UPS Ground", ServiceName("03"))
	assert.Equal(t, "UPS 99", ServiceName("99"))
}
