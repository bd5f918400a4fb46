// Package shipstation provides access to the ShipStation v1 rates API.
//
// ShipStation enforces a strict request budget (40 requests per minute
// per account), so all calls pass through a shared token-bucket limiter.
package shipstation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://ssapi.shipstation.com"

// Client fetches rates from ShipStation.
type Client interface {
	// GetRates returns rates for one carrier code. ShipStation rates a
	// single carrier per call, so multi-carrier shopping means one call
	// per configured code.
	GetRates(ctx context.Context, carrierCode string, shipment Shipment) ([]Rate, error)
}

// Shipment describes one package to rate. Dimensions are inches,
// weight is pounds.
type Shipment struct {
	FromPostalCode string
	ToCity         string
	ToState        string
	ToPostalCode   string
	ToCountry      string
	Length         float64
	Width          float64
	Height         float64
	Weight         float64
}

// Rate is one rated service from a carrier.
type Rate struct {
	ServiceName  string  `json:"serviceName"`
	ServiceCode  string  `json:"serviceCode"`
	ShipmentCost float64 `json:"shipmentCost"`
	OtherCost    float64 `json:"otherCost"`
}

// Total is the all-in cost of the rate.
func (r Rate) Total() float64 {
	return r.ShipmentCost + r.OtherCost
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRequestsPerSecond overrides the request budget. Zero or negative
// disables throttling.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a ShipStation client with Basic auth credentials.
// The default limiter stays under the documented 40 req/min budget.
func NewClient(apiKey, apiSecret string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   defaultBaseURL,
		limiter:   rate.NewLimiter(rate.Limit(0.65), 1),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetRates(ctx context.Context, carrierCode string, shipment Shipment) ([]Rate, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "shipstation: rate limiter wait")
		}
	}

	payload := map[string]any{
		"carrierCode":    carrierCode,
		"fromPostalCode": shipment.FromPostalCode,
		"toCity":         shipment.ToCity,
		"toState":        shipment.ToState,
		"toPostalCode":   shipment.ToPostalCode,
		"toCountry":      shipment.ToCountry,
		"weight": map[string]any{
			"value": shipment.Weight,
			"units": "pounds",
		},
		"dimensions": map[string]any{
			"length": shipment.Length,
			"width":  shipment.Width,
			"height": shipment.Height,
			"units":  "inches",
		},
		"confirmation": "none",
		"residential":  true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "shipstation: marshal rate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/shipments/getrates", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "shipstation: build rate request")
	}
	req.Header.Set("Content-Type", "application/json")
	creds := base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + c.apiSecret))
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "shipstation: rate request for %s", carrierCode)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "shipstation: read rate response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("shipstation: unexpected status %d for %s: %s",
			resp.StatusCode, carrierCode, string(respBody))
	}

	var rates []Rate
	if err := json.Unmarshal(respBody, &rates); err != nil {
		return nil, eris.Wrap(err, "shipstation: unmarshal rate response")
	}
	return rates, nil
}
