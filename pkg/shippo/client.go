// Package shippo provides access to the Shippo multi-carrier rating API.
package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.goshippo.com"

// Client fetches rates from Shippo. Shippo is an aggregator, so one
// shipment returns rates across multiple underlying carriers.
type Client interface {
	// CreateShipment rates the shipment synchronously and returns the
	// rates embedded in the created shipment object.
	CreateShipment(ctx context.Context, shipment Shipment) ([]Rate, error)
}

// Address is a Shippo-shaped postal address.
type Address struct {
	City    string
	State   string
	Zip     string
	Country string
}

// Shipment describes one parcel to rate. Dimensions are inches, weight
// is pounds.
type Shipment struct {
	From   Address
	To     Address
	Length float64
	Width  float64
	Height float64
	Weight float64
}

// Rate is one rate row from a created shipment.
type Rate struct {
	ObjectID     string
	Provider     string
	ServiceLevel string
	Amount       string
	Currency     string
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

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Shippo API client authenticated with an API token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
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

type shipmentResponse struct {
	ObjectID string `json:"object_id"`
	Status   string `json:"status"`
	Rates    []struct {
		ObjectID     string `json:"object_id"`
		Amount       string `json:"amount"`
		Currency     string `json:"currency"`
		Provider     string `json:"provider"`
		Servicelevel struct {
			Name  string `json:"name"`
			Token string `json:"token"`
		} `json:"servicelevel"`
	} `json:"rates"`
	Messages []struct {
		Source string `json:"source"`
		Text   string `json:"text"`
	} `json:"messages"`
}

func (c *httpClient) CreateShipment(ctx context.Context, shipment Shipment) ([]Rate, error) {
	payload := map[string]any{
		"address_from": map[string]any{
			"city":    shipment.From.City,
			"state":   shipment.From.State,
			"zip":     shipment.From.Zip,
			"country": shipment.From.Country,
		},
		"address_to": map[string]any{
			"city":    shipment.To.City,
			"state":   shipment.To.State,
			"zip":     shipment.To.Zip,
			"country": shipment.To.Country,
		},
		"parcels": []map[string]any{{
			"length":        shipment.Length,
			"width":         shipment.Width,
			"height":        shipment.Height,
			"distance_unit": "in",
			"weight":        shipment.Weight,
			"mass_unit":     "lb",
		}},
		// Synchronous rating: rates are present on the response instead
		// of requiring a second poll call.
		"async": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "shippo: marshal shipment request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/shipments", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "shippo: build shipment request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "ShippoToken "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "shippo: shipment request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "shippo: read shipment response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, eris.Errorf("shippo: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed shipmentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "shippo: unmarshal shipment response")
	}
	if parsed.Status == "ERROR" {
		msg := "unknown error"
		if len(parsed.Messages) > 0 {
			msg = parsed.Messages[0].Text
		}
		return nil, eris.Errorf("shippo: shipment rating failed: %s", msg)
	}

	rates := make([]Rate, 0, len(parsed.Rates))
	for _, r := range parsed.Rates {
		rates = append(rates, Rate{
			ObjectID:     r.ObjectID,
			Provider:     r.Provider,
			ServiceLevel: r.Servicelevel.Name,
			Amount:       r.Amount,
			Currency:     r.Currency,
		})
	}
	return rates, nil
}
