// Package fedex provides OAuth-authenticated access to the FedEx Rates API.
package fedex

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://apis.fedex.com"

// Client fetches shipping rates from FedEx.
type Client interface {
	// RateQuotes returns account-rated quotes for the shipment. Dimensions
	// are inches, weight is pounds.
	RateQuotes(ctx context.Context, shipment Shipment) ([]Rate, error)
}

// Address is a FedEx-shaped postal address.
type Address struct {
	City        string
	State       string
	PostalCode  string
	CountryCode string
}

// Shipment describes one package to rate.
type Shipment struct {
	Shipper Address
	ShipTo  Address
	Length  float64
	Width   float64
	Height  float64
	Weight  float64
}

// Rate is one rated FedEx service.
type Rate struct {
	ServiceType string
	ServiceName string
	TotalCharge float64
	Currency    string
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
	clientID      string
	clientSecret  string
	accountNumber string
	baseURL       string
	http          *http.Client
}

// NewClient creates a FedEx Rates API client using OAuth client credentials.
func NewClient(clientID, clientSecret, accountNumber string, opts ...Option) Client {
	c := &httpClient{
		clientID:      clientID,
		clientSecret:  clientSecret,
		accountNumber: accountNumber,
		baseURL:       defaultBaseURL,
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

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *httpClient) token(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "fedex: build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "fedex: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "fedex: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("fedex: token returned status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "fedex: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("fedex: empty access token")
	}
	return tok.AccessToken, nil
}

type rateResponse struct {
	Output struct {
		RateReplyDetails []rateReplyDetail `json:"rateReplyDetails"`
	} `json:"output"`
}

type rateReplyDetail struct {
	ServiceType          string `json:"serviceType"`
	ServiceName          string `json:"serviceName"`
	RatedShipmentDetails []struct {
		TotalNetCharge float64 `json:"totalNetCharge"`
		Currency       string  `json:"currency"`
	} `json:"ratedShipmentDetails"`
}

func (c *httpClient) RateQuotes(ctx context.Context, shipment Shipment) ([]Rate, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"accountNumber": map[string]any{"value": c.accountNumber},
		"requestedShipment": map[string]any{
			"shipper": map[string]any{
				"address": map[string]any{
					"city":                shipment.Shipper.City,
					"stateOrProvinceCode": shipment.Shipper.State,
					"postalCode":          shipment.Shipper.PostalCode,
					"countryCode":         shipment.Shipper.CountryCode,
				},
			},
			"recipient": map[string]any{
				"address": map[string]any{
					"city":                shipment.ShipTo.City,
					"stateOrProvinceCode": shipment.ShipTo.State,
					"postalCode":          shipment.ShipTo.PostalCode,
					"countryCode":         shipment.ShipTo.CountryCode,
				},
			},
			"pickupType":      "USE_SCHEDULED_PICKUP",
			"rateRequestType": []string{"ACCOUNT", "LIST"},
			"requestedPackageLineItems": []map[string]any{{
				"weight": map[string]any{"units": "LB", "value": shipment.Weight},
				"dimensions": map[string]any{
					"length": shipment.Length,
					"width":  shipment.Width,
					"height": shipment.Height,
					"units":  "IN",
				},
			}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "fedex: marshal rate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rate/v1/rates/quotes", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fedex: build rate request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fedex: rate request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fedex: read rate response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fedex: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed rateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "fedex: unmarshal rate response")
	}

	rates := make([]Rate, 0, len(parsed.Output.RateReplyDetails))
	for _, d := range parsed.Output.RateReplyDetails {
		if len(d.RatedShipmentDetails) == 0 {
			continue
		}
		name := d.ServiceName
		if name == "" {
			name = serviceDisplayName(d.ServiceType)
		}
		rates = append(rates, Rate{
			ServiceType: d.ServiceType,
			ServiceName: name,
			TotalCharge: d.RatedShipmentDetails[0].TotalNetCharge,
			Currency:    d.RatedShipmentDetails[0].Currency,
		})
	}
	return rates, nil
}

// serviceDisplayName prettifies a FedEx service type enum like
// "FEDEX_GROUND" when the response omits the display name.
func serviceDisplayName(serviceType string) string {
	name := strings.ReplaceAll(serviceType, "_", " ")
	name = strings.ToLower(name)
	parts := strings.Fields(name)
	for i, p := range parts {
		if p == "fedex" {
			parts[i] = "FedEx"
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
