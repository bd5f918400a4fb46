// Package ups provides OAuth-authenticated access to the UPS Rating API.
package ups

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://onlinetools.ups.com"
	ratingVersion  = "v2409"
)

// Client fetches shipping rates from UPS.
type Client interface {
	// ShopRates returns every service UPS offers for the shipment. UPS rates
	// in pounds and inches only; callers supply dimensions in those units.
	ShopRates(ctx context.Context, shipment Shipment) ([]Rate, error)
}

// Address is a UPS-shaped postal address.
type Address struct {
	Name        string
	AddressLine []string
	City        string
	State       string
	PostalCode  string
	CountryCode string
}

// Shipment describes one package to rate, inches and pounds.
type Shipment struct {
	Shipper Address
	ShipTo  Address
	Length  float64
	Width   float64
	Height  float64
	Weight  float64
}

// Rate is one rated UPS service.
type Rate struct {
	ServiceCode  string
	ServiceName  string
	TotalCharges string // decimal string as returned by UPS
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
	clientID      string
	clientSecret  string
	accountNumber string
	baseURL       string
	http          *http.Client
}

// NewClient creates a UPS Rating API client using OAuth client credentials.
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
	ExpiresIn   string `json:"expires_in"`
}

// token performs the OAuth client-credentials grant. UPS tokens are fetched
// per rating call rather than cached; the grant is cheap and a stale token is
// the most common rating failure in practice.
func (c *httpClient) token(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/security/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "ups: build token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ups: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "ups: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("ups: token returned status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "ups: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("ups: empty access token")
	}
	return tok.AccessToken, nil
}

type rateResponse struct {
	RateResponse struct {
		RatedShipment []ratedShipment `json:"RatedShipment"`
	} `json:"RateResponse"`
}

type ratedShipment struct {
	Service struct {
		Code string `json:"Code"`
	} `json:"Service"`
	TotalCharges struct {
		CurrencyCode  string `json:"CurrencyCode"`
		MonetaryValue string `json:"MonetaryValue"`
	} `json:"TotalCharges"`
}

func (c *httpClient) ShopRates(ctx context.Context, shipment Shipment) ([]Rate, error) {
	rates, err := c.shopOnce(ctx, shipment)
	if err != nil && isUnauthorized(err) {
		// One fresh-token retry; UPS invalidates tokens aggressively.
		rates, err = c.shopOnce(ctx, shipment)
	}
	return rates, err
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ups: unexpected status %d: %s", e.code, e.body)
}

func isUnauthorized(err error) bool {
	var se *statusError
	return eris.As(err, &se) && se.code == http.StatusUnauthorized
}

func (c *httpClient) shopOnce(ctx context.Context, shipment Shipment) ([]Rate, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	payload := buildRatePayload(shipment, c.accountNumber)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "ups: marshal rate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/rating/"+ratingVersion+"/Shop", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ups: build rate request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ups: rate request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ups: read rate response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(&statusError{code: resp.StatusCode, body: string(respBody)}, "ups: shop rates")
	}

	var parsed rateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "ups: unmarshal rate response")
	}

	rates := make([]Rate, 0, len(parsed.RateResponse.RatedShipment))
	for _, rs := range parsed.RateResponse.RatedShipment {
		rates = append(rates, Rate{
			ServiceCode:  rs.Service.Code,
			ServiceName:  ServiceName(rs.Service.Code),
			TotalCharges: rs.TotalCharges.MonetaryValue,
			Currency:     rs.TotalCharges.CurrencyCode,
		})
	}
	return rates, nil
}

func buildRatePayload(s Shipment, accountNumber string) map[string]any {
	addr := func(a Address) map[string]any {
		return map[string]any{
			"Name": a.Name,
			"Address": map[string]any{
				"AddressLine":       a.AddressLine,
				"City":              a.City,
				"StateProvinceCode": a.State,
				"PostalCode":        a.PostalCode,
				"CountryCode":       a.CountryCode,
			},
		}
	}
	shipper := addr(s.Shipper)
	shipper["ShipperNumber"] = accountNumber

	return map[string]any{
		"RateRequest": map[string]any{
			"Request": map[string]any{
				"TransactionReference": map[string]any{"CustomerContext": "rate shop"},
			},
			"Shipment": map[string]any{
				"Shipper":  shipper,
				"ShipTo":   addr(s.ShipTo),
				"ShipFrom": addr(s.Shipper),
				"Package": map[string]any{
					"PackagingType": map[string]any{"Code": "02"},
					"Dimensions": map[string]any{
						"UnitOfMeasurement": map[string]any{"Code": "IN"},
						"Length":            fmt.Sprintf("%.2f", s.Length),
						"Width":             fmt.Sprintf("%.2f", s.Width),
						"Height":            fmt.Sprintf("%.2f", s.Height),
					},
					"PackageWeight": map[string]any{
						// UPS rating is always pounds regardless of the
						// caller's preferred unit.
						"UnitOfMeasurement": map[string]any{"Code": "LBS"},
						"Weight":            fmt.Sprintf("%.2f", s.Weight),
					},
				},
			},
		},
	}
}
