package rates

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/config"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/resilience"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/fedex"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/shippo"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/shipstation"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/ups"
)

// Adapter wraps one rate provider behind a uniform quote interface. Adapters
// normalize at the boundary: every quote comes back with a decimal price, a
// currency, and the provider recorded as Source.
type Adapter interface {
	Name() string
	FetchQuotes(ctx context.Context, req model.RateRequest) ([]model.RateQuote, error)
}

// BuildAdapters constructs the enabled provider adapters from configuration.
func BuildAdapters(cfg *config.Config) []Adapter {
	var adapters []Adapter
	if cfg.UPS.Enabled {
		client := ups.NewClient(cfg.UPS.ClientID, cfg.UPS.ClientSecret,
			cfg.UPS.AccountNumber, ups.WithBaseURL(cfg.UPS.BaseURL))
		adapters = append(adapters, NewUPSAdapter(client))
	}
	if cfg.FedEx.Enabled {
		client := fedex.NewClient(cfg.FedEx.ClientID, cfg.FedEx.ClientSecret,
			cfg.FedEx.AccountNumber, fedex.WithBaseURL(cfg.FedEx.BaseURL))
		adapters = append(adapters, NewFedExAdapter(client))
	}
	if cfg.Shippo.Enabled {
		client := shippo.NewClient(cfg.Shippo.Token, shippo.WithBaseURL(cfg.Shippo.BaseURL))
		adapters = append(adapters, NewShippoAdapter(client))
	}
	if cfg.ShipStation.Enabled {
		client := shipstation.NewClient(cfg.ShipStation.Key, cfg.ShipStation.Secret,
			shipstation.WithBaseURL(cfg.ShipStation.BaseURL),
			shipstation.WithRequestsPerSecond(cfg.ShipStation.RPS))
		adapters = append(adapters, NewShipStationAdapter(client, cfg.ShipStation.CarrierCodes))
	}
	return adapters
}

type upsAdapter struct {
	client ups.Client
	retry  resilience.RetryConfig
}

// NewUPSAdapter wraps a UPS client as an Adapter.
func NewUPSAdapter(client ups.Client) Adapter {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("ups", "shop_rates")
	return &upsAdapter{client: client, retry: cfg}
}

func (a *upsAdapter) Name() string { return "ups" }

func (a *upsAdapter) FetchQuotes(ctx context.Context, req model.RateRequest) ([]model.RateQuote, error) {
	shipment := ups.Shipment{
		Shipper: ups.Address{
			City:        req.From.City,
			State:       req.From.State,
			PostalCode:  req.From.Zip,
			CountryCode: req.From.Country,
		},
		ShipTo: ups.Address{
			City:        req.To.City,
			State:       req.To.State,
			PostalCode:  req.To.Zip,
			CountryCode: req.To.Country,
		},
		Length: req.Dims.Length,
		Width:  req.Dims.Width,
		Height: req.Dims.Height,
		Weight: req.Dims.Weight,
	}

	raw, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]ups.Rate, error) {
		return a.client.ShopRates(ctx, shipment)
	})
	if err != nil {
		return nil, err
	}

	quotes := make([]model.RateQuote, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.TotalCharges)
		if err != nil {
			zap.L().Warn("dropping unparseable price",
				zap.String("provider", "ups"),
				zap.String("service", r.ServiceName),
				zap.String("price", r.TotalCharges))
			continue
		}
		name := r.ServiceName
		if name == "" {
			name = ups.ServiceName(r.ServiceCode)
		}
		quotes = append(quotes, model.RateQuote{
			Carrier:  "UPS",
			Service:  name,
			Price:    price,
			Currency: r.Currency,
			Source:   "ups",
		})
	}
	return quotes, nil
}

type fedexAdapter struct {
	client fedex.Client
	retry  resilience.RetryConfig
}

// NewFedExAdapter wraps a FedEx client as an Adapter.
func NewFedExAdapter(client fedex.Client) Adapter {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("fedex", "rate_quotes")
	return &fedexAdapter{client: client, retry: cfg}
}

func (a *fedexAdapter) Name() string { return "fedex" }

func (a *fedexAdapter) FetchQuotes(ctx context.Context, req model.RateRequest) ([]model.RateQuote, error) {
	shipment := fedex.Shipment{
		Shipper: fedex.Address{
			City:        req.From.City,
			State:       req.From.State,
			PostalCode:  req.From.Zip,
			CountryCode: req.From.Country,
		},
		ShipTo: fedex.Address{
			City:        req.To.City,
			State:       req.To.State,
			PostalCode:  req.To.Zip,
			CountryCode: req.To.Country,
		},
		Length: req.Dims.Length,
		Width:  req.Dims.Width,
		Height: req.Dims.Height,
		Weight: req.Dims.Weight,
	}

	raw, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]fedex.Rate, error) {
		return a.client.RateQuotes(ctx, shipment)
	})
	if err != nil {
		return nil, err
	}

	quotes := make([]model.RateQuote, 0, len(raw))
	for _, r := range raw {
		quotes = append(quotes, model.RateQuote{
			Carrier:  "FedEx",
			Service:  r.ServiceName,
			Price:    decimal.NewFromFloat(r.TotalCharge),
			Currency: r.Currency,
			Source:   "fedex",
		})
	}
	return quotes, nil
}

type shippoAdapter struct {
	client shippo.Client
	retry  resilience.RetryConfig
}

// NewShippoAdapter wraps a Shippo client as an Adapter. Shippo is an
// aggregator: Carrier varies per quote, Source stays "shippo", and the rate
// object id is kept so the winning quote's label can be bought later.
func NewShippoAdapter(client shippo.Client) Adapter {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("shippo", "create_shipment")
	return &shippoAdapter{client: client, retry: cfg}
}

func (a *shippoAdapter) Name() string { return "shippo" }

func (a *shippoAdapter) FetchQuotes(ctx context.Context, req model.RateRequest) ([]model.RateQuote, error) {
	shipment := shippo.Shipment{
		From: shippo.Address{
			City:    req.From.City,
			State:   req.From.State,
			Zip:     req.From.Zip,
			Country: req.From.Country,
		},
		To: shippo.Address{
			City:    req.To.City,
			State:   req.To.State,
			Zip:     req.To.Zip,
			Country: req.To.Country,
		},
		Length: req.Dims.Length,
		Width:  req.Dims.Width,
		Height: req.Dims.Height,
		Weight: req.Dims.Weight,
	}

	raw, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]shippo.Rate, error) {
		return a.client.CreateShipment(ctx, shipment)
	})
	if err != nil {
		return nil, err
	}

	quotes := make([]model.RateQuote, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.Amount)
		if err != nil {
			zap.L().Warn("dropping unparseable price",
				zap.String("provider", "shippo"),
				zap.String("service", r.ServiceLevel),
				zap.String("price", r.Amount))
			continue
		}
		quotes = append(quotes, model.RateQuote{
			Carrier:  r.Provider,
			Service:  r.ServiceLevel,
			Price:    price,
			Currency: r.Currency,
			Source:   "shippo",
			RateID:   r.ObjectID,
		})
	}
	return quotes, nil
}

type shipstationAdapter struct {
	client       shipstation.Client
	carrierCodes []string
	retry        resilience.RetryConfig
}

// NewShipStationAdapter wraps a ShipStation client as an Adapter. ShipStation
// rates one carrier per call, so the adapter loops the configured codes and
// merges the results.
func NewShipStationAdapter(client shipstation.Client, carrierCodes []string) Adapter {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("shipstation", "get_rates")
	return &shipstationAdapter{client: client, carrierCodes: carrierCodes, retry: cfg}
}

func (a *shipstationAdapter) Name() string { return "shipstation" }

func (a *shipstationAdapter) FetchQuotes(ctx context.Context, req model.RateRequest) ([]model.RateQuote, error) {
	var quotes []model.RateQuote
	var lastErr error
	for _, code := range a.carrierCodes {
		raw, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]shipstation.Rate, error) {
			return a.client.GetRates(ctx, code, shipstation.Shipment{
				FromPostalCode: req.From.Zip,
				ToCity:         req.To.City,
				ToState:        req.To.State,
				ToPostalCode:   req.To.Zip,
				ToCountry:      req.To.Country,
				Length:         req.Dims.Length,
				Width:          req.Dims.Width,
				Height:         req.Dims.Height,
				Weight:         req.Dims.Weight,
			})
		})
		if err != nil {
			// One carrier code failing should not void the others; remember
			// the error in case nothing succeeds.
			zap.L().Warn("shipstation carrier code failed",
				zap.String("carrier_code", code), zap.Error(err))
			lastErr = err
			continue
		}
		carrier := carrierForCode(code)
		for _, r := range raw {
			quotes = append(quotes, model.RateQuote{
				Carrier:  carrier,
				Service:  r.ServiceName,
				Price:    decimal.NewFromFloat(r.Total()),
				Currency: "USD",
				Source:   "shipstation",
				RateID:   r.ServiceCode,
			})
		}
	}
	if len(quotes) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return quotes, nil
}

// carrierForCode maps a ShipStation carrier code to the carrier name used for
// cross-provider comparison.
func carrierForCode(code string) string {
	switch {
	case strings.HasPrefix(code, "stamps"), strings.HasPrefix(code, "usps"):
		return "USPS"
	case strings.HasPrefix(code, "ups"):
		return "UPS"
	case strings.HasPrefix(code, "fedex"):
		return "FedEx"
	case strings.HasPrefix(code, "dhl"):
		return "DHL"
	default:
		return code
	}
}
