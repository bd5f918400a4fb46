package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Marketplace identifies the sales channel an order was ingested from.
// Order numbers are unique per marketplace, not globally.
type Marketplace string

const (
	MarketplaceShopify Marketplace = "shopify"
	MarketplaceAmazon  Marketplace = "amazon"
	MarketplaceEbay    Marketplace = "ebay"
	MarketplaceTikTok  Marketplace = "tiktok"
	MarketplaceDoba    Marketplace = "doba"
	MarketplaceMirakl  Marketplace = "mirakl"
	MarketplaceReverb  Marketplace = "reverb"
	MarketplaceWalmart Marketplace = "walmart"
)

// Address is a postal address, used both as the order's ship-to and the
// shipper-of-record's origin.
type Address struct {
	Name    string `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	Phone   string `json:"phone,omitempty" yaml:"phone" mapstructure:"phone"`
	Street1 string `json:"street1" yaml:"street1" mapstructure:"street1"`
	Street2 string `json:"street2,omitempty" yaml:"street2" mapstructure:"street2"`
	City    string `json:"city" yaml:"city" mapstructure:"city"`
	State   string `json:"state" yaml:"state" mapstructure:"state"`
	Zip     string `json:"zip" yaml:"zip" mapstructure:"zip"`
	Country string `json:"country" yaml:"country" mapstructure:"country"`
}

// HasEssentials reports whether the address carries enough data to rate
// against: at minimum a zip or a city+state.
func (a Address) HasEssentials() bool {
	if strings.TrimSpace(a.Zip) != "" {
		return true
	}
	return strings.TrimSpace(a.City) != "" && strings.TrimSpace(a.State) != ""
}

// IsZero reports whether every address field is empty.
func (a Address) IsZero() bool {
	return a.Name == "" && a.Phone == "" && a.Street1 == "" && a.Street2 == "" &&
		a.City == "" && a.State == "" && a.Zip == "" && a.Country == ""
}

// Order is a marketplace purchase awaiting shipment. The default_* fields are
// a denormalized copy of the currently selected cheapest rate, maintained by
// the fetch orchestrator; label purchase reads them downstream.
type Order struct {
	ID          int64       `json:"id"`
	OrderNumber string      `json:"order_number"`
	Marketplace Marketplace `json:"marketplace"`
	ShipTo      Address     `json:"ship_to"`

	DefaultRateID   string          `json:"default_rate_id,omitempty"`
	DefaultCarrier  string          `json:"default_carrier,omitempty"`
	DefaultService  string          `json:"default_service,omitempty"`
	DefaultPrice    decimal.Decimal `json:"default_price"`
	DefaultCurrency string          `json:"default_currency,omitempty"`
	DefaultSource   string          `json:"default_source,omitempty"`

	// RateFetched gates redundant batch fetches; it is set true only after a
	// winner has been selected and the default_* fields written.
	RateFetched bool `json:"shipping_rate_fetched"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultRate is the denormalized winner written back onto an order after a
// successful fetch-and-select.
type DefaultRate struct {
	RateID   string          `json:"rate_id,omitempty"`
	Carrier  string          `json:"carrier"`
	Service  string          `json:"service"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Source   string          `json:"source"`
}
