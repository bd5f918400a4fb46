package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateType distinguishes the two dimension regimes an order's rate quotes are
// fetched under. Persisted rows for the two regimes never overlap.
type RateType string

const (
	// RateTypeOperational ("O") rates use the items' working dimensions.
	RateTypeOperational RateType = "O"
	// RateTypeDeclared ("D") rates use the independently edited declared
	// dimensions, falling back to SKU master data.
	RateTypeDeclared RateType = "D"
)

// Valid reports whether rt is one of the two known regimes.
func (rt RateType) Valid() bool {
	return rt == RateTypeOperational || rt == RateTypeDeclared
}

// RateRequest is the normalized input handed to every provider adapter: one
// origin, one destination, one package.
type RateRequest struct {
	From Address    `json:"from"`
	To   Address    `json:"to"`
	Dims Dimensions `json:"dims"`
}

// RateQuote is one provider's offered price for one (carrier, service),
// normalized at the adapter boundary. Source names the API that produced the
// quote and is distinct from Carrier: an aggregator returns quotes for many
// carriers under its own source.
type RateQuote struct {
	Carrier  string          `json:"carrier"`
	Service  string          `json:"service"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Source   string          `json:"source"`
	// RateID is the provider token required to purchase a label for this
	// quote later. Empty for providers that re-rate at purchase time.
	RateID string `json:"rate_id,omitempty"`
}

// PersistedRate is a RateQuote durably tied to an order and a regime. The
// tuple (OrderID, Carrier, Service, Source, RateType, RateID) is the row's
// identity; IsCheapest is owned by the selector and true on at most one row
// per (OrderID, RateType).
type PersistedRate struct {
	ID         string          `json:"id"`
	OrderID    int64           `json:"order_id"`
	Carrier    string          `json:"carrier"`
	Service    string          `json:"service"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Source     string          `json:"source"`
	RateType   RateType        `json:"rate_type"`
	RateID     string          `json:"rate_id,omitempty"`
	IsCheapest bool            `json:"is_cheapest"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Quote strips the persistence fields back down to a RateQuote.
func (p PersistedRate) Quote() RateQuote {
	return RateQuote{
		Carrier:  p.Carrier,
		Service:  p.Service,
		Price:    p.Price,
		Currency: p.Currency,
		Source:   p.Source,
		RateID:   p.RateID,
	}
}
