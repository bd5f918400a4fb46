package store

import (
	"context"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

// OrderFilter specifies criteria for listing orders.
type OrderFilter struct {
	Marketplace model.Marketplace `json:"marketplace,omitempty"`
	// PendingOnly restricts the listing to orders that have not had a rate
	// fetched yet.
	PendingOnly bool `json:"pending_only,omitempty"`
	Limit       int  `json:"limit,omitempty"`
	Offset      int  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the rate engine.
//
// UpsertRate's identity key is (order_id, carrier, service, source,
// rate_type, rate_id); an upsert only ever mutates price and currency.
// MarkCheapest applies the reset-all-then-set-one flip for one
// (order, rate_type) partition atomically; it is the only writer of
// is_cheapest.
type Store interface {
	// Orders
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	UpdateOrderDefaultRate(ctx context.Context, orderID int64, rate model.DefaultRate) error

	// Order items. CreateOrderItem snapshots the O dimensions into the
	// original_* fields in the same statement. UpdateItemDimensions backfills
	// any still-unset original field, writes the new values, and deletes the
	// order's persisted rates for both regimes to force a clean re-fetch.
	CreateOrderItem(ctx context.Context, item *model.OrderItem) error
	ListOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	UpdateItemDimensions(ctx context.Context, itemID int64, regime model.RateType, dims model.Dimensions) error

	// SKU master data, the declared-dimension fallback.
	GetDimensionData(ctx context.Context, sku string) (*model.DimensionData, error)

	// Rates
	UpsertRate(ctx context.Context, orderID int64, q model.RateQuote, rt model.RateType) error
	ListRates(ctx context.Context, orderID int64, rt model.RateType) ([]model.PersistedRate, error)
	DeleteRates(ctx context.Context, orderID int64) error
	MarkCheapest(ctx context.Context, orderID int64, rt model.RateType, rateRowID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
