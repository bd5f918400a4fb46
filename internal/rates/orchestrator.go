package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/config"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/store"
)

// FetchResult summarizes one fetch-and-select run.
type FetchResult struct {
	OrderID  int64
	RateType model.RateType
	// Persisted counts the quotes written after normalization and filtering.
	Persisted int
	Winner    *model.PersistedRate
	// AdapterErrors lists providers that failed; the run still succeeded on
	// the remaining providers.
	AdapterErrors []*AdapterError
}

// Orchestrator runs the full rate shop for an order: validate, fan out to
// every provider, persist the eligible quotes, select the cheapest, and write
// the winner back onto the order.
type Orchestrator struct {
	store    store.Store
	adapters []Adapter
	policy   *Policy
	shipper  config.ShipperConfig
	timeout  time.Duration

	// locks serializes runs per (order, regime) so the cheapest flip and the
	// default-rate write cannot interleave between concurrent fetches.
	locks *keyedMutex
}

// NewOrchestrator wires the orchestrator from its parts. adapterTimeout
// bounds each provider call; zero falls back to 15s.
func NewOrchestrator(st store.Store, adapters []Adapter, policy *Policy, shipper config.ShipperConfig, adapterTimeout time.Duration) *Orchestrator {
	if adapterTimeout <= 0 {
		adapterTimeout = 15 * time.Second
	}
	return &Orchestrator{
		store:    st,
		adapters: adapters,
		policy:   policy,
		shipper:  shipper,
		timeout:  adapterTimeout,
		locks:    newKeyedMutex(),
	}
}

// FetchAndSelect shops rates for one order under one dimension regime.
//
// Failure modes are typed: ValidationError when the order cannot be rated as
// stored, NoRatesAvailableError when nothing eligible came back (previous
// selection left intact), PersistenceConflictError when a write raced. A
// subset of providers failing is not an error; the failures ride along in
// the result.
func (o *Orchestrator) FetchAndSelect(ctx context.Context, orderID int64, rt model.RateType) (*FetchResult, error) {
	if !rt.Valid() {
		return nil, &ValidationError{OrderID: orderID, Reason: fmt.Sprintf("unknown rate type %q", rt)}
	}

	unlock := o.locks.Lock(fmt.Sprintf("%d|%s", orderID, rt))
	defer unlock()

	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: load order")
	}
	if order == nil {
		return nil, &ValidationError{OrderID: orderID, Reason: "order not found"}
	}

	req, err := o.buildRequest(ctx, order, rt)
	if err != nil {
		return nil, err
	}

	quotes, adapterErrs := o.fanOut(ctx, *req)
	quotes = o.policy.Filter(Normalize(quotes))

	if len(quotes) == 0 {
		return nil, &NoRatesAvailableError{OrderID: orderID, RateType: rt, AdapterErrors: adapterErrs}
	}

	for _, q := range quotes {
		if err := o.store.UpsertRate(ctx, orderID, q, rt); err != nil {
			if eris.Is(err, store.ErrConflict) {
				return nil, &PersistenceConflictError{OrderID: orderID, Err: err}
			}
			return nil, eris.Wrap(err, "orchestrator: persist quote")
		}
	}

	selector := NewSelector(o.store, o.policy)
	winner, err := selector.SelectCheapest(ctx, orderID, rt)
	if err != nil {
		if eris.Is(err, store.ErrConflict) {
			return nil, &PersistenceConflictError{OrderID: orderID, Err: err}
		}
		return nil, err
	}
	if winner == nil {
		return nil, &NoRatesAvailableError{OrderID: orderID, RateType: rt, AdapterErrors: adapterErrs}
	}

	// The denormalized default_* columns feed label purchase, which works off
	// the operational regime; a declared-regime run only flips is_cheapest.
	if rt == model.RateTypeOperational {
		def := model.DefaultRate{
			RateID:   winner.RateID,
			Carrier:  winner.Carrier,
			Service:  winner.Service,
			Price:    winner.Price,
			Currency: winner.Currency,
			Source:   winner.Source,
		}
		if err := o.store.UpdateOrderDefaultRate(ctx, orderID, def); err != nil {
			return nil, eris.Wrap(err, "orchestrator: write default rate")
		}
	}

	zap.L().Info("rate fetch complete",
		zap.Int64("order_id", orderID),
		zap.String("rate_type", string(rt)),
		zap.Int("persisted", len(quotes)),
		zap.Int("provider_errors", len(adapterErrs)),
	)
	return &FetchResult{
		OrderID:       orderID,
		RateType:      rt,
		Persisted:     len(quotes),
		Winner:        winner,
		AdapterErrors: adapterErrs,
	}, nil
}

// buildRequest validates the order into a single provider-ready request:
// aggregated package dimensions plus origin and destination addresses.
func (o *Orchestrator) buildRequest(ctx context.Context, order *model.Order, rt model.RateType) (*model.RateRequest, error) {
	items, err := o.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: load order items")
	}
	if len(items) == 0 {
		return nil, &ValidationError{OrderID: order.ID, Reason: "order has no items"}
	}

	var lookup model.DimensionLookup
	if rt == model.RateTypeDeclared {
		lookup = func(sku string) *model.DimensionData {
			dd, err := o.store.GetDimensionData(ctx, sku)
			if err != nil {
				zap.L().Warn("dimension data lookup failed",
					zap.String("sku", sku), zap.Error(err))
				return nil
			}
			return dd
		}
	}

	dims := model.AggregateDimensions(items, rt, lookup)
	if !dims.Valid() {
		return nil, &ValidationError{
			OrderID: order.ID,
			Reason: fmt.Sprintf("incomplete %s dimensions: %.2fx%.2fx%.2f @ %.2f lb",
				rt, dims.Length, dims.Width, dims.Height, dims.Weight),
		}
	}

	dest := order.ShipTo
	if !dest.HasEssentials() {
		// Partial marketplace addresses degrade to the configured fallback
		// destination instead of hard-failing the order.
		zap.L().Warn("ship-to address incomplete, using fallback destination",
			zap.Int64("order_id", order.ID),
			zap.String("marketplace", string(order.Marketplace)),
		)
		if dest.City == "" {
			dest.City = o.shipper.FallbackCity
		}
		if dest.State == "" {
			dest.State = o.shipper.FallbackState
		}
		if dest.Zip == "" {
			dest.Zip = o.shipper.FallbackZip
		}
	}
	if dest.Country == "" {
		dest.Country = o.shipper.FallbackCountry
	}
	if !dest.HasEssentials() {
		return nil, &ValidationError{OrderID: order.ID, Reason: "ship-to address unusable even after fallback"}
	}

	return &model.RateRequest{From: o.shipper.Origin, To: dest, Dims: dims}, nil
}

// fanOut queries every adapter in parallel under a per-provider timeout. A
// provider failure is collected, never propagated; the group error is always
// nil.
func (o *Orchestrator) fanOut(ctx context.Context, req model.RateRequest) ([]model.RateQuote, []*AdapterError) {
	var (
		mu          sync.Mutex
		quotes      []model.RateQuote
		adapterErrs []*AdapterError
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range o.adapters {
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			got, err := adapter.FetchQuotes(actx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ae := &AdapterError{Provider: adapter.Name(), Err: err}
				zap.L().Warn("provider fetch failed",
					zap.String("provider", adapter.Name()), zap.Error(err))
				adapterErrs = append(adapterErrs, ae)
				return nil
			}
			quotes = append(quotes, got...)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return an error

	return quotes, adapterErrs
}
