package rates

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/store"
)

// Selector picks the cheapest eligible persisted rate for one order and
// regime and flips the is_cheapest flag onto it.
type Selector struct {
	store  store.Store
	policy *Policy
}

// NewSelector builds a Selector over the given store and eligibility policy.
func NewSelector(st store.Store, policy *Policy) *Selector {
	return &Selector{store: st, policy: policy}
}

// SelectCheapest loads the order's rates for the regime, drops ineligible
// rows, and marks the cheapest remaining one. Ties on price break on the
// case-insensitive carrier name so selection is deterministic across runs.
// Returns nil with no error when no eligible rate exists; the caller decides
// whether that is a NoRatesAvailableError.
//
// Selection is idempotent: re-running against unchanged rows re-marks the
// same winner.
func (s *Selector) SelectCheapest(ctx context.Context, orderID int64, rt model.RateType) (*model.PersistedRate, error) {
	rows, err := s.store.ListRates(ctx, orderID, rt)
	if err != nil {
		return nil, eris.Wrap(err, "selector: list rates")
	}

	eligible := s.policy.FilterPersisted(rows)
	if len(eligible) == 0 {
		return nil, nil
	}

	// The store orders rows already, but sort again in memory on the exact
	// decimal value so both backends select identically.
	sort.SliceStable(eligible, func(i, j int) bool {
		if cmp := eligible[i].Price.Cmp(eligible[j].Price); cmp != 0 {
			return cmp < 0
		}
		return strings.ToLower(eligible[i].Carrier) < strings.ToLower(eligible[j].Carrier)
	})

	winner := eligible[0]
	if err := s.store.MarkCheapest(ctx, orderID, rt, winner.ID); err != nil {
		return nil, eris.Wrap(err, "selector: mark cheapest")
	}
	winner.IsCheapest = true
	winner.RateType = rt

	zap.L().Info("selected cheapest rate",
		zap.Int64("order_id", orderID),
		zap.String("rate_type", string(rt)),
		zap.String("carrier", winner.Carrier),
		zap.String("service", winner.Service),
		zap.String("price", winner.Price.String()),
		zap.String("source", winner.Source),
	)
	return &winner, nil
}
