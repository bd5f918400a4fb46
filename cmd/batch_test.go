package main

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/rates"
)

func TestProcessBatchEmpty(t *testing.T) {
	err := processBatch(context.Background(), nil, 4, func(context.Context, int64) error {
		t.Fatal("fetch must not be called")
		return nil
	})
	require.NoError(t, err)
}

func TestProcessBatchToleratesFailures(t *testing.T) {
	orders := []model.Order{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	var mu sync.Mutex
	seen := make(map[int64]bool)
	err := processBatch(context.Background(), orders, 2, func(_ context.Context, orderID int64) error {
		mu.Lock()
		seen[orderID] = true
		mu.Unlock()
		switch orderID {
		case 2:
			return &rates.ValidationError{OrderID: orderID, Reason: "no items"}
		case 3:
			return &rates.NoRatesAvailableError{OrderID: orderID, RateType: model.RateTypeOperational}
		case 4:
			return eris.New("provider exploded")
		}
		return nil
	})
	require.NoError(t, err)

	// Every order was attempted despite the failures.
	assert.Len(t, seen, 4)
}

func TestProcessBatchRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orders := []model.Order{{ID: 1}, {ID: 2}}
	calls := 0
	err := processBatch(ctx, orders, 1, func(ctx context.Context, _ int64) error {
		calls++
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, calls, 1)
}
