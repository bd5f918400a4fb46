package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/rates"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/store"
)

var (
	batchLimit       int
	batchMarketplace string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Fetch rates for all orders still waiting on one",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		orders, err := env.Store.ListOrders(ctx, store.OrderFilter{
			Marketplace: model.Marketplace(batchMarketplace),
			PendingOnly: true,
			Limit:       batchLimit,
		})
		if err != nil {
			return err
		}

		return processBatch(ctx, orders, cfg.Fetch.MaxConcurrentOrders, func(ctx context.Context, orderID int64) error {
			_, err := env.Orchestrator.FetchAndSelect(ctx, orderID, model.RateTypeOperational)
			return err
		})
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of orders to process")
	batchCmd.Flags().StringVar(&batchMarketplace, "marketplace", "", "restrict to one marketplace")
	rootCmd.AddCommand(batchCmd)
}

// fetchFunc runs one order's fetch-and-select.
type fetchFunc func(ctx context.Context, orderID int64) error

// processBatch fans the pending orders out over a bounded worker group. An
// order failing validation or rating is counted and logged, never fatal; the
// batch finishes the rest.
func processBatch(ctx context.Context, orders []model.Order, concurrency int, fetch fetchFunc) error {
	if len(orders) == 0 {
		zap.L().Info("no pending orders")
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("orders", len(orders)),
		zap.Int("concurrency", concurrency),
	)

	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, order := range orders {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fetch(gctx, order.ID); err != nil {
				failed.Add(1)
				switch {
				case rates.IsValidation(err):
					zap.L().Warn("order skipped", zap.Int64("order_id", order.ID), zap.Error(err))
				case rates.IsNoRates(err):
					zap.L().Warn("no eligible rates", zap.Int64("order_id", order.ID), zap.Error(err))
				default:
					zap.L().Error("order failed", zap.Int64("order_id", order.ID), zap.Error(err))
				}
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
