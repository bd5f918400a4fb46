package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/rates"
)

var (
	fetchOrderID int64
	fetchRegime  string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and select shipping rates for one order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.FetchAndSelect(ctx, fetchOrderID, model.RateType(fetchRegime))
		if err != nil {
			if rates.IsNoRates(err) {
				zap.L().Warn("no eligible rates", zap.Int64("order_id", fetchOrderID))
			}
			return err
		}

		fmt.Printf("order %d: persisted %d rates, cheapest %s %s at %s %s (source %s)\n",
			res.OrderID, res.Persisted,
			res.Winner.Carrier, res.Winner.Service,
			res.Winner.Price.StringFixed(2), res.Winner.Currency, res.Winner.Source)
		for _, ae := range res.AdapterErrors {
			fmt.Printf("  provider %s failed: %v\n", ae.Provider, ae.Err)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().Int64Var(&fetchOrderID, "order", 0, "order id to fetch rates for")
	fetchCmd.Flags().StringVar(&fetchRegime, "regime", "O", "dimension regime: O (operational) or D (declared)")
	_ = fetchCmd.MarkFlagRequired("order")
	rootCmd.AddCommand(fetchCmd)
}
