package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clearOrderID int64

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete an order's persisted rates for both regimes",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeleteRates(cmd.Context(), clearOrderID); err != nil {
			return err
		}

		zap.L().Info("rates cleared", zap.Int64("order_id", clearOrderID))
		return nil
	},
}

func init() {
	clearCmd.Flags().Int64Var(&clearOrderID, "order", 0, "order id to clear")
	_ = clearCmd.MarkFlagRequired("order")
	rootCmd.AddCommand(clearCmd)
}
