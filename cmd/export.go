package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/export"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

var (
	exportOut         string
	exportMarketplace string
	exportPendingOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the selected-rate report as an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := export.WriteReport(cmd.Context(), env.Store, exportOut, export.Options{
			Marketplace: model.Marketplace(exportMarketplace),
			PendingOnly: exportPendingOnly,
		})
		if err != nil {
			return err
		}

		fmt.Printf("wrote %d orders to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "rates.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportMarketplace, "marketplace", "", "restrict to one marketplace")
	exportCmd.Flags().BoolVar(&exportPendingOnly, "pending", false, "only orders without a fetched rate")
	rootCmd.AddCommand(exportCmd)
}
