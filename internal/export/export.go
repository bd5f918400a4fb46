// Package export writes the selected-rate report handed to the fulfillment
// team: one row per order with its currently selected default rate.
package export

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/store"
)

var reportHeader = []string{
	"Order ID", "Order Number", "Marketplace",
	"Carrier", "Service", "Price", "Currency", "Source", "Rate ID",
	"Rate Fetched",
}

// Options filters which orders land in the report.
type Options struct {
	Marketplace model.Marketplace
	// PendingOnly exports only orders still waiting on a rate fetch, which
	// doubles as the daily exception report.
	PendingOnly bool
}

// WriteReport exports matching orders to an XLSX workbook at path.
// It returns the number of rows written.
func WriteReport(ctx context.Context, st store.Store, path string, opts Options) (int, error) {
	orders, err := st.ListOrders(ctx, store.OrderFilter{
		Marketplace: opts.Marketplace,
		PendingOnly: opts.PendingOnly,
	})
	if err != nil {
		return 0, eris.Wrap(err, "export: list orders")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Rates")
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range reportHeader {
		header.AddCell().SetString(h)
	}

	for _, o := range orders {
		if ctx.Err() != nil {
			return 0, eris.Wrap(ctx.Err(), "export: cancelled")
		}
		row := sheet.AddRow()
		row.AddCell().SetString(strconv.FormatInt(o.ID, 10))
		row.AddCell().SetString(o.OrderNumber)
		row.AddCell().SetString(string(o.Marketplace))
		row.AddCell().SetString(o.DefaultCarrier)
		row.AddCell().SetString(o.DefaultService)
		if o.DefaultCarrier != "" {
			row.AddCell().SetString(o.DefaultPrice.StringFixed(2))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(o.DefaultCurrency)
		row.AddCell().SetString(o.DefaultSource)
		row.AddCell().SetString(o.DefaultRateID)
		row.AddCell().SetBool(o.RateFetched)
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("rate report written",
		zap.String("path", path),
		zap.Int("orders", len(orders)),
	)
	return len(orders), nil
}
