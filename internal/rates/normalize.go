package rates

import (
	"strings"

	"go.uber.org/zap"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

// Normalize cleans a batch of raw adapter quotes into comparable rows:
// trimmed carrier and service names, an uppercase currency defaulting to USD,
// and a strictly positive price. Duplicate (carrier, service, source, rate id)
// rows keep the lowest price so a provider glitch never inflates the shop.
func Normalize(quotes []model.RateQuote) []model.RateQuote {
	seen := make(map[string]int, len(quotes))
	out := make([]model.RateQuote, 0, len(quotes))
	for _, q := range quotes {
		q.Carrier = strings.TrimSpace(q.Carrier)
		q.Service = strings.TrimSpace(q.Service)
		q.Source = strings.TrimSpace(strings.ToLower(q.Source))
		q.Currency = strings.ToUpper(strings.TrimSpace(q.Currency))
		if q.Currency == "" {
			q.Currency = "USD"
		}

		if q.Carrier == "" || q.Service == "" {
			zap.L().Debug("dropping unnamed quote", zap.String("source", q.Source))
			continue
		}
		if !q.Price.IsPositive() {
			zap.L().Debug("dropping non-positive quote",
				zap.String("source", q.Source),
				zap.String("carrier", q.Carrier),
				zap.String("service", q.Service),
				zap.String("price", q.Price.String()))
			continue
		}

		key := identityKey(q)
		if i, ok := seen[key]; ok {
			if q.Price.LessThan(out[i].Price) {
				out[i] = q
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, q)
	}
	return out
}

// identityKey mirrors the persistence identity of a quote. Carrier and
// service are folded to lowercase so "FedEx Ground" and "FEDEX GROUND" from
// different calls collapse to one row.
func identityKey(q model.RateQuote) string {
	return strings.ToLower(q.Carrier) + "|" + strings.ToLower(q.Service) + "|" +
		q.Source + "|" + q.RateID
}
