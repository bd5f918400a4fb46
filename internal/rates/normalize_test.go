package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

func TestNormalizeTrimsAndDefaults(t *testing.T) {
	in := []model.RateQuote{
		{Carrier: "  UPS ", Service: " UPS Ground ", Price: decimal.RequireFromString("11.40"), Source: "UPS"},
	}
	out := Normalize(in)
	require.Len(t, out, 1)
	assert.Equal(t, "UPS", out[0].Carrier)
	assert.Equal(t, "UPS Ground", out[0].Service)
	assert.Equal(t, "ups", out[0].Source)
	assert.Equal(t, "USD", out[0].Currency)
}

func TestNormalizeDropsBadQuotes(t *testing.T) {
	in := []model.RateQuote{
		{Carrier: "UPS", Service: "", Price: decimal.RequireFromString("5.00"), Source: "ups"},
		{Carrier: "", Service: "Ground", Price: decimal.RequireFromString("5.00"), Source: "ups"},
		{Carrier: "UPS", Service: "Ground", Price: decimal.Zero, Source: "ups"},
		{Carrier: "UPS", Service: "Ground", Price: decimal.RequireFromString("-1.25"), Source: "ups"},
		{Carrier: "UPS", Service: "Ground", Price: decimal.RequireFromString("5.00"), Source: "ups"},
	}
	out := Normalize(in)
	require.Len(t, out, 1)
	assert.Equal(t, "Ground", out[0].Service)
}

func TestNormalizeDedupesKeepingLowest(t *testing.T) {
	in := []model.RateQuote{
		quote("FedEx", "FedEx Ground", "12.47", "fedex", ""),
		quote("FEDEX", "FEDEX GROUND", "11.90", "fedex", ""),
		quote("FedEx", "FedEx Ground", "13.10", "fedex", ""),
	}
	out := Normalize(in)
	require.Len(t, out, 1)
	assert.True(t, out[0].Price.Equal(decimal.RequireFromString("11.90")))
}

func TestNormalizeDistinctRateIDsSurvive(t *testing.T) {
	in := []model.RateQuote{
		quote("USPS", "Priority Mail", "7.33", "shippo", "rate-a"),
		quote("USPS", "Priority Mail", "7.41", "shippo", "rate-b"),
	}
	out := Normalize(in)
	assert.Len(t, out, 2)
}
