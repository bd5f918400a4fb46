package rates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/config"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

func TestPolicyDeniesExactService(t *testing.T) {
	p := testPolicy(t)

	assert.False(t, p.Eligible(quote("USPS", "USPS Media Mail", "3.49", "shippo", "")))
	assert.False(t, p.Eligible(quote("USPS", "usps media mail", "3.49", "shippo", "")))
	assert.True(t, p.Eligible(quote("USPS", "Priority Mail", "7.33", "shippo", "")))
}

func TestPolicyDeniesSubstring(t *testing.T) {
	p := testPolicy(t)

	assert.False(t, p.Eligible(quote("USPS", "Priority Mail DropOff Rate", "6.00", "shippo", "")))
	assert.True(t, p.Eligible(quote("USPS", "Priority Mail Drop Off", "6.00", "shippo", "")))
}

func TestPolicyDeniesSourceAndCarrier(t *testing.T) {
	p := testPolicy(t)

	// Sendle is denied both as a source and as a carrier, so it stays out
	// even when an aggregator resells it.
	assert.False(t, p.Eligible(quote("UPS", "UPS Ground", "9.00", "sendle", "")))
	assert.False(t, p.Eligible(quote("Sendle", "Sendle Saver", "5.10", "shippo", "")))
}

func TestPolicyFilterIdempotent(t *testing.T) {
	p := testPolicy(t)
	in := []model.RateQuote{
		quote("USPS", "USPS Media Mail", "3.49", "shippo", ""),
		quote("USPS", "Priority Mail", "7.33", "shippo", ""),
		quote("UPS", "UPS Ground", "11.40", "ups", ""),
	}
	once := p.Filter(in)
	twice := p.Filter(once)
	assert.Len(t, once, 2)
	assert.Equal(t, once, twice)
}

func TestPolicyFileMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"denied_services:\n  - UPS SurePost\ndenied_carriers:\n  - dhl\n"), 0o644))

	p, err := NewPolicy(config.EligibilityConfig{
		DeniedServices: []string{"USPS Media Mail"},
		PolicyFile:     path,
	})
	require.NoError(t, err)

	assert.False(t, p.Eligible(quote("USPS", "USPS Media Mail", "3.49", "shippo", "")))
	assert.False(t, p.Eligible(quote("UPS", "UPS SurePost", "8.20", "ups", "")))
	assert.False(t, p.Eligible(quote("DHL", "DHL Parcel", "6.75", "shippo", "")))
	assert.True(t, p.Eligible(quote("UPS", "UPS Ground", "11.40", "ups", "")))
}

func TestPolicyFileMissing(t *testing.T) {
	_, err := NewPolicy(config.EligibilityConfig{PolicyFile: "/nope/policy.yaml"})
	require.Error(t, err)
}

func TestPolicyFilterPersisted(t *testing.T) {
	p := testPolicy(t)
	rows := []model.PersistedRate{
		{Carrier: "USPS", Service: "USPS Media Mail", Source: "shippo"},
		{Carrier: "UPS", Service: "UPS Ground", Source: "ups"},
	}
	out := p.FilterPersisted(rows)
	require.Len(t, out, 1)
	assert.Equal(t, "UPS", out[0].Carrier)
}
