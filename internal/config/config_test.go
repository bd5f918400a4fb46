package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Fetch.AdapterTimeoutSecs)
	assert.Equal(t, 5, cfg.Fetch.MaxConcurrentOrders)
	assert.Equal(t, "https://onlinetools.ups.com", cfg.UPS.BaseURL)
	assert.Equal(t, "https://apis.fedex.com", cfg.FedEx.BaseURL)
	assert.Equal(t, "https://api.goshippo.com", cfg.Shippo.BaseURL)
	assert.Equal(t, "https://ssapi.shipstation.com", cfg.ShipStation.BaseURL)
	assert.True(t, cfg.UPS.Enabled)
	assert.True(t, cfg.ShipStation.Enabled)
	assert.Contains(t, cfg.Eligibility.DeniedServices, "USPS Media Mail")
	assert.Contains(t, cfg.Eligibility.DeniedServices, "Saver Drop Off")
	assert.Contains(t, cfg.Eligibility.DeniedServiceSubstrings, "dropoff")
	assert.Contains(t, cfg.Eligibility.DeniedSources, "sendle")
	assert.Contains(t, cfg.Eligibility.DeniedCarriers, "sendle")
	assert.Equal(t, "US", cfg.Shipper.FallbackCountry)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: rates.db
log:
  level: debug
  format: console
shipper:
  origin:
    name: Ship Hub Warehouse
    street1: 2100 Logistics Pkwy
    city: Dallas
    state: TX
    zip: "75201"
    country: US
  fallback_city: Dallas
  fallback_state: TX
  fallback_zip: "75201"
eligibility:
  denied_carriers: []
shipstation:
  carrier_codes: [stamps_com]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "rates.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "Dallas", cfg.Shipper.Origin.City)
	assert.Equal(t, "75201", cfg.Shipper.Origin.Zip)
	assert.Equal(t, []string{"stamps_com"}, cfg.ShipStation.CarrierCodes)
	assert.Empty(t, cfg.Eligibility.DeniedCarriers)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
