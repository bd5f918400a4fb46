package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Shipper     ShipperConfig     `yaml:"shipper" mapstructure:"shipper"`
	UPS         UPSConfig         `yaml:"ups" mapstructure:"ups"`
	FedEx       FedExConfig       `yaml:"fedex" mapstructure:"fedex"`
	Shippo      ShippoConfig      `yaml:"shippo" mapstructure:"shippo"`
	ShipStation ShipStationConfig `yaml:"shipstation" mapstructure:"shipstation"`
	Eligibility EligibilityConfig `yaml:"eligibility" mapstructure:"eligibility"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ShipperConfig is the shipper-of-record: every rate request ships from this
// origin. The fallback city/state/zip fill in partial destination addresses
// so an incomplete marketplace order still rates instead of hard-failing.
type ShipperConfig struct {
	Origin          model.Address `yaml:"origin" mapstructure:"origin"`
	FallbackCity    string        `yaml:"fallback_city" mapstructure:"fallback_city"`
	FallbackState   string        `yaml:"fallback_state" mapstructure:"fallback_state"`
	FallbackZip     string        `yaml:"fallback_zip" mapstructure:"fallback_zip"`
	FallbackCountry string        `yaml:"fallback_country" mapstructure:"fallback_country"`
}

// UPSConfig holds UPS OAuth credentials and rating settings.
type UPSConfig struct {
	ClientID      string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret  string `yaml:"client_secret" mapstructure:"client_secret"`
	AccountNumber string `yaml:"account_number" mapstructure:"account_number"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
}

// FedExConfig holds FedEx OAuth credentials and rating settings.
type FedExConfig struct {
	ClientID      string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret  string `yaml:"client_secret" mapstructure:"client_secret"`
	AccountNumber string `yaml:"account_number" mapstructure:"account_number"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
}

// ShippoConfig holds Shippo API settings.
type ShippoConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// ShipStationConfig holds ShipStation API settings. Rates are fetched once
// per carrier code; RPS throttles against ShipStation's 40 req/min limit.
type ShipStationConfig struct {
	Key          string   `yaml:"key" mapstructure:"key"`
	Secret       string   `yaml:"secret" mapstructure:"secret"`
	BaseURL      string   `yaml:"base_url" mapstructure:"base_url"`
	CarrierCodes []string `yaml:"carrier_codes" mapstructure:"carrier_codes"`
	RPS          float64  `yaml:"rps" mapstructure:"rps"`
	Enabled      bool     `yaml:"enabled" mapstructure:"enabled"`
}

// EligibilityConfig is the runtime-configurable exclusion policy. Entries are
// matched case-insensitively. PolicyFile, when set, is a YAML file merged on
// top of these lists so a carrier can be re-enabled without a deploy.
type EligibilityConfig struct {
	DeniedServices          []string `yaml:"denied_services" mapstructure:"denied_services"`
	DeniedServiceSubstrings []string `yaml:"denied_service_substrings" mapstructure:"denied_service_substrings"`
	DeniedSources           []string `yaml:"denied_sources" mapstructure:"denied_sources"`
	DeniedCarriers          []string `yaml:"denied_carriers" mapstructure:"denied_carriers"`
	PolicyFile              string   `yaml:"policy_file" mapstructure:"policy_file"`
}

// FetchConfig configures the rate fetch orchestrator.
type FetchConfig struct {
	AdapterTimeoutSecs  int `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
	MaxConcurrentOrders int `yaml:"max_concurrent_orders" mapstructure:"max_concurrent_orders"`
}

// ServerConfig configures the HTTP rate-picker API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RATESHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.adapter_timeout_secs", 15)
	v.SetDefault("fetch.max_concurrent_orders", 5)
	v.SetDefault("ups.base_url", "https://onlinetools.ups.com")
	v.SetDefault("ups.enabled", true)
	v.SetDefault("fedex.base_url", "https://apis.fedex.com")
	v.SetDefault("fedex.enabled", true)
	v.SetDefault("shippo.base_url", "https://api.goshippo.com")
	v.SetDefault("shippo.enabled", true)
	v.SetDefault("shipstation.base_url", "https://ssapi.shipstation.com")
	v.SetDefault("shipstation.carrier_codes", []string{"stamps_com", "fedex", "ups_walleted"})
	v.SetDefault("shipstation.rps", 0.65)
	v.SetDefault("shipstation.enabled", true)
	v.SetDefault("eligibility.denied_services", []string{"USPS Media Mail", "Saver Drop Off"})
	v.SetDefault("eligibility.denied_service_substrings", []string{"dropoff"})
	v.SetDefault("eligibility.denied_sources", []string{"sendle"})
	v.SetDefault("eligibility.denied_carriers", []string{"sendle"})
	v.SetDefault("shipper.fallback_country", "US")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
