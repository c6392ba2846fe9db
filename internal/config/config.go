package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradedesk service.
type Config struct {
	Storage    Storage        `yaml:"storage"`
	Server     Server         `yaml:"server"`
	Alpaca     Alpaca         `yaml:"alpaca"`
	Logging    Logging        `yaml:"logging"`
	Trading    Trading        `yaml:"trading"`
	Securities []SecuritySeed `yaml:"securities"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca venue.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Trading defines execution and settlement parameters.
type Trading struct {
	// PaperMode routes orders to the in-memory simulator instead of Alpaca.
	PaperMode bool `yaml:"paper_mode"`

	// CommissionRate is the fraction of the trade amount recorded as
	// commission on each settled transaction (0.002 = 0.2%). Commission is
	// reporting-only; it is not debited from cash.
	CommissionRate float64 `yaml:"commission_rate"`

	// VenueTimeoutSecs bounds every venue call.
	VenueTimeoutSecs int `yaml:"venue_timeout_secs"`

	// ReconcileIntervalSecs is how often pending orders are reconciled
	// against the venue.
	ReconcileIntervalSecs int `yaml:"reconcile_interval_secs"`

	// PollPerMin caps venue status polls per minute.
	PollPerMin int `yaml:"poll_per_min"`
}

// SecuritySeed describes a security reference row seeded at startup. Prices
// are kept current afterwards by the external price feed.
type SecuritySeed struct {
	Symbol    string `yaml:"symbol"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	LastPrice string `yaml:"last_price"`
}

// VenueTimeout returns the venue call timeout as a duration.
func (t Trading) VenueTimeout() time.Duration {
	return time.Duration(t.VenueTimeoutSecs) * time.Second
}

// ReconcileInterval returns the reconciler sweep interval as a duration.
func (t Trading) ReconcileInterval() time.Duration {
	return time.Duration(t.ReconcileIntervalSecs) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills unset fields with working defaults.
func applyDefaults(cfg *Config) {
	if cfg.Trading.CommissionRate == 0 {
		cfg.Trading.CommissionRate = 0.002
	}
	if cfg.Trading.VenueTimeoutSecs == 0 {
		cfg.Trading.VenueTimeoutSecs = 10
	}
	if cfg.Trading.ReconcileIntervalSecs == 0 {
		cfg.Trading.ReconcileIntervalSecs = 5
	}
	if cfg.Trading.PollPerMin == 0 {
		cfg.Trading.PollPerMin = 120
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take highest priority; the SDK uses these names.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
