package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yamlContent := []byte(`
storage:
  data_dir: "/tmp/tradedesk/data"
  sqlite_path: "/tmp/tradedesk/tradedesk.db"
server:
  host: "0.0.0.0"
  port: 8080
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
logging:
  level: "debug"
  format: "json"
trading:
  paper_mode: true
  commission_rate: 0.001
  venue_timeout_secs: 7
securities:
  - symbol: "AAPL"
    name: "Apple Inc."
    type: "equity"
    last_price: "185.50"
`)

	path := filepath.Join(t.TempDir(), "tradedesk.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	// Clear any environment overrides that might interfere.
	for _, key := range []string{"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY",
		"ALPACA_API_SECRET", "ALPACA_BASE_URL", "LOG_LEVEL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY"} {
		os.Unsetenv(key)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.SQLitePath != "/tmp/tradedesk/tradedesk.db" {
		t.Errorf("SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/tradedesk/tradedesk.db")
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if !cfg.Trading.PaperMode {
		t.Error("PaperMode = false, want true")
	}
	if cfg.Trading.CommissionRate != 0.001 {
		t.Errorf("CommissionRate = %v, want 0.001", cfg.Trading.CommissionRate)
	}
	if got := cfg.Trading.VenueTimeout(); got != 7*time.Second {
		t.Errorf("VenueTimeout() = %v, want 7s", got)
	}
	if len(cfg.Securities) != 1 || cfg.Securities[0].Symbol != "AAPL" {
		t.Errorf("Securities = %+v, want one AAPL seed", cfg.Securities)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  sqlite_path: \"x.db\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Trading.CommissionRate != 0.002 {
		t.Errorf("default CommissionRate = %v, want 0.002", cfg.Trading.CommissionRate)
	}
	if got := cfg.Trading.VenueTimeout(); got != 10*time.Second {
		t.Errorf("default VenueTimeout() = %v, want 10s", got)
	}
	if got := cfg.Trading.ReconcileInterval(); got != 5*time.Second {
		t.Errorf("default ReconcileInterval() = %v, want 5s", got)
	}
	if cfg.Trading.PollPerMin != 120 {
		t.Errorf("default PollPerMin = %d, want 120", cfg.Trading.PollPerMin)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradedesk.yaml")
	if err := os.WriteFile(path, []byte("alpaca:\n  api_key: \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("ALPACA_API_KEY", "from-env")
	t.Setenv("SQLITE_PATH", "/env/tradedesk.db")
	t.Setenv("APCA_API_KEY_ID", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want env override %q", cfg.Alpaca.APIKey, "from-env")
	}
	if cfg.Storage.SQLitePath != "/env/tradedesk.db" {
		t.Errorf("SQLitePath = %q, want env override", cfg.Storage.SQLitePath)
	}
}
