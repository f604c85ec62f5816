package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stock_dash/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.App.Name != "test" {
		t.Errorf("App.Name = %s, want test", cfg.App.Name)
	}
	if cfg.QuoteTTL() != 60*time.Second || cfg.HistoryTTL() != 60*time.Second {
		t.Errorf("TTLs = %v/%v, want 60s", cfg.QuoteTTL(), cfg.HistoryTTL())
	}
	if cfg.RefreshInterval() != 30*time.Second {
		t.Errorf("RefreshInterval = %v, want 30s", cfg.RefreshInterval())
	}
	if cfg.Refresh.Concurrency != 5 || cfg.FetchTimeout() != 10*time.Second {
		t.Errorf("refresh = %+v", cfg.Refresh)
	}
	if len(cfg.Watchlist.Symbols) != 8 || cfg.Watchlist.Symbols[0] != "AAPL" {
		t.Errorf("default watchlist = %v", cfg.Watchlist.Symbols)
	}
	if len(cfg.Watchlist.Indices) != 4 || cfg.Watchlist.Indices[0].Name != "S&P 500" {
		t.Errorf("default indices = %v", cfg.Watchlist.Indices)
	}
	if cfg.Provider.Name != ProviderYahoo || cfg.Provider.BaseURL != DefaultYahooURL {
		t.Errorf("provider = %+v", cfg.Provider)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: mock
cache:
  quote_ttl_sec: 15
watchlist:
  symbols: [AMD, INTC]
refresh:
  run_on_start: false
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Provider.Name != ProviderMock {
		t.Errorf("Provider.Name = %s, want mock", cfg.Provider.Name)
	}
	if cfg.QuoteTTL() != 15*time.Second {
		t.Errorf("QuoteTTL = %v, want 15s", cfg.QuoteTTL())
	}
	if len(cfg.Watchlist.Symbols) != 2 {
		t.Errorf("symbols = %v, want [AMD INTC]", cfg.Watchlist.Symbols)
	}
	if cfg.Refresh.RunOnStart {
		t.Error("run_on_start false in file should win over the default")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("STOCKDASH_WATCHLIST", "tsla, nvda")
	t.Setenv("STOCKDASH_STORAGE_PATH", "/tmp/x.db")
	t.Setenv("STOCKDASH_REFRESH_INTERVAL_SEC", "45")
	t.Setenv("STOCKDASH_LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig(writeConfig(t, "app:\n  name: env\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Watchlist.Symbols) != 2 || cfg.Watchlist.Symbols[1] != "nvda" {
		t.Errorf("symbols = %v", cfg.Watchlist.Symbols)
	}
	if !cfg.Storage.Enabled || cfg.Storage.Path != "/tmp/x.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.RefreshInterval() != 45*time.Second {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s", cfg.Logging.Level)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown provider", "provider:\n  name: bloomberg\n", "provider.name"},
		{"bad url", "provider:\n  base_url: ftp://x\n", "provider.base_url"},
		{"negative ttl", "cache:\n  quote_ttl_sec: -1\n", "cache.quote_ttl_sec"},
		{"bad symbol", "watchlist:\n  symbols: [\"A B\"]\n", "watchlist.symbols"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %s, want %s", ce.Field, tt.field)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := LoadConfig(missing); !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("LoadConfig(missing) = %v, want ErrConfigNotFound", err)
	}

	cfg, err := LoadConfigOrDefault(missing)
	if err != nil {
		t.Fatalf("LoadConfigOrDefault: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %s, want :8080", cfg.Server.Addr)
	}
}
