package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stock_dash/internal/domain"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultYahooURL        = "https://query1.finance.yahoo.com"
	DefaultLogoURLTemplate = "https://financialmodelingprep.com/image-stock/{symbol}.png"

	ProviderYahoo = "yahoo"
	ProviderMock  = "mock"
)

// IndexConfig is a market index card pinned next to the watchlist.
type IndexConfig struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

// Config holds every application setting.
// After YAML is loaded, environment variables override selected values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Provider struct {
		Name              string `yaml:"name"`
		BaseURL           string `yaml:"base_url"`
		TimeoutSec        int    `yaml:"timeout_sec"`
		RequestsPerSecond int    `yaml:"requests_per_second"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		RequestsPerHour   int    `yaml:"requests_per_hour"`
		UserAgent         string `yaml:"user_agent"`
		Proxy             string `yaml:"proxy"`
	} `yaml:"provider"`

	Cache struct {
		QuoteTTLSec   int `yaml:"quote_ttl_sec"`
		HistoryTTLSec int `yaml:"history_ttl_sec"`
	} `yaml:"cache"`

	Refresh struct {
		IntervalSec     int  `yaml:"interval_sec"`
		Concurrency     int  `yaml:"concurrency"`
		FetchTimeoutSec int  `yaml:"fetch_timeout_sec"`
		RunOnStart      bool `yaml:"run_on_start"`
	} `yaml:"refresh"`

	Watchlist struct {
		Symbols []string      `yaml:"symbols"`
		Indices []IndexConfig `yaml:"indices"`
	} `yaml:"watchlist"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Recorder struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"recorder"`

	Logos struct {
		Enabled     bool   `yaml:"enabled"`
		URLTemplate string `yaml:"url_template"`
		Dir         string `yaml:"dir"`
		Size        int    `yaml:"size"`
	} `yaml:"logos"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the built-in settings used when no file is present.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "stock_dash"
	cfg.App.Version = "dev"
	cfg.Refresh.RunOnStart = true
	cfg.Watchlist.Symbols = []string{"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "NVDA", "META", "NFLX"}
	cfg.Watchlist.Indices = []IndexConfig{
		{Symbol: "^GSPC", Name: "S&P 500"},
		{Symbol: "^DJI", Name: "Dow Jones"},
		{Symbol: "^IXIC", Name: "NASDAQ"},
		{Symbol: "^VIX", Name: "VIX"},
	}
	cfg.applyDefaults()
	return &cfg
}

// LoadConfig reads the YAML file, applies .env and environment overrides,
// fills defaults and validates. A missing file yields ErrConfigNotFound.
func LoadConfig(path string) (*Config, error) {
	// .env는 선택 사항 - 없으면 무시
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.ConfigError{Field: path, Err: domain.ErrConfigNotFound}
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return finalize(cfg)
}

// LoadConfigOrDefault behaves like LoadConfig but falls back to DefaultConfig
// (still honoring environment overrides) when the file does not exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, domain.ErrConfigNotFound) {
		return finalize(DefaultConfig())
	}
	return cfg, err
}

func finalize(cfg *Config) (*Config, error) {
	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = ProviderYahoo
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultYahooURL
	}
	if c.Provider.TimeoutSec == 0 {
		c.Provider.TimeoutSec = 10
	}
	if c.Provider.RequestsPerSecond == 0 {
		c.Provider.RequestsPerSecond = 5
	}
	if c.Provider.RequestsPerMinute == 0 {
		c.Provider.RequestsPerMinute = 100
	}
	if c.Provider.RequestsPerHour == 0 {
		c.Provider.RequestsPerHour = 2000
	}
	if c.Provider.UserAgent == "" {
		c.Provider.UserAgent = DefaultUserAgent
	}
	if c.Cache.QuoteTTLSec == 0 {
		c.Cache.QuoteTTLSec = 60
	}
	if c.Cache.HistoryTTLSec == 0 {
		c.Cache.HistoryTTLSec = 60
	}
	if c.Refresh.IntervalSec == 0 {
		c.Refresh.IntervalSec = 30
	}
	if c.Refresh.Concurrency == 0 {
		c.Refresh.Concurrency = 5
	}
	if c.Refresh.FetchTimeoutSec == 0 {
		c.Refresh.FetchTimeoutSec = 10
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/stock_dash.db"
	}
	if c.Logos.URLTemplate == "" {
		c.Logos.URLTemplate = DefaultLogoURLTemplate
	}
	if c.Logos.Dir == "" {
		c.Logos.Dir = "data/logos"
	}
	if c.Logos.Size == 0 {
		c.Logos.Size = 64
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderYahoo:
		if !strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
			return &domain.ConfigError{Field: "provider.base_url", Err: fmt.Errorf("invalid URL %q", c.Provider.BaseURL)}
		}
	case ProviderMock:
	default:
		return &domain.ConfigError{Field: "provider.name", Err: fmt.Errorf("unknown provider %q", c.Provider.Name)}
	}

	positive := []struct {
		field string
		value int
	}{
		{"provider.timeout_sec", c.Provider.TimeoutSec},
		{"cache.quote_ttl_sec", c.Cache.QuoteTTLSec},
		{"cache.history_ttl_sec", c.Cache.HistoryTTLSec},
		{"refresh.interval_sec", c.Refresh.IntervalSec},
		{"refresh.concurrency", c.Refresh.Concurrency},
		{"refresh.fetch_timeout_sec", c.Refresh.FetchTimeoutSec},
		{"logos.size", c.Logos.Size},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return &domain.ConfigError{Field: p.field, Err: fmt.Errorf("must be positive, got %d", p.value)}
		}
	}

	for _, s := range c.Watchlist.Symbols {
		if _, err := domain.NormalizeSymbol(s); err != nil {
			return &domain.ConfigError{Field: "watchlist.symbols", Err: err}
		}
	}
	for _, idx := range c.Watchlist.Indices {
		if _, err := domain.NormalizeSymbol(idx.Symbol); err != nil {
			return &domain.ConfigError{Field: "watchlist.indices", Err: err}
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Cache.QuoteTTLSec) * time.Second
}

func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.Cache.HistoryTTLSec) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSec) * time.Second
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Refresh.FetchTimeoutSec) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSec) * time.Second
}

// WatchlistDefaults converts the configured symbols into watchlist entries.
func (c *Config) WatchlistDefaults() []domain.WatchlistEntry {
	out := make([]domain.WatchlistEntry, 0, len(c.Watchlist.Symbols))
	for _, s := range c.Watchlist.Symbols {
		out = append(out, domain.WatchlistEntry{Symbol: s})
	}
	return out
}

// overrideWithEnv overwrites settings from STOCKDASH_* variables when present.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("STOCKDASH_PROVIDER"); v != "" {
		cfg.Provider.Name = strings.ToLower(v)
	}
	if v := os.Getenv("STOCKDASH_PROVIDER_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("STOCKDASH_PROXY"); v != "" {
		cfg.Provider.Proxy = v
	}
	if v := os.Getenv("STOCKDASH_WATCHLIST"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		cfg.Watchlist.Symbols = symbols
	}
	if v := os.Getenv("STOCKDASH_STORAGE_PATH"); v != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.Path = v
	}
	if v := os.Getenv("STOCKDASH_RECORDER_PATH"); v != "" {
		cfg.Recorder.SQLitePath = v
	}
	if v := os.Getenv("STOCKDASH_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STOCKDASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if n, ok := envInt("STOCKDASH_REFRESH_INTERVAL_SEC"); ok {
		cfg.Refresh.IntervalSec = n
	}
	if n, ok := envInt("STOCKDASH_QUOTE_TTL_SEC"); ok {
		cfg.Cache.QuoteTTLSec = n
	}
	if v := os.Getenv("STOCKDASH_RUN_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Refresh.RunOnStart = b
		}
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
