package app

import (
	"fmt"
	"time"

	"stock_dash/internal/domain"
	"stock_dash/internal/infra"
	"stock_dash/internal/infra/httpclient"
	"stock_dash/internal/infra/mockfeed"
	"stock_dash/internal/infra/yahoo"
)

// NewHTTPClient builds the shared outbound client from the provider settings.
func NewHTTPClient(cfg *infra.Config) (*httpclient.Client, error) {
	return httpclient.NewClient(httpclient.ClientConfig{
		Timeout:   cfg.ProviderTimeout(),
		UserAgent: cfg.Provider.UserAgent,
		Proxy:     cfg.Provider.Proxy,
		RateLimitConfig: httpclient.RateLimitConfig{
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			RequestsPerMinute: cfg.Provider.RequestsPerMinute,
			RequestsPerHour:   cfg.Provider.RequestsPerHour,
		},
	})
}

// NewProvider selects the market-data provider named in the config.
func NewProvider(cfg *infra.Config, client httpclient.Doer) (domain.MarketDataProvider, error) {
	switch cfg.Provider.Name {
	case infra.ProviderYahoo:
		return yahoo.New(yahoo.Options{BaseURL: cfg.Provider.BaseURL, Doer: client})
	case infra.ProviderMock:
		return mockfeed.New(50 * time.Millisecond), nil
	default:
		return nil, &domain.ConfigError{Field: "provider.name", Err: fmt.Errorf("unknown provider %q", cfg.Provider.Name)}
	}
}
