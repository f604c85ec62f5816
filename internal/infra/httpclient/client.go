package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Doer sends a request. Client implements it; tests substitute their own.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type RateLimitConfig struct {
	RequestsPerSecond int
	RequestsPerMinute int
	RequestsPerHour   int
}

type ClientConfig struct {
	HTTPClient      *http.Client
	Timeout         time.Duration
	UserAgent       string
	Proxy           string
	RateLimitConfig RateLimitConfig
}

// Client is a rate limited HTTP client. It never retries: a failed request is
// reported to the caller, which tries again on its next cycle.
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	userAgent  string
}

func NewClient(config ClientConfig) (*Client, error) {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if config.Proxy != "" {
			proxyURL, err := url.Parse(config.Proxy)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy %q: %w", config.Proxy, err)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	rl := config.RateLimitConfig
	return &Client{
		httpClient: httpClient,
		limiter:    NewRateLimiter(rl.RequestsPerSecond, rl.RequestsPerMinute, rl.RequestsPerHour),
		userAgent:  config.UserAgent,
	}, nil
}

// Do waits for a rate limit slot, then sends the request once.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}
