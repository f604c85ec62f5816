// Package yahoo implements domain.MarketDataProvider on top of the Yahoo
// Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
	"stock_dash/internal/infra/httpclient"
)

const (
	Name           = "yahoo"
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// Enough sessions to always hold the previous close, even over long weekends.
	quoteRange = "5d"
)

// chartResponse covers the bar arrays. Meta fields are read with jsonpath.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Provider fetches quotes and bars. It performs exactly one HTTP request per
// call and never retries.
type Provider struct {
	baseURL string
	doer    httpclient.Doer
	now     func() time.Time
}

type Options struct {
	BaseURL string
	Doer    httpclient.Doer
	Now     func() time.Time
}

func New(opts Options) (*Provider, error) {
	if opts.Doer == nil {
		return nil, fmt.Errorf("yahoo: nil doer")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{baseURL: base, doer: opts.Doer, now: opts.Now}, nil
}

func (p *Provider) Name() string { return Name }

// FetchQuote returns the latest quote. The change is computed against the
// close of the session before the latest bar.
func (p *Provider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	body, err := p.chart(ctx, symbol, domain.KindQuote, quoteRange, string(domain.Interval1d))
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &domain.FetchDataError{Symbol: symbol, Reason: "decode", Err: err}
	}
	price, ok := number(raw, "$.chart.result[0].meta.regularMarketPrice")
	if !ok {
		return nil, &domain.FetchDataError{Symbol: symbol, Reason: "missing regularMarketPrice"}
	}

	bars, err := decodeBars(symbol, body)
	if err != nil {
		return nil, err
	}

	prevClose, ok := previousClose(raw, bars)
	if !ok {
		return nil, &domain.FetchDataError{Symbol: symbol, Reason: "missing previous close"}
	}

	var volume int64
	if v, ok := number(raw, "$.chart.result[0].meta.regularMarketVolume"); ok {
		volume = int64(v)
	} else if len(bars) > 0 {
		volume = bars[len(bars)-1].Volume
	}

	q := domain.NewQuote(symbol, decimal.NewFromFloat(price), decimal.NewFromFloat(prevClose), volume, p.now())
	if name, ok := text(raw, "$.chart.result[0].meta.longName"); ok {
		q.Name = name
	} else if name, ok := text(raw, "$.chart.result[0].meta.shortName"); ok {
		q.Name = name
	}
	if cur, ok := text(raw, "$.chart.result[0].meta.currency"); ok {
		q.Currency = cur
	}
	if ts, ok := number(raw, "$.chart.result[0].meta.regularMarketTime"); ok {
		q.MarketTime = time.Unix(int64(ts), 0).UTC()
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// FetchHistory returns bars for the period, oldest first. Bars with a null
// close are skipped.
func (p *Provider) FetchHistory(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) (*domain.HistoricalSeries, error) {
	if interval == "" {
		interval = period.DefaultInterval()
	}
	body, err := p.chart(ctx, symbol, domain.KindHistory, string(period), string(interval))
	if err != nil {
		return nil, err
	}
	bars, err := decodeBars(symbol, body)
	if err != nil {
		return nil, err
	}
	series := &domain.HistoricalSeries{
		Symbol:    symbol,
		Period:    period,
		Interval:  interval,
		Bars:      bars,
		FetchedAt: p.now(),
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

func (p *Provider) chart(ctx context.Context, symbol, op, rng, interval string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), url.Values{
		"range":    {rng},
		"interval": {interval},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.FetchTransportError{Symbol: symbol, Op: op, Err: err}
	}
	resp, err := p.doer.Do(ctx, req)
	if err != nil {
		return nil, &domain.FetchTransportError{Symbol: symbol, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchTransportError{Symbol: symbol, Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Unknown or delisted symbols come back as 404 with a chart.error payload.
		if reason := apiError(body); reason != "" {
			return nil, &domain.FetchDataError{Symbol: symbol, Reason: reason}
		}
	}
	return nil, &domain.FetchTransportError{
		Symbol: symbol,
		Op:     op,
		Err:    fmt.Errorf("unexpected status code: %d", resp.StatusCode),
	}
}

func decodeBars(symbol string, body []byte) ([]domain.Bar, error) {
	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &domain.FetchDataError{Symbol: symbol, Reason: "decode", Err: err}
	}
	if e := data.Chart.Error; e != nil {
		return nil, &domain.FetchDataError{Symbol: symbol, Reason: e.Code + ": " + e.Description}
	}
	if len(data.Chart.Result) == 0 {
		return nil, &domain.FetchDataError{Symbol: symbol, Reason: "empty result"}
	}
	res := data.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := res.Indicators.Quote[0]

	bars := make([]domain.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		c := at(q.Close, i)
		if c == nil {
			continue
		}
		bar := domain.Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Close: decimal.NewFromFloat(*c),
			Open:  orClose(at(q.Open, i), *c),
			High:  orClose(at(q.High, i), *c),
			Low:   orClose(at(q.Low, i), *c),
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	// Intraday ranges can repeat the last timestamp for the live bar.
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func previousClose(raw any, bars []domain.Bar) (float64, bool) {
	if v, ok := number(raw, "$.chart.result[0].meta.previousClose"); ok {
		return v, true
	}
	if len(bars) >= 2 {
		f, _ := bars[len(bars)-2].Close.Float64()
		return f, true
	}
	return number(raw, "$.chart.result[0].meta.chartPreviousClose")
}

func apiError(body []byte) string {
	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil || data.Chart.Error == nil {
		return ""
	}
	return data.Chart.Error.Code + ": " + data.Chart.Error.Description
}

func number(raw any, path string) (float64, bool) {
	v, err := jsonpath.Get(path, raw)
	if err != nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func text(raw any, path string) (string, bool) {
	v, err := jsonpath.Get(path, raw)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func orClose(v *float64, c float64) decimal.Decimal {
	if v == nil {
		return decimal.NewFromFloat(c)
	}
	return decimal.NewFromFloat(*v)
}
