package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock_dash/internal/api"
	"stock_dash/internal/domain"
	"stock_dash/internal/indicator"
	"stock_dash/internal/service"
)

func quotesMarkdown(quotes []*domain.Quote) string {
	var b strings.Builder
	b.WriteString("| Symbol | Name | Price | Change | Volume |\n")
	b.WriteString("|---|---|---:|---:|---:|\n")
	for _, q := range quotes {
		fmt.Fprintf(&b, "| %s | %s | %s | %s (%s) | %s |\n",
			q.Symbol, q.Name,
			api.FormatMoney(q.Price, q.Currency),
			api.FormatSigned(q.Change), api.FormatPercent(q.ChangePercent),
			api.FormatNumber(decimal.NewFromInt(q.Volume)))
	}
	return b.String()
}

func snapshotMarkdown(snaps []service.SymbolSnapshot) string {
	var b strings.Builder
	b.WriteString("| Symbol | Name | Price | Change | Status |\n")
	b.WriteString("|---|---|---:|---:|---|\n")
	for _, s := range snaps {
		price, change := "n/a", ""
		if s.Quote != nil {
			price = api.FormatMoney(s.Quote.Price, s.Quote.Currency)
			change = api.FormatPercent(s.Quote.ChangePercent)
		}
		status := "ok"
		switch {
		case !s.Status.Healthy():
			status = fmt.Sprintf("failing (%d): %s", s.Status.FailureCount, s.Status.LastErrorKind)
		case s.Quote == nil:
			status = "pending"
		case s.Stale:
			status = "stale"
		}
		name := s.DisplayName
		if s.Pinned && !s.Watchlisted {
			name += " 📌"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", s.Symbol, name, price, change, status)
	}
	return b.String()
}

func historyMarkdown(h *domain.HistoricalSeries, smaPeriod, rsiPeriod int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s (%s bars)\n\n", h.Symbol, h.Period, h.Interval)

	closes := h.Closes()
	if rng, err := indicator.Range(h.Bars); err == nil {
		fmt.Fprintf(&b, "- Range: %s to %s, last close at %s%% of the band\n",
			rng.Low.StringFixed(2), rng.High.StringFixed(2), rng.Position.Mul(decimal.NewFromInt(100)).StringFixed(0))
	}
	if smaPeriod > 0 {
		if v, err := indicator.SMA(closes, smaPeriod); err == nil {
			fmt.Fprintf(&b, "- SMA(%d): %s\n", smaPeriod, v.StringFixed(2))
		} else {
			fmt.Fprintf(&b, "- SMA(%d): %v\n", smaPeriod, err)
		}
	}
	if rsiPeriod > 0 {
		if v, err := indicator.RSI(closes, rsiPeriod); err == nil {
			fmt.Fprintf(&b, "- RSI(%d): %s\n", rsiPeriod, v.StringFixed(1))
		} else {
			fmt.Fprintf(&b, "- RSI(%d): %v\n", rsiPeriod, err)
		}
	}

	b.WriteString("\n| Time | Open | High | Low | Close | Volume |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	// The last bars are the interesting ones on a terminal.
	bars := h.Bars
	if len(bars) > 20 {
		bars = bars[len(bars)-20:]
	}
	layout := "2006-01-02"
	if h.Interval != domain.Interval1d && h.Interval != domain.Interval1wk {
		layout = "2006-01-02 15:04"
	}
	for _, bar := range bars {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			bar.Time.Format(layout),
			bar.Open.StringFixed(2), bar.High.StringFixed(2), bar.Low.StringFixed(2), bar.Close.StringFixed(2),
			api.FormatNumber(decimal.NewFromInt(bar.Volume)))
	}
	return b.String()
}

func portfolioMarkdown(s domain.PortfolioSummary) string {
	var b strings.Builder
	b.WriteString("# Portfolio\n\n")
	if len(s.Positions) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}
	b.WriteString("| Symbol | Quantity | Avg Cost | Price | Value | P&L |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, v := range s.Positions {
		price, value, pnl := "n/a", "n/a", "n/a"
		if v.Known {
			price = api.FormatMoney(v.Price, "USD")
			value = api.FormatMoney(v.MarketValue, "USD")
			pnl = fmt.Sprintf("%s (%s)", api.FormatSigned(v.UnrealizedPnL), api.FormatPercent(v.PnLPercent))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			v.Position.Symbol, v.Position.Quantity.String(), api.FormatMoney(v.Position.CostBasis, "USD"),
			price, value, pnl)
	}
	fmt.Fprintf(&b, "\n**Total value:** %s  \n**Total P&L:** %s (%s)\n",
		api.FormatMoney(s.TotalValue, "USD"), api.FormatSigned(s.TotalPnL), api.FormatPercent(s.TotalPnLPercent))
	if !s.Complete() {
		fmt.Fprintf(&b, "\n> No quote yet for %s; excluded from totals.\n", strings.Join(s.Unknown, ", "))
	}
	return b.String()
}

func refreshMarkdown(r service.RefreshReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Refreshed %d symbols in %s.\n", len(r.Refreshed), r.Duration.Round(time.Millisecond))
	if len(r.Failed) > 0 {
		b.WriteString("\n| Symbol | Kind | Error |\n|---|---|---|\n")
		for _, f := range r.Failed {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", f.Symbol, f.Kind, escapePipes(f.Error))
		}
	}
	return b.String()
}

func fetchesMarkdown(records []domain.FetchRecord) string {
	if len(records) == 0 {
		return "No fetches recorded.\n"
	}
	var b strings.Builder
	b.WriteString("| Time | Symbol | Kind | Result | Price | Duration |\n")
	b.WriteString("|---|---|---|---|---:|---:|\n")
	for _, r := range records {
		result := "ok"
		if !r.OK {
			result = escapePipes(r.Error)
		}
		kind := r.Kind
		if r.Period != "" {
			kind += " " + string(r.Period)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			r.At.Local().Format("01-02 15:04:05"), r.Symbol, kind, result, r.Price, r.Duration)
	}
	return b.String()
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
