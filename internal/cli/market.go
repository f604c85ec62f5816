package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"stock_dash/internal/app"
	"stock_dash/internal/domain"
)

// quoteCmd prints live quotes.
type quoteCmd struct {
	env *Env
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "print the latest quote of one or more symbols" }
func (*quoteCmd) Usage() string {
	return `stockctl quote [SYMBOL...]

  Fetches and prints quotes. Without arguments the whole watchlist and the
  market indices are refreshed and listed.
`
}

func (c *quoteCmd) SetFlags(*flag.FlagSet) {}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := f.Args()
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		if len(symbols) == 0 {
			b.Stocks.RefreshAll(ctx)
			c.env.printMarkdown(snapshotMarkdown(b.Stocks.Snapshot()))
			return nil
		}
		quotes := make([]*domain.Quote, 0, len(symbols))
		for _, raw := range symbols {
			sym, err := b.Stocks.Track(raw, "")
			if err != nil {
				return err
			}
			q, err := b.Stocks.GetQuote(ctx, sym)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			quotes = append(quotes, q)
		}
		c.env.printMarkdown(quotesMarkdown(quotes))
		return nil
	})
}

// historyCmd prints a historical series with a few indicators.
type historyCmd struct {
	env    *Env
	period string
	sma    int
	rsi    int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print the price history of a symbol" }
func (*historyCmd) Usage() string {
	return `stockctl history [-period <period>] [-sma <n>] [-rsi <n>] SYMBOL

  Prints the last bars of the series together with its range, SMA and RSI.
  The period defaults to the "default_period" preference, then to 1mo.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "lookback period: 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, ytd, max")
	f.IntVar(&c.sma, "sma", 20, "simple moving average window, 0 to skip")
	f.IntVar(&c.rsi, "rsi", 14, "relative strength index window, 0 to skip")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "history takes exactly one symbol")
		return subcommands.ExitUsageError
	}
	if c.sma < 0 || c.rsi < 0 {
		fmt.Fprintln(os.Stderr, "indicator windows must not be negative")
		return subcommands.ExitUsageError
	}
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		period, err := domain.ParsePeriod(c.periodOrPreference(b))
		if err != nil {
			return err
		}
		sym, err := b.Stocks.Track(f.Arg(0), "")
		if err != nil {
			return err
		}
		series, err := b.Stocks.GetHistory(ctx, sym, period)
		if err != nil {
			return fmt.Errorf("%s: %w", sym, err)
		}
		c.env.printMarkdown(historyMarkdown(series, c.sma, c.rsi))
		return nil
	})
}

func (c *historyCmd) periodOrPreference(b *app.Bootstrap) string {
	if c.period != "" || b.Storage == nil {
		return c.period
	}
	prefs, err := b.Storage.LoadConfigMap()
	if err != nil {
		return ""
	}
	return prefs[prefDefaultPeriod]
}

// refreshCmd runs one refresh cycle.
type refreshCmd struct {
	env *Env
}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "refresh every tracked symbol once" }
func (*refreshCmd) Usage() string {
	return `stockctl refresh

  Runs one refresh cycle over the watchlist and the market indices and
  reports the symbols that failed.
`
}

func (c *refreshCmd) SetFlags(*flag.FlagSet) {}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		report := b.Stocks.RefreshAll(ctx)
		c.env.printMarkdown(refreshMarkdown(report))
		if len(report.Refreshed) == 0 && len(report.Failed) > 0 {
			return fmt.Errorf("all %d symbols failed", len(report.Failed))
		}
		return nil
	})
}

// fetchesCmd lists recorded provider calls.
type fetchesCmd struct {
	env    *Env
	symbol string
	n      int
}

func (*fetchesCmd) Name() string     { return "fetches" }
func (*fetchesCmd) Synopsis() string { return "list recent provider calls" }
func (*fetchesCmd) Usage() string {
	return `stockctl fetches [-symbol <symbol>] [-n <count>]

  Lists provider calls from the fetch log, newest first. Requires
  recorder.sqlite_path to be set.
`
}

func (c *fetchesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "only list calls for this symbol")
	f.IntVar(&c.n, "n", 20, "maximum number of calls to list")
}

func (c *fetchesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol := c.symbol
	if symbol != "" {
		sym, err := domain.NormalizeSymbol(symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		symbol = sym
	}
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		records, err := b.Recorder.Recent(ctx, symbol, c.n)
		if err != nil {
			return err
		}
		c.env.printMarkdown(fetchesMarkdown(records))
		return nil
	})
}
