package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"stock_dash/internal/app"
)

// buyCmd records a buy.
type buyCmd struct {
	env *Env
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "add shares to a position" }
func (*buyCmd) Usage() string {
	return `stockctl buy SYMBOL QUANTITY PRICE

  Opens a position or adds to it. The cost basis becomes the weighted
  average of the existing and the new shares.
`
}

func (c *buyCmd) SetFlags(*flag.FlagSet) {}

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "buy takes SYMBOL QUANTITY PRICE")
		return subcommands.ExitUsageError
	}
	qty, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing quantity: %v\n", err)
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(f.Arg(2))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing price: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		pos, err := b.Portfolio.AddPosition(ctx, f.Arg(0), qty, price)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Out, "%s: %s shares at %s\n", pos.Symbol, pos.Quantity, pos.CostBasis.StringFixed(2))
		return nil
	})
}

// sellCmd records a sell.
type sellCmd struct {
	env *Env
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "remove shares from a position" }
func (*sellCmd) Usage() string {
	return `stockctl sell SYMBOL QUANTITY

  Reduces a position. Selling every share closes it.
`
}

func (c *sellCmd) SetFlags(*flag.FlagSet) {}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "sell takes SYMBOL QUANTITY")
		return subcommands.ExitUsageError
	}
	qty, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing quantity: %v\n", err)
		return subcommands.ExitUsageError
	}
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		pos, err := b.Portfolio.SellPosition(ctx, f.Arg(0), qty)
		if err != nil {
			return err
		}
		if pos.IsClosed() {
			fmt.Fprintf(c.env.Out, "%s: position closed\n", pos.Symbol)
			return nil
		}
		fmt.Fprintf(c.env.Out, "%s: %s shares left\n", pos.Symbol, pos.Quantity)
		return nil
	})
}

// portfolioCmd prints the valued portfolio.
type portfolioCmd struct {
	env    *Env
	cached bool
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "print positions with their market value" }
func (*portfolioCmd) Usage() string {
	return `stockctl portfolio [-cached]

  Prices every open position and prints the totals. Positions whose quote
  cannot be fetched are listed but excluded from the totals.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.cached, "cached", false, "do not fetch quotes, value against the cache only")
}

func (c *portfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		if !c.cached {
			for _, p := range b.Portfolio.Positions() {
				if _, err := b.Stocks.GetQuote(ctx, p.Symbol); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", p.Symbol, err)
				}
			}
		}
		c.env.printMarkdown(portfolioMarkdown(b.Portfolio.PortfolioTotalValue()))
		return nil
	})
}
