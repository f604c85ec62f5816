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

// watchlistCmd lists or edits the watchlist.
type watchlistCmd struct {
	env    *Env
	add    string
	name   string
	remove string
}

func (*watchlistCmd) Name() string     { return "watchlist" }
func (*watchlistCmd) Synopsis() string { return "list, add or remove watchlist symbols" }
func (*watchlistCmd) Usage() string {
	return `stockctl watchlist [-add <symbol> [-name <display name>]] [-remove <symbol>]

  Without flags the watchlist is printed with the cached state of each symbol.
  Edits are persisted when storage is enabled.
`
}

func (c *watchlistCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.add, "add", "", "symbol to add")
	f.StringVar(&c.name, "name", "", "display name of the added symbol")
	f.StringVar(&c.remove, "remove", "", "symbol to remove")
}

func (c *watchlistCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name != "" && c.add == "" {
		fmt.Fprintln(os.Stderr, "-name requires -add")
		return subcommands.ExitUsageError
	}
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		if c.remove != "" {
			if err := b.Stocks.RemoveFromWatchlist(ctx, c.remove); err != nil {
				return err
			}
			fmt.Fprintf(c.env.Out, "Removed %s\n", c.remove)
		}
		if c.add != "" {
			entry, err := b.Stocks.AddToWatchlist(ctx, domain.WatchlistEntry{Symbol: c.add, DisplayName: c.name})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.env.Out, "Added %s\n", entry.Symbol)
		}
		if c.add != "" || c.remove != "" {
			return nil
		}

		snaps := b.Stocks.Snapshot()
		listed := snaps[:0]
		for _, s := range snaps {
			if s.Watchlisted {
				listed = append(listed, s)
			}
		}
		c.env.printMarkdown(snapshotMarkdown(listed))
		return nil
	})
}
