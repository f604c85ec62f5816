// Package cli implements the stockctl subcommands. Commands run against the
// same components as the server, opened directly from the config.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"stock_dash/internal/app"
	"stock_dash/internal/domain"
)

// Env is shared by every command.
type Env struct {
	// Open returns an initialized application. Commands call Shutdown when done.
	Open func(ctx context.Context) (*app.Bootstrap, error)
	Out  io.Writer
	// Raw prints markdown without terminal rendering.
	Raw bool
}

// OpenFromConfig returns an opener that loads configPath with logging reduced
// to errors so command output stays readable.
func OpenFromConfig(configPath *string, verbose *bool) func(ctx context.Context) (*app.Bootstrap, error) {
	return func(ctx context.Context) (*app.Bootstrap, error) {
		b, err := app.LoadBootstrap(*configPath)
		if err != nil {
			return nil, err
		}
		if !*verbose {
			b.Config.Logging.Level = "error"
		}
		if err := b.Initialize(ctx); err != nil {
			b.Shutdown(ctx)
			return nil, err
		}
		return b, nil
	}
}

// Register the subcommands.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")

	c.Register(&quoteCmd{env: env}, "market")
	c.Register(&historyCmd{env: env}, "market")
	c.Register(&refreshCmd{env: env}, "market")
	c.Register(&fetchesCmd{env: env}, "market")

	c.Register(&watchlistCmd{env: env}, "watchlist")

	c.Register(&buyCmd{env: env}, "portfolio")
	c.Register(&sellCmd{env: env}, "portfolio")
	c.Register(&portfolioCmd{env: env}, "portfolio")

	c.Register(&prefsCmd{env: env}, "settings")
}

// Completion describes the command tree for shell completion. Run
// "COMP_INSTALL=1 stockctl" to install it.
func Completion() *complete.Command {
	periods := make(predict.Set, len(domain.Periods))
	for i, p := range domain.Periods {
		periods[i] = string(p)
	}
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.yaml"),
			"v":      predict.Nothing,
			"raw":    predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"quote":     {Args: predict.Something},
			"history":   {Flags: map[string]complete.Predictor{"period": periods, "sma": predict.Something, "rsi": predict.Something}, Args: predict.Something},
			"refresh":   {},
			"fetches":   {Flags: map[string]complete.Predictor{"symbol": predict.Something, "n": predict.Something}},
			"watchlist": {Flags: map[string]complete.Predictor{"add": predict.Something, "remove": predict.Something, "name": predict.Something}},
			"buy":       {Args: predict.Something},
			"sell":      {Args: predict.Something},
			"portfolio": {Flags: map[string]complete.Predictor{"cached": predict.Nothing}},
			"prefs":     {Args: predict.Set{prefDefaultPeriod}},
			"help":      {},
			"flags":     {},
		},
	}
}

func (e *Env) printMarkdown(md string) {
	if e.Raw {
		fmt.Fprint(e.Out, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Fprint(e.Out, out)
			return
		}
	}
	fmt.Fprint(e.Out, md)
}

// run opens the application, calls fn and shuts down. Errors are printed to
// stderr and mapped to an exit status.
func (e *Env) run(ctx context.Context, fn func(b *app.Bootstrap) error) subcommands.ExitStatus {
	b, err := e.Open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening application: %v\n", err)
		return subcommands.ExitFailure
	}
	defer b.Shutdown(ctx)

	if err := fn(b); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
