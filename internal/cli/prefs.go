package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/subcommands"

	"stock_dash/internal/app"
	"stock_dash/internal/domain"
)

const prefDefaultPeriod = "default_period"

// prefsCmd reads and writes user preferences in the settings table.
type prefsCmd struct {
	env *Env
}

func (*prefsCmd) Name() string     { return "prefs" }
func (*prefsCmd) Synopsis() string { return "show or set preferences" }
func (*prefsCmd) Usage() string {
	return `stockctl prefs [KEY [VALUE]]

  Without arguments every stored preference is listed. With KEY its value is
  printed, with KEY VALUE it is set. Requires storage to be enabled.

  Keys:
    default_period   period used by "history" when -period is not given
`
}

func (c *prefsCmd) SetFlags(*flag.FlagSet) {}

func (c *prefsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 2 {
		fmt.Fprintln(os.Stderr, "prefs takes at most KEY VALUE")
		return subcommands.ExitUsageError
	}
	args := f.Args()
	return c.env.run(ctx, func(b *app.Bootstrap) error {
		if b.Storage == nil {
			return errors.New("storage is disabled, preferences cannot be kept")
		}
		if len(args) == 2 {
			value, err := normalizePref(args[0], args[1])
			if err != nil {
				return err
			}
			if err := b.Storage.SaveConfig(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(c.env.Out, "%s = %s\n", args[0], value)
			return nil
		}

		prefs, err := b.Storage.LoadConfigMap()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			v, ok := prefs[args[0]]
			if !ok {
				return fmt.Errorf("%s is not set", args[0])
			}
			fmt.Fprintln(c.env.Out, v)
			return nil
		}
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		var md strings.Builder
		md.WriteString("| Key | Value |\n|---|---|\n")
		for _, k := range keys {
			fmt.Fprintf(&md, "| %s | %s |\n", k, escapePipes(prefs[k]))
		}
		c.env.printMarkdown(md.String())
		return nil
	})
}

// normalizePref validates known keys. Unknown keys are stored as given.
func normalizePref(key, value string) (string, error) {
	switch key {
	case prefDefaultPeriod:
		p, err := domain.ParsePeriod(value)
		if err != nil {
			return "", err
		}
		return string(p), nil
	}
	return value, nil
}
