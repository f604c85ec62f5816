// Command stockctl queries quotes and manages the watchlist, portfolio and
// preferences of a stock_dash installation from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"stock_dash/internal/cli"
)

func main() {
	cli.Completion().Complete("stockctl")

	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	verbose := flag.Bool("v", false, "print application logs")
	raw := flag.Bool("raw", false, "print plain markdown")

	cdr := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	env := &cli.Env{
		Open: cli.OpenFromConfig(configPath, verbose),
		Out:  os.Stdout,
	}
	cli.Register(cdr, env)

	flag.Parse()
	env.Raw = *raw
	os.Exit(int(cdr.Execute(context.Background())))
}
