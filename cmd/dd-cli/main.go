package main

import (
	"os"

	"github.com/urfave/cli"

	_ "DDoSDefender/internal/store/clickhouse"
	_ "DDoSDefender/internal/store/memory"
	_ "DDoSDefender/internal/store/mongodb"
	_ "DDoSDefender/internal/store/postgres"
)

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "dd-cli"
	app.Usage = "Inspect, replay and backfill DDoSDefender traffic features."
	app.Version = version
	app.Commands = allCommands

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
