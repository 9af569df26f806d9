package main

import (
	"context"
	"fmt"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/urfave/cli"

	"DDoSDefender/internal/reporting"
)

func init() {
	bootstrapCommands(cli.Command{
		Name:  "report",
		Usage: "write an HTML report of stored feature records and open it",
		Flags: []cli.Flag{
			configFlag, windowFlag,
			cli.IntFlag{Name: "limit, n", Usage: "number of records to include", Value: 288},
			cli.StringFlag{Name: "out, o", Usage: "parent `DIR` of the report directory", Value: "."},
			cli.BoolFlag{Name: "no-browser", Usage: "do not open the report when done"},
		},
		Action: report,
	})
}

func report(c *cli.Context) error {
	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()

	window := c.Int("window")
	recent, err := res.chain.QueryRecent(context.Background(), window, c.Int("limit"))
	if err != nil {
		return exitErr(err)
	}

	r := reporting.Report{
		Title:             fmt.Sprintf("DDoSDefender traffic report (%d-minute windows)", window),
		WindowSizeMinutes: window,
		GeneratedAt:       time.Now(),
		Records:           recent,
	}
	path, err := r.WriteHTML(c.String("out"), "ddos-report")
	if err != nil {
		return exitErr(err)
	}
	fmt.Println("[-] Wrote report to " + path)
	if !c.Bool("no-browser") {
		if err := open.Run(path); err != nil {
			res.log.WithError(err).Warn("Could not open the report in a browser")
		}
	}
	return nil
}
