package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"

	"DDoSDefender/internal/features"
)

func init() {
	bootstrapCommands(cli.Command{
		Name:  "backfill",
		Usage: "compute feature records for every window between two times",
		Flags: []cli.Flag{
			configFlag, windowFlag,
			cli.StringFlag{Name: "from", Usage: "start of the range as RFC 3339"},
			cli.StringFlag{Name: "to", Usage: "end of the range as RFC 3339, default now"},
			cli.DurationFlag{Name: "step", Usage: "distance between window ends, default the window size"},
		},
		Action: backfill,
	})
}

// windowEnds lists the end of every window of size window that fits in
// [from, to], stepping by step.
func windowEnds(from, to time.Time, window, step time.Duration) ([]time.Time, error) {
	if step <= 0 {
		step = window
	}
	if !to.After(from) {
		return nil, errors.New("--to must be after --from")
	}
	var ends []time.Time
	for end := from.Add(window); !end.After(to); end = end.Add(step) {
		ends = append(ends, end)
	}
	return ends, nil
}

func backfill(c *cli.Context) error {
	if c.String("from") == "" {
		return cli.NewExitError("Specify the start of the range with --from", 1)
	}
	from, err := parseTime(c.String("from"))
	if err != nil {
		return exitErr(err)
	}
	to, err := parseTime(c.String("to"))
	if err != nil {
		return exitErr(err)
	}
	window := c.Int("window")
	if window <= 0 {
		return exitErr(features.ErrInvalidWindow)
	}
	ends, err := windowEnds(from, to, time.Duration(window)*time.Minute, c.Duration("step"))
	if err != nil {
		return exitErr(err)
	}
	if len(ends) == 0 {
		return cli.NewExitError("The range is shorter than one window", 1)
	}

	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()
	pipeline := res.pipeline()

	p := mpb.New(mpb.WithWidth(20))
	bar := p.AddBar(int64(len(ends)),
		mpb.PrependDecorators(
			decor.Name("\t[-] Backfilling windows:", decor.WC{W: 30, C: decor.DidentRight}),
			decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	ctx := context.Background()
	var stored, empty, anomalous int
	var failures []error
	for _, end := range ends {
		start := time.Now()
		result, err := pipeline.Run(ctx, window, end)
		switch {
		case err != nil:
			failures = append(failures, fmt.Errorf("window ending %s: %w", end.Format(time.RFC3339), err))
		case result.Record == nil:
			empty++
		default:
			stored++
			if result.Record.IsAnomaly {
				anomalous++
			}
		}
		bar.IncrBy(1, time.Since(start))
	}
	p.Wait()

	fmt.Printf("[-] %d windows stored (%d anomalous), %d empty, %d failed\n", stored, anomalous, empty, len(failures))
	if len(failures) > 0 {
		return exitErr(errors.Join(failures...))
	}
	return nil
}
