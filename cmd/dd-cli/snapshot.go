package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"

	"DDoSDefender/internal/model"
	"DDoSDefender/internal/snapshot"
)

func init() {
	bootstrapCommands(
		cli.Command{
			Name:  "snapshot",
			Usage: "export stored feature records of every configured window size",
			Flags: []cli.Flag{
				configFlag,
				cli.IntFlag{Name: "limit, n", Usage: "records per window size", Value: 1000},
				cli.StringFlag{Name: "out, o", Usage: "root `DIR` of the snapshot", Value: "snapshots"},
			},
			Action: writeSnapshot,
		},
		cli.Command{
			Name:      "restore",
			Usage:     "append the feature records of a snapshot to the configured stores",
			ArgsUsage: "<snapshot directory>",
			Flags:     []cli.Flag{configFlag},
			Action:    restoreSnapshot,
		},
	)
}

func writeSnapshot(c *cli.Context) error {
	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()

	var records []model.FeatureRecord
	for _, w := range res.cfg.Pipeline.WindowSizes {
		recent, err := res.chain.QueryRecent(context.Background(), w, c.Int("limit"))
		if err != nil {
			return exitErr(err)
		}
		// Stored oldest first so a restore preserves insertion order.
		for i := len(recent) - 1; i >= 0; i-- {
			records = append(records, recent[i])
		}
	}
	dir, err := snapshot.NewWriter().Write(records, c.String("out"), "features", snapshot.Timestamp(time.Now()))
	if err != nil {
		return exitErr(err)
	}
	if dir == "" {
		fmt.Println("[!] No feature records to export")
		return nil
	}
	fmt.Printf("[-] Exported %d records to %s\n", len(records), dir)
	return nil
}

func restoreSnapshot(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return cli.NewExitError("Specify a snapshot directory", 1)
	}
	summary, records, err := snapshot.Read(dir)
	if err != nil {
		return exitErr(err)
	}
	if len(records) == 0 {
		fmt.Println("[!] The snapshot is empty")
		return nil
	}
	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()

	p := mpb.New(mpb.WithWidth(20))
	bar := p.AddBar(int64(len(records)),
		mpb.PrependDecorators(
			decor.Name("\t[-] Restoring "+summary.Name+":", decor.WC{W: 30, C: decor.DidentRight}),
			decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	ctx := context.Background()
	restored := 0
	for n, r := range records {
		start := time.Now()
		if err = res.chain.Append(ctx, r); err != nil {
			bar.IncrBy(len(records)-n, time.Since(start))
			break
		}
		restored++
		bar.IncrBy(1, time.Since(start))
	}
	p.Wait()
	if err != nil {
		return exitErr(fmt.Errorf("restore stopped after %d records: %w", restored, err))
	}
	fmt.Printf("[-] Restored %d records\n", restored)
	return nil
}
