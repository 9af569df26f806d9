package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"

	"DDoSDefender/internal/generator"
	"DDoSDefender/internal/model"
	"DDoSDefender/pkg/pcap"
)

func init() {
	bootstrapCommands(cli.Command{
		Name:  "generate",
		Usage: "synthesize labelled traffic for a scenario",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{Name: "scenario, s", Usage: "one of " + strings.Join(generator.Scenarios, ", "), Value: generator.ScenarioNormal},
			cli.DurationFlag{Name: "duration, d", Usage: "length of the generated traffic", Value: time.Minute},
			cli.IntFlag{Name: "rate, r", Usage: "packets per second of normal traffic", Value: 100},
			cli.StringFlag{Name: "intensity, i", Usage: "flood intensity: low, medium or high", Value: string(generator.Medium)},
			cli.StringFlag{Name: "start", Usage: "timestamp of the first record as RFC 3339, default duration ago"},
			cli.Int64Flag{Name: "seed", Usage: "random seed, default derived from the clock"},
			cli.StringFlag{Name: "out, o", Usage: "write a pcap `FILE` instead of storing the records"},
			cli.StringFlag{Name: "to, t", Usage: "destination when --out is not set: store or nats", Value: "store"},
			cli.IntFlag{Name: "batch, b", Usage: "records per write", Value: 1000},
		},
		Action: generate,
	})
}

func generate(c *cli.Context) error {
	intensity, err := generator.ParseIntensity(c.String("intensity"))
	if err != nil {
		return exitErr(err)
	}
	duration := c.Duration("duration")
	start := time.Now().Add(-duration)
	if c.String("start") != "" {
		if start, err = parseTime(c.String("start")); err != nil {
			return exitErr(err)
		}
	}
	seed := c.Int64("seed")
	if !c.IsSet("seed") {
		seed = time.Now().UnixNano()
	}

	records, err := generator.New(seed).Generate(c.String("scenario"), start, duration, c.Int("rate"), intensity)
	if err != nil {
		return exitErr(err)
	}

	if out := c.String("out"); out != "" {
		if err := writeCapture(out, records); err != nil {
			return exitErr(err)
		}
		fmt.Printf("[-] Wrote %d %s records to %s\n", len(records), c.String("scenario"), out)
		return nil
	}

	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()
	sink, closeSink, err := recordSink(res, c.String("to"))
	if err != nil {
		return exitErr(err)
	}
	defer closeSink()

	if err := writeBatches(sink, records, c.Int("batch"), "Generating "+c.String("scenario")); err != nil {
		return exitErr(err)
	}
	fmt.Printf("[-] Stored %d %s records (seed %d)\n", len(records), c.String("scenario"), seed)
	return nil
}

func writeCapture(path string, records []model.RawTrafficRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := pcap.NewWriter(f)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := w.WriteRecord(r); err != nil {
			return err
		}
	}
	return f.Sync()
}

// writeBatches appends records to sink in batches behind a progress bar.
func writeBatches(sink model.RecordSink, records []model.RawTrafficRecord, batch int, label string) error {
	if len(records) == 0 {
		return nil
	}
	if batch <= 0 {
		batch = 1000
	}
	p := mpb.New(mpb.WithWidth(20))
	bar := p.AddBar(int64(len(records)),
		mpb.PrependDecorators(
			decor.Name("\t[-] "+label+":", decor.WC{W: 30, C: decor.DidentRight}),
			decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	ctx := context.Background()
	var err error
	for lo := 0; lo < len(records); lo += batch {
		hi := lo + batch
		if hi > len(records) {
			hi = len(records)
		}
		begin := time.Now()
		if err = sink.AppendRecords(ctx, records[lo:hi]); err != nil {
			// Complete the bar so Wait returns.
			bar.IncrBy(len(records)-lo, time.Since(begin))
			break
		}
		bar.IncrBy(hi-lo, time.Since(begin))
	}
	p.Wait()
	return err
}
