package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	"DDoSDefender/internal/model"
	"DDoSDefender/internal/probe"
	"DDoSDefender/pkg/pcap"
)

func init() {
	bootstrapCommands(cli.Command{
		Name:      "replay",
		Usage:     "read a pcap or pcapng capture into the record store or onto NATS",
		ArgsUsage: "<capture file>",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{Name: "to, t", Usage: "destination: `store` or nats", Value: "store"},
			cli.IntFlag{Name: "batch, b", Usage: "records per write", Value: 1000},
		},
		Action: replay,
	})
}

func replay(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("Specify a capture file", 1)
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

	reader, err := pcap.Open(path, res.log)
	if err != nil {
		return exitErr(err)
	}
	defer reader.Close()

	ctx := context.Background()
	total, err := reader.ReadBatches(c.Int("batch"), func(batch []model.RawTrafficRecord) error {
		return sink.AppendRecords(ctx, batch)
	})
	if err != nil {
		return exitErr(fmt.Errorf("replay stopped after %d records: %w", total, err))
	}
	fmt.Printf("[-] Replayed %d records from %s (%d non-IP frames skipped)\n", total, path, reader.Skipped())
	return nil
}

// recordSink resolves a --to flag to the store chain or a NATS publisher.
func recordSink(res *resources, to string) (model.RecordSink, func(), error) {
	switch to {
	case "", "store":
		return res.chain, func() {}, nil
	case "nats":
		pub, err := probe.NewPublisher(res.cfg.NATS, res.log)
		if err != nil {
			return nil, nil, err
		}
		return pub, pub.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown destination %q, want store or nats", to)
}
