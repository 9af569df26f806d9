package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"DDoSDefender/internal/features"
	"DDoSDefender/internal/model"
)

func init() {
	bootstrapCommands(
		cli.Command{
			Name:  "aggregate",
			Usage: "compute, store and print the feature record of one window",
			Flags: []cli.Flag{
				configFlag, windowFlag, humanFlag,
				cli.StringFlag{Name: "now", Usage: "end of the window as RFC 3339, default now"},
			},
			Action: aggregate,
		},
		cli.Command{
			Name:   "recent",
			Usage:  "print the newest stored feature records of a window size",
			Flags:  []cli.Flag{configFlag, windowFlag, limitFlag, humanFlag},
			Action: showRecent,
		},
		cli.Command{
			Name:  "vector",
			Usage: "print the feature vector of the newest record, or a sequence of vectors",
			Flags: []cli.Flag{
				configFlag, windowFlag,
				cli.IntFlag{Name: "sequence, s", Usage: "print the newest `N` vectors oldest first", Value: 0},
			},
			Action: showVector,
		},
		cli.Command{
			Name:   "stats",
			Usage:  "summarize stored feature records",
			Flags:  []cli.Flag{configFlag, windowFlag, cli.IntFlag{Name: "limit, n", Usage: "number of records to summarize", Value: 100}},
			Action: showStats,
		},
	)
}

func aggregate(c *cli.Context) error {
	now, err := parseTime(c.String("now"))
	if err != nil {
		return exitErr(err)
	}
	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()

	result, err := res.pipeline().Run(context.Background(), c.Int("window"), now)
	if err != nil {
		if result.Record != nil {
			fmt.Fprintln(os.Stderr, "[!] The record below was computed but not stored:")
			writeRecords(os.Stdout, []model.FeatureRecord{*result.Record}, c.Bool("human-readable"))
		}
		return exitErr(err)
	}
	if result.Record == nil {
		fmt.Println("[-] No traffic in the window, nothing stored")
		return nil
	}
	return writeRecords(os.Stdout, result.Recent, c.Bool("human-readable"))
}

func showRecent(c *cli.Context) error {
	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()

	recent, err := res.chain.QueryRecent(context.Background(), c.Int("window"), c.Int("limit"))
	if err != nil {
		return exitErr(err)
	}
	if len(recent) == 0 {
		return exitErr(fmt.Errorf("no feature records for %d-minute windows", c.Int("window")))
	}
	return writeRecords(os.Stdout, recent, c.Bool("human-readable"))
}

func showVector(c *cli.Context) error {
	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()

	length := c.Int("sequence")
	limit := length
	if limit <= 0 {
		limit = 1
	}
	recent, err := res.chain.QueryRecent(context.Background(), c.Int("window"), limit)
	if err != nil {
		return exitErr(err)
	}

	vectors := []model.FeatureVector{features.Extract(recent)}
	if length > 0 {
		vectors = features.ExtractSequence(recent, length)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "SYN", "TCP", "UDP", "ICMP", "Src H", "Dst H", "Pkts/1k", "Srcs/100"})
	for n, v := range vectors {
		row := []string{strconv.Itoa(n)}
		for _, x := range v {
			row = append(row, f(x))
		}
		table.Append(row)
	}
	table.Render()
	fmt.Printf("feature vector version %d\n", model.FeatureVectorVersion)
	return nil
}

func showStats(c *cli.Context) error {
	res, err := loadResources(c)
	if err != nil {
		return exitErr(err)
	}
	defer res.Close()

	recent, err := res.chain.QueryRecent(context.Background(), c.Int("window"), c.Int("limit"))
	if err != nil {
		return exitErr(err)
	}
	s := features.Summarize(recent)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Windows", i(int64(s.TotalWindows))})
	table.Append([]string{"Anomalous windows", i(int64(s.AnomalousWindows))})
	table.Append([]string{"Anomalous window ratio", f(s.AnomalyWindowRatio)})
	table.Append([]string{"Packets", i(s.TotalPackets)})
	table.Append([]string{"Anomalous packet ratio", f(s.AnomalyPacketRatio)})
	table.Append([]string{"Bytes", i(s.TotalBytes)})
	table.Append([]string{"Anomalous byte ratio", f(s.AnomalyByteRatio)})
	table.Append([]string{"Highest score", f(s.MaxScore)})
	types := make([]string, 0, len(s.AnomalyTypes))
	for t := range s.AnomalyTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		table.Append([]string{"Anomaly: " + t, i(int64(s.AnomalyTypes[t]))})
	}
	table.Render()
	return nil
}
