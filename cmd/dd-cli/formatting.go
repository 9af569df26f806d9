package main

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"DDoSDefender/internal/model"
)

// helper functions for formatting floats and integers
func f(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func i(v int64) string {
	return strconv.FormatInt(v, 10)
}

var recordHeader = []string{
	"Timestamp", "Window", "Packets", "Bytes", "Sources", "Destinations",
	"TCP", "UDP", "ICMP", "SYN", "Src Entropy", "Dst Entropy", "Port Entropy",
	"Anomaly", "Score",
}

func recordRow(r model.FeatureRecord) []string {
	m := r.Metrics
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339), i(int64(r.WindowSizeMinutes)),
		i(int64(m.PacketCount)), i(m.ByteCount), i(int64(m.UniqueSourceCount)), i(int64(m.UniqueDestinationCount)),
		f(m.TCPRatio), f(m.UDPRatio), f(m.ICMPRatio), f(m.SYNRatio),
		f(m.SourceEntropy), f(m.DestinationEntropy), f(m.PortEntropy),
		r.AnomalyType, f(r.AnomalyScore),
	}
}

// writeRecords prints records as a table when human is set and as CSV
// otherwise.
func writeRecords(out io.Writer, records []model.FeatureRecord, human bool) error {
	if human {
		table := tablewriter.NewWriter(out)
		table.SetHeader(recordHeader)
		for _, r := range records {
			table.Append(recordRow(r))
		}
		table.Render()
		return nil
	}
	w := csv.NewWriter(out)
	w.Write(recordHeader)
	for _, r := range records {
		w.Write(recordRow(r))
	}
	w.Flush()
	return w.Error()
}
