// Package reporting renders stored feature records as a standalone HTML
// report.
package reporting

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"

	"DDoSDefender/internal/features"
	"DDoSDefender/internal/model"
)

// Report is the input of a rendered report. Records are newest first, as
// returned by a feature store.
type Report struct {
	Title             string
	WindowSizeMinutes int
	GeneratedAt       time.Time
	Records           []model.FeatureRecord
}

// Markdown renders the report body.
func (r Report) Markdown() string {
	stats := features.Summarize(r.Records)
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "Window size **%d minutes**, generated %s.\n\n", r.WindowSizeMinutes, r.GeneratedAt.UTC().Format(time.RFC1123))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Windows | %d |\n", stats.TotalWindows)
	fmt.Fprintf(&b, "| Anomalous windows | %d (%.1f%%) |\n", stats.AnomalousWindows, 100*stats.AnomalyWindowRatio)
	fmt.Fprintf(&b, "| Packets | %d |\n", stats.TotalPackets)
	fmt.Fprintf(&b, "| Anomalous packets | %d (%.1f%%) |\n", stats.AnomalousPackets, 100*stats.AnomalyPacketRatio)
	fmt.Fprintf(&b, "| Bytes | %d |\n", stats.TotalBytes)
	fmt.Fprintf(&b, "| Highest score | %.2f |\n\n", stats.MaxScore)

	if len(stats.AnomalyTypes) > 0 {
		b.WriteString("## Anomalies by type\n\n| Type | Windows |\n|---|---|\n")
		types := make([]string, 0, len(stats.AnomalyTypes))
		for t := range stats.AnomalyTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "| %s | %d |\n", t, stats.AnomalyTypes[t])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Windows\n\n")
	if len(r.Records) == 0 {
		b.WriteString("No feature records were found.\n")
		return b.String()
	}
	b.WriteString("| End (UTC) | Packets | Bytes | Sources | TCP | UDP | ICMP | SYN | Src entropy | Verdict |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
	for _, rec := range r.Records {
		verdict := "normal"
		if rec.IsAnomaly {
			verdict = fmt.Sprintf("**%s** (%.1f)", rec.AnomalyType, rec.AnomalyScore)
		}
		m := rec.Metrics
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %s | %s | %s | %s | %s | %s |\n",
			rec.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			m.PacketCount, m.ByteCount, m.UniqueSourceCount,
			pct(m.TCPRatio), pct(m.UDPRatio), pct(m.ICMPRatio), pct(m.SYNRatio),
			strconv.FormatFloat(m.SourceEntropy, 'f', 3, 64),
			verdict,
		)
	}
	return b.String()
}

// HTML renders the report as a complete HTML document.
func (r Report) HTML() []byte {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	buf.WriteString(r.Title)
	buf.WriteString("</title><style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style></head><body>\n")
	buf.Write(markdown.ToHTML([]byte(r.Markdown()), nil, nil))
	buf.WriteString("</body></html>\n")
	return buf.Bytes()
}

// WriteHTML writes the report to index.html inside a new directory under
// parent. When base already exists a numeric suffix is added. It returns
// the path of the written file.
func (r Report) WriteHTML(parent, base string) (string, error) {
	dir := filepath.Join(parent, base)
	for n := 1; ; n++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = filepath.Join(parent, base+strconv.Itoa(n))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, r.HTML(), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func pct(v float64) string {
	return strconv.FormatFloat(100*v, 'f', 1, 64) + "%"
}
