// Package snapshot exports feature records to disk and reads them back, so
// a history can move between store backends or be archived.
package snapshot

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"DDoSDefender/internal/model"
)

const summaryFile = "summary.json"

// SummaryData holds the metadata for a snapshot.
type SummaryData struct {
	Name         string `json:"name"`
	TotalRecords int    `json:"total_records"`
	Windows      []int  `json:"windows"`
	Timestamp    string `json:"timestamp"`
}

// Writer handles writing snapshot data to disk.
type Writer struct{}

// NewWriter creates a new snapshot writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write stores records under rootPath/timestamp/name, one gob file per
// window size plus a summary. It returns the snapshot directory. Nothing is
// written for an empty record set.
func (w *Writer) Write(records []model.FeatureRecord, rootPath, name, timestamp string) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	dir := filepath.Join(rootPath, timestamp, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	byWindow := make(map[int][]model.FeatureRecord)
	for _, r := range records {
		byWindow[r.WindowSizeMinutes] = append(byWindow[r.WindowSizeMinutes], r)
	}
	windows := make([]int, 0, len(byWindow))
	for win := range byWindow {
		windows = append(windows, win)
	}
	sort.Ints(windows)

	for _, win := range windows {
		if err := writeGob(filepath.Join(dir, fmt.Sprintf("window_%d.dat", win)), byWindow[win]); err != nil {
			return "", err
		}
	}

	summary := SummaryData{
		Name:         name,
		TotalRecords: len(records),
		Windows:      windows,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	f, err := os.Create(filepath.Join(dir, summaryFile))
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return "", fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return dir, nil
}

func writeGob(path string, records []model.FeatureRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(records); err != nil {
		return fmt.Errorf("failed to encode records to gob for file '%s': %w", path, err)
	}
	return nil
}

// Read loads a snapshot directory written by Write. Records come back
// grouped by window size in ascending order, each group in written order.
func Read(dir string) (SummaryData, []model.FeatureRecord, error) {
	var summary SummaryData
	data, err := os.ReadFile(filepath.Join(dir, summaryFile))
	if err != nil {
		return summary, nil, fmt.Errorf("failed to read summary: %w", err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, nil, fmt.Errorf("failed to decode summary: %w", err)
	}

	var records []model.FeatureRecord
	for _, win := range summary.Windows {
		path := filepath.Join(dir, fmt.Sprintf("window_%d.dat", win))
		f, err := os.Open(path)
		if err != nil {
			return summary, nil, fmt.Errorf("snapshot is missing window %d: %w", win, err)
		}
		var part []model.FeatureRecord
		err = gob.NewDecoder(f).Decode(&part)
		f.Close()
		if err != nil {
			return summary, nil, fmt.Errorf("failed to decode '%s': %w", path, err)
		}
		records = append(records, part...)
	}
	if len(records) != summary.TotalRecords {
		return summary, records, fmt.Errorf("snapshot holds %d records, summary says %d", len(records), summary.TotalRecords)
	}
	return summary, records, nil
}

// Timestamp formats t the way snapshot directories are named.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02_15-04-05")
}
