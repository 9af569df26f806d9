package model

import (
	"context"
	"time"
)

// RecordSource supplies raw traffic records observed in [start, end).
// No ordering of the result is guaranteed.
type RecordSource interface {
	Records(ctx context.Context, start, end time.Time) ([]RawTrafficRecord, error)
}

// RecordSink persists raw traffic records in batches.
type RecordSink interface {
	AppendRecords(ctx context.Context, records []RawTrafficRecord) error
}

// FeatureStore persists feature records append-only and returns the most
// recent ones for a window size, newest first.
type FeatureStore interface {
	Append(ctx context.Context, record FeatureRecord) error
	QueryRecent(ctx context.Context, windowSizeMinutes, limit int) ([]FeatureRecord, error)
}

// Store is a backend able to serve every persistence role of the pipeline.
type Store interface {
	RecordSource
	RecordSink
	FeatureStore
	Close() error
}
