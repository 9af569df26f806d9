// Package features turns raw traffic records into per-window feature records
// and projects stored feature records into the fixed-order vectors consumed
// by the scoring service.
//
// The flow is linear: RecordSource -> Aggregator -> FeatureStore -> Extract.
// Pipeline wires the first three together for a single window.
package features
