package features

import (
	"errors"
	"fmt"

	"DDoSDefender/internal/model"
)

// ErrInvalidWindow is returned for window sizes that are not a positive
// number of minutes. Such sizes are rejected, never coerced to a default.
var ErrInvalidWindow = errors.New("window size must be a positive number of minutes")

// SourceError reports that raw records for a window could not be fetched.
type SourceError struct {
	Window Window
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("failed to fetch raw records for window %s: %v", e.Window, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Persistence operations that can fail after a record was computed.
const (
	OpAppend      = "append"
	OpQueryRecent = "query_recent"
)

// PersistenceError reports a failed store operation. The computed record is
// carried along so callers can retry the write without recomputing.
type PersistenceError struct {
	Op     string
	Record model.FeatureRecord
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("feature store %s failed for record %s: %v", e.Op, e.Record.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
