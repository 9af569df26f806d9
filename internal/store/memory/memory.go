// Package memory is a bounded in-process store. It backs tests and serves as
// the last resort of a store chain.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	sysmem "github.com/pbnjay/memory"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/store"
)

func init() {
	store.Register("memory", func(def config.StoreDef, log *logrus.Logger) (model.Store, error) {
		maxRecords := def.Memory.MaxRecords
		if maxRecords <= 0 {
			maxRecords = RecordBudget(sysmem.TotalMemory())
			log.WithField("max_records", maxRecords).Info("Sized in-memory record buffer from system memory")
		}
		return New(maxRecords, def.Memory.MaxFeatures), nil
	})
}

const (
	// approxRecordBytes is the rough heap cost of one buffered raw record.
	approxRecordBytes = 256
	minRecordBudget   = 10000
)

// RecordBudget returns how many raw records fit in one sixteenth of
// totalBytes of memory. Unknown memory (zero) yields the minimum budget.
func RecordBudget(totalBytes uint64) int {
	n := totalBytes / 16 / approxRecordBytes
	if n < minRecordBudget {
		return minRecordBudget
	}
	if n > uint64(math.MaxInt32) {
		return math.MaxInt32
	}
	return int(n)
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory store closed")

// Store keeps the newest maxRecords raw records and maxFeatures feature
// records. Older entries are evicted first.
type Store struct {
	mu          sync.RWMutex
	records     []model.RawTrafficRecord
	features    []model.FeatureRecord
	maxRecords  int
	maxFeatures int
	closed      bool
}

// New creates a store. Non-positive bounds mean unbounded.
func New(maxRecords, maxFeatures int) *Store {
	return &Store{maxRecords: maxRecords, maxFeatures: maxFeatures}
}

// Records returns the raw records with start <= Timestamp < end, oldest first.
func (s *Store) Records(_ context.Context, start, end time.Time) ([]model.RawTrafficRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []model.RawTrafficRecord
	for _, r := range s.records {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AppendRecords stores a batch of raw records.
func (s *Store) AppendRecords(_ context.Context, records []model.RawTrafficRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.records = appendBounded(s.records, records, s.maxRecords)
	return nil
}

// Append stores one feature record.
func (s *Store) Append(_ context.Context, record model.FeatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.features = appendBounded(s.features, []model.FeatureRecord{record}, s.maxFeatures)
	return nil
}

// QueryRecent returns up to limit feature records of the window size, newest
// first. Records with equal timestamps come back in reverse insertion order.
func (s *Store) QueryRecent(_ context.Context, windowSizeMinutes, limit int) ([]model.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, nil
	}

	var out []model.FeatureRecord
	for i := len(s.features) - 1; i >= 0; i-- {
		if s.features[i].WindowSizeMinutes == windowSizeMinutes {
			out = append(out, s.features[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many raw and feature records are held.
func (s *Store) Len() (records, features int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), len(s.features)
}

// Close releases the stored data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records, s.features = nil, nil
	return nil
}

func appendBounded[T any](dst, src []T, max int) []T {
	dst = append(dst, src...)
	if max > 0 && len(dst) > max {
		dst = append(dst[:0:0], dst[len(dst)-max:]...)
	}
	return dst
}
