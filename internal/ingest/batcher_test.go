package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]model.RawTrafficRecord
	err     error
	block   chan struct{}
}

func (s *recordingSink) AppendRecords(_ context.Context, records []model.RawTrafficRecord) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]model.RawTrafficRecord(nil), records...))
	return nil
}

func (s *recordingSink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = len(b)
	}
	return out
}

type counts struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *counts) AddIngest(result string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]int{}
	}
	c.m[result] += n
}

func (c *counts) get(result string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[result]
}

func records(n int) []model.RawTrafficRecord {
	out := make([]model.RawTrafficRecord, n)
	for i := range out {
		out[i] = model.RawTrafficRecord{Timestamp: time.Unix(int64(i), 0), Protocol: "udp", Size: 100}
	}
	return out
}

func newTestBatcher(t *testing.T, cfg config.IngestConfig, sink model.RecordSink, c Counter) *Batcher {
	t.Helper()
	b, err := NewBatcher(cfg, sink, c, logging.Discard())
	if err != nil {
		t.Fatalf("NewBatcher failed: %v", err)
	}
	return b
}

func TestBatcher_FlushesBySize(t *testing.T) {
	sink := &recordingSink{}
	c := &counts{}
	b := newTestBatcher(t, config.IngestConfig{BatchSize: 10, FlushInterval: "1h", BufferSize: 100}, sink, c)
	b.Start()

	if n := b.Enqueue(records(25)...); n != 25 {
		t.Fatalf("Expected all 25 records accepted, got %d", n)
	}
	b.Stop()

	sizes := sink.sizes()
	if len(sizes) != 3 || sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 5 {
		t.Errorf("Expected batches [10 10 5], got %v", sizes)
	}
	if c.get(ResultStored) != 25 || c.get(ResultReceived) != 25 {
		t.Errorf("Unexpected counts: %v", c.m)
	}
}

func TestBatcher_FlushesByInterval(t *testing.T) {
	sink := &recordingSink{}
	b := newTestBatcher(t, config.IngestConfig{BatchSize: 1000, FlushInterval: "20ms", BufferSize: 100}, sink, nil)
	b.Start()
	defer b.Stop()

	b.Enqueue(records(3)...)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sizes := sink.sizes(); len(sizes) == 1 && sizes[0] == 3 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected one interval flush of 3 records, got %v", sink.sizes())
}

func TestBatcher_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	c := &counts{}
	b := newTestBatcher(t, config.IngestConfig{BatchSize: 1, FlushInterval: "1h", BufferSize: 5}, sink, c)
	b.Start()

	// The writer takes the first record and blocks in the sink, so at most
	// one record plus the buffer fits.
	accepted := b.Enqueue(records(1)...)
	time.Sleep(20 * time.Millisecond)
	accepted += b.Enqueue(records(20)...)
	close(sink.block)
	b.Stop()

	if accepted != 6 {
		t.Errorf("Expected 6 accepted records, got %d", accepted)
	}
	if c.get(ResultDropped) != 15 {
		t.Errorf("Expected 15 dropped records, got %d", c.get(ResultDropped))
	}
	if c.get(ResultStored) != 6 {
		t.Errorf("Expected 6 stored records, got %d", c.get(ResultStored))
	}
}

func TestBatcher_CountsSinkFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	c := &counts{}
	b := newTestBatcher(t, config.IngestConfig{BatchSize: 4, FlushInterval: "1h", BufferSize: 10}, sink, c)
	b.Start()
	b.Enqueue(records(4)...)
	b.Stop()

	if c.get(ResultFailed) != 4 || c.get(ResultStored) != 0 {
		t.Errorf("Unexpected counts: %v", c.m)
	}
}

func TestNewBatcherRejectsBadInterval(t *testing.T) {
	if _, err := NewBatcher(config.IngestConfig{FlushInterval: "soon"}, &recordingSink{}, nil, logging.Discard()); err == nil {
		t.Error("Expected an error for an invalid flush interval")
	}
}
