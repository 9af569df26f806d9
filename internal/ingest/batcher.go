// Package ingest buffers raw traffic records and writes them to a record
// sink in batches.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
)

// Counter receives ingest counts, typically *metrics.Metrics.
type Counter interface {
	AddIngest(result string, n int)
}

// Ingest results reported to a Counter.
const (
	ResultReceived = "received"
	ResultDropped  = "dropped"
	ResultStored   = "stored"
	ResultFailed   = "failed"
)

type nopCounter struct{}

func (nopCounter) AddIngest(string, int) {}

// Batcher collects records from many producers and flushes them to a sink
// when a batch is full or the flush interval passes, whichever comes first.
// A single goroutine writes, so batches reach the sink in arrival order.
type Batcher struct {
	sink      model.RecordSink
	in        chan model.RawTrafficRecord
	batchSize int
	interval  time.Duration
	timeout   time.Duration
	counter   Counter
	log       logrus.FieldLogger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewBatcher creates a batcher from the ingest configuration. Call Start
// before enqueueing.
func NewBatcher(cfg config.IngestConfig, sink model.RecordSink, counter Counter, log logrus.FieldLogger) (*Batcher, error) {
	interval, err := config.ParseDuration(cfg.FlushInterval)
	if err != nil {
		return nil, err
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if counter == nil {
		counter = nopCounter{}
	}
	return &Batcher{
		sink:      sink,
		in:        make(chan model.RawTrafficRecord, bufferSize),
		batchSize: batchSize,
		interval:  interval,
		timeout:   30 * time.Second,
		counter:   counter,
		log:       log.WithField("component", "ingest"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the writer goroutine.
func (b *Batcher) Start() {
	go b.run()
	b.log.Infof("Ingest batcher started: batch size %d, flush interval %s", b.batchSize, b.interval)
}

// Enqueue offers records to the batcher without blocking. Records that do
// not fit in the buffer are dropped and counted. It returns how many were
// accepted.
func (b *Batcher) Enqueue(records ...model.RawTrafficRecord) int {
	b.counter.AddIngest(ResultReceived, len(records))
	for i, r := range records {
		select {
		case b.in <- r:
		default:
			dropped := len(records) - i
			b.counter.AddIngest(ResultDropped, dropped)
			b.log.Warnf("Ingest buffer full, dropping %d records", dropped)
			return i
		}
	}
	return len(records)
}

// Stop flushes what is buffered and waits for the writer to finish. Enqueue
// must not be called after Stop.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
	<-b.done
}

func (b *Batcher) run() {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	batch := make([]model.RawTrafficRecord, 0, b.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		b.write(batch)
		batch = make([]model.RawTrafficRecord, 0, b.batchSize)
	}

	for {
		select {
		case r := <-b.in:
			batch = append(batch, r)
			if len(batch) >= b.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-b.stop:
			for {
				select {
				case r := <-b.in:
					batch = append(batch, r)
					if len(batch) >= b.batchSize {
						flush()
					}
				default:
					flush()
					b.log.Info("Ingest batcher stopped")
					return
				}
			}
		}
	}
}

func (b *Batcher) write(batch []model.RawTrafficRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.sink.AppendRecords(ctx, batch); err != nil {
		b.counter.AddIngest(ResultFailed, len(batch))
		b.log.WithError(err).Errorf("Failed to store %d raw records", len(batch))
		return
	}
	b.counter.AddIngest(ResultStored, len(batch))
}
