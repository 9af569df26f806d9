package features

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/model"
)

// DefaultRecentLimit is how many stored records are read back after an append.
const DefaultRecentLimit = 10

// Outcomes reported to an Observer for every Run.
const (
	OutcomeStored       = "stored"
	OutcomeEmpty        = "empty"
	OutcomeInvalid      = "invalid"
	OutcomeSourceError  = "source_error"
	OutcomePersistError = "persist_error"
)

// Observer receives pipeline events, typically to export metrics.
type Observer interface {
	ObserveRun(windowSizeMinutes int, outcome string, elapsed time.Duration)
	ObserveAnomaly(windowSizeMinutes int, anomalyType string, score float64)
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Record is the freshly computed record, nil when the window was empty.
	Record *model.FeatureRecord
	// Recent holds the newest stored records for the window size, newest first.
	Recent []model.FeatureRecord
	// Persisted reports whether Record reached the feature store.
	Persisted bool
}

// Pipeline fetches, aggregates and persists one window per Run call. It keeps
// no state between runs, so concurrent runs only contend inside the store.
type Pipeline struct {
	aggregator  *Aggregator
	source      model.RecordSource
	store       model.FeatureStore
	recentLimit int
	observer    Observer
	log         logrus.FieldLogger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRecentLimit sets how many records Run reads back.
func WithRecentLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.recentLimit = n
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the logger. The default is logrus' standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline creates a pipeline reading raw records from source and writing
// feature records to store.
func NewPipeline(aggregator *Aggregator, source model.RecordSource, store model.FeatureStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		aggregator:  aggregator,
		source:      source,
		store:       store,
		recentLimit: DefaultRecentLimit,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run aggregates the window of windowSizeMinutes ending at now (zero means
// the current time) and stores the result.
//
// Errors come in three kinds: ErrInvalidWindow for bad input, *SourceError
// when raw records cannot be fetched and *PersistenceError when the store
// rejects the append or the read-back. In the last case the returned Result
// still carries the computed record.
func (p *Pipeline) Run(ctx context.Context, windowSizeMinutes int, now time.Time) (Result, error) {
	started := time.Now()
	if now.IsZero() {
		now = started
	}
	log := p.log.WithField("window_minutes", windowSizeMinutes)

	window, err := NewWindow(windowSizeMinutes, now)
	if err != nil {
		p.observeRun(windowSizeMinutes, OutcomeInvalid, started)
		return Result{}, err
	}

	records, err := p.source.Records(ctx, window.Start, window.End)
	if err != nil {
		p.observeRun(windowSizeMinutes, OutcomeSourceError, started)
		log.WithError(err).Error("Failed to fetch raw records")
		return Result{}, &SourceError{Window: window, Err: err}
	}

	record, err := p.aggregator.Aggregate(windowSizeMinutes, now, records)
	if err != nil {
		p.observeRun(windowSizeMinutes, OutcomeInvalid, started)
		return Result{}, err
	}
	if record == nil {
		p.observeRun(windowSizeMinutes, OutcomeEmpty, started)
		log.Debugf("No traffic in window %s, nothing stored", window)
		return Result{}, nil
	}

	if record.IsAnomaly {
		if p.observer != nil {
			p.observer.ObserveAnomaly(windowSizeMinutes, record.AnomalyType, record.AnomalyScore)
		}
		log.WithFields(logrus.Fields{
			"anomaly_type":  record.AnomalyType,
			"anomaly_score": record.AnomalyScore,
			"packets":       record.Metrics.PacketCount,
		}).Warn("Anomalous traffic window")
	}

	res := Result{Record: record}
	if err := p.store.Append(ctx, *record); err != nil {
		p.observeRun(windowSizeMinutes, OutcomePersistError, started)
		log.WithError(err).Error("Failed to persist feature record")
		return res, &PersistenceError{Op: OpAppend, Record: *record, Err: err}
	}
	res.Persisted = true

	recent, err := p.store.QueryRecent(ctx, windowSizeMinutes, p.recentLimit)
	if err != nil {
		p.observeRun(windowSizeMinutes, OutcomePersistError, started)
		log.WithError(err).Error("Failed to read back recent feature records")
		return res, &PersistenceError{Op: OpQueryRecent, Record: *record, Err: err}
	}
	res.Recent = recent

	p.observeRun(windowSizeMinutes, OutcomeStored, started)
	log.WithField("packets", record.Metrics.PacketCount).Debug("Feature record stored")
	return res, nil
}

func (p *Pipeline) observeRun(windowSizeMinutes int, outcome string, started time.Time) {
	if p.observer != nil {
		p.observer.ObserveRun(windowSizeMinutes, outcome, time.Since(started))
	}
}

// IsPersistenceError reports whether err came from the feature store.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsSourceError reports whether err came from the raw record source.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
