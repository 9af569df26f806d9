package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/features"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/store"
)

// Runner computes and stores one window.
type Runner interface {
	Run(ctx context.Context, windowSizeMinutes int, now time.Time) (features.Result, error)
}

// AlertSink receives anomalous records.
type AlertSink interface {
	Notify(rec model.FeatureRecord)
}

// FeaturePublisher forwards computed records to downstream consumers.
type FeaturePublisher interface {
	PublishFeature(rec model.FeatureRecord, vector model.FeatureVector) error
}

// Scorer rates a feature vector.
type Scorer interface {
	Score(ctx context.Context, vec model.FeatureVector) (float64, error)
}

// StatusSource reports storage health.
type StatusSource interface {
	Status() store.Status
}

// Gauges receives the manager's own metrics.
type Gauges interface {
	SetStoreLive(name string, live bool)
	IncScoring(ok bool)
}

// Option wires an optional collaborator into the Manager.
type Option func(*Manager)

// WithAlerts forwards anomalous records to a.
func WithAlerts(a AlertSink) Option { return func(m *Manager) { m.alerts = a } }

// WithPublisher publishes every computed record and its vector through p.
func WithPublisher(p FeaturePublisher) Option { return func(m *Manager) { m.publisher = p } }

// WithScorer sends every computed vector to s.
func WithScorer(s Scorer) Option { return func(m *Manager) { m.scorer = s } }

// WithStoreStatus reports store liveness from s after each run.
func WithStoreStatus(s StatusSource) Option { return func(m *Manager) { m.stores = s } }

// WithGauges exports the manager's metrics to g.
func WithGauges(g Gauges) Option { return func(m *Manager) { m.gauges = g } }

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option { return func(m *Manager) { m.log = log } }

// Manager runs the pipeline once per schedule interval for every configured
// window size and fans each computed record out to its collaborators.
type Manager struct {
	runner   Runner
	windows  []int
	interval time.Duration

	alerts    AlertSink
	publisher FeaturePublisher
	scorer    Scorer
	stores    StatusSource
	gauges    Gauges
	log       logrus.FieldLogger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates a new Manager.
func NewManager(cfg config.PipelineConfig, runner Runner, opts ...Option) (*Manager, error) {
	interval, err := time.ParseDuration(cfg.ScheduleInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule interval: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("schedule interval must be a positive duration")
	}
	if len(cfg.WindowSizes) == 0 {
		return nil, fmt.Errorf("no window sizes configured")
	}
	m := &Manager{
		runner:   runner,
		windows:  append([]int(nil), cfg.WindowSizes...),
		interval: interval,
		log:      logrus.StandardLogger(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "manager")
	return m, nil
}

// Start launches one scheduler goroutine per window size.
func (m *Manager) Start(ctx context.Context) {
	for _, w := range m.windows {
		m.wg.Add(1)
		go m.runScheduler(ctx, w)
		m.log.WithFields(logrus.Fields{"window_minutes": w, "interval": m.interval}).Info("Started window scheduler")
	}
}

// Stop signals every scheduler to exit and waits for in-flight runs.
func (m *Manager) Stop() {
	m.log.Info("Manager stopping...")
	close(m.done)
	m.wg.Wait()
	m.log.Info("Manager stopped.")
}

func (m *Manager) runScheduler(ctx context.Context, windowSizeMinutes int) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.RunWindow(ctx, windowSizeMinutes, now)
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}

// RunWindow runs the pipeline for one window and dispatches its record. It
// returns the pipeline's result and error unchanged.
func (m *Manager) RunWindow(ctx context.Context, windowSizeMinutes int, now time.Time) (features.Result, error) {
	res, err := m.runner.Run(ctx, windowSizeMinutes, now)
	defer m.refreshStoreGauges()

	log := m.log.WithField("window_minutes", windowSizeMinutes)
	if err != nil {
		if res.Record == nil {
			log.WithError(err).Error("Window run failed")
			return res, err
		}
		// The record was computed but not persisted. It is still dispatched
		// so that alerts are not lost to a storage outage.
		log.WithError(err).Warn("Dispatching a record that was not persisted")
	}
	if res.Record == nil {
		return res, err
	}

	rec := *res.Record
	if rec.IsAnomaly && m.alerts != nil {
		m.alerts.Notify(rec)
	}

	vec := features.Extract([]model.FeatureRecord{rec})
	if m.publisher != nil {
		if perr := m.publisher.PublishFeature(rec, vec); perr != nil {
			log.WithError(perr).Error("Failed to publish feature record")
		}
	}
	if m.scorer != nil {
		score, serr := m.scorer.Score(ctx, vec)
		if m.gauges != nil {
			m.gauges.IncScoring(serr == nil)
		}
		if serr != nil {
			log.WithError(serr).Warn("Scoring service call failed")
		} else {
			log.WithFields(logrus.Fields{"record_id": rec.ID, "score": score}).Info("Window scored")
		}
	}
	return res, err
}

func (m *Manager) refreshStoreGauges() {
	if m.stores == nil || m.gauges == nil {
		return
	}
	for _, b := range m.stores.Status().Backends {
		m.gauges.SetStoreLive(b.Name, b.Live)
	}
}
