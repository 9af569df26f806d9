package streamaggregator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/alerter"
	"DDoSDefender/internal/config"
	"DDoSDefender/internal/engine/manager"
	"DDoSDefender/internal/features"
	"DDoSDefender/internal/ingest"
	"DDoSDefender/internal/metrics"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/probe"
	"DDoSDefender/internal/store"
)

// RecordFeed delivers raw record batches, typically a *probe.Subscriber.
type RecordFeed interface {
	SubscribeRecords(handler probe.RecordsHandler) error
}

// Deps are the collaborators of a StreamAggregator. Stores and Log are
// required; the rest are optional.
type Deps struct {
	Stores    *store.Chain
	Metrics   *metrics.Metrics
	Feed      RecordFeed
	Publisher manager.FeaturePublisher
	Scorer    manager.Scorer
	Notifier  model.Notifier
	Log       *logrus.Logger
}

// StreamAggregator consumes raw records from a feed, stores them in batches
// and runs the scheduled feature pipeline over the stored traffic.
type StreamAggregator struct {
	aggregator *features.Aggregator
	batcher    *ingest.Batcher
	manager    *manager.Manager
	alerter    *alerter.Alerter
	feed       RecordFeed
	log        logrus.FieldLogger
}

// Thresholds converts the anomaly section of the configuration.
func Thresholds(cfg config.AnomalyConfig) features.Thresholds {
	return features.Thresholds{
		SYNFloodRatio:      cfg.SYNFloodRatio,
		SYNFloodMinPackets: cfg.SYNFloodMinPackets,
		VolumePackets:      cfg.VolumePackets,
		VolumeBytes:        cfg.VolumeBytes,
		TCPRatio:           cfg.TCPRatio,
		UDPRatio:           cfg.UDPRatio,
		ICMPRatio:          cfg.ICMPRatio,
	}
}

// NewStreamAggregator wires the engine from configuration.
func NewStreamAggregator(cfg *config.Config, deps Deps) (*StreamAggregator, error) {
	if deps.Stores == nil || deps.Log == nil {
		return nil, fmt.Errorf("stream aggregator needs a store chain and a logger")
	}
	log := deps.Log.WithField("component", "engine")

	agg := features.NewAggregator(Thresholds(cfg.Anomaly))
	pipelineOpts := []features.Option{
		features.WithRecentLimit(cfg.Pipeline.RecentLimit),
		features.WithLogger(deps.Log),
	}
	var ingestCounter ingest.Counter
	var alertCounter alerter.Counter
	if deps.Metrics != nil {
		pipelineOpts = append(pipelineOpts, features.WithObserver(deps.Metrics))
		ingestCounter = deps.Metrics
		alertCounter = deps.Metrics
	}
	pipeline := features.NewPipeline(agg, deps.Stores, deps.Stores, pipelineOpts...)

	sa := &StreamAggregator{aggregator: agg, feed: deps.Feed, log: log}

	if deps.Feed != nil {
		b, err := ingest.NewBatcher(cfg.Ingest, deps.Stores, ingestCounter, deps.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to create ingest batcher: %w", err)
		}
		sa.batcher = b
	}

	if cfg.Alerter.Enabled {
		if deps.Notifier != nil {
			a, err := alerter.NewAlerter(cfg.Alerter, deps.Notifier, alertCounter, deps.Log)
			if err != nil {
				return nil, fmt.Errorf("failed to create alerter: %w", err)
			}
			sa.alerter = a
			log.Info("Alerter enabled and initialized.")
		} else {
			log.Warn("Alerter is enabled in config, but no notifier is configured. Alerter will not run.")
		}
	}

	opts := []manager.Option{manager.WithLogger(deps.Log), manager.WithStoreStatus(deps.Stores)}
	if sa.alerter != nil {
		opts = append(opts, manager.WithAlerts(sa.alerter))
	}
	if deps.Publisher != nil {
		opts = append(opts, manager.WithPublisher(deps.Publisher))
	}
	if deps.Scorer != nil {
		opts = append(opts, manager.WithScorer(deps.Scorer))
	}
	if deps.Metrics != nil {
		opts = append(opts, manager.WithGauges(deps.Metrics))
	}
	mgr, err := manager.NewManager(cfg.Pipeline, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	sa.manager = mgr
	return sa, nil
}

// Start begins ingesting from the feed and scheduling windows.
func (sa *StreamAggregator) Start(ctx context.Context) error {
	if sa.batcher != nil {
		sa.batcher.Start()
		if err := sa.feed.SubscribeRecords(sa.handleRecords); err != nil {
			sa.batcher.Stop()
			return fmt.Errorf("failed to subscribe to raw records: %w", err)
		}
	}
	if sa.alerter != nil {
		sa.alerter.Start()
	}
	sa.manager.Start(ctx)
	sa.log.Info("StreamAggregator started")
	return nil
}

// Stop gracefully shuts down the aggregator. The feed must be closed first
// so that no records arrive after the batcher has flushed.
func (sa *StreamAggregator) Stop() {
	sa.log.Info("StreamAggregator stopping...")
	if sa.batcher != nil {
		sa.batcher.Stop()
	}
	sa.manager.Stop()
	if sa.alerter != nil {
		sa.alerter.Stop()
	}
	sa.log.Info("StreamAggregator stopped.")
}

// Reload applies the parts of cfg that can change at runtime, currently the
// anomaly thresholds.
func (sa *StreamAggregator) Reload(cfg *config.Config) {
	sa.aggregator.SetThresholds(Thresholds(cfg.Anomaly))
	sa.log.WithField("thresholds", fmt.Sprintf("%+v", cfg.Anomaly)).Info("Anomaly thresholds updated")
}

// Manager exposes the scheduler, mainly for one-off runs.
func (sa *StreamAggregator) Manager() *manager.Manager {
	return sa.manager
}

func (sa *StreamAggregator) handleRecords(records []model.RawTrafficRecord) {
	sa.batcher.Enqueue(records...)
}
