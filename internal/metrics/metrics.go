// Package metrics exports pipeline, ingest and store health as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ddos"

// Metrics implements features.Observer and carries the counters of the
// surrounding components.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	anomalies    *prometheus.CounterVec
	anomalyScore *prometheus.GaugeVec
	ingest       *prometheus.CounterVec
	storeLive    *prometheus.GaugeVec
	alerts       *prometheus.CounterVec
	scoring      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Aggregation runs by window size and outcome.",
		}, []string{"window", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of one aggregation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"window"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomalous windows by window size and rule.",
		}, []string{"window", "type"}),
		anomalyScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomaly_score",
			Help:      "Score of the latest anomalous window.",
		}, []string{"window"}),
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Raw traffic records seen by the ingest path, by result.",
		}, []string{"result"}),
		storeLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_backend_live",
			Help:      "1 when the storage backend answered its last call.",
		}, []string{"store"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert notifications by result.",
		}, []string{"result"}),
		scoring: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_requests_total",
			Help:      "Calls to the scoring service by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.anomalies, m.anomalyScore, m.ingest, m.storeLive, m.alerts, m.scoring)
	return m
}

// ObserveRun records one pipeline run.
func (m *Metrics) ObserveRun(windowSizeMinutes int, outcome string, elapsed time.Duration) {
	w := strconv.Itoa(windowSizeMinutes)
	m.runs.WithLabelValues(w, outcome).Inc()
	m.runDuration.WithLabelValues(w).Observe(elapsed.Seconds())
}

// ObserveAnomaly records one anomalous window.
func (m *Metrics) ObserveAnomaly(windowSizeMinutes int, anomalyType string, score float64) {
	w := strconv.Itoa(windowSizeMinutes)
	m.anomalies.WithLabelValues(w, anomalyType).Inc()
	m.anomalyScore.WithLabelValues(w).Set(score)
}

// AddIngest counts n records with the given result.
func (m *Metrics) AddIngest(result string, n int) {
	m.ingest.WithLabelValues(result).Add(float64(n))
}

// SetStoreLive publishes the health of one storage backend.
func (m *Metrics) SetStoreLive(name string, live bool) {
	v := 0.0
	if live {
		v = 1
	}
	m.storeLive.WithLabelValues(name).Set(v)
}

// IncAlert counts one notification attempt.
func (m *Metrics) IncAlert(ok bool) {
	m.alerts.WithLabelValues(result(ok)).Inc()
}

// IncScoring counts one scoring call.
func (m *Metrics) IncScoring(ok bool) {
	m.scoring.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
