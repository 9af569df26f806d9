package alerter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
)

// maxPending bounds the records held between two checks.
const maxPending = 1000

// Counter records notification outcomes.
type Counter interface {
	IncAlert(ok bool)
}

// Alerter collects anomalous feature records and, once per check interval,
// sends a single consolidated summary of them through a Notifier.
type Alerter struct {
	notifier      model.Notifier
	counter       Counter
	log           logrus.FieldLogger
	checkInterval time.Duration

	mu      sync.Mutex
	pending []model.FeatureRecord
	dropped int

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAlerter creates a new Alerter instance. counter may be nil.
func NewAlerter(cfg config.AlerterConfig, notifier model.Notifier, counter Counter, log logrus.FieldLogger) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("check_interval for alerter must be positive, got %s", interval)
	}
	if notifier == nil {
		return nil, fmt.Errorf("alerter needs a notifier")
	}
	return &Alerter{
		notifier:      notifier,
		counter:       counter,
		log:           log.WithField("component", "alerter"),
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}, nil
}

// Notify queues rec for the next summary. Records that are not anomalous
// are ignored.
func (a *Alerter) Notify(rec model.FeatureRecord) {
	if !rec.IsAnomaly {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) >= maxPending {
		a.dropped++
		return
	}
	a.pending = append(a.pending, rec)
}

// Pending returns the number of records waiting for the next check.
func (a *Alerter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Start begins the periodic flush loop in its own goroutine.
func (a *Alerter) Start() {
	a.log.WithField("interval", a.checkInterval).Info("Alerter started")
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Flush()
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop ends the flush loop and sends whatever is still queued.
func (a *Alerter) Stop() {
	a.log.Info("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.Flush()
}

// Flush sends one summary for every queued record and reports how many
// records it covered. Nothing is sent when the queue is empty.
func (a *Alerter) Flush() int {
	a.mu.Lock()
	records := a.pending
	dropped := a.dropped
	a.pending = nil
	a.dropped = 0
	a.mu.Unlock()

	if len(records) == 0 {
		return 0
	}
	if dropped > 0 {
		a.log.WithField("dropped", dropped).Warn("Alert queue overflowed since the last check")
	}

	subject, body := Summary(uuid.NewString(), records)
	err := a.notifier.Send(subject, body)
	if a.counter != nil {
		a.counter.IncAlert(err == nil)
	}
	if err != nil {
		a.log.WithError(err).Error("Failed to send consolidated alert notification")
	} else {
		a.log.WithField("windows", len(records)).Info("Consolidated alert notification sent")
	}
	return len(records)
}

// Summary renders the subject and HTML body of a consolidated alert.
func Summary(alertID string, records []model.FeatureRecord) (string, string) {
	sorted := make([]model.FeatureRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var md strings.Builder
	md.WriteString("# DDoSDefender Alert Summary\n\n")
	fmt.Fprintf(&md, "Alert `%s`: %d anomalous window(s) since the last check.\n\n", alertID, len(sorted))
	md.WriteString("| Time (UTC) | Window | Type | Score | Packets | Bytes | SYN ratio | Sources |\n")
	md.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, r := range sorted {
		fmt.Fprintf(&md, "| %s | %dm | %s | %.2f | %d | %d | %.3f | %d |\n",
			r.Timestamp.UTC().Format(time.RFC3339),
			r.WindowSizeMinutes,
			r.AnomalyType,
			r.AnomalyScore,
			r.Metrics.PacketCount,
			r.Metrics.ByteCount,
			r.Metrics.SYNRatio,
			r.Metrics.UniqueSourceCount,
		)
	}

	body := markdown.ToHTML([]byte(md.String()), nil, nil)
	subject := fmt.Sprintf("DDoSDefender Alert Summary (%d anomalous windows)", len(sorted))
	return subject, string(body)
}
