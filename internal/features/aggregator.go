package features

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"DDoSDefender/internal/model"
)

// Aggregator computes one FeatureRecord from the raw records of a window.
// It is safe for concurrent use; thresholds can be swapped while it runs.
type Aggregator struct {
	thresholds atomic.Pointer[Thresholds]
	newID      func() string
}

// NewAggregator creates an aggregator using the given anomaly thresholds.
func NewAggregator(thresholds Thresholds) *Aggregator {
	a := &Aggregator{newID: uuid.NewString}
	a.thresholds.Store(&thresholds)
	return a
}

// Thresholds returns the thresholds the aggregator classifies with.
func (a *Aggregator) Thresholds() Thresholds {
	return *a.thresholds.Load()
}

// SetThresholds replaces the thresholds used by later Aggregate calls.
func (a *Aggregator) SetThresholds(t Thresholds) {
	a.thresholds.Store(&t)
}

// Aggregate builds the feature record for the window of windowSizeMinutes
// ending at now. A zero now means the current time. Records outside the
// half-open window [now-Δ, now) are ignored.
//
// When no record falls inside the window, Aggregate returns nil and no error:
// an all-zero record would only pollute the stored series.
func (a *Aggregator) Aggregate(windowSizeMinutes int, now time.Time, records []model.RawTrafficRecord) (*model.FeatureRecord, error) {
	if now.IsZero() {
		now = time.Now()
	}
	window, err := NewWindow(windowSizeMinutes, now)
	if err != nil {
		return nil, err
	}

	inWindow := make([]model.RawTrafficRecord, 0, len(records))
	for _, r := range records {
		if window.Contains(r.Timestamp) {
			inWindow = append(inWindow, r)
		}
	}
	if len(inWindow) == 0 {
		return nil, nil
	}

	metrics := ComputeMetrics(inWindow)
	verdict := a.Thresholds().Classify(metrics)

	return &model.FeatureRecord{
		ID:                a.newID(),
		Timestamp:         now,
		WindowSizeMinutes: windowSizeMinutes,
		Metrics:           metrics,
		IsAnomaly:         verdict.IsAnomaly(),
		AnomalyScore:      verdict.Score(),
		AnomalyType:       verdict.Type(),
	}, nil
}

// ComputeMetrics aggregates a batch of records without any window filtering.
func ComputeMetrics(records []model.RawTrafficRecord) model.Metrics {
	var m model.Metrics
	var tcp, udp, icmp, syn int
	var srcN, dstN, portN int
	srcFreq := make(map[string]int)
	dstFreq := make(map[string]int)
	portFreq := make(map[uint16]int)

	for i := range records {
		r := &records[i]
		if r.Size > 0 {
			m.ByteCount += int64(r.Size)
		}

		switch r.NormalizedProtocol() {
		case model.ProtocolTCP:
			tcp++
			if r.IsPureSYN() {
				syn++
			}
		case model.ProtocolUDP:
			udp++
		case model.ProtocolICMP:
			icmp++
		}

		if r.SourceAddress != "" {
			srcFreq[r.SourceAddress]++
			srcN++
		}
		if r.DestinationAddress != "" {
			dstFreq[r.DestinationAddress]++
			dstN++
		}
		if r.DestinationPort != 0 {
			portFreq[r.DestinationPort]++
			portN++
		}
	}

	total := len(records)
	m.PacketCount = total
	m.UniqueSourceCount = len(srcFreq)
	m.UniqueDestinationCount = len(dstFreq)
	m.TCPRatio = ratio(tcp, total)
	m.UDPRatio = ratio(udp, total)
	m.ICMPRatio = ratio(icmp, total)
	m.SYNRatio = ratio(syn, tcp)
	m.SourceEntropy = shannon(srcFreq, srcN)
	m.DestinationEntropy = shannon(dstFreq, dstN)
	m.PortEntropy = shannon(portFreq, portN)
	return m
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
