package features

import "DDoSDefender/internal/model"

// Scores assigned by the first rule that fires, in priority order.
const (
	ScoreSYNFlood     = 0.9
	ScoreVolume       = 0.8
	ScoreDistribution = 0.7
)

// Thresholds parameterize the anomaly heuristic.
type Thresholds struct {
	SYNFloodRatio      float64
	SYNFloodMinPackets int
	VolumePackets      int
	VolumeBytes        int64
	TCPRatio           float64
	UDPRatio           float64
	ICMPRatio          float64
}

// DefaultThresholds returns the stock rule set. ICMP has a lower bar than
// TCP and UDP because its baseline share of traffic is small.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SYNFloodRatio:      0.8,
		SYNFloodMinPackets: 100,
		VolumePackets:      1000,
		VolumeBytes:        1_000_000,
		TCPRatio:           0.9,
		UDPRatio:           0.9,
		ICMPRatio:          0.5,
	}
}

// Verdict records which of the three rules fired for a window.
type Verdict struct {
	SYNFlood     bool
	Volume       bool
	Distribution bool
}

// Classify evaluates every rule against the metrics.
func (t Thresholds) Classify(m model.Metrics) Verdict {
	return Verdict{
		SYNFlood:     m.SYNRatio > t.SYNFloodRatio && m.PacketCount > t.SYNFloodMinPackets,
		Volume:       m.PacketCount > t.VolumePackets || m.ByteCount > t.VolumeBytes,
		Distribution: m.TCPRatio > t.TCPRatio || m.UDPRatio > t.UDPRatio || m.ICMPRatio > t.ICMPRatio,
	}
}

// IsAnomaly reports whether any rule fired.
func (v Verdict) IsAnomaly() bool {
	return v.SYNFlood || v.Volume || v.Distribution
}

// Score returns the score of the highest-priority rule that fired. Scores
// are not additive: a window that trips every rule still scores 0.9.
func (v Verdict) Score() float64 {
	switch {
	case v.SYNFlood:
		return ScoreSYNFlood
	case v.Volume:
		return ScoreVolume
	case v.Distribution:
		return ScoreDistribution
	default:
		return 0
	}
}

// Type names the rule that decided the score.
func (v Verdict) Type() string {
	switch {
	case v.SYNFlood:
		return model.AnomalySYNFlood
	case v.Volume:
		return model.AnomalyVolume
	case v.Distribution:
		return model.AnomalyDistribution
	default:
		return model.AnomalyNone
	}
}
