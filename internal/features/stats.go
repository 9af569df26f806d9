package features

import "DDoSDefender/internal/model"

// Stats summarizes a series of feature records.
type Stats struct {
	TotalWindows       int            `json:"totalWindows"`
	AnomalousWindows   int            `json:"anomalousWindows"`
	AnomalyTypes       map[string]int `json:"anomalyTypes"`
	TotalPackets       int64          `json:"totalPackets"`
	TotalBytes         int64          `json:"totalBytes"`
	AnomalousPackets   int64          `json:"anomalousPackets"`
	AnomalousBytes     int64          `json:"anomalousBytes"`
	AnomalyWindowRatio float64        `json:"anomalyWindowRatio"`
	AnomalyPacketRatio float64        `json:"anomalyPacketRatio"`
	AnomalyByteRatio   float64        `json:"anomalyByteRatio"`
	MaxScore           float64        `json:"maxScore"`
}

// Summarize counts windows, packets and bytes overall and for the windows
// flagged as anomalous.
func Summarize(records []model.FeatureRecord) Stats {
	s := Stats{AnomalyTypes: make(map[string]int)}
	for i := range records {
		r := &records[i]
		s.TotalWindows++
		s.TotalPackets += int64(r.Metrics.PacketCount)
		s.TotalBytes += r.Metrics.ByteCount
		if !r.IsAnomaly {
			continue
		}
		s.AnomalousWindows++
		s.AnomalousPackets += int64(r.Metrics.PacketCount)
		s.AnomalousBytes += r.Metrics.ByteCount
		s.AnomalyTypes[r.AnomalyType]++
		if r.AnomalyScore > s.MaxScore {
			s.MaxScore = r.AnomalyScore
		}
	}
	s.AnomalyWindowRatio = ratio64(int64(s.AnomalousWindows), int64(s.TotalWindows))
	s.AnomalyPacketRatio = ratio64(s.AnomalousPackets, s.TotalPackets)
	s.AnomalyByteRatio = ratio64(s.AnomalousBytes, s.TotalBytes)
	return s
}

func ratio64(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
