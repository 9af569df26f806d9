package features

import (
	"testing"

	"DDoSDefender/internal/model"
)

func TestSummarize(t *testing.T) {
	records := []model.FeatureRecord{
		{Metrics: model.Metrics{PacketCount: 300, ByteCount: 3000}, IsAnomaly: true, AnomalyScore: 0.9, AnomalyType: model.AnomalySYNFlood},
		{Metrics: model.Metrics{PacketCount: 100, ByteCount: 1000}},
		{Metrics: model.Metrics{PacketCount: 600, ByteCount: 6000}, IsAnomaly: true, AnomalyScore: 0.7, AnomalyType: model.AnomalyDistribution},
		{Metrics: model.Metrics{PacketCount: 0, ByteCount: 0}},
	}
	s := Summarize(records)

	if s.TotalWindows != 4 || s.AnomalousWindows != 2 {
		t.Errorf("Unexpected window counts: %+v", s)
	}
	if s.TotalPackets != 1000 || s.AnomalousPackets != 900 || s.TotalBytes != 10000 || s.AnomalousBytes != 9000 {
		t.Errorf("Unexpected totals: %+v", s)
	}
	if s.AnomalyWindowRatio != 0.5 || s.AnomalyPacketRatio != 0.9 || s.AnomalyByteRatio != 0.9 {
		t.Errorf("Unexpected ratios: %+v", s)
	}
	if s.AnomalyTypes[model.AnomalySYNFlood] != 1 || s.AnomalyTypes[model.AnomalyDistribution] != 1 {
		t.Errorf("Unexpected anomaly types: %v", s.AnomalyTypes)
	}
	if s.MaxScore != 0.9 {
		t.Errorf("Expected max score 0.9, got %v", s.MaxScore)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalWindows != 0 || s.AnomalyWindowRatio != 0 || s.AnomalyTypes == nil {
		t.Errorf("Unexpected summary of nothing: %+v", s)
	}
}
