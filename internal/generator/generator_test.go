package generator

import (
	"testing"
	"time"

	"DDoSDefender/internal/features"
	"DDoSDefender/internal/model"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFloodsTripTheirRule(t *testing.T) {
	cases := []struct {
		scenario string
		want     string
	}{
		{ScenarioSYNFlood, model.AnomalySYNFlood},
		{ScenarioUDPFlood, model.AnomalyVolume},
		{ScenarioICMPFlood, model.AnomalyVolume},
	}
	agg := features.NewAggregator(features.DefaultThresholds())
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			records, err := New(1).Generate(tc.scenario, start, 30*time.Second, 0, Low)
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			got, err := agg.Aggregate(1, start.Add(time.Minute), records)
			if err != nil || got == nil {
				t.Fatalf("Aggregate: %v %v", got, err)
			}
			if !got.IsAnomaly {
				t.Fatalf("Expected an anomaly, metrics %+v", got.Metrics)
			}
			if got.AnomalyType != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got.AnomalyType)
			}
		})
	}
}

func TestFloodShape(t *testing.T) {
	records, err := New(7).Flood(ScenarioSYNFlood, start, 2*time.Second, Medium)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) < 1000 {
		t.Fatalf("Expected at least 1000 packets for a medium flood, got %d", len(records))
	}
	srcs := map[string]bool{}
	for _, r := range records {
		if !r.IsPureSYN() || r.Size != 60 {
			t.Fatalf("Unexpected SYN flood record %+v", r)
		}
		if r.Timestamp.Before(start) || !r.Timestamp.Before(start.Add(2*time.Second)) {
			t.Fatalf("Timestamp %v outside the requested span", r.Timestamp)
		}
		srcs[r.SourceAddress] = true
	}
	if len(srcs) < 10 || len(srcs) > 30 {
		t.Errorf("Expected 10-30 attackers, got %d", len(srcs))
	}
}

func TestNormalTrafficHasNoFloodSignature(t *testing.T) {
	records := New(3).Normal(start, 30*time.Second, 10)
	if len(records) == 0 {
		t.Fatal("Expected traffic")
	}
	m := features.ComputeMetrics(records)
	v := features.DefaultThresholds().Classify(m)
	if v.SYNFlood || v.Distribution {
		t.Errorf("Benign mix looks like a flood: %+v from %+v", v, m)
	}
	if m.UDPRatio == 0 || m.TCPRatio == 0 {
		t.Errorf("Expected a TCP/UDP mix, got %+v", m)
	}
}

func TestDeterministic(t *testing.T) {
	a := New(42).Normal(start, time.Second, 50)
	b := New(42).Normal(start, time.Second, 50)
	if len(a) != len(b) {
		t.Fatalf("Lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].SourceAddress != b[i].SourceAddress || a[i].Size != b[i].Size {
			t.Fatalf("Record %d differs", i)
		}
	}
}

func TestBadInput(t *testing.T) {
	if _, err := New(1).Generate("smurf", start, time.Second, 0, Low); err == nil {
		t.Error("Expected an error for an unknown scenario")
	}
	if _, err := New(1).Flood(ScenarioUDPFlood, start, time.Second, "extreme"); err == nil {
		t.Error("Expected an error for an unknown intensity")
	}
	if _, err := ParseIntensity("HIGH"); err != nil {
		t.Errorf("ParseIntensity should ignore case: %v", err)
	}
}
