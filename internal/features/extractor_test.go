package features

import (
	"testing"

	"DDoSDefender/internal/model"
)

func sampleRecord() model.FeatureRecord {
	return model.FeatureRecord{
		ID: "sample",
		Metrics: model.Metrics{
			SYNRatio:           0.5,
			TCPRatio:           0.4,
			UDPRatio:           0.3,
			ICMPRatio:          0.1,
			SourceEntropy:      2.0,
			DestinationEntropy: 1.5,
			PacketCount:        2500,
			UniqueSourceCount:  150,
		},
	}
}

func TestExtract_Empty(t *testing.T) {
	if got := Extract(nil); got != (model.FeatureVector{}) {
		t.Errorf("Expected the zero vector, got %v", got)
	}
	if got := Extract([]model.FeatureRecord{}); got != (model.FeatureVector{0, 0, 0, 0, 0, 0, 0, 0}) {
		t.Errorf("Expected the zero vector, got %v", got)
	}
}

func TestExtract_OrderAndNormalization(t *testing.T) {
	want := model.FeatureVector{0.5, 0.4, 0.3, 0.1, 2.0, 1.5, 2.5, 1.5}
	got := Extract([]model.FeatureRecord{sampleRecord()})
	if got != want {
		t.Errorf("Extract = %v, want %v", got, want)
	}
}

func TestExtract_UsesOnlyNewest(t *testing.T) {
	older := sampleRecord()
	older.Metrics.SYNRatio = 0.99
	older.Metrics.PacketCount = 1

	got := Extract([]model.FeatureRecord{sampleRecord(), older})
	if got[0] != 0.5 || got[6] != 2.5 {
		t.Errorf("Expected the first record to be projected, got %v", got)
	}
}

func TestExtract_NoClamping(t *testing.T) {
	r := sampleRecord()
	r.Metrics.PacketCount = 250_000
	r.Metrics.UniqueSourceCount = 4000
	got := Extract([]model.FeatureRecord{r})
	if got[6] != 250 || got[7] != 40 {
		t.Errorf("Expected unclamped 250 and 40, got %v and %v", got[6], got[7])
	}
}

func TestExtract_Idempotent(t *testing.T) {
	records := []model.FeatureRecord{sampleRecord(), sampleRecord()}
	first := Extract(records)
	second := Extract(records)
	if first != second {
		t.Errorf("Extract is not idempotent: %v then %v", first, second)
	}
	if records[0] != sampleRecord() {
		t.Errorf("Extract mutated its input: %+v", records[0])
	}
}

func TestExtractSequence(t *testing.T) {
	newest := sampleRecord()
	older := sampleRecord()
	older.Metrics.SYNRatio = 0.1

	seq := ExtractSequence([]model.FeatureRecord{newest, older}, 4)
	if len(seq) != 4 {
		t.Fatalf("Expected 4 vectors, got %d", len(seq))
	}
	if seq[0] != (model.FeatureVector{}) || seq[1] != (model.FeatureVector{}) {
		t.Errorf("Expected front padding with zero vectors, got %v", seq[:2])
	}
	if seq[2][0] != 0.1 || seq[3][0] != 0.5 {
		t.Errorf("Expected oldest-first ordering, got %v", seq[2:])
	}

	if got := ExtractSequence([]model.FeatureRecord{newest, older}, 1); len(got) != 1 || got[0][0] != 0.5 {
		t.Errorf("Expected only the newest vector, got %v", got)
	}
	if got := ExtractSequence(nil, 0); got != nil {
		t.Errorf("Expected nil for non-positive length, got %v", got)
	}
}

func TestFeatureVector_Slice(t *testing.T) {
	v := Extract([]model.FeatureRecord{sampleRecord()})
	s := v.Slice()
	s[0] = 42
	if v[0] != 0.5 {
		t.Errorf("Slice must copy, vector changed to %v", v)
	}
	if len(s) != model.FeatureVectorLength {
		t.Errorf("Expected %d elements, got %d", model.FeatureVectorLength, len(s))
	}
}
