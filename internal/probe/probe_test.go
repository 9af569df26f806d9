package probe

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/model"
)

var ts = time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

func TestRecordsRoundTrip(t *testing.T) {
	in := []model.RawTrafficRecord{
		{Timestamp: ts, SourceAddress: "203.0.113.5", DestinationAddress: "10.0.0.1", Protocol: "tcp", Size: 60, Flags: []string{"SYN"}, SourcePort: 51515, DestinationPort: 443},
		{Timestamp: ts.Add(time.Millisecond), SourceAddress: "198.51.100.2", DestinationAddress: "10.0.0.1", Protocol: "icmp", Size: 84},
	}
	data, err := MarshalRecords(in)
	if err != nil {
		t.Fatalf("MarshalRecords failed: %v", err)
	}
	out, err := UnmarshalRecords(data)
	if err != nil {
		t.Fatalf("UnmarshalRecords failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(out))
	}
	if !out[0].Timestamp.Equal(ts) || !out[0].IsPureSYN() || out[0].SourcePort != 51515 || out[0].Size != 60 {
		t.Errorf("First record mangled: %+v", out[0])
	}
	if out[1].Flags != nil || out[1].DestinationPort != 0 || out[1].Protocol != "icmp" {
		t.Errorf("Second record mangled: %+v", out[1])
	}
}

func TestFeatureRoundTrip(t *testing.T) {
	rec := model.FeatureRecord{
		ID: "f-1", Timestamp: ts, WindowSizeMinutes: 5,
		Metrics:      model.Metrics{PacketCount: 150, ByteCount: 9000, UniqueSourceCount: 3, TCPRatio: 1, SYNRatio: 0.8667},
		IsAnomaly:    true,
		AnomalyScore: 0.9,
		AnomalyType:  model.AnomalySYNFlood,
	}
	vec := model.FeatureVector{0.8667, 1, 0, 0, 1.5, 0, 0.15, 0.03}

	data, err := MarshalFeature(rec, vec)
	if err != nil {
		t.Fatalf("MarshalFeature failed: %v", err)
	}
	gotRec, gotVec, err := UnmarshalFeature(data)
	if err != nil {
		t.Fatalf("UnmarshalFeature failed: %v", err)
	}
	if gotVec != vec {
		t.Errorf("Vector: got %v, want %v", gotVec, vec)
	}
	if !gotRec.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", gotRec.Timestamp, rec.Timestamp)
	}
	gotRec.Timestamp = rec.Timestamp
	if gotRec != rec {
		t.Errorf("Record: got %+v, want %+v", gotRec, rec)
	}
}

func TestRejectsForeignMessages(t *testing.T) {
	if _, err := UnmarshalRecords([]byte{0xff, 0x01}); err == nil {
		t.Error("Expected an error for bytes that are not protobuf")
	}
	msg, _ := structpb.NewStruct(map[string]interface{}{"version": 99})
	data, _ := proto.Marshal(msg)
	if _, err := UnmarshalRecords(data); err == nil {
		t.Error("Expected an error for an unknown wire version")
	}
	msg, _ = structpb.NewStruct(map[string]interface{}{"version": WireVersion, "vector_version": 2})
	data, _ = proto.Marshal(msg)
	if _, _, err := UnmarshalFeature(data); err == nil {
		t.Error("Expected an error for an unknown vector version")
	}
}

func TestCallbacks(t *testing.T) {
	log := logging.Discard()

	var batches int
	cb := recordsCallback(func(records []model.RawTrafficRecord) { batches += len(records) }, log)
	data, err := MarshalRecords([]model.RawTrafficRecord{{Timestamp: ts, Protocol: "udp"}})
	if err != nil {
		t.Fatal(err)
	}
	cb(&nats.Msg{Subject: "ddos.traffic.raw", Data: data})
	cb(&nats.Msg{Subject: "ddos.traffic.raw", Data: []byte("garbage")})
	if batches != 1 {
		t.Errorf("Expected one decoded record, got %d", batches)
	}

	var features int
	fcb := featuresCallback(func(model.FeatureRecord, model.FeatureVector) { features++ }, log)
	data, err = MarshalFeature(model.FeatureRecord{ID: "x", Timestamp: ts}, model.FeatureVector{})
	if err != nil {
		t.Fatal(err)
	}
	fcb(&nats.Msg{Subject: "ddos.features", Data: data})
	fcb(&nats.Msg{Subject: "ddos.features", Data: data[:3]})
	if features != 1 {
		t.Errorf("Expected one decoded feature, got %d", features)
	}
}
