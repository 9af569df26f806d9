package pcap

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"DDoSDefender/internal/engine/protocol"
	"DDoSDefender/internal/generator"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/model"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func capture(t *testing.T, records []model.RawTrafficRecord) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, r := range records {
		if err := w.WriteRecord(r); err != nil {
			t.Fatalf("WriteRecord failed: %v", err)
		}
	}
	return &buf
}

func TestReplayRoundTrip(t *testing.T) {
	in, err := generator.New(5).Flood(generator.ScenarioSYNFlood, start, time.Second, generator.Low)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(capture(t, in), logging.Discard())
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	out := make(chan model.RawTrafficRecord)
	errc := make(chan error, 1)
	go func() { errc <- r.ReadRecords(out) }()

	var got []model.RawTrafficRecord
	for rec := range out {
		got = append(got, rec)
	}
	if err := <-errc; err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("Expected %d records, got %d", len(in), len(got))
	}
	for i := range in {
		if got[i].SourceAddress != in[i].SourceAddress || got[i].DestinationPort != in[i].DestinationPort {
			t.Fatalf("Record %d mismatch: got %+v want %+v", i, got[i], in[i])
		}
		if !got[i].IsPureSYN() || got[i].Size != 60 {
			t.Fatalf("Record %d lost its shape: %+v", i, got[i])
		}
		if d := got[i].Timestamp.Sub(in[i].Timestamp); d < -time.Microsecond || d > time.Microsecond {
			t.Fatalf("Record %d timestamp drifted by %v", i, d)
		}
	}
}

func TestReadBatchesSkipsNonIP(t *testing.T) {
	records := []model.RawTrafficRecord{
		{Timestamp: start, SourceAddress: "10.0.0.1", DestinationAddress: "10.0.0.2", Protocol: "udp", Size: 100, SourcePort: 1, DestinationPort: 53},
		{Timestamp: start.Add(time.Second), SourceAddress: "10.0.0.1", DestinationAddress: "10.0.0.3", Protocol: "icmp", Size: 84},
		{Timestamp: start.Add(2 * time.Second), SourceAddress: "10.0.0.4", DestinationAddress: "10.0.0.2", Protocol: "tcp", Size: 60, Flags: []string{"SYN"}},
	}
	buf := capture(t, records[:2])
	w := pcapgo.NewWriter(buf)
	junk := make([]byte, 60)
	junk[12], junk[13] = 0x88, 0xcc // LLDP
	if err := w.WritePacket(gopacket.CaptureInfo{Timestamp: start, CaptureLength: 60, Length: 60}, junk); err != nil {
		t.Fatal(err)
	}
	frame, err := protocol.Encode(records[2])
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WritePacket(gopacket.CaptureInfo{Timestamp: records[2].Timestamp, CaptureLength: len(frame), Length: len(frame)}, frame); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(buf, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int
	total, err := r.ReadBatches(2, func(batch []model.RawTrafficRecord) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	if err != nil {
		t.Fatalf("ReadBatches failed: %v", err)
	}
	if total != 3 || len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("Expected batches [2 1] totalling 3, got %v totalling %d", sizes, total)
	}
	if r.Skipped() != 1 {
		t.Errorf("Expected 1 skipped frame, got %d", r.Skipped())
	}
}

func TestReadPcapNG(t *testing.T) {
	rec := model.RawTrafficRecord{Timestamp: start, SourceAddress: "192.0.2.1", DestinationAddress: "10.0.0.2", Protocol: "udp", Size: 128, SourcePort: 999, DestinationPort: 53}
	frame, err := protocol.Encode(rec)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w, err := pcapgo.NewNgWriter(&buf, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WritePacket(gopacket.CaptureInfo{Timestamp: start, CaptureLength: len(frame), Length: len(frame), InterfaceIndex: 0}, frame); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf, logging.Discard())
	if err != nil {
		t.Fatalf("NewReader failed on pcapng: %v", err)
	}
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got.SourceAddress != rec.SourceAddress || got.Size != 128 || !got.Timestamp.Equal(start) {
		t.Errorf("Unexpected record %+v", got)
	}
}

func TestNewReaderRejectsGarbage(t *testing.T) {
	if _, err := NewReader(bytes.NewReader([]byte("definitely not a capture")), logging.Discard()); err == nil {
		t.Error("Expected an error for a non-capture stream")
	}
}
