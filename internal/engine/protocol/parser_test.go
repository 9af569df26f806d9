package protocol

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"DDoSDefender/internal/model"
)

var captured = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEncodeDecode(t *testing.T) {
	cases := []struct {
		name string
		in   model.RawTrafficRecord
		size int
	}{
		{
			name: "tcp syn",
			in:   model.RawTrafficRecord{SourceAddress: "203.0.113.7", DestinationAddress: "10.0.0.2", Protocol: "TCP", Size: 60, Flags: []string{"SYN"}, SourcePort: 40000, DestinationPort: 80},
			size: 60,
		},
		{
			name: "tcp push ack",
			in:   model.RawTrafficRecord{SourceAddress: "10.0.0.2", DestinationAddress: "203.0.113.7", Protocol: "tcp", Size: 1400, Flags: []string{"ACK", "PSH"}, SourcePort: 80, DestinationPort: 40000},
			size: 1400,
		},
		{
			name: "udp",
			in:   model.RawTrafficRecord{SourceAddress: "198.51.100.1", DestinationAddress: "10.0.0.53", Protocol: "udp", Size: 512, SourcePort: 5353, DestinationPort: 53},
			size: 512,
		},
		{
			name: "icmp",
			in:   model.RawTrafficRecord{SourceAddress: "198.51.100.1", DestinationAddress: "10.0.0.1", Protocol: "icmp", Size: 84},
			size: 84,
		},
		{
			name: "udp over ipv6",
			in:   model.RawTrafficRecord{SourceAddress: "2001:db8::1", DestinationAddress: "2001:db8::2", Protocol: "udp", Size: 200, SourcePort: 1000, DestinationPort: 123},
			size: 200,
		},
		{
			name: "small frame padded to ethernet minimum",
			in:   model.RawTrafficRecord{SourceAddress: "10.0.0.1", DestinationAddress: "10.0.0.2", Protocol: "udp", Size: 10, SourcePort: 1, DestinationPort: 2},
			size: 60,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := Encode(tc.in)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode(frame, captured)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if !got.Timestamp.Equal(captured) {
				t.Errorf("Timestamp: got %v, want %v", got.Timestamp, captured)
			}
			if got.SourceAddress != tc.in.SourceAddress || got.DestinationAddress != tc.in.DestinationAddress {
				t.Errorf("Addresses: got %s -> %s", got.SourceAddress, got.DestinationAddress)
			}
			if got.Protocol != tc.in.NormalizedProtocol() {
				t.Errorf("Protocol: got %q, want %q", got.Protocol, tc.in.NormalizedProtocol())
			}
			if got.Size != tc.size {
				t.Errorf("Size: got %d, want %d", got.Size, tc.size)
			}
			if got.SourcePort != tc.in.SourcePort || got.DestinationPort != tc.in.DestinationPort {
				t.Errorf("Ports: got %d -> %d", got.SourcePort, got.DestinationPort)
			}
			for _, f := range tc.in.Flags {
				if !got.HasFlag(f) {
					t.Errorf("Flag %s lost, got %v", f, got.Flags)
				}
			}
			if len(got.Flags) != len(tc.in.Flags) {
				t.Errorf("Flags: got %v, want %v", got.Flags, tc.in.Flags)
			}
		})
	}
}

func TestDecodeSYNIsPure(t *testing.T) {
	frame, err := Encode(model.RawTrafficRecord{SourceAddress: "1.2.3.4", DestinationAddress: "5.6.7.8", Protocol: "tcp", Size: 60, Flags: []string{"SYN"}})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := Decode(frame, captured)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.IsPureSYN() {
		t.Errorf("Expected a pure SYN, flags %v", rec.Flags)
	}
}

func TestDecodeNonIP(t *testing.T) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{SrcMAC: encodeSrcMAC, DstMAC: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   encodeSrcMAC,
			SourceProtAddress: []byte{10, 0, 0, 1},
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    []byte{10, 0, 0, 2},
		})
	if err != nil {
		t.Fatalf("Failed to build ARP frame: %v", err)
	}
	if _, err := Decode(buf.Bytes(), captured); !errors.Is(err, ErrNotIP) {
		t.Errorf("Expected ErrNotIP, got %v", err)
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	if _, err := Encode(model.RawTrafficRecord{SourceAddress: "nope", DestinationAddress: "10.0.0.1", Protocol: "tcp"}); err == nil {
		t.Error("Expected an error for an unparsable address")
	}
	if _, err := Encode(model.RawTrafficRecord{SourceAddress: "10.0.0.1", DestinationAddress: "10.0.0.2", Protocol: "sctp"}); err == nil {
		t.Error("Expected an error for an unsupported protocol")
	}
}
