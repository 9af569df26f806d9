package model

import (
	"reflect"
	"testing"
)

func TestParseFlags(t *testing.T) {
	cases := map[string][]string{
		"":         nil,
		"S":        {FlagSYN},
		"SA":       {FlagSYN, FlagACK},
		"syn,ack":  {FlagSYN, FlagACK},
		"SYN|ACK":  {FlagSYN, FlagACK},
		"PA":       {FlagPSH, FlagACK},
		"SYN SYN":  {FlagSYN},
		"ECE,SYN":  {"ECE", FlagSYN},
		"fin":      {FlagFIN},
	}
	for in, want := range cases {
		got := ParseFlags(in)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ParseFlags(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRawTrafficRecord_IsPureSYN(t *testing.T) {
	syn := RawTrafficRecord{Protocol: "TCP", Flags: []string{"syn"}}
	if !syn.IsPureSYN() {
		t.Errorf("expected lower-case syn to count as pure SYN")
	}
	synAck := RawTrafficRecord{Protocol: "tcp", Flags: []string{FlagSYN, FlagACK}}
	if synAck.IsPureSYN() {
		t.Errorf("SYN-ACK must not count as pure SYN")
	}
	none := RawTrafficRecord{Protocol: "tcp"}
	if none.IsPureSYN() {
		t.Errorf("record without flags must not count as pure SYN")
	}
	if got := syn.NormalizedProtocol(); got != ProtocolTCP {
		t.Errorf("NormalizedProtocol() = %q, want %q", got, ProtocolTCP)
	}
}
