// Package protocol decodes captured packets into raw traffic records.
package protocol

import (
	"errors"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"DDoSDefender/internal/model"
)

// ErrNotIP is returned for frames without an IPv4 or IPv6 layer.
var ErrNotIP = errors.New("not an IP packet")

// Decode parses an Ethernet frame captured at ts.
func Decode(data []byte, ts time.Time) (model.RawTrafficRecord, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().Timestamp = ts
	return ParsePacket(packet)
}

// ParsePacket extracts addresses, protocol, size, ports and TCP flags from a
// decoded packet. The timestamp comes from the capture metadata and falls back
// to the current time.
func ParsePacket(packet gopacket.Packet) (model.RawTrafficRecord, error) {
	rec := model.RawTrafficRecord{
		Timestamp: time.Now(),
		Size:      len(packet.Data()),
	}
	if meta := packet.Metadata(); meta != nil {
		if !meta.Timestamp.IsZero() {
			rec.Timestamp = meta.Timestamp
		}
		if meta.Length > 0 {
			rec.Size = meta.Length
		}
	}

	var proto layers.IPProtocol
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		rec.SourceAddress = ip.SrcIP.String()
		rec.DestinationAddress = ip.DstIP.String()
		proto = ip.Protocol
	case *layers.IPv6:
		rec.SourceAddress = ip.SrcIP.String()
		rec.DestinationAddress = ip.DstIP.String()
		proto = ip.NextHeader
	default:
		return model.RawTrafficRecord{}, ErrNotIP
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.Protocol = model.ProtocolTCP
		rec.SourcePort = uint16(tcp.SrcPort)
		rec.DestinationPort = uint16(tcp.DstPort)
		rec.Flags = tcpFlags(tcp)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec.Protocol = model.ProtocolUDP
		rec.SourcePort = uint16(udp.SrcPort)
		rec.DestinationPort = uint16(udp.DstPort)
	} else {
		rec.Protocol = protocolName(proto)
	}
	return rec, nil
}

func protocolName(p layers.IPProtocol) string {
	switch p {
	case layers.IPProtocolTCP:
		return model.ProtocolTCP
	case layers.IPProtocolUDP:
		return model.ProtocolUDP
	case layers.IPProtocolICMPv4, layers.IPProtocolICMPv6:
		return model.ProtocolICMP
	}
	return strings.ToLower(p.String())
}

func tcpFlags(tcp *layers.TCP) []string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{tcp.SYN, model.FlagSYN},
		{tcp.ACK, model.FlagACK},
		{tcp.FIN, model.FlagFIN},
		{tcp.RST, model.FlagRST},
		{tcp.PSH, model.FlagPSH},
		{tcp.URG, model.FlagURG},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	return flags
}
