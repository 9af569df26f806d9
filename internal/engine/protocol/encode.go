package protocol

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"DDoSDefender/internal/model"
)

var (
	encodeSrcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	encodeDstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// Encode builds an Ethernet frame carrying rec. The payload is zero-padded so
// the frame is rec.Size bytes long when the headers leave room for it.
func Encode(rec model.RawTrafficRecord) ([]byte, error) {
	src := net.ParseIP(rec.SourceAddress)
	dst := net.ParseIP(rec.DestinationAddress)
	if src == nil || dst == nil {
		return nil, fmt.Errorf("invalid address pair %q -> %q", rec.SourceAddress, rec.DestinationAddress)
	}
	v4 := src.To4() != nil && dst.To4() != nil

	eth := &layers.Ethernet{SrcMAC: encodeSrcMAC, DstMAC: encodeDstMAC}
	var network gopacket.NetworkLayer
	var ipLayer gopacket.SerializableLayer
	headerLen := 14
	if v4 {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{Version: 4, TTL: 64, SrcIP: src.To4(), DstIP: dst.To4()}
		network, ipLayer = ip, ip
		headerLen += 20
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{Version: 6, HopLimit: 64, SrcIP: src.To16(), DstIP: dst.To16()}
		network, ipLayer = ip, ip
		headerLen += 40
	}

	var transport gopacket.SerializableLayer
	var ipProto layers.IPProtocol
	switch rec.NormalizedProtocol() {
	case model.ProtocolTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(rec.SourcePort),
			DstPort: layers.TCPPort(rec.DestinationPort),
			Window:  65535,
			SYN:     rec.HasFlag(model.FlagSYN),
			ACK:     rec.HasFlag(model.FlagACK),
			FIN:     rec.HasFlag(model.FlagFIN),
			RST:     rec.HasFlag(model.FlagRST),
			PSH:     rec.HasFlag(model.FlagPSH),
			URG:     rec.HasFlag(model.FlagURG),
		}
		if err := tcp.SetNetworkLayerForChecksum(network); err != nil {
			return nil, err
		}
		transport, ipProto = tcp, layers.IPProtocolTCP
		headerLen += 20
	case model.ProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(rec.SourcePort), DstPort: layers.UDPPort(rec.DestinationPort)}
		if err := udp.SetNetworkLayerForChecksum(network); err != nil {
			return nil, err
		}
		transport, ipProto = udp, layers.IPProtocolUDP
		headerLen += 8
	case model.ProtocolICMP:
		if v4 {
			transport = &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
			ipProto = layers.IPProtocolICMPv4
		} else {
			icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0)}
			if err := icmp.SetNetworkLayerForChecksum(network); err != nil {
				return nil, err
			}
			transport, ipProto = icmp, layers.IPProtocolICMPv6
		}
		headerLen += 8
	default:
		return nil, fmt.Errorf("cannot encode protocol %q", rec.Protocol)
	}

	switch ip := network.(type) {
	case *layers.IPv4:
		ip.Protocol = ipProto
	case *layers.IPv6:
		ip.NextHeader = ipProto
	}

	payload := gopacket.Payload(make([]byte, max(rec.Size-headerLen, 0)))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ipLayer, transport, payload); err != nil {
		return nil, fmt.Errorf("failed to serialize packet: %w", err)
	}
	return buf.Bytes(), nil
}
