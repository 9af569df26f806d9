package model

import (
	"strings"
	"time"
)

// Protocol names as they appear on normalized records.
const (
	ProtocolTCP  = "tcp"
	ProtocolUDP  = "udp"
	ProtocolICMP = "icmp"
)

// RawTrafficRecord is a single observed packet or flow sample.
// Records are produced by an ingest collaborator and never modified afterwards.
type RawTrafficRecord struct {
	Timestamp          time.Time `json:"timestamp" bson:"timestamp"`
	SourceAddress      string    `json:"sourceAddress" bson:"src_ip"`
	DestinationAddress string    `json:"destinationAddress" bson:"dst_ip"`
	Protocol           string    `json:"protocol" bson:"protocol"`
	Size               int       `json:"size" bson:"packet_size"`
	Flags              []string  `json:"flags,omitempty" bson:"tcp_flags,omitempty"`

	// Ports are zero when the source stream does not carry them.
	SourcePort      uint16 `json:"sourcePort,omitempty" bson:"src_port,omitempty"`
	DestinationPort uint16 `json:"destinationPort,omitempty" bson:"dst_port,omitempty"`
}

// NormalizedProtocol returns the protocol in its canonical lower-case form.
func (r *RawTrafficRecord) NormalizedProtocol() string {
	return NormalizeProtocol(r.Protocol)
}

// HasFlag reports whether the record carries the named flag, ignoring case.
func (r *RawTrafficRecord) HasFlag(name string) bool {
	for _, f := range r.Flags {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// IsPureSYN reports a handshake-initiation packet: SYN set, ACK not set.
func (r *RawTrafficRecord) IsPureSYN() bool {
	return r.HasFlag(FlagSYN) && !r.HasFlag(FlagACK)
}

// NormalizeProtocol lower-cases and trims a protocol name.
func NormalizeProtocol(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// Metrics holds the per-window aggregates of a FeatureRecord.
type Metrics struct {
	PacketCount            int     `json:"packetCount" bson:"packet_count"`
	ByteCount              int64   `json:"byteCount" bson:"byte_count"`
	UniqueSourceCount      int     `json:"uniqueSourceCount" bson:"unique_source_ips"`
	UniqueDestinationCount int     `json:"uniqueDestinationCount" bson:"unique_dest_ips"`
	TCPRatio               float64 `json:"tcpRatio" bson:"tcp_ratio"`
	UDPRatio               float64 `json:"udpRatio" bson:"udp_ratio"`
	ICMPRatio              float64 `json:"icmpRatio" bson:"icmp_ratio"`
	SourceEntropy          float64 `json:"sourceEntropy" bson:"entropy_src_ip"`
	DestinationEntropy     float64 `json:"destinationEntropy" bson:"entropy_dest_ip"`
	SYNRatio               float64 `json:"synRatio" bson:"syn_ratio"`
	PortEntropy            float64 `json:"portEntropy" bson:"port_entropy"`
}

// Anomaly types, named after the rule that decided the score.
const (
	AnomalyNone         = ""
	AnomalySYNFlood     = "syn_flood"
	AnomalyVolume       = "volume"
	AnomalyDistribution = "distribution"
)

// FeatureRecord is the result of one aggregation window. It is written once
// and never mutated.
type FeatureRecord struct {
	ID                string    `json:"id" bson:"record_id"`
	Timestamp         time.Time `json:"timestamp" bson:"timestamp"`
	WindowSizeMinutes int       `json:"windowSizeMinutes" bson:"window_size_minutes"`
	Metrics           Metrics   `json:"metrics" bson:"metrics"`
	IsAnomaly         bool      `json:"isAnomaly" bson:"is_anomaly"`
	AnomalyScore      float64   `json:"anomalyScore" bson:"anomaly_score"`
	AnomalyType       string    `json:"anomalyType,omitempty" bson:"anomaly_type,omitempty"`
}

// FeatureVectorVersion identifies the layout of FeatureVector. Scoring
// consumers depend on the exact order and normalization, so any change to
// either must bump this value.
const FeatureVectorVersion = 1

// FeatureVectorLength is the fixed number of elements in a FeatureVector.
const FeatureVectorLength = 8

// FeatureVector is the numeric projection of one FeatureRecord:
//
//	[synRatio, tcpRatio, udpRatio, icmpRatio, sourceEntropy,
//	 destinationEntropy, packetCount/1000, uniqueSourceCount/100]
type FeatureVector [FeatureVectorLength]float64

// Slice returns the vector as a freshly allocated slice.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureVectorLength)
	copy(out, v[:])
	return out
}
