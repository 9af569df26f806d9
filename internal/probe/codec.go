package probe

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"DDoSDefender/internal/model"
)

// WireVersion tags every message so consumers can reject layouts they do not know.
const WireVersion = 1

// MarshalRecords encodes a batch of raw records as a protobuf Struct.
func MarshalRecords(records []model.RawTrafficRecord) ([]byte, error) {
	list := make([]interface{}, len(records))
	for i, r := range records {
		flags := make([]interface{}, len(r.Flags))
		for j, f := range r.Flags {
			flags[j] = f
		}
		list[i] = map[string]interface{}{
			"timestamp": r.Timestamp.UTC().Format(time.RFC3339Nano),
			"src_ip":    r.SourceAddress,
			"dst_ip":    r.DestinationAddress,
			"protocol":  r.Protocol,
			"size":      r.Size,
			"flags":     flags,
			"src_port":  int(r.SourcePort),
			"dst_port":  int(r.DestinationPort),
		}
	}
	msg, err := structpb.NewStruct(map[string]interface{}{
		"version": WireVersion,
		"records": list,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build record message: %w", err)
	}
	return proto.Marshal(msg)
}

// UnmarshalRecords decodes a message produced by MarshalRecords.
func UnmarshalRecords(data []byte) ([]model.RawTrafficRecord, error) {
	msg, err := unmarshal(data)
	if err != nil {
		return nil, err
	}
	values := msg.GetFields()["records"].GetListValue().GetValues()
	out := make([]model.RawTrafficRecord, 0, len(values))
	for i, v := range values {
		f := v.GetStructValue().GetFields()
		if f == nil {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		ts, err := time.Parse(time.RFC3339Nano, f["timestamp"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		r := model.RawTrafficRecord{
			Timestamp:          ts,
			SourceAddress:      f["src_ip"].GetStringValue(),
			DestinationAddress: f["dst_ip"].GetStringValue(),
			Protocol:           f["protocol"].GetStringValue(),
			Size:               int(f["size"].GetNumberValue()),
			SourcePort:         uint16(f["src_port"].GetNumberValue()),
			DestinationPort:    uint16(f["dst_port"].GetNumberValue()),
		}
		for _, flag := range f["flags"].GetListValue().GetValues() {
			r.Flags = append(r.Flags, flag.GetStringValue())
		}
		out = append(out, r)
	}
	return out, nil
}

// MarshalFeature encodes one feature record together with its vector.
func MarshalFeature(rec model.FeatureRecord, vector model.FeatureVector) ([]byte, error) {
	m := rec.Metrics
	vec := make([]interface{}, len(vector))
	for i, x := range vector {
		vec[i] = x
	}
	msg, err := structpb.NewStruct(map[string]interface{}{
		"version":        WireVersion,
		"vector_version": model.FeatureVectorVersion,
		"id":             rec.ID,
		"timestamp":      rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"window_size":    rec.WindowSizeMinutes,
		"is_anomaly":     rec.IsAnomaly,
		"anomaly_score":  rec.AnomalyScore,
		"anomaly_type":   rec.AnomalyType,
		"vector":         vec,
		"metrics": map[string]interface{}{
			"packet_count": m.PacketCount,
			"byte_count":   m.ByteCount,
			"unique_src":   m.UniqueSourceCount,
			"unique_dst":   m.UniqueDestinationCount,
			"tcp_ratio":    m.TCPRatio,
			"udp_ratio":    m.UDPRatio,
			"icmp_ratio":   m.ICMPRatio,
			"src_entropy":  m.SourceEntropy,
			"dst_entropy":  m.DestinationEntropy,
			"syn_ratio":    m.SYNRatio,
			"port_entropy": m.PortEntropy,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build feature message: %w", err)
	}
	return proto.Marshal(msg)
}

// UnmarshalFeature decodes a message produced by MarshalFeature.
func UnmarshalFeature(data []byte) (model.FeatureRecord, model.FeatureVector, error) {
	var (
		rec model.FeatureRecord
		vec model.FeatureVector
	)
	msg, err := unmarshal(data)
	if err != nil {
		return rec, vec, err
	}
	f := msg.GetFields()
	if v := int(f["vector_version"].GetNumberValue()); v != model.FeatureVectorVersion {
		return rec, vec, fmt.Errorf("unsupported feature vector version %d", v)
	}
	ts, err := time.Parse(time.RFC3339Nano, f["timestamp"].GetStringValue())
	if err != nil {
		return rec, vec, fmt.Errorf("feature timestamp: %w", err)
	}
	rec = model.FeatureRecord{
		ID:                f["id"].GetStringValue(),
		Timestamp:         ts,
		WindowSizeMinutes: int(f["window_size"].GetNumberValue()),
		IsAnomaly:         f["is_anomaly"].GetBoolValue(),
		AnomalyScore:      f["anomaly_score"].GetNumberValue(),
		AnomalyType:       f["anomaly_type"].GetStringValue(),
	}
	m := f["metrics"].GetStructValue().GetFields()
	rec.Metrics = model.Metrics{
		PacketCount:            int(m["packet_count"].GetNumberValue()),
		ByteCount:              int64(m["byte_count"].GetNumberValue()),
		UniqueSourceCount:      int(m["unique_src"].GetNumberValue()),
		UniqueDestinationCount: int(m["unique_dst"].GetNumberValue()),
		TCPRatio:               m["tcp_ratio"].GetNumberValue(),
		UDPRatio:               m["udp_ratio"].GetNumberValue(),
		ICMPRatio:              m["icmp_ratio"].GetNumberValue(),
		SourceEntropy:          m["src_entropy"].GetNumberValue(),
		DestinationEntropy:     m["dst_entropy"].GetNumberValue(),
		SYNRatio:               m["syn_ratio"].GetNumberValue(),
		PortEntropy:            m["port_entropy"].GetNumberValue(),
	}
	values := f["vector"].GetListValue().GetValues()
	if len(values) != model.FeatureVectorLength {
		return rec, vec, fmt.Errorf("feature vector has %d elements, want %d", len(values), model.FeatureVectorLength)
	}
	for i, v := range values {
		vec[i] = v.GetNumberValue()
	}
	return rec, vec, nil
}

func unmarshal(data []byte) (*structpb.Struct, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protobuf: %w", err)
	}
	if v := int(msg.GetFields()["version"].GetNumberValue()); v != WireVersion {
		return nil, fmt.Errorf("unsupported wire version %d", v)
	}
	return &msg, nil
}
