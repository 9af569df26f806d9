// Package clickhouse stores raw traffic and feature records in ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/store"
)

func init() {
	store.Register("clickhouse", func(def config.StoreDef, log *logrus.Logger) (model.Store, error) {
		return New(context.Background(), def.ClickHouse, log)
	})
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS network_traffic (
    timestamp   DateTime64(3),
    src_ip      String,
    dst_ip      String,
    protocol    LowCardinality(String),
    packet_size UInt32,
    tcp_flags   Array(String),
    src_port    UInt16,
    dst_port    UInt16
) ENGINE = MergeTree()
PARTITION BY toYYYYMMDD(timestamp)
ORDER BY timestamp
TTL toDateTime(timestamp) + INTERVAL 7 DAY;
`, `
CREATE TABLE IF NOT EXISTS feature_records (
    id                  String,
    timestamp           DateTime64(3),
    window_size         UInt32,
    packet_count        UInt64,
    byte_count          UInt64,
    unique_src          UInt32,
    unique_dst          UInt32,
    tcp_ratio           Float64,
    udp_ratio           Float64,
    icmp_ratio          Float64,
    src_entropy         Float64,
    dst_entropy         Float64,
    syn_ratio           Float64,
    port_entropy        Float64,
    is_anomaly          Bool,
    anomaly_score       Float64,
    anomaly_type        LowCardinality(String)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (window_size, timestamp);
`}

const featureColumns = `id, timestamp, window_size, packet_count, byte_count, unique_src, unique_dst,
	tcp_ratio, udp_ratio, icmp_ratio, src_entropy, dst_entropy, syn_ratio, port_entropy,
	is_anomaly, anomaly_score, anomaly_type`

// Store implements model.Store on ClickHouse.
type Store struct {
	conn driver.Conn
	log  logrus.FieldLogger
}

// New connects to ClickHouse and makes sure both tables exist.
func New(ctx context.Context, cfg config.ClickHouseConfig, log *logrus.Logger) (*Store, error) {
	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.WithField("addr", addr(cfg)).Info("Connected to ClickHouse and ensured tables exist")
	return &Store{conn: conn, log: log.WithField("store", "clickhouse")}, nil
}

func addr(cfg config.ClickHouseConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

func connect(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr(cfg)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Records returns the raw records with start <= timestamp < end.
func (s *Store) Records(ctx context.Context, start, end time.Time) ([]model.RawTrafficRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp, src_ip, dst_ip, protocol, packet_size, tcp_flags, src_port, dst_port
		FROM network_traffic
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw records: %w", err)
	}
	defer rows.Close()

	var out []model.RawTrafficRecord
	for rows.Next() {
		var (
			r    model.RawTrafficRecord
			size uint32
		)
		if err := rows.Scan(&r.Timestamp, &r.SourceAddress, &r.DestinationAddress, &r.Protocol,
			&size, &r.Flags, &r.SourcePort, &r.DestinationPort); err != nil {
			return nil, fmt.Errorf("failed to scan raw record: %w", err)
		}
		r.Size = int(size)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendRecords inserts raw records in a single batch.
func (s *Store) AppendRecords(ctx context.Context, records []model.RawTrafficRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO network_traffic")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, r := range records {
		flags := r.Flags
		if flags == nil {
			flags = []string{}
		}
		if err := batch.Append(
			r.Timestamp,
			r.SourceAddress,
			r.DestinationAddress,
			r.NormalizedProtocol(),
			uint32(max(r.Size, 0)),
			flags,
			r.SourcePort,
			r.DestinationPort,
		); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append record to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	s.log.Debugf("Wrote %d raw records", len(records))
	return nil
}

// Append inserts one feature record.
func (s *Store) Append(ctx context.Context, f model.FeatureRecord) error {
	m := f.Metrics
	err := s.conn.Exec(ctx, "INSERT INTO feature_records ("+featureColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		f.ID,
		f.Timestamp,
		uint32(f.WindowSizeMinutes),
		uint64(m.PacketCount),
		uint64(m.ByteCount),
		uint32(m.UniqueSourceCount),
		uint32(m.UniqueDestinationCount),
		m.TCPRatio, m.UDPRatio, m.ICMPRatio,
		m.SourceEntropy, m.DestinationEntropy,
		m.SYNRatio, m.PortEntropy,
		f.IsAnomaly, f.AnomalyScore, f.AnomalyType,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feature record: %w", err)
	}
	return nil
}

// QueryRecent returns up to limit feature records of the window size, newest first.
func (s *Store) QueryRecent(ctx context.Context, windowSizeMinutes, limit int) ([]model.FeatureRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, "SELECT "+featureColumns+`
		FROM feature_records
		WHERE window_size = ?
		ORDER BY timestamp DESC
		LIMIT ?`, uint32(windowSizeMinutes), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature records: %w", err)
	}
	defer rows.Close()

	var out []model.FeatureRecord
	for rows.Next() {
		var (
			f                  model.FeatureRecord
			window, usrc, udst uint32
			packets, byteCount uint64
		)
		m := &f.Metrics
		if err := rows.Scan(&f.ID, &f.Timestamp, &window, &packets, &byteCount, &usrc, &udst,
			&m.TCPRatio, &m.UDPRatio, &m.ICMPRatio, &m.SourceEntropy, &m.DestinationEntropy,
			&m.SYNRatio, &m.PortEntropy, &f.IsAnomaly, &f.AnomalyScore, &f.AnomalyType); err != nil {
			return nil, fmt.Errorf("failed to scan feature record: %w", err)
		}
		f.WindowSizeMinutes = int(window)
		m.PacketCount = int(packets)
		m.ByteCount = int64(byteCount)
		m.UniqueSourceCount = int(usrc)
		m.UniqueDestinationCount = int(udst)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
