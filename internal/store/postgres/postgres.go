// Package postgres stores raw traffic and feature records in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/store"
)

func init() {
	store.Register("postgres", func(def config.StoreDef, log *logrus.Logger) (model.Store, error) {
		return New(context.Background(), def.Postgres, log)
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS network_traffic (
		id          BIGSERIAL PRIMARY KEY,
		timestamp   TIMESTAMPTZ NOT NULL,
		src_ip      TEXT NOT NULL,
		dst_ip      TEXT NOT NULL,
		protocol    TEXT NOT NULL,
		packet_size INTEGER NOT NULL,
		tcp_flags   TEXT[],
		src_port    INTEGER NOT NULL DEFAULT 0,
		dst_port    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS network_traffic_timestamp_idx ON network_traffic (timestamp)`,
	`CREATE TABLE IF NOT EXISTS feature_records (
		id            TEXT PRIMARY KEY,
		timestamp     TIMESTAMPTZ NOT NULL,
		window_size   INTEGER NOT NULL,
		packet_count  BIGINT NOT NULL,
		byte_count    BIGINT NOT NULL,
		unique_src    INTEGER NOT NULL,
		unique_dst    INTEGER NOT NULL,
		tcp_ratio     DOUBLE PRECISION NOT NULL,
		udp_ratio     DOUBLE PRECISION NOT NULL,
		icmp_ratio    DOUBLE PRECISION NOT NULL,
		src_entropy   DOUBLE PRECISION NOT NULL,
		dst_entropy   DOUBLE PRECISION NOT NULL,
		syn_ratio     DOUBLE PRECISION NOT NULL,
		port_entropy  DOUBLE PRECISION NOT NULL,
		is_anomaly    BOOLEAN NOT NULL,
		anomaly_score DOUBLE PRECISION NOT NULL,
		anomaly_type  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS feature_records_window_timestamp_idx ON feature_records (window_size, timestamp DESC)`,
}

var trafficColumns = []string{"timestamp", "src_ip", "dst_ip", "protocol", "packet_size", "tcp_flags", "src_port", "dst_port"}

const featureColumns = `id, timestamp, window_size, packet_count, byte_count, unique_src, unique_dst,
	tcp_ratio, udp_ratio, icmp_ratio, src_entropy, dst_entropy, syn_ratio, port_entropy,
	is_anomaly, anomaly_score, anomaly_type`

// Store implements model.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// New opens a pool, pings it and creates the tables when missing.
func New(ctx context.Context, cfg config.PostgresConfig, log *logrus.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	log.Info("Connected to PostgreSQL and ensured tables exist")
	return &Store{pool: pool, log: log.WithField("store", "postgres")}, nil
}

// Records returns the raw records with start <= timestamp < end.
func (s *Store) Records(ctx context.Context, start, end time.Time) ([]model.RawTrafficRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT timestamp, src_ip, dst_ip, protocol, packet_size, tcp_flags, src_port, dst_port
		FROM network_traffic
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query raw records: %w", err)
	}
	defer rows.Close()

	var out []model.RawTrafficRecord
	for rows.Next() {
		var (
			r                      model.RawTrafficRecord
			size, srcPort, dstPort int32
		)
		if err := rows.Scan(&r.Timestamp, &r.SourceAddress, &r.DestinationAddress, &r.Protocol,
			&size, &r.Flags, &srcPort, &dstPort); err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}
		r.Size = int(size)
		r.SourcePort = uint16(srcPort)
		r.DestinationPort = uint16(dstPort)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendRecords bulk-loads raw records with COPY.
func (s *Store) AppendRecords(ctx context.Context, records []model.RawTrafficRecord) error {
	if len(records) == 0 {
		return nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"network_traffic"}, trafficColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{
				r.Timestamp, r.SourceAddress, r.DestinationAddress, r.NormalizedProtocol(),
				int32(r.Size), r.Flags, int32(r.SourcePort), int32(r.DestinationPort),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy raw records: %w", err)
	}
	s.log.Debugf("Wrote %d raw records", n)
	return nil
}

// Append inserts one feature record.
func (s *Store) Append(ctx context.Context, f model.FeatureRecord) error {
	m := f.Metrics
	_, err := s.pool.Exec(ctx, "INSERT INTO feature_records ("+featureColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		f.ID, f.Timestamp, int32(f.WindowSizeMinutes),
		int64(m.PacketCount), m.ByteCount,
		int32(m.UniqueSourceCount), int32(m.UniqueDestinationCount),
		m.TCPRatio, m.UDPRatio, m.ICMPRatio,
		m.SourceEntropy, m.DestinationEntropy,
		m.SYNRatio, m.PortEntropy,
		f.IsAnomaly, f.AnomalyScore, f.AnomalyType,
	)
	if err != nil {
		return fmt.Errorf("insert feature record: %w", err)
	}
	return nil
}

// QueryRecent returns up to limit feature records of the window size, newest first.
func (s *Store) QueryRecent(ctx context.Context, windowSizeMinutes, limit int) ([]model.FeatureRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, "SELECT "+featureColumns+`
		FROM feature_records
		WHERE window_size = $1
		ORDER BY timestamp DESC
		LIMIT $2`, int32(windowSizeMinutes), limit)
	if err != nil {
		return nil, fmt.Errorf("query feature records: %w", err)
	}
	defer rows.Close()

	var out []model.FeatureRecord
	for rows.Next() {
		var (
			f                  model.FeatureRecord
			window, usrc, udst int32
			packets            int64
		)
		m := &f.Metrics
		if err := rows.Scan(&f.ID, &f.Timestamp, &window, &packets, &m.ByteCount, &usrc, &udst,
			&m.TCPRatio, &m.UDPRatio, &m.ICMPRatio, &m.SourceEntropy, &m.DestinationEntropy,
			&m.SYNRatio, &m.PortEntropy, &f.IsAnomaly, &f.AnomalyScore, &f.AnomalyType); err != nil {
			return nil, fmt.Errorf("scan feature record: %w", err)
		}
		f.WindowSizeMinutes = int(window)
		m.PacketCount = int(packets)
		m.UniqueSourceCount = int(usrc)
		m.UniqueDestinationCount = int(udst)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
