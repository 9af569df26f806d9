package clickhouse

import (
	"context"
	"os"
	"strconv"
	"testing"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/store/storetest"
)

// Set DDOS_TEST_CLICKHOUSE_HOST to run against a live server.
func TestClickHouseStore(t *testing.T) {
	host := os.Getenv("DDOS_TEST_CLICKHOUSE_HOST")
	if host == "" {
		t.Skip("DDOS_TEST_CLICKHOUSE_HOST not set")
	}
	cfg := config.ClickHouseConfig{Host: host, Port: 9000, Database: "default", Username: "default"}
	if p, err := strconv.Atoi(os.Getenv("DDOS_TEST_CLICKHOUSE_PORT")); err == nil {
		cfg.Port = p
	}

	s, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to open ClickHouse store: %v", err)
	}
	defer s.Close()

	storetest.Run(t, s)
}
