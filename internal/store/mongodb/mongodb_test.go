package mongodb

import (
	"os"
	"testing"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/logging"
	"DDoSDefender/internal/store/storetest"
)

// Set DDOS_TEST_MONGODB_URL to run against a live server.
func TestMongoStore(t *testing.T) {
	url := os.Getenv("DDOS_TEST_MONGODB_URL")
	if url == "" {
		t.Skip("DDOS_TEST_MONGODB_URL not set")
	}
	cfg := config.MongoDBConfig{URL: url, Database: "ddos_defender_test", SocketTimeout: "10s"}
	s, err := New(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Failed to open MongoDB store: %v", err)
	}
	defer s.Close()

	storetest.Run(t, s)
}
