package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
)

func TestNew_LevelAndFormat(t *testing.T) {
	log, err := New(config.LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("Expected unknown level to be rejected")
	}
	if _, err := New(config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("Expected unknown format to be rejected")
	}
}

func TestNew_FileHook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := New(config.LogConfig{Level: "info", Dir: dir})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Out = io.Discard
	log.Warn("window skipped")

	data, err := os.ReadFile(filepath.Join(dir, "warn.log"))
	if err != nil {
		t.Fatalf("Expected warn.log to be written: %v", err)
	}
	if len(data) == 0 {
		t.Error("warn.log is empty")
	}
}
