// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/config"
)

// New returns a logger writing to stderr and, when cfg.Dir is set, to one
// file per level under that directory.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.Out = os.Stderr

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	formatter, err := formatterFor(cfg.Format)
	if err != nil {
		return nil, err
	}
	log.SetFormatter(formatter)

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		log.AddHook(lfshook.NewHook(lfshook.PathMap{
			logrus.DebugLevel: filepath.Join(cfg.Dir, "debug.log"),
			logrus.InfoLevel:  filepath.Join(cfg.Dir, "info.log"),
			logrus.WarnLevel:  filepath.Join(cfg.Dir, "warn.log"),
			logrus.ErrorLevel: filepath.Join(cfg.Dir, "error.log"),
			logrus.FatalLevel: filepath.Join(cfg.Dir, "fatal.log"),
			logrus.PanicLevel: filepath.Join(cfg.Dir, "panic.log"),
		}, &logrus.JSONFormatter{}))
	}
	return log, nil
}

func formatterFor(format string) (logrus.Formatter, error) {
	switch format {
	case "", "text":
		return &logrus.TextFormatter{FullTimestamp: true}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}
