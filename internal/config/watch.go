package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the file at path whenever it changes and hands every
// configuration that loads cleanly to onChange. Edits that fail to parse or
// validate are logged and skipped. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file, so editors that
// replace the file by renaming are followed.
func Watch(ctx context.Context, path string, log logrus.FieldLogger, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	log = log.WithField("path", abs)
	log.Info("Watching configuration for changes")

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(reloadDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("Config watcher error")

		case <-timer.C:
			if _, err := os.Stat(abs); err != nil {
				log.WithError(err).Warn("Configuration file disappeared, keeping the current settings")
				continue
			}
			cfg, err := LoadConfig(abs)
			if err != nil {
				log.WithError(err).Error("Ignoring invalid configuration change")
				continue
			}
			log.Info("Configuration reloaded")
			onChange(cfg)
		}
	}
}
