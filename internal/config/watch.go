package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads the config file at path whenever it changes and passes the
// result to onChange. The parent directory is watched rather than the file
// so editors that replace the file by rename are picked up. A config that
// fails to load or validate is logged and skipped. Watch blocks until ctx
// is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	logger := slog.With("component", "config")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	logger.Info("watching config file for changes", "path", path)

	target := filepath.Clean(path)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("config file changed", "op", event.Op)

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				cfg, err := Load(path)
				if err == nil {
					err = cfg.Validate()
				}
				if err != nil {
					logger.Error("config reload failed", "error", err)
					return
				}
				logger.Info("config reloaded")
				onChange(cfg)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", "error", err)
		}
	}
}
