package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce collapses the burst of events an editor produces on
// save into one reload.
const DefaultWatchDebounce = 250 * time.Millisecond

// WatchPolicy reloads the config file whenever it changes and hands the new
// Policy to onChange. Invalid files are logged and ignored; the previous
// policy stays in effect. It returns once the watcher is registered and stops
// when ctx is done.
func WatchPolicy(ctx context.Context, path string, logger *log.Logger, onChange func(Policy)) error {
	if path == "" {
		return fmt.Errorf("WatchPolicy: empty path")
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("WatchPolicy: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("WatchPolicy: %w", err)
	}
	// Watch the directory: editors and config management replace the file
	// by rename, which drops a watch on the file itself.
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return fmt.Errorf("WatchPolicy add %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer w.Close()

		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(DefaultWatchDebounce)
				} else {
					timer.Reset(DefaultWatchDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				cfg, err := Load(path)
				if err != nil {
					logger.Printf("config reload failed path=%s err=%v", path, err)
					continue
				}
				logger.Printf("config reloaded path=%s match_threshold=%.1f overweight_kg=%.1f",
					path, cfg.Policy.MatchThreshold, cfg.Policy.OverweightKg)
				onChange(cfg.Policy)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Printf("config watcher error: %v", err)
			}
		}
	}()

	return nil
}
