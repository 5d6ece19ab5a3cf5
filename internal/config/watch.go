package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a burst of saves settles before reloading.
const DefaultDebounce = 300 * time.Millisecond

// Watch blocks until ctx is done and calls onChange with every valid
// reload of path. The parent directory is watched so editors that save by
// rename are seen too. An invalid edit is logged and the previous
// configuration stays in effect.
func Watch(ctx context.Context, path string, debounce time.Duration, log *slog.Logger, onChange func(Config)) error {
	if path == "" {
		return fmt.Errorf("watch: no config file")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload = time.After(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if log != nil {
				log.Warn("config watcher error", "error", err)
			}

		case <-reload:
			reload = nil
			cfg, err := LoadFile(target)
			if err != nil {
				if log != nil {
					log.Warn("config reload rejected", "path", target, "error", err)
				}
				continue
			}
			if log != nil {
				log.Info("config reloaded", "path", target)
			}
			onChange(cfg)
		}
	}
}
