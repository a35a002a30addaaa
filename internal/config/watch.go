package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watch watches path's containing directory and invokes onChange, debounced,
// whenever path itself is modified. It blocks until ctx is cancelled.
// Optional: cmd/mcprouter only calls this when --watch-config is set, since
// the core's catalog is built once at startup and never hot-swapped (spec.md
// §3); this only gives an operator a log line prompting a restart, grounded
// in the teacher's DynamicCatalogProvider.runWatcher without its live-reload
// machinery.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func()) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var timer *time.Timer
	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Errors:
			if err != nil {
				logger.Warn("config watcher error", zap.Error(err))
			}
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
		case <-timerC:
			timer = nil
			logger.Info("config file changed, restart to apply", zap.String("path", path))
			onChange()
		}
	}
}
