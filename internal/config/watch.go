package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/benj-edwards/ascii-processing-unit/internal/applog"
)

// WatchLogLevel watches path for writes and re-reads just its
// log_level field into lv, letting an operator change verbosity with
// a file edit instead of a restart. Debounced the same 200ms as the
// teacher's WatchNetworkConfig (pkg/policy/config_watcher.go), since
// editors commonly emit a rename-then-create pair for one logical
// save.
//
// Returns the underlying watcher so the caller can Close it on
// shutdown; the watch goroutine also exits once ctx is done.
func WatchLogLevel(ctx context.Context, path string, lv *slog.LevelVar, logger *slog.Logger) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	target := filepath.Base(path)

	reload := func() {
		cfg, err := Load(path, nil)
		if err != nil {
			logger.Warn("config: reload failed", "path", path, "error", err)
			return
		}
		newLevel := applog.ParseLevel(cfg.LogLevel)
		if newLevel != lv.Level() {
			logger.Info("config: log level changed", "level", newLevel)
			lv.Set(newLevel)
		}
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		debounce := func() {
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(200*time.Millisecond, reload)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watch error", "error", err)
			}
		}
	}()
	return w, nil
}
