package policyfile

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"ygbackend/contexts/internal-ops/job-monitor-service/ports"

	"github.com/fsnotify/fsnotify"
)

// Watcher reapplies the policy file whenever it changes on disk. The parent
// directory is watched so editors that replace the file by rename still
// trigger a reload.
type Watcher struct {
	Path     string
	Store    ports.PolicyStore
	Debounce time.Duration
	Logger   *slog.Logger
}

// Run applies the file once, then blocks reloading on change until ctx ends.
func (w Watcher) Run(ctx context.Context) error {
	logger := w.logger()
	path := filepath.Clean(w.Path)
	if _, err := Apply(ctx, path, w.Store); err != nil {
		logger.Warn("initial job policy load failed",
			"event", "job_policy_load_failed",
			"module", "internal-ops/job-monitor-service",
			"layer", "adapter",
			"path", path,
			"error", err.Error(),
		)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			pending = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("job policy watcher error",
				"event", "job_policy_watch_error",
				"module", "internal-ops/job-monitor-service",
				"layer", "adapter",
				"error", err.Error(),
			)
		case <-pending:
			pending = nil
			count, err := Apply(ctx, path, w.Store)
			if err != nil {
				logger.Warn("job policy reload rejected",
					"event", "job_policy_reload_failed",
					"module", "internal-ops/job-monitor-service",
					"layer", "adapter",
					"path", path,
					"error", err.Error(),
				)
				continue
			}
			logger.Info("job policies reloaded",
				"event", "job_policy_reloaded",
				"module", "internal-ops/job-monitor-service",
				"layer", "adapter",
				"path", path,
				"queues", count,
			)
		}
	}
}

func (w Watcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
