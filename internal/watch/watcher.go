// Package watch triggers work when a file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// relevantOps covers in-place writes as well as atomic replace-by-rename.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watcher calls a function after a file has stopped changing for the
// debounce interval.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a Watcher for path.
func New(path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{path: filepath.Clean(path), debounce: debounce, logger: logger}
}

// Run blocks until ctx is cancelled, invoking onChange once per burst of
// changes. The parent directory is watched so the file may be created or
// replaced after Run starts.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching snapshot", "path", w.path, "debounce", w.debounce)

	w.loop(ctx, fw.Events, fw.Errors, onChange)
	return nil
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, onChange func(context.Context)) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.path || evt.Op&relevantOps == 0 {
				continue
			}
			w.logger.Debug("snapshot changed", "op", evt.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		case <-fire:
			fire = nil
			onChange(ctx)
		}
	}
}
