package guard

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDebounce coalesces bursts of file events (editors write, chmod and
// rename in quick succession) into a single reload.
const watchDebounce = 500 * time.Millisecond

// sweepDefault is the default approval sweep interval.
const sweepDefault = time.Second

// Watch reloads the rule documents whenever they change on disk. It
// watches the parent directories rather than the files: most editors
// replace files by rename, which would silently drop a watch on the file
// itself. Blocks until ctx is cancelled.
func (g *Guard) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range g.store.Paths().List() {
		watched[filepath.Clean(p)] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	// Single debounce timer — reset on each event, no goroutines.
	// Initialized as stopped; first event starts it.
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			if err := g.Reload(); err == nil {
				g.logger.Info("rule documents reloaded")
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.logger.Warn("rule watcher error", zap.Error(err))
		}
	}
}

// RunSweeper expires overdue approvals and reconciles the approval mirror
// at the given interval (default one second). Blocks until ctx is
// cancelled.
func (g *Guard) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = sweepDefault
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.SweepApprovals()
		}
	}
}
