package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates cache whenever a snapshot file in dir changes.
// It blocks until ctx is done.
func Watch(ctx context.Context, dir string, cache *Cache, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			logger.Warn("closing snapshot watcher", "error", cerr)
		}
	}()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isSnapshotEvent(ev) {
				continue
			}
			logger.Debug("snapshot changed", "file", ev.Name, "op", ev.Op.String())
			cache.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("snapshot watcher error", "error", err)
		}
	}
}

func isSnapshotEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	return dayFilePattern.MatchString(filepath.Base(ev.Name))
}
