package effects

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"SonicPlayer/logger"
)

// WatchCatalog reloads the catalog at path whenever it changes and hands the result to
// onChange. Invalid files are logged and skipped. It returns once ctx is done.
func WatchCatalog(ctx context.Context, path string, onChange func(*Catalog)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace the file, so watch the directory
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cat, err := LoadCatalog(path)
			if err != nil {
				logger.Warn("preset catalog reload failed",
					logger.String("path", path),
					logger.ErrorField(err))
				continue
			}
			logger.Info("preset catalog reloaded", logger.String("path", path))
			onChange(cat)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", logger.ErrorField(err))
		case <-ctx.Done():
			return nil
		}
	}
}
