package server

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/zdunecki/onboarding/pkg/schema"
)

// catalogDebounce coalesces the burst of events an editor save produces.
const catalogDebounce = 200 * time.Millisecond

// watchCatalog reloads the catalog under dir whenever a YAML file in it
// changes and passes each registry that loads cleanly to apply. It returns
// when ctx is done.
func watchCatalog(ctx context.Context, dir string, log *zap.Logger, apply func(*schema.Registry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	for _, sub := range []string{"steps", "options"} {
		// Optional subdirectories.
		_ = watcher.Add(filepath.Join(dir, sub))
	}

	timer := time.NewTimer(catalogDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 || !isCatalogFile(evt.Name) {
				continue
			}
			timer.Reset(catalogDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Catalog watcher error", zap.Error(err))
		case <-timer.C:
			reg, err := schema.LoadDir(dir)
			if err != nil {
				log.Warn("Catalog reload failed, keeping previous", zap.String("dir", dir), zap.Error(err))
				continue
			}
			log.Info("Catalog reloaded", zap.String("dir", dir), zap.Int("steps", reg.Len()))
			apply(reg)
		}
	}
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
