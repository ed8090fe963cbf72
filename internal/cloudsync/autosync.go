package cloudsync

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maruel/pinn/internal/models"
)

const autoSyncDebounce = 5 * time.Second

// AutoSync watches the managed directory and triggers a debounced upload
// when a collection file changes. A burst of writes collapses into one sync.
type AutoSync struct {
	engine  *Engine
	dir     string
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// NewAutoSync prepares a watcher over dir. Call Start to begin.
func NewAutoSync(engine *Engine, dir string) *AutoSync {
	return &AutoSync{engine: engine, dir: dir}
}

// Start begins watching. It returns once the watcher is installed; events
// are handled on a background goroutine until ctx is done or Close is
// called.
func (a *AutoSync) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(a.dir); err != nil {
		_ = w.Close()
		return err
	}
	a.watcher = w

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !isCollectionFile(event.Name) {
					continue
				}
				slog.Debug("Collection changed", "file", filepath.Base(event.Name))
				a.trigger(ctx)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("Watcher error", "err", err)
			}
		}
	}()
	return nil
}

// isCollectionFile filters out temp files and anything that is not one of
// the synced collections.
func isCollectionFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, f := range models.CollectionFiles {
		if name == f {
			return true
		}
	}
	return false
}

// trigger arms the debounce timer, resetting it when writes keep arriving.
func (a *AutoSync) trigger(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(autoSyncDebounce, func() {
		if _, err := a.engine.Upload(ctx, nil); err != nil {
			slog.Error("Auto-sync upload failed", "err", err)
		} else {
			slog.Info("Auto-sync upload complete")
		}
	})
}

// Close stops the watcher and cancels any pending sync.
func (a *AutoSync) Close() error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	if a.watcher != nil {
		return a.watcher.Close()
	}
	return nil
}
