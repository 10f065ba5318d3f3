package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
)

// Watcher reloads the store when the config file changes on disk. The
// settings editor is a separate program, so external rewrites are how `set`
// reaches a running daemon. It watches the parent directory, not the file:
// editors (and Store.persist itself) replace the file by rename, which
// retires the watched inode.
type Watcher struct {
	store    *Store
	onChange func(old, current domain.Configuration)
	logger   *zap.Logger
	debounce time.Duration

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	dirty     bool
	lastEvent time.Time
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewWatcher builds a watcher. onChange may be nil.
func NewWatcher(store *Store, onChange func(old, current domain.Configuration), logger *zap.Logger) *Watcher {
	return &Watcher{
		store:    store,
		onChange: onChange,
		logger:   logging.NopIfNil(logger),
		debounce: domain.DefaultReloadDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins watching. Non-blocking; the loop runs on its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	dir := filepath.Dir(w.store.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return err
	}
	w.logger.Debug("config watcher started", zap.String("dir", dir))

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("config watcher close", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	target := filepath.Base(w.store.Path())

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.dirty = true
			w.lastEvent = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher", zap.Error(err))
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush reloads once the debounce window after the last event has passed,
// so editor save bursts collapse into one reload.
func (w *Watcher) flush() {
	w.mu.Lock()
	ready := w.dirty && time.Since(w.lastEvent) >= w.debounce
	if ready {
		w.dirty = false
	}
	w.mu.Unlock()
	if !ready {
		return
	}

	old := w.store.Snapshot()
	current, err := w.store.Reload()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous snapshot", zap.Error(err))
		return
	}
	if current == old {
		return
	}
	w.logger.Info("config reloaded",
		zap.String("provider", string(current.Provider)),
		zap.String("model", current.Model))
	if current.Hotkey != old.Hotkey {
		w.logger.Warn("hotkey changed on disk, restart to apply",
			zap.String("hotkey", current.Hotkey))
	}
	if w.onChange != nil {
		w.onChange(old, current)
	}
}
