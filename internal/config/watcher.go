package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 500 * time.Millisecond

// SyncConfigWatcher reloads the sync configuration when its file changes on
// disk and notifies the registered callbacks with the new value.
type SyncConfigWatcher struct {
	store     *SyncConfigStore
	callbacks []func(SyncConfig)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// NewSyncConfigWatcher starts watching the directory holding the sync
// configuration file.
func NewSyncConfigWatcher(store *SyncConfigStore, logger *zap.Logger) (*SyncConfigWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(store.Path())
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &SyncConfigWatcher{
		store:   store,
		logger:  logger.Named("config_watcher"),
		watcher: fsWatcher,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.watchLoop()

	w.logger.Info("Watching sync configuration", zap.String("path", store.Path()))
	return w, nil
}

// OnChange registers a callback invoked after every effective change.
func (w *SyncConfigWatcher) OnChange(callback func(SyncConfig)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Stop stops the watcher and waits for the loop to exit. Safe to call twice.
func (w *SyncConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.done
}

func (w *SyncConfigWatcher) watchLoop() {
	defer close(w.done)
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	target := filepath.Base(w.store.Path())
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.Debug("Sync configuration file changed",
				zap.String("operation", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("Stopping configuration watcher")
			return
		}
	}
}

func (w *SyncConfigWatcher) reload() {
	before := w.store.Get()
	after, err := w.store.Load()
	if err != nil {
		w.logger.Error("Failed to reload sync configuration", zap.Error(err))
		return
	}
	if before == after {
		w.logger.Debug("Sync configuration unchanged after reload")
		return
	}

	w.logger.Info("Sync configuration reloaded",
		zap.Bool("auto_sync", after.AutoSync),
		zap.Int("interval_minutes", after.IntervalMinutes),
		zap.Bool("has_remote", after.GistID != ""),
	)
	w.notifyCallbacks(after)
}

func (w *SyncConfigWatcher) notifyCallbacks(cfg SyncConfig) {
	w.mu.RLock()
	callbacks := make([]func(SyncConfig), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for i, callback := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Callback panicked",
						zap.Int("callback_index", i),
						zap.Any("panic", r),
					)
				}
			}()
			callback(cfg)
		}()
	}
}
