package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/escalate-core/pkg/logger"
)

// Watcher re-reads the configuration file when it changes on disk and
// notifies registered callbacks with the fresh config. It is used to
// hot-apply severity policy overrides without a restart.
type Watcher struct {
	configPath string
	logger     logger.Logger
	mu         sync.RWMutex
	callbacks  []func(*Config)
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewWatcher(configPath string, log logger.Logger) *Watcher {
	return &Watcher{
		configPath: configPath,
		logger:     log,
		callbacks:  make([]func(*Config), 0),
		stopCh:     make(chan struct{}),
	}
}

// OnReload registers a callback invoked after every successful reload.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start begins watching the config file and returns once the watch is
// established; the event loop runs in the background until the context
// is cancelled or Stop is called. Reload errors are logged and the
// previous config stays in effect.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(w.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	w.logger.Info("Configuration watcher started", "configPath", w.configPath)
	go w.loop(ctx, watcher)
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				w.logger.Info("Configuration file changed, reloading", "file", event.Name)
				cfg, err := LoadFile(w.configPath)
				if err != nil {
					w.logger.Error("Failed to reload configuration", "error", err)
					continue
				}
				w.notify(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Configuration watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("Configuration watcher stopping")
			return

		case <-w.stopCh:
			w.logger.Info("Configuration watcher stopped")
			return
		}
	}
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Watcher) notify(cfg *Config) {
	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}
