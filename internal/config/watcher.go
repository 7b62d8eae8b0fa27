package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"estategate/pkg/logging"
)

// DefaultDebounceInterval coalesces bursts of editor writes into one reload.
const DefaultDebounceInterval = 500 * time.Millisecond

// ReloadFunc receives each successfully loaded configuration.
type ReloadFunc func(GatewayConfig)

// Watcher reloads config.yaml when it changes on disk.
//
// The containing directory is watched rather than the file, so that editors
// replacing the file via rename are still observed. Invalid configurations
// are logged and skipped; the previous configuration stays in effect.
type Watcher struct {
	mu sync.Mutex

	configPath       string
	debounceInterval time.Duration
	onReload         ReloadFunc

	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for config.yaml inside configPath.
func NewWatcher(configPath string, debounceInterval time.Duration, onReload ReloadFunc) *Watcher {
	if debounceInterval == 0 {
		debounceInterval = DefaultDebounceInterval
	}
	return &Watcher{
		configPath:       configPath,
		debounceInterval: debounceInterval,
		onReload:         onReload,
	}
}

// Start begins watching. It returns once the watch is established.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.configPath); err != nil {
		fw.Close()
		return err
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(ctx, fw, w.stopCh)

	logging.Info("Config", "Watching %s for configuration changes", ConfigFilePath(w.configPath))
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context, fw *fsnotify.Watcher, stopCh chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return

		case <-stopCh:
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error("Config", err, "Configuration watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceInterval, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.configPath)
	if err != nil {
		logging.Warn("Config", "Ignoring changed configuration: %v", err)
		return
	}

	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}

	logging.Info("Config", "Configuration reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
