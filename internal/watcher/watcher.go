// Package watcher recursively watches a project directory for source file
// changes and emits debounced paths for the orchestrator to handle.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer bounds how many pending paths can queue before new
// events are dropped rather than blocking the fsnotify goroutine.
const eventChannelBuffer = 500

// defaultExcludeDirs are skipped regardless of configuration, matching
// directories that never contain source the compiler cares about.
var defaultExcludeDirs = map[string]bool{
	".git": true, "bin": true, "obj": true, "node_modules": true,
}

// Watcher watches projectPath recursively and emits debounced file paths
// matching one of its configured extensions.
type Watcher struct {
	projectPath string
	debounce    time.Duration
	extensions  map[string]bool
	logger      *slog.Logger

	fsw *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]struct{}

	events        chan string
	droppedEvents atomic.Int64
}

// New constructs a Watcher rooted at projectPath, watching files whose
// extension (including leading dot) appears in extensions.
func New(projectPath string, extensions []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[ext] = true
	}

	return &Watcher{
		projectPath: projectPath,
		debounce:    debounce,
		extensions:  extSet,
		logger:      logger,
		fsw:         fsw,
		pending:     make(map[string]struct{}),
		events:      make(chan string, eventChannelBuffer),
	}, nil
}

// Events returns the channel of debounced, changed file paths.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// DroppedEvents returns how many events were dropped because the output
// channel was full.
func (w *Watcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

// Start adds recursive watches under projectPath and begins emitting
// events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.projectPath); err != nil {
		return err
	}
	go w.run(ctx)
	w.logger.Info("watcher: started", "path", w.projectPath, "debounce", w.debounce)
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if defaultExcludeDirs[base] || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watcher: failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: fsnotify error", "error", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			base := filepath.Base(event.Name)
			if !defaultExcludeDirs[base] && !strings.HasPrefix(base, ".") {
				if err := w.fsw.Add(event.Name); err != nil {
					w.logger.Warn("watcher: failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if !w.extensions[filepath.Ext(event.Name)] {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = struct{}{}
	w.pendingMu.Unlock()
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toSend := w.pending
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	for path := range toSend {
		select {
		case w.events <- path:
		default:
			dropped := w.droppedEvents.Add(1)
			w.logger.Warn("watcher: event channel full, dropping event", "path", path, "total_dropped", dropped)
		}
	}
}
