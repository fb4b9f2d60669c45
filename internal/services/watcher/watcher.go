// Package watcher turns filesystem notifications under the log root into
// coalesced tick triggers. Notifications only shorten the wait until the
// next tick; the ticker still runs when events are lost.
package watcher

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/claude-usage-tui/internal/logger"
)

// DefaultDebounce collapses bursts of appends into one trigger.
const DefaultDebounce = 250 * time.Millisecond

// maxDirDepth matches ingest discovery: root, project, one nested level.
const maxDirDepth = 2

// Watcher watches the log root and its project directories.
type Watcher struct {
	fs        *fsnotify.Watcher
	timer     *time.Timer
	trigger   chan struct{}
	stopChan  chan struct{}
	root      string
	debounce  time.Duration
	mu        sync.Mutex
	closeOnce sync.Once
}

// New starts watching root. Directories created later are added as they
// appear.
func New(root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsw,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		root:     root,
		debounce: debounce,
	}

	if err := fsw.Add(root); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	w.addTree(root)

	go w.watchLoop()
	return w, nil
}

// Triggers delivers at most one pending signal at a time.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.trigger
}

// addTree watches every directory below dir within the depth limit.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		depth := w.depth(path)
		if depth > maxDirDepth {
			return filepath.SkipDir
		}
		if path == w.root {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			logger.Debug("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error", "error", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) && w.depth(event.Name) <= maxDirDepth {
		// Only directories can be added; files fail silently.
		w.addTree(event.Name)
	}

	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopChan)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		err = w.fs.Close()
	})
	return err
}
