// Package tracker remembers how far each log file has been read so that
// later passes only process appended bytes.
package tracker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/j-veylop/claude-usage-tui/internal/logger"
)

// stateVersion is bumped whenever the on-disk layout changes.
const stateVersion = 1

var (
	// ErrCorruptState is returned by Restore when the state file cannot be used.
	ErrCorruptState = errors.New("corrupt tracker state")
	// ErrOffsetBeyondSize is returned by Commit when offset > size.
	ErrOffsetBeyondSize = errors.New("offset beyond file size")
)

// Status classifies a file relative to its last committed state.
type Status int

// File statuses.
const (
	StatusNew Status = iota
	StatusUnchanged
	StatusModified
	StatusRotated
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusUnchanged:
		return "unchanged"
	case StatusModified:
		return "modified"
	case StatusRotated:
		return "rotated"
	default:
		return "unknown"
	}
}

// FileState is the committed read position of one file.
type FileState struct {
	LastModified   time.Time `yaml:"last_modified"`
	Identity       string    `yaml:"identity,omitempty"`
	LastSize       int64     `yaml:"last_size"`
	LastReadOffset int64     `yaml:"last_read_offset"`
}

// CheckResult is what Check observed about a file.
type CheckResult struct {
	ModTime    time.Time
	Identity   string
	Status     Status
	FromOffset int64
	Size       int64
}

// NeedsRead reports whether there may be unread bytes.
func (r CheckResult) NeedsRead() bool {
	return r.Status != StatusUnchanged
}

type stateFile struct {
	Files   map[string]FileState `yaml:"files"`
	Version int                  `yaml:"version"`
}

// Tracker maps file paths to their committed FileState.
type Tracker struct {
	states map[string]FileState
	path   string
	mu     sync.RWMutex
}

// New creates an empty tracker persisted at statePath. An empty statePath
// disables persistence.
func New(statePath string) *Tracker {
	return &Tracker{
		states: make(map[string]FileState),
		path:   statePath,
	}
}

// StatePath returns the persistence location.
func (t *Tracker) StatePath() string {
	return t.path
}

// Check stats path and compares it with the committed state.
// A changed identity or a size below the committed size is a rotation;
// both restart reading at offset 0.
func (t *Tracker) Check(path string) (CheckResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return CheckResult{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	res := CheckResult{
		ModTime:  info.ModTime(),
		Identity: FileIdentity(info),
		Size:     info.Size(),
	}

	t.mu.RLock()
	st, ok := t.states[path]
	t.mu.RUnlock()

	switch {
	case !ok:
		res.Status = StatusNew
	case st.Identity != "" && res.Identity != "" && st.Identity != res.Identity:
		res.Status = StatusRotated
	case res.Size < st.LastSize:
		res.Status = StatusRotated
	case res.Size > st.LastSize || res.ModTime.After(st.LastModified):
		res.Status = StatusModified
		res.FromOffset = st.LastReadOffset
	default:
		res.Status = StatusUnchanged
		res.FromOffset = st.LastReadOffset
	}

	return res, nil
}

// Commit records that path has been consumed up to offset. size is the file
// length observed while reading; offset must not exceed it.
func (t *Tracker) Commit(path string, offset, size int64, modTime time.Time, identity string) error {
	if offset < 0 || offset > size {
		return fmt.Errorf("commit %s at %d of %d: %w", path, offset, size, ErrOffsetBeyondSize)
	}

	t.mu.Lock()
	t.states[path] = FileState{
		LastModified:   modTime,
		Identity:       identity,
		LastSize:       size,
		LastReadOffset: offset,
	}
	t.mu.Unlock()
	return nil
}

// Get returns the committed state of path.
func (t *Tracker) Get(path string) (FileState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.states[path]
	return st, ok
}

// Remove forgets path.
func (t *Tracker) Remove(path string) {
	t.mu.Lock()
	delete(t.states, path)
	t.mu.Unlock()
}

// Reset forgets every file.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.states = make(map[string]FileState)
	t.mu.Unlock()
}

// Len returns the number of tracked files.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

// Paths returns the tracked paths in sorted order.
func (t *Tracker) Paths() []string {
	t.mu.RLock()
	paths := lo.Keys(t.states)
	t.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// TotalOffset returns the sum of committed offsets across files.
func (t *Tracker) TotalOffset() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.SumBy(lo.Values(t.states), func(s FileState) int64 { return s.LastReadOffset })
}

// Persist writes the state atomically via a temp file and rename.
func (t *Tracker) Persist() error {
	if t.path == "" {
		return nil
	}

	t.mu.RLock()
	doc := stateFile{Version: stateVersion, Files: make(map[string]FileState, len(t.states))}
	for p, st := range t.states {
		doc.Files[p] = st
	}
	t.mu.RUnlock()

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal tracker state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := t.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Restore loads previously persisted state. A missing file is not an error.
// On any other failure the tracker is left empty and the returned error
// wraps ErrCorruptState.
func (t *Tracker) Restore() error {
	t.Reset()
	if t.path == "" {
		return nil
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrCorruptState, err)
	}

	var doc stateFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if doc.Version != stateVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptState, doc.Version)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for p, st := range doc.Files {
		if st.LastReadOffset < 0 || st.LastReadOffset > st.LastSize {
			logger.Warn("Dropping invalid tracker entry", "path", p, "offset", st.LastReadOffset, "size", st.LastSize)
			continue
		}
		t.states[p] = st
	}
	return nil
}
