// Package ingest drives incremental ingestion: each tick discovers log
// files, reads only what was appended since the last tick, normalizes the
// new lines and folds the resulting records into the aggregator.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/logger"
	"github.com/j-veylop/claude-usage-tui/internal/models"
	"github.com/j-veylop/claude-usage-tui/internal/normalize"
	"github.com/j-veylop/claude-usage-tui/internal/reader"
	"github.com/j-veylop/claude-usage-tui/internal/tracker"
)

// ErrLogRoot is returned by Tick when the log root cannot be listed.
var ErrLogRoot = errors.New("log root unreadable")

const (
	defaultFullRescanInterval = 24 * time.Hour
	defaultHistoryRetention   = 7 * 24 * time.Hour
	pruneInterval             = time.Hour
	// ingestChunk bounds the records held between reading and folding.
	ingestChunk = 1024
	// maxDepth limits discovery to <root>/<project>/<sub>/*.jsonl.
	maxDepth = 3
)

// History stores accepted records so a restart can rebuild the window.
type History interface {
	InsertUsageRecords(ctx context.Context, recs []models.UsageRecord) (int, error)
	GetUsageRecordsSince(ctx context.Context, since time.Time) ([]models.UsageRecord, error)
	PruneUsageRecords(ctx context.Context, before time.Time) (int64, error)
}

// Options configures a Coordinator.
type Options struct {
	Tracker            *tracker.Tracker
	Aggregator         *aggregator.Aggregator
	History            History
	Now                func() time.Time
	Root               string
	FullRescanInterval time.Duration
	HistoryRetention   time.Duration
}

// FileResult describes what a tick did with one file.
type FileResult struct {
	Err        error
	Path       string
	Status     tracker.Status
	From       int64
	BytesRead  int64
	Records    int
	Duplicates int
	Stale      int
	Skipped    int
	Malformed  int
}

// TickResult summarizes one tick.
type TickResult struct {
	Started      time.Time
	Files        []FileResult
	Duration     time.Duration
	BytesRead    int64
	FilesSeen    int
	FilesRemoved int
	NewRecords   int
	Duplicates   int
	Stale        int
	Skipped      int
	Malformed    int
	Errors       int
	FullRescan   bool
}

// Coordinator serializes ticks: concurrent callers of Tick share the
// result of the tick already in flight.
type Coordinator struct {
	lastFull  time.Time
	lastPrune time.Time
	opts      Options
	last      TickResult
	group     singleflight.Group
	malformed rate.Sometimes
	// unsaved holds accepted records whose history write failed, by file.
	// The file's offset is not committed until they are saved.
	unsaved     map[string][]models.UsageRecord
	mu          sync.Mutex
	forceRescan atomic.Bool
}

// New creates a coordinator.
func New(opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FullRescanInterval <= 0 {
		opts.FullRescanInterval = defaultFullRescanInterval
	}
	if opts.HistoryRetention <= 0 {
		opts.HistoryRetention = defaultHistoryRetention
	}
	return &Coordinator{
		opts:      opts,
		malformed: rate.Sometimes{First: 5, Interval: 30 * time.Second},
		unsaved:   make(map[string][]models.UsageRecord),
	}
}

// Root returns the directory scanned for logs.
func (c *Coordinator) Root() string {
	return c.opts.Root
}

// Restore loads persisted tracker offsets and rebuilds the aggregator from
// history. Without usable state or history the next tick rescans everything.
func (c *Coordinator) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.opts.Tracker.Restore(); err != nil {
		logger.Warn("Tracker state unusable, scheduling full rescan", "path", c.opts.Tracker.StatePath(), "error", err)
		c.forceRescan.Store(true)
		return nil
	}
	if c.opts.Tracker.Len() == 0 {
		c.forceRescan.Store(true)
		return nil
	}
	if c.opts.History == nil {
		// Offsets alone would skip everything already read.
		logger.Info("No history store, scheduling full rescan")
		c.forceRescan.Store(true)
		return nil
	}

	now := c.opts.Now()
	recs, err := c.opts.History.GetUsageRecordsSince(ctx, now.Add(-c.opts.Aggregator.Horizon()))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("Failed to load history, scheduling full rescan", "error", err)
		c.forceRescan.Store(true)
		return nil
	}

	batch := c.opts.Aggregator.IngestBatch(recs)
	c.lastFull = now
	logger.Info("Restored usage state",
		"files", c.opts.Tracker.Len(),
		"records", batch.Added+batch.Replaced,
		"offset_total", humanize.Bytes(uint64(c.opts.Tracker.TotalOffset())))
	return nil
}

// ForceFullRescan makes the next tick forget all offsets and re-read every
// file from the beginning.
func (c *Coordinator) ForceFullRescan() {
	c.forceRescan.Store(true)
}

// LastResult returns the result of the most recent completed tick.
func (c *Coordinator) LastResult() TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Tick runs one ingestion pass. If a tick is already running, Tick waits
// for it and returns its result instead of starting another.
func (c *Coordinator) Tick(ctx context.Context) (TickResult, error) {
	v, err, _ := c.group.Do("tick", func() (any, error) {
		return c.tick(ctx)
	})
	res, _ := v.(TickResult)
	return res, err
}

func (c *Coordinator) tick(ctx context.Context) (TickResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	began := time.Now()
	now := c.opts.Now()
	res := TickResult{Started: now}

	if c.lastFull.IsZero() {
		c.lastFull = now
	}
	if c.forceRescan.Swap(false) || now.Sub(c.lastFull) >= c.opts.FullRescanInterval {
		res.FullRescan = true
		c.lastFull = now
		c.opts.Tracker.Reset()
		c.opts.Aggregator.Reset()
		clear(c.unsaved)
		logger.Info("Full rescan", "root", c.opts.Root)
	}

	paths, err := discover(c.opts.Root)
	if err != nil {
		return res, err
	}
	res.FilesSeen = len(paths)
	res.FilesRemoved = c.removeVanished(ctx, paths)

	var ctxErr error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}

		fr := c.processFile(ctx, path)
		if fr.Status == tracker.StatusUnchanged && fr.Err == nil {
			continue
		}
		res.Files = append(res.Files, fr)
		res.BytesRead += fr.BytesRead
		res.Skipped += fr.Skipped
		res.Malformed += fr.Malformed
		if fr.Err != nil {
			res.Errors++
		}
	}
	for _, fr := range res.Files {
		res.NewRecords += fr.Records
		res.Duplicates += fr.Duplicates
		res.Stale += fr.Stale
	}

	c.opts.Aggregator.Evict(c.opts.Now())
	if err := c.opts.Tracker.Persist(); err != nil {
		logger.Warn("Failed to persist tracker state", "error", err)
	}
	c.pruneHistory(ctx, now)

	res.Duration = time.Since(began)
	c.last = res
	c.logResult(res)
	return res, ctxErr
}

// processFile runs check, read and commit for one file. The offset is
// only committed after every line of the increment has been ingested.
func (c *Coordinator) processFile(ctx context.Context, path string) FileResult {
	fr := FileResult{Path: path}

	chk, err := c.opts.Tracker.Check(path)
	if err != nil {
		c.handleIOError(path, err)
		fr.Err = err
		return fr
	}
	fr.Status = chk.Status
	if !chk.NeedsRead() {
		return fr
	}
	if chk.Status == tracker.StatusRotated {
		logger.Info("Log file rotated, reading from start", "path", path)
	}

	fr.From = chk.FromOffset
	var (
		pending = make([]models.UsageRecord, 0, ingestChunk)
		histErr error
	)
	// flush folds pending records into the aggregator and writes the
	// accepted ones, plus any held from an earlier failure, to history.
	flush := func() error {
		var accepted []models.UsageRecord
		if len(pending) > 0 {
			batch := c.opts.Aggregator.IngestBatch(pending)
			pending = pending[:0]
			fr.Records += batch.Added + batch.Replaced
			fr.Duplicates += batch.Duplicates
			fr.Stale += batch.Stale
			accepted = batch.Accepted
		}
		histErr = c.saveHistory(ctx, path, accepted)
		return histErr
	}
	visit := func(line reader.Line) error {
		out := normalize.Normalize(line.Data)
		switch out.Kind {
		case normalize.KindRecord:
			rec := out.Record
			rec.Source = models.Source{Path: path, Identity: chk.Identity, Offset: line.Offset}
			pending = append(pending, rec)
		case normalize.KindSkip:
			fr.Skipped++
		case normalize.KindMalformed:
			fr.Malformed++
			c.malformed.Do(func() {
				logger.Debug("Skipping malformed log line", "path", path, "offset", line.Offset, "reason", out.Reason)
			})
		}
		if len(pending) >= ingestChunk {
			return flush()
		}
		return nil
	}

	inc, err := reader.ReadIncrement(path, fr.From, visit)
	if errors.Is(err, reader.ErrTruncated) {
		logger.Info("Log file shrank below offset, reading from start", "path", path)
		fr.Status = tracker.StatusRotated
		fr.From = 0
		inc, err = reader.ReadIncrement(path, 0, visit)
	}
	if err == nil {
		err = flush()
	}
	if histErr != nil {
		logger.Warn("History write failed, offset not committed", "path", path, "error", histErr)
		fr.Err = histErr
		return fr
	}
	if err != nil {
		c.handleIOError(path, err)
		fr.Err = err
		return fr
	}

	if err := c.opts.Tracker.Commit(path, inc.NewOffset, inc.EndOffset, chk.ModTime, chk.Identity); err != nil {
		logger.Warn("Failed to commit offset", "path", path, "error", err)
		fr.Err = err
		return fr
	}
	fr.BytesRead = inc.BytesConsumed()
	return fr
}

// saveHistory writes the file's pending records plus recs. The write is
// not cancelled with ctx so that an increment already folded in memory is
// not lost at shutdown. On failure the records are kept for the next tick.
func (c *Coordinator) saveHistory(ctx context.Context, path string, recs []models.UsageRecord) error {
	if c.opts.History == nil {
		return nil
	}
	pending := append(c.unsaved[path], recs...)
	if len(pending) == 0 {
		return nil
	}
	if _, err := c.opts.History.InsertUsageRecords(context.WithoutCancel(ctx), pending); err != nil {
		c.unsaved[path] = pending
		return fmt.Errorf("failed to save usage history: %w", err)
	}
	delete(c.unsaved, path)
	return nil
}

// handleIOError drops the tracker entry only when the file is confirmed gone.
func (c *Coordinator) handleIOError(path string, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		logger.Info("Log file disappeared", "path", path)
		c.opts.Tracker.Remove(path)
		return
	}
	logger.Warn("Skipping log file this tick", "path", path, "error", err)
}

func (c *Coordinator) removeVanished(ctx context.Context, current []string) int {
	seen := lo.SliceToMap(current, func(p string) (string, struct{}) { return p, struct{}{} })
	removed := 0
	for _, p := range c.opts.Tracker.Paths() {
		if _, ok := seen[p]; ok {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			c.opts.Tracker.Remove(p)
			removed++
		}
	}
	for p := range c.unsaved {
		if _, ok := seen[p]; ok {
			continue
		}
		// No offset left to hold back; one last attempt.
		if err := c.saveHistory(ctx, p, nil); err != nil {
			logger.Warn("Dropping unsaved records of removed file", "path", p, "records", len(c.unsaved[p]), "error", err)
		}
		delete(c.unsaved, p)
	}
	return removed
}

func (c *Coordinator) pruneHistory(ctx context.Context, now time.Time) {
	if c.opts.History == nil || now.Sub(c.lastPrune) < pruneInterval {
		return
	}
	c.lastPrune = now
	n, err := c.opts.History.PruneUsageRecords(ctx, now.Add(-c.opts.HistoryRetention))
	if err != nil {
		logger.Warn("Failed to prune usage history", "error", err)
		return
	}
	if n > 0 {
		logger.Debug("Pruned usage history", "rows", n)
	}
}

func (c *Coordinator) logResult(res TickResult) {
	args := []any{
		"files", len(res.Files),
		"bytes", humanize.Bytes(uint64(res.BytesRead)),
		"records", humanize.Comma(int64(res.NewRecords)),
		"duplicates", res.Duplicates,
		"malformed", res.Malformed,
		"duration", res.Duration.Round(time.Millisecond),
	}
	if res.BytesRead > 0 || res.FullRescan || res.Errors > 0 {
		logger.Info("Tick complete", args...)
		return
	}
	logger.Debug("Tick complete", args...)
}

// discover lists *.jsonl files under root, at most maxDepth levels deep,
// in lexical order. An unreadable root is an error; unreadable
// subdirectories are skipped.
func discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLogRoot, root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}

		if d.IsDir() {
			if depth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), ".jsonl") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogRoot, err)
	}
	return paths, nil
}
