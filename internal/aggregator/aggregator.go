// Package aggregator folds usage records into a rolling time window,
// a 24 hour minute-level horizon and a bounded live feed.
//
// Records are deduplicated by request ID. When the same request appears
// more than once, the copy with the latest timestamp wins and earlier
// contributions are retracted. Records without a request ID are always
// treated as new.
package aggregator

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/models"
	"github.com/j-veylop/claude-usage-tui/internal/pricing"
)

// DefaultHorizon is how long minute aggregates and records are retained.
const DefaultHorizon = 24 * time.Hour

// CostFunc prices a record's token usage.
type CostFunc func(model string, usage models.TokenUsage) float64

// Outcome describes what Ingest did with a record.
type Outcome int

// Ingest outcomes.
const (
	// Added means the record was new.
	Added Outcome = iota
	// Replaced means the record superseded an older copy of the same request.
	Replaced
	// Duplicate means an equal or newer copy was already held.
	Duplicate
	// Stale means the record is older than the retention horizon.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Replaced:
		return "replaced"
	case Duplicate:
		return "duplicate"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Accepted reports whether the record now contributes to totals.
func (o Outcome) Accepted() bool {
	return o == Added || o == Replaced
}

// BatchResult counts outcomes of IngestBatch.
type BatchResult struct {
	// Accepted holds the priced copies of accepted records, in input order.
	Accepted   []models.UsageRecord
	Added      int
	Replaced   int
	Duplicates int
	Stale      int
}

// Options configures an Aggregator. Zero values select defaults.
type Options struct {
	Cost         CostFunc
	Now          func() time.Time
	Range        TimeRange
	FeedCapacity int
	Horizon      time.Duration
}

type entry struct {
	rec      models.UsageRecord
	key      string
	seq      uint64
	pauseGen uint64
}

// Aggregator is safe for concurrent use. The lock is only held while
// folding records in memory, never during I/O.
type Aggregator struct {
	now     func() time.Time
	cost    CostFunc
	records map[string]*entry
	minutes map[int64]*bucket
	feed    *feed
	filter  ModelFilter
	window  []*bucket
	horizon time.Duration
	seq     uint64
	rng     TimeRange
	mu      sync.RWMutex
}

// New creates an empty aggregator.
func New(opts Options) *Aggregator {
	if opts.Cost == nil {
		opts.Cost = pricing.Cost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !opts.Range.Valid() {
		opts.Range = DefaultRange
	}
	if opts.Horizon < DefaultHorizon {
		opts.Horizon = DefaultHorizon
	}

	return &Aggregator{
		now:     opts.Now,
		cost:    opts.Cost,
		records: make(map[string]*entry),
		minutes: make(map[int64]*bucket),
		feed:    newFeed(opts.FeedCapacity),
		horizon: opts.Horizon,
		rng:     opts.Range,
	}
}

// Horizon returns the retention horizon.
func (a *Aggregator) Horizon() time.Duration {
	return a.horizon
}

// Ingest folds rec into the window, horizon and feed. Cost is computed here,
// once per accepted record.
func (a *Aggregator) Ingest(rec models.UsageRecord) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out, _ := a.ingestLocked(rec, a.now().UTC())
	return out
}

// IngestBatch ingests recs under a single lock acquisition.
func (a *Aggregator) IngestBatch(recs []models.UsageRecord) BatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	var res BatchResult
	for _, rec := range recs {
		out, e := a.ingestLocked(rec, now)
		switch out {
		case Added:
			res.Added++
		case Replaced:
			res.Replaced++
		case Duplicate:
			res.Duplicates++
		case Stale:
			res.Stale++
		}
		if out.Accepted() {
			res.Accepted = append(res.Accepted, e.rec)
		}
	}
	return res
}

func (a *Aggregator) ingestLocked(rec models.UsageRecord, now time.Time) (Outcome, *entry) {
	rec.Timestamp = rec.Timestamp.UTC()
	if rec.Timestamp.Before(now.Add(-a.horizon)) {
		return Stale, nil
	}

	a.seq++
	key := "anon:" + strconv.FormatUint(a.seq, 10)
	outcome := Added
	if rec.HasRequestID() {
		key = rec.DedupKey()
		if prev, ok := a.records[key]; ok {
			if !rec.Timestamp.After(prev.rec.Timestamp) {
				return Duplicate, nil
			}
			a.retract(prev)
			outcome = Replaced
		}
	}

	rec.Cost = a.cost(rec.Model, rec.Usage)
	e := &entry{rec: rec, key: key, seq: a.seq}
	a.records[key] = e
	a.addToHorizon(e)
	if !a.bucketStart(rec.Timestamp).Before(a.windowStart(now)) {
		a.addToWindow(e)
	}
	a.feed.push(e)
	return outcome, e
}

func (a *Aggregator) retract(e *entry) {
	delete(a.records, e.key)

	mk := minuteKey(e.rec.Timestamp)
	if b, ok := a.minutes[mk]; ok {
		b.remove(e, false)
		if b.empty() {
			delete(a.minutes, mk)
		}
	}

	if i, ok := a.findWindowBucket(a.bucketStart(e.rec.Timestamp)); ok {
		b := a.window[i]
		b.remove(e, true)
		if b.empty() {
			a.window = append(a.window[:i], a.window[i+1:]...)
		}
	}

	a.feed.remove(e)
}

func minuteKey(ts time.Time) int64 {
	return ts.Truncate(time.Minute).Unix()
}

func (a *Aggregator) addToHorizon(e *entry) {
	mk := minuteKey(e.rec.Timestamp)
	b, ok := a.minutes[mk]
	if !ok {
		b = newBucket(time.Unix(mk, 0).UTC())
		a.minutes[mk] = b
	}
	b.add(e, false)
}

func (a *Aggregator) bucketStart(ts time.Time) time.Time {
	return ts.Truncate(a.rng.Granularity()).UTC()
}

// windowStart is the start of the oldest bucket the window may hold at now.
func (a *Aggregator) windowStart(now time.Time) time.Time {
	g := a.rng.Granularity()
	return now.Truncate(g).Add(-time.Duration(a.rng.BucketCount()-1) * g).UTC()
}

func (a *Aggregator) findWindowBucket(start time.Time) (int, bool) {
	i := sort.Search(len(a.window), func(i int) bool { return !a.window[i].start.Before(start) })
	return i, i < len(a.window) && a.window[i].start.Equal(start)
}

func (a *Aggregator) addToWindow(e *entry) {
	start := a.bucketStart(e.rec.Timestamp)
	i, ok := a.findWindowBucket(start)
	if !ok {
		a.window = append(a.window, nil)
		copy(a.window[i+1:], a.window[i:])
		a.window[i] = newBucket(start)
	}
	a.window[i].add(e, true)
}

// EvictOlderThan drops window buckets that end at or before cutoff.
// Horizon aggregates are untouched.
func (a *Aggregator) EvictOlderThan(cutoff time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.evictWindow(cutoff)
}

func (a *Aggregator) evictWindow(cutoff time.Time) int {
	g := a.rng.Granularity()
	n := 0
	for n < len(a.window) && !a.window[n].start.Add(g).After(cutoff) {
		n++
	}
	a.window = a.window[n:]
	return n
}

// Evict trims the window to the active range and drops horizon data older
// than the retention horizon, both relative to now.
func (a *Aggregator) Evict(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evictLocked(now.UTC())
}

func (a *Aggregator) evictLocked(now time.Time) {
	a.evictWindow(a.windowStart(now))

	cutoff := now.Add(-a.horizon)
	for mk, b := range a.minutes {
		if !b.start.Add(time.Minute).After(cutoff) {
			delete(a.minutes, mk)
		}
	}
	for key, e := range a.records {
		if e.rec.Timestamp.Before(cutoff) {
			delete(a.records, key)
		}
	}
	a.feed.retain(func(e *entry) bool { return !e.rec.Timestamp.Before(cutoff) })
}

// Range returns the active time range.
func (a *Aggregator) Range() TimeRange {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rng
}

// SetRange switches the window length and bucket width. The window is
// rebuilt from retained records, so nothing inside the horizon is lost.
func (a *Aggregator) SetRange(r TimeRange) error {
	if !r.Valid() {
		_, err := RangeFromHours(int(r))
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if r == a.rng {
		return nil
	}
	a.rng = r
	a.rebuildWindow(a.now().UTC())
	return nil
}

func (a *Aggregator) rebuildWindow(now time.Time) {
	a.window = nil
	start := a.windowStart(now)

	entries := make([]*entry, 0, len(a.records))
	for _, e := range a.records {
		if !a.bucketStart(e.rec.Timestamp).Before(start) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	for _, e := range entries {
		a.addToWindow(e)
	}
}

// Filter returns the active model filter.
func (a *Aggregator) Filter() ModelFilter {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.filter
}

// SetFilter changes the active model filter. Filtering only affects views.
func (a *Aggregator) SetFilter(f ModelFilter) {
	a.mu.Lock()
	a.filter = f
	a.mu.Unlock()
}

// Paused reports whether the feed is frozen.
func (a *Aggregator) Paused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.feed.paused
}

// SetPaused freezes or releases the feed view.
func (a *Aggregator) SetPaused(paused bool) {
	a.mu.Lock()
	a.feed.setPaused(paused)
	a.mu.Unlock()
}

// TogglePause flips the feed pause state and returns the new state.
func (a *Aggregator) TogglePause() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feed.setPaused(!a.feed.paused)
	return a.feed.paused
}

// Len returns the number of records retained within the horizon.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Reset discards all ingested data. Range, filter and pause state are kept.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = make(map[string]*entry)
	a.minutes = make(map[int64]*bucket)
	a.window = nil
	a.feed.reset()
}
