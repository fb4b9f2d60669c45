package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/claude-usage-tui/internal/models"
)

// BucketView is one bucket of the window as rendered. Empty buckets are
// present with zero totals.
type BucketView struct {
	Start time.Time
	Totals
}

// ModelTotals is the contribution of one model.
type ModelTotals struct {
	Model  string
	Family string
	Totals
}

// Snapshot is an immutable copy of the aggregator state, restricted to a
// model filter.
type Snapshot struct {
	GeneratedAt time.Time
	Filter      ModelFilter
	// Buckets covers the whole window, oldest first.
	Buckets []BucketView
	// Models is the window breakdown per model, most expensive first.
	Models []ModelTotals
	// Families is the window breakdown per model family.
	Families []ModelTotals
	// Feed lists recent requests, newest first.
	Feed []models.UsageRecord
	// KnownModels lists every model seen within the horizon, sorted.
	KnownModels []string
	Window      Totals
	CurrentHour Totals
	Last5h      Totals
	Last24h     Totals
	Granularity time.Duration
	Range       TimeRange
	PendingFeed int
	Retained    int
	FeedPaused  bool
}

// Snapshot builds a view of the current state for filter.
func (a *Aggregator) Snapshot(filter ModelFilter) Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now().UTC()
	g := a.rng.Granularity()
	start := a.windowStart(now)

	snap := Snapshot{
		GeneratedAt: now,
		Filter:      filter,
		Range:       a.rng,
		Granularity: g,
		FeedPaused:  a.feed.paused,
		PendingFeed: a.feed.pending(),
		Retained:    len(a.records),
		Buckets:     make([]BucketView, a.rng.BucketCount()),
	}

	for i := range snap.Buckets {
		snap.Buckets[i].Start = start.Add(time.Duration(i) * g)
	}

	perModel := make(map[string]Totals)
	for _, b := range a.window {
		idx := int(b.start.Sub(start) / g)
		if idx < 0 || idx >= len(snap.Buckets) {
			continue
		}
		t := b.filtered(filter)
		snap.Buckets[idx].Totals = t
		snap.Window.merge(t)
		for model, mt := range b.models {
			if filter.Matches(model) {
				acc := perModel[model]
				acc.merge(mt)
				perModel[model] = acc
			}
		}
	}
	snap.Models, snap.Families = breakdown(perModel)

	hourCutoff := now.Add(-time.Hour)
	fiveCutoff := now.Add(-5 * time.Hour)
	dayCutoff := now.Add(-24 * time.Hour)
	known := make(map[string]struct{})
	for _, b := range a.minutes {
		for model := range b.models {
			known[model] = struct{}{}
		}
		end := b.start.Add(time.Minute)
		if !end.After(dayCutoff) {
			continue
		}
		t := b.filtered(filter)
		snap.Last24h.merge(t)
		if end.After(fiveCutoff) {
			snap.Last5h.merge(t)
		}
		if end.After(hourCutoff) {
			snap.CurrentHour.merge(t)
		}
	}
	snap.KnownModels = lo.Keys(known)
	sort.Strings(snap.KnownModels)

	for _, e := range a.feed.visible() {
		if filter.Matches(e.rec.Model) {
			snap.Feed = append(snap.Feed, e.rec)
		}
	}

	return snap
}

func breakdown(perModel map[string]Totals) (byModel, byFamily []ModelTotals) {
	families := make(map[string]Totals)
	for model, t := range perModel {
		fam := models.Family(model)
		byModel = append(byModel, ModelTotals{Model: model, Family: fam, Totals: t})
		acc := families[fam]
		acc.merge(t)
		families[fam] = acc
	}
	for fam, t := range families {
		byFamily = append(byFamily, ModelTotals{Model: fam, Family: fam, Totals: t})
	}
	sortByCost(byModel)
	sortByCost(byFamily)
	return byModel, byFamily
}

func sortByCost(list []ModelTotals) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Cost != list[j].Cost {
			return list[i].Cost > list[j].Cost
		}
		return list[i].Model < list[j].Model
	})
}

// Costs returns the per-bucket cost series.
func (s Snapshot) Costs() []float64 {
	return lo.Map(s.Buckets, func(b BucketView, _ int) float64 { return b.Cost })
}

// Requests returns the per-bucket request count series.
func (s Snapshot) Requests() []float64 {
	return lo.Map(s.Buckets, func(b BucketView, _ int) float64 { return float64(b.Requests) })
}
