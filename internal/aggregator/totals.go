package aggregator

import (
	"slices"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/models"
)

// Totals accumulates cost, request count and tokens.
type Totals struct {
	Tokens   models.TokenUsage
	Cost     float64
	Requests int
}

func (t *Totals) add(rec *models.UsageRecord) {
	t.Cost += rec.Cost
	t.Requests++
	t.Tokens = t.Tokens.Add(rec.Usage)
}

func (t *Totals) sub(rec *models.UsageRecord) {
	t.Cost -= rec.Cost
	t.Requests--
	t.Tokens = t.Tokens.Sub(rec.Usage)
	if t.Requests <= 0 {
		*t = Totals{}
	}
}

func (t *Totals) merge(o Totals) {
	t.Cost += o.Cost
	t.Requests += o.Requests
	t.Tokens = t.Tokens.Add(o.Tokens)
}

// bucket aggregates records whose timestamps fall in [start, start+width).
// Window buckets keep their records; horizon buckets only keep totals.
type bucket struct {
	start   time.Time
	models  map[string]Totals
	records []*entry
	total   Totals
}

func newBucket(start time.Time) *bucket {
	return &bucket{start: start, models: make(map[string]Totals)}
}

func (b *bucket) add(e *entry, keepRecord bool) {
	b.total.add(&e.rec)
	t := b.models[e.rec.Model]
	t.add(&e.rec)
	b.models[e.rec.Model] = t
	if keepRecord {
		b.records = append(b.records, e)
	}
}

// remove subtracts e from the totals. Buckets that keep records only
// subtract entries they actually hold.
func (b *bucket) remove(e *entry, keepsRecords bool) {
	if keepsRecords {
		i := slices.Index(b.records, e)
		if i < 0 {
			return
		}
		b.records = slices.Delete(b.records, i, i+1)
	}

	b.total.sub(&e.rec)
	if t, ok := b.models[e.rec.Model]; ok {
		t.sub(&e.rec)
		if t.Requests == 0 {
			delete(b.models, e.rec.Model)
		} else {
			b.models[e.rec.Model] = t
		}
	}
}

func (b *bucket) empty() bool {
	return b.total.Requests == 0
}

// filtered returns the bucket total restricted to filter.
func (b *bucket) filtered(filter ModelFilter) Totals {
	if filter == AllModels {
		return b.total
	}
	var t Totals
	for model, mt := range b.models {
		if filter.Matches(model) {
			t.merge(mt)
		}
	}
	return t
}
