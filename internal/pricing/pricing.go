// Package pricing computes request cost from token usage.
package pricing

import (
	"strings"

	"github.com/j-veylop/claude-usage-tui/internal/models"
)

// Rates are USD prices per million tokens.
type Rates struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
}

var (
	opus4     = Rates{Input: 15, Output: 75, CacheWrite: 18.75, CacheRead: 1.50}
	opus45    = Rates{Input: 5, Output: 25, CacheWrite: 6.25, CacheRead: 0.50}
	sonnet    = Rates{Input: 3, Output: 15, CacheWrite: 3.75, CacheRead: 0.30}
	haiku35   = Rates{Input: 0.80, Output: 4, CacheWrite: 1, CacheRead: 0.08}
	haiku45   = Rates{Input: 1, Output: 5, CacheWrite: 1.25, CacheRead: 0.10}
	haiku3    = Rates{Input: 0.25, Output: 1.25, CacheWrite: 0.30, CacheRead: 0.03}
	noCharges = Rates{}
)

// table is keyed by model identifier without the date suffix.
var table = map[string]Rates{
	"claude-opus-4-5":   opus45,
	"claude-opus-4-1":   opus4,
	"claude-opus-4":     opus4,
	"claude-4-opus":     opus4,
	"claude-3-opus":     opus4,
	"claude-sonnet-4-5": sonnet,
	"claude-sonnet-4":   sonnet,
	"claude-4-sonnet":   sonnet,
	"claude-3-7-sonnet": sonnet,
	"claude-3-5-sonnet": sonnet,
	"claude-3-sonnet":   sonnet,
	"claude-haiku-4-5":  haiku45,
	"claude-3-5-haiku":  haiku35,
	"claude-3-haiku":    haiku3,
}

var familyDefaults = map[string]Rates{
	models.FamilyOpus:   opus4,
	models.FamilySonnet: sonnet,
	models.FamilyHaiku:  haiku35,
}

// Lookup returns the rates for model. Unknown versions of a known family
// fall back to the family default; ok is false when nothing matched.
func Lookup(model string) (Rates, bool) {
	m := strings.ToLower(model)
	if m == models.SyntheticModel {
		return noCharges, true
	}
	if r, ok := table[m]; ok {
		return r, true
	}

	// Strip trailing "-YYYYMMDD" or "-latest".
	base := m
	if i := strings.LastIndex(base, "-"); i > 0 {
		suffix := base[i+1:]
		if suffix == "latest" || (len(suffix) == 8 && strings.Trim(suffix, "0123456789") == "") {
			base = base[:i]
		}
	}
	if r, ok := table[base]; ok {
		return r, true
	}

	r, ok := familyDefaults[models.Family(m)]
	return r, ok
}

// Cost returns the USD cost of usage for model. Unknown models cost zero.
func Cost(model string, u models.TokenUsage) float64 {
	r, ok := Lookup(model)
	if !ok {
		return 0
	}
	return r.Cost(u)
}

// Cost applies the rates to u.
func (r Rates) Cost(u models.TokenUsage) float64 {
	const perMillion = 1_000_000
	return (float64(u.Input)*r.Input +
		float64(u.Output)*r.Output +
		float64(u.CacheWrite)*r.CacheWrite +
		float64(u.CacheRead)*r.CacheRead) / perMillion
}
