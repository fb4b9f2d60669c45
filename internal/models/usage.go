// Package models defines data structures and domain types.
package models

import (
	"strconv"
	"strings"
	"time"
)

// SyntheticModel is the sentinel model name Claude Code writes for
// locally generated messages that never reached the API.
const SyntheticModel = "<synthetic>"

// Model families.
const (
	FamilyOpus      = "opus"
	FamilySonnet    = "sonnet"
	FamilyHaiku     = "haiku"
	FamilySynthetic = "synthetic"
	FamilyUnknown   = "unknown"
)

// TokenUsage holds the four token counters reported per request.
type TokenUsage struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheWrite int64 `json:"cache_write"`
	CacheRead  int64 `json:"cache_read"`
}

// Total returns the sum of all token counters.
func (u TokenUsage) Total() int64 {
	return u.Input + u.Output + u.CacheWrite + u.CacheRead
}

// Add returns the element-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		Input:      u.Input + o.Input,
		Output:     u.Output + o.Output,
		CacheWrite: u.CacheWrite + o.CacheWrite,
		CacheRead:  u.CacheRead + o.CacheRead,
	}
}

// Sub returns the element-wise difference of u and o.
func (u TokenUsage) Sub(o TokenUsage) TokenUsage {
	return TokenUsage{
		Input:      u.Input - o.Input,
		Output:     u.Output - o.Output,
		CacheWrite: u.CacheWrite - o.CacheWrite,
		CacheRead:  u.CacheRead - o.CacheRead,
	}
}

// Source locates the log line a record was read from.
type Source struct {
	Path     string `json:"path"`
	Identity string `json:"identity,omitempty"`
	Offset   int64  `json:"offset"`
}

// UsageRecord is one normalized, cost-bearing API request.
// Records are immutable once handed to the aggregator.
type UsageRecord struct {
	Timestamp time.Time  `json:"timestamp"`
	SessionID string     `json:"session_id,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Model     string     `json:"model"`
	Source    Source     `json:"source"`
	Usage     TokenUsage `json:"usage"`
	Cost      float64    `json:"cost"`
}

// HasRequestID reports whether the record can be deduplicated.
func (r *UsageRecord) HasRequestID() bool {
	return r.RequestID != ""
}

// DedupKey returns the key used to detect repeated log entries.
// Records without a request ID are keyed by their source position,
// which is unique per ingested line.
func (r *UsageRecord) DedupKey() string {
	if r.HasRequestID() {
		return "req:" + r.RequestID
	}
	return "src:" + r.Source.Path + ":" + r.Source.Identity + ":" + strconv.FormatInt(r.Source.Offset, 10)
}

// Family returns the model family of the record.
func (r *UsageRecord) Family() string {
	return Family(r.Model)
}

// Family classifies a model identifier into opus, sonnet, haiku,
// synthetic or unknown.
func Family(model string) string {
	m := strings.ToLower(model)
	switch {
	case m == SyntheticModel:
		return FamilySynthetic
	case strings.Contains(m, "opus"):
		return FamilyOpus
	case strings.Contains(m, "sonnet"):
		return FamilySonnet
	case strings.Contains(m, "haiku"):
		return FamilyHaiku
	default:
		return FamilyUnknown
	}
}

// IsFamily reports whether name is one of the known family names.
func IsFamily(name string) bool {
	switch name {
	case FamilyOpus, FamilySonnet, FamilyHaiku, FamilySynthetic, FamilyUnknown:
		return true
	}
	return false
}

// DisplayModel shortens a model identifier for narrow columns,
// e.g. "claude-sonnet-4-20250514" becomes "sonnet-4".
func DisplayModel(model string) string {
	m := strings.TrimPrefix(model, "claude-")
	if i := strings.LastIndex(m, "-"); i > 0 {
		suffix := m[i+1:]
		if len(suffix) == 8 && isDigits(suffix) {
			m = m[:i]
		}
	}
	return m
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
