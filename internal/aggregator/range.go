package aggregator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/models"
)

// ErrInvalidRange is returned for a window length that is not supported.
var ErrInvalidRange = errors.New("invalid time range")

// TimeRange is the rolling window length in hours.
type TimeRange int

// Supported ranges.
const (
	Range1h  TimeRange = 1
	Range2h  TimeRange = 2
	Range6h  TimeRange = 6
	Range12h TimeRange = 12
	Range24h TimeRange = 24
)

// Ranges lists the supported ranges in cycling order.
var Ranges = []TimeRange{Range1h, Range2h, Range6h, Range12h, Range24h}

// DefaultRange is the window used when none is configured.
const DefaultRange = Range1h

// RangeFromHours validates h as a supported range.
func RangeFromHours(h int) (TimeRange, error) {
	r := TimeRange(h)
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %dh (supported: 1, 2, 6, 12, 24)", ErrInvalidRange, h)
	}
	return r, nil
}

// ParseTimeRange accepts "6", "6h" or "24H".
func ParseTimeRange(s string) (TimeRange, error) {
	trimmed := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "h")
	h, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return RangeFromHours(h)
}

// Valid reports whether r is one of Ranges.
func (r TimeRange) Valid() bool {
	for _, v := range Ranges {
		if v == r {
			return true
		}
	}
	return false
}

// Duration returns the window length.
func (r TimeRange) Duration() time.Duration {
	return time.Duration(r) * time.Hour
}

// Granularity returns the bucket width: one minute up to 2h, five beyond.
func (r TimeRange) Granularity() time.Duration {
	if r <= Range2h {
		return time.Minute
	}
	return 5 * time.Minute
}

// BucketCount returns the number of buckets the window spans.
func (r TimeRange) BucketCount() int {
	return int(r.Duration() / r.Granularity())
}

// Next returns the following range, wrapping around.
func (r TimeRange) Next() TimeRange {
	for i, v := range Ranges {
		if v == r {
			return Ranges[(i+1)%len(Ranges)]
		}
	}
	return DefaultRange
}

func (r TimeRange) String() string {
	return strconv.Itoa(int(r)) + "h"
}

// ModelFilter restricts views to one model id or one family. The zero
// value matches everything.
type ModelFilter string

// AllModels matches every model.
const AllModels ModelFilter = ""

// Matches reports whether model passes the filter.
func (f ModelFilter) Matches(model string) bool {
	switch {
	case f == AllModels:
		return true
	case models.IsFamily(string(f)):
		return models.Family(model) == string(f)
	default:
		return string(f) == model
	}
}

func (f ModelFilter) String() string {
	if f == AllModels {
		return "all"
	}
	return string(f)
}

// ParseModelFilter maps "", "all" and "*" to AllModels.
func ParseModelFilter(s string) ModelFilter {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "all", "*":
		return AllModels
	}
	if models.IsFamily(strings.ToLower(s)) {
		return ModelFilter(strings.ToLower(s))
	}
	return ModelFilter(s)
}
