// Package projection estimates spend at the current burn rate.
package projection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/db"
	"github.com/j-veylop/claude-usage-tui/internal/logger"
	"github.com/j-veylop/claude-usage-tui/internal/models"
)

const (
	lowConfThreshold = 6
	medConfThreshold = 24

	baselineDays = 30
	baselineTTL  = 10 * time.Minute
)

// Service computes projections and keeps the daily baseline from history.
type Service struct {
	mu  sync.RWMutex
	db  *db.DB
	now func() time.Time

	dailyAverage float64
	baselineAt   time.Time
	cached       *models.SpendProjection

	// Per-model history totals over the last two and seven days.
	last2d   []db.ModelCost
	last7d   []db.ModelCost
	totalsOK bool
}

// New creates a projection service. database may be nil, in which case no
// historical comparison is made.
func New(database *db.DB) *Service {
	return &Service{
		db:  database,
		now: time.Now,
	}
}

// RefreshBaseline reloads the average daily cost of previous days when the
// cached value is older than ten minutes.
func (s *Service) RefreshBaseline(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	now := s.now()
	s.mu.RLock()
	fresh := !s.baselineAt.IsZero() && now.Sub(s.baselineAt) < baselineTTL
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	days, err := s.db.GetDailyCosts(ctx, now, baselineDays)
	if err != nil {
		return fmt.Errorf("failed to load daily baseline: %w", err)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	previous := lo.Filter(days, func(d db.DailyCost, _ int) bool {
		return d.Day.Before(today)
	})

	avg := 0.0
	if len(previous) > 0 {
		avg = lo.SumBy(previous, func(d db.DailyCost) float64 { return d.Cost }) / float64(len(previous))
	}

	s.mu.Lock()
	s.dailyAverage = avg
	s.baselineAt = now
	s.mu.Unlock()

	logger.Debug("Daily baseline refreshed", "days", len(previous), "average", avg)
	return nil
}

// RefreshTotals reloads the two and seven day totals from history. Unlike
// the baseline these move every tick, so they are not cached.
func (s *Service) RefreshTotals(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	now := s.now()
	last2d, err := s.db.GetModelCostsSince(ctx, now.Add(-48*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to load 2d totals: %w", err)
	}
	last7d, err := s.db.GetModelCostsSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to load 7d totals: %w", err)
	}

	s.mu.Lock()
	s.last2d = last2d
	s.last7d = last7d
	s.totalsOK = true
	s.mu.Unlock()
	return nil
}

// Calculate projects spend from snap against the hourly threshold and
// caches the result.
func (s *Service) Calculate(snap aggregator.Snapshot, threshold float64) *models.SpendProjection {
	s.mu.RLock()
	avg := s.dailyAverage
	last2d, last7d, totalsOK := s.last2d, s.last7d, s.totalsOK
	s.mu.RUnlock()

	proj := calculate(snap, threshold, avg)
	proj.LastUpdated = s.now()
	if totalsOK {
		proj.HistoryTotals = true
		proj.Last2d = sumMatching(last2d, snap.Filter)
		proj.Last7d = sumMatching(last7d, snap.Filter)
	}

	s.mu.Lock()
	s.cached = proj
	s.mu.Unlock()

	return proj
}

// Cached returns the last computed projection, or nil.
func (s *Service) Cached() *models.SpendProjection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}

func calculate(snap aggregator.Snapshot, threshold, dailyAverage float64) *models.SpendProjection {
	active := lo.CountBy(snap.Buckets, func(b aggregator.BucketView) bool {
		return b.Requests > 0
	})

	proj := &models.SpendProjection{
		CurrentHour:  snap.CurrentHour.Cost,
		Threshold:    threshold,
		DailyAverage: dailyAverage,
		Status:       models.ProjectionUnknown,
		DataPoints:   active,
	}

	if proj.DataPoints < lowConfThreshold {
		proj.Confidence = "low"
	} else if proj.DataPoints < medConfThreshold {
		proj.Confidence = "medium"
	} else {
		proj.Confidence = "high"
	}

	if hours := snap.Range.Duration().Hours(); hours > 0 {
		proj.BurnRate = snap.Window.Cost / hours
	}
	proj.ProjectedDay = proj.BurnRate * 24
	proj.VsHistorical = formatHistoricalComparison(proj.ProjectedDay, dailyAverage)

	if threshold <= 0 || proj.DataPoints == 0 {
		return proj
	}

	remaining := threshold - proj.CurrentHour
	switch {
	case remaining <= 0:
		proj.Status = models.ProjectionCritical
	case proj.BurnRate <= 0:
		proj.Status = models.ProjectionSafe
	default:
		hoursLeft := remaining / proj.BurnRate
		proj.TimeToAlert = time.Duration(hoursLeft * float64(time.Hour))
		proj.WillAlert = hoursLeft < 1
		if proj.WillAlert {
			proj.Status = models.ProjectionWarning
		} else {
			proj.Status = models.ProjectionSafe
		}
	}

	return proj
}

// sumMatching totals the costs of models matched by filter.
func sumMatching(costs []db.ModelCost, filter aggregator.ModelFilter) float64 {
	return lo.SumBy(lo.Filter(costs, func(mc db.ModelCost, _ int) bool {
		return filter.Matches(mc.Model)
	}), func(mc db.ModelCost) float64 { return mc.Cost })
}

func formatHistoricalComparison(current, allTimeAvg float64) string {
	if allTimeAvg <= 0 {
		return "Building history..."
	}
	diff := ((current - allTimeAvg) / allTimeAvg) * 100
	if math.Abs(diff) < 15 {
		return "Typical for you"
	} else if diff > 0 {
		return "Above your average"
	}
	return "Below your average"
}
