package projection

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/db"
	"github.com/j-veylop/claude-usage-tui/internal/models"
)

// snapshot returns a 1h snapshot with active buckets each costing perBucket.
func snapshot(active int, perBucket, currentHour float64) aggregator.Snapshot {
	snap := aggregator.Snapshot{
		Range:   aggregator.Range1h,
		Buckets: make([]aggregator.BucketView, aggregator.Range1h.BucketCount()),
	}
	for i := 0; i < active; i++ {
		snap.Buckets[i].Requests = 1
		snap.Buckets[i].Cost = perBucket
		snap.Window.Requests++
		snap.Window.Cost += perBucket
	}
	snap.CurrentHour.Cost = currentHour
	return snap
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		snap       aggregator.Snapshot
		threshold  float64
		wantStatus models.ProjectionStatus
		wantAlert  bool
		wantConf   string
	}{
		{
			name:       "no data",
			snap:       snapshot(0, 0, 0),
			threshold:  5,
			wantStatus: models.ProjectionUnknown,
			wantConf:   "low",
		},
		{
			name:       "threshold off",
			snap:       snapshot(10, 0.1, 1),
			threshold:  0,
			wantStatus: models.ProjectionUnknown,
			wantConf:   "medium",
		},
		{
			name:       "well below",
			snap:       snapshot(30, 0.01, 0.3),
			threshold:  5,
			wantStatus: models.ProjectionSafe,
			wantConf:   "high",
		},
		{
			name:       "crossing within the hour",
			snap:       snapshot(30, 0.1, 3),
			threshold:  4,
			wantStatus: models.ProjectionWarning,
			wantAlert:  true,
			wantConf:   "high",
		},
		{
			name:       "already crossed",
			snap:       snapshot(5, 1, 5),
			threshold:  4,
			wantStatus: models.ProjectionCritical,
			wantConf:   "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj := calculate(tt.snap, tt.threshold, 0)
			if proj.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", proj.Status, tt.wantStatus)
			}
			if proj.WillAlert != tt.wantAlert {
				t.Errorf("WillAlert = %v, want %v", proj.WillAlert, tt.wantAlert)
			}
			if proj.Confidence != tt.wantConf {
				t.Errorf("Confidence = %s, want %s", proj.Confidence, tt.wantConf)
			}
		})
	}
}

func TestCalculate_Rates(t *testing.T) {
	proj := calculate(snapshot(30, 0.1, 3), 4, 0)

	if proj.BurnRate < 2.999 || proj.BurnRate > 3.001 {
		t.Errorf("BurnRate = %f, want 3", proj.BurnRate)
	}
	if proj.ProjectedDay < 71.99 || proj.ProjectedDay > 72.01 {
		t.Errorf("ProjectedDay = %f, want 72", proj.ProjectedDay)
	}
	// $1 left at $3/h.
	if proj.TimeToAlert < 19*time.Minute || proj.TimeToAlert > 21*time.Minute {
		t.Errorf("TimeToAlert = %v, want ~20m", proj.TimeToAlert)
	}
	if proj.DataPoints != 30 {
		t.Errorf("DataPoints = %d, want 30", proj.DataPoints)
	}
}

func TestCalculate_ZeroRange(t *testing.T) {
	proj := calculate(aggregator.Snapshot{}, 5, 0)
	if proj.BurnRate != 0 || proj.Status != models.ProjectionUnknown {
		t.Errorf("calculate(zero) = %+v", proj)
	}
}

func TestFormatHistoricalComparison(t *testing.T) {
	tests := []struct {
		current, avg float64
		want         string
	}{
		{10, 0, "Building history..."},
		{10, 10, "Typical for you"},
		{11, 10, "Typical for you"},
		{20, 10, "Above your average"},
		{5, 10, "Below your average"},
	}

	for _, tt := range tests {
		if got := formatHistoricalComparison(tt.current, tt.avg); got != tt.want {
			t.Errorf("formatHistoricalComparison(%v, %v) = %q, want %q", tt.current, tt.avg, got, tt.want)
		}
	}
}

func TestService_CalculateCaches(t *testing.T) {
	s := New(nil)
	if s.Cached() != nil {
		t.Fatal("Cached() should be nil before Calculate")
	}
	if err := s.RefreshBaseline(context.Background()); err != nil {
		t.Fatalf("RefreshBaseline() without a database error = %v", err)
	}

	proj := s.Calculate(snapshot(3, 0.5, 1.5), 2)
	if s.Cached() != proj {
		t.Error("Cached() should return the last projection")
	}
	if proj.LastUpdated.IsZero() {
		t.Error("LastUpdated not set")
	}
}

func TestService_RefreshBaseline(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recs := []models.UsageRecord{
		{Timestamp: now.AddDate(0, 0, -2), RequestID: "a", Model: "claude-sonnet-4", Cost: 4},
		{Timestamp: now.AddDate(0, 0, -1), RequestID: "b", Model: "claude-sonnet-4", Cost: 6},
		{Timestamp: now.Add(-time.Hour), RequestID: "c", Model: "claude-sonnet-4", Cost: 100},
	}
	if _, err := database.InsertUsageRecords(context.Background(), recs); err != nil {
		t.Fatalf("InsertUsageRecords() error = %v", err)
	}

	s := New(database)
	s.now = func() time.Time { return now }

	if err := s.RefreshBaseline(context.Background()); err != nil {
		t.Fatalf("RefreshBaseline() error = %v", err)
	}
	// Today is excluded from the baseline.
	proj := s.Calculate(snapshot(1, 0.2, 0.2), 0)
	if proj.DailyAverage != 5 {
		t.Errorf("DailyAverage = %f, want 5", proj.DailyAverage)
	}
	if proj.VsHistorical != "Typical for you" {
		t.Errorf("VsHistorical = %q, want Typical for you", proj.VsHistorical)
	}
}

func TestService_RefreshTotals(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recs := []models.UsageRecord{
		{Timestamp: now.Add(-time.Hour), RequestID: "a", Model: "claude-sonnet-4", Cost: 1},
		{Timestamp: now.Add(-30 * time.Hour), RequestID: "b", Model: "claude-opus-4", Cost: 2},
		{Timestamp: now.Add(-3 * 24 * time.Hour), RequestID: "c", Model: "claude-opus-4", Cost: 4},
		{Timestamp: now.Add(-8 * 24 * time.Hour), RequestID: "d", Model: "claude-sonnet-4", Cost: 8},
	}
	if _, err := database.InsertUsageRecords(context.Background(), recs); err != nil {
		t.Fatalf("InsertUsageRecords() error = %v", err)
	}

	s := New(database)
	s.now = func() time.Time { return now }

	if proj := s.Calculate(snapshot(1, 0.1, 0.1), 0); proj.HistoryTotals {
		t.Error("HistoryTotals set before RefreshTotals")
	}
	if err := s.RefreshTotals(context.Background()); err != nil {
		t.Fatalf("RefreshTotals() error = %v", err)
	}

	tests := []struct {
		filter aggregator.ModelFilter
		want2d float64
		want7d float64
	}{
		{aggregator.AllModels, 3, 7},
		{"opus", 2, 6},
		{"sonnet", 1, 1},
	}

	for _, tt := range tests {
		snap := snapshot(1, 0.1, 0.1)
		snap.Filter = tt.filter
		proj := s.Calculate(snap, 0)
		if !proj.HistoryTotals {
			t.Fatalf("HistoryTotals = false after RefreshTotals")
		}
		if proj.Last2d != tt.want2d || proj.Last7d != tt.want7d {
			t.Errorf("filter %s: Last2d, Last7d = %v, %v, want %v, %v",
				tt.filter, proj.Last2d, proj.Last7d, tt.want2d, tt.want7d)
		}
	}
}

func TestService_RefreshTotalsWithoutDatabase(t *testing.T) {
	s := New(nil)
	if err := s.RefreshTotals(context.Background()); err != nil {
		t.Fatalf("RefreshTotals() error = %v", err)
	}
	if proj := s.Calculate(snapshot(1, 0.1, 0.1), 0); proj.HistoryTotals {
		t.Error("HistoryTotals = true without a database")
	}
}
