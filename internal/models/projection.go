package models

import "time"

// ProjectionStatus indicates how close spend is to the hourly alert threshold.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// SpendProjection estimates where spend is heading at the current burn rate.
type SpendProjection struct {
	BurnRate     float64          // Dollars per hour over the visible window
	CurrentHour  float64          // Cost of the last 60 minutes
	Threshold    float64          // Hourly alert threshold, 0 when off
	TimeToAlert  time.Duration    // Until the threshold is crossed, 0 when unknown or crossed
	WillAlert    bool             // True if the threshold is crossed within the hour
	ProjectedDay float64          // BurnRate sustained for 24h
	DailyAverage float64          // Mean cost of previous days with usage
	VsHistorical string           // Comparison text vs DailyAverage
	Status       ProjectionStatus // SAFE, WARNING, CRITICAL, UNKNOWN
	Confidence   string           // "low", "medium", "high"
	DataPoints   int              // Non-empty buckets the rate is based on
	Last2d       float64          // Cost of the last 48 hours from history
	Last7d       float64          // Cost of the last 7 days from history
	// HistoryTotals is set once Last2d and Last7d have been loaded.
	HistoryTotals bool
	LastUpdated   time.Time
}
