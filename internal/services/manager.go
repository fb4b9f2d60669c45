// Package services provides service orchestration for the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/samber/lo"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/config"
	"github.com/j-veylop/claude-usage-tui/internal/db"
	"github.com/j-veylop/claude-usage-tui/internal/logger"
	"github.com/j-veylop/claude-usage-tui/internal/models"
	"github.com/j-veylop/claude-usage-tui/internal/services/ingest"
	"github.com/j-veylop/claude-usage-tui/internal/services/projection"
	"github.com/j-veylop/claude-usage-tui/internal/services/watcher"
	"github.com/j-veylop/claude-usage-tui/internal/tracker"
)

// ErrNoHistory is returned by history queries when persistence is disabled.
var ErrNoHistory = errors.New("usage history disabled")

type (
	// SnapshotEvent is emitted after every tick and every view change.
	SnapshotEvent struct {
		Snapshot   aggregator.Snapshot
		Tick       ingest.TickResult
		Projection *models.SpendProjection
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}

	// AlertEvent is emitted when the current hour's cost crosses the
	// configured threshold.
	AlertEvent struct {
		Cost      float64
		Threshold float64
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SnapshotEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()    {}
func (AlertEvent) isServiceEvent()    {}

// Manager owns the ingestion pipeline and publishes snapshots to the UI.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	tracker     *tracker.Tracker
	agg         *aggregator.Aggregator
	coord       *ingest.Coordinator
	database    *db.DB
	projection  *projection.Service
	watcher     *watcher.Watcher
	snapshot    atomic.Pointer[aggregator.Snapshot]
	notify      func(title, body string) error
	cancel      context.CancelFunc
	stopChan    chan struct{}
	refreshChan chan struct{}
	subscribers []chan<- ServiceEvent
	wg          sync.WaitGroup
	closeOnce   sync.Once
	alerted     bool
}

// NewManager wires tracker, aggregator, history and coordinator from cfg.
// Nothing runs until Start or Refresh is called.
func NewManager(cfg *config.Config) (*Manager, error) {
	rng, err := cfg.TimeRange()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:         cfg,
		tracker:     tracker.New(cfg.StateFile()),
		stopChan:    make(chan struct{}),
		refreshChan: make(chan struct{}, 1),
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}

	m.agg = aggregator.New(aggregator.Options{
		Range:        rng,
		FeedCapacity: cfg.FeedCapacity,
	})
	m.agg.SetFilter(aggregator.ParseModelFilter(cfg.Model))

	opts := ingest.Options{
		Root:               cfg.ProjectsDir(),
		Tracker:            m.tracker,
		Aggregator:         m.agg,
		FullRescanInterval: cfg.FullRescanInterval,
		HistoryRetention:   cfg.HistoryRetention,
	}

	if cfg.HistoryEnabled {
		m.database, err = db.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		opts.History = m.database
	}

	m.projection = projection.New(m.database)
	m.coord = ingest.New(opts)
	return m, nil
}

// Restore reloads persisted offsets and history.
func (m *Manager) Restore(ctx context.Context) error {
	return m.coord.Restore(ctx)
}

// Start restores state and begins ticking in the background.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if err := m.Restore(ctx); err != nil {
		cancel()
		return err
	}

	if m.cfg.Watch {
		w, err := watcher.New(m.cfg.ProjectsDir(), watcher.DefaultDebounce)
		if err != nil {
			// Polling alone still keeps the dashboard current.
			logger.Warn("File watching unavailable, polling only", "error", err)
		} else {
			m.watcher = w
		}
	}

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	var triggers <-chan struct{}
	if m.watcher != nil {
		triggers = m.watcher.Triggers()
	}

	m.refresh(ctx)
	for {
		select {
		case <-ticker.C:
			m.refresh(ctx)
		case <-triggers:
			m.refresh(ctx)
		case <-m.refreshChan:
			m.refresh(ctx)
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh runs one tick synchronously and publishes the result.
func (m *Manager) Refresh(ctx context.Context) (ingest.TickResult, error) {
	res, err := m.coord.Tick(ctx)
	if err != nil {
		m.broadcast(ErrorEvent{Service: "ingest", Error: err})
	}
	if err := m.projection.RefreshBaseline(ctx); err != nil {
		logger.Debug("Projection baseline unavailable", "error", err)
	}
	if err := m.projection.RefreshTotals(ctx); err != nil {
		logger.Debug("History totals unavailable", "error", err)
	}
	m.publish(res)
	return res, err
}

func (m *Manager) refresh(ctx context.Context) {
	if _, err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("Tick failed", "error", err)
	}
}

// RequestRefresh asks the background loop for a tick without waiting.
func (m *Manager) RequestRefresh() {
	select {
	case m.refreshChan <- struct{}{}:
	default:
	}
}

// ForceFullRescan discards offsets and re-reads every log on the next tick.
func (m *Manager) ForceFullRescan() {
	m.coord.ForceFullRescan()
	m.RequestRefresh()
}

// Rescan discards offsets and runs a full tick synchronously. When a tick
// is already in flight its result is returned and the rescan happens on
// the following tick.
func (m *Manager) Rescan(ctx context.Context) (ingest.TickResult, error) {
	m.coord.ForceFullRescan()
	return m.Refresh(ctx)
}

func (m *Manager) publish(res ingest.TickResult) {
	snap := m.agg.Snapshot(m.agg.Filter())
	m.snapshot.Store(&snap)
	m.checkAlert(snap)
	proj := m.projection.Calculate(snap, m.cfg.CostAlertThreshold)
	m.broadcast(SnapshotEvent{Snapshot: snap, Tick: res, Projection: proj})
}

// checkAlert notifies once each time the current hour's cost rises
// through the threshold.
func (m *Manager) checkAlert(snap aggregator.Snapshot) {
	threshold := m.cfg.CostAlertThreshold
	if threshold <= 0 {
		return
	}

	cost := snap.CurrentHour.Cost
	m.mu.Lock()
	crossed := cost >= threshold && !m.alerted
	m.alerted = cost >= threshold
	m.mu.Unlock()

	if !crossed {
		return
	}

	title := "Claude usage alert"
	body := fmt.Sprintf("Spent $%.2f in the last hour (threshold $%.2f)", cost, threshold)
	if err := m.notify(title, body); err != nil {
		logger.Debug("Desktop notification failed", "error", err)
	}
	m.broadcast(AlertEvent{Cost: cost, Threshold: threshold})
}

// Projection returns the projection computed with the last published
// snapshot, or nil before the first one.
func (m *Manager) Projection() *models.SpendProjection {
	return m.projection.Cached()
}

// Snapshot returns the most recently published snapshot.
func (m *Manager) Snapshot() aggregator.Snapshot {
	if snap := m.snapshot.Load(); snap != nil {
		return *snap
	}
	return m.agg.Snapshot(m.agg.Filter())
}

// SetModelFilter changes the model filter and republishes.
func (m *Manager) SetModelFilter(f aggregator.ModelFilter) {
	m.agg.SetFilter(f)
	m.publish(ingest.TickResult{})
}

// CycleModelFilter steps through all models, then each family seen so far.
func (m *Manager) CycleModelFilter() aggregator.ModelFilter {
	options := m.filterOptions()
	current := m.agg.Filter()

	next := aggregator.AllModels
	if i := slices.Index(options, current); i >= 0 && i+1 < len(options) {
		next = options[i+1]
	} else if i < 0 && len(options) > 1 {
		next = options[1]
	}

	m.SetModelFilter(next)
	return next
}

func (m *Manager) filterOptions() []aggregator.ModelFilter {
	known := m.agg.Snapshot(aggregator.AllModels).KnownModels
	families := lo.Uniq(lo.Map(known, func(model string, _ int) string { return models.Family(model) }))
	slices.Sort(families)

	options := []aggregator.ModelFilter{aggregator.AllModels}
	for _, f := range families {
		options = append(options, aggregator.ModelFilter(f))
	}
	return options
}

// SetTimeRange changes the window length and republishes.
func (m *Manager) SetTimeRange(r aggregator.TimeRange) error {
	if err := m.agg.SetRange(r); err != nil {
		return err
	}
	m.publish(ingest.TickResult{})
	return nil
}

// CycleTimeRange advances to the next supported window length.
func (m *Manager) CycleTimeRange() aggregator.TimeRange {
	next := m.agg.Range().Next()
	if err := m.SetTimeRange(next); err != nil {
		logger.Warn("Failed to change time range", "range", next, "error", err)
		return m.agg.Range()
	}
	return next
}

// TogglePause freezes or resumes the request feed.
func (m *Manager) TogglePause() bool {
	paused := m.agg.TogglePause()
	m.publish(ingest.TickResult{})
	return paused
}

// LastTick returns the result of the most recent tick.
func (m *Manager) LastTick() ingest.TickResult {
	return m.coord.LastResult()
}

// DailyCosts returns per-day cost totals from history.
func (m *Manager) DailyCosts(ctx context.Context, days int) ([]db.DailyCost, error) {
	if m.database == nil {
		return nil, ErrNoHistory
	}
	return m.database.GetDailyCosts(ctx, time.Now(), days)
}

// Database returns the history database, or nil when history is disabled.
func (m *Manager) Database() *db.DB {
	return m.database
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close stops ticking, persists offsets and releases resources.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		if m.stopChan != nil {
			close(m.stopChan)
		}
		m.wg.Wait()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.watcher != nil {
			if err := m.watcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if m.tracker != nil {
			if err := m.tracker.Persist(); err != nil {
				errs = append(errs, err)
			}
		}

		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
