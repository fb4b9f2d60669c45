// Package history provides the history tab: daily spend read back from
// the usage database.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-tui/internal/app"
	"github.com/j-veylop/claude-usage-tui/internal/db"
	"github.com/j-veylop/claude-usage-tui/internal/services"
)

const loadTimeout = 10 * time.Second

// Spans lists the selectable day ranges in cycling order.
var Spans = []int{7, 14, 30}

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	Span   key.Binding
	Reload key.Binding
	Up     key.Binding
	Down   key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Span: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle day range"),
		),
		Reload: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "reload history"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// historyLoadedMsg is sent when daily costs are loaded.
type historyLoadedMsg struct {
	days  int
	costs []db.DailyCost
}

// historyErrorMsg is sent when there's an error loading history.
type historyErrorMsg struct {
	err error
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	services *services.Manager
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	span        int
	daily       []db.DailyCost
	loaded      bool
	loading     bool
	disabled    bool
	lastRefresh time.Time
	errorMsg    string
}

// New creates a new history model.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:    state,
		services: svc,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		span:     Spans[0],
	}
}

// Init loads the initial history.
func (m *Model) Init() tea.Cmd {
	return m.reload()
}

// Activate reloads history whenever the tab is shown.
func (m *Model) Activate() tea.Cmd {
	return m.reload()
}

func (m *Model) reload() tea.Cmd {
	if m.loading {
		return nil
	}
	m.loading = true
	m.state.SetLoading(app.ResourceHistory, true)
	return loadHistoryCmd(m.services, m.span)
}

// loadHistoryCmd creates a command that reads days of daily totals.
func loadHistoryCmd(svc *services.Manager, days int) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return historyErrorMsg{err: errors.New("services not initialized")}
		}

		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		costs, err := svc.DailyCosts(ctx, days)
		if err != nil {
			return historyErrorMsg{err: err}
		}
		return historyLoadedMsg{days: days, costs: costs}
	}
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.finishLoading()
		m.daily = fillDays(msg.costs, time.Now(), msg.days)
		m.loaded = true
		m.lastRefresh = time.Now()
		m.errorMsg = ""

	case historyErrorMsg:
		m.finishLoading()
		if errors.Is(msg.err, services.ErrNoHistory) {
			m.disabled = true
			return m, nil
		}
		m.errorMsg = msg.err.Error()
		return m, func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("History error: %s", msg.err),
				Duration: app.LongNotificationDuration,
			}
		}

	case app.ScanResultMsg:
		if msg.Error == nil && (msg.Result.NewRecords > 0 || msg.Full) {
			return m, m.reload()
		}

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) finishLoading() {
	m.loading = false
	m.state.SetLoading(app.ResourceHistory, false)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Span):
		m.span = nextSpan(m.span)
		return m.reload()

	case key.Matches(msg, m.keys.Reload):
		return m.reload()

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
}

func nextSpan(days int) int {
	for i, s := range Spans {
		if s == days {
			return Spans[(i+1)%len(Spans)]
		}
	}
	return Spans[0]
}

// fillDays expands sparse daily totals into one entry per UTC day, oldest
// first, ending today.
func fillDays(costs []db.DailyCost, now time.Time, days int) []db.DailyCost {
	if days <= 0 {
		return nil
	}
	byDay := make(map[string]db.DailyCost, len(costs))
	for _, c := range costs {
		byDay[c.Day.UTC().Format(time.DateOnly)] = c
	}

	today := now.UTC().Truncate(24 * time.Hour)
	out := make([]db.DailyCost, days)
	for i := range out {
		day := today.AddDate(0, 0, i-(days-1))
		out[i] = byDay[day.Format(time.DateOnly)]
		out[i].Day = day
	}
	return out
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Span,
		m.keys.Reload,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Span, m.keys.Reload},
		{m.keys.Up, m.keys.Down},
	}
}
