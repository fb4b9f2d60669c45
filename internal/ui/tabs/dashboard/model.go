// Package dashboard provides the live usage tab: spend for the current
// hour, the rolling window chart, the per-model breakdown and the
// request feed.
package dashboard

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-tui/internal/app"
	"github.com/j-veylop/claude-usage-tui/internal/ui/components"
)

// ChartMode selects how the window series is drawn.
type ChartMode int

const (
	// ChartColumns draws one column per bucket.
	ChartColumns ChartMode = iota
	// ChartLine draws an asciigraph line plot.
	ChartLine
)

// String returns the name shown in the chart caption.
func (c ChartMode) String() string {
	if c == ChartLine {
		return "line"
	}
	return "columns"
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	ChartMode key.Binding
	Metric    key.Binding
	Up        key.Binding
	Down      key.Binding
	Top       key.Binding
	Bottom    key.Binding
}

// defaultKeyMap returns the default key bindings for the dashboard tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ChartMode: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "chart style"),
		),
		Metric: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "cost/requests"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// Model represents the dashboard tab state.
type Model struct {
	state          *app.State
	spinner        components.ScanSpinner
	costBar        components.CostBar
	keys           keyMap
	viewport       viewport.Model
	alertThreshold float64
	chartMode      ChartMode
	showRequests   bool
	width          int
	height         int
}

// New creates a new dashboard model. alertThreshold is the hourly spend
// the cost bar is measured against; zero shows the spend without a bar.
func New(state *app.State, alertThreshold float64) *Model {
	return &Model{
		state:          state,
		spinner:        components.NewScanSpinner(),
		costBar:        components.NewCostBar(),
		keys:           defaultKeyMap(),
		viewport:       viewport.New(0, 0),
		alertThreshold: alertThreshold,
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Init()
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ChartMode):
		if m.chartMode == ChartColumns {
			m.chartMode = ChartLine
		} else {
			m.chartMode = ChartColumns
		}
	case key.Matches(msg, m.keys.Metric):
		m.showRequests = !m.showRequests
	case key.Matches(msg, m.keys.Up):
		m.viewport.SetYOffset(m.viewport.YOffset - 1)
	case key.Matches(msg, m.keys.Down):
		m.viewport.SetYOffset(m.viewport.YOffset + 1)
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ChartMode returns the current chart style.
func (m *Model) ChartMode() ChartMode {
	return m.chartMode
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ChartMode,
		m.keys.Metric,
		m.keys.Down,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ChartMode, m.keys.Metric},
		{m.keys.Up, m.keys.Down},
		{m.keys.Top, m.keys.Bottom},
	}
}
