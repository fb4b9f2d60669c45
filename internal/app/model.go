package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/claude-usage-tui/internal/services"
	"github.com/j-veylop/claude-usage-tui/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabDashboard is the ID for the dashboard tab.
	TabDashboard TabID = iota
	// TabHistory is the ID for the history tab.
	TabHistory
	// TabInfo is the ID for the info tab.
	TabInfo
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabHistory:
		return "History"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// Activator is implemented by tabs that reload data when they are shown.
type Activator interface {
	Activate() tea.Cmd
}

// Styles defines the application styles.
type Styles struct {
	// Tab bar styles
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style

	// Notification styles
	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	// Content styles
	Content lipgloss.Style
	Toast   lipgloss.Style

	// Common styles
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#C15F3C", Dark: "#E08A5B"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}
	info := lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}

	s := Styles{}
	s.TabBar = lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).BorderForeground(subtle)
	s.ActiveTab = lipgloss.NewStyle().Bold(true).Foreground(highlight).Padding(0, 2)
	s.InactiveTab = lipgloss.NewStyle().Foreground(subtle).Padding(0, 2)

	s.NotificationSuccess = lipgloss.NewStyle().Foreground(success).Padding(0, 1)
	s.NotificationError = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Padding(0, 1)
	s.NotificationWarning = lipgloss.NewStyle().Foreground(warning).Padding(0, 1)
	s.NotificationInfo = lipgloss.NewStyle().Foreground(info).Padding(0, 1)

	s.Content = lipgloss.NewStyle().Padding(1, 2)
	s.Toast = styles.ToastStyle

	s.Title = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.Subtle = lipgloss.NewStyle().Foreground(subtle)
	s.Highlight = lipgloss.NewStyle().Foreground(highlight)

	return s
}

// Model is the main application model.
type Model struct {
	// Tab management
	activeTab TabID
	tabs      []Tab
	tabNames  []string

	// Shared state
	state    *State
	services *services.Manager
	keymap   KeyMap
	styles   Styles

	spinner spinner.Model

	// Window dimensions
	width  int
	height int

	// UI state
	showHelp bool
	ready    bool

	// Service subscription
	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &Model{
		activeTab: TabDashboard,
		tabNames:  []string{"Dashboard", "History", "Info"},
		tabs:      make([]Tab, 3), // Placeholder - tabs will be set externally
		state:     NewState(),
		services:  mgr,
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Scanning logs...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.services))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg, spinner.TickMsg:
		if cmd := m.handleTeaMsg(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		cmd, handled := m.handleKeyMsg(msg)
		if handled {
			return m, cmd
		}

	default:
		if appCmds := m.handleAppMsg(msg); len(appCmds) > 0 {
			cmds = append(cmds, appCmds...)
		}
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleTeaMsg(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateTabSizes()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, defaultTickCmd())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel), m.currentSnapshotCmd())
	case ServiceEventMsg:
		if cmd := m.handleServiceEvent(msg.Event); cmd != nil {
			cmds = append(cmds, cmd)
		}
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case ScanResultMsg:
		cmds = append(cmds, m.handleScanResult(msg)...)
	case FilterChangedMsg:
		cmds = append(cmds, notifyInfoCmd("Model filter: "+msg.Filter.String()))
	case RangeChangedMsg:
		cmds = append(cmds, notifyInfoCmd("Window: "+msg.Range.String()))
	case PauseToggledMsg:
		if msg.Paused {
			cmds = append(cmds, notifyInfoCmd("Feed paused"))
		} else {
			cmds = append(cmds, notifyInfoCmd("Feed resumed"))
		}
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case CopyToClipboardMsg:
		cmds = append(cmds, copyToClipboardCmd(msg.Text, msg.Label))
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Scanning logs...")
	case StopLoadingMsg:
		m.stopLoading(msg.Resource)
	case ErrorMsg:
		cmds = append(cmds, notifyErrorCmd(errorText(msg)))
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg)...)
	case TabSwitchMsg:
		if cmd := m.switchTab(msg.Tab); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return cmds
}

func errorText(msg ErrorMsg) string {
	if msg.Context == "" {
		return msg.Error.Error()
	}
	return fmt.Sprintf("%s: %v", msg.Context, msg.Error)
}

// currentSnapshotCmd delivers the snapshot published before the
// subscription existed.
func (m *Model) currentSnapshotCmd() tea.Cmd {
	mgr := m.services
	return func() tea.Msg {
		return ServiceEventMsg{Event: services.SnapshotEvent{
			Snapshot:   mgr.Snapshot(),
			Tick:       mgr.LastTick(),
			Projection: mgr.Projection(),
		}}
	}
}

func (m *Model) stopLoading(resource string) {
	m.state.SetLoading(resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleScanResult(msg ScanResultMsg) []tea.Cmd {
	m.stopLoading(ResourceScan)
	res := msg.Result

	switch {
	case msg.Error != nil:
		m.state.SetLastError(msg.Error)
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Scan failed: %v", msg.Error))}
	case msg.Full && !res.FullRescan:
		return []tea.Cmd{notifyInfoCmd("Full rescan queued")}
	case msg.Full:
		return []tea.Cmd{notifySuccessCmd(fmt.Sprintf("Rescanned %d files, %s records",
			res.FilesSeen, humanize.Comma(int64(res.NewRecords))))}
	case res.NewRecords > 0:
		return []tea.Cmd{notifySuccessCmd(fmt.Sprintf("%s new records",
			humanize.Comma(int64(res.NewRecords))))}
	default:
		return []tea.Cmd{notifyInfoCmd("No new usage")}
	}
}

func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	if m.services == nil || m.state.IsLoading(ResourceScan) {
		return nil
	}
	start := func() tea.Msg { return StartLoadingMsg{Resource: ResourceScan} }
	return []tea.Cmd{start, scanCmd(m.services, msg.Full)}
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := max(0, m.height-3)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

func (m *Model) switchTab(id TabID) tea.Cmd {
	if id < 0 || int(id) >= len(m.tabs) {
		return nil
	}
	m.activeTab = id
	m.updateTabSizes()
	if a, ok := m.tabs[id].(Activator); ok {
		return a.Activate()
	}
	return nil
}

// handleKeyMsg handles global keys. Keys it does not consume are passed
// on to the active tab.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return nil, true

	case key.Matches(msg, m.keymap.Escape):
		if m.showHelp {
			m.showHelp = false
			return nil, true
		}
		return nil, false

	case key.Matches(msg, m.keymap.Tab1):
		return m.switchTab(TabDashboard), true

	case key.Matches(msg, m.keymap.Tab2):
		return m.switchTab(TabHistory), true

	case key.Matches(msg, m.keymap.Tab3):
		return m.switchTab(TabInfo), true

	case key.Matches(msg, m.keymap.NextTab):
		if m.showHelp || len(m.tabs) == 0 {
			return nil, true
		}
		return m.switchTab(TabID((int(m.activeTab) + 1) % len(m.tabs))), true

	case key.Matches(msg, m.keymap.PrevTab):
		if m.showHelp || len(m.tabs) == 0 {
			return nil, true
		}
		return m.switchTab(TabID((int(m.activeTab) - 1 + len(m.tabs)) % len(m.tabs))), true
	}

	if m.services == nil {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keymap.Model):
		return cycleModelFilterCmd(m.services), true
	case key.Matches(msg, m.keymap.Range):
		return cycleTimeRangeCmd(m.services), true
	case key.Matches(msg, m.keymap.Pause):
		return togglePauseCmd(m.services), true
	case key.Matches(msg, m.keymap.Refresh):
		return tea.Batch(m.handleRefresh(RefreshMsg{Resource: ResourceScan})...), true
	case key.Matches(msg, m.keymap.Rescan):
		return tea.Batch(m.handleRefresh(RefreshMsg{Resource: ResourceScan, Full: true})...), true
	}

	return nil, false
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.SnapshotEvent:
		m.state.SetSnapshot(e.Snapshot, e.Tick)
		m.state.SetProjection(e.Projection)
		if !e.Tick.Started.IsZero() && m.state.IsLoading(ResourceInitial) {
			m.stopLoading(ResourceInitial)
		}

	case services.ErrorEvent:
		m.state.SetLastError(e.Error)
		if m.state.IsLoading(ResourceInitial) {
			m.stopLoading(ResourceInitial)
		}
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))

	case services.AlertEvent:
		return notifyWarningCmd(fmt.Sprintf("Spent $%.2f in the last hour (alert at $%.2f)", e.Cost, e.Threshold))
	}

	return nil
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	if notifications := m.renderNotifications(); len(notifications) > 0 {
		return m.overlayToasts(mainView, notifications)
	}

	return mainView
}

func (m *Model) overlayCentered(mainView string, overlay string) string {
	mainLines := strings.Split(mainView, "\n")
	overlayLines := strings.Split(overlay, "\n")

	overlayWidth := lipgloss.Width(overlay)

	y := max((m.height-len(overlayLines))/2, 0)
	x := max((m.width-overlayWidth)/2, 0)

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]

		// Keep the cells left and right of the overlay.
		left := ansi.Truncate(mainLine, x, "")
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		if lipgloss.Width(left) < x {
			left += strings.Repeat(" ", x-lipgloss.Width(left))
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderNavbar() string {
	tabs := make([]string, 0, len(m.tabNames)+1)

	for i, name := range m.tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	status := m.renderStatus()
	if gap := m.width - lipgloss.Width(tabBar) - lipgloss.Width(status) - 4; gap > 0 {
		tabBar += strings.Repeat(" ", gap) + status
	}

	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

func (m *Model) renderStatus() string {
	if m.state.LastError() != nil {
		return styles.ErrorTextStyle.Render("● error")
	}
	if m.state.IsLoading(ResourceInitial) {
		return m.styles.Subtle.Render(m.spinner.View() + " scanning")
	}
	tick := m.state.LastTick()
	if tick.Started.IsZero() {
		return ""
	}
	return styles.SuccessTextStyle.Render("●") + m.styles.Subtle.Render(" updated "+humanize.Time(tick.Started))
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style = m.styles.NotificationSuccess
			prefix = "[OK]"
		case NotificationError:
			style = m.styles.NotificationError
			prefix = "[ERR]"
		case NotificationWarning:
			style = m.styles.NotificationWarning
			prefix = "[WARN]"
		case NotificationInfo:
			style = m.styles.NotificationInfo
			prefix = "[INFO]"
		case NotificationLoading:
			style = m.styles.NotificationInfo
			prefix = m.spinner.View()
		}

		content := style.Render(fmt.Sprintf("%s %s", prefix, n.Message))
		toasts = append(toasts, m.styles.Toast.Render(content))
	}

	return toasts
}

func (m *Model) overlayToasts(mainView string, toasts []string) string {
	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := strings.Split(mainView, "\n")

	startX := max(m.width-lipgloss.Width(toastStack)-2, 0)
	startY := 2

	for i, toastLine := range toastLines {
		lineIdx := startY + i
		if lineIdx >= len(mainLines) {
			break
		}

		mainLine := mainLines[lineIdx]
		if w := lipgloss.Width(mainLine); w < startX {
			mainLines[lineIdx] = mainLine + strings.Repeat(" ", startX-w) + toastLine
		} else {
			mainLines[lineIdx] = ansi.Truncate(mainLine, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	var lines []string

	lines = append(lines, m.styles.Title.Render("Keyboard Shortcuts"))
	lines = append(lines, "")

	sections := []struct {
		title    string
		bindings []key.Binding
	}{
		{"Navigation", []key.Binding{m.keymap.Tab1, m.keymap.Tab2, m.keymap.Tab3, m.keymap.NextTab, m.keymap.PrevTab}},
		{"View", []key.Binding{m.keymap.Model, m.keymap.Range, m.keymap.Pause}},
		{"Data", []key.Binding{m.keymap.Refresh, m.keymap.Rescan}},
		{"General", []key.Binding{m.keymap.Help, m.keymap.Quit}},
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		if tabHelp := m.tabs[m.activeTab].ShortHelp(); len(tabHelp) > 0 {
			sections = append(sections, struct {
				title    string
				bindings []key.Binding
			}{m.tabNames[m.activeTab] + " Tab", tabHelp})
		}
	}

	for _, s := range sections {
		lines = append(lines, m.styles.Highlight.Render(s.title))
		for _, binding := range s.bindings {
			lines = append(lines, fmt.Sprintf("  %-12s %s", binding.Help().Key, binding.Help().Desc))
		}
		lines = append(lines, "")
	}

	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf(
		"Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.tabNames[m.activeTab],
		m.styles.Subtle.Render("This tab is not available."),
	)
	return m.styles.Content.Render(content)
}
