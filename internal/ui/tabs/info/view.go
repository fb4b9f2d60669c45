package info

import (
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/claude-usage-tui/internal/ui/components"
	"github.com/j-veylop/claude-usage-tui/internal/ui/styles"
	"github.com/j-veylop/claude-usage-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderIngestCard(),
		m.renderAboutCard(),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, ingestion and build information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

// renderConfigCard renders the configuration card.
func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	if m.config == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	cfg := m.config
	database := "disabled"
	if cfg.HistoryEnabled {
		database = cfg.DatabasePath
	}
	logFile := "off"
	if cfg.LogFile != "" {
		logFile = fmt.Sprintf("%s (%s)", cfg.LogFile, cfg.LogLevel)
	}
	alert := "off"
	if cfg.CostAlertThreshold > 0 {
		alert = components.FormatCost(cfg.CostAlertThreshold) + " per hour"
	}
	watch := "polling only"
	if cfg.Watch {
		watch = "fsnotify + polling"
	}

	rows = append(rows,
		renderConfigRow("Claude Dir", cfg.ClaudeDir),
		renderConfigRow("Projects", cfg.ProjectsDir()),
		renderConfigRow("State File", cfg.StateFile()),
		renderConfigRow("Database", database),
		renderConfigRow("Log File", logFile),
		"",
		renderConfigRow("Refresh", cfg.RefreshInterval.String()),
		renderConfigRow("Full Rescan", cfg.FullRescanInterval.String()),
		renderConfigRow("Window", strconv.Itoa(cfg.WindowHours)+"h"),
		renderConfigRow("Feed Size", strconv.Itoa(cfg.FeedCapacity)),
		renderConfigRow("Cost Alert", alert),
		renderConfigRow("Watch", watch),
		"",
		styles.HelpStyle.Render("Press 'c' or 'y' to copy paths"),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderIngestCard renders statistics of the most recent tick.
func (m *Model) renderIngestCard() string {
	rows := []string{styles.CardTitleStyle.Render("Ingestion"), ""}

	tick := m.state.LastTick()
	if tick.Started.IsZero() {
		rows = append(rows, styles.HelpStyle.Render("No scan has completed yet"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	kind := "incremental"
	if tick.FullRescan {
		kind = "full rescan"
	}

	rows = append(rows,
		renderConfigRow("Last Scan", fmt.Sprintf("%s (%s)", humanize.Time(tick.Started), kind)),
		renderConfigRow("Duration", tick.Duration.Round(time.Millisecond).String()),
		renderConfigRow("Files", fmt.Sprintf("%d seen, %d removed", tick.FilesSeen, tick.FilesRemoved)),
		renderConfigRow("Read", humanize.Bytes(uint64(max(tick.BytesRead, 0)))),
		renderConfigRow("New Records", humanize.Comma(int64(tick.NewRecords))),
		renderConfigRow("Duplicates", humanize.Comma(int64(tick.Duplicates))),
		renderConfigRow("Stale", humanize.Comma(int64(tick.Stale))),
		renderConfigRow("Skipped", fmt.Sprintf("%d (%d malformed)", tick.Skipped, tick.Malformed)),
	)

	errStr := styles.SuccessTextStyle.Render("0")
	if tick.Errors > 0 {
		errStr = styles.ErrorTextStyle.Render(strconv.Itoa(tick.Errors))
	}
	rows = append(rows, renderConfigRow("Errors", "")+errStr)

	if snap, ok := m.state.Snapshot(); ok {
		rows = append(rows, renderConfigRow("In Memory", humanize.Comma(int64(snap.Retained))+" records"))
	}
	if err := m.state.LastError(); err != nil {
		rows = append(rows, "", styles.ErrorTextStyle.Render("Last error: "+err.Error()))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderConfigRow renders a key-value row.
func renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(14).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// renderAboutCard renders the about/version information card.
func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About"),
		"",
		renderConfigRow("Program", version.Name),
		renderConfigRow("Version", version.GetVersion()),
		renderConfigRow("Build Date", version.GetDate()),
		renderConfigRow("Git Commit", version.GetCommit()),
		renderConfigRow("Go Version", runtime.Version()),
		renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
