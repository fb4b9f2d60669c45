package history

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/j-veylop/claude-usage-tui/internal/db"
	"github.com/j-veylop/claude-usage-tui/internal/ui/components"
	"github.com/j-veylop/claude-usage-tui/internal/ui/styles"
)

// View renders the history tab.
func (m *Model) View() string {
	switch {
	case m.disabled:
		return m.renderDisabled()
	case m.loading && !m.loaded:
		return m.renderLoading()
	case m.errorMsg != "":
		return m.renderError()
	case !hasData(m.daily):
		return m.renderEmpty()
	}

	cardWidth := max(m.width-6, 40)
	sections := []string{
		m.renderHeader(),
		m.renderSummary(cardWidth),
		m.renderDailyChart(cardWidth),
		m.renderDailyTable(cardWidth),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func hasData(daily []db.DailyCost) bool {
	return lo.SomeBy(daily, func(d db.DailyCost) bool { return d.Requests > 0 })
}

func (m *Model) renderLoading() string {
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(styles.HelpStyle.Render("Loading history data..."))
}

func (m *Model) renderError() string {
	content := fmt.Sprintf("%s %s",
		styles.ErrorTextStyle.Render("Error:"),
		m.errorMsg,
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderDisabled() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("History"),
		"",
		styles.HelpStyle.Render("Usage history is disabled."),
		styles.HelpStyle.Render("Run without --no-history to record daily totals."),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderEmpty() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("History"),
		"",
		styles.HelpStyle.Render(fmt.Sprintf("No usage recorded in the last %d days.", m.span)),
		styles.HelpStyle.Render("Data will appear as requests are ingested."),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("History")

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[d] last %d days", m.span))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator)

	var subtitle string
	if !m.lastRefresh.IsZero() {
		subtitle = styles.HelpStyle.Render("Loaded " + humanize.Time(m.lastRefresh))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) renderSummary(width int) string {
	total := lo.SumBy(m.daily, func(d db.DailyCost) float64 { return d.Cost })
	requests := lo.SumBy(m.daily, func(d db.DailyCost) int { return d.Requests })
	busiest := lo.MaxBy(m.daily, func(a, b db.DailyCost) bool { return a.Cost > b.Cost })

	stats := []string{
		renderStat("Total", components.FormatCost(total)),
		renderStat("Avg/day", components.FormatCost(total/float64(len(m.daily)))),
		renderStat("Requests", humanize.Comma(int64(requests))),
		renderStat("Busiest", fmt.Sprintf("%s %s", busiest.Day.Format("Jan 2"), components.FormatCost(busiest.Cost))),
	}

	rows := []string{cardTitle("◈", "Summary"), "", strings.Join(stats, "   ")}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderDailyChart(width int) string {
	costs := lo.Map(m.daily, func(d db.DailyCost, _ int) float64 { return d.Cost })

	rows := []string{
		cardTitle("▤", "Daily Spend"),
		"",
		components.RenderLineChart(costs, width-14, 8, "cost per day (UTC)"),
		"",
		styles.HelpStyle.Render("Trend ") + components.RenderColoredSparkline(costs, len(costs)),
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderDailyTable(width int) string {
	days := slices.Clone(m.daily)
	slices.Reverse(days)

	values := lo.Map(days, func(d db.DailyCost, _ int) float64 { return d.Cost })
	labels := lo.Map(days, func(d db.DailyCost, _ int) string { return d.Day.Format("Mon Jan 02") })

	rows := []string{
		cardTitle("≡", "By Day"),
		"",
		components.RenderBarChart(values, labels, nil, width-4, components.FormatCost),
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func cardTitle(icon, title string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title))
}

func renderStat(label, value string) string {
	return styles.StatLabelStyle.Render(label+" ") + styles.StatValueStyle.Render(value)
}
