package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/app"
	"github.com/j-veylop/claude-usage-tui/internal/models"
	"github.com/j-veylop/claude-usage-tui/internal/ui/components"
	"github.com/j-veylop/claude-usage-tui/internal/ui/styles"
)

const (
	chartHeight  = 8
	maxFeedRows  = 50
	feedTimeFmt  = "15:04:05"
	minCardWidth = 40
)

// View renders the dashboard component.
func (m *Model) View() string {
	snap, ok := m.state.Snapshot()
	if !ok && m.state.IsLoading(app.ResourceInitial) {
		return m.renderLoading()
	}

	cardWidth := max(m.width-4, minCardWidth)

	sections := []string{
		m.renderTitle(snap),
		m.renderSummary(snap, cardWidth),
		m.renderChart(snap, cardWidth),
		m.renderModels(snap, cardWidth),
		m.renderFeed(snap, cardWidth),
	}
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderLoading renders the loading state.
func (m *Model) renderLoading() string {
	return components.RenderScanCentered(m.spinner, m.width, m.height)
}

func (m *Model) renderTitle(snap aggregator.Snapshot) string {
	title := styles.TitleStyle.Render("Claude Usage")

	parts := []string{
		"last " + snap.Range.String(),
		"models: " + snap.Filter.String(),
		formatGranularity(snap.Granularity) + " buckets",
	}
	subtitle := styles.HelpStyle.Render(strings.Join(parts, " · "))
	if snap.FeedPaused {
		badge := "PAUSED"
		if snap.PendingFeed > 0 {
			badge = fmt.Sprintf("PAUSED +%d", snap.PendingFeed)
		}
		subtitle += " " + styles.PausedBadgeStyle.Render(badge)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderSummary(snap aggregator.Snapshot, width int) string {
	rows := []string{
		cardTitle("◈", "Spend"),
		"",
		m.costBar.View(snap.CurrentHour.Cost, m.alertThreshold, "Current hour", width-4),
	}

	p := m.state.Projection()
	spend := []string{
		renderStat("5h", components.FormatCost(snap.Last5h.Cost)),
		renderStat("24h", components.FormatCost(snap.Last24h.Cost)),
	}
	if p != nil && p.HistoryTotals {
		spend = append(spend,
			renderStat("2d", components.FormatCost(p.Last2d)),
			renderStat("7d", components.FormatCost(p.Last7d)),
		)
	}
	stats := []string{
		renderStat("Window", components.FormatCost(snap.Window.Cost)),
		renderStat("Requests", humanize.Comma(int64(snap.Window.Requests))),
		renderStat("Tokens", humanize.Comma(snap.Window.Tokens.Total())),
	}
	rows = append(rows, "", strings.Join(spend, "   "), strings.Join(stats, "   "))

	if p != nil && p.DataPoints > 0 {
		rows = append(rows, renderProjection(p))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderProjection renders burn rate, alert ETA and the comparison with
// previous days.
func renderProjection(p *models.SpendProjection) string {
	parts := []string{
		renderStat("Burn", components.FormatCost(p.BurnRate)+"/h"),
		renderStat("Day", "~"+components.FormatCost(p.ProjectedDay)),
	}

	switch p.Status {
	case models.ProjectionCritical:
		parts = append(parts, styles.ErrorTextStyle.Bold(true).Render("over alert threshold"))
	case models.ProjectionWarning:
		eta := p.TimeToAlert.Round(time.Minute)
		parts = append(parts, styles.WarningTextStyle.Bold(true).Render("alert in "+eta.String()))
	}

	parts = append(parts, styles.HelpStyle.Render(fmt.Sprintf("%s (%s confidence)", p.VsHistorical, p.Confidence)))
	return strings.Join(parts, "   ")
}

func (m *Model) renderChart(snap aggregator.Snapshot, width int) string {
	metric, series := "cost", snap.Costs()
	if m.showRequests {
		metric, series = "requests", snap.Requests()
	}
	caption := fmt.Sprintf("%s per %s · %s", metric, formatGranularity(snap.Granularity), m.chartMode)

	var chart string
	switch {
	case lo.EveryBy(series, func(v float64) bool { return v == 0 }):
		chart = styles.HelpStyle.Render("No requests in this window")
	case m.chartMode == ChartLine:
		chart = components.RenderLineChart(series, width-14, chartHeight, caption)
	default:
		chart = components.RenderColumnChart(series, width-4, chartHeight, caption)
	}

	rows := []string{cardTitle("▤", "Window"), "", chart}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderModels(snap aggregator.Snapshot, width int) string {
	rows := []string{cardTitle("◆", "Models"), ""}

	if len(snap.Models) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No model usage yet"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	values := lo.Map(snap.Models, func(mt aggregator.ModelTotals, _ int) float64 { return mt.Cost })
	labels := lo.Map(snap.Models, func(mt aggregator.ModelTotals, _ int) string { return models.DisplayModel(mt.Model) })
	colors := lo.Map(snap.Models, func(mt aggregator.ModelTotals, _ int) lipgloss.Color { return styles.FamilyColor(mt.Family) })

	rows = append(rows, components.RenderBarChart(values, labels, colors, width-4, components.FormatCost))

	if len(snap.Families) > 1 {
		legend := lo.Map(snap.Families, func(f aggregator.ModelTotals, _ int) components.LegendItem {
			return components.LegendItem{
				Label: fmt.Sprintf("%s %s", f.Family, components.FormatCost(f.Cost)),
				Color: styles.FamilyColor(f.Family),
			}
		})
		rows = append(rows, "", components.RenderLegend(legend))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderFeed(snap aggregator.Snapshot, width int) string {
	rows := []string{cardTitle("≡", "Recent requests"), ""}

	if len(snap.Feed) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  Waiting for requests..."))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	lineWidth := width - 4
	header := fmt.Sprintf("%-8s  %-18s %10s %10s", "Time", "Model", "Tokens", "Cost")
	rows = append(rows, styles.TableHeaderStyle.Render(ansi.Truncate(header, lineWidth, "…")))

	feed := snap.Feed
	if len(feed) > maxFeedRows {
		feed = feed[:maxFeedRows]
	}
	for i := range feed {
		rows = append(rows, renderFeedRow(&feed[i], lineWidth))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderFeedRow(rec *models.UsageRecord, width int) string {
	name := ansi.Truncate(models.DisplayModel(rec.Model), 18, "…")
	line := fmt.Sprintf("%-8s  %s %10s %10s",
		rec.Timestamp.Local().Format(feedTimeFmt),
		styles.FamilyStyle(rec.Model).Render(fmt.Sprintf("%-18s", name)),
		humanize.Comma(rec.Usage.Total()),
		components.FormatCost(rec.Cost),
	)
	return ansi.Truncate(line, width, "…")
}

func cardTitle(icon, title string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title))
}

func renderStat(label, value string) string {
	return styles.StatLabelStyle.Render(label+" ") + styles.StatValueStyle.Render(value)
}

func formatGranularity(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
