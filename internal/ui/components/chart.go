// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/claude-usage-tui/internal/ui/styles"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.LowerBound(0),
		asciigraph.SeriesColors(asciigraph.DarkOrange),
		asciigraph.Caption(caption),
	)
}

// RenderColumnChart draws values as vertical bars, oldest on the left.
// Series longer than width are merged into width columns.
func RenderColumnChart(values []float64, width, height int, caption string) string {
	if len(values) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}

	const axisWidth = 9
	cols := Resample(values, width-axisWidth)
	maxVal := maxOf(cols)
	if maxVal == 0 {
		maxVal = 1
	}

	barStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	axisStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)

	// Each row holds 8 sub-steps of one block.
	levels := make([]int, len(cols))
	for i, v := range cols {
		levels[i] = int(math.Round(v / maxVal * float64(height*8)))
	}

	var b strings.Builder
	for row := height - 1; row >= 0; row-- {
		label := ""
		switch row {
		case height - 1:
			label = fmt.Sprintf("%.2f", maxVal)
		case 0:
			label = "0"
		}
		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s ┤", axisWidth-2, label)))

		var line strings.Builder
		for _, lvl := range levels {
			fill := lvl - row*8
			switch {
			case fill >= 8:
				line.WriteRune('█')
			case fill > 0:
				line.WriteRune(sparkChars[fill-1])
			default:
				line.WriteRune(' ')
			}
		}
		b.WriteString(barStyle.Render(line.String()))
		b.WriteByte('\n')
	}

	if caption != "" {
		b.WriteString(styles.CenterHorizontal(styles.HelpStyle.Render(caption), width))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderBarChart creates a simple horizontal bar chart. format renders
// the value printed after each bar.
func RenderBarChart(values []float64, labels []string, colors []lipgloss.Color, width int, format func(float64) string) string {
	if len(values) == 0 {
		return ""
	}
	if format == nil {
		format = func(v float64) string { return fmt.Sprintf("%.1f", v) }
	}

	maxVal := maxOf(values)
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, lipgloss.Width(l))
	}

	barWidth := width - maxLabelLen - 12 // Leave room for label and value
	if barWidth < 10 {
		barWidth = 10
	}

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		style := lipgloss.NewStyle().Foreground(styles.Primary)
		if i < len(colors) {
			style = lipgloss.NewStyle().Foreground(colors[i])
		}

		barLen := int((v / maxVal) * float64(barWidth))
		if barLen < 0 {
			barLen = 0
		}

		padded := strings.Repeat(" ", maxLabelLen-lipgloss.Width(label)) + label
		lines = append(lines, padded+" │"+style.Render(strings.Repeat("█", barLen))+" "+format(v))
	}

	return strings.Join(lines, "\n")
}

// RenderColoredSparkline creates a sparkline colored by intensity.
func RenderColoredSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	cols := Resample(values, width)
	maxVal := maxOf(cols)
	if maxVal == 0 {
		maxVal = 1
	}

	var result strings.Builder
	for _, v := range cols {
		style := styles.GetCostStyle(v, maxVal)
		result.WriteString(style.Render(string(sparkChars[sparkIndex(v, maxVal)])))
	}
	return result.String()
}

func sparkIndex(v, maxVal float64) int {
	idx := int((v / maxVal) * float64(len(sparkChars)-1))
	return min(max(idx, 0), len(sparkChars)-1)
}

// Resample merges values into at most n columns by summing neighbours.
// Shorter series are returned unchanged.
func Resample(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for i, v := range values {
		out[i*n/len(values)] += v
	}
	return out
}

func maxOf(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		m = max(m, v)
	}
	return m
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}
