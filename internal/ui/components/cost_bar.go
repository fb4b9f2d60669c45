package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-tui/internal/ui/styles"
)

// CostBar renders spend against a budget as a progress bar.
type CostBar struct {
	progress progress.Model
}

// NewCostBar creates a cost bar that shades from green to red.
func NewCostBar() CostBar {
	return CostBar{
		progress: progress.New(
			progress.WithScaledGradient("#51cf66", "#ff6b6b"),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
	}
}

// View renders label, bar and "$spent / $budget". Without a budget only
// the spend is shown.
func (c CostBar) View(cost, budget float64, label string, width int) string {
	labelStr := styles.ProgressLabelStyle.Render(label)
	costStr := styles.GetCostStyle(cost, budget).Render(FormatCost(cost))

	if budget <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, costStr)
	}

	barWidth := width - 34 // label plus "$x / $y"
	if barWidth < 10 {
		barWidth = 10
	}
	c.progress.Width = barWidth

	ratio := min(max(cost/budget, 0), 1)
	budgetStr := styles.HelpStyle.Render(" / " + FormatCost(budget))

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		labelStr,
		c.progress.ViewAs(ratio),
		" ",
		costStr,
		budgetStr,
	)
}

// FormatCost renders a dollar amount with cents, or four decimals when
// it is below one cent.
func FormatCost(cost float64) string {
	if cost > 0 && cost < 0.01 {
		return fmt.Sprintf("$%.4f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}
