package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-tui/internal/ui/styles"
)

// ScanSpinner is shown while the first pass over the session logs runs.
// Besides the animation it shows how long the scan has been going, since
// a cold start reads every file from the beginning.
type ScanSpinner struct {
	spinner spinner.Model
	started time.Time
	now     func() time.Time
	style   lipgloss.Style
}

// NewScanSpinner creates a spinner whose elapsed time starts now.
func NewScanSpinner() ScanSpinner {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return ScanSpinner{
		spinner: s,
		started: time.Now(),
		now:     time.Now,
		style:   lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
}

// Init starts the animation.
func (s ScanSpinner) Init() tea.Cmd {
	return s.spinner.Tick
}

// Update advances the animation on spinner ticks.
func (s ScanSpinner) Update(msg tea.Msg) (ScanSpinner, tea.Cmd) {
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// Elapsed is the time since the scan started, to the second.
func (s ScanSpinner) Elapsed() time.Duration {
	return s.now().Sub(s.started).Truncate(time.Second)
}

// View renders the animation, the label and, after the first second, the
// elapsed time.
func (s ScanSpinner) View() string {
	text := "Scanning Claude Code logs"
	if d := s.Elapsed(); d > 0 {
		text += " · " + d.String()
	}
	return s.spinner.View() + " " + s.style.Render(text)
}

// RenderScanCentered renders the scan spinner in the middle of an empty
// panel.
func RenderScanCentered(s ScanSpinner, width, height int) string {
	return styles.CenterBoth(s.View(), width, height)
}
