package info

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/app"
	"github.com/j-veylop/claude-usage-tui/internal/config"
	"github.com/j-veylop/claude-usage-tui/internal/services/ingest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ClaudeDir:          dir,
		DatabasePath:       filepath.Join(dir, "history.db"),
		RefreshInterval:    5 * time.Second,
		FullRescanInterval: 24 * time.Hour,
		WindowHours:        6,
		FeedCapacity:       100,
		CostAlertThreshold: 2.5,
		HistoryEnabled:     true,
		Watch:              true,
	}
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNew(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() != nil {
		t.Error("Init() should return nil")
	}
}

func TestModel_Update(t *testing.T) {
	m := New(app.NewState(), &config.Config{})

	updated, cmd := m.Update(nil)
	if updated == nil {
		t.Error("Update returned nil model")
	}
	if cmd != nil {
		t.Error("Update(nil) returned a command")
	}
}

func TestModel_ViewConfig(t *testing.T) {
	cfg := testConfig(t)
	m := New(app.NewState(), cfg)
	m.SetSize(120, 80)

	view := m.View()
	for _, want := range []string{"Configuration", "6h", "$2.50 per hour", "fsnotify", "No scan has completed yet", "claude-usage-tui"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_ViewWithoutConfig(t *testing.T) {
	m := New(app.NewState(), nil)
	m.SetSize(80, 40)

	if view := m.View(); !strings.Contains(view, "Configuration not loaded") {
		t.Error("View() should report a missing configuration")
	}
}

func TestModel_ViewIngestion(t *testing.T) {
	state := app.NewState()
	state.SetSnapshot(aggregator.Snapshot{Retained: 42}, ingest.TickResult{
		Started:    time.Now(),
		Duration:   120 * time.Millisecond,
		BytesRead:  2048,
		FilesSeen:  3,
		NewRecords: 1234,
		Duplicates: 2,
		Errors:     1,
		FullRescan: true,
	})
	state.SetLastError(errors.New("permission denied"))

	m := New(state, testConfig(t))
	m.SetSize(120, 100)

	view := m.View()
	for _, want := range []string{"full rescan", "3 seen", "2.0 kB", "1,234", "42 records", "permission denied"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_CopyKeys(t *testing.T) {
	cfg := testConfig(t)
	m := New(app.NewState(), cfg)

	_, cmd := m.Update(keyPress('c'))
	if cmd == nil {
		t.Fatal("c should return a copy command")
	}
	msg, ok := cmd().(app.CopyToClipboardMsg)
	if !ok || msg.Text != cfg.ProjectsDir() {
		t.Errorf("copy msg = %+v, want projects dir", msg)
	}

	_, cmd = m.Update(keyPress('y'))
	if msg, ok := cmd().(app.CopyToClipboardMsg); !ok || msg.Text != cfg.DatabasePath {
		t.Errorf("copy msg = %+v, want database path", msg)
	}

	cfg.HistoryEnabled = false
	if _, cmd := m.Update(keyPress('y')); cmd != nil {
		t.Error("y without history should not copy")
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}
