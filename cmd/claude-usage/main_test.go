package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "projects", "proj"), 0o750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	return &config.Config{
		ClaudeDir:          dir,
		DatabasePath:       filepath.Join(dir, "history.db"),
		LogLevel:           "info",
		RefreshInterval:    5 * time.Second,
		FullRescanInterval: 24 * time.Hour,
		HistoryRetention:   24 * time.Hour,
		WindowHours:        1,
		FeedCapacity:       10,
		HistoryEnabled:     true,
		Watch:              true,
	}
}

func writeSession(t *testing.T, cfg *config.Config) {
	t.Helper()
	line := fmt.Sprintf(`{"type":"assistant","timestamp":%q,"requestId":"r1","message":{"model":"claude-sonnet-4-20250514","usage":{"input_tokens":1000,"output_tokens":100}}}`,
		time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano))
	path := filepath.Join(cfg.ProjectsDir(), "proj", "session.jsonl")
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(cfg)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	cfg := testConfig(t)
	writeSession(t, cfg)

	out, err := execute(t, cfg, "scan")
	if err != nil {
		t.Fatalf("scan error = %v", err)
	}
	// Without saved offsets the first pass reads everything.
	for _, want := range []string{"Rescanned 1 files", "New records: 1", "sonnet-4", "Last 5h", "Last 24h", "Window (1h)"} {
		if !strings.Contains(out, want) {
			t.Errorf("scan output missing %q:\n%s", want, out)
		}
	}

	// A second scan resumes from the saved offsets.
	out, err = execute(t, cfg, "scan")
	if err != nil {
		t.Fatalf("second scan error = %v", err)
	}
	if !strings.Contains(out, "Scanned 1 files") || !strings.Contains(out, "New records: 0") {
		t.Errorf("second scan output = %q, want no new records", out)
	}
}

func TestScanCommand_Full(t *testing.T) {
	cfg := testConfig(t)
	writeSession(t, cfg)

	out, err := execute(t, cfg, "scan", "--full", "--no-history")
	if err != nil {
		t.Fatalf("scan --full error = %v", err)
	}
	if !strings.Contains(out, "Rescanned") {
		t.Errorf("scan --full output = %q, want Rescanned", out)
	}
	if cfg.HistoryEnabled {
		t.Error("--no-history should disable history")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := testConfig(t)

	if _, err := execute(t, cfg, "scan", "--hours", "6", "--alert", "3.5", "--model", "opus", "--no-watch"); err != nil {
		t.Fatalf("scan error = %v", err)
	}
	if cfg.WindowHours != 6 || cfg.CostAlertThreshold != 3.5 || cfg.Model != "opus" || cfg.Watch {
		t.Errorf("config after flags = %+v", cfg)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig(t)

	if _, err := execute(t, cfg, "scan", "--hours", "3"); err == nil {
		t.Error("scan with an unsupported window should fail")
	}

	cfg = testConfig(t)
	cfg.ClaudeDir = filepath.Join(t.TempDir(), "missing")
	if _, err := execute(t, cfg, "scan"); err == nil {
		t.Error("scan without a projects directory should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClaudeDir = filepath.Join(t.TempDir(), "missing")

	out, err := execute(t, cfg, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "claude-usage-tui ") {
		t.Errorf("version output = %q", out)
	}
}
