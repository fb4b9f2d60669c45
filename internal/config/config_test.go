package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLAUDE_DIR", "CLAUDE_CONFIG_DIR", "STATE_PATH", "DATABASE_PATH", "LOG_FILE", "LOG_LEVEL",
		"MODEL", "REFRESH_INTERVAL", "FULL_RESCAN_INTERVAL", "HISTORY_RETENTION", "WINDOW_HOURS",
		"FEED_CAPACITY", "COST_ALERT_THRESHOLD", "WATCH", "HISTORY",
	} {
		t.Setenv(key, "")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "projects"), 0o750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	return &Config{
		ClaudeDir:          dir,
		RefreshInterval:    time.Second,
		FullRescanInterval: time.Hour,
		WindowHours:        1,
		FeedCapacity:       100,
	}
}

func TestGetEnvString(t *testing.T) {
	key := "TEST_ENV_STRING"
	val := "test_value"
	t.Setenv(key, val)

	if got := getEnvString(key, "default"); got != val {
		t.Errorf("getEnvString() = %q, want %q", got, val)
	}

	if got := getEnvString("NON_EXISTENT", "default"); got != "default" {
		t.Errorf("getEnvString() = %q, want %q", got, "default")
	}
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_ENV_DURATION"

	tests := []struct {
		name       string
		envVal     string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"ValidDuration", "1m", time.Second, time.Minute},
		{"ValidSeconds", "60", time.Second, 60 * time.Second},
		{"Invalid", "invalid", time.Second, time.Second},
		{"Empty", "", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.envVal)
			if got := getEnvDuration(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvNumbers(t *testing.T) {
	t.Setenv("TEST_INT", "6h")
	if got := getEnvInt("TEST_INT", 1); got != 6 {
		t.Errorf("getEnvInt() = %d, want 6", got)
	}
	t.Setenv("TEST_INT", "six")
	if got := getEnvInt("TEST_INT", 1); got != 1 {
		t.Errorf("getEnvInt(invalid) = %d, want 1", got)
	}

	t.Setenv("TEST_FLOAT", "2.5")
	if got := getEnvFloat("TEST_FLOAT", 0); got != 2.5 {
		t.Errorf("getEnvFloat() = %v, want 2.5", got)
	}

	t.Setenv("TEST_BOOL", "false")
	if got := getEnvBool("TEST_BOOL", true); got {
		t.Error("getEnvBool() = true, want false")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if got := getEnvBool("TEST_BOOL", true); !got {
		t.Error("getEnvBool(invalid) = false, want default true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if cfg.ClaudeDir != filepath.Join(home, ".claude") {
		t.Errorf("ClaudeDir = %q, want ~/.claude", cfg.ClaudeDir)
	}
	if cfg.RefreshInterval != defaultRefreshInterval {
		t.Errorf("RefreshInterval = %v, want %v", cfg.RefreshInterval, defaultRefreshInterval)
	}
	if cfg.FullRescanInterval != 24*time.Hour {
		t.Errorf("FullRescanInterval = %v, want 24h", cfg.FullRescanInterval)
	}
	if cfg.WindowHours != 1 || cfg.FeedCapacity != 100 {
		t.Errorf("WindowHours/FeedCapacity = %d/%d, want 1/100", cfg.WindowHours, cfg.FeedCapacity)
	}
	if !cfg.Watch || !cfg.HistoryEnabled {
		t.Error("Watch and HistoryEnabled should default to true")
	}
	wantState := filepath.Join(home, ".claude", ".claude-usage", "dashboard-file-tracker.yaml")
	if cfg.StateFile() != wantState {
		t.Errorf("StateFile() = %q, want %q", cfg.StateFile(), wantState)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLAUDE_DIR", "/data/claude")
	t.Setenv("STATE_PATH", "/tmp/state.yaml")
	t.Setenv("REFRESH_INTERVAL", "2s")
	t.Setenv("WINDOW_HOURS", "12")
	t.Setenv("MODEL", "opus")
	t.Setenv("COST_ALERT_THRESHOLD", "10")
	t.Setenv("WATCH", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ClaudeDir != "/data/claude" || cfg.ProjectsDir() != "/data/claude/projects" {
		t.Errorf("ClaudeDir = %q, ProjectsDir() = %q", cfg.ClaudeDir, cfg.ProjectsDir())
	}
	if cfg.StateFile() != "/tmp/state.yaml" {
		t.Errorf("StateFile() = %q, want /tmp/state.yaml", cfg.StateFile())
	}
	if cfg.RefreshInterval != 2*time.Second || cfg.WindowHours != 12 {
		t.Errorf("RefreshInterval/WindowHours = %v/%d", cfg.RefreshInterval, cfg.WindowHours)
	}
	if cfg.Model != "opus" || cfg.CostAlertThreshold != 10 || cfg.Watch {
		t.Errorf("Model/CostAlertThreshold/Watch = %q/%v/%v", cfg.Model, cfg.CostAlertThreshold, cfg.Watch)
	}
}

func TestLoad_ClaudeConfigDirFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLAUDE_CONFIG_DIR", "/alt/claude")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ClaudeDir != "/alt/claude" {
		t.Errorf("ClaudeDir = %q, want /alt/claude", cfg.ClaudeDir)
	}
}

func TestLoad_WithEnvFile(t *testing.T) {
	clearEnv(t)
	cwd, _ := os.Getwd()
	content := "WINDOW_HOURS=6\nFEED_CAPACITY=25\n"
	if err := os.WriteFile(filepath.Join(cwd, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// godotenv sets variables for the whole process.
	t.Cleanup(func() {
		_ = os.Unsetenv("WINDOW_HOURS")
		_ = os.Unsetenv("FEED_CAPACITY")
	})
	_ = os.Unsetenv("WINDOW_HOURS")
	_ = os.Unsetenv("FEED_CAPACITY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.WindowHours != 6 || cfg.FeedCapacity != 25 {
		t.Errorf("WindowHours/FeedCapacity = %d/%d, want 6/25", cfg.WindowHours, cfg.FeedCapacity)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"MissingProjects", func(c *Config) { c.ClaudeDir = filepath.Join(c.ClaudeDir, "nope") }, ErrLogRoot},
		{"InvalidRange", func(c *Config) { c.WindowHours = 5 }, aggregator.ErrInvalidRange},
		{"ZeroRefresh", func(c *Config) { c.RefreshInterval = 0 }, nil},
		{"ZeroRescan", func(c *Config) { c.FullRescanInterval = 0 }, nil},
		{"ZeroFeed", func(c *Config) { c.FeedCapacity = 0 }, nil},
		{"NegativeThreshold", func(c *Config) { c.CostAlertThreshold = -1 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ProjectsIsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "projects"), nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg := validConfig(t)
	cfg.ClaudeDir = dir

	if err := cfg.Validate(); !errors.Is(err, ErrLogRoot) {
		t.Errorf("Validate() error = %v, want ErrLogRoot", err)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := map[string]string{
		"~/.claude": filepath.Join(home, ".claude"),
		"~":         home,
		"/abs/path": "/abs/path",
		"rel/path":  "rel/path",
		"~user/x":   "~user/x",
	}
	for in, want := range tests {
		if got := expandHome(in); got != want {
			t.Errorf("expandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetEnvPaths(t *testing.T) {
	paths := getEnvPaths()
	if len(paths) == 0 {
		t.Error("getEnvPaths() returned empty list")
	}

	cwd, _ := os.Getwd()
	found := false
	for _, p := range paths {
		if p == filepath.Join(cwd, ".env") {
			found = true
			break
		}
	}
	if !found {
		t.Error("getEnvPaths() missing current directory .env")
	}
}
