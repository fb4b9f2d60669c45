// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
)

// ErrLogRoot is returned when the Claude projects directory is unusable.
var ErrLogRoot = errors.New("claude log directory unavailable")

// Config holds the application configuration.
type Config struct {
	ClaudeDir          string
	StatePath          string
	DatabasePath       string
	LogFile            string
	LogLevel           string
	Model              string
	RefreshInterval    time.Duration
	FullRescanInterval time.Duration
	HistoryRetention   time.Duration
	WindowHours        int
	FeedCapacity       int
	CostAlertThreshold float64
	Watch              bool
	HistoryEnabled     bool
}

// Default values
const (
	defaultRefreshInterval    = 5 * time.Second
	defaultFullRescanInterval = 24 * time.Hour
	defaultHistoryRetention   = 7 * 24 * time.Hour
	defaultWindowHours        = 1
	defaultFeedCapacity       = 100
	stateFileName             = "dashboard-file-tracker.yaml"
)

// Load reads configuration from .env files and environment variables.
// Call Validate once command-line overrides have been applied.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		ClaudeDir:          getEnvString("CLAUDE_DIR", getEnvString("CLAUDE_CONFIG_DIR", getDefaultClaudeDir())),
		StatePath:          getEnvString("STATE_PATH", ""),
		DatabasePath:       getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		LogFile:            getEnvString("LOG_FILE", ""),
		LogLevel:           getEnvString("LOG_LEVEL", "info"),
		Model:              getEnvString("MODEL", ""),
		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", defaultRefreshInterval),
		FullRescanInterval: getEnvDuration("FULL_RESCAN_INTERVAL", defaultFullRescanInterval),
		HistoryRetention:   getEnvDuration("HISTORY_RETENTION", defaultHistoryRetention),
		WindowHours:        getEnvInt("WINDOW_HOURS", defaultWindowHours),
		FeedCapacity:       getEnvInt("FEED_CAPACITY", defaultFeedCapacity),
		CostAlertThreshold: getEnvFloat("COST_ALERT_THRESHOLD", 0),
		Watch:              getEnvBool("WATCH", true),
		HistoryEnabled:     getEnvBool("HISTORY", true),
	}

	return cfg, nil
}

// Validate checks the configuration. Every error here prevents startup.
func (c *Config) Validate() error {
	c.ClaudeDir = expandHome(c.ClaudeDir)
	c.StatePath = expandHome(c.StatePath)
	c.DatabasePath = expandHome(c.DatabasePath)
	c.LogFile = expandHome(c.LogFile)

	projects := c.ProjectsDir()
	info, err := os.Stat(projects)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLogRoot, projects, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrLogRoot, projects)
	}
	f, err := os.Open(projects)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLogRoot, projects, err)
	}
	_ = f.Close()

	if _, err := c.TimeRange(); err != nil {
		return err
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", c.RefreshInterval)
	}
	if c.FullRescanInterval <= 0 {
		return fmt.Errorf("full rescan interval must be positive, got %v", c.FullRescanInterval)
	}
	if c.FeedCapacity <= 0 {
		return fmt.Errorf("feed capacity must be positive, got %d", c.FeedCapacity)
	}
	if c.CostAlertThreshold < 0 {
		return fmt.Errorf("cost alert threshold must not be negative, got %v", c.CostAlertThreshold)
	}
	return nil
}

// ProjectsDir is the root of the per-project JSONL logs.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.ClaudeDir, "projects")
}

// StateFile returns the tracker state path, defaulting to a file inside
// the Claude directory.
func (c *Config) StateFile() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	return filepath.Join(c.ClaudeDir, ".claude-usage", stateFileName)
}

// TimeRange returns the configured window as an aggregator range.
func (c *Config) TimeRange() (aggregator.TimeRange, error) {
	return aggregator.RangeFromHours(c.WindowHours)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "claude-usage", ".env"),
			filepath.Join(home, ".claude-usage", ".env"),
		)
	}

	return paths
}

// getDefaultClaudeDir returns ~/.claude.
func getDefaultClaudeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "claude-usage.db"
	}
	return filepath.Join(home, ".config", "claude-usage", "history.db")
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(value), "h")); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
