// Package main is the entry point for the Claude usage dashboard. It loads
// configuration, starts the ingestion services and runs the Bubble Tea
// program.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-tui/internal/config"
	"github.com/j-veylop/claude-usage-tui/internal/logger"
	"github.com/j-veylop/claude-usage-tui/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCommand(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds flags that do not map one-to-one onto config fields.
type options struct {
	noWatch   bool
	noHistory bool
	logCloser io.Closer
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "claude-usage",
		Short: "Live dashboard of Claude Code token usage and cost",
		Long: `claude-usage tails the JSONL session logs Claude Code writes under
~/.claude/projects and shows spend for the current hour, a rolling window
chart, a per-model breakdown and a live request feed.

Settings are read from .env files and environment variables, and flags
override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return prepare(cmd, cfg, opts)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logCloser != nil {
				_ = opts.logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ClaudeDir, "claude-dir", cfg.ClaudeDir, "Claude Code data directory")
	flags.StringVar(&cfg.StatePath, "state-file", cfg.StatePath, "file offsets state path (default <claude-dir>/.claude-usage/)")
	flags.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite usage history path")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&cfg.Model, "model", cfg.Model, "initial model filter: a model id or family (opus, sonnet, haiku)")
	flags.IntVar(&cfg.WindowHours, "hours", cfg.WindowHours, "rolling window in hours: 1, 2, 6, 12 or 24")
	flags.IntVar(&cfg.FeedCapacity, "feed", cfg.FeedCapacity, "number of recent requests kept in the feed")
	flags.DurationVar(&cfg.RefreshInterval, "refresh", cfg.RefreshInterval, "polling interval")
	flags.DurationVar(&cfg.FullRescanInterval, "full-rescan", cfg.FullRescanInterval, "interval between full rescans")
	flags.DurationVar(&cfg.HistoryRetention, "retention", cfg.HistoryRetention, "how long usage history is kept")
	flags.Float64Var(&cfg.CostAlertThreshold, "alert", cfg.CostAlertThreshold, "notify when the current hour costs more than this many dollars (0 disables)")
	flags.BoolVar(&opts.noWatch, "no-watch", false, "disable file watching and rely on polling")
	flags.BoolVar(&opts.noHistory, "no-history", false, "do not record usage history")

	root.AddCommand(newScanCommand(cfg), newVersionCommand())
	return root
}

// prepare applies flag-only switches, validates the result and sets up
// logging for the command about to run.
func prepare(cmd *cobra.Command, cfg *config.Config, opts *options) error {
	if opts.noWatch {
		cfg.Watch = false
	}
	if opts.noHistory {
		cfg.HistoryEnabled = false
	}
	if cmd.Name() == "version" {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" && cmd.HasParent() {
		// Subcommands do not own the terminal.
		logger.SetLevel(level)
		return nil
	}
	closer, err := logger.Setup(cfg.LogFile, level)
	if err != nil {
		return err
	}
	opts.logCloser = closer
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
