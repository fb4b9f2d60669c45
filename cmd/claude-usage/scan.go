package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/config"
	"github.com/j-veylop/claude-usage-tui/internal/models"
	"github.com/j-veylop/claude-usage-tui/internal/services"
	"github.com/j-veylop/claude-usage-tui/internal/services/ingest"
	"github.com/j-veylop/claude-usage-tui/internal/ui/components"
)

func newScanCommand(cfg *config.Config) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Ingest new log lines once and print a usage summary",
		Long: `scan runs a single ingestion pass, saves file offsets and history,
and prints the totals the dashboard would show. Use it from cron or to
check a configuration without starting the TUI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd.Context(), cfg, full, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "re-read every file from the start")
	return cmd
}

func runScan(ctx context.Context, cfg *config.Config, full bool, out io.Writer) error {
	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() { _ = mgr.Close() }()

	if err := mgr.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}

	var res ingest.TickResult
	if full {
		res, err = mgr.Rescan(ctx)
	} else {
		res, err = mgr.Refresh(ctx)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printSummary(out, res, mgr.Snapshot())
	return nil
}

func printSummary(out io.Writer, res ingest.TickResult, snap aggregator.Snapshot) {
	kind := "Scanned"
	if res.FullRescan {
		kind = "Rescanned"
	}
	fmt.Fprintf(out, "%s %d files (%s) in %s\n",
		kind, res.FilesSeen, humanize.Bytes(uint64(max(res.BytesRead, 0))), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "New records: %s, duplicates: %d, stale: %d, skipped: %d (%d malformed), errors: %d\n\n",
		humanize.Comma(int64(res.NewRecords)), res.Duplicates, res.Stale, res.Skipped, res.Malformed, res.Errors)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Current hour\t%s\t%s requests\n",
		components.FormatCost(snap.CurrentHour.Cost), humanize.Comma(int64(snap.CurrentHour.Requests)))
	fmt.Fprintf(w, "Last 5h\t%s\t%s requests\n",
		components.FormatCost(snap.Last5h.Cost), humanize.Comma(int64(snap.Last5h.Requests)))
	fmt.Fprintf(w, "Last 24h\t%s\t%s requests\n",
		components.FormatCost(snap.Last24h.Cost), humanize.Comma(int64(snap.Last24h.Requests)))
	fmt.Fprintf(w, "Window (%s)\t%s\t%s requests\t%s tokens\n",
		snap.Range, components.FormatCost(snap.Window.Cost),
		humanize.Comma(int64(snap.Window.Requests)), humanize.Comma(snap.Window.Tokens.Total()))
	_ = w.Flush()

	if len(snap.Models) == 0 {
		return
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tCOST\tREQUESTS\tTOKENS")
	for _, mt := range snap.Models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			models.DisplayModel(mt.Model), components.FormatCost(mt.Cost),
			humanize.Comma(int64(mt.Requests)), humanize.Comma(mt.Tokens.Total()))
	}
	_ = w.Flush()
}
