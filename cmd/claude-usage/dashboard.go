package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-tui/internal/app"
	"github.com/j-veylop/claude-usage-tui/internal/config"
	"github.com/j-veylop/claude-usage-tui/internal/logger"
	"github.com/j-veylop/claude-usage-tui/internal/services"
	"github.com/j-veylop/claude-usage-tui/internal/ui/tabs/dashboard"
	"github.com/j-veylop/claude-usage-tui/internal/ui/tabs/history"
	"github.com/j-veylop/claude-usage-tui/internal/ui/tabs/info"
)

// runDashboard starts the services and blocks until the TUI exits.
func runDashboard(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	model := app.NewModel(svcManager)

	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state, cfg.CostAlertThreshold),
		history.New(state, svcManager),
		info.New(state, cfg),
	})

	if err := svcManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received signal, shutting down", "signal", sig.String())
			p.Send(tea.Quit())
		case <-ctx.Done():
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
