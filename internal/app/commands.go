package app

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-tui/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	scanTimeout = 2 * time.Minute
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// scanCmd runs one tick, or a full rescan, outside the update loop.
func scanCmd(mgr *services.Manager, full bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()

		run := mgr.Refresh
		if full {
			run = mgr.Rescan
		}
		res, err := run(ctx)
		return ScanResultMsg{Result: res, Full: full, Error: err}
	}
}

func cycleModelFilterCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return FilterChangedMsg{Filter: mgr.CycleModelFilter()}
	}
}

func cycleTimeRangeCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return RangeChangedMsg{Range: mgr.CycleTimeRange()}
	}
}

func togglePauseCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return PauseToggledMsg{Paused: mgr.TogglePause()}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, LongNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// copyToClipboardCmd copies text and reports the outcome as a toast.
func copyToClipboardCmd(text, label string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return AddNotificationMsg{
				Type:     NotificationError,
				Message:  "Copy failed: " + err.Error(),
				Duration: LongNotificationDuration,
			}
		}
		return AddNotificationMsg{
			Type:     NotificationSuccess,
			Message:  "Copied " + label,
			Duration: QuickNotificationDuration,
		}
	}
}
