package app

import (
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/services"
	"github.com/j-veylop/claude-usage-tui/internal/services/ingest"
)

// TickMsg is sent periodically to expire notifications.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// ScanResultMsg contains the result of a user-requested scan.
type ScanResultMsg struct {
	Result ingest.TickResult
	Full   bool
	Error  error
}

// FilterChangedMsg reports the model filter now in effect.
type FilterChangedMsg struct {
	Filter aggregator.ModelFilter
}

// RangeChangedMsg reports the time range now in effect.
type RangeChangedMsg struct {
	Range aggregator.TimeRange
}

// PauseToggledMsg reports whether the request feed is frozen.
type PauseToggledMsg struct {
	Paused bool
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string // ResourceScan or ResourceHistory
	Full     bool
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// CopyToClipboardMsg requests copying text to the system clipboard.
type CopyToClipboardMsg struct {
	Text  string
	Label string
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}
