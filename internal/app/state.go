// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"strconv"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-tui/internal/aggregator"
	"github.com/j-veylop/claude-usage-tui/internal/models"
	"github.com/j-veylop/claude-usage-tui/internal/services/ingest"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// Loading resources.
const (
	ResourceInitial = "initial"
	ResourceScan    = "scan"
	ResourceHistory = "history"
)

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial bool
	Scan    bool
	History bool
}

// State is shared between the root model and the tabs.
type State struct {
	mu sync.RWMutex

	snapshot    aggregator.Snapshot
	hasSnapshot bool
	lastTick    ingest.TickResult
	lastError   error
	projection  *models.SpendProjection

	Loading LoadingState

	LastUpdated time.Time

	notifications   []Notification
	notificationSeq int
}

// NewState returns a state that is waiting for its first snapshot.
func NewState() *State {
	return &State{
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetSnapshot stores the latest published snapshot. A zero tick means the
// snapshot came from a view change and the previous tick stays current.
func (s *State) SetSnapshot(snap aggregator.Snapshot, tick ingest.TickResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snap
	s.hasSnapshot = true
	s.LastUpdated = time.Now()
	if !tick.Started.IsZero() {
		s.lastTick = tick
		if tick.Errors == 0 {
			s.lastError = nil
		}
	}
}

// Snapshot returns the latest snapshot and whether one has arrived yet.
func (s *State) Snapshot() (aggregator.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnapshot
}

// SetProjection stores the spend projection. A nil projection keeps the
// previous one.
func (s *State) SetProjection(p *models.SpendProjection) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projection = p
}

// Projection returns the latest spend projection, or nil.
func (s *State) Projection() *models.SpendProjection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projection
}

// LastTick returns the most recent ingestion tick.
func (s *State) LastTick() ingest.TickResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// SetLastError records the latest ingestion failure.
func (s *State) SetLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
}

// LastError returns the latest ingestion failure, if any.
func (s *State) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case ResourceInitial:
		s.Loading.Initial = loading
	case ResourceScan:
		s.Loading.Scan = loading
	case ResourceHistory:
		s.Loading.History = loading
	}
}

// IsLoading reports whether resource is loading.
func (s *State) IsLoading(resource string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch resource {
	case ResourceInitial:
		return s.Loading.Initial
	case ResourceScan:
		return s.Loading.Scan
	case ResourceHistory:
		return s.Loading.History
	}
	return false
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial || s.Loading.Scan || s.Loading.History
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := "n" + strconv.Itoa(s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = activeNotifications(s.notifications)
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeNotifications(s.notifications)
}

func activeNotifications(list []Notification) []Notification {
	active := make([]Notification, 0, len(list))
	for _, n := range list {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// TimeSinceUpdate returns the duration since the last snapshot.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
