package client

import "time"

type Priority int

const (
	PriorityLow Priority = iota
	PriorityDefault
	PriorityHigh
)

const (
	// defaultVisibility is how long an ordinary notification stays on screen.
	defaultVisibility = 3 * time.Second
	// emergencyVisibility is the minimum time an emergency alert must remain
	// visible unless the user dismisses it.
	emergencyVisibility = 10 * time.Second
)

// Notification is a user-visible message raised by the feed or the
// connectivity watcher. Persistent notifications stay until dismissed.
type Notification struct {
	Title      string
	Body       string
	Priority   Priority
	Duration   time.Duration
	Persistent bool
}

// Notifier presents notifications to the user. Implementations belong to the
// embedding application (system tray, mobile notification center, test stub).
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}
