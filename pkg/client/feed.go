package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wellbeat/healthsync/pkg/event"
)

// historyLimit caps the feed's recent-history buffer.
const historyLimit = 10

// EmergencyNumber is the regional emergency services number dialed when the
// network path is unavailable.
const EmergencyNumber = "911"

// FeedTransport is what the feed needs from the transport layer. *Transport
// satisfies it; tests substitute a fake.
type FeedTransport interface {
	On(updateType event.UpdateType, fn UpdateHandler) *Subscription
	OnStateChange(fn func(State)) *Subscription
	State() State
	EmitTelemetry(updateType event.UpdateType, data json.RawMessage) error
	EmitEmergency(data json.RawMessage) error
}

// EmergencyDialer places a direct device-level emergency call, bypassing the
// network entirely. Implementations must return without blocking on I/O.
type EmergencyDialer interface {
	Dial(number string)
}

// Feed consumes dispatched health updates for the signed-in user, keeps a
// bounded newest-first history, and raises a user-visible notification per
// update. It is inert until Activate and after Deactivate.
type Feed struct {
	transport FeedTransport
	notifier  Notifier
	dialer    EmergencyDialer
	log       *logrus.Logger

	mu      sync.Mutex
	history []event.HealthUpdate
	subs    []*Subscription
	active  bool
}

func NewFeed(transport FeedTransport, notifier Notifier, dialer EmergencyDialer, logger *logrus.Logger) *Feed {
	if logger == nil {
		logger = logrus.New()
	}

	return &Feed{
		transport: transport,
		notifier:  notifier,
		dialer:    dialer,
		log:       logger,
	}
}

// Activate subscribes to every update type plus the connection-state signal.
// Idempotent.
func (f *Feed) Activate() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active {
		return
	}
	f.active = true

	for _, t := range event.Types() {
		f.subs = append(f.subs, f.transport.On(t, f.consume))
	}
	f.subs = append(f.subs, f.transport.OnStateChange(f.onStateChange))
}

// Deactivate cancels every subscription and clears history. Used on logout
// and when switching into demo mode; no events are processed afterward even
// if the transport is still connected.
func (f *Feed) Deactivate() {
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.history = nil
	f.active = false
	f.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}

// History returns a copy of the recent updates, newest first.
func (f *Feed) History() []event.HealthUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]event.HealthUpdate, len(f.history))
	copy(out, f.history)
	return out
}

func (f *Feed) consume(update event.HealthUpdate) {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}

	f.history = append([]event.HealthUpdate{update}, f.history...)
	if len(f.history) > historyLimit {
		f.history = f.history[:historyLimit]
	}
	f.mu.Unlock()

	f.notifier.Notify(notificationFor(update))
}

func (f *Feed) onStateChange(s State) {
	f.log.Debugf("connection state: %s", s)
}

// EmitHealthUpdate sends low-value telemetry. A no-op unless connected;
// queueing for state-changing writes is the offline queue's job, not this
// helper's.
func (f *Feed) EmitHealthUpdate(updateType event.UpdateType, data json.RawMessage) {
	if f.transport.State() != StateConnected {
		return
	}

	if err := f.transport.EmitTelemetry(updateType, data); err != nil {
		f.log.Debugf("emit telemetry: %v", err)
	}
}

// RequestEmergencySupport asks for help over the socket when connected, and
// otherwise falls back synchronously to a direct emergency call. The fallback
// never waits on a connection attempt.
func (f *Feed) RequestEmergencySupport(data json.RawMessage) {
	if f.transport.State() == StateConnected {
		if err := f.transport.EmitEmergency(data); err == nil {
			f.notifier.Notify(Notification{
				Title:    "Emergency support requested",
				Body:     "Your care team has been notified.",
				Priority: PriorityHigh,
				Duration: emergencyVisibility,
			})
			return
		}
		f.log.Error("emergency emit failed, falling back to direct call")
	}

	f.dialer.Dial(EmergencyNumber)
	f.notifier.Notify(Notification{
		Title:      "Calling emergency services",
		Body:       fmt.Sprintf("Dialing %s", EmergencyNumber),
		Priority:   PriorityHigh,
		Duration:   emergencyVisibility,
		Persistent: true,
	})
}

// notificationFor maps each update type to its user-visible notification.
// The switch is exhaustive over event.Types.
func notificationFor(update event.HealthUpdate) Notification {
	switch update.Type {
	case event.Vitals:
		return Notification{
			Title:    "Vitals updated",
			Body:     "New vitals have been recorded.",
			Priority: PriorityDefault,
			Duration: defaultVisibility,
		}
	case event.Medication:
		body := "Time to take your medication."
		var med struct {
			Name   string `json:"name"`
			Dosage string `json:"dosage"`
		}
		if err := json.Unmarshal(update.Payload, &med); err == nil && med.Name != "" {
			body = fmt.Sprintf("Time to take %s", med.Name)
			if med.Dosage != "" {
				body = fmt.Sprintf("%s (%s)", body, med.Dosage)
			}
		}
		return Notification{
			Title:    "Medication reminder",
			Body:     body,
			Priority: PriorityDefault,
			Duration: defaultVisibility,
		}
	case event.Appointment:
		return Notification{
			Title:    "Appointment updated",
			Body:     "One of your appointments has changed.",
			Priority: PriorityDefault,
			Duration: defaultVisibility,
		}
	case event.Mood:
		return Notification{
			Title:    "Mood logged",
			Body:     "Your mood entry has been saved.",
			Priority: PriorityDefault,
			Duration: defaultVisibility,
		}
	case event.Emergency:
		return Notification{
			Title:    "Emergency alert",
			Body:     "An emergency alert was raised on your account.",
			Priority: PriorityHigh,
			Duration: emergencyVisibility,
		}
	}

	return Notification{
		Title:    "Health update",
		Priority: PriorityDefault,
		Duration: defaultVisibility,
	}
}
