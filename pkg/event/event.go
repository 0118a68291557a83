package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpdateType identifies the kind of health update carried by a HealthUpdate.
// The set is closed: adding a new type means extending the constants below
// and the maps that dispatch on them, which the tests check for exhaustiveness.
type UpdateType int

const (
	Vitals UpdateType = iota
	Medication
	Appointment
	Mood
	Emergency
)

// Wire names for each update type as sent over the websocket.
const (
	EventVitalsUpdated      = "vitals-updated"
	EventMedicationReminder = "medication-reminder"
	EventAppointmentUpdated = "appointment-updated"
	EventMoodUpdated        = "mood-updated"
	EventEmergencyAlert     = "emergency-alert"
)

var wireNames = map[UpdateType]string{
	Vitals:      EventVitalsUpdated,
	Medication:  EventMedicationReminder,
	Appointment: EventAppointmentUpdated,
	Mood:        EventMoodUpdated,
	Emergency:   EventEmergencyAlert,
}

var typesByWireName = func() map[string]UpdateType {
	m := make(map[string]UpdateType, len(wireNames))
	for t, name := range wireNames {
		m[name] = t
	}
	return m
}()

// Types lists every update type in a stable order.
func Types() []UpdateType {
	return []UpdateType{Vitals, Medication, Appointment, Mood, Emergency}
}

func (t UpdateType) String() string {
	name, ok := wireNames[t]
	if !ok {
		return fmt.Sprintf("UpdateType(%d)", int(t))
	}
	return name
}

// Valid reports whether t is one of the defined update types.
func (t UpdateType) Valid() bool {
	_, ok := wireNames[t]
	return ok
}

// ParseType maps a wire name back to its UpdateType.
func ParseType(name string) (UpdateType, error) {
	t, ok := typesByWireName[name]
	if !ok {
		return 0, fmt.Errorf("unknown update type %q", name)
	}
	return t, nil
}

func (t UpdateType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid update type %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *UpdateType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseType(name)
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// HealthUpdate is an immutable notification value produced once per
// state-changing write. The payload is opaque to this layer; its shape is
// owned by the producing route handler.
type HealthUpdate struct {
	Id        string          `json:"id"`
	Type      UpdateType      `json:"type"`
	UserId    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewHealthUpdate builds a HealthUpdate stamped with the server-observed time.
func NewHealthUpdate(t UpdateType, userId string, payload json.RawMessage) HealthUpdate {
	return HealthUpdate{
		Id:        uuid.NewString(),
		Type:      t,
		UserId:    userId,
		Payload:   payload,
		Timestamp: Now(),
	}
}

// Now returns the current UTC time rounded to millisecond precision,
// matching what survives a JSON round trip to the clients.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
