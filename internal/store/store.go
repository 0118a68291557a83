package store

import (
	"context"
	"time"
)

// VitalsRecord is a single vitals measurement reported for a user.
type VitalsRecord struct {
	Id          string    `bson:"_id,omitempty" json:"id"`
	UserId      string    `bson:"user_id" json:"user_id"`
	HeartRate   int       `bson:"heart_rate,omitempty" json:"heart_rate,omitempty"`
	SystolicBP  int       `bson:"systolic_bp,omitempty" json:"systolic_bp,omitempty"`
	DiastolicBP int       `bson:"diastolic_bp,omitempty" json:"diastolic_bp,omitempty"`
	SleepHours  float64   `bson:"sleep_hours,omitempty" json:"sleep_hours,omitempty"`
	RecordedAt  time.Time `bson:"recorded_at" json:"recorded_at"`
}

// MoodEntry is a single mood log entry.
type MoodEntry struct {
	Id        string    `bson:"_id,omitempty" json:"id"`
	UserId    string    `bson:"user_id" json:"user_id"`
	Mood      string    `bson:"mood" json:"mood"`
	Intensity int       `bson:"intensity,omitempty" json:"intensity,omitempty"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
	LoggedAt  time.Time `bson:"logged_at" json:"logged_at"`
}

// Appointment is a scheduled session with a care provider.
type Appointment struct {
	Id        string    `bson:"_id,omitempty" json:"id"`
	UserId    string    `bson:"user_id" json:"user_id"`
	Provider  string    `bson:"provider" json:"provider"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	Status    string    `bson:"status" json:"status"`
	StartsAt  time.Time `bson:"starts_at" json:"starts_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Medication is a prescribed medication with a reminder schedule.
type Medication struct {
	Id       string `bson:"_id,omitempty" json:"id"`
	UserId   string `bson:"user_id" json:"user_id"`
	Name     string `bson:"name" json:"name"`
	Dosage   string `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Schedule string `bson:"schedule,omitempty" json:"schedule,omitempty"`
}

// Store is the document store behind the write routes. Every write must be
// durable before the corresponding health update is published.
type Store interface {
	CreateVitals(ctx context.Context, rec VitalsRecord) (VitalsRecord, error)
	CreateMood(ctx context.Context, entry MoodEntry) (MoodEntry, error)
	CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error)
	UpdateAppointment(ctx context.Context, appt Appointment) (Appointment, error)
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	GetMedication(ctx context.Context, id string) (Medication, error)
	Close(ctx context.Context) error
}
