package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateVitals(ctx context.Context, rec VitalsRecord) (VitalsRecord, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(VitalsRecord), args.Error(1)
}
func (m *MockStore) CreateMood(ctx context.Context, entry MoodEntry) (MoodEntry, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(MoodEntry), args.Error(1)
}
func (m *MockStore) CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	args := m.Called(ctx, appt)
	return args.Get(0).(Appointment), args.Error(1)
}
func (m *MockStore) UpdateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	args := m.Called(ctx, appt)
	return args.Get(0).(Appointment), args.Error(1)
}
func (m *MockStore) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Appointment), args.Error(1)
}
func (m *MockStore) GetMedication(ctx context.Context, id string) (Medication, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Medication), args.Error(1)
}
func (m *MockStore) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
