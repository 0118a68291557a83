package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wellbeat/healthsync/internal/server"
	"github.com/wellbeat/healthsync/internal/store"
	"github.com/wellbeat/healthsync/pkg/event"
)

type CreateVitalsRequest struct {
	HeartRate   int     `json:"heart_rate"`
	SystolicBP  int     `json:"systolic_bp"`
	DiastolicBP int     `json:"diastolic_bp"`
	SleepHours  float64 `json:"sleep_hours"`
}

type CreateMoodRequest struct {
	Mood      string `json:"mood"`
	Intensity int    `json:"intensity"`
	Note      string `json:"note"`
}

type AppointmentRequest struct {
	Provider string    `json:"provider"`
	Reason   string    `json:"reason"`
	Status   string    `json:"status"`
	StartsAt time.Time `json:"starts_at"`
}

type EmergencyRequest struct {
	Data json.RawMessage `json:"data"`
}

func (a *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Errorf("json encode: %v", err)
	}
}

// publish serializes the stored record and dispatches the update. Called only
// after the write is durably committed; losing the notification is acceptable,
// losing the write is not.
func (a *App) publish(t event.UpdateType, userId string, record interface{}) {
	payload, err := json.Marshal(record)
	if err != nil {
		a.log.Errorf("marshal update payload: %v", err)
		return
	}

	a.dispatcher.Publish(t, payload, userId)
}

func (a *App) createVitals(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateVitalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rec, err := a.store.CreateVitals(r.Context(), store.VitalsRecord{
		UserId:      userId,
		HeartRate:   req.HeartRate,
		SystolicBP:  req.SystolicBP,
		DiastolicBP: req.DiastolicBP,
		SleepHours:  req.SleepHours,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.publish(event.Vitals, userId, rec)
	a.writeJson(w, http.StatusCreated, rec)
}

func (a *App) createMood(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateMoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mood == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	entry, err := a.store.CreateMood(r.Context(), store.MoodEntry{
		UserId:    userId,
		Mood:      req.Mood,
		Intensity: req.Intensity,
		Note:      req.Note,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.publish(event.Mood, userId, entry)
	a.writeJson(w, http.StatusCreated, entry)
}

func (a *App) createAppointment(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	appt, err := a.store.CreateAppointment(r.Context(), store.Appointment{
		UserId:   userId,
		Provider: req.Provider,
		Reason:   req.Reason,
		Status:   req.Status,
		StartsAt: req.StartsAt,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.publish(event.Appointment, userId, appt)
	a.writeJson(w, http.StatusCreated, appt)
}

func (a *App) updateAppointment(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	appt, err := a.store.UpdateAppointment(r.Context(), store.Appointment{
		Id:       id,
		UserId:   userId,
		Provider: req.Provider,
		Reason:   req.Reason,
		Status:   req.Status,
		StartsAt: req.StartsAt,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, mongo.ErrNoDocuments) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.publish(event.Appointment, userId, appt)
	a.writeJson(w, http.StatusOK, appt)
}

func (a *App) remindMedication(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	med, err := a.store.GetMedication(r.Context(), r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, mongo.ErrNoDocuments) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if med.UserId != userId {
		errResp := NewForbiddenError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.publish(event.Medication, userId, med)
	a.writeJson(w, http.StatusAccepted, med)
}

// emergencyAlert publishes an emergency alert to the acting user's own
// connections. The alert is pure notification; escalation to responders is an
// external collaborator reached through the hub's emergency handler.
func (a *App) emergencyAlert(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req EmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	update := a.dispatcher.Publish(event.Emergency, req.Data, userId)
	a.writeJson(w, http.StatusAccepted, update)
}

func (a *App) serveWs(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewForbiddenError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Errorf("upgrade: %v", err)
		return
	}

	client := server.NewClient(conn, a.hub, a.log)
	a.hub.RegisterChan <- client

	go client.Write()
	go client.Read()
}
