package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollectionVitals       = "vitals"
	CollectionMoods        = "moods"
	CollectionAppointments = "appointments"
	CollectionMedications  = "medications"
)

const defaultDatabase = "healthsync"

type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client:   client,
		database: client.Database(defaultDatabase),
	}, nil
}

func (s *MongoStore) CreateVitals(ctx context.Context, rec VitalsRecord) (VitalsRecord, error) {
	rec.Id = uuid.NewString()
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	if _, err := s.database.Collection(CollectionVitals).InsertOne(ctx, rec); err != nil {
		return VitalsRecord{}, fmt.Errorf("insert vitals: %w", err)
	}
	return rec, nil
}

func (s *MongoStore) CreateMood(ctx context.Context, entry MoodEntry) (MoodEntry, error) {
	entry.Id = uuid.NewString()
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}

	if _, err := s.database.Collection(CollectionMoods).InsertOne(ctx, entry); err != nil {
		return MoodEntry{}, fmt.Errorf("insert mood: %w", err)
	}
	return entry, nil
}

func (s *MongoStore) CreateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	appt.Id = uuid.NewString()
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if appt.Status == "" {
		appt.Status = "scheduled"
	}

	if _, err := s.database.Collection(CollectionAppointments).InsertOne(ctx, appt); err != nil {
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return appt, nil
}

func (s *MongoStore) UpdateAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	appt.UpdatedAt = time.Now().UTC()

	res, err := s.database.Collection(CollectionAppointments).UpdateOne(ctx,
		bson.M{"_id": appt.Id, "user_id": appt.UserId},
		bson.M{"$set": bson.M{
			"provider":   appt.Provider,
			"reason":     appt.Reason,
			"status":     appt.Status,
			"starts_at":  appt.StartsAt,
			"updated_at": appt.UpdatedAt,
		}},
	)
	if err != nil {
		return Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	if res.MatchedCount == 0 {
		return Appointment{}, mongo.ErrNoDocuments
	}

	return appt, nil
}

func (s *MongoStore) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	var appt Appointment
	err := s.database.Collection(CollectionAppointments).FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if err != nil {
		return Appointment{}, fmt.Errorf("find appointment: %w", err)
	}
	return appt, nil
}

func (s *MongoStore) GetMedication(ctx context.Context, id string) (Medication, error) {
	var med Medication
	err := s.database.Collection(CollectionMedications).FindOne(ctx, bson.M{"_id": id}).Decode(&med)
	if err != nil {
		return Medication{}, fmt.Errorf("find medication: %w", err)
	}
	return med, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
