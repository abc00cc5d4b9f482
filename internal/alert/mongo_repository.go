package alert

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pmongo "github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/mongo"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// mongoRepository provides MongoDB access to alert data
type mongoRepository struct {
	client *pmongo.Client
	alerts *mongo.Collection
}

// NewRepository creates a new alert repository with instrumentation
func NewRepository(client *pmongo.Client) Repository {
	return newInstrumentedRepository(&mongoRepository{
		client: client,
		alerts: client.Collection("alerts"),
	})
}

// FindByID finds an alert by ID
func (r *mongoRepository) FindByID(ctx context.Context, id string) (*Alert, error) {
	var a Alert
	err := r.alerts.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func activeFilter(deviceID string, param telemetry.Parameter, alertType AlertType) bson.M {
	return bson.M{
		"deviceId":  deviceID,
		"parameter": param,
		"alertType": alertType,
		"status":    AlertStatusActive,
	}
}

// FindActive finds the active alert for a device, parameter and type
func (r *mongoRepository) FindActive(ctx context.Context, deviceID string, param telemetry.Parameter, alertType AlertType) (*Alert, error) {
	var a Alert
	err := r.alerts.FindOne(ctx, activeFilter(deviceID, param, alertType)).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindByDevice finds recent alerts for a device, newest first
func (r *mongoRepository) FindByDevice(ctx context.Context, deviceID string, limit int64) ([]*Alert, error) {
	opts := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.alerts.Find(ctx, bson.M{"deviceId": deviceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []*Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// CreateIfAbsent inserts the candidate unless an active alert already
// covers the same (deviceId, parameter, alertType). The lookup and
// insert run in one transaction; the partial unique index backstops
// writers racing outside it.
func (r *mongoRepository) CreateIfAbsent(ctx context.Context, candidate *Alert) (*Alert, bool, error) {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	now := time.Now()
	candidate.Status = AlertStatusActive
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	var stored *Alert
	var created bool

	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		stored = nil
		created = false

		var existing Alert
		err := r.alerts.FindOne(sessCtx, activeFilter(candidate.DeviceID, candidate.Parameter, candidate.AlertType)).Decode(&existing)
		if err == nil {
			stored = &existing
			return nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}

		if _, err := r.alerts.InsertOne(sessCtx, candidate); err != nil {
			return err
		}
		stored = candidate
		created = true
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race to another writer; surface its alert
			existing, findErr := r.FindActive(ctx, candidate.DeviceID, candidate.Parameter, candidate.AlertType)
			if findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return stored, created, nil
}

// UpdateStatus applies a lifecycle transition
func (r *mongoRepository) UpdateStatus(ctx context.Context, id string, status AlertStatus) (*Alert, error) {
	var updated *Alert

	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var current Alert
		if err := r.alerts.FindOne(sessCtx, bson.M{"_id": id}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return repository.ErrNotFound
			}
			return err
		}

		if !current.CanTransition(status) {
			return repository.ErrInvalidTransition
		}

		now := time.Now()
		set := bson.M{"status": status, "updatedAt": now}
		switch status {
		case AlertStatusAcknowledged:
			set["acknowledgedAt"] = now
		case AlertStatusResolved:
			set["resolvedAt"] = now
		}

		if _, err := r.alerts.UpdateByID(sessCtx, id, bson.M{"$set": set}); err != nil {
			return err
		}

		current.Status = status
		current.UpdatedAt = now
		updated = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AppendNotified records notified users on the alert
func (r *mongoRepository) AppendNotified(ctx context.Context, id string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	result, err := r.alerts.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"notifiedUsers": bson.M{"$each": userIDs}},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
