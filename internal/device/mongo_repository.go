package device

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

// mongoRegistry provides MongoDB access to device data
type mongoRegistry struct {
	devices *mongo.Collection
}

// NewRegistry creates a new device registry with instrumentation
func NewRegistry(db *mongo.Database) Registry {
	return newInstrumentedRegistry(&mongoRegistry{
		devices: db.Collection("devices"),
	})
}

// FindByID finds a device by ID
func (r *mongoRegistry) FindByID(ctx context.Context, id string) (*Device, error) {
	var device Device
	err := r.devices.FindOne(ctx, bson.M{"_id": id}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &device, nil
}

// Insert inserts a new device
func (r *mongoRegistry) Insert(ctx context.Context, device *Device) error {
	now := time.Now()
	if device.RegisteredAt.IsZero() {
		device.RegisteredAt = now
	}
	device.UpdatedAt = now

	_, err := r.devices.InsertOne(ctx, device)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateKey
	}
	return err
}

// Update replaces a device document
func (r *mongoRegistry) Update(ctx context.Context, device *Device) error {
	device.UpdatedAt = time.Now()

	result, err := r.devices.ReplaceOne(ctx, bson.M{"_id": device.ID}, device)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// TouchStatus marks the device online and refreshes lastSeen
func (r *mongoRegistry) TouchStatus(ctx context.Context, id string, seenAt time.Time) error {
	result, err := r.devices.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"status":    StatusOnline,
				"lastSeen":  seenAt,
				"updatedAt": time.Now(),
			},
			"$unset": bson.M{"offlineSince": ""},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkOfflineBefore flips stale online devices to offline
func (r *mongoRegistry) MarkOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.devices.UpdateMany(ctx,
		bson.M{
			"status":   StatusOnline,
			"lastSeen": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":       StatusOffline,
			"offlineSince": time.Now(),
			"updatedAt":    time.Now(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// Delete removes a device
func (r *mongoRegistry) Delete(ctx context.Context, id string) error {
	result, err := r.devices.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
