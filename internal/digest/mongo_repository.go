package digest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

// ErrTokenMismatch is returned when an acknowledgement token does not
// match the digest.
var ErrTokenMismatch = errors.New("ack token mismatch")

// mongoRepository provides MongoDB access to digest data
type mongoRepository struct {
	digests *mongo.Collection
}

// NewRepository creates a new digest repository with instrumentation
func NewRepository(db *mongo.Database) Repository {
	return newInstrumentedRepository(&mongoRepository{
		digests: db.Collection("alert_digests"),
	})
}

// FindByID finds a digest by ID
func (r *mongoRepository) FindByID(ctx context.Context, id string) (*AlertDigest, error) {
	var d AlertDigest
	err := r.digests.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Record appends an occurrence, creating the digest on first use.
// The unique (recipient, category, day) index makes concurrent
// first-occurrence upserts collapse into one document.
func (r *mongoRepository) Record(ctx context.Context, recipient string, category Category, day string, item DigestItem) (*AlertDigest, error) {
	filter := bson.M{
		"recipient": recipient,
		"category":  category,
		"day":       day,
	}

	now := time.Now()
	update := bson.M{
		"$push": bson.M{"items": bson.M{"$each": bson.A{item}, "$slice": -MaxItems}},
		"$inc":  bson.M{"occurrenceCount": 1},
		"$set":  bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{
			"_id":            uuid.NewString(),
			"recipient":      recipient,
			"category":       category,
			"day":            day,
			"sendAttempts":   0,
			"isAcknowledged": false,
			"ackToken":       uuid.NewString(),
			"createdAt":      now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var d AlertDigest
	err := r.digests.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Concurrent upsert won; retry as a plain update
			err = r.digests.FindOneAndUpdate(ctx, filter, bson.M{
				"$push": bson.M{"items": bson.M{"$each": bson.A{item}, "$slice": -MaxItems}},
				"$inc":  bson.M{"occurrenceCount": 1},
				"$set":  bson.M{"updatedAt": now},
			}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
		}
		if err != nil {
			return nil, err
		}
	}
	return &d, nil
}

// FindEligible returns digests due for sending, oldest first
func (r *mongoRepository) FindEligible(ctx context.Context, now time.Time, maxAttempts int, limit int64) ([]*AlertDigest, error) {
	filter := bson.M{
		"isAcknowledged": false,
		"sendAttempts":   bson.M{"$lt": maxAttempts},
		"items.0":        bson.M{"$exists": true},
		"$or": []bson.M{
			{"cooldownUntil": bson.M{"$exists": false}},
			{"cooldownUntil": bson.M{"$lte": now}},
		},
	}

	opts := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.digests.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var digests []*AlertDigest
	if err := cursor.All(ctx, &digests); err != nil {
		return nil, err
	}
	return digests, nil
}

// MarkSent records a successful delivery and starts the cooldown
func (r *mongoRepository) MarkSent(ctx context.Context, id string, cooldownUntil time.Time) error {
	now := time.Now()
	result, err := r.digests.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"sentAt":        now,
			"lastAttemptAt": now,
			"cooldownUntil": cooldownUntil,
			"updatedAt":     now,
		},
		"$inc": bson.M{"sendAttempts": 1},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkFailed counts a failed delivery attempt
func (r *mongoRepository) MarkFailed(ctx context.Context, id string) error {
	now := time.Now()
	result, err := r.digests.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastAttemptAt": now, "updatedAt": now},
		"$inc": bson.M{"sendAttempts": 1},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Acknowledge marks the digest acknowledged when the token matches
func (r *mongoRepository) Acknowledge(ctx context.Context, id, token string) (*AlertDigest, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.AckToken != token {
		return nil, ErrTokenMismatch
	}
	if current.IsAcknowledged {
		return current, nil
	}

	now := time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d AlertDigest
	err = r.digests.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "ackToken": token},
		bson.M{"$set": bson.M{
			"isAcknowledged": true,
			"acknowledgedAt": now,
			"updatedAt":      now,
		}},
		opts,
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
