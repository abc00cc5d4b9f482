package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
)

// mongoSubscriberRepository provides MongoDB access to subscriber data
type mongoSubscriberRepository struct {
	subscribers *mongo.Collection
}

// NewSubscriberRepository creates a new subscriber repository with
// instrumentation
func NewSubscriberRepository(db *mongo.Database) SubscriberRepository {
	return newInstrumentedSubscriberRepository(&mongoSubscriberRepository{
		subscribers: db.Collection("subscribers"),
	})
}

// FindByID finds a subscriber by ID
func (r *mongoSubscriberRepository) FindByID(ctx context.Context, id string) (*Subscriber, error) {
	var sub Subscriber
	err := r.subscribers.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindEnabled finds all subscribers with notifications enabled
func (r *mongoSubscriberRepository) FindEnabled(ctx context.Context) ([]*Subscriber, error) {
	cursor, err := r.subscribers.Find(ctx, bson.M{"notificationsEnabled": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []*Subscriber
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Insert inserts a new subscriber
func (r *mongoSubscriberRepository) Insert(ctx context.Context, sub *Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := r.subscribers.InsertOne(ctx, sub)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateKey
	}
	return err
}

// Update replaces a subscriber document
func (r *mongoSubscriberRepository) Update(ctx context.Context, sub *Subscriber) error {
	sub.UpdatedAt = time.Now()

	result, err := r.subscribers.ReplaceOne(ctx, bson.M{"_id": sub.ID}, sub)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a subscriber
func (r *mongoSubscriberRepository) Delete(ctx context.Context, id string) error {
	result, err := r.subscribers.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
