package mongo

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexDefinition defines a MongoDB index
type IndexDefinition struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptions
}

// IndexInitializer creates indexes on startup
type IndexInitializer struct {
	client *Client
}

// NewIndexInitializer creates a new index initializer
func NewIndexInitializer(client *Client) *IndexInitializer {
	return &IndexInitializer{client: client}
}

// Initialize creates all required indexes
func (i *IndexInitializer) Initialize(ctx context.Context) error {
	indexes := i.getIndexDefinitions()

	for _, idx := range indexes {
		if err := i.createIndex(ctx, idx); err != nil {
			slog.Warn("Failed to create index (may already exist)",
				"error", err,
				"collection", idx.Collection)
		}
	}

	slog.Info("Index initialization complete", "count", len(indexes))
	return nil
}

func (i *IndexInitializer) createIndex(ctx context.Context, idx IndexDefinition) error {
	collection := i.client.Collection(idx.Collection)

	indexModel := mongo.IndexModel{
		Keys:    idx.Keys,
		Options: idx.Options,
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

func (i *IndexInitializer) getIndexDefinitions() []IndexDefinition {
	return []IndexDefinition{
		// alerts: backstop for transactional dedup. The transaction is the
		// enforced boundary; this partial unique index catches writers that
		// bypass it.
		{
			Collection: "alerts",
			Keys: bson.D{
				{Key: "deviceId", Value: 1},
				{Key: "parameter", Value: 1},
				{Key: "alertType", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "ACTIVE"}),
		},
		{
			Collection: "alerts",
			Keys:       bson.D{{Key: "deviceId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Collection: "alerts",
			Keys:       bson.D{{Key: "status", Value: 1}},
		},

		// alert_digests: scheduler eligibility scan
		{
			Collection: "alert_digests",
			Keys: bson.D{
				{Key: "isAcknowledged", Value: 1},
				{Key: "cooldownUntil", Value: 1},
				{Key: "sendAttempts", Value: 1},
			},
		},
		{
			Collection: "alert_digests",
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "category", Value: 1},
				{Key: "day", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},

		// subscribers: recipient resolution
		{
			Collection: "subscribers",
			Keys:       bson.D{{Key: "notificationsEnabled", Value: 1}},
		},

		// devices: offline sweep
		{
			Collection: "devices",
			Keys:       bson.D{{Key: "status", Value: 1}, {Key: "lastSeen", Value: 1}},
		},
	}
}
