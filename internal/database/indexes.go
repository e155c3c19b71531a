package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes sets up the indexes both repositories rely on. Safe to call
// on every startup; Mongo treats existing identical indexes as a no-op.
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	scans := db.GetCollection(CollectionScans)
	scanIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "fingerprint", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := scans.Indexes().CreateMany(ctxTimeout, scanIndexes); err != nil {
		return fmt.Errorf("failed to create scan indexes: %w", err)
	}

	// Cache entries key on _id (the fingerprint), which is unique by
	// construction; the TTL index lets the server expire entries on its own
	// in addition to the lazy read-time eviction.
	entries := db.GetCollection(CollectionCacheEntries)
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := entries.Indexes().CreateOne(ctxTimeout, ttlIndex); err != nil {
		return fmt.Errorf("failed to create cache TTL index: %w", err)
	}

	slog.Info("MongoDB indexes created")
	return nil
}
