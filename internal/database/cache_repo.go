package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/talonscan/talon/internal/cache"
	"github.com/talonscan/talon/internal/model"
)

// CacheRepository is the Mongo-backed cache store, for deployments where the
// result cache must be shared across instances or survive restarts. The
// fingerprint is the document _id, so insert-if-absent rides on the primary
// key: the first writer's InsertOne succeeds, every other one gets a
// duplicate-key error. That is the stampede protection, done by the server
// rather than a local mutex.
type CacheRepository struct {
	collection *mongo.Collection
	resolver   cache.JobResolver

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(db *MongoDB, resolver cache.JobResolver) *CacheRepository {
	return &CacheRepository{
		collection: db.GetCollection(CollectionCacheEntries),
		resolver:   resolver,
	}
}

var _ cache.Store = (*CacheRepository)(nil)

// Lookup returns the referenced scan ID if the entry is valid, evicting
// expired or dangling entries on read.
func (r *CacheRepository) Lookup(ctx context.Context, fingerprint string) (string, bool) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var entry cache.Entry
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": fingerprint}).Decode(&entry)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			slog.Error("Cache lookup failed", "error", err)
		}
		r.misses.Add(1)
		return "", false
	}

	now := time.Now().UTC()
	if entry.Expired(now) {
		r.evict(ctxTimeout, fingerprint, entry.ScanID)
		r.misses.Add(1)
		return "", false
	}

	status, exists := r.resolver.ResolveScan(ctx, entry.ScanID)
	if !exists || (status != model.ScanCompleted && status != model.ScanPartial) {
		r.evict(ctxTimeout, fingerprint, entry.ScanID)
		r.misses.Add(1)
		return "", false
	}

	r.hits.Add(1)
	return entry.ScanID, true
}

// PutIfAbsent inserts an entry unless the fingerprint already holds a live
// one. An expired leftover is replaced atomically through a filtered
// replace, so two racing writers still produce exactly one winner.
func (r *CacheRepository) PutIfAbsent(ctx context.Context, fingerprint, scanID string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	entry := cache.Entry{
		Key:       fingerprint,
		ScanID:    scanID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := r.collection.InsertOne(ctxTimeout, entry)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to insert cache entry: %w", err)
	}

	// Key taken. Claim it only if the existing entry has expired.
	filter := bson.M{"_id": fingerprint, "expires_at": bson.M{"$lt": now}}
	result, err := r.collection.ReplaceOne(ctxTimeout, filter, entry)
	if err != nil {
		return false, fmt.Errorf("failed to replace expired cache entry: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// Invalidate removes an entry regardless of TTL.
func (r *CacheRepository) Invalidate(ctx context.Context, fingerprint string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"_id": fingerprint})
	if err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	if result.DeletedCount > 0 {
		r.evictions.Add(1)
	}
	return nil
}

// SweepExpired deletes expired entries. The TTL index does this too; the
// sweep keeps counters honest and covers deployments without it.
func (r *CacheRepository) SweepExpired(ctx context.Context) int {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		slog.Error("Cache sweep failed", "error", err)
		return 0
	}

	swept := int(result.DeletedCount)
	if swept > 0 {
		r.evictions.Add(int64(swept))
		slog.Debug("Swept expired cache entries", "count", swept)
	}
	return swept
}

// Stats returns a counter snapshot. Entry count comes from the server.
func (r *CacheRepository) Stats(ctx context.Context) cache.Stats {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	entries, err := r.collection.CountDocuments(ctxTimeout, bson.M{})
	if err != nil {
		slog.Error("Failed to count cache entries", "error", err)
	}

	return cache.Stats{
		Entries:   int(entries),
		Hits:      r.hits.Load(),
		Misses:    r.misses.Load(),
		Evictions: r.evictions.Load(),
	}
}

func (r *CacheRepository) evict(ctx context.Context, fingerprint, scanID string) {
	filter := bson.M{"_id": fingerprint, "scan_id": scanID}
	if result, err := r.collection.DeleteOne(ctx, filter); err == nil && result.DeletedCount > 0 {
		r.evictions.Add(1)
	}
}
