package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talonscan/talon/internal/model"
)

// ScanRepository archives finalized scan snapshots so results outlive the
// in-process registry.
type ScanRepository struct {
	collection *mongo.Collection
}

// NewScanRepository creates a new scan repository
func NewScanRepository(db *MongoDB) *ScanRepository {
	return &ScanRepository{
		collection: db.GetCollection(CollectionScans),
	}
}

// Save upserts a scan snapshot by ID. A retried scan overwrites its earlier
// archived state.
func (r *ScanRepository) Save(ctx context.Context, snapshot *model.ScanSnapshot) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": snapshot.ID}, snapshot, opts)
	if err != nil {
		return fmt.Errorf("failed to archive scan: %w", err)
	}
	return nil
}

// GetByID retrieves an archived scan snapshot.
func (r *ScanRepository) GetByID(ctx context.Context, id string) (*model.ScanSnapshot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var snapshot model.ScanSnapshot
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	return &snapshot, nil
}

// List retrieves archived scans with pagination, newest first.
func (r *ScanRepository) List(ctx context.Context, filter bson.M, page, limit int) ([]model.ScanSnapshot, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count scans: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scans: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var scans []model.ScanSnapshot
	if err := cursor.All(ctxTimeout, &scans); err != nil {
		return nil, 0, fmt.Errorf("failed to decode scans: %w", err)
	}

	return scans, total, nil
}
