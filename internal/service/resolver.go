package service

import (
	"context"

	"github.com/talonscan/talon/internal/cache"
	"github.com/talonscan/talon/internal/model"
	"github.com/talonscan/talon/internal/registry"
)

// jobResolver answers the cache's validity questions: does the scan a cache
// entry points at still exist, and in what status. Live scans win; evicted
// ones fall back to the archive when one is configured.
type jobResolver struct {
	registry *registry.Registry
	archive  ArchiveRepository
}

// NewJobResolver builds the resolver the cache store validates entries
// against. archive may be nil.
func NewJobResolver(reg *registry.Registry, archive ArchiveRepository) cache.JobResolver {
	return &jobResolver{registry: reg, archive: archive}
}

func (r *jobResolver) ResolveScan(ctx context.Context, scanID string) (model.ScanStatus, bool) {
	if status, ok := r.registry.ResolveScan(ctx, scanID); ok {
		return status, true
	}
	if r.archive != nil {
		if snap, err := r.archive.GetByID(ctx, scanID); err == nil && snap != nil {
			return snap.Status, true
		}
	}
	return "", false
}
