// Package registry holds the live scan contexts for this process. It is the
// only structure shared across scan goroutines besides the cache, so it must
// be safe for concurrent read, insert and delete.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/talonscan/talon/internal/model"
)

// Registry is a concurrent-safe store of live scans keyed by scan ID.
// Constructed once at process start and injected; there is no package-level
// instance.
type Registry struct {
	mu    sync.RWMutex
	scans map[string]*model.ScanContext
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{scans: make(map[string]*model.ScanContext)}
}

// Put stores a scan context.
func (r *Registry) Put(sc *model.ScanContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans[sc.ID()] = sc
}

// Get returns the live scan context for an ID.
func (r *Registry) Get(id string) (*model.ScanContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.scans[id]
	return sc, ok
}

// Delete removes a scan context.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scans, id)
}

// Len returns the number of live scans.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scans)
}

// ResolveScan reports the status of a live scan. Satisfies the cache's job
// resolver so cache entries can be validated against the scans they point at.
func (r *Registry) ResolveScan(ctx context.Context, scanID string) (model.ScanStatus, bool) {
	if sc, ok := r.Get(scanID); ok {
		return sc.Status(), true
	}
	return "", false
}

// EvictOlderThan removes terminal scans created more than maxAge ago and
// returns how many were evicted. Scans still running are never evicted,
// whatever their age.
func (r *Registry) EvictOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, sc := range r.scans {
		if sc.Status().Terminal() && sc.CreatedAt().Before(cutoff) {
			delete(r.scans, id)
			evicted++
		}
	}
	return evicted
}
