// Package cache maps normalized-request fingerprints to completed scans.
// The cache never owns scan data: an entry is a scan ID plus TTL metadata,
// and validity is re-checked against the scan itself on every read.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talonscan/talon/internal/model"
)

// Entry is a completed-scan memo. Valid only while now < ExpiresAt and the
// referenced scan still exists with a non-failed terminal status.
type Entry struct {
	Key       string    `json:"key" bson:"_id"`
	ScanID    string    `json:"scan_id" bson:"scan_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the entry's TTL has passed.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// JobResolver reports the current status of a scan the cache references.
// Implemented by the registry (optionally falling back to the archive).
type JobResolver interface {
	ResolveScan(ctx context.Context, scanID string) (model.ScanStatus, bool)
}

// Store is the cache contract the orchestrator depends on. PutIfAbsent must
// be atomic: of two concurrent writers for the same fingerprint exactly one
// wins, which is the stampede protection.
type Store interface {
	Lookup(ctx context.Context, fingerprint string) (scanID string, ok bool)
	PutIfAbsent(ctx context.Context, fingerprint, scanID string, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, fingerprint string) error
	SweepExpired(ctx context.Context) int
	Stats(ctx context.Context) Stats
}

// MemoryStore is the in-process Store. Locking covers only map mutation;
// the resolver call happens outside the lock so a slow backing store never
// blocks other cache users.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry

	resolver JobResolver

	hits      int64
	misses    int64
	evictions int64
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore(resolver JobResolver) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]*Entry),
		resolver: resolver,
	}
}

// Lookup returns the referenced scan ID if the entry is still valid. Expired
// entries and entries whose scan is gone or failed are evicted on read —
// lazy expiration, not a background-only sweep.
func (s *MemoryStore) Lookup(ctx context.Context, fingerprint string) (string, bool) {
	now := time.Now().UTC()

	s.mu.Lock()
	entry, ok := s.entries[fingerprint]
	if !ok {
		s.misses++
		s.mu.Unlock()
		return "", false
	}
	if entry.Expired(now) {
		delete(s.entries, fingerprint)
		s.misses++
		s.evictions++
		s.mu.Unlock()
		return "", false
	}
	scanID := entry.ScanID
	s.mu.Unlock()

	status, exists := s.resolver.ResolveScan(ctx, scanID)
	if !exists || (status != model.ScanCompleted && status != model.ScanPartial) {
		s.mu.Lock()
		if current, ok := s.entries[fingerprint]; ok && current.ScanID == scanID {
			delete(s.entries, fingerprint)
			s.evictions++
		}
		s.misses++
		s.mu.Unlock()
		return "", false
	}

	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	return scanID, true
}

// PutIfAbsent inserts an entry only if the fingerprint is not already
// present, returning whether the insert happened. The first writer wins.
func (s *MemoryStore) PutIfAbsent(ctx context.Context, fingerprint, scanID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[fingerprint]; ok && !existing.Expired(now) {
		return false, nil
	}

	s.entries[fingerprint] = &Entry{
		Key:       fingerprint,
		ScanID:    scanID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return true, nil
}

// Invalidate removes an entry regardless of TTL.
func (s *MemoryStore) Invalidate(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[fingerprint]; ok {
		delete(s.entries, fingerprint)
		s.evictions++
	}
	return nil
}

// SweepExpired removes every expired entry and returns how many were
// dropped. Run periodically by the janitor.
func (s *MemoryStore) SweepExpired(ctx context.Context) int {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			swept++
		}
	}
	if swept > 0 {
		s.evictions += int64(swept)
		slog.Debug("Swept expired cache entries", "count", swept)
	}
	return swept
}

// Stats returns a counter snapshot.
func (s *MemoryStore) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Entries:   len(s.entries),
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
}
