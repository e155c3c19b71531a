package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talonscan/talon/internal/model"
)

// stubResolver maps scan IDs to statuses. Scans not in the map do not exist.
type stubResolver struct {
	mu       sync.Mutex
	statuses map[string]model.ScanStatus
}

func newStubResolver() *stubResolver {
	return &stubResolver{statuses: make(map[string]model.ScanStatus)}
}

func (r *stubResolver) set(id string, status model.ScanStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
}

func (r *stubResolver) ResolveScan(ctx context.Context, scanID string) (model.ScanStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.statuses[scanID]
	return status, ok
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := newStubResolver()
	resolver.set("scan-1", model.ScanCompleted)
	store := NewMemoryStore(resolver)

	inserted, err := store.PutIfAbsent(ctx, "fp", "scan-1", time.Minute)
	require.NoError(t, err)
	require.True(t, inserted)

	scanID, ok := store.Lookup(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, "scan-1", scanID)

	stats := store.Stats(ctx)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestMemoryStore_MissCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore(newStubResolver())

	_, ok := store.Lookup(ctx, "absent")
	require.False(t, ok)
	assert.Equal(t, int64(1), store.Stats(ctx).Misses)
}

func TestMemoryStore_ExpiredEntryEvictedOnRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := newStubResolver()
	resolver.set("scan-1", model.ScanCompleted)
	store := NewMemoryStore(resolver)

	_, err := store.PutIfAbsent(ctx, "fp", "scan-1", -time.Second)
	require.NoError(t, err)

	_, ok := store.Lookup(ctx, "fp")
	require.False(t, ok)

	stats := store.Stats(ctx)
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryStore_PartialScanIsServable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := newStubResolver()
	resolver.set("scan-1", model.ScanPartial)
	store := NewMemoryStore(resolver)

	_, err := store.PutIfAbsent(ctx, "fp", "scan-1", time.Minute)
	require.NoError(t, err)

	_, ok := store.Lookup(ctx, "fp")
	assert.True(t, ok)
}

func TestMemoryStore_EvictsWhenScanGoneOrFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(r *stubResolver)
	}{
		{name: "scan no longer exists", setup: func(r *stubResolver) {}},
		{name: "scan failed", setup: func(r *stubResolver) { r.set("scan-1", model.ScanFailed) }},
		{name: "scan still running", setup: func(r *stubResolver) { r.set("scan-1", model.ScanRunning) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver := newStubResolver()
			tt.setup(resolver)
			store := NewMemoryStore(resolver)

			_, err := store.PutIfAbsent(ctx, "fp", "scan-1", time.Minute)
			require.NoError(t, err)

			_, ok := store.Lookup(ctx, "fp")
			require.False(t, ok)
			assert.Equal(t, 0, store.Stats(ctx).Entries, "invalid entry must be dropped")
		})
	}
}

func TestMemoryStore_PutIfAbsent_FirstWriterWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := newStubResolver()
	resolver.set("scan-1", model.ScanCompleted)
	store := NewMemoryStore(resolver)

	inserted, err := store.PutIfAbsent(ctx, "fp", "scan-1", time.Minute)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.PutIfAbsent(ctx, "fp", "scan-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, inserted)

	scanID, ok := store.Lookup(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, "scan-1", scanID)
}

func TestMemoryStore_PutIfAbsent_ReplacesExpiredEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := newStubResolver()
	resolver.set("scan-2", model.ScanCompleted)
	store := NewMemoryStore(resolver)

	_, err := store.PutIfAbsent(ctx, "fp", "scan-1", -time.Second)
	require.NoError(t, err)

	inserted, err := store.PutIfAbsent(ctx, "fp", "scan-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, inserted, "expired entries do not block new writers")

	scanID, ok := store.Lookup(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, "scan-2", scanID)
}

func TestMemoryStore_PutIfAbsent_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore(newStubResolver())

	const writers = 32
	var wg sync.WaitGroup
	results := make(chan bool, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, err := store.PutIfAbsent(ctx, "fp", fmt.Sprintf("scan-%d", i), time.Minute)
			assert.NoError(t, err)
			results <- inserted
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for inserted := range results {
		if inserted {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent writer may insert")
}

func TestMemoryStore_Invalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	resolver := newStubResolver()
	resolver.set("scan-1", model.ScanCompleted)
	store := NewMemoryStore(resolver)

	_, err := store.PutIfAbsent(ctx, "fp", "scan-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, "fp"))

	_, ok := store.Lookup(ctx, "fp")
	assert.False(t, ok)

	// Invalidating an absent key is not an error.
	require.NoError(t, store.Invalidate(ctx, "fp"))
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore(newStubResolver())

	_, err := store.PutIfAbsent(ctx, "live", "scan-1", time.Minute)
	require.NoError(t, err)
	_, err = store.PutIfAbsent(ctx, "dead-1", "scan-2", -time.Second)
	require.NoError(t, err)
	_, err = store.PutIfAbsent(ctx, "dead-2", "scan-3", -time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, store.SweepExpired(ctx))
	assert.Equal(t, 1, store.Stats(ctx).Entries)
	assert.Equal(t, 0, store.SweepExpired(ctx))
}
