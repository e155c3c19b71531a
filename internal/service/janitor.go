package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/talonscan/talon/internal/cache"
	"github.com/talonscan/talon/internal/registry"
)

// Janitor runs the periodic housekeeping: sweeping expired cache entries and
// evicting settled scans the registry no longer needs.
type Janitor struct {
	cron     *cron.Cron
	cache    cache.Store
	registry *registry.Registry
	maxAge   time.Duration
}

// NewJanitor creates the janitor. schedule is a standard cron expression
// applied to both jobs; maxAge is how long settled scans stay in the
// registry.
func NewJanitor(cacheStore cache.Store, reg *registry.Registry, schedule string, maxAge time.Duration) (*Janitor, error) {
	j := &Janitor{
		cron:     cron.New(),
		cache:    cacheStore,
		registry: reg,
		maxAge:   maxAge,
	}

	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the housekeeping schedule.
func (j *Janitor) Start() {
	slog.Info("Starting janitor", "registry_max_age", j.maxAge)
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop(ctx context.Context) {
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		slog.Warn("Timeout waiting for janitor to stop")
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept := j.cache.SweepExpired(ctx)
	evicted := j.registry.EvictOlderThan(j.maxAge)

	if swept > 0 || evicted > 0 {
		slog.Info("Janitor sweep completed",
			"cache_entries_swept", swept,
			"scans_evicted", evicted,
		)
	}
}
