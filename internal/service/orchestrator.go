package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talonscan/talon/internal/cache"
	"github.com/talonscan/talon/internal/checks"
	"github.com/talonscan/talon/internal/events"
	"github.com/talonscan/talon/internal/model"
	"github.com/talonscan/talon/internal/plan"
	"github.com/talonscan/talon/internal/registry"
)

// ArchiveRepository is the optional durable store for finalized scans. The
// orchestrator's contract is the same whether scans live only in the
// registry or also survive restarts.
type ArchiveRepository interface {
	Save(ctx context.Context, snapshot *model.ScanSnapshot) error
	GetByID(ctx context.Context, id string) (*model.ScanSnapshot, error)
}

// Options tunes orchestrator timeouts and concurrency.
type Options struct {
	// CheckTimeout bounds a single check attempt.
	CheckTimeout time.Duration
	// ScanTimeout bounds the whole fan-out for one scan.
	ScanTimeout time.Duration
	// MaxConcurrentChecks caps checks in flight per scan. Zero means no cap.
	MaxConcurrentChecks int
}

// StartResult is what a scan submission returns immediately. Completion is
// observed by polling; the call never blocks on check execution.
type StartResult struct {
	Snapshot  *model.ScanSnapshot
	FromCache bool
}

// RetryResult reports which checks a retry re-dispatched.
type RetryResult struct {
	Snapshot      *model.ScanSnapshot
	RetriedChecks []model.CheckName
}

// Orchestrator drives scans end to end: cache lookup, concurrent fan-out
// with per-check isolation, finalization, cache write-back and selective
// retry. It is constructed once and injected; it holds no global state.
type Orchestrator struct {
	registry *registry.Registry
	cache    cache.Store
	policy   *plan.Policy
	table    *checks.Table
	sink     events.Sink
	archive  ArchiveRepository
	opts     Options

	wg sync.WaitGroup
}

// NewOrchestrator wires the orchestrator. archive may be nil.
func NewOrchestrator(
	reg *registry.Registry,
	cacheStore cache.Store,
	policy *plan.Policy,
	table *checks.Table,
	sink events.Sink,
	archive ArchiveRepository,
	opts Options,
) *Orchestrator {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 30 * time.Second
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 2 * time.Minute
	}

	return &Orchestrator{
		registry: reg,
		cache:    cacheStore,
		policy:   policy,
		table:    table,
		sink:     sink,
		archive:  archive,
		opts:     opts,
	}
}

// StartScan validates the target, consults the cache and on a miss creates
// and dispatches a new scan. The returned snapshot is either the cached
// scan's state (FromCache) or the new scan in running state.
func (o *Orchestrator) StartScan(ctx context.Context, rawURL, planType string, bypassCache bool) (*StartResult, error) {
	normalized, err := cache.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	tier := plan.Parse(planType)
	enabled := o.policy.AllowedChecks(tier)
	fingerprint := cache.Fingerprint(normalized, enabled)

	if !bypassCache {
		if scanID, ok := o.cache.Lookup(ctx, fingerprint); ok {
			if snap := o.snapshotByID(ctx, scanID); snap != nil {
				o.emit(events.Event{Type: events.TypeCacheHit, ScanID: scanID, URL: normalized})
				slog.Info("Serving scan from cache",
					"scan_id", scanID,
					"url", normalized,
					"plan", tier,
				)
				return &StartResult{Snapshot: snap, FromCache: true}, nil
			}
		}
		o.emit(events.Event{Type: events.TypeCacheMiss, URL: normalized})
	}

	target, err := checks.NewTarget(normalized)
	if err != nil {
		return nil, err
	}

	sc := model.NewScanContext(normalized, string(tier), fingerprint, enabled, o.policy.RetryBudget(tier))
	o.registry.Put(sc)

	// An empty plan dispatches nothing and the scan is born failed.
	if sc.Status().Terminal() {
		return &StartResult{Snapshot: sc.Snapshot()}, nil
	}

	if err := sc.Begin(); err != nil {
		return nil, err
	}

	slog.Info("Starting scan",
		"scan_id", sc.ID(),
		"url", normalized,
		"plan", tier,
		"checks", len(enabled),
	)

	o.wg.Add(1)
	go o.runScan(sc, target, enabled)

	return &StartResult{Snapshot: sc.Snapshot()}, nil
}

// GetStatus returns a best-effort snapshot of a scan: the live context if
// the registry still has it, the archived record otherwise.
func (o *Orchestrator) GetStatus(ctx context.Context, scanID string) (*model.ScanSnapshot, error) {
	if sc, ok := o.registry.Get(scanID); ok {
		return sc.Snapshot(), nil
	}
	if o.archive != nil {
		if snap, err := o.archive.GetByID(ctx, scanID); err == nil && snap != nil {
			return snap, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", model.ErrNotFound, scanID)
}

// Retry re-dispatches failed checks of a settled scan. With no names given
// it defaults to every currently retryable check. The reset is all or
// nothing; an ineligible name rejects the whole request.
func (o *Orchestrator) Retry(ctx context.Context, scanID string, names []string) (*RetryResult, error) {
	sc, ok := o.registry.Get(scanID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, scanID)
	}

	var checkNames []model.CheckName
	if len(names) == 0 {
		checkNames = sc.RetryableChecks()
		if len(checkNames) == 0 {
			return nil, model.ErrNoRetryableServices
		}
	} else {
		for _, raw := range names {
			name, err := model.ParseCheckName(raw)
			if err != nil {
				return nil, err
			}
			checkNames = append(checkNames, name)
		}
	}

	if err := sc.PrepareRetry(checkNames); err != nil {
		return nil, err
	}

	// The cached entry points at a result the retry is about to change.
	if err := o.cache.Invalidate(ctx, sc.Fingerprint()); err != nil {
		slog.Warn("Failed to invalidate cache entry for retried scan",
			"scan_id", sc.ID(),
			"error", err,
		)
	}

	target, err := checks.NewTarget(sc.URL())
	if err != nil {
		return nil, err
	}

	slog.Info("Retrying scan checks",
		"scan_id", sc.ID(),
		"checks", fmt.Sprint(checkNames),
	)

	o.wg.Add(1)
	go o.runScan(sc, target, checkNames)

	return &RetryResult{Snapshot: sc.Snapshot(), RetriedChecks: checkNames}, nil
}

// Close waits for in-flight scans to settle, up to the context deadline.
func (o *Orchestrator) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All in-flight scans settled")
	case <-ctx.Done():
		slog.Warn("Timeout waiting for in-flight scans")
	}
}

// runScan is the supervised background task for one scan (or one retry
// wave). It owns the scan-wide timeout and always finalizes, panics
// included: a failure inside the background task is attributed to the scan,
// never dropped.
func (o *Orchestrator) runScan(sc *model.ScanContext, target checks.Target, names []model.CheckName) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in scan task",
				"scan_id", sc.ID(),
				"panic", r,
				"stack_trace", string(debug.Stack()),
			)
			sc.FailRemaining(model.CodeCheckError, fmt.Sprintf("internal error: %v", r), false)
			o.finalize(sc)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.ScanTimeout)
	defer cancel()

	g := new(errgroup.Group)
	if o.opts.MaxConcurrentChecks > 0 {
		g.SetLimit(o.opts.MaxConcurrentChecks)
	}
	for _, name := range names {
		name := name
		g.Go(func() error {
			o.runCheck(ctx, sc, target, name)
			return nil
		})
	}

	// Wait for the fan-out, but never longer than the scan timeout: a check
	// that ignores cancellation is abandoned, not waited for.
	settled := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(settled)
	}()

	select {
	case <-settled:
	case <-ctx.Done():
		sc.FailRemaining(model.CodeJobTimeout, "scan timed out", true)
	}

	o.finalize(sc)
}

// runCheck executes one check attempt with full isolation: its own timeout,
// panic recovery, and conversion of any failure into a structured per-check
// error. A failing check never aborts its siblings.
func (o *Orchestrator) runCheck(ctx context.Context, sc *model.ScanContext, target checks.Target, name model.CheckName) {
	fn, ok := o.table.Get(name)
	if !ok {
		// Unreachable: the table is validated complete at startup.
		_ = sc.RecordStart(name)
		_ = sc.RecordResult(name, nil, model.NewCheckError(model.CodeCheckError, "no function registered", false))
		return
	}

	if err := sc.RecordStart(name); err != nil {
		slog.Error("Failed to record check start", "scan_id", sc.ID(), "check", name, "error", err)
		return
	}
	o.emit(events.Event{Type: events.TypeCheckStarted, ScanID: sc.ID(), URL: sc.URL(), Check: name})

	checkCtx, cancel := context.WithTimeout(ctx, o.opts.CheckTimeout)
	defer cancel()

	start := time.Now()
	result, err := invoke(checkCtx, fn, target)
	duration := time.Since(start)

	if err != nil {
		cerr := o.classify(ctx, checkCtx, err)
		if recordErr := sc.RecordResult(name, nil, cerr); recordErr != nil {
			slog.Error("Failed to record check failure", "scan_id", sc.ID(), "check", name, "error", recordErr)
		}
		o.emit(events.Event{Type: events.TypeCheckFailed, ScanID: sc.ID(), URL: sc.URL(), Check: name, Error: cerr.Error()})
		slog.Warn("Check failed",
			"scan_id", sc.ID(),
			"check", name,
			"code", cerr.Code,
			"retryable", cerr.Retryable,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}

	if recordErr := sc.RecordResult(name, result, nil); recordErr != nil {
		slog.Error("Failed to record check result", "scan_id", sc.ID(), "check", name, "error", recordErr)
		return
	}
	o.emit(events.Event{Type: events.TypeCheckCompleted, ScanID: sc.ID(), URL: sc.URL(), Check: name})
	slog.Debug("Check completed",
		"scan_id", sc.ID(),
		"check", name,
		"duration_ms", duration.Milliseconds(),
	)
}

// classify maps a raw check error onto the failure taxonomy, distinguishing
// a per-check timeout from the scan-wide one.
func (o *Orchestrator) classify(scanCtx, checkCtx context.Context, err error) *model.CheckError {
	if scanCtx.Err() != nil {
		return model.NewCheckError(model.CodeJobTimeout, "scan timed out", true)
	}
	if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
		return model.NewCheckError(model.CodeCheckTimeout, "check timed out", true)
	}
	return model.AsCheckError(err)
}

// invoke calls a check function with panic containment.
func invoke(ctx context.Context, fn checks.Func, target checks.Target) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	return fn(ctx, target)
}

// finalize runs once per dispatch wave after every check has settled (or
// been abandoned): cache write-back, archival, completion event. A failed
// scan is never cached.
func (o *Orchestrator) finalize(sc *model.ScanContext) {
	snap := sc.Snapshot()
	if !snap.Status.Terminal() {
		// Safety net; all dispatched checks settling implies a terminal status.
		sc.FailRemaining(model.CodeJobTimeout, "scan did not settle", true)
		snap = sc.Snapshot()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if snap.Status == model.ScanCompleted || snap.Status == model.ScanPartial {
		ttl := o.policy.CacheTTL(plan.Type(snap.Plan))
		inserted, err := o.cache.PutIfAbsent(ctx, snap.Fingerprint, snap.ID, ttl)
		if err != nil {
			slog.Error("Cache write-back failed", "scan_id", snap.ID, "error", err)
		} else if !inserted {
			// A concurrent scan for the same fingerprint won the insert.
			slog.Debug("Cache entry already present", "scan_id", snap.ID)
		}
	}

	if o.archive != nil {
		if err := o.archive.Save(ctx, snap); err != nil {
			slog.Error("Failed to archive scan", "scan_id", snap.ID, "error", err)
		}
	}

	o.emit(events.Event{
		Type:      events.TypeScanCompleted,
		ScanID:    snap.ID,
		URL:       snap.URL,
		Status:    snap.Status,
		Timestamp: time.Now().UTC(),
	})

	slog.Info("Scan finalized",
		"scan_id", snap.ID,
		"url", snap.URL,
		"status", snap.Status,
		"completed", snap.Progress.Completed,
		"total", snap.Progress.Total,
	)
}

// snapshotByID resolves a cached scan ID to a snapshot, registry first.
func (o *Orchestrator) snapshotByID(ctx context.Context, scanID string) *model.ScanSnapshot {
	if sc, ok := o.registry.Get(scanID); ok {
		return sc.Snapshot()
	}
	if o.archive != nil {
		if snap, err := o.archive.GetByID(ctx, scanID); err == nil {
			return snap
		}
	}
	return nil
}

func (o *Orchestrator) emit(event events.Event) {
	if o.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	o.sink.Emit(event)
}
