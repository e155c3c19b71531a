package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress is a live snapshot of how far a scan has come. Total always counts
// the full check set so callers divide by a stable denominator.
type Progress struct {
	Completed  int `json:"completed" bson:"completed"`
	Total      int `json:"total" bson:"total"`
	Percentage int `json:"percentage" bson:"percentage"`
}

// ScanSnapshot is a point-in-time copy of a scan, safe to hand to callers and
// to persist. It shares no mutable state with the live ScanContext.
type ScanSnapshot struct {
	ID          string                          `json:"id" bson:"_id"`
	URL         string                          `json:"url" bson:"url"`
	Plan        string                          `json:"plan" bson:"plan"`
	Fingerprint string                          `json:"-" bson:"fingerprint"`
	Status      ScanStatus                      `json:"status" bson:"status"`
	Progress    Progress                        `json:"progress" bson:"progress"`
	Checks      map[CheckName]*ServiceExecution `json:"checks" bson:"checks"`
	CreatedAt   time.Time                       `json:"created_at" bson:"created_at"`
	StartedAt   *time.Time                      `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time                      `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// ScanContext owns the state of one scan: a ServiceExecution per known check
// plus the aggregate status. All mutations go through its methods and are
// serialized by an internal mutex, so finalization never races a concurrent
// result. The checks themselves run outside; only their outcomes come here.
type ScanContext struct {
	mu sync.Mutex

	id          string
	url         string
	plan        string
	fingerprint string

	status   ScanStatus
	services map[CheckName]*ServiceExecution

	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

// NewScanContext creates a scan in pending state. Every check in the full
// set gets an execution entry; checks outside enabled are immediately failed
// with a non-retryable restricted error. A scan with nothing to dispatch is
// immediately failed rather than silently completed.
func NewScanContext(url, plan, fingerprint string, enabled []CheckName, maxRetries int) *ScanContext {
	now := time.Now().UTC()

	enabledSet := make(map[CheckName]bool, len(enabled))
	for _, name := range enabled {
		enabledSet[name] = true
	}

	services := make(map[CheckName]*ServiceExecution, len(AllChecks()))
	for _, name := range AllChecks() {
		exec := &ServiceExecution{
			Name:             name,
			Status:           CheckPending,
			MaxRetryAttempts: maxRetries,
		}
		if !enabledSet[name] {
			exec.Status = CheckFailed
			exec.Error = NewCheckError(CodeRestricted, "check not permitted by plan", false)
			completed := now
			exec.CompletedAt = &completed
		} else {
			exec.Dispatched = true
		}
		services[name] = exec
	}

	sc := &ScanContext{
		id:          uuid.New().String(),
		url:         url,
		plan:        plan,
		fingerprint: fingerprint,
		status:      ScanPending,
		services:    services,
		createdAt:   now,
	}

	if len(enabled) == 0 {
		sc.status = ScanFailed
		completed := now
		sc.completedAt = &completed
	}

	return sc
}

// ID returns the scan's unique identifier.
func (sc *ScanContext) ID() string { return sc.id }

// URL returns the scan target.
func (sc *ScanContext) URL() string { return sc.url }

// Plan returns the plan type the scan was created under.
func (sc *ScanContext) Plan() string { return sc.plan }

// Fingerprint returns the cache fingerprint computed at creation.
func (sc *ScanContext) Fingerprint() string { return sc.fingerprint }

// CreatedAt returns the creation timestamp. Used for age-based eviction.
func (sc *ScanContext) CreatedAt() time.Time { return sc.createdAt }

// Status returns the current aggregate status.
func (sc *ScanContext) Status() ScanStatus {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.status
}

// Begin transitions the scan from pending to running.
func (sc *ScanContext) Begin() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.status != ScanPending {
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, sc.status)
	}

	now := time.Now().UTC()
	sc.status = ScanRunning
	sc.startedAt = &now
	return nil
}

// RecordStart marks the named check running and counts the dispatch attempt.
// Duplicate start signals for an already running or settled check are
// ignored, so attempts are never double-counted.
func (sc *ScanContext) RecordStart(name CheckName) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	exec, ok := sc.services[name]
	if !ok {
		return fmt.Errorf("%w: unknown check %q", ErrNotFound, name)
	}
	if exec.Status != CheckPending {
		return nil
	}

	now := time.Now().UTC()
	exec.Status = CheckRunning
	exec.StartedAt = &now
	exec.RetryAttempts++
	return nil
}

// RecordResult settles the named check with either a result or a structured
// failure, then finalizes the scan if every dispatched check has settled.
// A result for an already settled check is ignored.
func (sc *ScanContext) RecordResult(name CheckName, result any, cerr *CheckError) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	exec, ok := sc.services[name]
	if !ok {
		return fmt.Errorf("%w: unknown check %q", ErrNotFound, name)
	}
	if exec.Terminal() {
		return nil
	}
	if exec.Status != CheckRunning {
		return fmt.Errorf("%w: result for %s check %q", ErrInvalidTransition, exec.Status, name)
	}

	now := time.Now().UTC()
	exec.CompletedAt = &now
	if cerr != nil {
		exec.Status = CheckFailed
		exec.Error = cerr
		exec.Result = nil
	} else {
		exec.Status = CheckSuccess
		exec.Result = result
		exec.Error = nil
	}

	sc.finalizeLocked()
	return nil
}

// FailRemaining force-fails every dispatched check that has not settled,
// then finalizes. This is the job-wide timeout path: checks that already
// settled keep their real results.
func (sc *ScanContext) FailRemaining(code, message string, retryable bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := time.Now().UTC()
	for _, exec := range sc.services {
		if !exec.Dispatched || exec.Terminal() {
			continue
		}
		exec.Status = CheckFailed
		exec.Error = NewCheckError(code, message, retryable)
		completed := now
		exec.CompletedAt = &completed
	}

	sc.finalizeLocked()
}

// finalizeLocked applies the terminal status once all dispatched checks have
// settled: completed iff every dispatched check succeeded, failed iff none
// did, partial otherwise. Caller must hold the mutex.
func (sc *ScanContext) finalizeLocked() {
	if sc.status.Terminal() {
		return
	}

	var dispatched, succeeded int
	for _, exec := range sc.services {
		if !exec.Dispatched {
			continue
		}
		dispatched++
		switch exec.Status {
		case CheckSuccess:
			succeeded++
		case CheckFailed:
		default:
			return // still outstanding
		}
	}

	switch {
	case succeeded == dispatched:
		sc.status = ScanCompleted
	case succeeded > 0:
		sc.status = ScanPartial
	default:
		sc.status = ScanFailed
	}

	now := time.Now().UTC()
	sc.completedAt = &now
}

// Progress computes a live progress snapshot. Never cached.
func (sc *ScanContext) Progress() Progress {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.progressLocked()
}

func (sc *ScanContext) progressLocked() Progress {
	total := len(sc.services)
	completed := 0
	for _, exec := range sc.services {
		if exec.Terminal() {
			completed++
		}
	}

	pct := 0
	if total > 0 {
		pct = completed * 100 / total
	}
	return Progress{Completed: completed, Total: total, Percentage: pct}
}

// RetryableChecks returns the checks currently eligible for an explicit
// retry: failed with a retryable error and attempts left in the budget.
func (sc *ScanContext) RetryableChecks() []CheckName {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var names []CheckName
	for _, name := range AllChecks() {
		if exec := sc.services[name]; exec != nil && exec.Retryable() {
			names = append(names, name)
		}
	}
	return names
}

// PrepareRetry validates that every requested check is currently failed and
// retryable, then resets them to pending and moves the scan back to running.
// Validation happens before any mutation: an ineligible name rejects the
// whole request with no execution touched. RetryAttempts are preserved;
// RecordStart counts the re-dispatch.
func (sc *ScanContext) PrepareRetry(names []CheckName) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.status.Terminal() {
		return fmt.Errorf("%w: scan is %s", ErrRetryNotEligible, sc.status)
	}
	if len(names) == 0 {
		return ErrNoRetryableServices
	}

	for _, name := range names {
		exec, ok := sc.services[name]
		if !ok {
			return fmt.Errorf("%w: unknown check %q", ErrRetryNotEligible, name)
		}
		if !exec.Retryable() {
			return fmt.Errorf("%w: %q", ErrRetryNotEligible, name)
		}
	}

	for _, name := range names {
		exec := sc.services[name]
		exec.Status = CheckPending
		exec.Error = nil
		exec.Result = nil
		exec.StartedAt = nil
		exec.CompletedAt = nil
	}

	sc.status = ScanRunning
	sc.completedAt = nil
	return nil
}

// Snapshot returns a deep copy of the scan state for polling callers and
// persistence.
func (sc *ScanContext) Snapshot() *ScanSnapshot {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	checks := make(map[CheckName]*ServiceExecution, len(sc.services))
	for name, exec := range sc.services {
		checks[name] = exec.clone()
	}

	snap := &ScanSnapshot{
		ID:          sc.id,
		URL:         sc.url,
		Plan:        sc.plan,
		Fingerprint: sc.fingerprint,
		Status:      sc.status,
		Progress:    sc.progressLocked(),
		Checks:      checks,
		CreatedAt:   sc.createdAt,
	}
	if sc.startedAt != nil {
		t := *sc.startedAt
		snap.StartedAt = &t
	}
	if sc.completedAt != nil {
		t := *sc.completedAt
		snap.CompletedAt = &t
	}
	return snap
}
