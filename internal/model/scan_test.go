package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScan(t *testing.T, enabled []CheckName, maxRetries int) *ScanContext {
	t.Helper()
	return NewScanContext("https://example.com", "pro", "fp-test", enabled, maxRetries)
}

func TestNewScanContext_PopulatesFullCheckSet(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 2)
	snap := sc.Snapshot()

	require.Len(t, snap.Checks, len(AllChecks()))
	assert.Equal(t, ScanPending, snap.Status)

	// Enabled checks wait for dispatch.
	assert.Equal(t, CheckPending, snap.Checks[CheckHeaders].Status)
	assert.True(t, snap.Checks[CheckHeaders].Dispatched)

	// Everything else is failed up front with a non-retryable restricted error.
	restricted := snap.Checks[CheckTLS]
	require.Equal(t, CheckFailed, restricted.Status)
	require.NotNil(t, restricted.Error)
	assert.Equal(t, CodeRestricted, restricted.Error.Code)
	assert.False(t, restricted.Error.Retryable)
	assert.NotNil(t, restricted.CompletedAt)
	assert.False(t, restricted.Dispatched)
}

func TestNewScanContext_NoDispatchedChecksFailsImmediately(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, nil, 2)
	assert.Equal(t, ScanFailed, sc.Status())
	assert.NotNil(t, sc.Snapshot().CompletedAt)
}

func TestBegin_Transitions(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 2)
	require.NoError(t, sc.Begin())
	assert.Equal(t, ScanRunning, sc.Status())

	err := sc.Begin()
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecordStart_IsIdempotent(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 2)
	require.NoError(t, sc.Begin())

	require.NoError(t, sc.RecordStart(CheckHeaders))
	first := sc.Snapshot().Checks[CheckHeaders]
	require.Equal(t, CheckRunning, first.Status)
	require.Equal(t, 1, first.RetryAttempts)
	require.NotNil(t, first.StartedAt)

	// A duplicate start signal must not double-count or restamp.
	require.NoError(t, sc.RecordStart(CheckHeaders))
	second := sc.Snapshot().Checks[CheckHeaders]
	assert.Equal(t, 1, second.RetryAttempts)
	assert.Equal(t, *first.StartedAt, *second.StartedAt)
}

func TestRecordStart_UnknownCheck(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 2)
	err := sc.RecordStart(CheckName("bogus"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordResult_RequiresRunning(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 2)
	err := sc.RecordResult(CheckHeaders, "x", nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecordResult_IgnoresDuplicateCompletion(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 2)
	require.NoError(t, sc.Begin())
	require.NoError(t, sc.RecordStart(CheckHeaders))
	require.NoError(t, sc.RecordResult(CheckHeaders, "first", nil))

	require.NoError(t, sc.RecordResult(CheckHeaders, "second", nil))
	assert.Equal(t, "first", sc.Snapshot().Checks[CheckHeaders].Result)
}

func TestFinalStatus_AllSucceedCompleted(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 2)
	require.NoError(t, sc.Begin())

	for _, name := range []CheckName{CheckHeaders, CheckPerformance} {
		require.NoError(t, sc.RecordStart(name))
		require.NoError(t, sc.RecordResult(name, "ok", nil))
	}

	snap := sc.Snapshot()
	assert.Equal(t, ScanCompleted, snap.Status)
	assert.NotNil(t, snap.CompletedAt)
}

func TestFinalStatus_MixedIsPartialAndRestrictedDoesNotCount(t *testing.T) {
	t.Parallel()

	// Three dispatched checks: A and B succeed, C fails non-retryably.
	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance, CheckDNS}, 2)
	require.NoError(t, sc.Begin())

	for _, name := range []CheckName{CheckHeaders, CheckPerformance} {
		require.NoError(t, sc.RecordStart(name))
		require.NoError(t, sc.RecordResult(name, "ok", nil))
	}
	require.NoError(t, sc.RecordStart(CheckDNS))
	require.NoError(t, sc.RecordResult(CheckDNS, nil, NewCheckError(CodeInvalidTarget, "no such host", false)))

	snap := sc.Snapshot()
	assert.Equal(t, ScanPartial, snap.Status)
	assert.Empty(t, sc.RetryableChecks())
}

func TestFinalStatus_AllFailedIsFailed(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 2)
	require.NoError(t, sc.Begin())

	for _, name := range []CheckName{CheckHeaders, CheckPerformance} {
		require.NoError(t, sc.RecordStart(name))
		require.NoError(t, sc.RecordResult(name, nil, NewCheckError(CodeCheckError, "boom", true)))
	}

	assert.Equal(t, ScanFailed, sc.Status())
}

func TestProgress_BoundsAndFloorRounding(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 2)

	// Four restricted entries are terminal from the start: 4/6 = 66%.
	p := sc.Progress()
	assert.Equal(t, 4, p.Completed)
	assert.Equal(t, len(AllChecks()), p.Total)
	assert.Equal(t, 66, p.Percentage)

	require.NoError(t, sc.Begin())
	require.NoError(t, sc.RecordStart(CheckHeaders))
	require.NoError(t, sc.RecordResult(CheckHeaders, "ok", nil))

	p = sc.Progress()
	assert.Equal(t, 5, p.Completed)
	assert.Equal(t, 83, p.Percentage)
	assert.LessOrEqual(t, p.Completed, p.Total)

	require.NoError(t, sc.RecordStart(CheckPerformance))
	require.NoError(t, sc.RecordResult(CheckPerformance, "ok", nil))
	assert.Equal(t, 100, sc.Progress().Percentage)
}

func TestRetryableChecks_RespectsBudget(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 1)
	require.NoError(t, sc.Begin())
	require.NoError(t, sc.RecordStart(CheckHeaders))
	require.NoError(t, sc.RecordResult(CheckHeaders, nil, NewCheckError(CodeCheckError, "boom", true)))

	// One attempt allowed, one spent: the budget is exhausted.
	assert.Empty(t, sc.RetryableChecks())
	err := sc.PrepareRetry([]CheckName{CheckHeaders})
	require.ErrorIs(t, err, ErrRetryNotEligible)
}

func TestPrepareRetry_AllOrNothing(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 3)
	require.NoError(t, sc.Begin())

	require.NoError(t, sc.RecordStart(CheckHeaders))
	require.NoError(t, sc.RecordResult(CheckHeaders, nil, NewCheckError(CodeCheckError, "boom", true)))
	require.NoError(t, sc.RecordStart(CheckPerformance))
	require.NoError(t, sc.RecordResult(CheckPerformance, "ok", nil))

	require.Equal(t, ScanPartial, sc.Status())

	// Performance succeeded, so the request must be rejected wholesale.
	err := sc.PrepareRetry([]CheckName{CheckHeaders, CheckPerformance})
	require.ErrorIs(t, err, ErrRetryNotEligible)

	// The eligible check was not touched by the rejected request.
	headers := sc.Snapshot().Checks[CheckHeaders]
	assert.Equal(t, CheckFailed, headers.Status)
	assert.NotNil(t, headers.Error)
	assert.Equal(t, ScanPartial, sc.Status())
}

func TestPrepareRetry_RejectedWhileRunning(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 3)
	require.NoError(t, sc.Begin())

	err := sc.PrepareRetry([]CheckName{CheckHeaders})
	require.ErrorIs(t, err, ErrRetryNotEligible)
}

func TestRetryFlow_FailedThenCompleted(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 3)
	require.NoError(t, sc.Begin())

	for _, name := range []CheckName{CheckHeaders, CheckPerformance} {
		require.NoError(t, sc.RecordStart(name))
		require.NoError(t, sc.RecordResult(name, nil, NewCheckError(CodeCheckTimeout, "timed out", true)))
	}
	require.Equal(t, ScanFailed, sc.Status())

	retryable := sc.RetryableChecks()
	require.ElementsMatch(t, []CheckName{CheckHeaders, CheckPerformance}, retryable)

	require.NoError(t, sc.PrepareRetry(retryable))
	assert.Equal(t, ScanRunning, sc.Status())

	snap := sc.Snapshot()
	for _, name := range retryable {
		exec := snap.Checks[name]
		assert.Equal(t, CheckPending, exec.Status)
		assert.Nil(t, exec.Error)
		assert.Nil(t, exec.CompletedAt)
		assert.Equal(t, 1, exec.RetryAttempts, "attempts are preserved across the reset")
	}
	assert.Nil(t, snap.CompletedAt)

	for _, name := range retryable {
		require.NoError(t, sc.RecordStart(name))
		require.NoError(t, sc.RecordResult(name, "ok", nil))
	}

	assert.Equal(t, ScanCompleted, sc.Status())
	assert.Equal(t, 2, sc.Snapshot().Checks[CheckHeaders].RetryAttempts)
}

func TestFailRemaining_KeepsSettledResults(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders, CheckPerformance}, 2)
	require.NoError(t, sc.Begin())

	require.NoError(t, sc.RecordStart(CheckHeaders))
	require.NoError(t, sc.RecordResult(CheckHeaders, "real result", nil))
	require.NoError(t, sc.RecordStart(CheckPerformance))

	// Job-wide timeout fires while performance is still outstanding.
	sc.FailRemaining(CodeJobTimeout, "scan timed out", true)

	snap := sc.Snapshot()
	assert.Equal(t, ScanPartial, snap.Status)
	assert.Equal(t, "real result", snap.Checks[CheckHeaders].Result)

	perf := snap.Checks[CheckPerformance]
	require.Equal(t, CheckFailed, perf.Status)
	require.NotNil(t, perf.Error)
	assert.Equal(t, CodeJobTimeout, perf.Error.Code)
	assert.NotNil(t, perf.CompletedAt)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 2)
	require.NoError(t, sc.Begin())

	snap := sc.Snapshot()
	snap.Checks[CheckHeaders].Status = CheckSuccess
	snap.Checks[CheckHeaders].RetryAttempts = 99

	fresh := sc.Snapshot()
	assert.Equal(t, CheckPending, fresh.Checks[CheckHeaders].Status)
	assert.Equal(t, 0, fresh.Checks[CheckHeaders].RetryAttempts)
}

func TestCompletedAtInvariant(t *testing.T) {
	t.Parallel()

	sc := newTestScan(t, []CheckName{CheckHeaders}, 2)
	require.NoError(t, sc.Begin())
	require.NoError(t, sc.RecordStart(CheckHeaders))

	exec := sc.Snapshot().Checks[CheckHeaders]
	assert.Nil(t, exec.CompletedAt, "running execution has no completion stamp")

	require.NoError(t, sc.RecordResult(CheckHeaders, "ok", nil))
	exec = sc.Snapshot().Checks[CheckHeaders]
	require.NotNil(t, exec.CompletedAt)
	assert.WithinDuration(t, time.Now().UTC(), *exec.CompletedAt, 5*time.Second)
}
