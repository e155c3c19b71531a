package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsCheckError_PassesThroughStructured(t *testing.T) {
	t.Parallel()

	original := NewCheckError(CodeInvalidTarget, "no such host", false)
	got := AsCheckError(original)
	assert.Same(t, original, got)

	// Wrapped structured errors also pass through.
	wrapped := fmt.Errorf("check failed: %w", original)
	assert.Same(t, original, AsCheckError(wrapped))
}

func TestAsCheckError_ContextDeadlineIsTimeout(t *testing.T) {
	t.Parallel()

	got := AsCheckError(context.DeadlineExceeded)
	assert.Equal(t, CodeCheckTimeout, got.Code)
	assert.True(t, got.Retryable)

	got = AsCheckError(context.Canceled)
	assert.Equal(t, CodeCheckTimeout, got.Code)
}

func TestAsCheckError_GenericErrorIsRetryable(t *testing.T) {
	t.Parallel()

	got := AsCheckError(errors.New("connection refused"))
	assert.Equal(t, CodeCheckError, got.Code)
	assert.Equal(t, "connection refused", got.Message)
	assert.True(t, got.Retryable)
}

func TestCheckError_Error(t *testing.T) {
	t.Parallel()

	err := NewCheckError(CodeJobTimeout, "scan timed out", true)
	assert.Equal(t, "job_timeout: scan timed out", err.Error())
}

func TestParseCheckName(t *testing.T) {
	t.Parallel()

	for _, name := range AllChecks() {
		got, err := ParseCheckName(string(name))
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}

	_, err := ParseCheckName("ssl")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseCheckName("")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestScanStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, ScanPending.Terminal())
	assert.False(t, ScanRunning.Terminal())
	assert.True(t, ScanCompleted.Terminal())
	assert.True(t, ScanPartial.Terminal())
	assert.True(t, ScanFailed.Terminal())
}

func TestServiceExecution_Retryable(t *testing.T) {
	t.Parallel()

	exec := &ServiceExecution{
		Status:           CheckFailed,
		Error:            NewCheckError(CodeCheckTimeout, "check timed out", true),
		RetryAttempts:    1,
		MaxRetryAttempts: 2,
	}
	assert.True(t, exec.Retryable())

	exhausted := *exec
	exhausted.RetryAttempts = 2
	assert.False(t, exhausted.Retryable())

	permanent := *exec
	permanent.Error = NewCheckError(CodeRestricted, "check not permitted by plan", false)
	assert.False(t, permanent.Retryable())

	succeeded := *exec
	succeeded.Status = CheckSuccess
	succeeded.Error = nil
	assert.False(t, succeeded.Retryable())
}
