package model

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by the scan core. Handlers map these to HTTP
// status codes; everything else is a 500.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("scan not found")
	ErrInvalidTransition   = errors.New("invalid scan transition")
	ErrNoRetryableServices = errors.New("no retryable checks")
	ErrRetryNotEligible    = errors.New("check not eligible for retry")
)

// Check error codes.
const (
	CodeRestricted    = "restricted"
	CodeCheckTimeout  = "check_timeout"
	CodeCheckError    = "check_error"
	CodeJobTimeout    = "job_timeout"
	CodeInvalidTarget = "invalid_target"
)

// CheckError is the structured failure recorded for a single check. A check
// failure never propagates as a scan-level error; it is recorded here and the
// scan continues.
type CheckError struct {
	Code      string `json:"code" bson:"code"`
	Message   string `json:"message" bson:"message"`
	Retryable bool   `json:"retryable" bson:"retryable"`
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCheckError builds a structured check failure.
func NewCheckError(code, message string, retryable bool) *CheckError {
	return &CheckError{Code: code, Message: message, Retryable: retryable}
}

// AsCheckError converts an arbitrary error returned by a check function into
// a structured failure. Already-structured errors pass through unchanged;
// context deadline errors become timeouts.
func AsCheckError(err error) *CheckError {
	var cerr *CheckError
	if errors.As(err, &cerr) {
		return cerr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewCheckError(CodeCheckTimeout, "check timed out", true)
	}
	return NewCheckError(CodeCheckError, err.Error(), true)
}
