package model

import "time"

// ServiceExecution is the attempt record for one check within a scan.
//
// Invariants: CompletedAt is set iff the status is terminal; RetryAttempts
// never exceeds MaxRetryAttempts; a pending execution may only move to
// running, and a running one to success or failed. Retry resets a failed
// execution back to pending, never to running directly.
type ServiceExecution struct {
	Name             CheckName   `json:"name" bson:"name"`
	Status           CheckStatus `json:"status" bson:"status"`
	StartedAt        *time.Time  `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Result           any         `json:"result,omitempty" bson:"result,omitempty"`
	Error            *CheckError `json:"error,omitempty" bson:"error,omitempty"`
	RetryAttempts    int         `json:"retry_attempts" bson:"retry_attempts"`
	MaxRetryAttempts int         `json:"max_retry_attempts" bson:"max_retry_attempts"`

	// Dispatched is true for checks the plan allowed on this scan. Terminal
	// status of the scan is computed over dispatched checks only.
	Dispatched bool `json:"dispatched" bson:"dispatched"`
}

// Terminal reports whether the execution has settled.
func (e *ServiceExecution) Terminal() bool {
	return e.Status == CheckSuccess || e.Status == CheckFailed
}

// Retryable reports whether the execution qualifies for an explicit retry.
func (e *ServiceExecution) Retryable() bool {
	return e.Status == CheckFailed &&
		e.Error != nil && e.Error.Retryable &&
		e.RetryAttempts < e.MaxRetryAttempts
}

func (e *ServiceExecution) clone() *ServiceExecution {
	c := *e
	if e.StartedAt != nil {
		t := *e.StartedAt
		c.StartedAt = &t
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.Error != nil {
		ce := *e.Error
		c.Error = &ce
	}
	return &c
}
