package webhook

import (
	"math"
	"time"
)

// RetryConfig controls notification delivery retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelayMs int
	MaxDelayMs     int
	Multiplier     float64
}

// SetDefaults fills unset fields.
func (rc *RetryConfig) SetDefaults() {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 3
	}
	if rc.InitialDelayMs == 0 {
		rc.InitialDelayMs = 1000
	}
	if rc.MaxDelayMs == 0 {
		rc.MaxDelayMs = 30000
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
}

// RetryStrategy computes exponential backoff delays for delivery attempts.
type RetryStrategy struct {
	config RetryConfig
}

// NewRetryStrategy creates a strategy with defaults applied.
func NewRetryStrategy(config RetryConfig) *RetryStrategy {
	config.SetDefaults()
	return &RetryStrategy{config: config}
}

// CalculateDelay returns min(initial * multiplier^(attempt-1), max).
func (rs *RetryStrategy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delayMs := float64(rs.config.InitialDelayMs) * math.Pow(rs.config.Multiplier, float64(attempt-1))
	if delayMs > float64(rs.config.MaxDelayMs) {
		delayMs = float64(rs.config.MaxDelayMs)
	}
	return time.Duration(delayMs) * time.Millisecond
}

// ShouldRetry decides whether another delivery attempt makes sense.
func (rs *RetryStrategy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= rs.config.MaxAttempts {
		return false
	}
	if err != nil {
		return true
	}
	if statusCode >= 500 || statusCode == 429 {
		return true
	}
	if statusCode >= 400 {
		return false
	}
	return statusCode >= 300
}

// GetMaxAttempts returns the attempt budget.
func (rs *RetryStrategy) GetMaxAttempts() int {
	return rs.config.MaxAttempts
}
