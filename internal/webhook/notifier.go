// Package webhook delivers scan-completed notifications to an external
// endpoint with retries and a circuit breaker. Delivery failures are logged
// and counted; they never surface into the scan lifecycle.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Notifier posts notification payloads to a fixed endpoint.
type Notifier struct {
	endpoint       string
	httpClient     *http.Client
	retry          *RetryStrategy
	circuitBreaker *CircuitBreaker
}

// NewNotifier creates a notifier for the given endpoint.
func NewNotifier(endpoint string, timeout time.Duration, retry RetryConfig) *Notifier {
	return &Notifier{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:          NewRetryStrategy(retry),
		circuitBreaker: NewCircuitBreaker(),
	}
}

// Notify delivers one payload, retrying with backoff on transient failures.
func (n *Notifier) Notify(ctx context.Context, payload any) error {
	if !n.circuitBreaker.CanAttempt() {
		slog.Warn("Circuit breaker open, skipping notification",
			"endpoint", n.endpoint,
			"circuit_state", n.circuitBreaker.StateName(),
		)
		return fmt.Errorf("circuit breaker is open")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	for attempt := 1; attempt <= n.retry.GetMaxAttempts(); attempt++ {
		statusCode, err := n.deliver(ctx, body)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			slog.Info("Notification delivered",
				"endpoint", n.endpoint,
				"attempt", attempt,
				"status_code", statusCode,
			)
			n.circuitBreaker.RecordSuccess()
			return nil
		}

		if !n.retry.ShouldRetry(attempt, statusCode, err) {
			slog.Error("Notification delivery failed, no retry",
				"endpoint", n.endpoint,
				"attempt", attempt,
				"status_code", statusCode,
				"error", err,
			)
			n.circuitBreaker.RecordFailure()
			return fmt.Errorf("notification delivery failed after %d attempts", attempt)
		}

		delay := n.retry.CalculateDelay(attempt)
		slog.Warn("Notification delivery failed, retrying",
			"endpoint", n.endpoint,
			"attempt", attempt,
			"next_retry_ms", delay.Milliseconds(),
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			n.circuitBreaker.RecordFailure()
			return ctx.Err()
		}
	}

	n.circuitBreaker.RecordFailure()
	return fmt.Errorf("notification delivery failed after %d attempts", n.retry.GetMaxAttempts())
}

// deliver performs one POST attempt.
func (n *Notifier) deliver(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// CircuitState returns the breaker state for stats endpoints.
func (n *Notifier) CircuitState() string {
	return n.circuitBreaker.StateName()
}
