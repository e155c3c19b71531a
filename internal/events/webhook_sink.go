package events

import (
	"context"
	"time"

	"github.com/talonscan/talon/internal/webhook"
)

// WebhookSink forwards scanCompleted events to an external endpoint through
// the webhook notifier. Other event types are ignored; wrap it in an
// AsyncSink so delivery latency never touches a scan.
type WebhookSink struct {
	notifier *webhook.Notifier
	timeout  time.Duration
}

// NewWebhookSink creates a sink around a notifier.
func NewWebhookSink(notifier *webhook.Notifier, timeout time.Duration) *WebhookSink {
	return &WebhookSink{notifier: notifier, timeout: timeout}
}

type scanCompletedPayload struct {
	Event       string `json:"event"`
	ScanID      string `json:"scan_id"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	CompletedAt string `json:"completed_at"`
}

// Emit implements Sink.
func (s *WebhookSink) Emit(event Event) {
	if event.Type != TypeScanCompleted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Delivery errors are already logged and fed to the circuit breaker.
	_ = s.notifier.Notify(ctx, scanCompletedPayload{
		Event:       event.Type,
		ScanID:      event.ScanID,
		URL:         event.URL,
		Status:      string(event.Status),
		CompletedAt: event.Timestamp.Format(time.RFC3339),
	})
}
