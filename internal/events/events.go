// Package events is the observability sink for scan lifecycle events.
// Emission is fire-and-forget: a sink must never block or fail the
// orchestration path.
package events

import (
	"log/slog"
	"time"

	"github.com/talonscan/talon/internal/model"
)

// Event types emitted by the orchestrator.
const (
	TypeCheckStarted   = "checkStarted"
	TypeCheckCompleted = "checkCompleted"
	TypeCheckFailed    = "checkFailed"
	TypeScanCompleted  = "scanCompleted"
	TypeCacheHit       = "cacheHit"
	TypeCacheMiss      = "cacheMiss"
)

// Event is one scan lifecycle occurrence.
type Event struct {
	Type      string           `json:"type"`
	ScanID    string           `json:"scan_id,omitempty"`
	URL       string           `json:"url,omitempty"`
	Check     model.CheckName  `json:"check,omitempty"`
	Status    model.ScanStatus `json:"status,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Sink receives lifecycle events.
type Sink interface {
	Emit(event Event)
}

// LogSink writes events to the structured log.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(event Event) {
	slog.Info("Scan event",
		"event", event.Type,
		"scan_id", event.ScanID,
		"url", event.URL,
		"check", event.Check,
		"status", event.Status,
		"error", event.Error,
	)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}

// AsyncSink decouples emission from delivery through a bounded buffer.
// When the buffer is full the event is dropped, never the scan.
type AsyncSink struct {
	inner  Sink
	buffer chan Event
	done   chan struct{}
}

// NewAsyncSink wraps a sink with a delivery goroutine.
func NewAsyncSink(inner Sink, bufferSize int) *AsyncSink {
	s := &AsyncSink{
		inner:  inner,
		buffer: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for event := range s.buffer {
		s.inner.Emit(event)
	}
}

// Emit implements Sink. Never blocks.
func (s *AsyncSink) Emit(event Event) {
	select {
	case s.buffer <- event:
	default:
		slog.Debug("Event buffer full, dropping event", "event", event.Type, "scan_id", event.ScanID)
	}
}

// Close stops the delivery goroutine after draining buffered events.
func (s *AsyncSink) Close() {
	close(s.buffer)
	<-s.done
}
