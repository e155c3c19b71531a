package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talonscan/talon/internal/model"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestMultiSink_FansOut(t *testing.T) {
	t.Parallel()

	a := &captureSink{}
	b := &captureSink{}
	multi := MultiSink{a, b}

	multi.Emit(Event{Type: TypeCheckStarted, ScanID: "s1", Check: model.CheckHeaders})

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())
	assert.Equal(t, "s1", a.events[0].ScanID)
}

func TestAsyncSink_DeliversAndDrainsOnClose(t *testing.T) {
	t.Parallel()

	inner := &captureSink{}
	sink := NewAsyncSink(inner, 16)

	for i := 0; i < 10; i++ {
		sink.Emit(Event{Type: TypeScanCompleted, ScanID: "s1", Status: model.ScanCompleted})
	}
	sink.Close()

	assert.Equal(t, 10, inner.count(), "close drains everything buffered")
}

// blockingSink stalls delivery until released so the buffer can fill.
type blockingSink struct {
	captureSink
	release chan struct{}
}

func (s *blockingSink) Emit(event Event) {
	<-s.release
	s.captureSink.Emit(event)
}

func TestAsyncSink_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	inner := &blockingSink{release: make(chan struct{})}
	sink := NewAsyncSink(inner, 2)

	// One event is in the delivery goroutine's hands, two fill the buffer;
	// everything past that is dropped without blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			sink.Emit(Event{Type: TypeCheckCompleted, ScanID: "s1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	close(inner.release)
	sink.Close()
	assert.LessOrEqual(t, inner.count(), 3)
	assert.GreaterOrEqual(t, inner.count(), 1)
}
