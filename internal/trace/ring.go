package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the last N events in memory. The engine dumps the
// ring when it dies, so the tail of activity before a fatal error is
// always recoverable without paying for a full stream.
type RingTracer struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	full  bool
	level Level
}

// NewRingTracer creates a ring holding up to size events.
func NewRingTracer(size int, level Level) *RingTracer {
	if size <= 0 {
		size = 4096
	}
	return &RingTracer{buf: make([]Event, size), level: level}
}

// Emit implements Tracer.
func (t *RingTracer) Emit(ev *Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.next] = *ev
	t.next++
	if t.next == len(t.buf) {
		t.next = 0
		t.full = true
	}
}

// Dump writes the buffered events to w in order.
func (t *RingTracer) Dump(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		for i := t.next; i < len(t.buf); i++ {
			writeEvent(w, &t.buf[i])
		}
	}
	for i := 0; i < t.next; i++ {
		writeEvent(w, &t.buf[i])
	}
}

// Flush implements Tracer.
func (t *RingTracer) Flush() error { return nil }

// Close implements Tracer.
func (t *RingTracer) Close() error { return nil }

// Level implements Tracer.
func (t *RingTracer) Level() Level { return t.level }

// Enabled implements Tracer.
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
