package trace

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// StreamTracer writes events to a writer as they arrive.
type StreamTracer struct {
	mu    sync.Mutex
	w     *bufio.Writer
	level Level
}

// NewStreamTracer creates a tracer streaming to w.
func NewStreamTracer(w io.Writer, level Level) *StreamTracer {
	return &StreamTracer{w: bufio.NewWriter(w), level: level}
}

// Emit implements Tracer.
func (t *StreamTracer) Emit(ev *Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	writeEvent(t.w, ev)
}

func writeEvent(w io.Writer, ev *Event) {
	switch ev.Kind {
	case KindSpanEnd:
		fmt.Fprintf(w, "%s %s %s [%d] dur=%s %s\n",
			ev.Time.Format("15:04:05.000"), ev.Scope, ev.Name, ev.SpanID, ev.Dur, ev.Note)
	case KindSpanBegin:
		fmt.Fprintf(w, "%s %s %s [%d] begin\n",
			ev.Time.Format("15:04:05.000"), ev.Scope, ev.Name, ev.SpanID)
	default:
		fmt.Fprintf(w, "%s %s %s %s\n",
			ev.Time.Format("15:04:05.000"), ev.Scope, ev.Name, ev.Note)
	}
}

// Flush implements Tracer.
func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Flush()
}

// Close implements Tracer.
func (t *StreamTracer) Close() error { return t.Flush() }

// Level implements Tracer.
func (t *StreamTracer) Level() Level { return t.level }

// Enabled implements Tracer.
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
