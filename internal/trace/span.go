package trace

import (
	"fmt"
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return globalSeq.Add(1) }

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 { return globalSpans.Add(1) }

// Span tracks one begin/end pair.
type Span struct {
	tracer Tracer
	id     uint64
	scope  Scope
	name   string
	start  time.Time
	active bool
}

// BeginSpan starts a span if the tracer emits at this scope. The zero
// span is safe to End, so callers never branch on tracing being on.
func BeginSpan(t Tracer, scope Scope, name string) Span {
	if t == nil || !t.Level().ShouldEmit(scope) {
		return Span{}
	}
	sp := Span{
		tracer: t,
		id:     NextSpanID(),
		scope:  scope,
		name:   name,
		start:  time.Now(),
		active: true,
	}
	t.Emit(&Event{
		Seq:    NextSeq(),
		Kind:   KindSpanBegin,
		Scope:  scope,
		Name:   name,
		SpanID: sp.id,
		Time:   sp.start,
	})
	return sp
}

// End closes the span with a formatted note.
func (s Span) End(format string, args ...any) {
	if !s.active {
		return
	}
	note := format
	if len(args) > 0 {
		note = fmt.Sprintf(format, args...)
	}
	now := time.Now()
	s.tracer.Emit(&Event{
		Seq:    NextSeq(),
		Kind:   KindSpanEnd,
		Scope:  s.scope,
		Name:   s.name,
		Note:   note,
		SpanID: s.id,
		Time:   now,
		Dur:    now.Sub(s.start),
	})
}

// Point emits an instant event if the tracer emits at this scope.
func Point(t Tracer, scope Scope, name, format string, args ...any) {
	if t == nil || !t.Level().ShouldEmit(scope) {
		return
	}
	note := format
	if len(args) > 0 {
		note = fmt.Sprintf(format, args...)
	}
	t.Emit(&Event{
		Seq:   NextSeq(),
		Kind:  KindPoint,
		Scope: scope,
		Name:  name,
		Note:  note,
		Time:  time.Now(),
	})
}
