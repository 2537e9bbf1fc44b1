package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope indicates which subsystem the event belongs to. Lower values are
// coarser and survive at lower levels.
type Scope uint8

const (
	// ScopeEngine covers engine lifecycle: start, stop, fatal errors.
	ScopeEngine Scope = iota + 1
	// ScopeCollect covers collector cycles.
	ScopeCollect
	// ScopeCompile covers per-block compilation and promotion.
	ScopeCompile
	// ScopeDispatch covers individual dispatches (debug only).
	ScopeDispatch
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeEngine:
		return "engine"
	case ScopeCollect:
		return "collect"
	case ScopeCompile:
		return "compile"
	case ScopeDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// Event is one trace record.
type Event struct {
	Seq    uint64
	Kind   Kind
	Scope  Scope
	Name   string
	Note   string
	SpanID uint64
	Time   time.Time
	Dur    time.Duration // for KindSpanEnd
}
