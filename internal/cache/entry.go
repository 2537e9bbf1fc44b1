// Package cache is the unified code cache: a sharded, hot/cold
// partitioned store of compiled artifacts keyed by guest address and ISA
// pair. The cache owns entry metadata; the code arena owns the backing
// bytes, which entries reference only through weak arena handles.
package cache

import (
	"sync/atomic"

	"warp/internal/arena"
	"warp/internal/isa"
	"warp/internal/profile"
)

// Key uniquely identifies one translation unit. Cross-ISA translations of
// the same guest PC are independent entries.
type Key struct {
	PC   uint64
	Pair isa.Pair
}

// Tier is the execution strategy currently installed for a key.
type Tier uint8

const (
	TierInterpreted Tier = iota
	TierJitCompiled
	TierAotCompiled
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierInterpreted:
		return "interpreted"
	case TierJitCompiled:
		return "jit"
	case TierAotCompiled:
		return "aot"
	default:
		return "unknown"
	}
}

// State is the per-key position in the tiering state machine. The engine
// drives transitions; the cache only stores the value.
type State uint32

const (
	StateInterpreting State = iota
	StateJitPending
	StateJitCompiled
	StateAotPending
	StateAotCompiled
	// StateUnsupportedFallback is terminal: translation failed once and
	// is never retried.
	StateUnsupportedFallback
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInterpreting:
		return "interpreting"
	case StateJitPending:
		return "jit-pending"
	case StateJitCompiled:
		return "jit-compiled"
	case StateAotPending:
		return "aot-pending"
	case StateAotCompiled:
		return "aot-compiled"
	case StateUnsupportedFallback:
		return "unsupported-fallback"
	default:
		return "unknown"
	}
}

// Artifact is one installed compilation product. Immutable once built; a
// promotion installs a new artifact value with one pointer swap.
type Artifact struct {
	Tier Tier
	// Code locates the compiled bytes in the arena. Zero for the
	// interpreted tier.
	Code arena.Handle
	// SizeBytes is the encoded code size.
	SizeBytes uint32
}

type partition uint8

const (
	partCold partition = iota
	partHot
)

// Entry is the cache's record for one key. Pointers to an Entry are the
// stable artifact handles the engine holds: repeated lookups with no
// intervening insert return the same *Entry.
type Entry struct {
	Key Key

	art atomic.Pointer[Artifact]

	// Hot is the hotspot counter; the profiler mutates it, the tiering
	// policy reads it, eviction resets it.
	Hot profile.Counter

	state      atomic.Uint32
	compiling  atomic.Bool
	lastAccess atomic.Int64 // unix nanos
	seq        uint64       // insert sequence, breaks eviction ties oldest-first
	part       partition
}

// Artifact returns the currently installed artifact. Readers see either
// the pre- or the fully installed post-promotion artifact, never a
// partial one.
func (e *Entry) Artifact() *Artifact { return e.art.Load() }

// State returns the entry's tiering state.
func (e *Entry) State() State { return State(e.state.Load()) }

// SetState stores the tiering state.
func (e *Entry) SetState(s State) { e.state.Store(uint32(s)) }

// CasState transitions from old to new atomically.
func (e *Entry) CasState(old, new State) bool {
	return e.state.CompareAndSwap(uint32(old), uint32(new))
}

// TryBeginCompile claims the per-key compile slot. At most one caller
// wins until EndCompile; everyone else interprets this invocation instead
// of duplicating the work.
func (e *Entry) TryBeginCompile() bool {
	return e.compiling.CompareAndSwap(false, true)
}

// Compiling reports whether a compilation for this key is in flight.
func (e *Entry) Compiling() bool { return e.compiling.Load() }

// EndCompile releases the compile slot.
func (e *Entry) EndCompile() { e.compiling.Store(false) }

// LastAccess returns the unix-nano timestamp of the latest lookup.
func (e *Entry) LastAccess() int64 { return e.lastAccess.Load() }

func (e *Entry) touch(now int64) { e.lastAccess.Store(now) }
