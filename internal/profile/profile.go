// Package profile tracks per-block execution heat and decides when a
// block has earned a compiled tier. Counters are plain atomics updated on
// every dispatch; only the trend matters, so updates are relaxed and
// lock-free and a lost race costs nothing.
package profile

import (
	"math"
	"sync/atomic"
	"time"
)

// Decision is the profiler's answer for one recorded execution.
type Decision uint8

const (
	KeepInterpreting Decision = iota
	PromoteToJit
	PromoteToAot
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case KeepInterpreting:
		return "keep-interpreting"
	case PromoteToJit:
		return "promote-jit"
	case PromoteToAot:
		return "promote-aot"
	default:
		return "unknown"
	}
}

// Config tunes promotion. Thresholds are deliberately configuration, not
// constants; deployments disagree about them.
type Config struct {
	// JitThreshold is the execution count at which a block is worth a
	// fast compile.
	JitThreshold uint64
	// AotThreshold is the count at which it is worth an optimizing one.
	// Must exceed JitThreshold.
	AotThreshold uint64
	// SampleWindow is the number of recent executions carrying roughly
	// half the EWMA weight (spread over ~2x the window).
	SampleWindow int
}

// DefaultConfig mirrors the cold/hot thresholds the system shipped with.
func DefaultConfig() Config {
	return Config{JitThreshold: 10, AotThreshold: 100, SampleWindow: 20}
}

// Counter is the per-key hotspot state: a raw execution count plus an
// exponentially weighted execution rate.
type Counter struct {
	raw      atomic.Uint64
	ewmaBits atomic.Uint64 // float64 bits, executions/sec
	lastNS   atomic.Int64
}

// Raw returns the raw execution count.
func (c *Counter) Raw() uint64 { return c.raw.Load() }

// Rate returns the decayed execution frequency in executions per second.
func (c *Counter) Rate() float64 {
	return math.Float64frombits(c.ewmaBits.Load())
}

// Reset clears the counter. Called on eviction.
func (c *Counter) Reset() {
	c.raw.Store(0)
	c.ewmaBits.Store(0)
	c.lastNS.Store(0)
}

// Decay multiplies the rate by factor. The cache maintenance sweep uses
// it to cool blocks that stopped running.
func (c *Counter) Decay(factor float64) {
	for {
		old := c.ewmaBits.Load()
		next := math.Float64bits(math.Float64frombits(old) * factor)
		if c.ewmaBits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Profiler applies promotion policy to counters.
type Profiler struct {
	cfg   Config
	alpha float64
}

// New creates a profiler. Invalid configs are coerced to the defaults.
func New(cfg Config) *Profiler {
	def := DefaultConfig()
	if cfg.SampleWindow <= 0 {
		cfg.SampleWindow = def.SampleWindow
	}
	if cfg.JitThreshold == 0 {
		cfg.JitThreshold = def.JitThreshold
	}
	if cfg.AotThreshold <= cfg.JitThreshold {
		cfg.AotThreshold = cfg.JitThreshold * 10
	}
	return &Profiler{
		cfg:   cfg,
		alpha: 2.0 / (float64(cfg.SampleWindow) + 1),
	}
}

// Config returns the effective configuration.
func (p *Profiler) Config() Config { return p.cfg }

// Record notes one execution of the counter's block and returns the tier
// the block now deserves. Decisions are monotonic in the count; the
// engine, not the profiler, guarantees promotions are one-directional.
// Never blocks.
func (p *Profiler) Record(c *Counter) Decision {
	raw := c.raw.Add(1)
	p.updateRate(c)

	switch {
	case raw >= p.cfg.AotThreshold:
		return PromoteToAot
	case raw >= p.cfg.JitThreshold:
		return PromoteToJit
	default:
		return KeepInterpreting
	}
}

// updateRate folds the instantaneous execution rate into the EWMA. A lost
// CAS under contention drops one sample, which the trend tolerates.
func (p *Profiler) updateRate(c *Counter) {
	now := time.Now().UnixNano()
	prev := c.lastNS.Swap(now)
	if prev == 0 || now <= prev {
		return
	}
	sample := 1e9 / float64(now-prev)
	old := c.ewmaBits.Load()
	oldRate := math.Float64frombits(old)
	next := math.Float64bits(oldRate + p.alpha*(sample-oldRate))
	c.ewmaBits.CompareAndSwap(old, next)
}
