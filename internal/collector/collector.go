// Package collector reclaims arena memory behind evicted and superseded
// artifacts. Each cycle is two incremental phases, mark and sweep, each
// bounded by a time quota so collection never stalls dispatch. Code a
// thread may still be executing is never unmapped; an unprovable
// generation is simply retried next cycle.
package collector

import (
	"context"
	"sync/atomic"
	"time"

	"warp/internal/arena"
	"warp/internal/cache"
	"warp/internal/trace"
)

// Phase is the collector's current activity.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseMark
	PhaseSweep
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseMark:
		return "mark"
	case PhaseSweep:
		return "sweep"
	default:
		return "idle"
	}
}

// Config tunes collection.
type Config struct {
	// Quota bounds each phase of one cycle.
	Quota time.Duration
	// TargetPause is the pause the adaptive quota steers toward.
	TargetPause time.Duration
	// HighWater triggers a cycle once arena used bytes exceed it.
	HighWater uint64
	// EvictionBurst triggers a cycle after this many evictions since
	// the last one.
	EvictionBurst uint64
	// Interval is how often the background loop re-checks triggers.
	Interval time.Duration
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		Quota:         time.Millisecond,
		TargetPause:   800 * time.Microsecond,
		HighWater:     48 << 20,
		EvictionBurst: 256,
		Interval:      10 * time.Millisecond,
	}
}

// Stats is the collector's cumulative behavior.
type Stats struct {
	Cycles     uint64
	Swept      uint64
	Skipped    uint64
	FreedBytes uint64
	LastPause  time.Duration
}

// Collector is the incremental code-object reclaimer.
type Collector struct {
	cfg   Config
	arena *arena.Arena
	cache *cache.Cache
	tr    trace.Tracer

	quota     adaptiveQuota
	evictions atomic.Uint64

	cycles     atomic.Uint64
	swept      atomic.Uint64
	skipped    atomic.Uint64
	freedBytes atomic.Uint64
	lastPause  atomic.Int64
}

// New wires a collector over the arena and cache. Zero config fields fall
// back to defaults.
func New(cfg Config, a *arena.Arena, c *cache.Cache, tr trace.Tracer) *Collector {
	def := DefaultConfig()
	if cfg.Quota <= 0 {
		cfg.Quota = def.Quota
	}
	if cfg.TargetPause <= 0 {
		cfg.TargetPause = def.TargetPause
	}
	if cfg.HighWater == 0 {
		cfg.HighWater = def.HighWater
	}
	if cfg.EvictionBurst == 0 {
		cfg.EvictionBurst = def.EvictionBurst
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if tr == nil {
		tr = trace.NewNop()
	}
	col := &Collector{cfg: cfg, arena: a, cache: c, tr: tr}
	col.quota.init(cfg.Quota, cfg.TargetPause)
	return col
}

// NoteEviction records cache evictions toward the burst trigger.
func (c *Collector) NoteEviction() {
	c.evictions.Add(1)
}

// ShouldCollect reports whether a trigger has fired.
func (c *Collector) ShouldCollect() bool {
	if c.evictions.Load() >= c.cfg.EvictionBurst {
		return true
	}
	return c.arena.Stats().UsedBytes >= c.cfg.HighWater
}

// Run re-checks triggers until the context ends. Meant for one dedicated
// goroutine.
func (c *Collector) Run(ctx context.Context) {
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.ShouldCollect() {
				c.Collect()
			}
		}
	}
}

// Collect runs one mark phase and one sweep phase, each inside the
// current quota.
func (c *Collector) Collect() Stats {
	start := time.Now()
	quota := c.quota.get()
	c.evictions.Store(0)

	sp := trace.BeginSpan(c.tr, trace.ScopeCollect, "collect")

	// Mark: every generation a resident artifact still points into is
	// live. In-flight executions are covered by the arena's reference
	// counts, which the sweep re-checks per generation.
	markDeadline := start.Add(quota)
	marked := make(map[uint32]struct{}, 16)
	c.cache.Range(func(e *cache.Entry) {
		if time.Now().After(markDeadline) {
			return
		}
		if art := e.Artifact(); art != nil && !art.Code.Zero() {
			marked[art.Code.Gen] = struct{}{}
		}
	})

	// Sweep: unmap what is provably unreferenced; retry the rest later.
	sweepDeadline := time.Now().Add(quota)
	freed, swept, skipped := c.arena.Sweep(marked, func() bool {
		return time.Now().Before(sweepDeadline)
	})

	pause := time.Since(start)
	c.quota.record(pause)

	c.cycles.Add(1)
	c.swept.Add(uint64(swept))
	c.skipped.Add(uint64(skipped))
	c.freedBytes.Add(freed)
	c.lastPause.Store(int64(pause))

	sp.End("freed=%d swept=%d skipped=%d", freed, swept, skipped)
	return c.Stats()
}

// Stats returns cumulative counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Cycles:     c.cycles.Load(),
		Swept:      c.swept.Load(),
		Skipped:    c.skipped.Load(),
		FreedBytes: c.freedBytes.Load(),
		LastPause:  time.Duration(c.lastPause.Load()),
	}
}
