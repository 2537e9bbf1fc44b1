// Package engine orchestrates tiered execution: cache lookup, profiling,
// background compilation and the interpret/JIT/AOT fallback ladder. One
// Engine instance carries all shared state explicitly, so tests run any
// number of independent engines side by side.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"warp/internal/arena"
	"warp/internal/cache"
	"warp/internal/collector"
	"warp/internal/interp"
	"warp/internal/isa"
	"warp/internal/profile"
	"warp/internal/trace"
	"warp/internal/translate"
)

// NativeBackend executes an encoded sequence. The hardware-acceleration
// engine implements this; when none is attached the in-process sequence
// runner is used.
type NativeBackend interface {
	RunBlock(code []byte, m *interp.Machine) (interp.ExecResult, error)
}

// Options configures one engine instance.
type Options struct {
	Pair isa.Pair

	Decoder Decoder
	Native  NativeBackend // nil means the in-process runner
	Tracer  trace.Tracer

	Profile   profile.Config
	Cache     cache.Config
	Collector collector.Config

	// ArenaGenSize is the byte size of one code arena generation.
	ArenaGenSize uint32
	// Workers is the compile worker count.
	Workers int
	// QueueDepth bounds the compile job queue. A full queue drops the
	// request; the block stays on its current tier and is reconsidered
	// on a later dispatch.
	QueueDepth int

	// JitOpt and AotOpt are the per-tier translation configs.
	JitOpt translate.Config
	AotOpt translate.Config
}

// ExecutionStats is the engine's cumulative behavior, for diagnostics.
type ExecutionStats struct {
	InterpreterExecutions uint64
	JitExecutions         uint64
	AotExecutions         uint64
	CacheHitRate          float64
	Cache                 cache.Stats
	Arena                 arena.Stats
	Collector             collector.Stats
	Workers               []WorkerStats
}

// WorkerStats is one compile worker's record.
type WorkerStats struct {
	Compiled    uint64
	Failed      uint64
	CompileTime time.Duration
}

// Engine is the tiered execution engine.
type Engine struct {
	pair isa.Pair
	dec  Decoder
	nat  NativeBackend
	tr   trace.Tracer

	cache *cache.Cache
	prof  *profile.Profiler
	arena *arena.Arena
	col   *collector.Collector

	jitOpt translate.Config
	aotOpt translate.Config

	jitJobs chan compileJob
	aotJobs chan compileJob
	results chan compileResult

	interpExecs atomic.Uint64
	jitExecs    atomic.Uint64
	aotExecs    atomic.Uint64

	workers     int
	workerStats []workerCounters

	fatal  atomic.Pointer[fatalError]
	cancel context.CancelFunc
	group  *errgroup.Group
}

type workerCounters struct {
	compiled atomic.Uint64
	failed   atomic.Uint64
	timeNS   atomic.Int64
}

type fatalError struct{ err error }

// New builds an engine. The decoder is the only mandatory collaborator.
func New(opts Options) (*Engine, error) {
	if opts.Decoder == nil {
		return nil, fmt.Errorf("engine: decoder is required")
	}
	if !isa.Supported(opts.Pair) {
		return nil, fmt.Errorf("engine: unsupported ISA pair %s", opts.Pair)
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 64
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.NewNop()
	}
	if opts.JitOpt == (translate.Config{}) {
		opts.JitOpt = translate.Config{Level: translate.OptQuick}
	}
	if opts.AotOpt == (translate.Config{}) {
		opts.AotOpt = translate.Config{Level: translate.OptFull}
	}

	e := &Engine{
		pair:        opts.Pair,
		dec:         opts.Decoder,
		nat:         opts.Native,
		tr:          opts.Tracer,
		prof:        profile.New(opts.Profile),
		arena:       arena.New(opts.ArenaGenSize),
		jitOpt:      opts.JitOpt,
		aotOpt:      opts.AotOpt,
		jitJobs:     make(chan compileJob, opts.QueueDepth),
		aotJobs:     make(chan compileJob, opts.QueueDepth),
		results:     make(chan compileResult, opts.QueueDepth),
		workers:     opts.Workers,
		workerStats: make([]workerCounters, opts.Workers),
	}

	cacheCfg := opts.Cache
	cacheCfg.OnEvict = e.onEvict
	e.cache = cache.New(cacheCfg)
	e.col = collector.New(opts.Collector, e.arena, e.cache, opts.Tracer)
	return e, nil
}

// onEvict runs outside the shard lock for every evicted entry: the
// artifact's arena reference is dropped and the collector is nudged. An
// in-flight compile for the key keeps running; its result is discarded by
// the installer because the entry is no longer resident.
func (e *Engine) onEvict(entry *cache.Entry) {
	if art := entry.Artifact(); art != nil && !art.Code.Zero() {
		e.arena.Release(art.Code)
	}
	e.col.NoteEviction()
}

// Start launches the compile workers, the result installer and the
// collector loop. Must be called once before Dispatch.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < e.workers; i++ {
		i := i
		e.group.Go(func() error {
			e.compileWorker(ctx, i)
			return nil
		})
	}
	e.group.Go(func() error {
		e.installLoop(ctx)
		return nil
	})
	e.group.Go(func() error {
		e.col.Run(ctx)
		return nil
	})
	e.group.Go(func() error {
		e.maintainLoop(ctx)
		return nil
	})
	trace.Point(e.tr, trace.ScopeEngine, "start", "pair=%s workers=%d", e.pair, e.workers)
}

// Close stops the background goroutines and flushes the tracer.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
		_ = e.group.Wait()
	}
	trace.Point(e.tr, trace.ScopeEngine, "stop", "")
	return e.tr.Flush()
}

func (e *Engine) maintainLoop(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.cache.Maintain()
			e.cache.EvictIfNeeded()
		}
	}
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() ExecutionStats {
	cs := e.cache.Stats()
	st := ExecutionStats{
		InterpreterExecutions: e.interpExecs.Load(),
		JitExecutions:         e.jitExecs.Load(),
		AotExecutions:         e.aotExecs.Load(),
		CacheHitRate:          cs.HitRate,
		Cache:                 cs,
		Arena:                 e.arena.Stats(),
		Collector:             e.col.Stats(),
	}
	for i := range e.workerStats {
		w := &e.workerStats[i]
		st.Workers = append(st.Workers, WorkerStats{
			Compiled:    w.compiled.Load(),
			Failed:      w.failed.Load(),
			CompileTime: time.Duration(w.timeNS.Load()),
		})
	}
	return st
}

// Cache exposes the unified code cache for diagnostics and image export.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Arena exposes the code arena for diagnostics.
func (e *Engine) Arena() *arena.Arena { return e.arena }

// Collector exposes the code-object collector.
func (e *Engine) Collector() *collector.Collector { return e.col }

// Pair returns the engine's translation direction.
func (e *Engine) Pair() isa.Pair { return e.pair }

func (e *Engine) setFatal(err error) {
	e.fatal.CompareAndSwap(nil, &fatalError{err: err})
	trace.Point(e.tr, trace.ScopeEngine, "fatal", "%v", err)
}

// Err returns the fatal error that stopped the engine, if any. Only
// genuine host-resource exhaustion lands here.
func (e *Engine) Err() error {
	if f := e.fatal.Load(); f != nil {
		return f.err
	}
	return nil
}
