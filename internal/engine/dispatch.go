package engine

import (
	"warp/internal/cache"
	"warp/internal/interp"
	"warp/internal/profile"
	"warp/internal/target"
	"warp/internal/trace"
)

// Dispatch executes the block at pc against m on the best available tier
// and returns its outcome. A miss decodes, interprets once and registers
// the block; a hit records heat, enqueues pending promotions and runs the
// installed artifact. Guest faults come back unchanged, including the
// guest register state at the faulting point.
func (e *Engine) Dispatch(m *interp.Machine, pc uint64) (interp.ExecResult, error) {
	if f := e.fatal.Load(); f != nil {
		return interp.ExecResult{}, f.err
	}

	key := cache.Key{PC: pc, Pair: e.pair}
	entry, ok := e.cache.Lookup(key)
	if !ok {
		return e.dispatchMiss(m, key)
	}

	decision := e.prof.Record(&entry.Hot)
	e.considerPromotion(m, entry, decision)

	art := entry.Artifact()
	if art == nil || art.Tier == cache.TierInterpreted {
		return e.interpret(m, pc)
	}
	return e.runCompiled(m, entry, art)
}

// dispatchMiss handles a cold PC: decode, interpret once, register the
// key at the interpreted tier so subsequent dispatches accumulate heat.
func (e *Engine) dispatchMiss(m *interp.Machine, key cache.Key) (interp.ExecResult, error) {
	block, err := e.dec.Decode(m.Mem, key.PC)
	if err != nil {
		return interp.ExecResult{}, err
	}

	entry := e.cache.InsertOrUpdate(key, &cache.Artifact{Tier: cache.TierInterpreted})
	e.prof.Record(&entry.Hot)

	e.interpExecs.Add(1)
	return interp.Run(block, m)
}

// considerPromotion turns a profiler decision into at most one state
// transition plus a compile request. The CAS loser does nothing; exactly
// one dispatcher per threshold crossing enqueues the job.
func (e *Engine) considerPromotion(m *interp.Machine, entry *cache.Entry, decision profile.Decision) {
	switch decision {
	case profile.PromoteToJit:
		if entry.State() != cache.StateInterpreting {
			return
		}
		e.requestCompile(m, entry, cache.StateInterpreting, cache.StateJitPending, cache.TierJitCompiled)
	case profile.PromoteToAot:
		switch entry.State() {
		case cache.StateInterpreting:
			// Skipped straight past the JIT threshold (e.g. after an image
			// load raised the counter); take the JIT step first.
			e.requestCompile(m, entry, cache.StateInterpreting, cache.StateJitPending, cache.TierJitCompiled)
		case cache.StateJitCompiled:
			e.requestCompile(m, entry, cache.StateJitCompiled, cache.StateAotPending, cache.TierAotCompiled)
		}
	}
}

// requestCompile claims the entry's compile slot, transitions its state
// and submits a job. A full queue or a lost race rolls the state back;
// the block stays on its current tier and is reconsidered later. Never
// blocks the dispatcher.
func (e *Engine) requestCompile(m *interp.Machine, entry *cache.Entry, from, pending cache.State, tier cache.Tier) {
	if !entry.TryBeginCompile() {
		return
	}
	if !entry.CasState(from, pending) {
		entry.EndCompile()
		return
	}

	block, err := e.dec.Decode(m.Mem, entry.Key.PC)
	if err != nil {
		// The bytes decoded before; if they no longer do, leave the key
		// where it was and let the next execution surface the fault.
		entry.SetState(from)
		entry.EndCompile()
		return
	}

	job := compileJob{entry: entry, block: block, tier: tier, prevState: from}
	queue := e.jitJobs
	if tier == cache.TierAotCompiled {
		queue = e.aotJobs
	}
	select {
	case queue <- job:
		trace.Point(e.tr, trace.ScopeDispatch, "enqueue", "pc=0x%x tier=%s", entry.Key.PC, tier)
	default:
		entry.SetState(from)
		entry.EndCompile()
		trace.Point(e.tr, trace.ScopeDispatch, "queue-full", "pc=0x%x tier=%s", entry.Key.PC, tier)
	}
}

// runCompiled pins the artifact's arena generation for the duration of
// the run, so a concurrent collect cycle cannot unmap code mid-execution.
// A stale handle means the collector already reclaimed the generation;
// fall back to interpreting this invocation.
func (e *Engine) runCompiled(m *interp.Machine, entry *cache.Entry, art *cache.Artifact) (interp.ExecResult, error) {
	if !e.arena.Pin(art.Code) {
		return e.interpret(m, entry.Key.PC)
	}
	defer e.arena.Unpin(art.Code)

	code, ok := e.arena.Bytes(art.Code)
	if !ok {
		return e.interpret(m, entry.Key.PC)
	}

	switch art.Tier {
	case cache.TierJitCompiled:
		e.jitExecs.Add(1)
	case cache.TierAotCompiled:
		e.aotExecs.Add(1)
	}
	if e.nat != nil {
		return e.nat.RunBlock(code, m)
	}
	return target.Run(code, m)
}

// interpret decodes and interprets one block, the universal fallback.
func (e *Engine) interpret(m *interp.Machine, pc uint64) (interp.ExecResult, error) {
	block, err := e.dec.Decode(m.Mem, pc)
	if err != nil {
		return interp.ExecResult{}, err
	}
	e.interpExecs.Add(1)
	return interp.Run(block, m)
}

// Run executes from pc until the guest halts or faults, dispatching block
// by block. The driver loop for whole-program runs.
func (e *Engine) Run(m *interp.Machine, pc uint64, maxBlocks int) (uint64, error) {
	for i := 0; maxBlocks <= 0 || i < maxBlocks; i++ {
		res, err := e.Dispatch(m, pc)
		if err != nil {
			return pc, err
		}
		if res.Halted {
			return res.NextPC, nil
		}
		pc = res.NextPC
	}
	return pc, nil
}
