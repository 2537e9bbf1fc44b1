package engine

import (
	"context"
	"errors"
	"time"

	"warp/internal/arena"
	"warp/internal/cache"
	"warp/internal/ir"
	"warp/internal/isa"
	"warp/internal/target"
	"warp/internal/trace"
	"warp/internal/translate"
)

// compileJob asks a worker to build one artifact. The entry pointer is
// the identity the installer later checks against the cache; an entry
// evicted while its job is in flight fails that check and the result is
// dropped.
type compileJob struct {
	entry     *cache.Entry
	block     *ir.Block
	tier      cache.Tier
	prevState cache.State
}

// compileResult carries one finished (or failed) compilation to the
// installer.
type compileResult struct {
	job      compileJob
	artifact *cache.Artifact
	err      error
}

// compileWorker drains the job queues, JIT before AOT. A waiting guest
// benefits from a fast JIT artifact now more than from an optimized one
// later, so AOT work only runs when no JIT work is queued. Translation
// failures are results too; the installer owns every state transition
// out of a pending state.
func (e *Engine) compileWorker(ctx context.Context, id int) {
	w := &e.workerStats[id]
	for {
		var job compileJob
		select {
		case job = <-e.jitJobs:
		default:
			select {
			case <-ctx.Done():
				return
			case job = <-e.jitJobs:
			case job = <-e.aotJobs:
			}
		}

		start := time.Now()
		res := e.compileOne(job)
		w.timeNS.Add(int64(time.Since(start)))
		if res.err != nil {
			w.failed.Add(1)
		} else {
			w.compiled.Add(1)
		}

		select {
		case e.results <- res:
		case <-ctx.Done():
			e.abandon(res)
			return
		}
	}
}

func (e *Engine) compileOne(job compileJob) compileResult {
	cfg := e.jitOpt
	if job.tier == cache.TierAotCompiled {
		cfg = e.aotOpt
	}

	sp := trace.BeginSpan(e.tr, trace.ScopeCompile, "compile")
	seq, err := translate.Translate(job.block, e.pair, cfg)
	if err != nil {
		sp.End("pc=0x%x tier=%s err=%v", job.entry.Key.PC, job.tier, err)
		return compileResult{job: job, err: err}
	}
	code, err := target.Encode(seq)
	if err != nil {
		sp.End("pc=0x%x tier=%s err=%v", job.entry.Key.PC, job.tier, err)
		return compileResult{job: job, err: err}
	}

	desc, _ := isa.Lookup(e.pair.Target)
	h, err := e.arena.Alloc(code, desc.CodeAlign)
	if err != nil {
		sp.End("pc=0x%x tier=%s err=%v", job.entry.Key.PC, job.tier, err)
		return compileResult{job: job, err: err}
	}
	sp.End("pc=0x%x tier=%s bytes=%d", job.entry.Key.PC, job.tier, len(code))

	return compileResult{
		job: job,
		artifact: &cache.Artifact{
			Tier:      job.tier,
			Code:      h,
			SizeBytes: uint32(len(code)),
		},
	}
}

// installLoop applies compile results to the cache one at a time, which
// keeps promotion, supersession and cancellation on a single goroutine.
func (e *Engine) installLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drainResults()
			return
		case res := <-e.results:
			e.install(res)
		}
	}
}

func (e *Engine) drainResults() {
	for {
		select {
		case res := <-e.results:
			e.abandon(res)
		default:
			return
		}
	}
}

// abandon drops a result without installing it.
func (e *Engine) abandon(res compileResult) {
	if res.artifact != nil && !res.artifact.Code.Zero() {
		e.arena.Release(res.artifact.Code)
	}
	res.job.entry.EndCompile()
}

func (e *Engine) install(res compileResult) {
	entry := res.job.entry
	defer entry.EndCompile()

	if res.err != nil {
		e.installFailure(res)
		return
	}

	// An entry evicted while compiling is gone from the cache; anything
	// resident under the same key now is a different entry. Installing
	// there would attach the wrong artifact, so the result is dropped.
	current, ok := e.cache.Lookup(entry.Key)
	if !ok || current != entry {
		e.arena.Release(res.artifact.Code)
		trace.Point(e.tr, trace.ScopeCompile, "discard", "pc=0x%x tier=%s", entry.Key.PC, res.artifact.Tier)
		return
	}

	old := entry.Artifact()
	e.cache.Promote(entry, res.artifact)
	switch res.artifact.Tier {
	case cache.TierJitCompiled:
		entry.SetState(cache.StateJitCompiled)
	case cache.TierAotCompiled:
		entry.SetState(cache.StateAotCompiled)
	}

	// The superseded artifact's reference is only dropped after the new
	// one is installed; in-flight executions keep it alive through pins.
	if old != nil && !old.Code.Zero() {
		e.arena.Release(old.Code)
	}
	trace.Point(e.tr, trace.ScopeCompile, "install", "pc=0x%x tier=%s bytes=%d",
		entry.Key.PC, res.artifact.Tier, res.artifact.SizeBytes)
}

// installFailure sorts a failed compile into the taxonomy: translation
// rejections pin the key to the interpreter forever, arena exhaustion is
// fatal, anything else rolls the state back for a later retry.
func (e *Engine) installFailure(res compileResult) {
	entry := res.job.entry

	var terr *translate.Error
	switch {
	case errors.As(res.err, &terr):
		entry.SetState(cache.StateUnsupportedFallback)
		trace.Point(e.tr, trace.ScopeCompile, "unsupported", "pc=0x%x %v", entry.Key.PC, res.err)
	case errors.Is(res.err, arena.ErrExhausted):
		entry.SetState(res.job.prevState)
		e.setFatal(res.err)
	default:
		entry.SetState(res.job.prevState)
		trace.Point(e.tr, trace.ScopeCompile, "compile-error", "pc=0x%x %v", entry.Key.PC, res.err)
	}
}
