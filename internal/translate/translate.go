// Package translate turns architecture-neutral IR blocks into target
// instruction sequences: optimization, parallel-issue scheduling, register
// allocation and per-architecture encoding concerns.
package translate

import (
	"fmt"

	"warp/internal/ir"
	"warp/internal/isa"
	"warp/internal/target"
)

// OptLevel selects how much work the pipeline does before emission.
type OptLevel uint8

const (
	// OptNone emits in program order with no IR rewriting. Used by tests.
	OptNone OptLevel = iota
	// OptQuick runs constant propagation and dead-code elimination but
	// skips scheduling. The JIT tier uses it for low compile latency.
	OptQuick
	// OptFull adds parallel-issue scheduling. The AOT tier uses it.
	OptFull
)

// String returns the optimization level name.
func (l OptLevel) String() string {
	switch l {
	case OptNone:
		return "none"
	case OptQuick:
		return "quick"
	case OptFull:
		return "full"
	default:
		return "unknown"
	}
}

// Config parameterizes one translation.
type Config struct {
	Level OptLevel
}

// Stats counts what the pipeline did to one block.
type Stats struct {
	ConstFolds int
	DeadOps    int
	Groups     int
	Spilled    int
}

// Translate lowers an IR block to a target sequence for the given ISA
// pair. On error the block is unfit for this pair permanently; the caller
// is expected to pin it to the interpreter and not retry.
func Translate(b *ir.Block, pair isa.Pair, cfg Config) (*target.Seq, error) {
	seq, _, err := TranslateStats(b, pair, cfg)
	return seq, err
}

// TranslateStats is Translate plus pipeline statistics.
func TranslateStats(b *ir.Block, pair isa.Pair, cfg Config) (*target.Seq, Stats, error) {
	var stats Stats

	if err := ir.Validate(b); err != nil {
		return nil, stats, fmt.Errorf("translate %s: %w", pair, err)
	}
	desc, ok := isa.Lookup(pair.Target)
	if !ok {
		return nil, stats, fmt.Errorf("translate: unknown target %v", pair.Target)
	}
	srcDesc, ok := isa.Lookup(pair.Source)
	if !ok {
		return nil, stats, fmt.Errorf("translate: unknown source %v", pair.Source)
	}

	for i := range b.Ops {
		if !encodable(pair.Target, b.Ops[i].Kind) {
			return nil, stats, &Error{Kind: KindUnsupportedOperation, Pair: pair, Op: b.Ops[i].Kind}
		}
	}

	ops := b.Ops
	if cfg.Level >= OptQuick {
		ops, stats.ConstFolds = propagateConstants(ops)
		ops, stats.DeadOps = eliminateDead(ops)
	}

	order := sequentialOrder(len(ops))
	groupEnd := allGroupEnds(len(ops))
	stats.Groups = len(ops)
	if cfg.Level >= OptFull {
		order, groupEnd, stats.Groups = schedule(ops, desc)
	}

	asn, err := allocate(ops, &b.Term, desc, pair)
	if err != nil {
		return nil, stats, err
	}
	stats.Spilled = asn.spilled

	seq := emit(b, ops, order, groupEnd, asn, srcDesc, desc)
	seq.Source = pair.Source
	seq.Target = pair.Target
	seq.Groups = stats.Groups
	return seq, stats, nil
}

// encodable reports whether the target backend has an encoding for the op
// kind. The ppc64 backend does not implement shifts yet.
func encodable(t isa.ID, k ir.OpKind) bool {
	if t == isa.PPC64 && (k == ir.OpShl || k == ir.OpShr) {
		return false
	}
	switch k {
	case ir.OpMovImm, ir.OpMov, ir.OpLoad, ir.OpStore, ir.OpNop:
		return true
	default:
		return k.IsALU()
	}
}

func sequentialOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func allGroupEnds(n int) []bool {
	ends := make([]bool, n)
	for i := range ends {
		ends[i] = true
	}
	return ends
}
