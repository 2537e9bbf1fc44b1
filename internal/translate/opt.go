package translate

import "warp/internal/ir"

// propagateConstants runs block-local constant propagation: register
// copies and ALU ops whose sources are all known fold into immediate
// loads. Returns the rewritten ops and the fold count.
func propagateConstants(ops []ir.Op) ([]ir.Op, int) {
	known := make(map[ir.RegID]uint64, ir.NumRegs)
	out := make([]ir.Op, 0, len(ops))
	folds := 0

	for i := range ops {
		op := ops[i]
		switch {
		case op.Kind == ir.OpMovImm:
			known[op.MovImm.Dst] = op.MovImm.Imm
		case op.Kind == ir.OpMov:
			if v, ok := known[op.Mov.Src]; ok {
				op = ir.Op{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: op.Mov.Dst, Imm: v}}
				known[op.MovImm.Dst] = v
				folds++
			} else {
				delete(known, op.Mov.Dst)
			}
		case op.Kind.IsALU():
			a, aok := known[op.ALU.Src1]
			b, bok := known[op.ALU.Src2]
			if aok && bok {
				v := evalALU(op.Kind, a, b)
				op = ir.Op{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: op.ALU.Dst, Imm: v}}
				known[op.MovImm.Dst] = v
				folds++
			} else {
				delete(known, op.ALU.Dst)
			}
		case op.Kind == ir.OpLoad:
			delete(known, op.Load.Dst)
		}
		out = append(out, op)
	}
	return out, folds
}

func evalALU(k ir.OpKind, a, b uint64) uint64 {
	switch k {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpAnd:
		return a & b
	case ir.OpOr:
		return a | b
	case ir.OpXor:
		return a ^ b
	case ir.OpShl:
		return a << (b & 63)
	case ir.OpShr:
		return a >> (b & 63)
	default:
		return 0
	}
}

// eliminateDead removes nops and register writes that are overwritten
// later in the block with no intervening read. Every register is guest
// state and live out of the block, so a write is dead only when the same
// register is redefined before the block ends. Memory ops are never
// removed; their faults are architecturally visible.
func eliminateDead(ops []ir.Op) ([]ir.Op, int) {
	// liveAhead[r]: register r is read, or survives to block end, before
	// its next redefinition.
	var liveAhead [ir.NumRegs]bool
	for r := range liveAhead {
		liveAhead[r] = true
	}

	keep := make([]bool, len(ops))
	uses := make([]ir.RegID, 0, 2)
	removed := 0

	for i := len(ops) - 1; i >= 0; i-- {
		op := &ops[i]
		if op.Kind == ir.OpNop {
			removed++
			continue
		}
		dst, defines := op.Defs()
		if defines && !liveAhead[dst] && !op.Touches() {
			removed++
			continue
		}
		keep[i] = true
		if defines {
			liveAhead[dst] = false
		}
		uses = op.Uses(uses[:0])
		for _, r := range uses {
			liveAhead[r] = true
		}
	}

	if removed == 0 {
		return ops, 0
	}
	out := make([]ir.Op, 0, len(ops)-removed)
	for i := range ops {
		if keep[i] {
			out = append(out, ops[i])
		}
	}
	return out, removed
}
