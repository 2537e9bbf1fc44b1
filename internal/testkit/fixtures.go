package testkit

import "warp/internal/ir"

// ArithBlock builds a straight-line block at pc: r1 = 7, r2 = 5,
// r3 = r1 + r2, halt. Small enough to translate on any target.
func ArithBlock(pc uint64) *ir.Block {
	return &ir.Block{
		StartPC: pc,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 7}},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 5}},
			{Kind: ir.OpAdd, ALU: ir.ALUOp{Dst: 3, Src1: 1, Src2: 2}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
}

// LoopBlock builds a block at pc that decrements r1 and branches back to
// itself while r1 is non-zero, falling through to next when it reaches
// zero. Drives promotion scenarios: each dispatch is one iteration.
func LoopBlock(pc, next uint64) *ir.Block {
	return &ir.Block{
		StartPC: pc,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 1}},
			{Kind: ir.OpSub, ALU: ir.ALUOp{Dst: 1, Src1: 1, Src2: 2}},
		},
		Term: ir.Terminator{
			Kind:   ir.TermBranch,
			Branch: ir.BranchTerm{Cond: 1, Taken: pc, NotTaken: next},
		},
	}
}

// StoreLoadBlock builds a block at pc that writes r1 to [r2+0] and reads
// it back into r3. Exercises memory ordering and endianness fix-ups.
func StoreLoadBlock(pc uint64) *ir.Block {
	return &ir.Block{
		StartPC: pc,
		Ops: []ir.Op{
			{Kind: ir.OpStore, Store: ir.StoreOp{Src: 1, Base: 2, Offset: 0, Size: 8}},
			{Kind: ir.OpLoad, Load: ir.LoadOp{Dst: 3, Base: 2, Offset: 0, Size: 8}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
}
