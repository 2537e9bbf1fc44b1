package translate_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"warp/internal/guestmem"
	"warp/internal/interp"
	"warp/internal/ir"
	"warp/internal/isa"
	"warp/internal/target"
	"warp/internal/translate"
)

var allTargets = []isa.ID{isa.X86_64, isa.AArch64, isa.RISCV64, isa.PPC64}

func machineFor(src isa.ID) (*interp.Machine, *guestmem.Flat) {
	desc, _ := isa.Lookup(src)
	mem := guestmem.NewFlat(0x1000, 512)
	return interp.NewMachine(mem, desc.ByteOrder), mem
}

// checkEquivalence interprets the block and runs its translation from the
// same initial state, then compares the control transfer, the full guest
// register file and guest memory.
func checkEquivalence(t *testing.T, b *ir.Block, pair isa.Pair, cfg translate.Config, seed func(*interp.Machine)) {
	t.Helper()

	ref, refMem := machineFor(pair.Source)
	got, gotMem := machineFor(pair.Source)
	if seed != nil {
		seed(ref)
		seed(got)
	}

	wantRes, wantErr := interp.Run(b, ref)
	if wantErr != nil {
		t.Fatalf("interp: %v", wantErr)
	}

	seq, err := translate.Translate(b, pair, cfg)
	if err != nil {
		t.Fatalf("Translate(%s): %v", pair, err)
	}
	code, err := target.Encode(seq)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	gotRes, err := target.Run(code, got)
	if err != nil {
		t.Fatalf("Run(%s): %v", pair, err)
	}

	if gotRes != wantRes {
		t.Fatalf("%s: result = %+v, want %+v", pair, gotRes, wantRes)
	}
	if got.Regs != ref.Regs {
		t.Fatalf("%s: regs = %v, want %v", pair, got.Regs, ref.Regs)
	}
	if !bytes.Equal(gotMem.Snapshot(), refMem.Snapshot()) {
		t.Fatalf("%s: guest memory diverged", pair)
	}
}

func mixedBlock() *ir.Block {
	return &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 0x1000}},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 0x01020304}},
			{Kind: ir.OpStore, Store: ir.StoreOp{Src: 2, Base: 1, Offset: 0x40, Size: 4}},
			{Kind: ir.OpLoad, Load: ir.LoadOp{Dst: 3, Base: 1, Offset: 0x40, Size: 4}},
			{Kind: ir.OpAdd, ALU: ir.ALUOp{Dst: 4, Src1: 3, Src2: 2}},
			{Kind: ir.OpMov, Mov: ir.MovOp{Dst: 5, Src: 4}},
			{Kind: ir.OpAnd, ALU: ir.ALUOp{Dst: 6, Src1: 5, Src2: 2}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
}

func TestTranslate_EquivalenceAcrossTargets(t *testing.T) {
	for _, src := range []isa.ID{isa.AArch64, isa.PPC64} {
		for _, tgt := range allTargets {
			// mixedBlock has no shifts, so ppc64 stays translatable on
			// either side of the pair.
			pair := isa.Pair{Source: src, Target: tgt}
			for _, lvl := range []translate.OptLevel{translate.OptNone, translate.OptQuick, translate.OptFull} {
				t.Run(fmt.Sprintf("%s_%s", pair, lvl), func(t *testing.T) {
					checkEquivalence(t, mixedBlock(), pair, translate.Config{Level: lvl}, nil)
				})
			}
		}
	}
}

func TestTranslate_EndianFixup(t *testing.T) {
	// Little-endian source on a big-endian target: guest memory must keep
	// source byte order, so a byte-wise readback sees little-endian bytes.
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 0x1000}},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 0xAABBCCDD}},
			{Kind: ir.OpStore, Store: ir.StoreOp{Src: 2, Base: 1, Offset: 0, Size: 4}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	pair := isa.Pair{Source: isa.X86_64, Target: isa.PPC64}
	checkEquivalence(t, b, pair, translate.Config{Level: translate.OptNone}, nil)

	// And directly: the byte the interpreter writes first is 0xDD.
	m, mem := machineFor(isa.X86_64)
	seq, err := translate.Translate(b, pair, translate.Config{Level: translate.OptNone})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if _, err := target.RunSeq(seq, m); err != nil {
		t.Fatalf("RunSeq: %v", err)
	}
	if mem.Data[0] != 0xDD {
		t.Fatalf("memory[0] = 0x%x, want little-endian 0xDD", mem.Data[0])
	}
}

func TestTranslate_BranchBothWays(t *testing.T) {
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 1}},
			{Kind: ir.OpSub, ALU: ir.ALUOp{Dst: 1, Src1: 1, Src2: 2}},
		},
		Term: ir.Terminator{
			Kind:   ir.TermBranch,
			Branch: ir.BranchTerm{Cond: 1, Taken: 0x1000, NotTaken: 0x2000},
		},
	}
	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	cfg := translate.Config{Level: translate.OptFull}

	checkEquivalence(t, b, pair, cfg, func(m *interp.Machine) { m.Regs[1] = 5 }) // taken
	checkEquivalence(t, b, pair, cfg, func(m *interp.Machine) { m.Regs[1] = 1 }) // falls through
}

func TestTranslate_ConstantFolding(t *testing.T) {
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 6}},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 7}},
			{Kind: ir.OpMul, ALU: ir.ALUOp{Dst: 3, Src1: 1, Src2: 2}},
			{Kind: ir.OpMov, Mov: ir.MovOp{Dst: 4, Src: 3}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	_, stats, err := translate.TranslateStats(b, pair, translate.Config{Level: translate.OptQuick})
	if err != nil {
		t.Fatalf("TranslateStats: %v", err)
	}
	if stats.ConstFolds != 2 {
		t.Fatalf("ConstFolds = %d, want 2 (mul and mov)", stats.ConstFolds)
	}
	checkEquivalence(t, b, pair, translate.Config{Level: translate.OptQuick}, nil)
}

func TestTranslate_DeadCodeElimination(t *testing.T) {
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpNop},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 111}}, // overwritten, never read
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 222}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	_, stats, err := translate.TranslateStats(b, pair, translate.Config{Level: translate.OptQuick})
	if err != nil {
		t.Fatalf("TranslateStats: %v", err)
	}
	if stats.DeadOps != 2 {
		t.Fatalf("DeadOps = %d, want 2 (nop and dead def)", stats.DeadOps)
	}
	checkEquivalence(t, b, pair, translate.Config{Level: translate.OptQuick}, nil)
}

func TestTranslate_DCEKeepsReadThenRedefined(t *testing.T) {
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 10}},
			{Kind: ir.OpAdd, ALU: ir.ALUOp{Dst: 2, Src1: 1, Src2: 1}}, // reads r1 before redefinition
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 20}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	checkEquivalence(t, b, pair, translate.Config{Level: translate.OptQuick}, nil)
}

func TestTranslate_DCENeverRemovesMemoryOps(t *testing.T) {
	// The load's destination is immediately overwritten, but the access
	// itself must still happen: it can fault.
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 0xFFFF_0000}},
			{Kind: ir.OpLoad, Load: ir.LoadOp{Dst: 2, Base: 1, Offset: 0, Size: 8}},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 1}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	seq, err := translate.Translate(b, pair, translate.Config{Level: translate.OptQuick})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	m, _ := machineFor(isa.AArch64)
	if _, err := target.RunSeq(seq, m); err == nil {
		t.Fatal("out-of-bounds load survived DCE but did not fault")
	}
}

func TestTranslate_SpillsStayEquivalent(t *testing.T) {
	// Twelve live registers on x86-64: eight fill the register file, four
	// land in spill slots.
	ops := make([]ir.Op, 0, 16)
	for r := 0; r < 12; r++ {
		ops = append(ops, ir.Op{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: ir.RegID(r), Imm: uint64(r * 3)}})
	}
	for r := 1; r < 12; r++ {
		ops = append(ops, ir.Op{Kind: ir.OpAdd, ALU: ir.ALUOp{Dst: ir.RegID(r), Src1: ir.RegID(r - 1), Src2: ir.RegID(r)}})
	}
	b := &ir.Block{StartPC: 0x1000, Ops: ops, Term: ir.Terminator{Kind: ir.TermHalt}}

	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	_, stats, err := translate.TranslateStats(b, pair, translate.Config{Level: translate.OptNone})
	if err != nil {
		t.Fatalf("TranslateStats: %v", err)
	}
	if stats.Spilled != 4 {
		t.Fatalf("Spilled = %d, want 4", stats.Spilled)
	}
	checkEquivalence(t, b, pair, translate.Config{Level: translate.OptNone}, nil)
}

func TestTranslate_RegisterPressureExceeded(t *testing.T) {
	// Thirteen live registers exceed x86-64's eight registers plus four
	// spill slots.
	ops := make([]ir.Op, 0, 13)
	for r := 0; r < 13; r++ {
		ops = append(ops, ir.Op{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: ir.RegID(r), Imm: 1}})
	}
	// Keep them all live: read every one.
	for r := 1; r < 13; r++ {
		ops = append(ops, ir.Op{Kind: ir.OpAdd, ALU: ir.ALUOp{Dst: 0, Src1: 0, Src2: ir.RegID(r)}})
	}
	b := &ir.Block{StartPC: 0x1000, Ops: ops, Term: ir.Terminator{Kind: ir.TermHalt}}

	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	_, err := translate.Translate(b, pair, translate.Config{Level: translate.OptNone})
	if !translate.IsRegisterPressure(err) {
		t.Fatalf("Translate = %v, want register pressure", err)
	}

	// The same block fits a wider target.
	if _, err := translate.Translate(b, isa.Pair{Source: isa.AArch64, Target: isa.AArch64}, translate.Config{Level: translate.OptNone}); err != nil {
		t.Fatalf("aarch64 target should fit: %v", err)
	}
}

func TestTranslate_UnsupportedOperation(t *testing.T) {
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 8}},
			{Kind: ir.OpShl, ALU: ir.ALUOp{Dst: 2, Src1: 1, Src2: 1}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	_, err := translate.Translate(b, isa.Pair{Source: isa.AArch64, Target: isa.PPC64}, translate.Config{})
	if !translate.IsUnsupported(err) {
		t.Fatalf("Translate = %v, want unsupported operation", err)
	}
	// Same block is fine where shifts encode.
	if _, err := translate.Translate(b, isa.Pair{Source: isa.AArch64, Target: isa.RISCV64}, translate.Config{}); err != nil {
		t.Fatalf("riscv64 should encode shifts: %v", err)
	}
}

func TestTranslate_InvalidBlockRejected(t *testing.T) {
	b := &ir.Block{StartPC: 0x1000} // no terminator
	if _, err := translate.Translate(b, isa.Pair{Source: isa.AArch64, Target: isa.X86_64}, translate.Config{}); err == nil {
		t.Fatal("unterminated block should fail validation")
	}
}

func TestTranslate_SchedulingRespectsIssueWidth(t *testing.T) {
	// Eight independent immediate loads: full scheduling must pack them
	// into groups no wider than the target's issue width.
	ops := make([]ir.Op, 8)
	for i := range ops {
		ops[i] = ir.Op{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: ir.RegID(i), Imm: uint64(i)}}
	}
	b := &ir.Block{StartPC: 0x1000, Ops: ops, Term: ir.Terminator{Kind: ir.TermHalt}}

	for _, tgt := range allTargets {
		desc, _ := isa.Lookup(tgt)
		seq, stats, err := translate.TranslateStats(b, isa.Pair{Source: isa.AArch64, Target: tgt}, translate.Config{Level: translate.OptFull})
		if err != nil {
			t.Fatalf("%v: %v", tgt, err)
		}
		wantGroups := (len(ops) + desc.IssueWidth - 1) / desc.IssueWidth
		if stats.Groups != wantGroups {
			t.Errorf("%v: %d groups for %d independent ops, want %d at width %d",
				tgt, stats.Groups, len(ops), wantGroups, desc.IssueWidth)
		}
		// Group sizes in the emitted stream never exceed the issue width.
		size := 0
		for _, in := range seq.Instrs {
			size++
			if in.Flags&target.FlagGroupEnd != 0 {
				if size > desc.IssueWidth {
					t.Errorf("%v: group of %d exceeds issue width %d", tgt, size, desc.IssueWidth)
				}
				size = 0
			}
		}
	}
}

func TestTranslate_SchedulingKeepsMemoryOrder(t *testing.T) {
	// Two stores to the same address then a load: any reordering would be
	// visible in the loaded value.
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 0x1000}},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 2, Imm: 0xAA}},
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 3, Imm: 0xBB}},
			{Kind: ir.OpStore, Store: ir.StoreOp{Src: 2, Base: 1, Offset: 0, Size: 1}},
			{Kind: ir.OpStore, Store: ir.StoreOp{Src: 3, Base: 1, Offset: 0, Size: 1}},
			{Kind: ir.OpLoad, Load: ir.LoadOp{Dst: 4, Base: 1, Offset: 0, Size: 1}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	for _, tgt := range allTargets {
		checkEquivalence(t, b, isa.Pair{Source: isa.AArch64, Target: tgt}, translate.Config{Level: translate.OptFull}, nil)
	}
}

func TestTranslate_FaultingBlockPreservesCommittedState(t *testing.T) {
	// The register work and the store precede the faulting load. Both
	// tiers must surface the same fault and leave the same guest state:
	// r1 written, the store visible, the load's destination untouched.
	b := &ir.Block{
		StartPC: 0x1000,
		Ops: []ir.Op{
			{Kind: ir.OpMovImm, MovImm: ir.MovImmOp{Dst: 1, Imm: 7}},
			{Kind: ir.OpStore, Store: ir.StoreOp{Src: 1, Base: 2, Offset: 0, Size: 8}},
			{Kind: ir.OpLoad, Load: ir.LoadOp{Dst: 4, Base: 5, Offset: 0, Size: 8}},
		},
		Term: ir.Terminator{Kind: ir.TermHalt},
	}
	seed := func(m *interp.Machine) {
		m.Regs[2] = 0x1040
		m.Regs[5] = 0 // far below the mapped guest range
	}

	for _, tgt := range allTargets {
		pair := isa.Pair{Source: isa.AArch64, Target: tgt}
		t.Run(pair.String(), func(t *testing.T) {
			ref, refMem := machineFor(pair.Source)
			seed(ref)
			_, wantErr := interp.Run(b, ref)
			var fault *guestmem.Fault
			if !errors.As(wantErr, &fault) {
				t.Fatalf("interp err = %v, want a guest fault", wantErr)
			}

			got, gotMem := machineFor(pair.Source)
			seed(got)
			// Program order so the fault point matches the interpreter's.
			seq, err := translate.Translate(b, pair, translate.Config{Level: translate.OptNone})
			if err != nil {
				t.Fatalf("Translate: %v", err)
			}
			code, err := target.Encode(seq)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			_, gotErr := target.Run(code, got)
			if !errors.As(gotErr, &fault) {
				t.Fatalf("compiled err = %v, want a guest fault", gotErr)
			}

			if got.Regs != ref.Regs {
				t.Fatalf("register state diverges after fault: interp r1=%d compiled r1=%d (%v vs %v)",
					ref.Regs[1], got.Regs[1], ref.Regs, got.Regs)
			}
			if !bytes.Equal(gotMem.Snapshot(), refMem.Snapshot()) {
				t.Fatal("guest memory diverges after fault")
			}
		})
	}
}
