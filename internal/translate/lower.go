package translate

import (
	"warp/internal/ir"
	"warp/internal/isa"
	"warp/internal/target"
)

// emit lowers the scheduled ops into target instructions. Spilled
// registers are staged through the target's scratch registers with
// explicit spill loads and stores; opposite-endian memory accesses get the
// swap flag so guest memory keeps source byte order.
func emit(b *ir.Block, ops []ir.Op, order []int, groupEnd []bool, asn *assignment, srcDesc, desc *isa.Desc) *target.Seq {
	e := &emitter{
		asn:  asn,
		desc: desc,
		swap: srcDesc.ByteOrder != desc.ByteOrder,
	}

	for pos, idx := range order {
		e.op(&ops[idx], groupEnd[pos])
	}
	e.terminator(&b.Term)

	return &target.Seq{Instrs: e.out, RegMap: asn.regMap}
}

type emitter struct {
	asn  *assignment
	desc *isa.Desc
	swap bool
	out  []target.Instr
}

func (e *emitter) push(in target.Instr) {
	e.out = append(e.out, in)
}

// src returns the physical register holding virtual register v, emitting a
// spill load through scratch register scratch (0 or 1) when v is
// memory-resident.
func (e *emitter) src(v ir.RegID, scratch int) isa.PhysReg {
	loc := e.asn.regMap[v]
	if !loc.IsSpill() {
		return loc.Phys()
	}
	s := e.desc.Scratch[scratch]
	e.push(target.Instr{Op: target.OpLdSpill, Dst: s, Slot: loc.Slot()})
	return s
}

// dst returns the physical register to compute v into and whether a spill
// store must follow.
func (e *emitter) dst(v ir.RegID) (isa.PhysReg, bool) {
	loc := e.asn.regMap[v]
	if !loc.IsSpill() {
		return loc.Phys(), false
	}
	return e.desc.Scratch[0], true
}

// flush stores the scratch register back to v's spill slot if needed.
func (e *emitter) flush(v ir.RegID, phys isa.PhysReg, spilled bool) {
	if spilled {
		e.push(target.Instr{Op: target.OpStSpill, Src1: phys, Slot: e.asn.regMap[v].Slot()})
	}
}

func (e *emitter) op(op *ir.Op, groupEnd bool) {
	start := len(e.out)
	switch op.Kind {
	case ir.OpMovImm:
		d, sp := e.dst(op.MovImm.Dst)
		e.push(target.Instr{Op: target.OpMovImm, Dst: d, Imm: op.MovImm.Imm})
		e.flush(op.MovImm.Dst, d, sp)
	case ir.OpMov:
		s := e.src(op.Mov.Src, 0)
		d, sp := e.dst(op.Mov.Dst)
		e.push(target.Instr{Op: target.OpMov, Dst: d, Src1: s})
		e.flush(op.Mov.Dst, d, sp)
	case ir.OpLoad:
		base := e.src(op.Load.Base, 0)
		d, sp := e.dst(op.Load.Dst)
		e.push(target.Instr{
			Op:    target.OpLoad,
			Flags: e.memFlags(),
			Dst:   d,
			Src1:  base,
			Size:  op.Load.Size,
			Imm:   uint64(uint32(op.Load.Offset)),
		})
		e.flush(op.Load.Dst, d, sp)
	case ir.OpStore:
		base := e.src(op.Store.Base, 0)
		val := e.src(op.Store.Src, 1)
		e.push(target.Instr{
			Op:    target.OpStore,
			Flags: e.memFlags(),
			Src1:  base,
			Src2:  val,
			Size:  op.Store.Size,
			Imm:   uint64(uint32(op.Store.Offset)),
		})
	case ir.OpNop:
		// Dropped by DCE at OptQuick and above; emit nothing either way.
	default:
		if top, ok := target.ALUOpcode(op.Kind); ok {
			s1 := e.src(op.ALU.Src1, 0)
			s2 := e.src(op.ALU.Src2, 1)
			d, sp := e.dst(op.ALU.Dst)
			e.push(target.Instr{Op: top, Dst: d, Src1: s1, Src2: s2})
			e.flush(op.ALU.Dst, d, sp)
		}
	}
	if groupEnd && len(e.out) > start {
		e.out[len(e.out)-1].Flags |= target.FlagGroupEnd
	}
}

func (e *emitter) memFlags() uint8 {
	if e.swap {
		return target.FlagSwap
	}
	return 0
}

func (e *emitter) terminator(t *ir.Terminator) {
	switch t.Kind {
	case ir.TermJump:
		e.push(target.Instr{Op: target.OpJump, Flags: target.FlagGroupEnd, Imm: t.Jump.Target})
	case ir.TermBranch:
		cond := e.src(t.Branch.Cond, 0)
		e.push(target.Instr{Op: target.OpBranch, Src1: cond, Imm: t.Branch.Taken})
		e.push(target.Instr{Op: target.OpJump, Flags: target.FlagGroupEnd, Imm: t.Branch.NotTaken})
	case ir.TermHalt:
		e.push(target.Instr{Op: target.OpHalt, Flags: target.FlagGroupEnd})
	}
}
