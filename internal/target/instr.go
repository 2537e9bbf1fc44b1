// Package target defines the execution core's target instruction form:
// the sequences the translator emits, their byte encoding, and a runner
// that executes encoded sequences against a guest machine. The runner is
// the in-process stand-in used whenever no hardware-acceleration backend
// is attached to the engine.
package target

import (
	"warp/internal/ir"
	"warp/internal/isa"
)

// Opcode enumerates target instruction opcodes.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	OpMovImm
	OpMov
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLoad
	OpStore
	OpLdSpill // spill slot -> register
	OpStSpill // register -> spill slot
	OpJump
	OpBranch
	OpHalt
)

// String returns the opcode mnemonic.
func (o Opcode) String() string {
	switch o {
	case OpMovImm:
		return "movi"
	case OpMov:
		return "mov"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpShl:
		return "shl"
	case OpShr:
		return "shr"
	case OpLoad:
		return "ld"
	case OpStore:
		return "st"
	case OpLdSpill:
		return "lds"
	case OpStSpill:
		return "sts"
	case OpJump:
		return "jmp"
	case OpBranch:
		return "br"
	case OpHalt:
		return "hlt"
	default:
		return "invalid"
	}
}

// ALUOpcode maps an IR ALU kind to the target opcode.
func ALUOpcode(k ir.OpKind) (Opcode, bool) {
	switch k {
	case ir.OpAdd:
		return OpAdd, true
	case ir.OpSub:
		return OpSub, true
	case ir.OpMul:
		return OpMul, true
	case ir.OpAnd:
		return OpAnd, true
	case ir.OpOr:
		return OpOr, true
	case ir.OpXor:
		return OpXor, true
	case ir.OpShl:
		return OpShl, true
	case ir.OpShr:
		return OpShr, true
	default:
		return OpInvalid, false
	}
}

// Instruction flags.
const (
	// FlagGroupEnd marks the last instruction of a parallel-issue group.
	FlagGroupEnd uint8 = 1 << 0
	// FlagSwap marks a memory access whose bytes must be swapped to
	// preserve source-architecture memory order on this target.
	FlagSwap uint8 = 1 << 1
)

// Instr is one target instruction.
//
// Field use by opcode: MovImm(Dst, Imm); Mov/ALU(Dst, Src1, Src2);
// Load(Dst, Src1=base, Imm=offset, Size); Store(Src1=base, Src2=value,
// Imm=offset, Size); LdSpill(Dst, Slot); StSpill(Src1, Slot);
// Jump(Imm=pc); Branch(Src1=cond, Imm=taken pc); Halt().
type Instr struct {
	Op    Opcode
	Flags uint8
	Dst   isa.PhysReg
	Src1  isa.PhysReg
	Src2  isa.PhysReg
	Size  uint8
	Slot  uint8
	Imm   uint64
}

// Location describes where an IR virtual register lives for one compiled
// sequence: a physical register, a spill slot, or nowhere (unused).
type Location uint8

const (
	// LocUnused marks a virtual register the block never touches.
	LocUnused Location = 0xFF
	locSpill  Location = 0x80
)

// PhysLoc makes a physical-register location.
func PhysLoc(r isa.PhysReg) Location { return Location(r) }

// SpillLoc makes a spill-slot location.
func SpillLoc(slot uint8) Location { return locSpill | Location(slot&0x7F) }

// IsSpill reports whether the location is a spill slot.
func (l Location) IsSpill() bool { return l != LocUnused && l&locSpill != 0 }

// Phys returns the physical register of a register location.
func (l Location) Phys() isa.PhysReg { return isa.PhysReg(l) }

// Slot returns the slot index of a spill location.
func (l Location) Slot() uint8 { return uint8(l &^ locSpill) }

// RegMap locates every IR virtual register for one compiled sequence.
type RegMap [ir.NumRegs]Location

// Seq is a fully translated block: the instruction stream plus the
// register map needed to enter and leave it.
type Seq struct {
	Source isa.ID
	Target isa.ID
	Instrs []Instr
	RegMap RegMap
	// Groups is the number of parallel-issue groups the scheduler formed.
	Groups int
}
