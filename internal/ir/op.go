package ir

// OpKind enumerates operation kinds in the IR.
type OpKind uint8

const (
	// OpMovImm loads an immediate into a register.
	OpMovImm OpKind = iota
	// OpMov copies one register to another.
	OpMov
	// OpAdd is integer addition.
	OpAdd
	// OpSub is integer subtraction.
	OpSub
	// OpMul is integer multiplication.
	OpMul
	// OpAnd is bitwise and.
	OpAnd
	// OpOr is bitwise or.
	OpOr
	// OpXor is bitwise xor.
	OpXor
	// OpShl is a logical left shift.
	OpShl
	// OpShr is a logical right shift.
	OpShr
	// OpLoad reads guest memory at base+offset.
	OpLoad
	// OpStore writes guest memory at base+offset.
	OpStore
	// OpNop does nothing.
	OpNop
)

// String returns the mnemonic for the op kind.
func (k OpKind) String() string {
	switch k {
	case OpMovImm:
		return "movimm"
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
		return "load"
	case OpStore:
		return "store"
	case OpNop:
		return "nop"
	default:
		return "unknown"
	}
}

// IsALU reports whether the kind is a two-source register arithmetic op.
func (k OpKind) IsALU() bool {
	switch k {
	case OpAdd, OpSub, OpMul, OpAnd, OpOr, OpXor, OpShl, OpShr:
		return true
	default:
		return false
	}
}

// Op is one IR operation.
type Op struct {
	Kind OpKind

	MovImm MovImmOp
	Mov    MovOp
	ALU    ALUOp
	Load   LoadOp
	Store  StoreOp
}

// MovImmOp loads a 64-bit immediate.
type MovImmOp struct {
	Dst RegID
	Imm uint64
}

// MovOp copies Src into Dst.
type MovOp struct {
	Dst RegID
	Src RegID
}

// ALUOp is a two-source arithmetic or logic operation.
type ALUOp struct {
	Dst  RegID
	Src1 RegID
	Src2 RegID
}

// LoadOp reads Size bytes of guest memory at Base+Offset into Dst.
type LoadOp struct {
	Dst    RegID
	Base   RegID
	Offset int32
	Size   uint8 // 1, 2, 4 or 8
}

// StoreOp writes the low Size bytes of Src to guest memory at Base+Offset.
type StoreOp struct {
	Src    RegID
	Base   RegID
	Offset int32
	Size   uint8
}

// Defs returns the register the op defines and whether it defines one.
func (o *Op) Defs() (RegID, bool) {
	switch o.Kind {
	case OpMovImm:
		return o.MovImm.Dst, true
	case OpMov:
		return o.Mov.Dst, true
	case OpLoad:
		return o.Load.Dst, true
	default:
		if o.Kind.IsALU() {
			return o.ALU.Dst, true
		}
		return 0, false
	}
}

// Uses appends the registers the op reads to dst and returns it.
func (o *Op) Uses(dst []RegID) []RegID {
	switch o.Kind {
	case OpMov:
		return append(dst, o.Mov.Src)
	case OpLoad:
		return append(dst, o.Load.Base)
	case OpStore:
		return append(dst, o.Store.Src, o.Store.Base)
	default:
		if o.Kind.IsALU() {
			return append(dst, o.ALU.Src1, o.ALU.Src2)
		}
		return dst
	}
}

// Touches reports whether the op accesses guest memory.
func (o *Op) Touches() bool {
	return o.Kind == OpLoad || o.Kind == OpStore
}
