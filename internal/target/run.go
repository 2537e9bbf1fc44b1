package target

import (
	"fmt"
	"math/bits"

	"warp/internal/guestmem"
	"warp/internal/interp"
	"warp/internal/ir"
	"warp/internal/isa"
)

const (
	maxPhysRegs  = 32
	maxSpillSlot = 16
)

// Run executes an encoded sequence against the machine. Guest-visible
// register state enters through the sequence's register map and is written
// back on exit, so running a compiled sequence transitions the machine
// exactly as interpreting the source block would.
func Run(code []byte, m *interp.Machine) (interp.ExecResult, error) {
	seq, err := Decode(code)
	if err != nil {
		return interp.ExecResult{}, err
	}
	return RunSeq(seq, m)
}

// RunSeq executes a decoded sequence against the machine.
func RunSeq(seq *Seq, m *interp.Machine) (interp.ExecResult, error) {
	desc, ok := isa.Lookup(seq.Target)
	if !ok {
		return interp.ExecResult{}, &CorruptError{Reason: "unknown target"}
	}

	var regs [maxPhysRegs]uint64
	var slots [maxSpillSlot]uint64

	// Enter: materialize the guest register file into its homes.
	for v := 0; v < ir.NumRegs; v++ {
		loc := seq.RegMap[v]
		switch {
		case loc == LocUnused:
		case loc.IsSpill():
			slots[loc.Slot()] = m.Regs[v]
		default:
			regs[loc.Phys()] = m.Regs[v]
		}
	}

	// Leave: write the guest register file back. Also runs when a guest
	// fault stops the sequence early, so the machine carries the register
	// effects committed before the fault, exactly as interpretation of the
	// same block would leave them.
	leave := func() {
		for v := 0; v < ir.NumRegs; v++ {
			loc := seq.RegMap[v]
			switch {
			case loc == LocUnused:
			case loc.IsSpill():
				m.Regs[v] = slots[loc.Slot()]
			default:
				m.Regs[v] = regs[loc.Phys()]
			}
		}
	}

	res := interp.ExecResult{}
	done := false

loop:
	for i := range seq.Instrs {
		in := &seq.Instrs[i]
		switch in.Op {
		case OpMovImm:
			regs[in.Dst] = in.Imm
		case OpMov:
			regs[in.Dst] = regs[in.Src1]
		case OpAdd:
			regs[in.Dst] = regs[in.Src1] + regs[in.Src2]
		case OpSub:
			regs[in.Dst] = regs[in.Src1] - regs[in.Src2]
		case OpMul:
			regs[in.Dst] = regs[in.Src1] * regs[in.Src2]
		case OpAnd:
			regs[in.Dst] = regs[in.Src1] & regs[in.Src2]
		case OpOr:
			regs[in.Dst] = regs[in.Src1] | regs[in.Src2]
		case OpXor:
			regs[in.Dst] = regs[in.Src1] ^ regs[in.Src2]
		case OpShl:
			regs[in.Dst] = regs[in.Src1] << (regs[in.Src2] & 63)
		case OpShr:
			regs[in.Dst] = regs[in.Src1] >> (regs[in.Src2] & 63)
		case OpLoad:
			addr := regs[in.Src1] + uint64(int64(int32(uint32(in.Imm))))
			v, err := guestmem.LoadValue(m.Mem, desc.ByteOrder, addr, in.Size)
			if err != nil {
				leave()
				return interp.ExecResult{}, err
			}
			if in.Flags&FlagSwap != 0 {
				v = swap(v, in.Size)
			}
			regs[in.Dst] = v
		case OpStore:
			addr := regs[in.Src1] + uint64(int64(int32(uint32(in.Imm))))
			v := regs[in.Src2]
			if in.Flags&FlagSwap != 0 {
				v = swap(v, in.Size)
			}
			if err := guestmem.StoreValue(m.Mem, desc.ByteOrder, addr, in.Size, v); err != nil {
				leave()
				return interp.ExecResult{}, err
			}
		case OpLdSpill:
			regs[in.Dst] = slots[in.Slot]
		case OpStSpill:
			slots[in.Slot] = regs[in.Src1]
		case OpJump:
			res = interp.ExecResult{NextPC: in.Imm}
			done = true
			break loop
		case OpBranch:
			if regs[in.Src1] != 0 {
				res = interp.ExecResult{NextPC: in.Imm}
				done = true
				break loop
			}
		case OpHalt:
			res = interp.ExecResult{Halted: true}
			done = true
			break loop
		default:
			return interp.ExecResult{}, &CorruptError{Reason: fmt.Sprintf("bad opcode %d", in.Op)}
		}
	}
	if !done {
		return interp.ExecResult{}, &CorruptError{Reason: "sequence fell off the end"}
	}

	leave()
	return res, nil
}

// swap reverses the low size bytes of v, preserving source memory order on
// an opposite-endian target.
func swap(v uint64, size uint8) uint64 {
	switch size {
	case 1:
		return v
	case 2:
		return uint64(bits.ReverseBytes16(uint16(v)))
	case 4:
		return uint64(bits.ReverseBytes32(uint32(v)))
	default:
		return bits.ReverseBytes64(v)
	}
}
