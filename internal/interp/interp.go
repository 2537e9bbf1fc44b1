package interp

import (
	"fmt"

	"warp/internal/guestmem"
	"warp/internal/ir"
)

// Run executes the block against the machine and returns the control
// transfer its terminator produced. A guestmem.Fault is returned as-is so
// the engine can surface it to the guest.
func Run(b *ir.Block, m *Machine) (ExecResult, error) {
	for i := range b.Ops {
		if err := step(&b.Ops[i], m); err != nil {
			return ExecResult{}, err
		}
	}
	return terminate(&b.Term, m)
}

func step(op *ir.Op, m *Machine) error {
	switch op.Kind {
	case ir.OpMovImm:
		m.Regs[op.MovImm.Dst] = op.MovImm.Imm
	case ir.OpMov:
		m.Regs[op.Mov.Dst] = m.Regs[op.Mov.Src]
	case ir.OpAdd:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] + m.Regs[op.ALU.Src2]
	case ir.OpSub:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] - m.Regs[op.ALU.Src2]
	case ir.OpMul:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] * m.Regs[op.ALU.Src2]
	case ir.OpAnd:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] & m.Regs[op.ALU.Src2]
	case ir.OpOr:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] | m.Regs[op.ALU.Src2]
	case ir.OpXor:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] ^ m.Regs[op.ALU.Src2]
	case ir.OpShl:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] << (m.Regs[op.ALU.Src2] & 63)
	case ir.OpShr:
		m.Regs[op.ALU.Dst] = m.Regs[op.ALU.Src1] >> (m.Regs[op.ALU.Src2] & 63)
	case ir.OpLoad:
		addr := m.Regs[op.Load.Base] + uint64(int64(op.Load.Offset))
		v, err := guestmem.LoadValue(m.Mem, m.Order, addr, op.Load.Size)
		if err != nil {
			return err
		}
		m.Regs[op.Load.Dst] = v
	case ir.OpStore:
		addr := m.Regs[op.Store.Base] + uint64(int64(op.Store.Offset))
		if err := guestmem.StoreValue(m.Mem, m.Order, addr, op.Store.Size, m.Regs[op.Store.Src]); err != nil {
			return err
		}
	case ir.OpNop:
	default:
		return fmt.Errorf("interp: bad op kind %d", op.Kind)
	}
	return nil
}

func terminate(t *ir.Terminator, m *Machine) (ExecResult, error) {
	switch t.Kind {
	case ir.TermJump:
		return ExecResult{NextPC: t.Jump.Target}, nil
	case ir.TermBranch:
		if m.Regs[t.Branch.Cond] != 0 {
			return ExecResult{NextPC: t.Branch.Taken}, nil
		}
		return ExecResult{NextPC: t.Branch.NotTaken}, nil
	case ir.TermHalt:
		return ExecResult{Halted: true}, nil
	default:
		return ExecResult{}, fmt.Errorf("interp: bad terminator kind %d", t.Kind)
	}
}
