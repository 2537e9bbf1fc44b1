package ir

import (
	"fmt"
	"strings"
)

// Print renders the block in a readable assembly-like form, for debugging
// and golden tests.
func Print(b *Block) string {
	if b == nil {
		return "<nil block>\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "block 0x%x:\n", b.StartPC)
	for i := range b.Ops {
		sb.WriteString("  ")
		sb.WriteString(formatOp(&b.Ops[i]))
		sb.WriteByte('\n')
	}
	sb.WriteString("  ")
	sb.WriteString(formatTerm(&b.Term))
	sb.WriteByte('\n')
	return sb.String()
}

func formatOp(o *Op) string {
	switch o.Kind {
	case OpMovImm:
		return fmt.Sprintf("movimm r%d, %d", o.MovImm.Dst, o.MovImm.Imm)
	case OpMov:
		return fmt.Sprintf("mov r%d, r%d", o.Mov.Dst, o.Mov.Src)
	case OpLoad:
		return fmt.Sprintf("load%d r%d, [r%d%+d]", o.Load.Size*8, o.Load.Dst, o.Load.Base, o.Load.Offset)
	case OpStore:
		return fmt.Sprintf("store%d [r%d%+d], r%d", o.Store.Size*8, o.Store.Base, o.Store.Offset, o.Store.Src)
	case OpNop:
		return "nop"
	default:
		if o.Kind.IsALU() {
			return fmt.Sprintf("%s r%d, r%d, r%d", o.Kind, o.ALU.Dst, o.ALU.Src1, o.ALU.Src2)
		}
		return fmt.Sprintf("<bad op kind %d>", o.Kind)
	}
}

func formatTerm(t *Terminator) string {
	switch t.Kind {
	case TermJump:
		return fmt.Sprintf("jump 0x%x", t.Jump.Target)
	case TermBranch:
		return fmt.Sprintf("branch r%d, 0x%x, 0x%x", t.Branch.Cond, t.Branch.Taken, t.Branch.NotTaken)
	case TermHalt:
		return "halt"
	default:
		return fmt.Sprintf("<bad terminator kind %d>", t.Kind)
	}
}
