package isa

import "warp/internal/ir"

// Latency returns the estimated cycle latency of an IR op kind on the
// target architecture. The scheduler uses these to order independent ops
// inside an issue group, longest first, to shorten the critical path.
// The numbers are coarse; only the relative order matters.
func Latency(target ID, k ir.OpKind) int {
	switch k {
	case ir.OpLoad:
		if target == X86_64 {
			return 5
		}
		return 4
	case ir.OpStore:
		return 3
	case ir.OpMul:
		if target == RISCV64 {
			return 5
		}
		return 3
	case ir.OpShl, ir.OpShr:
		return 2
	case ir.OpNop:
		return 0
	default:
		return 1
	}
}
