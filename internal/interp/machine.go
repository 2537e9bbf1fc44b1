// Package interp executes IR blocks directly. It is the always-available
// fallback tier and the semantic reference the compiled tiers are tested
// against.
package interp

import (
	"encoding/binary"

	"warp/internal/guestmem"
	"warp/internal/ir"
)

// Machine is the guest-visible execution state a block runs against: the
// IR register file plus the soft-MMU capability.
type Machine struct {
	Regs  [ir.NumRegs]uint64
	Mem   guestmem.Memory
	Order binary.ByteOrder
}

// NewMachine creates a machine over the given guest memory.
func NewMachine(mem guestmem.Memory, order binary.ByteOrder) *Machine {
	return &Machine{Mem: mem, Order: order}
}

// ExecResult is the outcome of running one block.
type ExecResult struct {
	NextPC uint64
	Halted bool
}
