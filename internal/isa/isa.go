// Package isa describes the instruction-set architectures the execution
// core translates between: register files, endianness, alignment rules and
// the latency estimates the instruction scheduler works from.
package isa

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ID identifies one supported architecture.
type ID uint8

const (
	Invalid ID = iota
	X86_64
	AArch64
	RISCV64
	PPC64
)

// String returns the canonical lower-case architecture name.
func (id ID) String() string {
	switch id {
	case X86_64:
		return "x86_64"
	case AArch64:
		return "aarch64"
	case RISCV64:
		return "riscv64"
	case PPC64:
		return "ppc64"
	default:
		return "invalid"
	}
}

// Parse converts an architecture name to an ID.
func Parse(s string) (ID, error) {
	switch strings.ToLower(s) {
	case "x86_64", "amd64":
		return X86_64, nil
	case "aarch64", "arm64":
		return AArch64, nil
	case "riscv64":
		return RISCV64, nil
	case "ppc64":
		return PPC64, nil
	default:
		return Invalid, fmt.Errorf("unknown architecture %q", s)
	}
}

// Pair names a translation direction. Cross-ISA translations of the same
// guest PC are independent cache entries keyed by this pair.
type Pair struct {
	Source ID
	Target ID
}

// String returns "source->target".
func (p Pair) String() string {
	return p.Source.String() + "->" + p.Target.String()
}

// PhysReg indexes a target architecture's physical register file.
type PhysReg uint8

// Desc describes one architecture as seen by the translator.
type Desc struct {
	ID ID
	// Allocatable lists the physical registers available for mapping IR
	// virtual registers, in preference order. Registers reserved for the
	// runtime (stack pointer, state pointer, scratch) are excluded.
	Allocatable []PhysReg
	// Scratch are the two registers spill loads and stores go through.
	// Always outside Allocatable.
	Scratch [2]PhysReg
	// NaturalHome maps an IR virtual register index to the physical
	// register it lands in when the source and target calling conventions
	// line up. -1 means no natural home.
	NaturalHome []int8
	// ByteOrder is the memory byte order of the architecture.
	ByteOrder binary.ByteOrder
	// CodeAlign is the required alignment of an instruction stream start.
	CodeAlign int
	// SpillSlots is how many spill slots the runtime frame reserves.
	// Allocation fails with register pressure once these run out.
	SpillSlots int
	// IssueWidth is how many independent instructions the architecture
	// can issue per cycle; the scheduler groups up to this many.
	IssueWidth int
}

// Lookup returns the descriptor for an architecture.
func Lookup(id ID) (*Desc, bool) {
	d, ok := descs[id]
	return d, ok
}

// Supported reports whether both sides of a pair are known architectures.
func Supported(p Pair) bool {
	_, src := descs[p.Source]
	_, dst := descs[p.Target]
	return src && dst
}

var descs = map[ID]*Desc{
	X86_64: {
		ID: X86_64,
		// Only RBX and R8..R14 hold guest registers. RSP/RBP frame,
		// RDI machine state, RSI guest memory base, RCX shift count,
		// R15 dispatch, RAX/RDX spill scratch (also mul/div operands).
		Allocatable: []PhysReg{3, 8, 9, 10, 11, 12, 13, 14},
		Scratch:     [2]PhysReg{0, 2},
		NaturalHome: []int8{3, 8, 9, 10, 11, 12, 13, 14, -1, -1, -1, -1, -1, -1, -1, -1},
		ByteOrder:   binary.LittleEndian,
		CodeAlign:   1,
		SpillSlots:  4,
		IssueWidth:  4,
	},
	AArch64: {
		ID:          AArch64,
		Allocatable: allocRange(0, 26), // x0..x25; x26,x27 scratch, x28 state, x29 fp, x30 lr
		Scratch:     [2]PhysReg{26, 27},
		NaturalHome: homeIdentity(),
		ByteOrder:   binary.LittleEndian,
		CodeAlign:   4,
		SpillSlots:  16,
		IssueWidth:  3,
	},
	RISCV64: {
		ID:          RISCV64,
		Allocatable: allocRange(5, 30), // x5..x29; x0 zero, x1 ra, x2 sp, x3 gp, x4 tp
		Scratch:     [2]PhysReg{30, 31},
		NaturalHome: homeOffset(5),
		ByteOrder:   binary.LittleEndian,
		CodeAlign:   4,
		SpillSlots:  16,
		IssueWidth:  2,
	},
	PPC64: {
		ID:          PPC64,
		Allocatable: allocRange(3, 27), // r3..r26; r0..r2 ABI, r29..r31 runtime
		Scratch:     [2]PhysReg{27, 28},
		NaturalHome: homeOffset(3),
		ByteOrder:   binary.BigEndian,
		CodeAlign:   4,
		SpillSlots:  16,
		IssueWidth:  2,
	},
}

func allocRange(lo, hi PhysReg) []PhysReg {
	regs := make([]PhysReg, 0, hi-lo)
	for r := lo; r < hi; r++ {
		regs = append(regs, r)
	}
	return regs
}

func homeIdentity() []int8 {
	home := make([]int8, 16)
	for i := range home {
		home[i] = int8(i)
	}
	return home
}

func homeOffset(base int8) []int8 {
	home := make([]int8, 16)
	for i := range home {
		home[i] = base + int8(i)
	}
	return home
}
