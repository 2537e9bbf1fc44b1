package isa

import (
	"encoding/binary"
	"testing"

	"warp/internal/ir"
)

func TestParse_RoundTrip(t *testing.T) {
	for _, id := range []ID{X86_64, AArch64, RISCV64, PPC64} {
		got, err := Parse(id.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", id.String(), err)
		}
		if got != id {
			t.Errorf("Parse(%q) = %v, want %v", id.String(), got, id)
		}
	}
}

func TestParse_Aliases(t *testing.T) {
	cases := map[string]ID{
		"amd64": X86_64,
		"arm64": AArch64,
		"AMD64": X86_64,
	}
	for s, want := range cases {
		got, err := Parse(s)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %v, %v; want %v", s, got, err, want)
		}
	}
	if _, err := Parse("vax"); err == nil {
		t.Error("Parse(vax) should fail")
	}
}

func TestLookup_AllSupported(t *testing.T) {
	for _, id := range []ID{X86_64, AArch64, RISCV64, PPC64} {
		d, ok := Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%v) missing", id)
		}
		if d.ID != id {
			t.Errorf("descriptor ID = %v, want %v", d.ID, id)
		}
		if d.CodeAlign < 1 || d.IssueWidth < 1 || d.SpillSlots < 1 {
			t.Errorf("%v: degenerate descriptor %+v", id, d)
		}
		if len(d.NaturalHome) != ir.NumRegs {
			t.Errorf("%v: NaturalHome has %d entries, want %d", id, len(d.NaturalHome), ir.NumRegs)
		}
	}
	if _, ok := Lookup(Invalid); ok {
		t.Error("Lookup(Invalid) should fail")
	}
}

func TestDesc_ScratchOutsideAllocatable(t *testing.T) {
	for _, id := range []ID{X86_64, AArch64, RISCV64, PPC64} {
		d, _ := Lookup(id)
		alloc := make(map[PhysReg]bool, len(d.Allocatable))
		for _, r := range d.Allocatable {
			if alloc[r] {
				t.Errorf("%v: duplicate allocatable register %d", id, r)
			}
			alloc[r] = true
		}
		for _, s := range d.Scratch {
			if alloc[s] {
				t.Errorf("%v: scratch register %d is allocatable", id, s)
			}
		}
	}
}

func TestDesc_NaturalHomesAreAllocatable(t *testing.T) {
	for _, id := range []ID{X86_64, AArch64, RISCV64, PPC64} {
		d, _ := Lookup(id)
		alloc := make(map[PhysReg]bool, len(d.Allocatable))
		for _, r := range d.Allocatable {
			alloc[r] = true
		}
		for v, h := range d.NaturalHome {
			if h < 0 {
				continue
			}
			if !alloc[PhysReg(h)] {
				t.Errorf("%v: vreg %d home %d not allocatable", id, v, h)
			}
		}
	}
}

func TestDesc_ByteOrder(t *testing.T) {
	for id, want := range map[ID]binary.ByteOrder{
		X86_64:  binary.LittleEndian,
		AArch64: binary.LittleEndian,
		RISCV64: binary.LittleEndian,
		PPC64:   binary.BigEndian,
	} {
		d, _ := Lookup(id)
		if d.ByteOrder != want {
			t.Errorf("%v: byte order = %v, want %v", id, d.ByteOrder, want)
		}
	}
}

func TestSupported(t *testing.T) {
	if !Supported(Pair{Source: AArch64, Target: X86_64}) {
		t.Error("aarch64->x86_64 should be supported")
	}
	if Supported(Pair{Source: Invalid, Target: X86_64}) {
		t.Error("invalid source should not be supported")
	}
}

func TestLatency_Sane(t *testing.T) {
	for _, id := range []ID{X86_64, AArch64, RISCV64, PPC64} {
		if l := Latency(id, ir.OpLoad); l <= Latency(id, ir.OpAdd) {
			t.Errorf("%v: load latency %d should exceed add latency", id, l)
		}
		if Latency(id, ir.OpNop) != 0 {
			t.Errorf("%v: nop should have zero latency", id)
		}
	}
}
