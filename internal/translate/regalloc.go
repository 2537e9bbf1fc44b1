package translate

import (
	"fortio.org/safecast"

	"warp/internal/ir"
	"warp/internal/isa"
	"warp/internal/target"
)

// assignment is where each IR virtual register lives for one block.
type assignment struct {
	regMap  target.RegMap
	spilled int
}

// allocate maps the block's virtual registers onto the target register
// file. A register whose natural home is free takes it, so same-convention
// pairs translate to straight copies; the rest fill the allocatable set in
// preference order; overflow goes to spill slots and fails with register
// pressure once those run out.
func allocate(ops []ir.Op, term *ir.Terminator, desc *isa.Desc, pair isa.Pair) (*assignment, error) {
	var used [ir.NumRegs]bool
	uses := make([]ir.RegID, 0, 2)
	for i := range ops {
		op := &ops[i]
		if dst, ok := op.Defs(); ok {
			used[dst] = true
		}
		for _, r := range op.Uses(uses[:0]) {
			used[r] = true
		}
	}
	if term.Kind == ir.TermBranch {
		used[term.Branch.Cond] = true
	}

	asn := &assignment{}
	for v := range asn.regMap {
		asn.regMap[v] = target.LocUnused
	}

	taken := make(map[isa.PhysReg]bool, len(desc.Allocatable))

	// First pass: natural homes.
	for v := 0; v < ir.NumRegs; v++ {
		if !used[v] || v >= len(desc.NaturalHome) {
			continue
		}
		home := desc.NaturalHome[v]
		if home < 0 {
			continue
		}
		phys := isa.PhysReg(home)
		if taken[phys] || !allocatable(desc, phys) {
			continue
		}
		asn.regMap[v] = target.PhysLoc(phys)
		taken[phys] = true
	}

	// Second pass: remaining registers take free physical registers in
	// preference order, then spill slots.
	nextSpill := 0
	for v := 0; v < ir.NumRegs; v++ {
		if !used[v] || asn.regMap[v] != target.LocUnused {
			continue
		}
		phys, ok := firstFree(desc, taken)
		if ok {
			asn.regMap[v] = target.PhysLoc(phys)
			taken[phys] = true
			continue
		}
		if nextSpill >= desc.SpillSlots {
			return nil, &Error{Kind: KindRegisterPressure, Pair: pair}
		}
		slot, err := safecast.Conv[uint8](nextSpill)
		if err != nil {
			return nil, &Error{Kind: KindRegisterPressure, Pair: pair}
		}
		asn.regMap[v] = target.SpillLoc(slot)
		nextSpill++
		asn.spilled++
	}
	return asn, nil
}

func allocatable(desc *isa.Desc, r isa.PhysReg) bool {
	for _, a := range desc.Allocatable {
		if a == r {
			return true
		}
	}
	return false
}

func firstFree(desc *isa.Desc, taken map[isa.PhysReg]bool) (isa.PhysReg, bool) {
	for _, r := range desc.Allocatable {
		if !taken[r] {
			return r, true
		}
	}
	return 0, false
}
