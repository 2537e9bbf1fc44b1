package ir

// NumRegs is the size of the IR virtual register file. Every architecture
// front end lowers into this fixed file; the translator maps it onto the
// target's physical registers.
const NumRegs = 16

// RegID indexes the IR virtual register file.
type RegID uint8

// Valid reports whether the register index is within the IR register file.
func (r RegID) Valid() bool { return r < NumRegs }

// Block is one decoded guest basic block in architecture-neutral form.
// Blocks are immutable once built: a block is regenerated from guest memory
// on every cache miss and never cached itself.
type Block struct {
	StartPC uint64
	Ops     []Op
	Term    Terminator
}

// Terminated reports whether the block carries a terminator.
func (b *Block) Terminated() bool {
	if b == nil {
		return false
	}
	return b.Term.Kind != TermNone
}
