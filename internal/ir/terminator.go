package ir

// TermKind enumerates block terminator kinds.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermJump
	TermBranch
	TermHalt
)

// String returns the mnemonic for the terminator kind.
func (k TermKind) String() string {
	switch k {
	case TermNone:
		return "none"
	case TermJump:
		return "jump"
	case TermBranch:
		return "branch"
	case TermHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// Terminator ends a block. Every well-formed block has exactly one.
type Terminator struct {
	Kind TermKind

	Jump   JumpTerm
	Branch BranchTerm
	Halt   struct{}
}

// JumpTerm transfers control to a fixed guest PC.
type JumpTerm struct {
	Target uint64
}

// BranchTerm transfers control to Taken when Cond is non-zero,
// otherwise to NotTaken.
type BranchTerm struct {
	Cond     RegID
	Taken    uint64
	NotTaken uint64
}
