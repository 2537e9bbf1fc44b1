package ir

import (
	"errors"
	"fmt"
)

// Validate checks IR block invariants.
// Returns an error if any invariant is violated.
func Validate(b *Block) error {
	if b == nil {
		return errors.New("nil block")
	}

	var errs []error

	if err := validateTerminator(b); err != nil {
		errs = append(errs, err)
	}
	if err := validateRegisters(b); err != nil {
		errs = append(errs, err)
	}
	if err := validateMemOps(b); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateTerminator(b *Block) error {
	if !b.Terminated() {
		return fmt.Errorf("block 0x%x: missing terminator", b.StartPC)
	}
	if b.Term.Kind == TermBranch && !b.Term.Branch.Cond.Valid() {
		return fmt.Errorf("block 0x%x: branch condition register %d out of range", b.StartPC, b.Term.Branch.Cond)
	}
	return nil
}

func validateRegisters(b *Block) error {
	var errs []error
	uses := make([]RegID, 0, 2)
	for i := range b.Ops {
		op := &b.Ops[i]
		if dst, ok := op.Defs(); ok && !dst.Valid() {
			errs = append(errs, fmt.Errorf("block 0x%x: op %d (%s): dst register %d out of range", b.StartPC, i, op.Kind, dst))
		}
		uses = op.Uses(uses[:0])
		for _, r := range uses {
			if !r.Valid() {
				errs = append(errs, fmt.Errorf("block 0x%x: op %d (%s): src register %d out of range", b.StartPC, i, op.Kind, r))
			}
		}
	}
	return errors.Join(errs...)
}

func validateMemOps(b *Block) error {
	var errs []error
	for i := range b.Ops {
		op := &b.Ops[i]
		var size uint8
		switch op.Kind {
		case OpLoad:
			size = op.Load.Size
		case OpStore:
			size = op.Store.Size
		default:
			continue
		}
		switch size {
		case 1, 2, 4, 8:
		default:
			errs = append(errs, fmt.Errorf("block 0x%x: op %d (%s): bad access size %d", b.StartPC, i, op.Kind, size))
		}
	}
	return errors.Join(errs...)
}
