package ir

import (
	"strings"
	"testing"
)

func validBlock() *Block {
	return &Block{
		StartPC: 0x1000,
		Ops: []Op{
			{Kind: OpMovImm, MovImm: MovImmOp{Dst: 1, Imm: 42}},
			{Kind: OpAdd, ALU: ALUOp{Dst: 2, Src1: 1, Src2: 1}},
			{Kind: OpStore, Store: StoreOp{Src: 2, Base: 3, Offset: 8, Size: 4}},
		},
		Term: Terminator{Kind: TermHalt},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validBlock()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_NilBlock(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("Validate(nil) = nil, want error")
	}
}

func TestValidate_MissingTerminator(t *testing.T) {
	b := validBlock()
	b.Term = Terminator{}
	err := Validate(b)
	if err == nil || !strings.Contains(err.Error(), "missing terminator") {
		t.Fatalf("Validate() = %v, want missing terminator", err)
	}
}

func TestValidate_BranchCondOutOfRange(t *testing.T) {
	b := validBlock()
	b.Term = Terminator{Kind: TermBranch, Branch: BranchTerm{Cond: NumRegs, Taken: 0x1000, NotTaken: 0x2000}}
	if err := Validate(b); err == nil {
		t.Fatal("Validate() = nil, want branch condition error")
	}
}

func TestValidate_RegisterOutOfRange(t *testing.T) {
	b := validBlock()
	b.Ops[1].ALU.Src2 = NumRegs + 3
	if err := Validate(b); err == nil {
		t.Fatal("Validate() = nil, want register range error")
	}
}

func TestValidate_BadAccessSize(t *testing.T) {
	b := validBlock()
	b.Ops[2].Store.Size = 3
	err := Validate(b)
	if err == nil || !strings.Contains(err.Error(), "bad access size") {
		t.Fatalf("Validate() = %v, want bad access size", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	b := validBlock()
	b.Term = Terminator{}
	b.Ops[2].Store.Size = 5
	err := Validate(b)
	if err == nil {
		t.Fatal("Validate() = nil, want joined errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "missing terminator") || !strings.Contains(msg, "bad access size") {
		t.Fatalf("Validate() = %q, want both violations reported", msg)
	}
}

func TestOp_DefsAndUses(t *testing.T) {
	op := Op{Kind: OpAdd, ALU: ALUOp{Dst: 4, Src1: 1, Src2: 2}}
	dst, ok := op.Defs()
	if !ok || dst != 4 {
		t.Fatalf("Defs() = %v, %v, want 4, true", dst, ok)
	}
	uses := op.Uses(nil)
	if len(uses) != 2 || uses[0] != 1 || uses[1] != 2 {
		t.Fatalf("Uses() = %v, want [1 2]", uses)
	}

	store := Op{Kind: OpStore, Store: StoreOp{Src: 7, Base: 8, Size: 8}}
	if _, ok := store.Defs(); ok {
		t.Fatal("store should define no register")
	}
	uses = store.Uses(nil)
	if len(uses) != 2 {
		t.Fatalf("store Uses() = %v, want src and base", uses)
	}
}
