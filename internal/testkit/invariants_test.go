package testkit

import (
	"testing"

	"warp/internal/cache"
	"warp/internal/ir"
	"warp/internal/isa"
)

func TestCheckBlockInvariants_Fixtures(t *testing.T) {
	for _, b := range []*ir.Block{
		ArithBlock(0x1000),
		LoopBlock(0x1000, 0x2000),
		StoreLoadBlock(0x1000),
	} {
		if err := CheckBlockInvariants(b); err != nil {
			t.Fatalf("fixture at 0x%x: %v", b.StartPC, err)
		}
	}
}

func TestCheckBlockInvariants_Rejections(t *testing.T) {
	if err := CheckBlockInvariants(nil); err == nil {
		t.Fatal("nil block must fail")
	}
	headless := ArithBlock(0x1000)
	headless.Term = ir.Terminator{}
	if err := CheckBlockInvariants(headless); err == nil {
		t.Fatal("missing terminator must fail")
	}
}

func TestCheckCacheInvariants(t *testing.T) {
	pair := isa.Pair{Source: isa.AArch64, Target: isa.X86_64}
	c := cache.New(cache.Config{Shards: 1})
	e := c.InsertOrUpdate(cache.Key{PC: 0x1000, Pair: pair}, &cache.Artifact{Tier: cache.TierInterpreted})
	if err := CheckCacheInvariants(c); err != nil {
		t.Fatalf("fresh entry: %v", err)
	}

	// An interpreted artifact claiming a compiled state is a torn install.
	e.SetState(cache.StateJitCompiled)
	if err := CheckCacheInvariants(c); err == nil {
		t.Fatal("state/artifact mismatch must be caught")
	}
	e.SetState(cache.StateJitPending)
	if err := CheckCacheInvariants(c); err != nil {
		t.Fatalf("pending state on an interpreted artifact is legal: %v", err)
	}

	// A compiled artifact must carry a real arena handle.
	c.Promote(e, &cache.Artifact{Tier: cache.TierJitCompiled})
	e.SetState(cache.StateJitCompiled)
	if err := CheckCacheInvariants(c); err == nil {
		t.Fatal("zero-handle compiled artifact must be caught")
	}
}
