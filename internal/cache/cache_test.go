package cache

import (
	"sync"
	"testing"
	"time"

	"warp/internal/arena"
	"warp/internal/isa"
	"warp/internal/profile"
)

var testPair = isa.Pair{Source: isa.AArch64, Target: isa.X86_64}

func key(pc uint64) Key { return Key{PC: pc, Pair: testPair} }

func interpreted() *Artifact { return &Artifact{Tier: TierInterpreted} }

func jitArtifact() *Artifact {
	return &Artifact{Tier: TierJitCompiled, Code: arena.Handle{Gen: 1, Size: 8}, SizeBytes: 8}
}

func TestLookup_MissThenHit(t *testing.T) {
	c := New(Config{})
	if _, ok := c.Lookup(key(0x1000)); ok {
		t.Fatal("lookup on empty cache should miss")
	}

	e := c.InsertOrUpdate(key(0x1000), interpreted())
	if e == nil {
		t.Fatal("InsertOrUpdate returned nil")
	}
	got, ok := c.Lookup(key(0x1000))
	if !ok || got != e {
		t.Fatal("lookup should return the same entry the insert did")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Entries != 1 {
		t.Fatalf("stats = %+v, want 1 hit, 1 miss, 1 entry", st)
	}
	if st.HitRate != 0.5 {
		t.Fatalf("HitRate = %v, want 0.5", st.HitRate)
	}
}

func TestInsertOrUpdate_StableEntryHandle(t *testing.T) {
	c := New(Config{})
	e1 := c.InsertOrUpdate(key(0x2000), interpreted())
	e2 := c.InsertOrUpdate(key(0x2000), interpreted())
	if e1 != e2 {
		t.Fatal("repeated insert must keep the same *Entry")
	}
}

func TestCrossPairKeysAreIndependent(t *testing.T) {
	c := New(Config{})
	other := isa.Pair{Source: isa.AArch64, Target: isa.RISCV64}
	c.InsertOrUpdate(Key{PC: 0x3000, Pair: testPair}, interpreted())
	if _, ok := c.Lookup(Key{PC: 0x3000, Pair: other}); ok {
		t.Fatal("same PC under a different pair must miss")
	}
}

func TestPromote_MovesEntryHot(t *testing.T) {
	c := New(Config{})
	e := c.InsertOrUpdate(key(0x4000), interpreted())

	c.Promote(e, jitArtifact())
	if got := e.Artifact().Tier; got != TierJitCompiled {
		t.Fatalf("tier = %v, want jit", got)
	}
	if st := c.Stats(); st.HotEntries != 1 {
		t.Fatalf("HotEntries = %d, want 1", st.HotEntries)
	}
}

func TestPromote_EvictedEntryIsMoot(t *testing.T) {
	c := New(Config{})
	e := c.InsertOrUpdate(key(0x5000), interpreted())
	c.Remove(key(0x5000))

	c.Promote(e, jitArtifact())
	if st := c.Stats(); st.Entries != 0 || st.HotEntries != 0 {
		t.Fatalf("stats = %+v, want empty cache after promoting an evicted entry", st)
	}
}

func TestEviction_LRUPicksStalest(t *testing.T) {
	var evicted []Key
	c := New(Config{
		Shards:       1,
		ColdCapacity: 2,
		HotCapacity:  2,
		Policy:       PolicyLRU,
		OnEvict:      func(e *Entry) { evicted = append(evicted, e.Key) },
	})

	c.InsertOrUpdate(key(1), interpreted())
	time.Sleep(time.Millisecond)
	c.InsertOrUpdate(key(2), interpreted())
	time.Sleep(time.Millisecond)
	c.Lookup(key(1)) // refresh 1; 2 is now the stalest
	time.Sleep(time.Millisecond)
	c.InsertOrUpdate(key(3), interpreted())

	if len(evicted) != 1 || evicted[0] != key(2) {
		t.Fatalf("evicted = %v, want exactly [key 2]", evicted)
	}
	if _, ok := c.Lookup(key(1)); !ok {
		t.Fatal("refreshed entry should survive")
	}
	if st := c.Stats(); st.Evictions != 1 {
		t.Fatalf("Evictions = %d, want 1", st.Evictions)
	}
}

func TestEviction_LFUPicksColdest(t *testing.T) {
	var evicted []Key
	c := New(Config{
		Shards:       1,
		ColdCapacity: 2,
		HotCapacity:  2,
		Policy:       PolicyLFU,
		OnEvict:      func(e *Entry) { evicted = append(evicted, e.Key) },
	})
	p := profile.New(profile.DefaultConfig())

	c.InsertOrUpdate(key(1), interpreted())
	e2 := c.InsertOrUpdate(key(2), interpreted())
	for i := 0; i < 5; i++ {
		p.Record(&e2.Hot)
	}
	c.InsertOrUpdate(key(3), interpreted())

	if len(evicted) != 1 || evicted[0] != key(1) {
		t.Fatalf("evicted = %v, want the never-executed key 1", evicted)
	}
}

func TestEviction_ColdPressureSparesHot(t *testing.T) {
	c := New(Config{Shards: 1, ColdCapacity: 1, HotCapacity: 4})
	e := c.InsertOrUpdate(key(0x100), interpreted())
	c.Promote(e, jitArtifact())

	c.InsertOrUpdate(key(0x200), interpreted())
	c.InsertOrUpdate(key(0x300), interpreted())

	if _, ok := c.Lookup(key(0x100)); !ok {
		t.Fatal("hot entry must not be evicted by cold-partition pressure")
	}
	st := c.Stats()
	if st.HotEntries != 1 || st.Entries != 2 {
		t.Fatalf("stats = %+v, want 1 hot + 1 cold resident", st)
	}
}

func TestEviction_ResetsHotspotCounter(t *testing.T) {
	var reset bool
	c := New(Config{
		Shards: 1,
		OnEvict: func(e *Entry) {
			reset = e.Hot.Raw() == 0
		},
	})
	p := profile.New(profile.DefaultConfig())
	e := c.InsertOrUpdate(key(0x600), interpreted())
	for i := 0; i < 3; i++ {
		p.Record(&e.Hot)
	}

	if !c.Remove(key(0x600)) {
		t.Fatal("Remove should report the key present")
	}
	if !reset {
		t.Fatal("eviction must reset the hotspot counter before the callback")
	}
	if c.Remove(key(0x600)) {
		t.Fatal("second Remove should report absence")
	}
}

func TestMaintain_DecaysRates(t *testing.T) {
	c := New(Config{Shards: 1, DecayFactor: 0.5})
	p := profile.New(profile.DefaultConfig())
	e := c.InsertOrUpdate(key(0x700), interpreted())
	for i := 0; i < 50; i++ {
		p.Record(&e.Hot)
	}
	before := e.Hot.Rate()
	if before <= 0 {
		t.Fatal("rate should be positive after a burst")
	}

	c.Maintain()
	if got := e.Hot.Rate(); got != before*0.5 {
		t.Fatalf("rate after maintenance = %v, want %v", got, before*0.5)
	}
}

func TestTryBeginCompile_SingleWinner(t *testing.T) {
	c := New(Config{})
	e := c.InsertOrUpdate(key(0x800), interpreted())

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.TryBeginCompile() {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	n := 0
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("%d compile-slot winners, want exactly 1", n)
	}
	if !e.Compiling() {
		t.Fatal("slot should be held")
	}
	e.EndCompile()
	if !e.TryBeginCompile() {
		t.Fatal("slot should be reclaimable after EndCompile")
	}
}

func TestState_Transitions(t *testing.T) {
	c := New(Config{})
	e := c.InsertOrUpdate(key(0x900), interpreted())
	if e.State() != StateInterpreting {
		t.Fatalf("initial state = %v, want interpreting", e.State())
	}
	if !e.CasState(StateInterpreting, StateJitPending) {
		t.Fatal("CAS from the current state should succeed")
	}
	if e.CasState(StateInterpreting, StateJitCompiled) {
		t.Fatal("CAS from a stale state should fail")
	}
	e.SetState(StateUnsupportedFallback)
	if e.State() != StateUnsupportedFallback {
		t.Fatalf("state = %v, want unsupported-fallback", e.State())
	}
}

func TestRange_VisitsEverything(t *testing.T) {
	c := New(Config{})
	for pc := uint64(0); pc < 10; pc++ {
		c.InsertOrUpdate(key(pc), interpreted())
	}
	seen := make(map[uint64]bool)
	c.Range(func(e *Entry) { seen[e.Key.PC] = true })
	if len(seen) != 10 {
		t.Fatalf("Range visited %d entries, want 10", len(seen))
	}
}
