// Package arena owns the executable host memory backing compiled
// artifacts. Memory is carved from generation regions; a cache entry or an
// in-flight execution holds a counted reference into a generation, and a
// generation is only unmapped by the collector once its count reaches
// zero. Handles are generation index + offset, never raw pointers, so a
// stale handle is detectable instead of dangling.
package arena

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Handle is a weak reference to a span of arena memory.
type Handle struct {
	Gen  uint32
	Off  uint32
	Size uint32
}

// Zero reports whether the handle is the zero handle.
func (h Handle) Zero() bool { return h == Handle{} }

func (h Handle) String() string {
	return fmt.Sprintf("arena[g%d+0x%x:%d]", h.Gen, h.Off, h.Size)
}

type generation struct {
	id     uint32
	region region
	used   uint32
	sealed bool
	// refs counts artifacts plus in-flight executions pointing into this
	// generation. The collector frees the region only at zero.
	refs atomic.Int64
}

// Stats is a point-in-time view of arena occupancy.
type Stats struct {
	Generations int
	LiveBytes   uint64
	UsedBytes   uint64
	Unmapped    uint64
}

// GenerationInfo describes one live generation for diagnostics.
type GenerationInfo struct {
	ID     uint32
	Used   uint32
	Sealed bool
	Refs   int64
}

// Arena is an append-style allocator of executable memory.
type Arena struct {
	mu      sync.Mutex
	genSize uint32
	nextID  uint32
	current *generation
	gens    map[uint32]*generation

	unmappedBytes atomic.Uint64
}

// ErrExhausted is returned when the host refuses to map more executable
// memory. This is the one genuinely fatal resource failure in the core.
var ErrExhausted = fmt.Errorf("arena: executable memory exhausted")

// New creates an arena that maps generations of genSize bytes.
func New(genSize uint32) *Arena {
	if genSize == 0 {
		genSize = 1 << 20
	}
	return &Arena{
		genSize: genSize,
		gens:    make(map[uint32]*generation, 8),
	}
}

// Alloc reserves size bytes aligned to align, copies code into them and
// returns a handle carrying one artifact reference. Sizes larger than one
// generation fail with ErrExhausted.
func (a *Arena) Alloc(code []byte, align int) (Handle, error) {
	size := uint32(len(code))
	if size == 0 || size > a.genSize {
		return Handle{}, ErrExhausted
	}
	if align <= 0 {
		align = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	g := a.current
	off := alignUp(gUsed(g), uint32(align))
	if g == nil || off+size > a.genSize {
		ng, err := a.newGeneration()
		if err != nil {
			return Handle{}, err
		}
		if g != nil {
			g.sealed = true
		}
		a.current = ng
		g = ng
		off = 0
	}

	copy(g.region.bytes()[off:off+size], code)
	g.used = off + size
	g.refs.Add(1)
	return Handle{Gen: g.id, Off: off, Size: size}, nil
}

func gUsed(g *generation) uint32 {
	if g == nil {
		return 0
	}
	return g.used
}

func (a *Arena) newGeneration() (*generation, error) {
	r, err := allocRegion(int(a.genSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExhausted, err)
	}
	a.nextID++
	g := &generation{id: a.nextID, region: r}
	a.gens[g.id] = g
	return g, nil
}

// Bytes resolves a handle to its backing code. Returns false for a stale
// handle whose generation has been unmapped. The bounds check and the
// slice both happen under the lock; Alloc mutates used concurrently.
func (a *Arena) Bytes(h Handle) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.gens[h.Gen]
	if !ok || h.Off+h.Size > g.used {
		return nil, false
	}
	return g.region.bytes()[h.Off : h.Off+h.Size], true
}

// Pin takes an in-flight-execution reference on the handle's generation.
// Returns false if the generation is already gone; the caller must fall
// back rather than execute.
func (a *Arena) Pin(h Handle) bool {
	a.mu.Lock()
	g, ok := a.gens[h.Gen]
	a.mu.Unlock()
	if !ok {
		return false
	}
	g.refs.Add(1)
	return true
}

// Unpin drops an execution reference taken by Pin.
func (a *Arena) Unpin(h Handle) {
	a.mu.Lock()
	g, ok := a.gens[h.Gen]
	a.mu.Unlock()
	if ok {
		g.refs.Add(-1)
	}
}

// Release drops the artifact reference of an evicted or superseded
// handle. The memory stays mapped until the collector proves the
// generation unreferenced.
func (a *Arena) Release(h Handle) {
	a.mu.Lock()
	g, ok := a.gens[h.Gen]
	a.mu.Unlock()
	if ok {
		g.refs.Add(-1)
	}
}

// SealCurrent closes the append generation so the collector can consider
// it. Called before AOT image export and by tests.
func (a *Arena) SealCurrent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.sealed = true
		a.current = nil
	}
}

// Sweep unmaps sealed generations that are not in the marked set and
// carry zero references, calling budget before each candidate and
// stopping once it reports the quota spent. A generation with live
// references cannot be proven unreferenced and is skipped this cycle, not
// freed: a thread may still be executing inside it. Returns freed bytes,
// the number of generations unmapped and the number skipped.
func (a *Arena) Sweep(marked map[uint32]struct{}, budget func() bool) (freed uint64, swept, skipped int) {
	a.mu.Lock()
	candidates := make([]*generation, 0, len(a.gens))
	for _, g := range a.gens {
		if g.sealed && g != a.current {
			candidates = append(candidates, g)
		}
	}
	a.mu.Unlock()

	for _, g := range candidates {
		if budget != nil && !budget() {
			skipped += len(candidates) - swept - skipped
			break
		}
		if _, live := marked[g.id]; live || g.refs.Load() != 0 {
			skipped++
			continue
		}
		a.mu.Lock()
		// Re-check under the lock; a compile worker may have allocated
		// into or pinned the generation meanwhile.
		if g.refs.Load() != 0 || a.current == g {
			a.mu.Unlock()
			skipped++
			continue
		}
		delete(a.gens, g.id)
		a.mu.Unlock()

		n := uint64(g.used)
		g.region.release()
		a.unmappedBytes.Add(n)
		freed += n
		swept++
	}
	return freed, swept, skipped
}

// Stats returns occupancy counters.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{
		Generations: len(a.gens),
		Unmapped:    a.unmappedBytes.Load(),
	}
	for _, g := range a.gens {
		s.LiveBytes += uint64(a.genSize)
		s.UsedBytes += uint64(g.used)
	}
	return s
}

// Generations lists live generations for diagnostics, in no particular
// order.
func (a *Arena) Generations() []GenerationInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]GenerationInfo, 0, len(a.gens))
	for _, g := range a.gens {
		out = append(out, GenerationInfo{ID: g.id, Used: g.used, Sealed: g.sealed, Refs: g.refs.Load()})
	}
	return out
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
