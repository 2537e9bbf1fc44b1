package engine

import (
	"fmt"

	"warp/internal/aotimage"
	"warp/internal/cache"
	"warp/internal/isa"
	"warp/internal/target"
	"warp/internal/trace"
)

// ExportImage snapshots every AOT-tier artifact into an image. Entries
// still on lower tiers are skipped; a later export after more warmup
// captures more.
func (e *Engine) ExportImage() *aotimage.Image {
	img := aotimage.New(e.pair)
	e.cache.Range(func(entry *cache.Entry) {
		art := entry.Artifact()
		if art == nil || art.Tier != cache.TierAotCompiled {
			return
		}
		if !e.arena.Pin(art.Code) {
			return
		}
		if code, ok := e.arena.Bytes(art.Code); ok {
			img.Add(entry.Key.PC, code)
		}
		e.arena.Unpin(art.Code)
	})
	trace.Point(e.tr, trace.ScopeEngine, "export-image", "entries=%d blobs=%d", img.Len(), len(img.Blobs))
	return img
}

// LoadImage installs every image entry at the AOT tier, skipping keys
// already resident on a compiled tier. Each blob is decoded once up
// front; a corrupt or wrong-pair blob rejects the whole image rather
// than installing unverifiable code.
func (e *Engine) LoadImage(img *aotimage.Image) (int, error) {
	if got := img.Pair(); got != e.pair {
		return 0, fmt.Errorf("engine: image pair %s, engine runs %s", got, e.pair)
	}
	for i, code := range img.Blobs {
		seq, err := target.Decode(code)
		if err != nil {
			return 0, fmt.Errorf("engine: image blob %d: %w", i, err)
		}
		if pair := (isa.Pair{Source: seq.Source, Target: seq.Target}); pair != e.pair {
			return 0, fmt.Errorf("engine: image blob %d encoded for %s", i, pair)
		}
	}

	desc, _ := isa.Lookup(e.pair.Target)
	installed := 0
	for pc := range img.Entries {
		code, _ := img.Code(pc)
		key := cache.Key{PC: pc, Pair: e.pair}
		entry, ok := e.cache.Lookup(key)
		if !ok {
			entry = e.cache.InsertOrUpdate(key, &cache.Artifact{Tier: cache.TierInterpreted})
		}

		// The compile slot serializes this install against the worker
		// pipeline: a job in flight holds the slot until its result is
		// installed, and the tier re-check below runs only once no
		// compiled artifact can land concurrently.
		if !entry.TryBeginCompile() {
			continue
		}
		if art := entry.Artifact(); art != nil && art.Tier != cache.TierInterpreted {
			entry.EndCompile()
			continue
		}

		h, err := e.arena.Alloc(code, desc.CodeAlign)
		if err != nil {
			entry.EndCompile()
			return installed, err
		}
		if current, ok := e.cache.Lookup(key); !ok || current != entry {
			// Evicted while loading; the key will fault in normally.
			e.arena.Release(h)
			entry.EndCompile()
			continue
		}
		art := &cache.Artifact{Tier: cache.TierAotCompiled, Code: h, SizeBytes: uint32(len(code))}
		e.cache.Promote(entry, art)
		entry.SetState(cache.StateAotCompiled)
		entry.EndCompile()
		installed++
	}
	trace.Point(e.tr, trace.ScopeEngine, "load-image", "installed=%d", installed)
	return installed, nil
}
