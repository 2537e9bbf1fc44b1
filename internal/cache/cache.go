package cache

import (
	"hash/maphash"
	"sync/atomic"
	"time"
)

// Policy selects the cold-partition eviction order.
type Policy uint8

const (
	// PolicyLRU evicts the least recently used entry.
	PolicyLRU Policy = iota
	// PolicyLFU evicts the least frequently used entry.
	PolicyLFU
)

// String returns the policy name.
func (p Policy) String() string {
	if p == PolicyLFU {
		return "lfu"
	}
	return "lru"
}

// Config sizes and parameterizes the cache.
type Config struct {
	// Shards is the number of independently synchronized shards,
	// rounded up to a power of two.
	Shards int
	// ColdCapacity bounds the evictable partition (entries, whole
	// cache).
	ColdCapacity int
	// HotCapacity bounds the eviction-protected partition holding
	// promoted tiers.
	HotCapacity int
	// Policy is the cold-partition eviction order.
	Policy Policy
	// DecayFactor cools hotspot rates during maintenance sweeps.
	DecayFactor float64
	// OnEvict runs for every evicted entry, outside the shard lock. The
	// engine uses it to drop the artifact's arena reference and cancel
	// in-flight compiles.
	OnEvict func(*Entry)
}

// DefaultConfig mirrors the capacities the system shipped with.
func DefaultConfig() Config {
	return Config{
		Shards:       16,
		ColdCapacity: 8192,
		HotCapacity:  2048,
		Policy:       PolicyLRU,
		DecayFactor:  0.99,
	}
}

// Stats is the cache's cumulative behavior.
type Stats struct {
	Entries    int
	HotEntries int
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	HitRate    float64
}

// Cache is the unified code cache.
type Cache struct {
	cfg    Config
	seed   maphash.Seed
	shards []*shard
	mask   uint64

	seq       atomic.Uint64
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New builds a cache. Zero config fields fall back to defaults.
func New(cfg Config) *Cache {
	def := DefaultConfig()
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}
	if cfg.ColdCapacity <= 0 {
		cfg.ColdCapacity = def.ColdCapacity
	}
	if cfg.HotCapacity <= 0 {
		cfg.HotCapacity = def.HotCapacity
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor > 1 {
		cfg.DecayFactor = def.DecayFactor
	}
	n := 1
	for n < cfg.Shards {
		n <<= 1
	}

	c := &Cache{
		cfg:    cfg,
		seed:   maphash.MakeSeed(),
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
	}
	coldPer := (cfg.ColdCapacity + n - 1) / n
	hotPer := (cfg.HotCapacity + n - 1) / n
	for i := range c.shards {
		c.shards[i] = newShard(coldPer, hotPer)
	}
	return c
}

func (c *Cache) shardFor(key Key) *shard {
	var h maphash.Hash
	h.SetSeed(c.seed)
	var buf [8]byte
	putUint64(buf[:], key.PC)
	_, _ = h.Write(buf[:])
	_ = h.WriteByte(byte(key.Pair.Source))
	_ = h.WriteByte(byte(key.Pair.Target))
	return c.shards[h.Sum64()&c.mask]
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Lookup returns the entry for key if resident, bumping its access time.
func (c *Cache) Lookup(key Key) (*Entry, bool) {
	s := c.shardFor(key)
	e, ok := s.get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	e.touch(time.Now().UnixNano())
	c.hits.Add(1)
	return e, true
}

// InsertOrUpdate installs an artifact for key, creating the entry on
// first miss. Returns the stable entry handle. Insertion into a full cold
// partition evicts first; insertion never fails.
func (c *Cache) InsertOrUpdate(key Key, art *Artifact) *Entry {
	s := c.shardFor(key)
	now := time.Now().UnixNano()

	evicted := s.insert(key, art, now, c.seq.Add(1), c.cfg.Policy)
	c.finishEvictions(evicted)

	e, _ := s.get(key)
	return e
}

// Promote installs a compiled artifact on an existing entry with one
// atomic slot swap and moves it to the eviction-protected hot partition.
func (c *Cache) Promote(e *Entry, art *Artifact) {
	e.art.Store(art)
	if art.Tier == TierInterpreted {
		return
	}
	s := c.shardFor(e.Key)
	evicted := s.markHot(e, c.cfg.Policy)
	c.finishEvictions(evicted)
}

// Remove evicts a single key immediately.
func (c *Cache) Remove(key Key) bool {
	s := c.shardFor(key)
	e, ok := s.remove(key)
	if ok {
		c.finishEvictions([]*Entry{e})
	}
	return ok
}

// EvictIfNeeded trims every shard back under its partition bounds.
func (c *Cache) EvictIfNeeded() {
	for _, s := range c.shards {
		evicted := s.trim(c.cfg.Policy)
		c.finishEvictions(evicted)
	}
}

func (c *Cache) finishEvictions(evicted []*Entry) {
	for _, e := range evicted {
		c.evictions.Add(1)
		e.Hot.Reset()
		if c.cfg.OnEvict != nil {
			c.cfg.OnEvict(e)
		}
	}
}

// Maintain runs one maintenance sweep: decays every resident counter so
// blocks that stopped running cool off.
func (c *Cache) Maintain() {
	for _, s := range c.shards {
		s.each(func(e *Entry) {
			e.Hot.Decay(c.cfg.DecayFactor)
		})
	}
}

// Range visits every resident entry. Used by the collector's mark phase
// and the AOT image exporter.
func (c *Cache) Range(fn func(*Entry)) {
	for _, s := range c.shards {
		s.each(fn)
	}
}

// Stats returns cumulative counters.
func (c *Cache) Stats() Stats {
	st := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	for _, s := range c.shards {
		entries, hot := s.sizes()
		st.Entries += entries
		st.HotEntries += hot
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}
