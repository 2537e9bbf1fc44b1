package cache

import "sync"

// shard is one independently synchronized slice of the key space. The
// lock covers the map and partition bookkeeping only; artifact installs
// and access-time bumps are atomic on the entry and never take it.
type shard struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	cold    int
	hot     int
	coldCap int
	hotCap  int
}

func newShard(coldCap, hotCap int) *shard {
	return &shard{
		entries: make(map[Key]*Entry, 64),
		coldCap: coldCap,
		hotCap:  hotCap,
	}
}

func (s *shard) get(key Key) (*Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok
}

// insert creates or updates the entry for key and returns any entries
// evicted to make room.
func (s *shard) insert(key Key, art *Artifact, now int64, seq uint64, pol Policy) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.art.Store(art)
		e.touch(now)
		return s.repartitionLocked(e, pol)
	}

	e := &Entry{Key: key, seq: seq}
	e.art.Store(art)
	e.touch(now)
	if art.Tier == TierInterpreted {
		e.part = partCold
		s.cold++
	} else {
		e.part = partHot
		s.hot++
	}
	s.entries[key] = e
	return s.trimLocked(pol)
}

// markHot moves a promoted entry into the protected partition.
func (s *shard) markHot(e *Entry, pol Policy) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[e.Key] != e {
		// Evicted while compiling; the caller's result is already moot.
		return nil
	}
	return s.repartitionLocked(e, pol)
}

func (s *shard) repartitionLocked(e *Entry, pol Policy) []*Entry {
	art := e.art.Load()
	if art == nil || art.Tier == TierInterpreted || e.part == partHot {
		return nil
	}
	e.part = partHot
	s.cold--
	s.hot++
	return s.trimLocked(pol)
}

func (s *shard) remove(key Key) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	s.dropLocked(e)
	return e, true
}

func (s *shard) dropLocked(e *Entry) {
	delete(s.entries, e.Key)
	if e.part == partHot {
		s.hot--
	} else {
		s.cold--
	}
}

// trim evicts until both partitions are under their bounds.
func (s *shard) trim(pol Policy) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trimLocked(pol)
}

// trimLocked evicts cold entries past the cold bound, then hot entries
// past the hot bound. Cold pressure never touches the hot partition.
func (s *shard) trimLocked(pol Policy) []*Entry {
	var evicted []*Entry
	for s.cold > s.coldCap {
		v := s.victimLocked(partCold, pol)
		if v == nil {
			break
		}
		s.dropLocked(v)
		evicted = append(evicted, v)
	}
	for s.hot > s.hotCap {
		v := s.victimLocked(partHot, pol)
		if v == nil {
			break
		}
		s.dropLocked(v)
		evicted = append(evicted, v)
	}
	return evicted
}

// victimLocked picks the eviction victim in the given partition: least
// recently used or least frequently used per policy, oldest insert first
// on ties.
func (s *shard) victimLocked(part partition, pol Policy) *Entry {
	var victim *Entry
	for _, e := range s.entries {
		if e.part != part {
			continue
		}
		if victim == nil || better(e, victim, pol) {
			victim = e
		}
	}
	return victim
}

func better(a, b *Entry, pol Policy) bool {
	if pol == PolicyLFU {
		ar, br := a.Hot.Raw(), b.Hot.Raw()
		if ar != br {
			return ar < br
		}
	} else {
		at, bt := a.LastAccess(), b.LastAccess()
		if at != bt {
			return at < bt
		}
	}
	return a.seq < b.seq
}

func (s *shard) each(fn func(*Entry)) {
	s.mu.RLock()
	snapshot := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		snapshot = append(snapshot, e)
	}
	s.mu.RUnlock()
	for _, e := range snapshot {
		fn(e)
	}
}

func (s *shard) sizes() (entries, hot int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), s.hot
}
