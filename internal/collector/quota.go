package collector

import (
	"sync"
	"time"
)

// adaptiveQuota steers the per-phase time budget toward a target pause:
// observed pauses over target shrink the budget, pauses well under it
// grow the budget back, within [base/4, base*4].
type adaptiveQuota struct {
	mu     sync.Mutex
	base   time.Duration
	target time.Duration
	cur    time.Duration
	recent [8]time.Duration
	n      int
}

func (q *adaptiveQuota) init(base, target time.Duration) {
	q.base = base
	q.target = target
	q.cur = base
}

func (q *adaptiveQuota) get() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cur
}

func (q *adaptiveQuota) record(pause time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.recent[q.n%len(q.recent)] = pause
	q.n++

	count := q.n
	if count > len(q.recent) {
		count = len(q.recent)
	}
	var sum time.Duration
	for i := 0; i < count; i++ {
		sum += q.recent[i]
	}
	avg := sum / time.Duration(count)

	switch {
	case avg > q.target:
		q.cur = q.cur * 3 / 4
	case avg < q.target/2:
		q.cur = q.cur * 5 / 4
	}
	if min := q.base / 4; q.cur < min {
		q.cur = min
	}
	if max := q.base * 4; q.cur > max {
		q.cur = max
	}
}
