package translate

import (
	"sort"

	"warp/internal/ir"
	"warp/internal/isa"
)

// schedule groups independent ops into parallel-issue groups of at most
// IssueWidth instructions. Within a group the highest estimated-latency op
// is placed first so the critical path through the group is as short as
// possible. Returns the emission order, a per-position group-end marker
// and the group count.
//
// Dependence edges: read-after-write, write-after-read and
// write-after-write on registers; all memory ops stay in program order
// relative to each other so guest fault order is preserved.
func schedule(ops []ir.Op, desc *isa.Desc) (order []int, groupEnd []bool, groups int) {
	n := len(ops)
	if n == 0 {
		return nil, nil, 0
	}

	succs := make([][]int, n)
	preds := make([]int, n)
	addEdge := func(from, to int) {
		succs[from] = append(succs[from], to)
		preds[to]++
	}

	var lastDef [ir.NumRegs]int
	var lastUses [ir.NumRegs][]int
	for r := range lastDef {
		lastDef[r] = -1
	}
	lastMem := -1

	uses := make([]ir.RegID, 0, 2)
	for i := range ops {
		op := &ops[i]
		uses = op.Uses(uses[:0])
		for _, r := range uses {
			if lastDef[r] >= 0 {
				addEdge(lastDef[r], i) // RAW
			}
		}
		if dst, ok := op.Defs(); ok {
			if lastDef[dst] >= 0 {
				addEdge(lastDef[dst], i) // WAW
			}
			for _, u := range lastUses[dst] {
				if u != i {
					addEdge(u, i) // WAR
				}
			}
			lastDef[dst] = i
			lastUses[dst] = lastUses[dst][:0]
		}
		for _, r := range uses {
			lastUses[r] = append(lastUses[r], i)
		}
		if op.Touches() {
			if lastMem >= 0 {
				addEdge(lastMem, i)
			}
			lastMem = i
		}
	}

	order = make([]int, 0, n)
	groupEnd = make([]bool, 0, n)
	scheduled := make([]bool, n)
	remaining := n

	for remaining > 0 {
		ready := make([]int, 0, remaining)
		for i := 0; i < n; i++ {
			if !scheduled[i] && preds[i] == 0 {
				ready = append(ready, i)
			}
		}
		// Longest latency first; program order breaks ties.
		sort.SliceStable(ready, func(a, b int) bool {
			la := isa.Latency(desc.ID, ops[ready[a]].Kind)
			lb := isa.Latency(desc.ID, ops[ready[b]].Kind)
			if la != lb {
				return la > lb
			}
			return ready[a] < ready[b]
		})

		width := desc.IssueWidth
		if width > len(ready) {
			width = len(ready)
		}
		group := ready[:width]
		for gi, i := range group {
			order = append(order, i)
			groupEnd = append(groupEnd, gi == len(group)-1)
		}
		// Release successors only once the whole group is placed, so no
		// two ops in one group depend on each other.
		for _, i := range group {
			scheduled[i] = true
			remaining--
			for _, s := range succs[i] {
				preds[s]--
			}
		}
		groups++
	}
	return order, groupEnd, groups
}
