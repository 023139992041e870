package schedgraph

// cullSynchronizations implements the Sufficient Synchronization
// Index Set algorithm of component design §4.3: for every node,
// prune nodesToSyncWith down to the minimal set of other-queue
// dependencies still needed to preserve every transitive
// happens-before relation the build phase established.
//
// Same-queue dependencies never need an explicit fence — queue
// execution order already guarantees them — so they are dropped
// here unconditionally; only cross-queue edges participate in the
// SSIS computation.
func (g *Graph) cullSynchronizations() {
	// Process nodes in increasing global execution index so that
	// a dependency's own SSIS is already final by the time a
	// later node wants to consult it: every dependency of n
	// necessarily executes before n.
	ordered := make([]*Node, len(g.nodes))
	copy(ordered, g.nodes)
	sortByGlobalIndex(ordered)

	for _, n := range ordered {
		n.synchronizationIndexSet = make([]int, g.queueCount)
		for q := range n.synchronizationIndexSet {
			n.synchronizationIndexSet[q] = -1
		}
		n.synchronizationIndexSet[int(n.queue)] = n.localToQueueExecutionIndex

		// 1. Nearest-dependency compression: keep only the
		// cross-queue dependency with the largest per-queue local
		// execution index for each queue.
		nearest := make(map[int]*Node)
		for _, d := range n.nodesToSyncWith {
			if d.queue == n.queue {
				continue
			}
			cur, ok := nearest[int(d.queue)]
			if !ok || d.localToQueueExecutionIndex > cur.localToQueueExecutionIndex {
				nearest[int(d.queue)] = d
			}
		}
		if len(nearest) == 0 {
			n.nodesToSyncWith = nil
			continue
		}

		// 2. Seed the SSIS from the compressed dependencies.
		for q, d := range nearest {
			n.synchronizationIndexSet[q] = d.localToQueueExecutionIndex
		}

		// 3. Greedy coverage-based culling: repeatedly pick the
		// compressed dependency whose own SSIS covers the most
		// still-uncovered queues, until every queue n needs to
		// synchronize with is covered by a kept dependency.
		needed := make(map[int]struct{}, len(nearest))
		for q := range nearest {
			needed[q] = struct{}{}
		}
		var kept []*Node
		candidates := make([]*Node, 0, len(nearest))
		for _, d := range nearest {
			candidates = append(candidates, d)
		}
		sortByGlobalIndex(candidates)

		used := make(map[*Node]bool, len(candidates))
		for len(needed) > 0 {
			var best *Node
			bestCoverage := -1
			for _, d := range candidates {
				if used[d] {
					continue
				}
				coverage := 0
				for q := range needed {
					if q == int(d.queue) {
						coverage++
						continue
					}
					if d.synchronizationIndexSet[q] >= n.synchronizationIndexSet[q] {
						coverage++
					}
				}
				if coverage > bestCoverage {
					bestCoverage = coverage
					best = d
				}
			}
			if best == nil {
				break
			}
			used[best] = true
			kept = append(kept, best)
			var covered []int
			for q := range needed {
				if q == int(best.queue) || best.synchronizationIndexSet[q] >= n.synchronizationIndexSet[q] {
					covered = append(covered, q)
				}
			}
			for _, q := range covered {
				delete(needed, q)
			}
		}
		n.nodesToSyncWith = kept
	}
}

func sortByGlobalIndex(nodes []*Node) {
	// Small, frame-local slices; insertion sort keeps this
	// allocation-free and avoids pulling in sort for a handful of
	// comparisons per call.
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j-1].globalExecutionIndex > nodes[j].globalExecutionIndex; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}
