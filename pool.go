package evalgraph

// PoolStats reports transient pool usage for the last RunBackward.
type PoolStats struct {
	// Allocated is the number of pooled targets created by this context.
	Allocated int

	// Peak is the largest number of targets checked out at once.
	Peak int

	// InUse is the number of targets still held when the plan finished,
	// which is 1 for the requested node.
	InUse int
}

// transientPool lends render targets to nodes of a backward run. Targets
// persist across runs and are destroyed with the context.
type transientPool struct {
	slots []*renderTarget
	free  []*renderTarget
	inUse int
	peak  int
}

// backwardPlan is the result of assigning pooled targets to a closure.
type backwardPlan struct {
	run     []NodeID
	skipped []NodeID
	targets map[NodeID]*renderTarget
}

func (p *transientPool) reset() {
	p.free = p.free[:0]
	for i := len(p.slots) - 1; i >= 0; i-- {
		p.free = append(p.free, p.slots[i])
	}
	p.inUse = 0
	p.peak = 0
}

func (p *transientPool) claim() *renderTarget {
	var rt *renderTarget
	if n := len(p.free); n > 0 {
		rt = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		rt = &renderTarget{pooled: true}
		p.slots = append(p.slots, rt)
	}
	p.inUse++
	p.peak = max(p.peak, p.inUse)
	return rt
}

func (p *transientPool) release(rt *renderTarget) {
	p.free = append(p.free, rt)
	p.inUse--
}

// assign walks order, which must list every producer before its consumers,
// and lends a target to each node that is still needed. Use counts only
// count consumers inside order; root carries one extra use for the caller.
// A node's inputs are returned to the pool as soon as their last consumer
// has claimed its own target.
func (p *transientPool) assign(g *Graph, order []NodeID, root NodeID) backwardPlan {
	p.reset()

	uses := make(map[NodeID]int, len(order))
	for _, id := range order {
		for _, in := range g.nodes[id].Inputs {
			if in != NoInput {
				uses[in]++
			}
		}
	}
	uses[root]++

	plan := backwardPlan{targets: make(map[NodeID]*renderTarget, len(order))}
	for _, id := range order {
		if uses[id] == 0 {
			plan.skipped = append(plan.skipped, id)
			continue
		}
		plan.targets[id] = p.claim()
		plan.run = append(plan.run, id)

		for _, in := range g.nodes[id].Inputs {
			if in == NoInput {
				continue
			}
			uses[in]--
			if uses[in] == 0 {
				if rt, ok := plan.targets[in]; ok {
					p.release(rt)
				}
			}
		}
	}
	return plan
}

// PoolStats returns transient pool usage for the last RunBackward.
func (c *Context) PoolStats() PoolStats {
	return PoolStats{Allocated: len(c.pool.slots), Peak: c.pool.peak, InUse: c.pool.inUse}
}
