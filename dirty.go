package evalgraph

import "slices"

// SetTargetDirty marks target dirty and propagates staleness to every node
// downstream of it. A single forward sweep over the topological order is
// enough because producers always precede consumers. With onlyChild set,
// target itself is left clean.
func (c *Context) SetTargetDirty(target NodeID, onlyChild bool) {
	c.sync()
	c.dirty.Set(int(target))

	order := c.graph.GetForwardEvaluationOrder()
	if pos := slices.Index(order, target); pos >= 0 {
		for _, id := range order[pos+1:] {
			if c.dirty.Has(int(id)) {
				continue
			}
			n, ok := c.graph.GetEvaluationStage(id)
			if !ok {
				continue
			}
			for _, in := range n.Inputs {
				if in != NoInput && c.dirty.Has(int(in)) {
					c.dirty.Set(int(id))
					break
				}
			}
		}
	}

	if onlyChild {
		c.dirty.Clear(int(target))
	}
}

// SetAllDirty marks every node dirty.
func (c *Context) SetAllDirty() {
	c.sync()
	c.dirty.SetAll()
}
