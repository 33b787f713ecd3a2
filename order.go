package evalgraph

import (
	"container/heap"

	"github.com/gogpu/evalgraph/internal/bitset"
)

type idMinHeap []NodeID

func (h idMinHeap) Len() int           { return len(h) }
func (h idMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idMinHeap) Push(x any)        { *h = append(*h, x.(NodeID)) }
func (h *idMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// forwardOrder computes a topological order with Kahn's algorithm.
// Ties are broken by smallest id so the order is deterministic.
func (g *Graph) forwardOrder() []NodeID {
	indeg := make([]int, len(g.nodes))
	outgoing := make([][]NodeID, len(g.nodes))
	live := 0
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		live++
		for _, in := range n.Inputs {
			if in == NoInput {
				continue
			}
			indeg[i]++
			outgoing[in] = append(outgoing[in], NodeID(i))
		}
	}

	ready := &idMinHeap{}
	for i, n := range g.nodes {
		if n != nil && indeg[i] == 0 {
			*ready = append(*ready, NodeID(i))
		}
	}
	heap.Init(ready)

	out := make([]NodeID, 0, live)
	for ready.Len() > 0 {
		n := heap.Pop(ready).(NodeID)
		out = append(out, n)
		for _, m := range outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// BackwardEvaluationOrder returns the ancestor closure of id, id included,
// in dependency order. Each node appears once, after all of its inputs.
// Inputs are visited in slot order. An invalid id yields nil.
func (g *Graph) BackwardEvaluationOrder(id NodeID) []NodeID {
	if !g.Valid(id) {
		return nil
	}

	type frame struct {
		id   NodeID
		next int
	}
	visited := bitset.New(len(g.nodes))
	stack := []frame{{id: id}}
	visited.Set(int(id))

	var out []NodeID
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := g.nodes[top.id]
		pushed := false
		for top.next < MaxInputs {
			in := n.Inputs[top.next]
			top.next++
			if in == NoInput || visited.Has(int(in)) {
				continue
			}
			visited.Set(int(in))
			stack = append(stack, frame{id: in})
			pushed = true
			break
		}
		if pushed {
			continue
		}
		out = append(out, top.id)
		stack = stack[:len(stack)-1]
	}
	return out
}
