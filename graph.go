package evalgraph

import (
	"fmt"
	"slices"
)

// GraphOption configures a Graph during creation.
type GraphOption func(*graphOptions)

type graphOptions struct {
	catalog Catalog
}

// WithCatalog validates node types against c whenever a node is added.
//
// Example:
//
//	g := evalgraph.NewGraph(evalgraph.WithCatalog(evalgraph.BackendCatalog{
//	    Shader: shaders,
//	    Native: table,
//	}))
func WithCatalog(c Catalog) GraphOption {
	return func(o *graphOptions) {
		o.catalog = c
	}
}

// Graph owns the nodes of an evaluation graph and its topological order.
//
// Every mutation is validated: dangling inputs, out-of-range slots and
// cycles are rejected, so a Graph is always acyclic. The order is
// recomputed after each successful mutation unless replaced with
// SetEvaluationOrder.
//
// Graph is not safe for concurrent use.
type Graph struct {
	nodes   []*Node
	order   []NodeID
	catalog Catalog
	version uint64
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	var o graphOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Graph{catalog: o.catalog}
}

// Len returns the size of the id space, including deleted ids.
func (g *Graph) Len() int { return len(g.nodes) }

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// Version changes on every successful mutation.
func (g *Graph) Version() uint64 { return g.version }

// Valid reports whether id names a live node.
func (g *Graph) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id] != nil
}

// GetEvaluationStage returns the node metadata for id. The returned node is
// owned by the graph; use the Set methods to change it.
func (g *Graph) GetEvaluationStage(id NodeID) (*Node, bool) {
	if !g.Valid(id) {
		return nil, false
	}
	return g.nodes[id], true
}

func (g *Graph) node(id NodeID) (*Node, error) {
	if !g.Valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return g.nodes[id], nil
}

// AddNode adds a node and returns its id. Connected inputs must name live
// nodes. The node's UseCount is reset.
func (g *Graph) AddNode(n Node) (NodeID, error) {
	if n.Faces == 0 {
		n.Faces = 1
	}
	if n.Faces != 1 && n.Faces != 6 {
		return NoInput, fmt.Errorf("%w: got %d", ErrInvalidFaces, n.Faces)
	}
	if g.catalog != nil {
		if err := g.catalog.Supports(n.Type, n.Backends); err != nil {
			return NoInput, err
		}
	}
	for slot, in := range n.Inputs {
		if in == NoInput {
			continue
		}
		if !g.Valid(in) {
			return NoInput, fmt.Errorf("%w: slot %d references %d", ErrDanglingInput, slot, in)
		}
	}

	n.UseCount = 0
	n.Params = slices.Clone(n.Params)
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &n)
	for _, in := range n.Inputs {
		if in != NoInput {
			g.nodes[in].UseCount++
		}
	}
	g.changed()
	return id, nil
}

// DelNode removes a node. Every consumer slot reading from it is
// disconnected. The id is not reused.
func (g *Graph) DelNode(id NodeID) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	for _, in := range n.Inputs {
		if in != NoInput {
			g.nodes[in].UseCount--
		}
	}
	for _, c := range g.nodes {
		if c == nil {
			continue
		}
		for slot, in := range c.Inputs {
			if in == id {
				c.Inputs[slot] = NoInput
			}
		}
	}
	g.nodes[id] = nil
	g.changed()
	return nil
}

// AddEvaluationInput connects source to the given input slot of target,
// replacing any existing connection on that slot.
func (g *Graph) AddEvaluationInput(target NodeID, slot int, source NodeID) error {
	t, err := g.node(target)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= MaxInputs {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	if !g.Valid(source) {
		return fmt.Errorf("%w: slot %d references %d", ErrDanglingInput, slot, source)
	}
	if slices.Contains(g.BackwardEvaluationOrder(source), target) {
		return fmt.Errorf("%w: %d -> %d", ErrCycle, source, target)
	}

	if old := t.Inputs[slot]; old != NoInput {
		g.nodes[old].UseCount--
	}
	t.Inputs[slot] = source
	g.nodes[source].UseCount++
	g.changed()
	return nil
}

// DelEvaluationInput disconnects the given input slot of target.
func (g *Graph) DelEvaluationInput(target NodeID, slot int) error {
	t, err := g.node(target)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= MaxInputs {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	if old := t.Inputs[slot]; old != NoInput {
		g.nodes[old].UseCount--
		t.Inputs[slot] = NoInput
		g.changed()
	}
	return nil
}

// SetParameters replaces the parameter blob of a node.
func (g *Graph) SetParameters(id NodeID, params []byte) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	n.Params = slices.Clone(params)
	g.version++
	return nil
}

// SetSamplers sets the sampler configuration of one input slot.
func (g *Graph) SetSamplers(id NodeID, slot int, s InputSampler) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= MaxInputs {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	n.Samplers[slot] = s
	g.version++
	return nil
}

// SetBlend sets the blend source and destination of a node.
func (g *Graph) SetBlend(id NodeID, src, dst BlendMode) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	n.BlendSrc, n.BlendDst = src, dst
	g.version++
	return nil
}

// SetFaces sets the output face count to 1 or 6.
func (g *Graph) SetFaces(id NodeID, faces int) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if faces != 1 && faces != 6 {
		return fmt.Errorf("%w: got %d", ErrInvalidFaces, faces)
	}
	n.Faces = faces
	g.version++
	return nil
}

// SetInteraction stores the pointer state of a node.
func (g *Graph) SetInteraction(id NodeID, in Interaction) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	n.Interaction = in
	return nil
}

// GetForwardEvaluationOrder returns a copy of the current topological order.
func (g *Graph) GetForwardEvaluationOrder() []NodeID {
	return slices.Clone(g.order)
}

// SetEvaluationOrder replaces the topological order with order, verbatim.
// The caller is trusted; the order holds until the next topology change.
func (g *Graph) SetEvaluationOrder(order []NodeID) {
	g.order = slices.Clone(order)
	g.version++
}

func (g *Graph) changed() {
	g.order = g.forwardOrder()
	g.version++
}
