package evalgraph

import (
	"errors"
	"fmt"
)

// Report is the outcome of one run.
type Report struct {
	// Executed lists nodes whose step completed, in execution order.
	// A node whose native function faulted still counts as executed.
	Executed []NodeID

	// Deferred lists nodes that waited on a processing input or reported
	// StatusProcessing. They stay dirty.
	Deferred []NodeID

	// Skipped lists nodes that were scheduled but not run: deleted nodes
	// and, for RunBackward, nodes with no remaining use.
	Skipped []NodeID

	// Faults lists backend failures in execution order.
	Faults []NodeFault
}

// Err joins every fault into one error, or returns nil.
func (r *Report) Err() error {
	if len(r.Faults) == 0 {
		return nil
	}
	errs := make([]error, len(r.Faults))
	for i, f := range r.Faults {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *Report) fault(id NodeID, backend BackendMask, err error) {
	r.Faults = append(r.Faults, NodeFault{Node: id, Backend: backend, Err: err})
}

func (c *Context) begin() error {
	if c.closed {
		return ErrContextClosed
	}
	c.sync()
	c.info = EvaluationInfo{
		TargetIndex: NoInput,
		ViewRot:     Identity,
		Frame:       c.frame,
		Time:        c.time,
	}
	c.info.resetInputs()
	return nil
}

// allocPreview points every node at its own editing-preview target,
// creating the target objects on first use. Textures are created lazily by
// the shader step.
func (c *Context) allocPreview() {
	for i := range c.preview {
		c.allocPreviewFor(NodeID(i))
	}
}

func (c *Context) allocPreviewFor(id NodeID) {
	if c.preview[id] == nil {
		c.preview[id] = &renderTarget{}
	}
	c.outputs[id] = c.preview[id]
}

// RunAll executes every node in topological order into its editing-preview
// output.
func (c *Context) RunAll() (*Report, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	c.allocPreview()
	r := &Report{}
	for _, id := range c.graph.GetForwardEvaluationOrder() {
		c.runNode(id, r)
	}
	c.logReport("all", r)
	return r, nil
}

// RunDirty executes the dirty nodes in topological order into their
// editing-preview outputs. Clean nodes are skipped; the order keeps every
// dirty producer ahead of its dirty consumers.
func (c *Context) RunDirty() (*Report, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	c.allocPreview()
	var todo []NodeID
	for _, id := range c.graph.GetForwardEvaluationOrder() {
		if c.dirty.Has(int(id)) {
			todo = append(todo, id)
		}
	}
	r := &Report{}
	for _, id := range todo {
		c.runNode(id, r)
	}
	c.logReport("dirty", r)
	return r, nil
}

// RunSingle executes one node with caller-supplied evaluation info,
// bypassing the dirty flags and the topological order. Setting
// info.UIPass limits shader evaluation to one face and keeps info.ViewRot.
func (c *Context) RunSingle(id NodeID, info EvaluationInfo) (*Report, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	if !c.graph.Valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	c.allocPreviewFor(id)
	c.info = info
	r := &Report{}
	c.runNode(id, r)
	c.logReport("single", r)
	return r, nil
}

// Evaluate executes one node like RunSingle with default evaluation info,
// rendering its output at width x height instead of the context's default
// size. The next run at the default size recreates the texture.
func (c *Context) Evaluate(id NodeID, width, height int) (*Report, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	info := EvaluationInfo{
		TargetIndex: NoInput,
		ViewRot:     Identity,
		Frame:       c.frame,
		Time:        c.time,
		Width:       width,
		Height:      height,
	}
	info.resetInputs()
	return c.RunSingle(id, info)
}

// RunBackward evaluates exactly the dependency closure of id. Every node in
// the closure executes regardless of its dirty flag, and outputs come from
// the transient pool, so intermediate textures are recycled once their last
// consumer has run. The output of id stays readable through
// GetEvaluationTexture until the next run.
//
// Dirty flags are left as they were: the preview textures of the closure
// were not rendered, so a later RunDirty still refreshes them. Every node
// of the closure other than id reads its preview output again afterwards.
func (c *Context) RunBackward(id NodeID) (*Report, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	if !c.graph.Valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	order := c.graph.BackwardEvaluationOrder(id)
	plan := c.pool.assign(c.graph, order, id)
	for nid, rt := range plan.targets {
		c.outputs[nid] = rt
	}
	c.info.ForcedDirty = true

	r := &Report{Skipped: plan.skipped}
	c.baking = true
	for _, nid := range plan.run {
		c.runNode(nid, r)
	}
	c.baking = false
	for nid := range plan.targets {
		if nid != id {
			c.outputs[nid] = c.preview[nid]
		}
	}
	c.log().Debug("evalgraph: pool",
		"closure", len(order), "allocated", len(c.pool.slots), "peak", c.pool.peak)
	c.logReport("backward", r)
	return r, nil
}

// runNode is the atomic execution step shared by every run mode.
func (c *Context) runNode(id NodeID, r *Report) {
	n, ok := c.graph.GetEvaluationStage(id)
	if !ok {
		r.Skipped = append(r.Skipped, id)
		return
	}

	for _, in := range n.Inputs {
		if in != NoInput && c.processing.Has(int(in)) {
			c.processing.Set(int(id))
			r.Deferred = append(r.Deferred, id)
			c.log().Debug("evalgraph: deferred", "node", id, "waiting_on", in)
			return
		}
	}
	c.processing.Clear(int(id))

	c.info.TargetIndex = id
	c.info.InputIndices = n.Inputs
	c.info.setInteraction(n.Interaction)

	if n.Backends&BackendNative != 0 {
		if c.runNative(id, n, r) == StatusProcessing {
			c.processing.Set(int(id))
			r.Deferred = append(r.Deferred, id)
			c.log().Debug("evalgraph: processing", "node", id, "type", n.Type)
			return
		}
	}
	if n.Backends&BackendShader != 0 {
		if err := c.runShader(id, n); err != nil {
			r.fault(id, BackendShader, err)
			c.log().Warn("evalgraph: shader pass failed", "node", id, "type", n.Type, "err", err)
			return
		}
	}

	if !c.baking {
		c.dirty.Clear(int(id))
	}
	r.Executed = append(r.Executed, id)
}

func (c *Context) logReport(mode string, r *Report) {
	c.log().Debug("evalgraph: run",
		"mode", mode,
		"executed", len(r.Executed),
		"deferred", len(r.Deferred),
		"skipped", len(r.Skipped),
		"faults", len(r.Faults))
}
