package evalgraph

import (
	"fmt"
	"log/slog"
)

// runNative invokes the node's native function. A panic is recovered here
// and recorded as a fault; the run continues with the next node.
func (c *Context) runNative(id NodeID, n *Node, r *Report) Status {
	if c.native == nil {
		r.fault(id, BackendNative, fmt.Errorf("%w: no native table", ErrNoBackend))
		return StatusError
	}
	fn, ok := c.native.Lookup(n.Type)
	if !ok {
		r.fault(id, BackendNative, fmt.Errorf("%w: %q", ErrUnknownFunction, n.Type))
		return StatusError
	}

	s := &Scope{ctx: c, node: id, n: n}
	status, err := callNative(fn, s, n.Params, c.info)
	s.ctx = nil

	var ferr error
	switch {
	case err != nil:
		ferr = err
	case status == StatusError:
		ferr = ErrNativeStatus
	default:
		return status
	}
	r.fault(id, BackendNative, ferr)
	c.log().Warn("evalgraph: native function failed", "node", id, "type", n.Type, "err", ferr)
	return StatusError
}

func callNative(fn NativeFunc, s *Scope, params []byte, info EvaluationInfo) (status Status, err error) {
	defer func() {
		if p := recover(); p != nil {
			status, err = StatusError, fmt.Errorf("%w: %v", ErrNativeFault, p)
		}
	}()
	return fn(s, params, info)
}

// runShader renders the node into its output, one pass per face.
func (c *Context) runShader(id NodeID, n *Node) error {
	if c.shader == nil {
		return fmt.Errorf("%w: no shader backend", ErrNoBackend)
	}
	target, err := c.ensureTexture(c.outputs[id], n.FaceCount())
	if err != nil {
		return err
	}

	pass := Pass{
		Node:   id,
		Type:   n.Type,
		Target: target,
		Blend:  ResolveBlend(n.BlendSrc, n.BlendDst),
		Params: n.Params,
	}
	for slot, in := range n.Inputs {
		if in == NoInput {
			continue
		}
		if tex := c.GetEvaluationTexture(in); tex != nil {
			pass.Inputs[slot] = Binding{Texture: tex, Sampler: n.Samplers[slot].Descriptor()}
		}
	}

	faces := target.Faces()
	if c.info.UIPass {
		faces = 1
	}
	for face := range faces {
		pass.Face = face
		pass.Info = c.info
		pass.Info.Face = face
		if !c.info.UIPass {
			if target.Faces() == 6 {
				pass.Info.ViewRot = FaceRotation(face)
			} else {
				pass.Info.ViewRot = Identity
			}
		}
		if err := c.shader.Draw(&pass); err != nil {
			return fmt.Errorf("evalgraph: draw face %d: %w", face, err)
		}
	}
	return nil
}

// Scope is the host handle passed to a native function for one step.
// It is only valid for the duration of the call.
type Scope struct {
	ctx  *Context
	node NodeID
	n    *Node
}

// Node returns the id of the node being evaluated.
func (s *Scope) Node() NodeID { return s.node }

// Input returns the current output of the producer on slot, or nil.
func (s *Scope) Input(slot int) Texture {
	if s.ctx == nil || !s.n.Connected(slot) {
		return nil
	}
	return s.ctx.GetEvaluationTexture(s.n.Inputs[slot])
}

// Target returns the node's output texture, allocating it if needed.
func (s *Scope) Target() (Texture, error) {
	if s.ctx == nil {
		return nil, ErrContextClosed
	}
	return s.ctx.ensureTexture(s.ctx.outputs[s.node], s.n.FaceCount())
}

// Evaluate renders another node at width x height while this node runs and
// returns its output. The run-scoped EvaluationInfo and the output table of
// the enclosing run are restored before it returns.
func (s *Scope) Evaluate(id NodeID, width, height int) (Texture, error) {
	if s.ctx == nil {
		return nil, ErrContextClosed
	}
	if id == s.node {
		return nil, fmt.Errorf("%w: node %d evaluating itself", ErrCycle, id)
	}
	c := s.ctx
	info := c.info
	var saved *renderTarget
	if id >= 0 && int(id) < len(c.outputs) {
		saved = c.outputs[id]
	}
	r, err := c.Evaluate(id, width, height)
	c.info = info
	if err != nil {
		return nil, err
	}
	tex := c.GetEvaluationTexture(id)
	if saved != nil {
		c.outputs[id] = saved
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(r.Deferred) > 0 {
		return nil, fmt.Errorf("%w: node %d", ErrNodeProcessing, id)
	}
	return tex, nil
}

// Backend returns the context's shader backend, which may be nil.
func (s *Scope) Backend() ShaderBackend {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.shader
}

// Encoder returns the context's stream for filename. See Context.GetEncoder.
func (s *Scope) Encoder(filename string, width, height int) (StreamEncoder, error) {
	if s.ctx == nil {
		return nil, ErrContextClosed
	}
	return s.ctx.GetEncoder(filename, width, height)
}

// DefaultSize returns the context's default output size.
func (s *Scope) DefaultSize() (width, height int) {
	if s.ctx == nil {
		return DefaultWidth, DefaultHeight
	}
	return s.ctx.DefaultSize()
}

// Logger returns the context logger with the node attached.
func (s *Scope) Logger() *slog.Logger {
	if s.ctx == nil {
		return Logger()
	}
	return s.ctx.log().With("node", s.node, "type", s.n.Type)
}
