package evalgraph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/evalgraph/internal/bitset"
)

// renderTarget is an output slot. Editing-preview targets belong to one
// node for the context's lifetime; pooled targets are lent by the pool.
type renderTarget struct {
	tex    Texture
	pooled bool
}

// Context drives evaluation runs over a Graph.
//
// A Context holds per-node dirty and processing flags, the output table,
// the run-scoped EvaluationInfo and the encoder cache. It is created per
// editing session or bake request and must be closed to release its
// textures and finalize its streams.
//
// Context is not safe for concurrent use. Concurrent runs against the same
// context are not allowed.
type Context struct {
	graph   *Graph
	shader  ShaderBackend
	native  NativeTable
	streams StreamFactory
	width   int
	height  int
	logger  *slog.Logger

	dirty      *bitset.Set
	processing *bitset.Set
	seen       int

	preview []*renderTarget
	outputs []*renderTarget
	pool    transientPool
	baking  bool

	info  EvaluationInfo
	frame int
	time  float32

	encoders     map[string]StreamEncoder
	encoderOrder []string

	closed bool
}

// NewContext creates a context for g. Every live node is checked against
// the configured backends, so a node whose program or function is missing
// is reported here rather than during a run.
func NewContext(g *Graph, opts ...ContextOption) (*Context, error) {
	if g == nil {
		return nil, errors.New("evalgraph: nil graph")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cat := BackendCatalog{Shader: o.shader, Native: o.native}
	var errs []error
	for _, id := range g.GetForwardEvaluationOrder() {
		n, ok := g.GetEvaluationStage(id)
		if !ok {
			continue
		}
		if err := cat.Supports(n.Type, n.Backends); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", id, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	c := &Context{
		graph:      g,
		shader:     o.shader,
		native:     o.native,
		streams:    o.streams,
		width:      o.width,
		height:     o.height,
		logger:     o.logger,
		dirty:      bitset.New(0),
		processing: bitset.New(0),
		encoders:   make(map[string]StreamEncoder),
	}
	attachLogger(c.shader)
	attachLogger(c.native)
	c.sync()
	c.log().Info("evalgraph: context created",
		"nodes", g.NodeCount(), "width", c.width, "height", c.height)
	return c, nil
}

func (c *Context) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return Logger()
}

// Graph returns the graph evaluated by this context.
func (c *Context) Graph() *Graph { return c.graph }

// DefaultSize returns the size of lazily allocated outputs.
func (c *Context) DefaultSize() (width, height int) { return c.width, c.height }

// sync grows the per-node state to the graph's id space. Ids the context
// has never seen start dirty since they have never been evaluated.
func (c *Context) sync() {
	n := c.graph.Len()
	if n <= c.seen {
		return
	}
	c.dirty.Resize(n)
	c.processing.Resize(n)
	for i := c.seen; i < n; i++ {
		c.dirty.Set(i)
	}
	c.preview = append(c.preview, make([]*renderTarget, n-c.seen)...)
	c.outputs = append(c.outputs, make([]*renderTarget, n-c.seen)...)
	c.seen = n
}

// Dirty reports whether a node's output is stale.
func (c *Context) Dirty(id NodeID) bool {
	c.sync()
	return c.dirty.Has(int(id))
}

// Processing reports whether a node is waiting on unfinished work.
func (c *Context) Processing(id NodeID) bool {
	c.sync()
	return c.processing.Has(int(id))
}

// SetProcessing flags or unflags a node as processing. Producers that finish
// asynchronous work outside the run loop clear the flag here.
func (c *Context) SetProcessing(id NodeID, v bool) {
	c.sync()
	c.processing.Put(int(id), v)
}

// SetFrame sets the frame number and time copied into every run.
func (c *Context) SetFrame(frame int, seconds float32) {
	c.frame, c.time = frame, seconds
}

// GetEvaluationTexture returns the current output of a node, or nil if the
// node has not produced one in this context.
func (c *Context) GetEvaluationTexture(id NodeID) Texture {
	if id < 0 || int(id) >= len(c.outputs) {
		return nil
	}
	rt := c.outputs[id]
	if rt == nil {
		return nil
	}
	return rt.tex
}

// Close releases every texture the context owns and finalizes every open
// stream exactly once. Close is idempotent.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, name := range c.encoderOrder {
		if err := c.encoders[name].Finish(); err != nil {
			c.log().Warn("evalgraph: stream finish failed", "file", name, "err", err)
			errs = append(errs, fmt.Errorf("evalgraph: finish %s: %w", name, err))
		}
	}
	clear(c.encoders)
	c.encoderOrder = nil

	if c.shader != nil {
		for _, rt := range c.preview {
			if rt != nil && rt.tex != nil {
				c.shader.DestroyTexture(rt.tex)
				rt.tex = nil
			}
		}
		for _, rt := range c.pool.slots {
			if rt.tex != nil {
				c.shader.DestroyTexture(rt.tex)
				rt.tex = nil
			}
		}
	}
	c.preview = nil
	c.outputs = nil
	c.pool = transientPool{}

	detachLogger(c.shader)
	detachLogger(c.native)
	c.log().Info("evalgraph: context closed")
	return errors.Join(errs...)
}

// ensureTexture makes sure rt holds a texture with the given face count at
// the size requested by the current run.
func (c *Context) ensureTexture(rt *renderTarget, faces int) (Texture, error) {
	w, h := c.targetSize()
	if rt.tex != nil && rt.tex.Faces() == faces && rt.tex.Width() == w && rt.tex.Height() == h {
		return rt.tex, nil
	}
	if c.shader == nil {
		return nil, fmt.Errorf("%w: no shader backend for output", ErrNoBackend)
	}
	if rt.tex != nil {
		c.shader.DestroyTexture(rt.tex)
		rt.tex = nil
	}
	tex, err := c.shader.CreateTexture(w, h, faces)
	if err != nil {
		return nil, err
	}
	rt.tex = tex
	return tex, nil
}

func (c *Context) targetSize() (width, height int) {
	if c.info.Width > 0 && c.info.Height > 0 {
		return c.info.Width, c.info.Height
	}
	return c.width, c.height
}
