package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Option configures a Backend.
type Option func(*options)

type options struct {
	compile naga.CompileOptions
	logger  *slog.Logger
}

// WithCompileOptions sets the naga options used by RegisterProgram.
func WithCompileOptions(opts naga.CompileOptions) Option {
	return func(o *options) { o.compile = opts }
}

// WithLogger sets the package logger when the backend is created.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Stats is a snapshot of backend resource counts.
type Stats struct {
	Programs       int
	Textures       int
	Passes         uint64
	Pipelines      int
	PipelineHits   uint64
	PipelineMisses uint64
	Samplers       int
	Pending        int
}

// inflight holds per-pass resources until their submission completes.
type inflight struct {
	index  uint64
	cmd    hal.CommandBuffer
	group  hal.BindGroup
	params hal.Buffer
	info   hal.Buffer
}

// Backend renders evalgraph shader passes on a hal device.
// It implements evalgraph.ShaderBackend and evalgraph.TextureIO.
type Backend struct {
	device  hal.Device
	queue   hal.Queue
	compile naga.CompileOptions

	mu       sync.Mutex
	programs map[string]*program
	textures map[*Texture]struct{}
	pending  []inflight
	closed   bool

	placeholder *Texture

	pipelines *pipelineCache
	samplers  *samplerCache

	passes atomic.Uint64
}

var (
	_ evalgraph.ShaderBackend = (*Backend)(nil)
	_ evalgraph.TextureIO     = (*Backend)(nil)
)

// New creates a backend on an open device and its queue.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := options{compile: naga.DefaultOptions()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		setLogger(o.logger)
	}

	b := &Backend{
		device:    device,
		queue:     queue,
		compile:   o.compile,
		programs:  make(map[string]*program),
		textures:  make(map[*Texture]struct{}),
		pipelines: newPipelineCache(),
		samplers:  newSamplerCache(),
	}

	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	var err error
	if b.placeholder, err = newTexture(device, "evalgraph_placeholder", 1, 1, 1, usage); err != nil {
		return nil, err
	}
	slogger().Debug("gpu backend created")
	return b, nil
}

// SetLogger routes backend and hal diagnostics to l. A nil logger disables
// logging.
func (b *Backend) SetLogger(l *slog.Logger) { setLogger(l) }

// RegisterProgram compiles a WGSL fragment program for a node type.
// Prelude is prepended before compilation. The program must define fs_main.
func (b *Backend) RegisterProgram(nodeType, wgsl string) error {
	if wgsl == "" {
		return fmt.Errorf("%w: %q", ErrEmptyProgram, nodeType)
	}
	words, err := compileWGSL(Prelude+wgsl, b.compile)
	if err != nil {
		return fmt.Errorf("program %q: %w", nodeType, err)
	}
	return b.RegisterSPIRV(nodeType, words)
}

// RegisterSPIRV registers a precompiled module for a node type. The module
// must export vs_main and fs_main with the bindings declared by Prelude.
func (b *Backend) RegisterSPIRV(nodeType string, words []uint32) error {
	if len(words) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyProgram, nodeType)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	module, err := createShaderModule(b.device, nodeType, words)
	if err != nil {
		return fmt.Errorf("program %q: create shader module: %w", nodeType, err)
	}
	if old, ok := b.programs[nodeType]; ok {
		b.device.DestroyShaderModule(old.module)
	}
	b.programs[nodeType] = &program{nodeType: nodeType, module: module, hash: hashProgram(nodeType, words)}
	slogger().Debug("program registered", "type", nodeType, "words", len(words))
	return nil
}

// HasProgram reports whether a program is registered for the node type.
func (b *Backend) HasProgram(nodeType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.programs[nodeType]
	return ok
}

// CreateTexture allocates an RGBA8 target with 1 or 6 faces.
func (b *Backend) CreateTexture(width, height, faces int) (evalgraph.Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if faces != 1 && faces != 6 {
		return nil, fmt.Errorf("%w: %d", evalgraph.ErrInvalidFaces, faces)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	label := fmt.Sprintf("evalgraph_target_%dx%dx%d", width, height, faces)
	t, err := newTexture(b.device, label, width, height, faces, targetUsage)
	if err != nil {
		return nil, err
	}
	t.owner = b
	b.textures[t] = struct{}{}
	return t, nil
}

// DestroyTexture releases a texture created by CreateTexture. Foreign or
// already destroyed textures are ignored.
func (b *Backend) DestroyTexture(t evalgraph.Texture) {
	tex, ok := t.(*Texture)
	if !ok || tex.owner != b {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, live := b.textures[tex]; !live {
		return
	}
	// Passes still in flight may sample the texture.
	if len(b.pending) > 0 {
		_ = b.device.WaitIdle()
		b.reclaimLocked(true)
	}
	delete(b.textures, tex)
	tex.destroy(b.device)
}

func (b *Backend) own(t evalgraph.Texture) (*Texture, error) {
	tex, ok := t.(*Texture)
	if !ok || tex.owner != b {
		return nil, fmt.Errorf("%w: %T", ErrForeignTexture, t)
	}
	if _, live := b.textures[tex]; !live {
		return nil, fmt.Errorf("%w: destroyed", ErrForeignTexture)
	}
	return tex, nil
}

// Draw renders one full-screen pass into pass.Face of pass.Target.
func (b *Backend) Draw(pass *evalgraph.Pass) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.reclaimLocked(false)

	prog, ok := b.programs[pass.Type]
	if !ok {
		return fmt.Errorf("%w: %q", evalgraph.ErrUnknownProgram, pass.Type)
	}
	target, err := b.own(pass.Target)
	if err != nil {
		return err
	}
	if pass.Face < 0 || pass.Face >= target.Faces() {
		return fmt.Errorf("%w: %d of %d", ErrFaceOutOfRange, pass.Face, target.Faces())
	}

	var sig layoutSig
	var views [evalgraph.MaxInputs]hal.TextureView
	for slot, in := range pass.Inputs {
		if in.Texture == nil {
			views[slot] = b.placeholder.sampled
			continue
		}
		tex, err := b.own(in.Texture)
		if err != nil {
			return fmt.Errorf("input %d: %w", slot, err)
		}
		if tex.Cube() {
			sig |= 1 << slot
		}
		views[slot] = tex.sampled
	}

	pipeline, layout, err := b.pipelines.getOrCreate(b.device, prog, sig, pass.Blend)
	if err != nil {
		return err
	}

	params := uniformBlock(pass.Params)
	res := inflight{}
	if res.params, err = b.uniformBuffer("evalgraph_params", params); err != nil {
		return err
	}
	if res.info, err = b.uniformBuffer("evalgraph_info", encodeInfo(&pass.Info, target.width, target.height)); err != nil {
		b.release(&res)
		return err
	}

	entries := make([]gputypes.BindGroupEntry, 0, 2+2*evalgraph.MaxInputs)
	entries = append(entries,
		gputypes.BindGroupEntry{
			Binding:  bindingParams,
			Resource: gputypes.BufferBinding{Buffer: res.params.NativeHandle(), Size: uint64(len(params))},
		},
		gputypes.BindGroupEntry{
			Binding:  bindingInfo,
			Resource: gputypes.BufferBinding{Buffer: res.info.NativeHandle(), Size: infoSize},
		},
	)
	for slot := range views {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(bindingFirstInput + slot),
			Resource: gputypes.TextureViewBinding{TextureView: views[slot].NativeHandle()},
		})
	}
	for slot, in := range pass.Inputs {
		desc := in.Sampler
		if desc == (gputypes.SamplerDescriptor{}) {
			desc = gputypes.DefaultSamplerDescriptor()
		}
		s, err := b.samplers.get(b.device, desc)
		if err != nil {
			b.release(&res)
			return err
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(bindingFirstSample + slot),
			Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
		})
	}

	res.group, err = b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   pass.Type + "_bind_group",
		Layout:  layout.group,
		Entries: entries,
	})
	if err != nil {
		b.release(&res)
		return fmt.Errorf("create bind group: %w", err)
	}

	if err := b.encodePass(&res, pipeline, target.faceViews[pass.Face], pass.Type); err != nil {
		b.release(&res)
		return err
	}
	b.pending = append(b.pending, res)
	b.passes.Add(1)
	return nil
}

func (b *Backend) encodePass(res *inflight, pipeline hal.RenderPipeline, view hal.TextureView, label string) error {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		encoder.Destroy()
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, res.group, nil)
	rp.Draw(6, 1, 0, 0)
	rp.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	res.cmd = cmd
	idx, err := b.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	res.index = idx
	return nil
}

func (b *Backend) uniformBuffer(label string, data []byte) (hal.Buffer, error) {
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := b.queue.WriteBuffer(buf, 0, data); err != nil {
		b.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("write %s: %w", label, err)
	}
	return buf, nil
}

// reclaimLocked releases resources of completed submissions. With all set,
// every pending entry is released.
func (b *Backend) reclaimLocked(all bool) {
	if len(b.pending) == 0 {
		return
	}
	done := b.queue.PollCompleted()
	keep := b.pending[:0]
	for i := range b.pending {
		if all || b.pending[i].index <= done {
			b.release(&b.pending[i])
			continue
		}
		keep = append(keep, b.pending[i])
	}
	clear(b.pending[len(keep):])
	b.pending = keep
}

func (b *Backend) release(r *inflight) {
	if r.cmd != nil {
		b.device.FreeCommandBuffer(r.cmd)
	}
	if r.group != nil {
		b.device.DestroyBindGroup(r.group)
	}
	if r.info != nil {
		b.device.DestroyBuffer(r.info)
	}
	if r.params != nil {
		b.device.DestroyBuffer(r.params)
	}
	*r = inflight{}
}

// Stats returns a snapshot of resource counts.
func (b *Backend) Stats() Stats {
	hits, misses := b.pipelines.stats()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Programs:       len(b.programs),
		Textures:       len(b.textures),
		Passes:         b.passes.Load(),
		Pipelines:      b.pipelines.size(),
		PipelineHits:   hits,
		PipelineMisses: misses,
		Samplers:       b.samplers.len(),
		Pending:        len(b.pending),
	}
}

// Close waits for the device and releases every resource the backend owns.
// Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.device.WaitIdle(); err != nil {
		errs = append(errs, fmt.Errorf("wait idle: %w", err))
	}
	b.reclaimLocked(true)

	if n := len(b.textures); n > 0 {
		slogger().Warn("gpu backend closed with live textures", "count", n)
	}
	for t := range b.textures {
		t.destroy(b.device)
	}
	b.textures = nil
	b.placeholder.destroy(b.device)

	b.pipelines.destroyAll(b.device)
	b.samplers.destroyAll(b.device)
	for _, p := range b.programs {
		b.device.DestroyShaderModule(p.module)
	}
	b.programs = nil
	return errors.Join(errs...)
}
