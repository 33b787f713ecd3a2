package gpu

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Binding numbers shared by Prelude and the bind group layout.
const (
	bindingParams      = 0
	bindingInfo        = 1
	bindingFirstInput  = 2
	bindingFirstSample = bindingFirstInput + evalgraph.MaxInputs
)

// layoutSig records which input slots are bound as cubemaps, one bit per slot.
type layoutSig uint8

func (s layoutSig) cube(slot int) bool { return s&(1<<slot) != 0 }

// bindLayout is a bind group layout and the pipeline layout wrapping it.
type bindLayout struct {
	group    hal.BindGroupLayout
	pipeline hal.PipelineLayout
}

// pipelineCache caches bind layouts per slot signature and render pipelines
// per (program, signature, blend).
//
// It is safe for concurrent use. Lookups take a read lock; creation takes the
// write lock and double-checks.
type pipelineCache struct {
	mu        sync.RWMutex
	layouts   map[layoutSig]*bindLayout
	pipelines map[uint64]hal.RenderPipeline

	hits   uint64
	misses uint64
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{
		layouts:   make(map[layoutSig]*bindLayout),
		pipelines: make(map[uint64]hal.RenderPipeline),
	}
}

// getOrCreate returns the pipeline and layout for one draw.
func (c *pipelineCache) getOrCreate(
	device hal.Device,
	prog *program,
	sig layoutSig,
	blend gputypes.BlendState,
) (hal.RenderPipeline, *bindLayout, error) {
	key := hashPipelineKey(prog.hash, sig, blend)

	c.mu.RLock()
	pipeline, ok := c.pipelines[key]
	layout := c.layouts[sig]
	c.mu.RUnlock()
	if ok {
		atomic.AddUint64(&c.hits, 1)
		return pipeline, layout, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	layout, err := c.layoutLocked(device, sig)
	if err != nil {
		return nil, nil, err
	}
	if pipeline, ok := c.pipelines[key]; ok {
		atomic.AddUint64(&c.hits, 1)
		return pipeline, layout, nil
	}

	pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  prog.nodeType + "_pipeline",
		Layout: layout.pipeline,
		Vertex: hal.VertexState{
			Module:     prog.module,
			EntryPoint: vertexEntry,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     prog.module,
			EntryPoint: fragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    TextureFormat,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create pipeline %q: %w", prog.nodeType, err)
	}
	c.pipelines[key] = pipeline
	atomic.AddUint64(&c.misses, 1)
	slogger().Debug("pipeline created", "type", prog.nodeType, "cube_slots", uint8(sig))
	return pipeline, layout, nil
}

func (c *pipelineCache) layoutLocked(device hal.Device, sig layoutSig) (*bindLayout, error) {
	if l, ok := c.layouts[sig]; ok {
		return l, nil
	}
	group, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("evalgraph_bgl_%02x", uint8(sig)),
		Entries: layoutEntries(sig),
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	pl, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("evalgraph_pl_%02x", uint8(sig)),
		BindGroupLayouts: []hal.BindGroupLayout{group},
	})
	if err != nil {
		device.DestroyBindGroupLayout(group)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	l := &bindLayout{group: group, pipeline: pl}
	c.layouts[sig] = l
	return l, nil
}

func layoutEntries(sig layoutSig) []gputypes.BindGroupLayoutEntry {
	stages := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    bindingParams,
			Visibility: stages,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
		{
			Binding:    bindingInfo,
			Visibility: stages,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: infoSize,
			},
		},
	}
	for slot := 0; slot < evalgraph.MaxInputs; slot++ {
		dim := gputypes.TextureViewDimension2D
		if sig.cube(slot) {
			dim = gputypes.TextureViewDimensionCube
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(bindingFirstInput + slot),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: dim,
			},
		})
	}
	for slot := 0; slot < evalgraph.MaxInputs; slot++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(bindingFirstSample + slot),
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		})
	}
	return entries
}

func hashPipelineKey(programHash uint64, sig layoutSig, blend gputypes.BlendState) uint64 {
	h := fnv.New64a()
	writeUint64(h, programHash)
	writeUint32(h, uint32(sig))
	for _, c := range [2]gputypes.BlendComponent{blend.Color, blend.Alpha} {
		writeUint32(h, uint32(c.SrcFactor))
		writeUint32(h, uint32(c.DstFactor))
		writeUint32(h, uint32(c.Operation))
	}
	return h.Sum64()
}

func writeUint32(h hash.Hash64, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, _ = h.Write(b[:])
}

func writeUint64(h hash.Hash64, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = h.Write(b[:])
}

// stats returns cache hits and misses.
func (c *pipelineCache) stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

func (c *pipelineCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// destroyAll releases pipelines before the layouts they reference.
func (c *pipelineCache) destroyAll(device hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pipelines {
		device.DestroyRenderPipeline(p)
	}
	for _, l := range c.layouts {
		device.DestroyPipelineLayout(l.pipeline)
		device.DestroyBindGroupLayout(l.group)
	}
	c.pipelines = make(map[uint64]hal.RenderPipeline)
	c.layouts = make(map[layoutSig]*bindLayout)
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.misses, 0)
}
