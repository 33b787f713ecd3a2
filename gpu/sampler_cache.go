package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// samplerCache shares one hal.Sampler per distinct descriptor.
type samplerCache struct {
	mu       sync.Mutex
	samplers map[gputypes.SamplerDescriptor]hal.Sampler
}

func newSamplerCache() *samplerCache {
	return &samplerCache{samplers: make(map[gputypes.SamplerDescriptor]hal.Sampler)}
}

func (c *samplerCache) get(device hal.Device, desc gputypes.SamplerDescriptor) (hal.Sampler, error) {
	desc.Label = ""

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.samplers[desc]; ok {
		return s, nil
	}
	s, err := device.CreateSampler(halSampler(desc))
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	c.samplers[desc] = s
	return s, nil
}

func (c *samplerCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samplers)
}

func (c *samplerCache) destroyAll(device hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.samplers {
		device.DestroySampler(s)
	}
	c.samplers = make(map[gputypes.SamplerDescriptor]hal.Sampler)
}

func halSampler(d gputypes.SamplerDescriptor) *hal.SamplerDescriptor {
	mip := gputypes.FilterModeNearest
	if d.MipmapFilter == gputypes.MipmapFilterModeLinear {
		mip = gputypes.FilterModeLinear
	}
	return &hal.SamplerDescriptor{
		Label:        "evalgraph_sampler",
		AddressModeU: d.AddressModeU,
		AddressModeV: d.AddressModeV,
		AddressModeW: d.AddressModeW,
		MagFilter:    d.MagFilter,
		MinFilter:    d.MinFilter,
		MipmapFilter: mip,
		LodMinClamp:  d.LodMinClamp,
		LodMaxClamp:  d.LodMaxClamp,
		Compare:      d.Compare,
		Anisotropy:   max(d.MaxAnisotropy, 1),
	}
}
