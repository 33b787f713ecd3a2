package evalgraph

import "github.com/gogpu/gputypes"

// Filter is a texture filtering mode. The zero value is FilterLinear.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

// Wrap is a texture addressing mode. The zero value is WrapRepeat.
type Wrap uint8

const (
	WrapRepeat Wrap = iota
	WrapClampToEdge
	WrapClampToBorder
	WrapMirroredRepeat
)

// InputSampler is the sampling configuration of one input slot.
type InputSampler struct {
	MinFilter Filter
	MagFilter Filter
	WrapU     Wrap
	WrapV     Wrap
}

func (f Filter) mode() gputypes.FilterMode {
	if f == FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

// WebGPU has no border color addressing; border clamps to the edge.
func (w Wrap) mode() gputypes.AddressMode {
	switch w {
	case WrapClampToEdge, WrapClampToBorder:
		return gputypes.AddressModeClampToEdge
	case WrapMirroredRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeRepeat
	}
}

// Descriptor converts the slot configuration to a sampler descriptor.
func (s InputSampler) Descriptor() gputypes.SamplerDescriptor {
	d := gputypes.DefaultSamplerDescriptor()
	d.AddressModeU = s.WrapU.mode()
	d.AddressModeV = s.WrapV.mode()
	d.MinFilter = s.MinFilter.mode()
	d.MagFilter = s.MagFilter.mode()
	return d
}
