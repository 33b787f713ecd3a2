package evalgraph

import "github.com/gogpu/gputypes"

// BlendMode selects a blend factor. The zero value means unset.
// The order matches the classic fixed-function enumeration.
type BlendMode uint8

const (
	BlendUnset BlendMode = iota
	BlendZero
	BlendOne
	BlendSrcColor
	BlendOneMinusSrcColor
	BlendDstColor
	BlendOneMinusDstColor
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
	BlendConstantColor
	BlendOneMinusConstantColor
	BlendConstantAlpha
	BlendOneMinusConstantAlpha
	BlendSrcAlphaSaturate

	blendModeEnd
)

// BlendModeCount is the number of valid blend enumerations.
const BlendModeCount = int(blendModeEnd) - 1

// blendFactors maps each mode to its WebGPU factor. WebGPU has a single
// constant, so the color and alpha constant variants share it.
var blendFactors = [...]gputypes.BlendFactor{
	BlendZero:                  gputypes.BlendFactorZero,
	BlendOne:                   gputypes.BlendFactorOne,
	BlendSrcColor:              gputypes.BlendFactorSrc,
	BlendOneMinusSrcColor:      gputypes.BlendFactorOneMinusSrc,
	BlendDstColor:              gputypes.BlendFactorDst,
	BlendOneMinusDstColor:      gputypes.BlendFactorOneMinusDst,
	BlendSrcAlpha:              gputypes.BlendFactorSrcAlpha,
	BlendOneMinusSrcAlpha:      gputypes.BlendFactorOneMinusSrcAlpha,
	BlendDstAlpha:              gputypes.BlendFactorDstAlpha,
	BlendOneMinusDstAlpha:      gputypes.BlendFactorOneMinusDstAlpha,
	BlendConstantColor:         gputypes.BlendFactorConstant,
	BlendOneMinusConstantColor: gputypes.BlendFactorOneMinusConstant,
	BlendConstantAlpha:         gputypes.BlendFactorConstant,
	BlendOneMinusConstantAlpha: gputypes.BlendFactorOneMinusConstant,
	BlendSrcAlphaSaturate:      gputypes.BlendFactorSrcAlphaSaturated,
}

// Valid reports whether m names a blend factor.
func (m BlendMode) Valid() bool { return m > BlendUnset && m < blendModeEnd }

// Factor returns the WebGPU factor for m, or def when m is unset or out of range.
func (m BlendMode) Factor(def gputypes.BlendFactor) gputypes.BlendFactor {
	if !m.Valid() {
		return def
	}
	return blendFactors[m]
}

// ResolveBlend builds the blend state for a source/destination pair.
// Each side falls back independently to replace (src ONE, dst ZERO).
func ResolveBlend(src, dst BlendMode) gputypes.BlendState {
	c := gputypes.BlendComponent{
		SrcFactor: src.Factor(gputypes.BlendFactorOne),
		DstFactor: dst.Factor(gputypes.BlendFactorZero),
		Operation: gputypes.BlendOperationAdd,
	}
	return gputypes.BlendState{Color: c, Alpha: c}
}
