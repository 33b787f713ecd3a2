package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/evalgraph"
)

// infoSize is the byte size of EvalInfo in Prelude.
const infoSize = 144

// minUniformSize is the smallest uniform binding the backend creates.
const minUniformSize = 16

// encodeInfo packs the evaluation info into the EvalInfo uniform layout.
func encodeInfo(info *evalgraph.EvaluationInfo, width, height int) []byte {
	buf := make([]byte, infoSize)
	le := binary.LittleEndian
	off := 0
	putF := func(v float32) {
		le.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	putU := func(v uint32) {
		le.PutUint32(buf[off:], v)
		off += 4
	}
	for _, v := range info.ViewRot {
		putF(v)
	}
	for _, v := range info.Mouse {
		putF(v)
	}
	putU(uint32(int32(info.TargetIndex)))
	putU(uint32(int32(info.Face)))
	putU(uint32(int32(info.Frame)))
	putF(info.Time)
	for _, id := range info.InputIndices {
		putU(uint32(int32(id)))
	}
	putU(boolBits(info.ForcedDirty))
	putU(boolBits(info.UIPass))
	putU(uint32(width))
	putU(uint32(height))
	return buf
}

// uniformBlock pads a parameter blob to a 16-byte multiple, never empty.
func uniformBlock(params []byte) []byte {
	n := (len(params) + 15) &^ 15
	if n < minUniformSize {
		n = minUniformSize
	}
	out := make([]byte, n)
	copy(out, params)
	return out
}

func boolBits(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
