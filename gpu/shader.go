package gpu

import (
	"fmt"
	"hash/fnv"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Prelude is prepended to every program registered with RegisterProgram.
// The EvalInfo layout matches the uniform written by encodeInfo.
const Prelude = `
struct EvalInfo {
    view_rot: mat4x4<f32>,
    mouse: vec4<f32>,
    target_index: i32,
    face: i32,
    frame: i32,
    time: f32,
    inputs_lo: vec4<i32>,
    inputs_hi: vec4<i32>,
    forced_dirty: u32,
    ui_pass: u32,
    width: u32,
    height: u32,
}

@group(0) @binding(1) var<uniform> info: EvalInfo;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> VertexOutput {
    var out: VertexOutput;
    var pos = array<vec2<f32>, 6>(
        vec2<f32>(-1.0, -1.0),
        vec2<f32>(1.0, -1.0),
        vec2<f32>(-1.0, 1.0),
        vec2<f32>(-1.0, 1.0),
        vec2<f32>(1.0, -1.0),
        vec2<f32>(1.0, 1.0)
    );
    let p = pos[idx];
    out.position = vec4<f32>(p.x, p.y, 0.0, 1.0);
    out.uv = vec2<f32>(p.x * 0.5 + 0.5, 0.5 - p.y * 0.5);
    return out;
}
`

const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)

// program is a registered node program.
type program struct {
	nodeType string
	module   hal.ShaderModule
	hash     uint64
}

// compileWGSL compiles WGSL source to SPIR-V words.
func compileWGSL(source string, opts naga.CompileOptions) ([]uint32, error) {
	spirvBytes, err := naga.CompileWithOptions(source, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// hashProgram identifies a program by node type and code.
func hashProgram(nodeType string, words []uint32) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(nodeType))
	var b [4]byte
	for _, w := range words {
		b[0], b[1], b[2], b[3] = byte(w), byte(w>>8), byte(w>>16), byte(w>>24)
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}

func createShaderModule(device hal.Device, label string, words []uint32) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: words,
		},
	})
}
