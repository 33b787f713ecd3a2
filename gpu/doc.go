// Package gpu implements evalgraph.ShaderBackend on top of gogpu/wgpu hal.
//
// Node programs are WGSL fragment shaders compiled to SPIR-V with naga.
// Every program is prefixed with [Prelude], which declares the evaluation
// info uniform and a vs_main entry point that covers the target with a
// full-screen quad. A program declares only what it samples:
//
//	@group(0) @binding(0) var<uniform> params: MyParams;
//	@group(0) @binding(2) var input0: texture_2d<f32>;
//	@group(0) @binding(10) var sampler0: sampler;
//
//	@fragment
//	fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
//	    return textureSample(input0, sampler0, in.uv) * params.gain;
//	}
//
// Bindings 2 through 9 hold the input slot textures and bindings 10 through
// 17 hold their samplers. Cubemap inputs are bound as texture_cube<f32>; a
// slot with no connection is bound to a 1x1 transparent placeholder.
//
// Targets use RGBA8Unorm. A cubemap target is a six-layer 2D array rendered
// one face per pass.
//
// # Quick Start
//
//	b, err := gpu.New(device, queue)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//	if err := b.RegisterProgram("blur", blurWGSL); err != nil {
//	    return err
//	}
//	ctx, err := evalgraph.NewContext(g, evalgraph.WithShaderBackend(b))
package gpu
