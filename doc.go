// Package evalgraph is an incremental dataflow evaluation engine for
// node-based texture graphs.
//
// # Overview
//
// A Graph holds nodes with up to eight ordered input slots. Each node runs
// on a native function, a GPU shader pass, or both, selected by its
// BackendMask. A Context evaluates the graph: it tracks which outputs are
// stale, executes nodes in topological order, dispatches each one to its
// backends and owns the resulting textures.
//
// # Quick Start
//
//	g := evalgraph.NewGraph()
//	src, _ := g.AddNode(evalgraph.NewNode("noise", evalgraph.BackendShader))
//	blur := evalgraph.NewNode("blur", evalgraph.BackendShader)
//	blur.Inputs[0] = src
//	out, _ := g.AddNode(blur)
//
//	ctx, err := evalgraph.NewContext(g, evalgraph.WithShaderBackend(backend))
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	ctx.RunAll()
//	tex := ctx.GetEvaluationTexture(out)
//
// # Run Modes
//
//   - RunAll executes every node into a per-node preview output.
//   - RunDirty executes only stale nodes, in topological order.
//   - RunSingle executes one node with caller-supplied EvaluationInfo.
//   - RunBackward executes the dependency closure of one node into pooled
//     outputs, recycling each texture after its last consumer has run.
//
// Staleness is propagated with SetTargetDirty.
//
// # Cooperative Deferral
//
// A native function may return StatusProcessing to signal unfinished
// asynchronous work. The node and every consumer reached in the same run
// are deferred and stay dirty; a later RunDirty retries them. The engine
// never blocks and performs no internal parallelism.
//
// # Backends
//
// Package gpu provides a ShaderBackend on gogpu/wgpu with WGSL programs
// compiled by gogpu/naga. Package native provides a NativeTable with
// pluggable compilers. Package stream provides StreamEncoder
// implementations and package graphfile loads graphs from HCL or YAML.
package evalgraph
