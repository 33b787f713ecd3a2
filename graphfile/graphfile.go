// Package graphfile loads evaluation graphs from HCL or YAML descriptions.
//
// Both formats describe the same structure: an optional default output
// size, a list of named nodes and an optional explicit evaluation order.
//
//	size = [512, 512]
//
//	node "sky" {
//	  type     = "sky"
//	  backends = ["shader"]
//	  faces    = 6
//	}
//
//	node "tint" {
//	  type   = "tint"
//	  inputs = ["sky"]
//	  blend  = ["src_alpha", "one_minus_src_alpha"]
//	  params = { color = [1, 0.5, 0.5, 1] }
//
//	  sampler {
//	    slot   = 0
//	    min    = "nearest"
//	    wrap_u = "clamp_to_edge"
//	  }
//	}
//
// Inputs name producer nodes by slot; an empty string leaves a slot
// unconnected. Node names are compared after NFC normalization. Parameters
// are encoded into the node blob as described by EncodeParams.
package graphfile

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gogpu/evalgraph"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("graphfile: duplicate node")

	// ErrUnknownNode is returned when an input or order entry names no node.
	ErrUnknownNode = errors.New("graphfile: unknown node")

	// ErrInvalidValue is returned for an unrecognized enumeration value.
	ErrInvalidValue = errors.New("graphfile: invalid value")

	// ErrUnknownExtension is returned by Load for unsupported file types.
	ErrUnknownExtension = errors.New("graphfile: unknown file extension")
)

// File is a decoded graph description.
type File struct {
	// Width and Height are the default output size, zero when unset.
	Width  int
	Height int

	Nodes []NodeDesc

	// Order, when set, replaces the computed evaluation order.
	Order []string
}

// NodeDesc describes one node.
type NodeDesc struct {
	Name     string
	Type     string
	Backends []string
	Faces    int
	Inputs   []string
	Samplers []SamplerDesc
	Blend    []string
	Params   cty.Value
}

// SamplerDesc configures the sampler of one input slot. Empty fields keep
// the defaults (linear, repeat).
type SamplerDesc struct {
	Slot  int
	Min   string
	Mag   string
	WrapU string
	WrapV string
}

// Load reads a graph description, choosing the format by extension.
func Load(path string) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return LoadHCL(path)
	case ".yaml", ".yml":
		return LoadYAML(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, filepath.Ext(path))
	}
}

// Build creates a graph from the description. Node ids follow the order of
// the nodes in the file. The returned map resolves normalized names to ids.
func (f *File) Build(opts ...evalgraph.GraphOption) (*evalgraph.Graph, map[string]evalgraph.NodeID, error) {
	g := evalgraph.NewGraph(opts...)
	ids := make(map[string]evalgraph.NodeID, len(f.Nodes))

	for i := range f.Nodes {
		d := &f.Nodes[i]
		name := norm.NFC.String(d.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("graphfile: node %d has no name", i)
		}
		if _, ok := ids[name]; ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateNode, name)
		}
		n, err := d.node()
		if err != nil {
			return nil, nil, fmt.Errorf("graphfile: node %q: %w", name, err)
		}
		id, err := g.AddNode(n)
		if err != nil {
			return nil, nil, fmt.Errorf("graphfile: node %q: %w", name, err)
		}
		ids[name] = id
	}

	// Inputs are connected once every node exists so files may list
	// consumers before producers.
	for i := range f.Nodes {
		d := &f.Nodes[i]
		target := ids[norm.NFC.String(d.Name)]
		for slot, src := range d.Inputs {
			if src == "" {
				continue
			}
			source, err := lookup(ids, src)
			if err != nil {
				return nil, nil, fmt.Errorf("graphfile: node %q slot %d: %w", d.Name, slot, err)
			}
			if err := g.AddEvaluationInput(target, slot, source); err != nil {
				return nil, nil, fmt.Errorf("graphfile: node %q slot %d: %w", d.Name, slot, err)
			}
		}
	}

	if len(f.Order) > 0 {
		order := make([]evalgraph.NodeID, 0, len(f.Order))
		for _, name := range f.Order {
			id, err := lookup(ids, name)
			if err != nil {
				return nil, nil, fmt.Errorf("graphfile: order: %w", err)
			}
			order = append(order, id)
		}
		g.SetEvaluationOrder(order)
	}

	slogger().Debug("graphfile: built graph", "nodes", g.NodeCount(), "explicit_order", len(f.Order) > 0)
	return g, ids, nil
}

func lookup(ids map[string]evalgraph.NodeID, name string) (evalgraph.NodeID, error) {
	id, ok := ids[norm.NFC.String(name)]
	if !ok {
		return evalgraph.NoInput, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return id, nil
}

// node converts everything but the inputs.
func (d *NodeDesc) node() (evalgraph.Node, error) {
	mask, err := parseBackends(d.Backends)
	if err != nil {
		return evalgraph.Node{}, err
	}
	n := evalgraph.NewNode(d.Type, mask)
	if d.Faces != 0 {
		n.Faces = d.Faces
	}

	for _, s := range d.Samplers {
		if s.Slot < 0 || s.Slot >= evalgraph.MaxInputs {
			return n, fmt.Errorf("%w: sampler slot %d", evalgraph.ErrSlotOutOfRange, s.Slot)
		}
		smp, err := s.sampler()
		if err != nil {
			return n, err
		}
		n.Samplers[s.Slot] = smp
	}

	switch len(d.Blend) {
	case 0:
	case 2:
		if n.BlendSrc, err = parseEnum("blend", blendModes, d.Blend[0]); err != nil {
			return n, err
		}
		if n.BlendDst, err = parseEnum("blend", blendModes, d.Blend[1]); err != nil {
			return n, err
		}
	default:
		return n, fmt.Errorf("%w: blend needs [src, dst], got %d values", ErrInvalidValue, len(d.Blend))
	}

	if n.Params, err = EncodeParams(d.Params); err != nil {
		return n, err
	}
	return n, nil
}

func (s SamplerDesc) sampler() (evalgraph.InputSampler, error) {
	var out evalgraph.InputSampler
	var err error
	if out.MinFilter, err = parseEnum("filter", filters, s.Min); err != nil {
		return out, err
	}
	if out.MagFilter, err = parseEnum("filter", filters, s.Mag); err != nil {
		return out, err
	}
	if out.WrapU, err = parseEnum("wrap", wraps, s.WrapU); err != nil {
		return out, err
	}
	if out.WrapV, err = parseEnum("wrap", wraps, s.WrapV); err != nil {
		return out, err
	}
	return out, nil
}

var backends = map[string]evalgraph.BackendMask{
	"native": evalgraph.BackendNative,
	"shader": evalgraph.BackendShader,
}

// parseBackends defaults to the shader backend.
func parseBackends(names []string) (evalgraph.BackendMask, error) {
	if len(names) == 0 {
		return evalgraph.BackendShader, nil
	}
	var mask evalgraph.BackendMask
	for _, name := range names {
		b, err := parseEnum("backend", backends, name)
		if err != nil {
			return 0, err
		}
		mask |= b
	}
	return mask, nil
}

var filters = map[string]evalgraph.Filter{
	"":        evalgraph.FilterLinear,
	"linear":  evalgraph.FilterLinear,
	"nearest": evalgraph.FilterNearest,
}

var wraps = map[string]evalgraph.Wrap{
	"":                evalgraph.WrapRepeat,
	"repeat":          evalgraph.WrapRepeat,
	"clamp_to_edge":   evalgraph.WrapClampToEdge,
	"clamp_to_border": evalgraph.WrapClampToBorder,
	"mirrored_repeat": evalgraph.WrapMirroredRepeat,
}

var blendModes = map[string]evalgraph.BlendMode{
	"zero":                     evalgraph.BlendZero,
	"one":                      evalgraph.BlendOne,
	"src_color":                evalgraph.BlendSrcColor,
	"one_minus_src_color":      evalgraph.BlendOneMinusSrcColor,
	"dst_color":                evalgraph.BlendDstColor,
	"one_minus_dst_color":      evalgraph.BlendOneMinusDstColor,
	"src_alpha":                evalgraph.BlendSrcAlpha,
	"one_minus_src_alpha":      evalgraph.BlendOneMinusSrcAlpha,
	"dst_alpha":                evalgraph.BlendDstAlpha,
	"one_minus_dst_alpha":      evalgraph.BlendOneMinusDstAlpha,
	"constant_color":           evalgraph.BlendConstantColor,
	"one_minus_constant_color": evalgraph.BlendOneMinusConstantColor,
	"constant_alpha":           evalgraph.BlendConstantAlpha,
	"one_minus_constant_alpha": evalgraph.BlendOneMinusConstantAlpha,
	"src_alpha_saturate":       evalgraph.BlendSrcAlphaSaturate,
}

func parseEnum[T any](kind string, values map[string]T, name string) (T, error) {
	v, ok := values[strings.ToLower(name)]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrInvalidValue, kind, name)
	}
	return v, nil
}

// SetLogger sets the package logger.
func SetLogger(l *slog.Logger) { setLogger(l) }
