package graphfile

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

type hclRoot struct {
	Size  []int      `hcl:"size,optional"`
	Order []string   `hcl:"order,optional"`
	Nodes []*hclNode `hcl:"node,block"`
}

type hclNode struct {
	Name     string        `hcl:"name,label"`
	Type     string        `hcl:"type"`
	Backends []string      `hcl:"backends,optional"`
	Faces    int           `hcl:"faces,optional"`
	Inputs   []string      `hcl:"inputs,optional"`
	Blend    []string      `hcl:"blend,optional"`
	Params   *cty.Value    `hcl:"params,optional"`
	Samplers []*hclSampler `hcl:"sampler,block"`
}

type hclSampler struct {
	Slot  int    `hcl:"slot"`
	Min   string `hcl:"min,optional"`
	Mag   string `hcl:"mag,optional"`
	WrapU string `hcl:"wrap_u,optional"`
	WrapV string `hcl:"wrap_v,optional"`
}

// LoadHCL reads an HCL graph description from path.
func LoadHCL(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseHCL(src, path)
}

// ParseHCL decodes an HCL graph description. filename is used in
// diagnostics only.
func ParseHCL(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root hclRoot
	diags = gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	f := &File{Order: root.Order}
	if err := setSize(f, root.Size); err != nil {
		return nil, fmt.Errorf("graphfile: %s: %w", filename, err)
	}
	for _, n := range root.Nodes {
		d := NodeDesc{
			Name:     n.Name,
			Type:     n.Type,
			Backends: n.Backends,
			Faces:    n.Faces,
			Inputs:   n.Inputs,
			Blend:    n.Blend,
		}
		if n.Params != nil {
			d.Params = *n.Params
		}
		for _, s := range n.Samplers {
			d.Samplers = append(d.Samplers, SamplerDesc{
				Slot:  s.Slot,
				Min:   s.Min,
				Mag:   s.Mag,
				WrapU: s.WrapU,
				WrapV: s.WrapV,
			})
		}
		f.Nodes = append(f.Nodes, d)
	}

	slogger().Debug("graphfile: loaded HCL", "file", filename, "nodes", len(f.Nodes))
	return f, nil
}

func setSize(f *File, size []int) error {
	switch len(size) {
	case 0:
		return nil
	case 2:
		if size[0] <= 0 || size[1] <= 0 {
			return fmt.Errorf("%w: size %dx%d", ErrInvalidValue, size[0], size[1])
		}
		f.Width, f.Height = size[0], size[1]
		return nil
	default:
		return fmt.Errorf("%w: size needs [width, height], got %d values", ErrInvalidValue, len(size))
	}
}
