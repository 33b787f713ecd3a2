package graphfile

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

type yamlRoot struct {
	Size  []int      `yaml:"size"`
	Order []string   `yaml:"order"`
	Nodes []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Backends []string       `yaml:"backends"`
	Faces    int            `yaml:"faces"`
	Inputs   []string       `yaml:"inputs"`
	Blend    []string       `yaml:"blend"`
	Params   map[string]any `yaml:"params"`
	Samplers []yamlSampler  `yaml:"samplers"`
}

type yamlSampler struct {
	Slot  int    `yaml:"slot"`
	Min   string `yaml:"min"`
	Mag   string `yaml:"mag"`
	WrapU string `yaml:"wrap_u"`
	WrapV string `yaml:"wrap_v"`
}

// LoadYAML reads a YAML graph description from path.
func LoadYAML(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(src, path)
}

// ParseYAML decodes a YAML graph description. Unknown fields are rejected.
func ParseYAML(src []byte, filename string) (*File, error) {
	var root yamlRoot
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", filename, err)
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
			v, err := toCty(n.Params)
			if err != nil {
				return nil, fmt.Errorf("graphfile: %s: node %q params: %w", filename, n.Name, err)
			}
			d.Params = v
		}
		for _, s := range n.Samplers {
			d.Samplers = append(d.Samplers, SamplerDesc(s))
		}
		f.Nodes = append(f.Nodes, d)
	}

	slogger().Debug("graphfile: loaded YAML", "file", filename, "nodes", len(f.Nodes))
	return f, nil
}

// toCty converts a decoded YAML value so both formats share EncodeParams.
func toCty(v any) (cty.Value, error) {
	switch v := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case uint64:
		return cty.NumberUIntVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case string:
		return cty.StringVal(v), nil
	case []any:
		elems := make([]cty.Value, len(v))
		for i, e := range v {
			ev, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(v))
		for k, e := range v {
			ev, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = ev
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("%w: unsupported YAML value %T", ErrInvalidValue, v)
	}
}
