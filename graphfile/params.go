package graphfile

import (
	"fmt"
	"slices"

	"github.com/gogpu/evalgraph/params"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// EncodeParams encodes a parameter object into a node blob.
//
// Attributes are written in sorted key order. Numbers become float32,
// booleans a uint32 0 or 1, strings a length-prefixed padded string. Lists
// and tuples write their elements in order and nested objects recurse with
// sorted keys. A null value yields an empty blob.
func EncodeParams(v cty.Value) ([]byte, error) {
	if v == cty.NilVal {
		return nil, nil
	}
	v, _ = v.UnmarkDeep()
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("%w: params must be an object, got %s", ErrInvalidValue, ty.FriendlyName())
	}
	var w params.Writer
	if err := encodeValue(&w, "params", v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeValue(w *params.Writer, path string, v cty.Value) error {
	if !v.IsKnown() {
		return fmt.Errorf("%w: %s is unknown", ErrInvalidValue, path)
	}
	if v.IsNull() {
		return fmt.Errorf("%w: %s is null", ErrInvalidValue, path)
	}

	ty := v.Type()
	switch {
	case ty == cty.Number:
		var f float32
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, path, err)
		}
		w.Float32(f)
	case ty == cty.Bool:
		w.Bool(v.True())
	case ty == cty.String:
		w.String(v.AsString())
	case ty.IsObjectType() || ty.IsMapType():
		attrs := v.AsValueMap()
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := encodeValue(w, path+"."+k, attrs[k]); err != nil {
				return err
			}
		}
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		i := 0
		for it := v.ElementIterator(); it.Next(); i++ {
			_, elem := it.Element()
			if err := encodeValue(w, fmt.Sprintf("%s[%d]", path, i), elem); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s has unsupported type %s", ErrInvalidValue, path, ty.FriendlyName())
	}
	return nil
}
