package evalgraph

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
)

// Texture is an opaque output resource owned by a ShaderBackend.
type Texture interface {
	Width() int
	Height() int
	// Faces returns 1 for a 2D texture or 6 for a cubemap.
	Faces() int
}

// Binding is a texture bound to an input slot together with its sampler.
type Binding struct {
	Texture Texture
	Sampler gputypes.SamplerDescriptor
}

// Pass describes one full-screen shader pass into one face of a target.
type Pass struct {
	Node   NodeID
	Type   string
	Target Texture
	Face   int
	Blend  gputypes.BlendState

	// Inputs holds one binding per slot. Unconnected slots have a nil Texture.
	Inputs [MaxInputs]Binding

	Params []byte
	Info   EvaluationInfo
}

// ShaderBackend renders shader passes into textures it owns.
type ShaderBackend interface {
	// CreateTexture allocates an RGBA render target with the given face count.
	CreateTexture(width, height, faces int) (Texture, error)

	// DestroyTexture releases a texture created by CreateTexture.
	DestroyTexture(t Texture)

	// HasProgram reports whether a program exists for the node type.
	HasProgram(nodeType string) bool

	// Draw renders one pass over the full-screen quad.
	Draw(pass *Pass) error
}

// TextureIO is implemented by shader backends that can move pixels between
// host images and textures.
type TextureIO interface {
	Upload(t Texture, face int, img image.Image) error
	Download(t Texture, face int) (*image.RGBA, error)
}

// Status is the result code of a native function.
type Status int

const (
	// StatusOK means the function completed.
	StatusOK Status = iota

	// StatusError means the function failed.
	StatusError

	// StatusProcessing means the function started work that completes on a
	// later run. The node stays dirty and its consumers are deferred.
	StatusProcessing
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusProcessing:
		return "processing"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// NativeFunc is a compiled native node function.
type NativeFunc func(s *Scope, params []byte, info EvaluationInfo) (Status, error)

// NativeTable resolves native functions by node type.
type NativeTable interface {
	Lookup(nodeType string) (NativeFunc, bool)
}

// StreamEncoder writes a sequence of frames to a named output.
type StreamEncoder interface {
	Init(filename string, width, height, framerate, bitrate int) error
	AddFrame(img image.Image) error
	Finish() error
}

// StreamFactory creates an uninitialized StreamEncoder for a filename.
type StreamFactory func(filename string) (StreamEncoder, error)

// Catalog validates that a node type can run on the backends in its mask.
type Catalog interface {
	Supports(nodeType string, mask BackendMask) error
}

// BackendCatalog is a Catalog backed by a shader backend and a native table.
// Either may be nil, in which case nodes requiring it are rejected.
type BackendCatalog struct {
	Shader ShaderBackend
	Native NativeTable
}

// Supports implements Catalog.
func (c BackendCatalog) Supports(nodeType string, mask BackendMask) error {
	if mask&(BackendNative|BackendShader) == 0 {
		return fmt.Errorf("%w: %q has empty mask", ErrNoBackend, nodeType)
	}
	var errs []error
	if mask&BackendNative != 0 {
		switch {
		case c.Native == nil:
			errs = append(errs, fmt.Errorf("%w: %q needs native table", ErrNoBackend, nodeType))
		default:
			if _, ok := c.Native.Lookup(nodeType); !ok {
				errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownFunction, nodeType))
			}
		}
	}
	if mask&BackendShader != 0 {
		switch {
		case c.Shader == nil:
			errs = append(errs, fmt.Errorf("%w: %q needs shader backend", ErrNoBackend, nodeType))
		case !c.Shader.HasProgram(nodeType):
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProgram, nodeType))
		}
	}
	return errors.Join(errs...)
}
