package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TextureFormat is the format of every texture the backend creates.
const TextureFormat = gputypes.TextureFormatRGBA8Unorm

const targetUsage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// Texture is a render target owned by a Backend. It implements
// evalgraph.Texture.
type Texture struct {
	owner *Backend
	label string

	tex hal.Texture

	// faceViews holds one single-layer 2D view per face for rendering.
	faceViews []hal.TextureView

	// sampled is the view bound when the texture feeds another node:
	// 2D for one face, Cube for six.
	sampled hal.TextureView

	width, height int
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.height }

// Faces returns 1 for a 2D texture or 6 for a cubemap.
func (t *Texture) Faces() int { return len(t.faceViews) }

// Cube reports whether the texture is a cubemap.
func (t *Texture) Cube() bool { return len(t.faceViews) == 6 }

func (t *Texture) viewDimension() gputypes.TextureViewDimension {
	if t.Cube() {
		return gputypes.TextureViewDimensionCube
	}
	return gputypes.TextureViewDimension2D
}

func newTexture(device hal.Device, label string, width, height, faces int, usage gputypes.TextureUsage) (*Texture, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: uint32(faces),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        TextureFormat,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", label, err)
	}

	t := &Texture{label: label, tex: tex, width: width, height: height}
	for face := 0; face < faces; face++ {
		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s_face%d", label, face),
			Format:          TextureFormat,
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			BaseArrayLayer:  uint32(face),
			ArrayLayerCount: 1,
		})
		if err != nil {
			t.destroy(device)
			return nil, fmt.Errorf("create view %s face %d: %w", label, face, err)
		}
		t.faceViews = append(t.faceViews, view)
	}

	if faces == 1 {
		t.sampled = t.faceViews[0]
		return t, nil
	}
	t.sampled, err = device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           label + "_cube",
		Format:          TextureFormat,
		Dimension:       gputypes.TextureViewDimensionCube,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: uint32(faces),
	})
	if err != nil {
		t.destroy(device)
		return nil, fmt.Errorf("create cube view %s: %w", label, err)
	}
	return t, nil
}

// destroy releases views before the texture.
func (t *Texture) destroy(device hal.Device) {
	if t.sampled != nil && t.Cube() {
		device.DestroyTextureView(t.sampled)
	}
	for _, v := range t.faceViews {
		if v != nil {
			device.DestroyTextureView(v)
		}
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
	}
	t.faceViews = nil
	t.sampled = nil
	t.tex = nil
}
