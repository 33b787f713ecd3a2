package gpu

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"
)

// copyPitchAlignment is the required BytesPerRow alignment for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// Upload writes img into one face of t. Images of a different size are
// scaled to the texture with bilinear filtering.
func (b *Backend) Upload(t evalgraph.Texture, face int, img image.Image) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	tex, err := b.own(t)
	if err != nil {
		return err
	}
	if face < 0 || face >= tex.Faces() {
		return fmt.Errorf("%w: %d of %d", ErrFaceOutOfRange, face, tex.Faces())
	}

	rgba := toRGBA(img, tex.width, tex.height)
	return b.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture: tex.tex,
			Origin:  hal.Origin3D{Z: uint32(face)},
			Aspect:  gputypes.TextureAspectAll,
		},
		rgba.Pix,
		&hal.ImageDataLayout{
			BytesPerRow:  uint32(rgba.Stride),
			RowsPerImage: uint32(tex.height),
		},
		&hal.Extent3D{Width: uint32(tex.width), Height: uint32(tex.height), DepthOrArrayLayers: 1},
	)
}

// toRGBA returns img as a tightly packed RGBA image of size w x h.
func toRGBA(img image.Image, w, h int) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok &&
		rgba.Rect.Min == (image.Point{}) && rgba.Rect.Dx() == w && rgba.Rect.Dy() == h && rgba.Stride == 4*w {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		draw.Draw(dst, dst.Rect, img, img.Bounds().Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

// Download reads one face of t back to host memory. It blocks until the
// device is idle.
func (b *Backend) Download(t evalgraph.Texture, face int) (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	tex, err := b.own(t)
	if err != nil {
		return nil, err
	}
	if face < 0 || face >= tex.Faces() {
		return nil, fmt.Errorf("%w: %d of %d", ErrFaceOutOfRange, face, tex.Faces())
	}

	w, h := uint32(tex.width), uint32(tex.height)
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "evalgraph_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "evalgraph_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("evalgraph_readback"); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyTextureToBuffer(tex.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase: hal.ImageCopyTexture{
			Texture: tex.tex,
			Origin:  hal.Origin3D{Z: uint32(face)},
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmd)

	if _, err := b.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := b.device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}
	b.reclaimLocked(false)

	mapping, err := b.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map readback: %w", err)
	}
	defer func() { _ = b.device.UnmapBuffer(staging) }()

	src := unsafe.Slice((*byte)(mapping.Ptr), size)
	out := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for row := uint32(0); row < h; row++ {
		srcOff := int(row) * int(alignedBytesPerRow)
		dstOff := int(row) * out.Stride
		copy(out.Pix[dstOff:dstOff+int(bytesPerRow)], src[srcOff:srcOff+int(bytesPerRow)])
	}
	return out, nil
}
