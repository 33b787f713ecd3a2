package gpu

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// fakeSPIRV is accepted by the noop device, which does not inspect modules.
var fakeSPIRV = []uint32{0x07230203, 0x00010300, 0, 16, 0}

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestBackend(t *testing.T, programs ...string) *Backend {
	t.Helper()
	device, queue := createNoopDevice(t)
	b, err := New(device, queue)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	for _, p := range programs {
		if err := b.RegisterSPIRV(p, fakeSPIRV); err != nil {
			t.Fatalf("RegisterSPIRV(%q): %v", p, err)
		}
	}
	return b
}

func mustTexture(t *testing.T, b *Backend, w, h, faces int) evalgraph.Texture {
	t.Helper()
	tex, err := b.CreateTexture(w, h, faces)
	if err != nil {
		t.Fatalf("CreateTexture(%d, %d, %d): %v", w, h, faces, err)
	}
	return tex
}

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil, nil) = %v, want ErrNilDevice", err)
	}
}

func TestRegisterProgramCompilesWGSL(t *testing.T) {
	device, queue := createNoopDevice(t)
	b, err := New(device, queue, WithCompileOptions(naga.CompileOptions{Validate: false}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	src := `
@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv.x, uv.y, info.time, 1.0);
}
`
	if err := b.RegisterProgram("gradient", src); err != nil {
		t.Fatalf("RegisterProgram: %v", err)
	}
	if !b.HasProgram("gradient") {
		t.Error("HasProgram(gradient) = false after registration")
	}
	if b.HasProgram("blur") {
		t.Error("HasProgram(blur) = true for unregistered type")
	}
}

func TestRegisterProgramEmpty(t *testing.T) {
	b := newTestBackend(t)
	if err := b.RegisterProgram("x", ""); !errors.Is(err, ErrEmptyProgram) {
		t.Errorf("RegisterProgram empty = %v, want ErrEmptyProgram", err)
	}
	if err := b.RegisterSPIRV("x", nil); !errors.Is(err, ErrEmptyProgram) {
		t.Errorf("RegisterSPIRV nil = %v, want ErrEmptyProgram", err)
	}
}

func TestCreateTexture(t *testing.T) {
	b := newTestBackend(t)
	tests := []struct {
		name    string
		w, h    int
		faces   int
		wantErr error
	}{
		{"2d", 64, 32, 1, nil},
		{"cube", 16, 16, 6, nil},
		{"three faces", 16, 16, 3, evalgraph.ErrInvalidFaces},
		{"zero width", 0, 16, 1, ErrInvalidSize},
		{"negative height", 8, -1, 1, ErrInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex, err := b.CreateTexture(tt.w, tt.h, tt.faces)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tex.Width() != tt.w || tex.Height() != tt.h || tex.Faces() != tt.faces {
				t.Errorf("got %dx%dx%d, want %dx%dx%d",
					tex.Width(), tex.Height(), tex.Faces(), tt.w, tt.h, tt.faces)
			}
			b.DestroyTexture(tex)
		})
	}
	if got := b.Stats().Textures; got != 0 {
		t.Errorf("Textures after destroy = %d, want 0", got)
	}
}

func TestDestroyTextureIgnoresForeign(t *testing.T) {
	a := newTestBackend(t)
	b := newTestBackend(t)
	tex := mustTexture(t, a, 4, 4, 1)

	b.DestroyTexture(tex)
	if got := a.Stats().Textures; got != 1 {
		t.Errorf("owner textures = %d, want 1", got)
	}
	a.DestroyTexture(tex)
	a.DestroyTexture(tex)
	if got := a.Stats().Textures; got != 0 {
		t.Errorf("owner textures = %d, want 0", got)
	}
}

func TestDrawPipelineCache(t *testing.T) {
	b := newTestBackend(t, "fill", "mix")
	target := mustTexture(t, b, 8, 8, 1)
	cube := mustTexture(t, b, 8, 8, 6)

	replace := gputypes.BlendStateReplace()
	additive := evalgraph.ResolveBlend(evalgraph.BlendOne, evalgraph.BlendOne)

	draws := []evalgraph.Pass{
		{Type: "fill", Target: target, Blend: replace},
		{Type: "fill", Target: target, Blend: replace},
		{Type: "fill", Target: target, Blend: additive},
		{Type: "mix", Target: target, Blend: replace},
		{Type: "mix", Target: target, Blend: replace, Inputs: [evalgraph.MaxInputs]evalgraph.Binding{{Texture: cube}}},
	}
	for i := range draws {
		if err := b.Draw(&draws[i]); err != nil {
			t.Fatalf("Draw %d: %v", i, err)
		}
	}

	st := b.Stats()
	if st.Passes != 5 {
		t.Errorf("Passes = %d, want 5", st.Passes)
	}
	if st.Pipelines != 4 {
		t.Errorf("Pipelines = %d, want 4", st.Pipelines)
	}
	if st.PipelineHits != 1 || st.PipelineMisses != 4 {
		t.Errorf("hits/misses = %d/%d, want 1/4", st.PipelineHits, st.PipelineMisses)
	}
}

func TestDrawErrors(t *testing.T) {
	b := newTestBackend(t, "fill")
	other := newTestBackend(t, "fill")
	target := mustTexture(t, b, 8, 8, 1)
	foreign := mustTexture(t, other, 8, 8, 1)

	tests := []struct {
		name string
		pass evalgraph.Pass
		want error
	}{
		{"unknown program", evalgraph.Pass{Type: "blur", Target: target}, evalgraph.ErrUnknownProgram},
		{"foreign target", evalgraph.Pass{Type: "fill", Target: foreign}, ErrForeignTexture},
		{"foreign input", evalgraph.Pass{
			Type: "fill", Target: target,
			Inputs: [evalgraph.MaxInputs]evalgraph.Binding{3: {Texture: foreign}},
		}, ErrForeignTexture},
		{"face out of range", evalgraph.Pass{Type: "fill", Target: target, Face: 2}, ErrFaceOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass := tt.pass
			if err := b.Draw(&pass); !errors.Is(err, tt.want) {
				t.Errorf("Draw = %v, want %v", err, tt.want)
			}
		})
	}
	if got := b.Stats().Passes; got != 0 {
		t.Errorf("Passes = %d, want 0", got)
	}
}

func TestDrawReclaimsCompletedPasses(t *testing.T) {
	b := newTestBackend(t, "fill")
	target := mustTexture(t, b, 4, 4, 1)

	for i := 0; i < 10; i++ {
		if err := b.Draw(&evalgraph.Pass{Type: "fill", Target: target, Blend: gputypes.BlendStateReplace()}); err != nil {
			t.Fatalf("Draw %d: %v", i, err)
		}
	}
	// The noop queue completes every submission immediately, so only the
	// last pass is still tracked.
	if got := b.Stats().Pending; got != 1 {
		t.Errorf("Pending = %d, want 1", got)
	}
}

func TestSamplerCacheSharesDescriptors(t *testing.T) {
	b := newTestBackend(t, "fill")
	target := mustTexture(t, b, 4, 4, 1)
	src := mustTexture(t, b, 4, 4, 1)

	pass := evalgraph.Pass{Type: "fill", Target: target, Blend: gputypes.BlendStateReplace()}
	if err := b.Draw(&pass); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().Samplers; got != 1 {
		t.Fatalf("Samplers = %d, want 1", got)
	}

	nearest := evalgraph.InputSampler{MinFilter: evalgraph.FilterNearest, MagFilter: evalgraph.FilterNearest}
	pass.Inputs[0] = evalgraph.Binding{Texture: src, Sampler: nearest.Descriptor()}
	pass.Inputs[1] = evalgraph.Binding{Texture: src, Sampler: nearest.Descriptor()}
	if err := b.Draw(&pass); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().Samplers; got != 2 {
		t.Errorf("Samplers = %d, want 2", got)
	}
}

func TestDownloadStripsRowPadding(t *testing.T) {
	b := newTestBackend(t)
	tex := mustTexture(t, b, 5, 3, 6)

	img, err := b.Download(tex, 4)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 5, 3) {
		t.Errorf("bounds = %v, want 5x3", got)
	}
	if len(img.Pix) != 5*3*4 {
		t.Errorf("len(Pix) = %d, want %d", len(img.Pix), 5*3*4)
	}

	if _, err := b.Download(tex, 6); !errors.Is(err, ErrFaceOutOfRange) {
		t.Errorf("Download face 6 = %v, want ErrFaceOutOfRange", err)
	}
}

func TestUpload(t *testing.T) {
	b := newTestBackend(t)
	tex := mustTexture(t, b, 4, 4, 1)

	src := image.NewNRGBA(image.Rect(0, 0, 10, 7))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	if err := b.Upload(tex, 0, src); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := b.Upload(tex, 1, src); !errors.Is(err, ErrFaceOutOfRange) {
		t.Errorf("Upload face 1 = %v, want ErrFaceOutOfRange", err)
	}
}

func TestToRGBA(t *testing.T) {
	exact := image.NewRGBA(image.Rect(0, 0, 3, 2))
	if got := toRGBA(exact, 3, 2); got != exact {
		t.Error("exact RGBA image was copied")
	}

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(1, 1, color.Gray{Y: 200})
	got := toRGBA(gray, 2, 2)
	if c := got.RGBAAt(1, 1); c != (color.RGBA{R: 200, G: 200, B: 200, A: 255}) {
		t.Errorf("converted pixel = %v", c)
	}

	scaled := toRGBA(gray, 8, 4)
	if scaled.Bounds() != image.Rect(0, 0, 8, 4) {
		t.Errorf("scaled bounds = %v", scaled.Bounds())
	}
}

func TestEncodeInfo(t *testing.T) {
	info := evalgraph.EvaluationInfo{
		TargetIndex: 7,
		Mouse:       [4]float32{0.25, 0.5, 1, 0},
		ViewRot:     evalgraph.FaceRotation(1),
		Face:        1,
		Frame:       42,
		Time:        1.5,
		ForcedDirty: true,
	}
	for i := range info.InputIndices {
		info.InputIndices[i] = evalgraph.NoInput
	}
	info.InputIndices[2] = 3

	buf := encodeInfo(&info, 640, 480)
	if len(buf) != infoSize {
		t.Fatalf("len = %d, want %d", len(buf), infoSize)
	}
	le := binary.LittleEndian
	f32 := func(off int) float32 { return math.Float32frombits(le.Uint32(buf[off:])) }
	i32 := func(off int) int32 { return int32(le.Uint32(buf[off:])) }

	for i, want := range info.ViewRot {
		if got := f32(i * 4); got != want {
			t.Errorf("view_rot[%d] = %v, want %v", i, got, want)
		}
	}
	if got := f32(64); got != 0.25 {
		t.Errorf("mouse.x = %v", got)
	}
	if got := i32(80); got != 7 {
		t.Errorf("target_index = %d", got)
	}
	if got := i32(84); got != 1 {
		t.Errorf("face = %d", got)
	}
	if got := i32(88); got != 42 {
		t.Errorf("frame = %d", got)
	}
	if got := f32(92); got != 1.5 {
		t.Errorf("time = %v", got)
	}
	if got := i32(96); got != -1 {
		t.Errorf("inputs[0] = %d, want -1", got)
	}
	if got := i32(104); got != 3 {
		t.Errorf("inputs[2] = %d, want 3", got)
	}
	if got := le.Uint32(buf[128:]); got != 1 {
		t.Errorf("forced_dirty = %d", got)
	}
	if got := le.Uint32(buf[132:]); got != 0 {
		t.Errorf("ui_pass = %d", got)
	}
	if w, h := le.Uint32(buf[136:]), le.Uint32(buf[140:]); w != 640 || h != 480 {
		t.Errorf("size = %dx%d", w, h)
	}
}

func TestUniformBlock(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{0, 16}, {5, 16}, {16, 16}, {17, 32}, {64, 64}} {
		if got := len(uniformBlock(make([]byte, tt.in))); got != tt.want {
			t.Errorf("uniformBlock(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := newTestBackend(t, "fill")
	mustTexture(t, b, 4, 4, 1)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := b.CreateTexture(4, 4, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateTexture after Close = %v, want ErrClosed", err)
	}
	if err := b.RegisterSPIRV("x", fakeSPIRV); !errors.Is(err, ErrClosed) {
		t.Errorf("RegisterSPIRV after Close = %v, want ErrClosed", err)
	}
}

func TestContextRunsOnBackend(t *testing.T) {
	b := newTestBackend(t, "sky", "tint")

	g := evalgraph.NewGraph()
	sky, err := g.AddNode(evalgraph.NewNode("sky", evalgraph.BackendShader))
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetFaces(sky, 6); err != nil {
		t.Fatal(err)
	}
	tint, err := g.AddNode(evalgraph.NewNode("tint", evalgraph.BackendShader))
	if err != nil {
		t.Fatal(err)
	}
	if err := g.AddEvaluationInput(tint, 0, sky); err != nil {
		t.Fatal(err)
	}

	ctx, err := evalgraph.NewContext(g, evalgraph.WithShaderBackend(b), evalgraph.WithDefaultSize(16, 16))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	report, err := ctx.RunAll()
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report: %v", err)
	}
	// Six faces of the cubemap plus one pass for the 2D consumer.
	if got := b.Stats().Passes; got != 7 {
		t.Errorf("Passes = %d, want 7", got)
	}
	if tex := ctx.GetEvaluationTexture(sky); tex == nil || tex.Faces() != 6 {
		t.Errorf("sky texture = %v, want cubemap", tex)
	}

	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := b.Stats().Textures; got != 0 {
		t.Errorf("Textures after context close = %d, want 0", got)
	}
}
