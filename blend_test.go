package evalgraph

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestBlendModeFactor(t *testing.T) {
	tests := []struct {
		mode BlendMode
		want gputypes.BlendFactor
	}{
		{BlendZero, gputypes.BlendFactorZero},
		{BlendOne, gputypes.BlendFactorOne},
		{BlendSrcColor, gputypes.BlendFactorSrc},
		{BlendOneMinusSrcColor, gputypes.BlendFactorOneMinusSrc},
		{BlendDstColor, gputypes.BlendFactorDst},
		{BlendOneMinusDstColor, gputypes.BlendFactorOneMinusDst},
		{BlendSrcAlpha, gputypes.BlendFactorSrcAlpha},
		{BlendOneMinusSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha},
		{BlendDstAlpha, gputypes.BlendFactorDstAlpha},
		{BlendOneMinusDstAlpha, gputypes.BlendFactorOneMinusDstAlpha},
		{BlendConstantColor, gputypes.BlendFactorConstant},
		{BlendOneMinusConstantColor, gputypes.BlendFactorOneMinusConstant},
		{BlendConstantAlpha, gputypes.BlendFactorConstant},
		{BlendOneMinusConstantAlpha, gputypes.BlendFactorOneMinusConstant},
		{BlendSrcAlphaSaturate, gputypes.BlendFactorSrcAlphaSaturated},
	}
	if len(tests) != BlendModeCount {
		t.Fatalf("table covers %d modes, want %d", len(tests), BlendModeCount)
	}
	for _, tt := range tests {
		if got := tt.mode.Factor(gputypes.BlendFactorUndefined); got != tt.want {
			t.Errorf("BlendMode(%d).Factor() = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestResolveBlendDefaults(t *testing.T) {
	tests := []struct {
		name     string
		src, dst BlendMode
		wantSrc  gputypes.BlendFactor
		wantDst  gputypes.BlendFactor
	}{
		{"unset", BlendUnset, BlendUnset, gputypes.BlendFactorOne, gputypes.BlendFactorZero},
		{"out of range", BlendMode(200), BlendMode(16), gputypes.BlendFactorOne, gputypes.BlendFactorZero},
		{"src only", BlendSrcAlpha, BlendUnset, gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorZero},
		{"dst only", BlendUnset, BlendOneMinusSrcAlpha, gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha},
		{"both", BlendDstColor, BlendOne, gputypes.BlendFactorDst, gputypes.BlendFactorOne},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBlend(tt.src, tt.dst)
			for _, c := range []gputypes.BlendComponent{got.Color, got.Alpha} {
				if c.SrcFactor != tt.wantSrc || c.DstFactor != tt.wantDst {
					t.Errorf("component = %+v, want src %v dst %v", c, tt.wantSrc, tt.wantDst)
				}
				if c.Operation != gputypes.BlendOperationAdd {
					t.Errorf("operation = %v, want add", c.Operation)
				}
			}
		})
	}
	if ResolveBlend(BlendUnset, BlendUnset) != gputypes.BlendStateReplace() {
		t.Error("unset blend should equal the replace preset")
	}
}

func TestInputSamplerDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		in      InputSampler
		wantU   gputypes.AddressMode
		wantV   gputypes.AddressMode
		wantMin gputypes.FilterMode
		wantMag gputypes.FilterMode
	}{
		{"zero value", InputSampler{}, gputypes.AddressModeRepeat, gputypes.AddressModeRepeat, gputypes.FilterModeLinear, gputypes.FilterModeLinear},
		{"clamp nearest", InputSampler{WrapU: WrapClampToEdge, WrapV: WrapClampToBorder, MinFilter: FilterNearest}, gputypes.AddressModeClampToEdge, gputypes.AddressModeClampToEdge, gputypes.FilterModeNearest, gputypes.FilterModeLinear},
		{"mirror", InputSampler{WrapU: WrapMirroredRepeat, MagFilter: FilterNearest}, gputypes.AddressModeMirrorRepeat, gputypes.AddressModeRepeat, gputypes.FilterModeLinear, gputypes.FilterModeNearest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.in.Descriptor()
			if d.AddressModeU != tt.wantU || d.AddressModeV != tt.wantV {
				t.Errorf("address = %v/%v, want %v/%v", d.AddressModeU, d.AddressModeV, tt.wantU, tt.wantV)
			}
			if d.MinFilter != tt.wantMin || d.MagFilter != tt.wantMag {
				t.Errorf("filter = %v/%v, want %v/%v", d.MinFilter, d.MagFilter, tt.wantMin, tt.wantMag)
			}
		})
	}
}

func TestBackendMaskString(t *testing.T) {
	tests := []struct {
		mask BackendMask
		want string
	}{
		{0, "none"},
		{BackendNative, "native"},
		{BackendShader, "shader"},
		{BackendNative | BackendShader, "native|shader"},
	}
	for _, tt := range tests {
		if got := tt.mask.String(); got != tt.want {
			t.Errorf("BackendMask(%d).String() = %q, want %q", tt.mask, got, tt.want)
		}
	}
}

func TestFaceRotation(t *testing.T) {
	if FaceRotation(4) != Identity {
		t.Error("+Z face should use the identity rotation")
	}
	if FaceRotation(-1) != Identity || FaceRotation(6) != Identity {
		t.Error("out-of-range faces should use the identity rotation")
	}
	// Each rotation maps the view axis (0,0,1) to a distinct unit axis.
	seen := map[[3]float32]bool{}
	for face := range 6 {
		m := FaceRotation(face)
		axis := [3]float32{m[8], m[9], m[10]}
		if seen[axis] {
			t.Errorf("face %d repeats axis %v", face, axis)
		}
		seen[axis] = true
	}
}
