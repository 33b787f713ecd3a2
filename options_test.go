package evalgraph

import (
	"log/slog"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.width != DefaultWidth || o.height != DefaultHeight {
		t.Errorf("default size = %dx%d, want %dx%d", o.width, o.height, DefaultWidth, DefaultHeight)
	}
	if o.shader != nil || o.native != nil || o.streams != nil || o.logger != nil {
		t.Errorf("default options carry backends: %+v", o)
	}
}

func TestWithDefaultSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"positive", 640, 480, 640, 480},
		{"zero width ignored", 0, 480, DefaultWidth, DefaultHeight},
		{"negative height ignored", 640, -1, DefaultWidth, DefaultHeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			WithDefaultSize(tt.w, tt.h)(&o)
			if o.width != tt.wantW || o.height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", o.width, o.height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestOptionsApplied(t *testing.T) {
	shader := newFakeShader("blur")
	table := funcTable{}
	logger := slog.New(slog.NewTextHandler(nil, nil))
	var factory StreamFactory = func(string) (StreamEncoder, error) { return &fakeStream{}, nil }

	o := defaultOptions()
	for _, opt := range []ContextOption{
		WithShaderBackend(shader),
		WithNativeTable(table),
		WithStreamFactory(factory),
		WithLogger(logger),
	} {
		opt(&o)
	}

	if o.shader != shader {
		t.Error("WithShaderBackend not applied")
	}
	if o.native == nil {
		t.Error("WithNativeTable not applied")
	}
	if o.streams == nil {
		t.Error("WithStreamFactory not applied")
	}
	if o.logger != logger {
		t.Error("WithLogger not applied")
	}
}

func TestNewContextDefaultSize(t *testing.T) {
	g := NewGraph()
	ctx, err := NewContext(g)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	if w, h := ctx.DefaultSize(); w != DefaultWidth || h != DefaultHeight {
		t.Errorf("DefaultSize() = %dx%d, want %dx%d", w, h, DefaultWidth, DefaultHeight)
	}
}
