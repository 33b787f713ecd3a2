package stream

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestFormats(t *testing.T) {
	want := []string{"bmp", "tif", "tiff"}
	if diff := cmp.Diff(want, Formats()); diff != "" {
		t.Errorf("Formats() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		ext     string
		wantErr error
	}{
		{"orbit.tif", "orbit", "tif", nil},
		{"orbit.TIFF", "orbit", "tif", nil},
		{"out/orbit.bmp", "out/orbit", "bmp", nil},
		{"orbit", "orbit", "tif", nil},
		{"orbit.mp4", "", "", ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, f, err := formatFor(tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if dir != tt.dir || f.Ext() != tt.ext {
				t.Errorf("formatFor(%q) = %q, %q; want %q, %q", tt.name, dir, f.Ext(), tt.dir, tt.ext)
			}
		})
	}
}

func TestSequenceWritesFramesAndManifest(t *testing.T) {
	for _, ext := range []string{"tif", "bmp"} {
		t.Run(ext, func(t *testing.T) {
			root := t.TempDir()
			enc, err := Factory{Root: root}.New("orbit." + ext)
			if err != nil {
				t.Fatal(err)
			}
			if err := enc.Init("orbit."+ext, 8, 4, 30, 4000); err != nil {
				t.Fatal(err)
			}
			// Second frame has another size and is scaled.
			frames := []image.Image{
				solid(8, 4, color.RGBA{255, 0, 0, 255}),
				solid(3, 3, color.RGBA{0, 255, 0, 255}),
			}
			for _, f := range frames {
				if err := enc.AddFrame(f); err != nil {
					t.Fatal(err)
				}
			}
			if err := enc.Finish(); err != nil {
				t.Fatal(err)
			}

			dir := filepath.Join(root, "orbit")
			m, err := ReadManifest(dir)
			if err != nil {
				t.Fatal(err)
			}
			want := &Manifest{
				Name:      "orbit." + ext,
				Format:    ext,
				Width:     8,
				Height:    4,
				Framerate: 30,
				Bitrate:   4000,
				Frames:    []string{"frame_000000." + ext, "frame_000001." + ext},
			}
			if diff := cmp.Diff(want, m); diff != "" {
				t.Errorf("manifest mismatch (-want +got):\n%s", diff)
			}

			for _, name := range m.Frames {
				f, err := os.Open(filepath.Join(dir, name))
				if err != nil {
					t.Fatal(err)
				}
				img, _, err := image.Decode(f)
				f.Close()
				if err != nil {
					t.Fatalf("decode %s: %v", name, err)
				}
				if got := img.Bounds().Size(); got != image.Pt(8, 4) {
					t.Errorf("%s size = %v, want (8,4)", name, got)
				}
			}
		})
	}
}

func TestSequenceLifecycle(t *testing.T) {
	root := t.TempDir()
	s := &Sequence{root: root}

	if err := s.AddFrame(solid(1, 1, color.RGBA{})); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("AddFrame before Init = %v, want ErrNotInitialized", err)
	}
	if err := s.Init("x.tif", 0, 4, 30, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Init(0x4) = %v, want ErrInvalidSize", err)
	}
	if err := s.Init("x.tif", 2, 2, 30, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(); !errors.Is(err, ErrFinished) {
		t.Errorf("second Finish = %v, want ErrFinished", err)
	}
	if err := s.AddFrame(solid(2, 2, color.RGBA{})); !errors.Is(err, ErrFinished) {
		t.Errorf("AddFrame after Finish = %v, want ErrFinished", err)
	}

	m, err := ReadManifest(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Frames) != 0 {
		t.Errorf("frames = %v, want none", m.Frames)
	}
}

func TestFactoryRejectsUnknownFormat(t *testing.T) {
	root := t.TempDir()
	if _, err := (Factory{Root: root}).New("clip.mov"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("New(clip.mov) = %v, want ErrUnknownFormat", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("root has %d entries, want 0", len(entries))
	}
}
