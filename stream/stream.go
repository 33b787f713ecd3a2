// Package stream writes evaluation output streams as numbered image
// sequences with a YAML manifest.
//
// A stream named "renders/orbit.tif" becomes the directory renders/orbit
// holding frame_000000.tif, frame_000001.tif, ... and manifest.yaml. The
// extension selects the frame format; streams without one use the
// preferred format (TIFF).
package stream

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/gpucontext"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"
)

// ManifestName is the manifest file written into every stream directory.
const ManifestName = "manifest.yaml"

var (
	// ErrNotInitialized is returned by AddFrame before Init.
	ErrNotInitialized = errors.New("stream: not initialized")

	// ErrFinished is returned when a finished stream is used again.
	ErrFinished = errors.New("stream: already finished")

	// ErrUnknownFormat is returned for an extension with no registered format.
	ErrUnknownFormat = errors.New("stream: unknown format")

	// ErrInvalidSize is returned by Init for non-positive dimensions.
	ErrInvalidSize = errors.New("stream: invalid size")
)

// Format encodes single frames.
type Format interface {
	// Ext is the file extension without the dot.
	Ext() string
	Encode(w io.Writer, img image.Image) error
}

type tiffFormat struct{}

func (tiffFormat) Ext() string { return "tif" }
func (tiffFormat) Encode(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

type bmpFormat struct{}

func (bmpFormat) Ext() string                               { return "bmp" }
func (bmpFormat) Encode(w io.Writer, img image.Image) error { return bmp.Encode(w, img) }

var formats = gpucontext.NewRegistry[Format](gpucontext.WithPriority("tif"))

func init() {
	RegisterFormat("tif", func() Format { return tiffFormat{} })
	RegisterFormat("tiff", func() Format { return tiffFormat{} })
	RegisterFormat("bmp", func() Format { return bmpFormat{} })
}

// RegisterFormat makes a frame format available for an extension.
func RegisterFormat(ext string, factory func() Format) {
	formats.Register(strings.ToLower(ext), factory)
}

// Formats returns the registered extensions, sorted.
func Formats() []string {
	exts := formats.Available()
	slices.Sort(exts)
	return exts
}

// formatFor splits a stream name into its directory and frame format.
func formatFor(name string) (dir string, f Format, err error) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	dir = strings.TrimSuffix(name, filepath.Ext(name))
	if ext == "" {
		return dir, formats.Best(), nil
	}
	ext = strings.ToLower(ext)
	if !formats.Has(ext) {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return dir, formats.Get(ext), nil
}

// Manifest describes a finished stream.
type Manifest struct {
	Name      string   `yaml:"name"`
	Format    string   `yaml:"format"`
	Width     int      `yaml:"width"`
	Height    int      `yaml:"height"`
	Framerate int      `yaml:"framerate"`
	Bitrate   int      `yaml:"bitrate"`
	Frames    []string `yaml:"frames"`
}

// ReadManifest loads the manifest of the stream directory dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("stream: parse manifest: %w", err)
	}
	return &m, nil
}

// Sequence is an evalgraph.StreamEncoder writing one file per frame.
type Sequence struct {
	root   string
	dir    string
	format Format
	logger *slog.Logger

	manifest Manifest
	frame    *image.RGBA
	finished bool
}

var _ evalgraph.StreamEncoder = (*Sequence)(nil)

// Init creates the stream directory. Frames of another size are scaled to
// width x height.
func (s *Sequence) Init(filename string, width, height, framerate, bitrate int) error {
	if s.finished {
		return ErrFinished
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	dir, format, err := formatFor(filename)
	if err != nil {
		return err
	}
	s.dir = filepath.Join(s.root, dir)
	s.format = format
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("stream: create %s: %w", s.dir, err)
	}
	s.manifest = Manifest{
		Name:      filename,
		Format:    format.Ext(),
		Width:     width,
		Height:    height,
		Framerate: framerate,
		Bitrate:   bitrate,
	}
	s.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	s.log().Debug("stream: init", "dir", s.dir, "format", format.Ext(), "width", width, "height", height)
	return nil
}

// Dir returns the stream directory, or "" before Init.
func (s *Sequence) Dir() string { return s.dir }

// AddFrame encodes img as the next frame.
func (s *Sequence) AddFrame(img image.Image) error {
	switch {
	case s.finished:
		return ErrFinished
	case s.frame == nil:
		return ErrNotInitialized
	}

	src := image.Image(img)
	if img.Bounds().Size() != s.frame.Rect.Size() {
		draw.BiLinear.Scale(s.frame, s.frame.Rect, img, img.Bounds(), draw.Src, nil)
		src = s.frame
	}

	name := fmt.Sprintf("frame_%06d.%s", len(s.manifest.Frames), s.format.Ext())
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := s.format.Encode(f, src); err != nil {
		_ = f.Close()
		return fmt.Errorf("stream: encode %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.manifest.Frames = append(s.manifest.Frames, name)
	return nil
}

// Finish writes the manifest. The stream cannot be used afterwards.
func (s *Sequence) Finish() error {
	if s.finished {
		return ErrFinished
	}
	s.finished = true
	if s.frame == nil {
		return nil
	}
	s.frame = nil

	data, err := yaml.Marshal(&s.manifest)
	if err != nil {
		return fmt.Errorf("stream: encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, ManifestName), data, 0o644); err != nil {
		return err
	}
	s.log().Info("stream: finished", "dir", s.dir, "frames", len(s.manifest.Frames))
	return nil
}

func (s *Sequence) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slogger()
}

// Factory creates Sequence streams under a root directory.
type Factory struct {
	Root   string
	Logger *slog.Logger
}

// New is an evalgraph.StreamFactory. The stream name is validated here
// so an unknown extension fails before any directory is created.
func (f Factory) New(filename string) (evalgraph.StreamEncoder, error) {
	if _, _, err := formatFor(filename); err != nil {
		return nil, err
	}
	return &Sequence{root: f.Root, logger: f.Logger}, nil
}

// SetLogger sets the package logger used by streams without their own.
func SetLogger(l *slog.Logger) { setLogger(l) }
