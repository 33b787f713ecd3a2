package native

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/evalgraph/params"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Stock node types.
const (
	TypeImageRead   = "image_read"
	TypeImageWrite  = "image_write"
	TypeStreamWrite = "stream_write"
)

var (
	// ErrNoTextureIO is returned when the shader backend cannot move pixels.
	ErrNoTextureIO = errors.New("native: backend has no texture IO")

	// ErrNoInput is returned when a stock node's source slot is unconnected.
	ErrNoInput = errors.New("native: input not connected")

	// ErrUnsupportedFormat is returned for an image extension with no encoder.
	ErrUnsupportedFormat = errors.New("native: unsupported image format")
)

func init() {
	for name, fn := range stock {
		_ = RegisterSymbol(name, fn)
	}
}

var stock = map[string]evalgraph.NativeFunc{
	TypeImageRead:   ImageRead,
	TypeImageWrite:  ImageWrite,
	TypeStreamWrite: StreamWrite,
}

// RegisterStock binds every stock node type in t.
func (t *Table) RegisterStock() {
	for name, fn := range stock {
		_ = t.Register(name, fn)
	}
}

func textureIO(s *evalgraph.Scope) (evalgraph.TextureIO, error) {
	io, ok := s.Backend().(evalgraph.TextureIO)
	if !ok {
		return nil, ErrNoTextureIO
	}
	return io, nil
}

func pathParam(blob []byte) (string, error) {
	r := params.NewReader(blob)
	path := r.String()
	if err := r.Err(); err != nil {
		return "", err
	}
	if path == "" {
		return "", errors.New("native: empty path parameter")
	}
	return path, nil
}

// ImageRead decodes the file named by the path parameter into the node
// target. TIFF, BMP, PNG and JPEG are supported. For a cubemap target, an
// image six times taller than wide is split into faces from the top;
// any other image is uploaded to every face.
func ImageRead(s *evalgraph.Scope, blob []byte, _ evalgraph.EvaluationInfo) (evalgraph.Status, error) {
	path, err := pathParam(blob)
	if err != nil {
		return evalgraph.StatusError, err
	}
	io, err := textureIO(s)
	if err != nil {
		return evalgraph.StatusError, err
	}
	target, err := s.Target()
	if err != nil {
		return evalgraph.StatusError, err
	}

	f, err := os.Open(path)
	if err != nil {
		return evalgraph.StatusError, err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return evalgraph.StatusError, fmt.Errorf("native: decode %s: %w", path, err)
	}
	s.Logger().Debug("native: image read", "path", path, "format", format, "bounds", img.Bounds())

	faces := target.Faces()
	strip := faces > 1 && img.Bounds().Dy() == faces*img.Bounds().Dx()
	for face := 0; face < faces; face++ {
		src := img
		if strip {
			src = faceOf(img, face)
		}
		if err := io.Upload(target, face, src); err != nil {
			return evalgraph.StatusError, fmt.Errorf("native: upload face %d: %w", face, err)
		}
	}
	return evalgraph.StatusOK, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// faceOf returns the face-th square of a vertical strip.
func faceOf(img image.Image, face int) image.Image {
	b := img.Bounds()
	side := b.Dx()
	r := image.Rect(b.Min.X, b.Min.Y+face*side, b.Max.X, b.Min.Y+(face+1)*side)
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	return img
}

// ImageWrite encodes face 0 of input 0 to the file named by the path
// parameter. The extension selects TIFF, BMP or PNG.
func ImageWrite(s *evalgraph.Scope, blob []byte, _ evalgraph.EvaluationInfo) (evalgraph.Status, error) {
	path, err := pathParam(blob)
	if err != nil {
		return evalgraph.StatusError, err
	}
	img, err := downloadInput(s)
	if err != nil {
		return evalgraph.StatusError, err
	}

	encode, err := encoderFor(path)
	if err != nil {
		return evalgraph.StatusError, err
	}
	f, err := os.Create(path)
	if err != nil {
		return evalgraph.StatusError, err
	}
	if err := encode(f, img); err != nil {
		_ = f.Close()
		return evalgraph.StatusError, fmt.Errorf("native: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return evalgraph.StatusError, err
	}
	return evalgraph.StatusOK, nil
}

type encodeFunc func(w *os.File, img image.Image) error

func encoderFor(path string) (encodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return func(w *os.File, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}, nil
	case ".bmp":
		return func(w *os.File, img image.Image) error { return bmp.Encode(w, img) }, nil
	case ".png":
		return func(w *os.File, img image.Image) error { return png.Encode(w, img) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// StreamWrite appends face 0 of input 0 as one frame to the stream named by
// the filename parameter.
func StreamWrite(s *evalgraph.Scope, blob []byte, _ evalgraph.EvaluationInfo) (evalgraph.Status, error) {
	name, err := pathParam(blob)
	if err != nil {
		return evalgraph.StatusError, err
	}
	img, err := downloadInput(s)
	if err != nil {
		return evalgraph.StatusError, err
	}
	enc, err := s.Encoder(name, img.Bounds().Dx(), img.Bounds().Dy())
	if err != nil {
		return evalgraph.StatusError, err
	}
	if err := enc.AddFrame(img); err != nil {
		return evalgraph.StatusError, fmt.Errorf("native: add frame to %s: %w", name, err)
	}
	return evalgraph.StatusOK, nil
}

func downloadInput(s *evalgraph.Scope) (*image.RGBA, error) {
	in := s.Input(0)
	if in == nil {
		return nil, ErrNoInput
	}
	io, err := textureIO(s)
	if err != nil {
		return nil, err
	}
	return io.Download(in, 0)
}
