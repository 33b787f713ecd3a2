// Package params encodes node parameter blobs.
//
// A blob is a packed little-endian sequence of 32-bit scalars, which a
// shader program reads as its params uniform struct and a native function
// reads with a Reader. Strings are stored as a uint32 byte length followed
// by the bytes, zero padded to a 4-byte boundary. Booleans are uint32 0 or 1.
//
// WGSL aligns vec2 fields to 8 bytes and vec3/vec4 fields to 16; call Align
// before writing such a field.
package params

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBlob is returned when a Reader runs past the end of a blob.
var ErrShortBlob = errors.New("params: blob too short")

var le = binary.LittleEndian

// Writer appends values to a blob. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// Float32 appends a float.
func (w *Writer) Float32(v float32) *Writer {
	w.buf = le.AppendUint32(w.buf, math.Float32bits(v))
	return w
}

// Floats appends each value in order.
func (w *Writer) Floats(vs ...float32) *Writer {
	for _, v := range vs {
		w.Float32(v)
	}
	return w
}

// Uint32 appends an unsigned integer.
func (w *Writer) Uint32(v uint32) *Writer {
	w.buf = le.AppendUint32(w.buf, v)
	return w
}

// Int32 appends a signed integer.
func (w *Writer) Int32(v int32) *Writer {
	return w.Uint32(uint32(v))
}

// Bool appends 1 for true and 0 for false.
func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.Uint32(1)
	}
	return w.Uint32(0)
}

// String appends a length-prefixed string padded to 4 bytes.
func (w *Writer) String(s string) *Writer {
	w.Uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w.pad(4)
}

// Align pads the blob with zeros to a multiple of n bytes.
func (w *Writer) Align(n int) *Writer {
	if n <= 0 {
		return w
	}
	return w.pad(n)
}

func (w *Writer) pad(n int) *Writer {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
	return w
}

// Len returns the blob size in bytes.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns a copy of the blob.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Reader decodes a blob written by Writer. Errors are sticky: after the
// first short read every method returns a zero value and Err reports it.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader returns a Reader over blob.
func NewReader(blob []byte) *Reader {
	return &Reader{data: blob}
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortBlob, n, r.off, len(r.data))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// Uint32 reads an unsigned integer.
func (r *Reader) Uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return le.Uint32(b)
}

// Int32 reads a signed integer.
func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

// Float32 reads a float.
func (r *Reader) Float32() float32 { return math.Float32frombits(r.Uint32()) }

// Bool reads a uint32 and reports whether it is non-zero.
func (r *Reader) Bool() bool { return r.Uint32() != 0 }

// String reads a length-prefixed string and skips its padding.
func (r *Reader) String() string {
	n := r.Uint32()
	if r.err != nil {
		return ""
	}
	b := r.next(int(n))
	if b == nil {
		return ""
	}
	s := string(b)
	r.Align(4)
	return s
}

// Align skips padding up to a multiple of n bytes. Missing trailing padding
// is not an error.
func (r *Reader) Align(n int) {
	if n <= 0 || r.err != nil {
		return
	}
	for r.off%n != 0 && r.off < len(r.data) {
		r.off++
	}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }
