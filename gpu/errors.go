package gpu

import "errors"

var (
	// ErrNilDevice is returned when the backend is created without a device or queue.
	ErrNilDevice = errors.New("gpu: device is nil")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("gpu: backend closed")

	// ErrForeignTexture is returned when a texture was not created by this backend.
	ErrForeignTexture = errors.New("gpu: texture not owned by backend")

	// ErrInvalidSize is returned for non-positive texture dimensions.
	ErrInvalidSize = errors.New("gpu: invalid texture size")

	// ErrFaceOutOfRange is returned for a face index outside the texture.
	ErrFaceOutOfRange = errors.New("gpu: face out of range")

	// ErrEmptyProgram is returned when registering a program with no code.
	ErrEmptyProgram = errors.New("gpu: empty program")
)
