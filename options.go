package evalgraph

import "log/slog"

// Default output size for lazily allocated textures.
const (
	DefaultWidth  = 256
	DefaultHeight = 256
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	ctx, err := evalgraph.NewContext(g,
//	    evalgraph.WithShaderBackend(backend),
//	    evalgraph.WithNativeTable(table),
//	    evalgraph.WithDefaultSize(1024, 1024),
//	)
type ContextOption func(*contextOptions)

type contextOptions struct {
	shader  ShaderBackend
	native  NativeTable
	streams StreamFactory
	width   int
	height  int
	logger  *slog.Logger
}

func defaultOptions() contextOptions {
	return contextOptions{
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// WithShaderBackend sets the backend that executes shader nodes and owns
// output textures.
func WithShaderBackend(b ShaderBackend) ContextOption {
	return func(o *contextOptions) {
		o.shader = b
	}
}

// WithNativeTable sets the table that resolves native node functions.
func WithNativeTable(t NativeTable) ContextOption {
	return func(o *contextOptions) {
		o.native = t
	}
}

// WithStreamFactory sets the factory used by GetEncoder.
func WithStreamFactory(f StreamFactory) ContextOption {
	return func(o *contextOptions) {
		o.streams = f
	}
}

// WithDefaultSize sets the size of lazily allocated outputs.
// Non-positive dimensions are ignored.
func WithDefaultSize(width, height int) ContextOption {
	return func(o *contextOptions) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithLogger sets a logger for this context only. Backends keep using the
// package logger set by SetLogger.
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = l
	}
}
