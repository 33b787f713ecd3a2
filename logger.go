package evalgraph

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// attached holds the backends of open contexts that accept a logger,
// reference counted by the number of contexts using them.
var (
	attachedMu sync.Mutex
	attached   = map[loggerSetter]int{}
)

// SetLogger configures the logger for evalgraph and every backend attached
// to an open Context. By default evalgraph produces no log output.
// Pass nil to restore the silent default.
//
// Log levels used by evalgraph:
//   - [slog.LevelDebug]: per-node dispatch, deferrals, pool assignments
//   - [slog.LevelInfo]: context lifecycle, stream creation
//   - [slog.LevelWarn]: native faults, shader failures, release errors
//
// Example:
//
//	evalgraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	attachedMu.Lock()
	defer attachedMu.Unlock()
	for ls := range attached {
		ls.SetLogger(l)
	}
}

// Logger returns the current package logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// attachLogger hands the current logger to v if it accepts one and keeps
// it updated on later SetLogger calls until detachLogger.
func attachLogger(v any) {
	ls, ok := v.(loggerSetter)
	if !ok {
		return
	}
	attachedMu.Lock()
	defer attachedMu.Unlock()
	attached[ls]++
	ls.SetLogger(Logger())
}

func detachLogger(v any) {
	ls, ok := v.(loggerSetter)
	if !ok {
		return
	}
	attachedMu.Lock()
	defer attachedMu.Unlock()
	if attached[ls] <= 1 {
		delete(attached, ls)
		return
	}
	attached[ls]--
}
