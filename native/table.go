// Package native provides the function table for nodes evaluated on the
// host. Functions are registered directly or compiled from source by a
// Compiler selected by language name.
package native

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/evalgraph"
)

// Table maps node types to native functions. It implements
// evalgraph.NativeTable and is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	funcs map[string]evalgraph.NativeFunc
}

var _ evalgraph.NativeTable = (*Table)(nil)

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{funcs: make(map[string]evalgraph.NativeFunc)}
}

// Register binds fn to nodeType, replacing any previous binding.
func (t *Table) Register(nodeType string, fn evalgraph.NativeFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrNilFunc, nodeType)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[nodeType] = fn
	slogger().Debug("native: registered", "type", nodeType)
	return nil
}

// Compile compiles source with the compiler for lang and binds the result
// to nodeType. An empty lang selects the preferred registered compiler.
func (t *Table) Compile(nodeType, lang, source string) error {
	c, lang, err := compilerFor(lang)
	if err != nil {
		return fmt.Errorf("native: compile %q: %w", nodeType, err)
	}
	fn, err := c.Compile(source)
	if err != nil {
		slogger().Warn("native: compile failed", "type", nodeType, "lang", lang, "err", err)
		return fmt.Errorf("native: compile %q (%s): %w", nodeType, lang, err)
	}
	return t.Register(nodeType, fn)
}

// Lookup implements evalgraph.NativeTable.
func (t *Table) Lookup(nodeType string) (evalgraph.NativeFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.funcs[nodeType]
	return fn, ok
}

// Types returns the registered node types, sorted.
func (t *Table) Types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	types := make([]string, 0, len(t.funcs))
	for k := range t.funcs {
		types = append(types, k)
	}
	slices.Sort(types)
	return types
}

// SetLogger sets the logger used by the native package.
func (t *Table) SetLogger(l *slog.Logger) { setLogger(l) }
