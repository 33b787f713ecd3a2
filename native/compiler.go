package native

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/gpucontext"
)

// LangSymbol is the language whose source is the name of a function
// registered with RegisterSymbol.
const LangSymbol = "symbol"

var (
	// ErrUnknownLanguage is returned when no compiler is registered for a language.
	ErrUnknownLanguage = errors.New("native: unknown language")

	// ErrUnknownSymbol is returned when a symbol source names no function.
	ErrUnknownSymbol = errors.New("native: unknown symbol")

	// ErrNilFunc is returned when registering a nil function.
	ErrNilFunc = errors.New("native: nil function")
)

// Compiler turns node source into a callable.
type Compiler interface {
	Compile(source string) (evalgraph.NativeFunc, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(source string) (evalgraph.NativeFunc, error)

// Compile implements Compiler.
func (f CompilerFunc) Compile(source string) (evalgraph.NativeFunc, error) { return f(source) }

var compilers = gpucontext.NewRegistry[Compiler](gpucontext.WithPriority(LangSymbol))

// RegisterCompiler makes a compiler available under lang. Registering the
// same language again replaces the previous factory.
func RegisterCompiler(lang string, factory func() Compiler) {
	compilers.Register(lang, factory)
}

// Languages returns the registered compiler languages, sorted.
func Languages() []string {
	langs := compilers.Available()
	slices.Sort(langs)
	return langs
}

func compilerFor(lang string) (Compiler, string, error) {
	if lang == "" {
		lang = compilers.BestName()
	}
	if !compilers.Has(lang) {
		return nil, lang, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	return compilers.Get(lang), lang, nil
}

var (
	symbolsMu sync.RWMutex
	symbols   = map[string]evalgraph.NativeFunc{}
)

// RegisterSymbol makes fn resolvable by the symbol compiler under name.
func RegisterSymbol(name string, fn evalgraph.NativeFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrNilFunc, name)
	}
	symbolsMu.Lock()
	defer symbolsMu.Unlock()
	symbols[name] = fn
	return nil
}

type symbolCompiler struct{}

func (symbolCompiler) Compile(source string) (evalgraph.NativeFunc, error) {
	symbolsMu.RLock()
	defer symbolsMu.RUnlock()
	fn, ok := symbols[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, source)
	}
	return fn, nil
}

func init() {
	RegisterCompiler(LangSymbol, func() Compiler { return symbolCompiler{} })
}
