package native

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Sentinel errors.
var (
	// ErrLink marks every library or symbol resolution failure.
	ErrLink = errors.New("maa: link error")

	// ErrAlreadyLoaded is returned by Load and Install once a table is
	// published.
	ErrAlreadyLoaded = errors.New("maa: library already loaded")

	// ErrNotLoaded is wrapped in a LinkError when an API is used before
	// any library is loaded.
	ErrNotLoaded = errors.New("maa: library not loaded")

	errSymbolNotFound = errors.New("symbol not found")
)

// LinkError describes a failed library load or symbol resolution.
type LinkError struct {
	// Path is the library file or the caller-supplied location.
	Path string
	// Symbol is the missing symbol, if any.
	Symbol string
	// Searched lists every location probed when the library was not found.
	Searched []string
	// Err is the underlying cause.
	Err error
}

func (e *LinkError) Error() string {
	var b strings.Builder
	b.WriteString("maa: link error")
	if e.Symbol != "" {
		fmt.Fprintf(&b, ": missing symbol %s", e.Symbol)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
	}
	if e.Err != nil && !errors.Is(e.Err, errSymbolNotFound) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Searched) > 0 {
		fmt.Fprintf(&b, " (searched %s)", strings.Join(e.Searched, ", "))
	}
	return b.String()
}

func (e *LinkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLink}
	}
	return []error{ErrLink, e.Err}
}

var (
	loadMu  sync.Mutex
	current atomic.Pointer[Lib]
	opened  []uintptr

	// staticResolve is set by static builds. It resolves the table from
	// the process image the first time Current is called.
	staticResolve func() (*Lib, error)
	staticOnce    sync.Once
	staticErr     error
)

// Load opens the MaaFramework library and resolves every required symbol.
//
// path may name the library file or a directory containing it. An empty
// path searches the default locations (see SearchPaths). Sibling libraries
// (MaaToolkit, MaaAgentServer, MaaAgentClient) next to the framework are
// opened when present.
//
// Load is atomic: if any required symbol is missing nothing is published and
// a later call may succeed. Once a table is published, Load returns
// ErrAlreadyLoaded.
func Load(path string) error {
	loadMu.Lock()
	defer loadMu.Unlock()

	if current.Load() != nil {
		return ErrAlreadyLoaded
	}

	file, searched := findLibrary(SearchPaths(path))
	if file == "" {
		return &LinkError{Path: path, Searched: searched, Err: fs.ErrNotExist}
	}

	primary, err := openLibrary(file)
	if err != nil {
		return &LinkError{Path: file, Err: err}
	}
	handles := []uintptr{primary}
	for _, sib := range siblingFiles(file) {
		h, err := openLibrary(sib)
		if err != nil {
			slog.Debug("maa: skip sibling library", "path", sib, "error", err)
			continue
		}
		handles = append(handles, h)
	}

	lib := &Lib{Path: file, NewCallback: newCallback}
	if lerr := bind(lib, func(name string) (uintptr, bool) {
		for _, h := range handles {
			if addr, err := lookupSymbol(h, name); err == nil && addr != 0 {
				return addr, true
			}
		}
		return 0, false
	}); lerr != nil {
		for _, h := range handles {
			_ = closeLibrary(h)
		}
		lerr.Path = file
		return lerr
	}

	opened = handles
	current.Store(lib)
	slog.Debug("maa: library loaded", "path", file, "libraries", len(handles))
	return nil
}

// Install publishes an already resolved table. Every required function
// field and NewCallback must be set.
func Install(lib *Lib) error {
	if lib == nil {
		return &LinkError{Err: errors.New("nil table")}
	}
	loadMu.Lock()
	defer loadMu.Unlock()

	if current.Load() != nil {
		return ErrAlreadyLoaded
	}
	if lerr := verify(lib); lerr != nil {
		return lerr
	}
	current.Store(lib)
	return nil
}

// Current returns the published table.
func Current() (*Lib, error) {
	if lib := current.Load(); lib != nil {
		return lib, nil
	}
	if staticResolve != nil {
		staticOnce.Do(func() {
			lib, err := staticResolve()
			if err != nil {
				staticErr = err
				return
			}
			staticErr = Install(lib)
		})
		if lib := current.Load(); lib != nil {
			return lib, nil
		}
		return nil, staticErr
	}
	return nil, &LinkError{Err: ErrNotLoaded}
}

// Loaded reports whether a table is published.
func Loaded() bool {
	return current.Load() != nil
}

// symbolFields walks the function fields of Lib.
func symbolFields(fn func(f reflect.StructField, v reflect.Value)) {
	v := reflect.ValueOf(&Lib{}).Elem()
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Tag.Get("maa") == "-" || f.Type.Kind() != reflect.Func {
			continue
		}
		fn(f, v.Field(i))
	}
}

// Symbols lists the required and optional symbol names of the table.
func Symbols() (required, optional []string) {
	symbolFields(func(f reflect.StructField, _ reflect.Value) {
		if f.Tag.Get("maa") == "optional" {
			optional = append(optional, f.Name)
		} else {
			required = append(required, f.Name)
		}
	})
	return required, optional
}

// verify checks that every required field of lib is set.
func verify(lib *Lib) *LinkError {
	if lib.NewCallback == nil {
		return &LinkError{Path: lib.Path, Symbol: "NewCallback", Err: errSymbolNotFound}
	}
	v := reflect.ValueOf(lib).Elem()
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("maa")
		if tag == "-" || tag == "optional" || f.Type.Kind() != reflect.Func {
			continue
		}
		if v.Field(i).IsNil() {
			return &LinkError{Path: lib.Path, Symbol: f.Name, Err: errSymbolNotFound}
		}
	}
	return nil
}
