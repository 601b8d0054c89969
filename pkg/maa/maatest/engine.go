// Package maatest provides an in-memory MaaFramework for tests.
//
// An Engine implements every function of native.Lib in Go. Handles are
// opaque ids, returned strings and pixels live in Go memory, and callbacks
// created through Lib.NewCallback are stored as Go functions and invoked
// directly. The pipeline runner understands enough of the pipeline format
// to drive custom recognitions and actions:
//
//   - recognition: DirectHit (default) and Custom; every other algorithm
//     misses, since the engine has no vision;
//   - action: DoNothing (default), Click, StopTask and Custom; other
//     actions succeed without effect;
//   - next lists are followed until a node has none. A step in which no
//     candidate hits fails the task.
//
// Misuse of the ABI (unknown or destroyed handles, double destroy) never
// crashes the engine. It is recorded and returned by Misuse, so tests can
// assert that the binding above never touched a dead handle.
package maatest

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// Object kinds reported by Live and Destroyed.
const (
	KindStringBuffer      = "string_buffer"
	KindStringList        = "string_list"
	KindImageBuffer       = "image_buffer"
	KindImageList         = "image_list"
	KindResource          = "resource"
	KindController        = "controller"
	KindTasker            = "tasker"
	KindContext           = "context"
	KindAdbDeviceList     = "adb_device_list"
	KindDesktopWindowList = "desktop_window_list"
)

// Version is reported by MaaVersion.
const Version = "v0.0.0-maatest"

const handleBase = 0x10000

// Engine is a simulated MaaFramework library.
type Engine struct {
	mu        sync.Mutex
	next      uintptr
	objects   map[uintptr]object
	destroyed map[string]int

	cbMu sync.Mutex
	cbs  map[uintptr]any

	ids     atomic.Int64
	forced  sync.Map // job id -> int32
	diagMu  sync.Mutex
	misuse  []error
	options sync.Map // option key -> []byte

	devMu   sync.Mutex
	devices []AdbDevice
	windows []DesktopWindow

	version *block
}

type object interface {
	kind() string
}

// NewEngine returns an engine with no objects.
func NewEngine() *Engine {
	return &Engine{
		objects:   make(map[uintptr]object),
		destroyed: make(map[string]int),
		cbs:       make(map[uintptr]any),
		version:   cstring(Version),
	}
}

// Install creates an engine and publishes its table as the process-wide
// library.
func Install() (*Engine, error) {
	e := NewEngine()
	if err := native.Install(e.Lib()); err != nil {
		return nil, err
	}
	return e, nil
}

// ============================================================================
// Objects
// ============================================================================

func (e *Engine) put(obj object) uintptr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next += 0x10
	h := handleBase + e.next
	e.objects[h] = obj
	return h
}

// scratch registers obj for the duration of one callback. The returned
// func removes it without counting a destruction.
func (e *Engine) scratch(obj object) (uintptr, func()) {
	h := e.put(obj)
	return h, func() { e.forget(h) }
}

// forget removes h without counting a destruction.
func (e *Engine) forget(h uintptr) {
	e.mu.Lock()
	obj := e.objects[h]
	delete(e.objects, h)
	e.mu.Unlock()
	if obj != nil {
		releaseObject(obj)
	}
}

func (e *Engine) lookup(h uintptr) object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.objects[h]
}

// free removes h and counts the destruction. Destroying an unknown handle
// is recorded as misuse.
func (e *Engine) free(fn string, h uintptr, kind string) object {
	e.mu.Lock()
	obj, ok := e.objects[h]
	if ok && obj.kind() == kind {
		delete(e.objects, h)
		e.destroyed[kind]++
	}
	e.mu.Unlock()
	if !ok || obj.kind() != kind {
		e.fault("%s: destroy of unknown %s %#x", fn, kind, h)
		return nil
	}
	releaseObject(obj)
	return obj
}

// get returns the object of type T behind h, recording misuse when there
// is none.
func get[T object](e *Engine, fn string, h uintptr) (T, bool) {
	obj, ok := e.lookup(h).(T)
	if !ok {
		var zero T
		e.fault("%s: unknown or destroyed handle %#x", fn, h)
		return zero, false
	}
	return obj, true
}

func (e *Engine) fault(format string, args ...any) {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	e.misuse = append(e.misuse, fmt.Errorf(format, args...))
}

// Misuse returns every ABI misuse recorded so far.
func (e *Engine) Misuse() []error {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	return append([]error(nil), e.misuse...)
}

// Live returns the number of live objects of kind.
func (e *Engine) Live(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, obj := range e.objects {
		if obj.kind() == kind {
			n++
		}
	}
	return n
}

// Destroyed returns how many objects of kind were destroyed.
func (e *Engine) Destroyed(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed[kind]
}

// Kinds lists the kinds that currently have live objects, sorted.
func (e *Engine) Kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]bool)
	for _, obj := range e.objects {
		seen[obj.kind()] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) newID() int64 {
	return e.ids.Add(1)
}

// ForceStatus makes every status query and wait on job id report code,
// including codes the real library never produces.
func (e *Engine) ForceStatus(id int64, code int32) {
	e.forced.Store(id, code)
}

func (e *Engine) forcedStatus(id int64) (int32, bool) {
	v, ok := e.forced.Load(id)
	if !ok {
		return 0, false
	}
	return v.(int32), true
}

// ============================================================================
// Callbacks
// ============================================================================

const callbackBase = 0xCB0000

func (e *Engine) newCallback(fn any) uintptr {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	p := callbackBase + uintptr(len(e.cbs)+1)*0x10
	e.cbs[p] = fn
	return p
}

// Callbacks returns how many native callback pointers were created.
func (e *Engine) Callbacks() int {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	return len(e.cbs)
}

func callback[T any](e *Engine, p uintptr) (T, bool) {
	e.cbMu.Lock()
	fn, ok := e.cbs[p].(T)
	e.cbMu.Unlock()
	if !ok && p != 0 {
		e.fault("call through unknown callback %#x", p)
	}
	return fn, ok
}

// ============================================================================
// Global
// ============================================================================

func (e *Engine) maaVersion() uintptr {
	return e.version.addr()
}

func (e *Engine) globalSetOption(key int32, value unsafe.Pointer, size uint64) uint8 {
	switch key {
	case native.GlobalOptionLogDir, native.GlobalOptionSaveDraw, native.GlobalOptionStdoutLevel,
		native.GlobalOptionDebugMode, native.GlobalOptionSaveOnError, native.GlobalOptionDrawQuality,
		native.GlobalOptionRecoImageCacheLimit:
	default:
		return 0
	}
	if value == nil && size > 0 {
		return 0
	}
	e.options.Store(key, append([]byte(nil), unsafe.Slice((*byte)(value), size)...))
	return 1
}

// Option returns the raw bytes last set for a global option.
func (e *Engine) Option(key int32) ([]byte, bool) {
	v, ok := e.options.Load(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// debugMode reports whether the debug mode option is on.
func (e *Engine) debugMode() bool {
	v, ok := e.Option(native.GlobalOptionDebugMode)
	return ok && len(v) > 0 && v[0] != 0
}

func (e *Engine) globalLoadPlugin(path string) uint8 {
	// No plugin can be loaded into the simulation.
	return 0
}
