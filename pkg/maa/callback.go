package maa

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// CustomKind is the kind of a registered callback.
type CustomKind uint8

const (
	KindRecognition CustomKind = iota + 1
	KindAction
	KindController
	KindSink
)

func (k CustomKind) String() string {
	switch k {
	case KindRecognition:
		return "recognition"
	case KindAction:
		return "action"
	case KindController:
		return "controller"
	case KindSink:
		return "sink"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ============================================================================
// Registry
// ============================================================================

// registration is one Go value reachable from native code. Its token is
// the trans_arg native code passes back on every invocation.
type registration struct {
	token uintptr
	kind  CustomKind
	owner *handle
	name  string
	fn    any

	// key is the lookup name, set by publish under the registry lock.
	key string
}

type regKey struct {
	owner uint64
	kind  CustomKind
	name  string
}

// callbackRegistry maps tokens to registrations. Native threads look
// tokens up concurrently with registration and teardown.
type callbackRegistry struct {
	mu      sync.RWMutex
	next    uintptr
	entries map[uintptr]*registration
	names   map[regKey]uintptr
}

var registry = &callbackRegistry{
	entries: make(map[uintptr]*registration),
	names:   make(map[regKey]uintptr),
}

// add stores a registration and assigns its token. It is not visible to
// find until published.
func (r *callbackRegistry) add(owner *handle, kind CustomKind, name string, fn any) *registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	reg := &registration{token: r.next, kind: kind, owner: owner, name: name, fn: fn}
	r.entries[reg.token] = reg
	return reg
}

// publish makes reg the registration found under key, dropping the one it
// replaces.
func (r *callbackRegistry) publish(reg *registration, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg.key = key
	k := regKey{reg.owner.id, reg.kind, key}
	if old, ok := r.names[k]; ok && old != reg.token {
		delete(r.entries, old)
	}
	r.names[k] = reg.token
}

func (r *callbackRegistry) lookup(token uintptr) *registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[token]
}

func (r *callbackRegistry) find(owner *handle, kind CustomKind, key string) (uintptr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.names[regKey{owner.id, kind, key}]
	return token, ok
}

func (r *callbackRegistry) remove(token uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.entries[token]
	if !ok {
		return
	}
	delete(r.entries, token)
	k := regKey{reg.owner.id, reg.kind, reg.key}
	if r.names[k] == token {
		delete(r.names, k)
	}
}

// drop removes the owner's registrations of kind, or of every kind when
// kind is 0.
func (r *callbackRegistry) drop(owner *handle, kind CustomKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for token, reg := range r.entries {
		if reg.owner != owner || (kind != 0 && reg.kind != kind) {
			continue
		}
		delete(r.entries, token)
		k := regKey{owner.id, reg.kind, reg.key}
		if r.names[k] == token {
			delete(r.names, k)
		}
		n++
	}
	return n
}

// dropSinks removes the owner's sinks added under prefix.
func (r *callbackRegistry) dropSinks(owner *handle, prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for token, reg := range r.entries {
		if reg.owner != owner || reg.kind != KindSink || reg.name != prefix {
			continue
		}
		delete(r.entries, token)
		delete(r.names, regKey{owner.id, KindSink, reg.key})
		n++
	}
	return n
}

func (r *callbackRegistry) count(owner *handle) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, reg := range r.entries {
		if reg.owner == owner {
			n++
		}
	}
	return n
}

// ============================================================================
// Fault barrier
// ============================================================================

var faultHandler atomic.Pointer[func(*CallbackFault)]

// SetFaultHandler installs fn to receive every callback fault, in addition
// to the owner's LastFault slot and the error log. A nil fn removes it.
// fn runs on the native thread that invoked the callback.
func SetFaultHandler(fn func(*CallbackFault)) {
	if fn == nil {
		faultHandler.Store(nil)
		return
	}
	faultHandler.Store(&fn)
}

// invoke runs fn behind the fault barrier. A panic or a returned error is
// recorded as a fault and reported as failure.
func (reg *registration) invoke(fn func() (bool, error)) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			reg.report(v, debug.Stack())
			ok = false
		}
	}()
	ok, err := fn()
	if err != nil {
		reg.report(err, nil)
		return false
	}
	return ok
}

func (reg *registration) report(v any, stack []byte) {
	f := &CallbackFault{Kind: reg.kind, Name: reg.name, Value: v, Stack: stack}
	reg.owner.storeFault(f)
	slog.Error("maa: fault in custom callback",
		"kind", reg.kind.String(),
		"name", reg.name,
		"panic", v,
		"stack", string(stack))
	if h := faultHandler.Load(); h != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("maa: panic in fault handler", "panic", r)
				}
			}()
			(*h)(f)
		}()
	}
}

func nativeBool(ok bool) uintptr {
	if ok {
		return 1
	}
	return 0
}

// ============================================================================
// Trampolines
// ============================================================================

// trampolineSet holds the native function pointers of the dispatchers.
// They are created once per process; registrations are told apart by
// token, not by pointer.
type trampolineSet struct {
	recognition uintptr
	action      uintptr
	sink        uintptr
	controller  *native.CustomControllerCallbacks
}

var (
	trampolineOnce sync.Once
	trampolineVal  *trampolineSet
)

func trampolines(l *native.Lib) *trampolineSet {
	trampolineOnce.Do(func() {
		trampolineVal = &trampolineSet{
			recognition: l.NewCallback(dispatchRecognition),
			action:      l.NewCallback(dispatchAction),
			sink:        l.NewCallback(dispatchSink),
			controller:  newControllerCallbacks(l),
		}
	})
	return trampolineVal
}

func lookupKind(token uintptr, kind CustomKind) *registration {
	reg := registry.lookup(token)
	if reg == nil || reg.kind != kind {
		slog.Warn("maa: callback for unknown registration", "kind", kind.String(), "token", token)
		return nil
	}
	return reg
}

func dispatchRecognition(ctxPtr uintptr, taskID int64, nodeName, name, param, image, roi, transArg, outBox, outDetail uintptr) uintptr {
	reg := lookupKind(transArg, KindRecognition)
	if reg == nil {
		return 0
	}
	return nativeBool(reg.invoke(func() (bool, error) {
		l, err := lib()
		if err != nil {
			return false, err
		}
		ctx := newContext(l, ctxPtr)
		defer ctx.expire()

		arg := &RecognitionArg{TaskID: taskID, ROI: rectFromNative(native.ReadRect(roi))}
		if arg.NodeName, err = decodeCString("node name", nodeName); err != nil {
			return false, err
		}
		if arg.Name, err = decodeCString("recognition name", name); err != nil {
			return false, err
		}
		if arg.Param, err = decodeCString("recognition param", param); err != nil {
			return false, err
		}
		if arg.Image, err = readImage(l, image); err != nil {
			return false, err
		}

		res, ok := reg.fn.(CustomRecognition).Analyze(ctx, arg)
		if !ok {
			return false, nil
		}
		native.WriteRect(outBox, res.Box.native())
		if res.Detail != nil {
			detail, err := encodeDocument("recognition detail", res.Detail)
			if err != nil {
				return false, err
			}
			if err := writeStringBuffer(l, outDetail, detail); err != nil {
				return false, err
			}
		}
		return true, nil
	}))
}

func dispatchAction(ctxPtr uintptr, taskID int64, nodeName, name, param uintptr, recoID int64, box, transArg uintptr) uintptr {
	reg := lookupKind(transArg, KindAction)
	if reg == nil {
		return 0
	}
	return nativeBool(reg.invoke(func() (bool, error) {
		l, err := lib()
		if err != nil {
			return false, err
		}
		ctx := newContext(l, ctxPtr)
		defer ctx.expire()

		arg := &ActionArg{TaskID: taskID, RecognitionID: recoID, Box: rectFromNative(native.ReadRect(box))}
		if arg.NodeName, err = decodeCString("node name", nodeName); err != nil {
			return false, err
		}
		if arg.Name, err = decodeCString("action name", name); err != nil {
			return false, err
		}
		if arg.Param, err = decodeCString("action param", param); err != nil {
			return false, err
		}
		return reg.fn.(CustomAction).Run(ctx, arg), nil
	}))
}

func dispatchSink(h, message, details, transArg uintptr) uintptr {
	reg := lookupKind(transArg, KindSink)
	if reg == nil {
		return 0
	}
	reg.invoke(func() (bool, error) {
		msg, err := decodeCString("event message", message)
		if err != nil {
			return false, err
		}
		text, err := decodeCString("event details", details)
		if err != nil {
			return false, err
		}
		doc, err := decodeDocument("event details", text)
		if err != nil {
			return false, err
		}
		reg.fn.(Sink)(Event{Handle: h, Message: msg, Details: doc})
		return true, nil
	})
	return 0
}
