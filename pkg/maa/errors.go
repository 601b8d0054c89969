package maa

import (
	"errors"
	"fmt"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// Sentinel errors. Wrapped errors keep these in their chain, so callers
// classify failures with errors.Is.
var (
	// ErrLink marks library or symbol resolution failures. The concrete
	// error is a *LinkError.
	ErrLink = native.ErrLink

	// ErrAlreadyLoaded is returned by LoadLibrary after a successful load.
	ErrAlreadyLoaded = native.ErrAlreadyLoaded

	// ErrConstruction is returned when a native create function fails.
	ErrConstruction = errors.New("maa: construction failed")

	// ErrBind is returned when a tasker is used with an unready binding.
	ErrBind = errors.New("maa: bind failed")

	// ErrDecode is returned for malformed data crossing the boundary:
	// invalid UTF-8, embedded NUL, malformed JSON, bad image metadata or an
	// unrecognized status code.
	ErrDecode = errors.New("maa: decode error")

	// ErrTimeout is returned when a wait deadline passes first.
	ErrTimeout = errors.New("maa: wait timed out")

	// ErrCallbackFault marks a panic or decode failure inside a custom
	// callback. The concrete error is a *CallbackFault.
	ErrCallbackFault = errors.New("maa: callback fault")

	// ErrInvalidHandle is returned for operations on a closed handle.
	ErrInvalidHandle = errors.New("maa: invalid handle")

	// ErrContextExpired is returned when a Context is used after the
	// callback that received it returned.
	ErrContextExpired = fmt.Errorf("%w: context used after its callback returned", ErrInvalidHandle)

	// ErrInUse is returned by Close on a resource or controller that a
	// live tasker is still bound to.
	ErrInUse = errors.New("maa: handle in use by a tasker")

	// ErrRejected is returned when the native library reports failure for
	// a well-formed call.
	ErrRejected = errors.New("maa: rejected by native library")
)

// LinkError describes a failed library load or symbol lookup.
type LinkError = native.LinkError

// CallbackFault is a fault raised inside a custom callback. It never
// crosses into native code; the native side sees a failure status and the
// fault is reported through LastFault and the fault handler instead.
type CallbackFault struct {
	Kind  CustomKind
	Name  string
	Value any
	Stack []byte
}

func (f *CallbackFault) Error() string {
	return fmt.Sprintf("maa: callback fault in %s %q: %v", f.Kind, f.Name, f.Value)
}

func (f *CallbackFault) Unwrap() []error {
	if err, ok := f.Value.(error); ok {
		return []error{ErrCallbackFault, err}
	}
	return []error{ErrCallbackFault}
}
