// Package maa is a Go binding for MaaFramework, an image-recognition driven
// automation engine shipped as a prebuilt native library.
//
// # Architecture
//
// The package wraps the raw function table of package native:
//
//   - Controller, Resource and Tasker own one native handle each. Close
//     destroys it exactly once; any later call returns ErrInvalidHandle.
//   - Post methods return a Job that can be polled, waited on with or
//     without a deadline, and (for tasker jobs) cancelled.
//   - Custom recognitions, actions, controllers and event sinks are Go
//     values invoked from native threads. Every invocation runs behind a
//     fault barrier: a panic becomes a *CallbackFault reported through
//     LastFault and SetFaultHandler, and the native side sees a failure.
//   - Strings, JSON documents, images and rectangles are copied across the
//     boundary; nothing returned by this package points into native memory.
//
// # Loading
//
// Call LoadLibrary once before anything else. Builds with the maa_static
// tag link the library at startup instead and need no call.
//
// # Lifetimes
//
// A Tasker pins the Resource and Controller bound to it. Closing a pinned
// handle returns ErrInUse; close the Tasker (or rebind it) first. A Context
// is valid only while the callback that received it runs.
//
// # Thread Safety
//
// The callback registry is safe for concurrent use by native threads.
// Handles serialize their own lifetime transitions, but callers should
// issue operations on one handle from one logical owner.
package maa

import (
	"github.com/haivivi/maafw/pkg/maa/native"
)

// LoadLibrary loads the MaaFramework library from path, a file or a
// directory. An empty path searches MAA_LIBRARY_PATH, MAA_SDK_PATH, the
// executable's directory and the working directory. A second successful
// call returns ErrAlreadyLoaded.
func LoadLibrary(path string) error {
	return native.Load(path)
}

// Loaded reports whether the library is loaded.
func Loaded() bool {
	return native.Loaded()
}

func lib() (*native.Lib, error) {
	return native.Current()
}
