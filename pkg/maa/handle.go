package maa

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var nextHandleID atomic.Uint64

// handle owns one native pointer. The pointer is swapped to zero exactly
// once, by take, so the native destroy function runs at most once. pins
// counts taskers bound to the handle; a pinned handle cannot be taken.
type handle struct {
	kind string
	id   uint64

	mu   sync.Mutex
	raw  uintptr
	pins int

	faultMu sync.Mutex
	fault   *CallbackFault
}

func (h *handle) init(kind string, raw uintptr) {
	h.kind = kind
	h.id = nextHandleID.Add(1)
	h.raw = raw
}

func (h *handle) ptr() (uintptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.raw == 0 {
		return 0, fmt.Errorf("%w: %s is closed", ErrInvalidHandle, h.kind)
	}
	return h.raw, nil
}

func (h *handle) pin() (uintptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.raw == 0 {
		return 0, fmt.Errorf("%w: %s is closed", ErrInvalidHandle, h.kind)
	}
	h.pins++
	return h.raw, nil
}

func (h *handle) unpin() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pins > 0 {
		h.pins--
	}
}

// take releases ownership of the pointer. It returns 0 if the handle was
// already taken.
func (h *handle) take() (uintptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.raw == 0 {
		return 0, nil
	}
	if h.pins > 0 {
		return 0, fmt.Errorf("%w: %s is bound to %d tasker(s)", ErrInUse, h.kind, h.pins)
	}
	raw := h.raw
	h.raw = 0
	return raw, nil
}

func (h *handle) closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.raw == 0
}

func (h *handle) storeFault(f *CallbackFault) {
	h.faultMu.Lock()
	h.fault = f
	h.faultMu.Unlock()
}

func (h *handle) lastFault() *CallbackFault {
	h.faultMu.Lock()
	defer h.faultMu.Unlock()
	return h.fault
}
