package maatest

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// block is memory outside the Go heap. Every raw address the engine hands
// to the binding points into a block, the way a real library returns its
// own allocations, so the binding may turn it back into a pointer.
type block struct {
	mem     []byte
	cleanup runtime.Cleanup
	freed   atomic.Bool
}

// newBlock copies data into a new block, appending a NUL when nul is set.
// Empty data without a NUL gives a nil block.
func newBlock(data []byte, nul bool) *block {
	n := len(data)
	if nul {
		n++
	}
	if n == 0 {
		return nil
	}
	mem, err := mapMemory(n)
	if err != nil {
		panic(fmt.Sprintf("maatest: map %d bytes: %v", n, err))
	}
	copy(mem, data)
	b := &block{mem: mem}
	// Blocks dropped without release are unmapped by the collector.
	b.cleanup = runtime.AddCleanup(b, unmapMemory, mem)
	return b
}

// cstring returns s as a NUL-terminated block.
func cstring(s string) *block {
	return newBlock([]byte(s), true)
}

func (b *block) addr() uintptr {
	if b == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.mem[0]))
}

// release unmaps b. Later calls do nothing.
func (b *block) release() {
	if b == nil || !b.freed.CompareAndSwap(false, true) {
		return
	}
	b.cleanup.Stop()
	unmapMemory(b.mem)
}

// releaser is implemented by objects that own blocks.
type releaser interface {
	release()
}

func releaseObject(obj object) {
	if r, ok := obj.(releaser); ok {
		r.release()
	}
}
