//go:build unix

package native_test

import (
	"testing"

	"golang.org/x/sys/unix"
)

// offHeap returns n zeroed bytes outside the Go heap, standing in for
// memory owned by the native library.
func offHeap(t *testing.T, n int) []byte {
	t.Helper()
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		t.Fatalf("mmap: %v", err)
	}
	t.Cleanup(func() { unix.Munmap(mem) })
	return mem
}
