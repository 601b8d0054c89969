//go:build !unix && !windows

package maatest

// Without a page mapping API blocks live on the Go heap; the engine then
// works, but not under the race detector's pointer checks.
func mapMemory(n int) ([]byte, error) {
	return make([]byte, n), nil
}

func unmapMemory([]byte) {}
