//go:build !unix

package native_test

import "testing"

func offHeap(t *testing.T, n int) []byte {
	t.Helper()
	return make([]byte, n)
}
