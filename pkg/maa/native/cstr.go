package native

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrUnterminated is returned by CBytes for a string with no NUL within
// the scan limit.
var ErrUnterminated = errors.New("maa: unterminated string")

// maxCString bounds the scan for a terminating NUL.
var maxCString = 64 << 20

// CBytes returns a copy of the NUL-terminated bytes at p, without the NUL.
// A zero pointer yields nil. The caller validates the encoding.
func CBytes(p uintptr) ([]byte, error) {
	if p == 0 {
		return nil, nil
	}
	base := unsafe.Pointer(p)
	for n := 0; n < maxCString; n++ {
		if *(*byte)(unsafe.Add(base, n)) == 0 {
			return Bytes(p, uint64(n)), nil
		}
	}
	return nil, fmt.Errorf("%w: no NUL in %d bytes", ErrUnterminated, maxCString)
}

// Bytes copies size bytes starting at p.
func Bytes(p uintptr, size uint64) []byte {
	if p == 0 || size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(p)), size))
	return out
}

// ReadRect copies the MaaRect at p.
func ReadRect(p uintptr) Rect {
	if p == 0 {
		return Rect{}
	}
	return *(*Rect)(unsafe.Pointer(p))
}

// WriteRect stores r into the MaaRect at p.
func WriteRect(p uintptr, r Rect) {
	if p == 0 {
		return
	}
	*(*Rect)(unsafe.Pointer(p)) = r
}
