package maa

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// ============================================================================
// Strings
// ============================================================================

// encodeString checks that s can cross into native code as a C string.
func encodeString(what, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %s contains a NUL byte", ErrDecode, what)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrDecode, what)
	}
	return nil
}

func decodeBytes(what string, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrDecode, what)
	}
	return string(b), nil
}

func decodeCString(what string, p uintptr) (string, error) {
	b, err := native.CBytes(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDecode, what, err)
	}
	return decodeBytes(what, b)
}

// ============================================================================
// Documents
// ============================================================================

// encodeDocument renders doc as JSON text. Strings, byte slices and
// json.RawMessage are taken as already encoded; nil becomes "{}". The
// result is checked for well-formedness only.
func encodeDocument(what string, doc any) (string, error) {
	var s string
	switch v := doc.(type) {
	case nil:
		return "{}", nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case json.RawMessage:
		s = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: encode %s: %w", ErrDecode, what, err)
		}
		s = string(b)
	}
	if strings.TrimSpace(s) == "" {
		return "{}", nil
	}
	if !json.Valid([]byte(s)) {
		return "", fmt.Errorf("%w: %s is not well-formed JSON", ErrDecode, what)
	}
	if err := encodeString(what, s); err != nil {
		return "", err
	}
	return s, nil
}

func decodeDocument(what, s string) (json.RawMessage, error) {
	if s == "" {
		return nil, nil
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("%w: %s is not well-formed JSON", ErrDecode, what)
	}
	return json.RawMessage(s), nil
}

// ============================================================================
// String buffers
// ============================================================================

// stringBuffer is an owned MaaStringBuffer.
type stringBuffer struct {
	lib *native.Lib
	p   uintptr
}

func newStringBuffer(l *native.Lib) (*stringBuffer, error) {
	p := l.MaaStringBufferCreate()
	if p == 0 {
		return nil, fmt.Errorf("%w: string buffer", ErrConstruction)
	}
	return &stringBuffer{lib: l, p: p}, nil
}

func (b *stringBuffer) close() {
	if b != nil && b.p != 0 {
		b.lib.MaaStringBufferDestroy(b.p)
		b.p = 0
	}
}

func (b *stringBuffer) get(what string) (string, error) {
	return readStringBuffer(b.lib, b.p, what)
}

// readStringBuffer copies the contents of a buffer owned elsewhere.
func readStringBuffer(l *native.Lib, p uintptr, what string) (string, error) {
	if p == 0 {
		return "", nil
	}
	size := l.MaaStringBufferSize(p)
	if size == 0 {
		return "", nil
	}
	return decodeBytes(what, native.Bytes(l.MaaStringBufferGet(p), size))
}

func writeStringBuffer(l *native.Lib, p uintptr, s string) error {
	if p == 0 {
		return nil
	}
	if l.MaaStringBufferSetEx(p, s, uint64(len(s))) == 0 {
		return fmt.Errorf("%w: write string buffer", ErrRejected)
	}
	return nil
}

// ============================================================================
// String lists
// ============================================================================

type stringList struct {
	lib *native.Lib
	p   uintptr
}

func newStringList(l *native.Lib, items []string) (*stringList, error) {
	p := l.MaaStringListBufferCreate()
	if p == 0 {
		return nil, fmt.Errorf("%w: string list buffer", ErrConstruction)
	}
	list := &stringList{lib: l, p: p}
	for _, s := range items {
		if err := list.append(s); err != nil {
			list.close()
			return nil, err
		}
	}
	return list, nil
}

func (s *stringList) append(v string) error {
	if err := encodeString("list item", v); err != nil {
		return err
	}
	item, err := newStringBuffer(s.lib)
	if err != nil {
		return err
	}
	defer item.close()
	if err := writeStringBuffer(s.lib, item.p, v); err != nil {
		return err
	}
	if s.lib.MaaStringListBufferAppend(s.p, item.p) == 0 {
		return fmt.Errorf("%w: append string list", ErrRejected)
	}
	return nil
}

func (s *stringList) items(what string) ([]string, error) {
	n := s.lib.MaaStringListBufferSize(s.p)
	out := make([]string, 0, n)
	for i := range n {
		v, err := readStringBuffer(s.lib, s.lib.MaaStringListBufferAt(s.p, i), what)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stringList) close() {
	if s != nil && s.p != 0 {
		s.lib.MaaStringListBufferDestroy(s.p)
		s.p = 0
	}
}

// ============================================================================
// Image buffers
// ============================================================================

type imageBuffer struct {
	lib *native.Lib
	p   uintptr
}

func newImageBuffer(l *native.Lib) (*imageBuffer, error) {
	p := l.MaaImageBufferCreate()
	if p == 0 {
		return nil, fmt.Errorf("%w: image buffer", ErrConstruction)
	}
	return &imageBuffer{lib: l, p: p}, nil
}

// imageBufferFrom creates a buffer holding a copy of img. A nil img gives
// an empty buffer.
func imageBufferFrom(l *native.Lib, img *Image) (*imageBuffer, error) {
	b, err := newImageBuffer(l)
	if err != nil {
		return nil, err
	}
	if img != nil {
		if err := writeImage(l, b.p, img); err != nil {
			b.close()
			return nil, err
		}
	}
	return b, nil
}

func (b *imageBuffer) close() {
	if b != nil && b.p != 0 {
		b.lib.MaaImageBufferDestroy(b.p)
		b.p = 0
	}
}

func (b *imageBuffer) image() (*Image, error) {
	return readImage(b.lib, b.p)
}

// imageList is an owned MaaImageListBuffer.
type imageList struct {
	lib *native.Lib
	p   uintptr
}

func newImageList(l *native.Lib) (*imageList, error) {
	p := l.MaaImageListBufferCreate()
	if p == 0 {
		return nil, fmt.Errorf("%w: image list buffer", ErrConstruction)
	}
	return &imageList{lib: l, p: p}, nil
}

func (s *imageList) images() ([]*Image, error) {
	n := s.lib.MaaImageListBufferSize(s.p)
	out := make([]*Image, 0, n)
	for i := range n {
		img, err := readImage(s.lib, s.lib.MaaImageListBufferAt(s.p, i))
		if err != nil {
			return nil, err
		}
		if img != nil {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *imageList) close() {
	if s != nil && s.p != 0 {
		s.lib.MaaImageListBufferDestroy(s.p)
		s.p = 0
	}
}
