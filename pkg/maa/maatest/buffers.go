package maatest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// arena holds the memory handed to a callback as raw addresses for the
// duration of one call.
type arena struct {
	mu     sync.Mutex
	blocks []*block
}

func (a *arena) keep(b *block) *block {
	a.mu.Lock()
	a.blocks = append(a.blocks, b)
	a.mu.Unlock()
	return b
}

func (a *arena) cstr(s string) uintptr {
	return a.keep(cstring(s)).addr()
}

func (a *arena) rect(r native.Rect) (uintptr, *native.Rect) {
	b := a.keep(newBlock(make([]byte, unsafe.Sizeof(r)), false))
	p := (*native.Rect)(unsafe.Pointer(&b.mem[0]))
	*p = r
	return b.addr(), p
}

func (a *arena) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range a.blocks {
		b.release()
	}
	a.blocks = nil
}

// ============================================================================
// String buffers
// ============================================================================

type stringBuffer struct {
	mu   sync.Mutex
	s    string
	data *block // NUL-terminated copy of s, made by MaaStringBufferGet
}

func (*stringBuffer) kind() string { return KindStringBuffer }

func (b *stringBuffer) set(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s = s
	b.data.release()
	b.data = nil
}

func (b *stringBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s
}

func (b *stringBuffer) release() {
	b.set("")
}

func (e *Engine) stringBufferCreate() uintptr {
	return e.put(&stringBuffer{})
}

func (e *Engine) stringBufferDestroy(h uintptr) {
	e.free("MaaStringBufferDestroy", h, KindStringBuffer)
}

func (e *Engine) stringBufferIsEmpty(h uintptr) uint8 {
	b, ok := get[*stringBuffer](e, "MaaStringBufferIsEmpty", h)
	if !ok {
		return 1
	}
	return boolU8(b.String() == "")
}

func (e *Engine) stringBufferClear(h uintptr) uint8 {
	b, ok := get[*stringBuffer](e, "MaaStringBufferClear", h)
	if !ok {
		return 0
	}
	b.set("")
	return 1
}

func (e *Engine) stringBufferGet(h uintptr) uintptr {
	b, ok := get[*stringBuffer](e, "MaaStringBufferGet", h)
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = cstring(b.s)
	}
	return b.data.addr()
}

func (e *Engine) stringBufferSize(h uintptr) uint64 {
	b, ok := get[*stringBuffer](e, "MaaStringBufferSize", h)
	if !ok {
		return 0
	}
	return uint64(len(b.String()))
}

func (e *Engine) stringBufferSet(h uintptr, s string) uint8 {
	b, ok := get[*stringBuffer](e, "MaaStringBufferSet", h)
	if !ok {
		return 0
	}
	b.set(s)
	return 1
}

func (e *Engine) stringBufferSetEx(h uintptr, s string, size uint64) uint8 {
	b, ok := get[*stringBuffer](e, "MaaStringBufferSetEx", h)
	if !ok || size > uint64(len(s)) {
		return 0
	}
	b.set(s[:size])
	return 1
}

// writeString stores s into the string buffer h if h is not 0.
func (e *Engine) writeString(fn string, h uintptr, s string) bool {
	if h == 0 {
		return true
	}
	b, ok := get[*stringBuffer](e, fn, h)
	if !ok {
		return false
	}
	b.set(s)
	return true
}

// ============================================================================
// String lists
// ============================================================================

// stringList holds handles of string buffers it owns.
type stringList struct {
	mu    sync.Mutex
	items []uintptr
}

func (*stringList) kind() string { return KindStringList }

func (e *Engine) stringListCreate() uintptr {
	return e.put(&stringList{})
}

func (e *Engine) stringListDestroy(h uintptr) {
	obj := e.free("MaaStringListBufferDestroy", h, KindStringList)
	if l, ok := obj.(*stringList); ok {
		e.dropItems(l.take(), KindStringBuffer)
	}
}

func (l *stringList) take() []uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := l.items
	l.items = nil
	return items
}

// dropItems frees list items without counting them as destroyed by the
// caller.
func (e *Engine) dropItems(items []uintptr, kind string) {
	var dropped []object
	e.mu.Lock()
	for _, h := range items {
		if obj, ok := e.objects[h]; ok && obj.kind() == kind {
			delete(e.objects, h)
			dropped = append(dropped, obj)
		}
	}
	e.mu.Unlock()
	for _, obj := range dropped {
		releaseObject(obj)
	}
}

func (e *Engine) stringListIsEmpty(h uintptr) uint8 {
	return boolU8(e.stringListSize(h) == 0)
}

func (e *Engine) stringListSize(h uintptr) uint64 {
	l, ok := get[*stringList](e, "MaaStringListBufferSize", h)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.items))
}

func (e *Engine) stringListAt(h uintptr, i uint64) uintptr {
	l, ok := get[*stringList](e, "MaaStringListBufferAt", h)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= uint64(len(l.items)) {
		return 0
	}
	return l.items[i]
}

func (e *Engine) stringListAppend(h, value uintptr) uint8 {
	l, ok := get[*stringList](e, "MaaStringListBufferAppend", h)
	if !ok {
		return 0
	}
	v, ok := get[*stringBuffer](e, "MaaStringListBufferAppend", value)
	if !ok {
		return 0
	}
	l.appendString(e, v.String())
	return 1
}

func (l *stringList) appendString(e *Engine, s string) {
	item := &stringBuffer{}
	item.set(s)
	h := e.put(item)
	l.mu.Lock()
	l.items = append(l.items, h)
	l.mu.Unlock()
}

func (e *Engine) stringListRemove(h uintptr, i uint64) uint8 {
	l, ok := get[*stringList](e, "MaaStringListBufferRemove", h)
	if !ok {
		return 0
	}
	l.mu.Lock()
	if i >= uint64(len(l.items)) {
		l.mu.Unlock()
		return 0
	}
	item := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()
	e.dropItems([]uintptr{item}, KindStringBuffer)
	return 1
}

func (e *Engine) stringListClear(h uintptr) uint8 {
	l, ok := get[*stringList](e, "MaaStringListBufferClear", h)
	if !ok {
		return 0
	}
	e.dropItems(l.take(), KindStringBuffer)
	return 1
}

// strings returns the contents of the string list h.
func (e *Engine) strings(fn string, h uintptr) ([]string, bool) {
	l, ok := get[*stringList](e, fn, h)
	if !ok {
		return nil, false
	}
	l.mu.Lock()
	items := append([]uintptr(nil), l.items...)
	l.mu.Unlock()
	out := make([]string, 0, len(items))
	for _, it := range items {
		b, ok := get[*stringBuffer](e, fn, it)
		if !ok {
			return nil, false
		}
		out = append(out, b.String())
	}
	return out, true
}

// writeStrings replaces the contents of the string list h.
func (e *Engine) writeStrings(fn string, h uintptr, items []string) bool {
	l, ok := get[*stringList](e, fn, h)
	if !ok {
		return false
	}
	e.dropItems(l.take(), KindStringBuffer)
	for _, s := range items {
		l.appendString(e, s)
	}
	return true
}

// ============================================================================
// Image buffers
// ============================================================================

// pixels is an 8-bit image in OpenCV layout.
type pixels struct {
	width, height, typ int32
	pix                []byte
}

func (p *pixels) channels() int32 { return p.typ>>3 + 1 }

func (p *pixels) clone() *pixels {
	if p == nil {
		return nil
	}
	c := *p
	c.pix = append([]byte(nil), p.pix...)
	return &c
}

// testPattern returns a BGR gradient of the given size.
func testPattern(width, height int32) *pixels {
	p := &pixels{width: width, height: height, typ: native.ImageTypeBGR, pix: make([]byte, width*height*3)}
	for y := range height {
		for x := range width {
			i := (y*width + x) * 3
			p.pix[i] = byte(x)
			p.pix[i+1] = byte(y)
			p.pix[i+2] = byte(x + y)
		}
	}
	return p
}

func (p *pixels) encodePNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, int(p.width), int(p.height)))
	ch := p.channels()
	for y := range p.height {
		for x := range p.width {
			px := p.pix[(y*p.width+x)*ch:]
			c := color.NRGBA{A: 0xff}
			if ch >= 3 {
				c.R, c.G, c.B = px[2], px[1], px[0]
			} else {
				c.R, c.G, c.B = px[0], px[0], px[0]
			}
			img.SetNRGBA(int(x), int(y), c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decodePNG(data []byte) (*pixels, bool) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	b := img.Bounds()
	p := testPattern(int32(b.Dx()), int32(b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*b.Dx() + x) * 3
			p.pix[i], p.pix[i+1], p.pix[i+2] = c.B, c.G, c.R
		}
	}
	return p, true
}

type imageBuffer struct {
	mu      sync.Mutex
	img     *pixels
	encoded []byte

	// Exported copies of img.pix and encoded, valid until the next change.
	raw, enc *block
}

func (*imageBuffer) kind() string { return KindImageBuffer }

// reset drops the exported copies. b.mu must be held.
func (b *imageBuffer) reset() {
	b.encoded = nil
	b.raw.release()
	b.enc.release()
	b.raw, b.enc = nil, nil
}

func (b *imageBuffer) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *imageBuffer) load() *pixels {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img.clone()
}

func (b *imageBuffer) store(p *pixels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.img = p.clone()
	b.reset()
}

func (e *Engine) imageBufferCreate() uintptr {
	return e.put(&imageBuffer{})
}

func (e *Engine) imageBufferDestroy(h uintptr) {
	e.free("MaaImageBufferDestroy", h, KindImageBuffer)
}

func (e *Engine) imageBufferIsEmpty(h uintptr) uint8 {
	b, ok := get[*imageBuffer](e, "MaaImageBufferIsEmpty", h)
	if !ok {
		return 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return boolU8(b.img == nil)
}

func (e *Engine) imageBufferClear(h uintptr) uint8 {
	b, ok := get[*imageBuffer](e, "MaaImageBufferClear", h)
	if !ok {
		return 0
	}
	b.store(nil)
	return 1
}

func (e *Engine) imageBufferRawData(h uintptr) uintptr {
	b, ok := get[*imageBuffer](e, "MaaImageBufferGetRawData", h)
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return 0
	}
	if b.raw == nil {
		b.raw = newBlock(b.img.pix, false)
	}
	return b.raw.addr()
}

func (e *Engine) imageBufferMeta(fn string, h uintptr, f func(p *pixels) int32) int32 {
	b, ok := get[*imageBuffer](e, fn, h)
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return 0
	}
	return f(b.img)
}

func (e *Engine) imageBufferWidth(h uintptr) int32 {
	return e.imageBufferMeta("MaaImageBufferWidth", h, func(p *pixels) int32 { return p.width })
}

func (e *Engine) imageBufferHeight(h uintptr) int32 {
	return e.imageBufferMeta("MaaImageBufferHeight", h, func(p *pixels) int32 { return p.height })
}

func (e *Engine) imageBufferChannels(h uintptr) int32 {
	return e.imageBufferMeta("MaaImageBufferChannels", h, (*pixels).channels)
}

func (e *Engine) imageBufferType(h uintptr) int32 {
	return e.imageBufferMeta("MaaImageBufferType", h, func(p *pixels) int32 { return p.typ })
}

func (e *Engine) imageBufferSetRawData(h uintptr, data unsafe.Pointer, width, height, typ int32) uint8 {
	b, ok := get[*imageBuffer](e, "MaaImageBufferSetRawData", h)
	if !ok || data == nil || width <= 0 || height <= 0 || typ < 0 || typ>>3 > 3 {
		return 0
	}
	p := &pixels{width: width, height: height, typ: typ}
	n := int(width) * int(height) * int(p.channels())
	p.pix = append([]byte(nil), unsafe.Slice((*byte)(data), n)...)
	b.mu.Lock()
	b.img = p
	b.reset()
	b.mu.Unlock()
	return 1
}

func (e *Engine) imageBufferEncoded(h uintptr) uintptr {
	b, ok := get[*imageBuffer](e, "MaaImageBufferGetEncoded", h)
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return 0
	}
	if b.encoded == nil {
		b.encoded = b.img.encodePNG()
	}
	if b.enc == nil {
		b.enc = newBlock(b.encoded, false)
	}
	return b.enc.addr()
}

func (e *Engine) imageBufferEncodedSize(h uintptr) uint64 {
	b, ok := get[*imageBuffer](e, "MaaImageBufferGetEncodedSize", h)
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return 0
	}
	if b.encoded == nil {
		b.encoded = b.img.encodePNG()
	}
	return uint64(len(b.encoded))
}

func (e *Engine) imageBufferSetEncoded(h uintptr, data unsafe.Pointer, size uint64) uint8 {
	b, ok := get[*imageBuffer](e, "MaaImageBufferSetEncoded", h)
	if !ok || data == nil || size == 0 {
		return 0
	}
	p, ok := decodePNG(unsafe.Slice((*byte)(data), size))
	if !ok {
		return 0
	}
	b.store(p)
	return 1
}

// readImage returns a copy of the image in buffer h. A zero handle or an
// empty buffer gives nil.
func (e *Engine) readImage(fn string, h uintptr) *pixels {
	if h == 0 {
		return nil
	}
	b, ok := get[*imageBuffer](e, fn, h)
	if !ok {
		return nil
	}
	return b.load()
}

func (e *Engine) writeImage(fn string, h uintptr, p *pixels) bool {
	if h == 0 {
		return true
	}
	b, ok := get[*imageBuffer](e, fn, h)
	if !ok {
		return false
	}
	b.store(p)
	return true
}

// ============================================================================
// Image lists
// ============================================================================

type imageList struct {
	mu    sync.Mutex
	items []uintptr
}

func (*imageList) kind() string { return KindImageList }

func (l *imageList) take() []uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := l.items
	l.items = nil
	return items
}

func (e *Engine) imageListCreate() uintptr {
	return e.put(&imageList{})
}

func (e *Engine) imageListDestroy(h uintptr) {
	obj := e.free("MaaImageListBufferDestroy", h, KindImageList)
	if l, ok := obj.(*imageList); ok {
		e.dropItems(l.take(), KindImageBuffer)
	}
}

func (e *Engine) imageListIsEmpty(h uintptr) uint8 {
	return boolU8(e.imageListSize(h) == 0)
}

func (e *Engine) imageListSize(h uintptr) uint64 {
	l, ok := get[*imageList](e, "MaaImageListBufferSize", h)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.items))
}

func (e *Engine) imageListAt(h uintptr, i uint64) uintptr {
	l, ok := get[*imageList](e, "MaaImageListBufferAt", h)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= uint64(len(l.items)) {
		return 0
	}
	return l.items[i]
}

func (e *Engine) imageListAppend(h, value uintptr) uint8 {
	l, ok := get[*imageList](e, "MaaImageListBufferAppend", h)
	if !ok {
		return 0
	}
	p := e.readImage("MaaImageListBufferAppend", value)
	l.appendImage(e, p)
	return 1
}

func (l *imageList) appendImage(e *Engine, p *pixels) {
	h := e.put(&imageBuffer{img: p.clone()})
	l.mu.Lock()
	l.items = append(l.items, h)
	l.mu.Unlock()
}

func (e *Engine) imageListRemove(h uintptr, i uint64) uint8 {
	l, ok := get[*imageList](e, "MaaImageListBufferRemove", h)
	if !ok {
		return 0
	}
	l.mu.Lock()
	if i >= uint64(len(l.items)) {
		l.mu.Unlock()
		return 0
	}
	item := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()
	e.dropItems([]uintptr{item}, KindImageBuffer)
	return 1
}

func (e *Engine) imageListClear(h uintptr) uint8 {
	l, ok := get[*imageList](e, "MaaImageListBufferClear", h)
	if !ok {
		return 0
	}
	e.dropItems(l.take(), KindImageBuffer)
	return 1
}

func boolU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
