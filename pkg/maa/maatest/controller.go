package maatest

import (
	"os"
	"sync"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// Size of the screenshots taken by built-in controllers.
const (
	ScreenWidth  = 320
	ScreenHeight = 180
)

type controller struct {
	e     *Engine
	h     uintptr
	typ   string
	q     *queue
	sinks sinkSet

	// Set for custom controllers.
	vtable native.CustomControllerCallbacks
	arg    uintptr

	mu        sync.Mutex
	address   string
	connected bool
	uuid      string
	cached    *pixels
	options   map[int32][]byte
	ops       []string
}

func (*controller) kind() string { return KindController }

func (e *Engine) newController(typ, address string) *controller {
	return &controller{e: e, typ: typ, address: address, q: newQueue(e), options: make(map[int32][]byte)}
}

func (e *Engine) putController(c *controller) uintptr {
	c.h = e.put(c)
	return c.h
}

func (e *Engine) adbControllerCreate(adbPath, address string, screencap, input uint64, config, agentPath string) uintptr {
	if adbPath == "" || address == "" || screencap == 0 || input == 0 {
		return 0
	}
	return e.putController(e.newController("adb", address))
}

func (e *Engine) win32ControllerCreate(hwnd uintptr, screencap, mouse, keyboard uint64) uintptr {
	if hwnd == 0 {
		return 0
	}
	return e.putController(e.newController("win32", HWndString(hwnd)))
}

func (e *Engine) dbgControllerCreate(readPath, writePath string, typ uint64, config string) uintptr {
	if _, err := os.Stat(readPath); err != nil {
		return 0
	}
	return e.putController(e.newController("dbg", readPath))
}

func (e *Engine) customControllerCreate(callbacks *native.CustomControllerCallbacks, arg uintptr) uintptr {
	if callbacks == nil {
		return 0
	}
	c := e.newController("custom", "")
	c.vtable = *callbacks
	c.arg = arg
	return e.putController(c)
}

func (e *Engine) controllerDestroy(h uintptr) {
	if c, ok := e.free("MaaControllerDestroy", h, KindController).(*controller); ok {
		c.q.close()
	}
}

func (e *Engine) controllerAddSink(h, cb, arg uintptr) int64 {
	c, ok := get[*controller](e, "MaaControllerAddSink", h)
	if !ok {
		return native.InvalidID
	}
	return c.sinks.add(e, cb, arg)
}

func (e *Engine) controllerRemoveSink(h uintptr, id int64) {
	if c, ok := get[*controller](e, "MaaControllerRemoveSink", h); ok {
		c.sinks.remove(id)
	}
}

func (e *Engine) controllerClearSinks(h uintptr) {
	if c, ok := get[*controller](e, "MaaControllerClearSinks", h); ok {
		c.sinks.clear()
	}
}

func (e *Engine) controllerSetOption(h uintptr, key int32, value unsafe.Pointer, size uint64) uint8 {
	c, ok := get[*controller](e, "MaaControllerSetOption", h)
	if !ok || value == nil {
		return 0
	}
	switch {
	case key == native.CtrlOptionScreenshotTargetLongSide && size == 4,
		key == native.CtrlOptionScreenshotTargetShortSide && size == 4,
		key == native.CtrlOptionScreenshotUseRawSize && size == 1:
	default:
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options[key] = append([]byte(nil), unsafe.Slice((*byte)(value), size)...)
	return 1
}

// ============================================================================
// Operations
// ============================================================================

// run performs one device operation synchronously and emits the
// Controller.Action notifications around it.
func (c *controller) run(id int64, action string, param map[string]any, op func() bool) bool {
	c.mu.Lock()
	uuid := c.uuid
	c.mu.Unlock()
	detail := map[string]any{"ctrl_id": id, "uuid": uuid, "action": action, "param": param}
	c.sinks.emit(c.e, c.h, "Controller.Action.Starting", detail)
	ok := op()
	if ok {
		c.mu.Lock()
		c.ops = append(c.ops, action)
		c.mu.Unlock()
		c.sinks.emit(c.e, c.h, "Controller.Action.Succeeded", detail)
	} else {
		c.sinks.emit(c.e, c.h, "Controller.Action.Failed", detail)
	}
	return ok
}

func (c *controller) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// device runs op on a connected device. Custom controllers call custom;
// built-in ones just succeed.
func (c *controller) device(custom func() bool) bool {
	if !c.isConnected() {
		return false
	}
	if c.typ == "custom" {
		return custom()
	}
	return true
}

func (c *controller) connect() bool {
	if c.typ != "custom" {
		c.mu.Lock()
		c.connected = true
		c.uuid = c.typ + ":" + c.address
		c.mu.Unlock()
		return true
	}
	connect, ok := callback[native.CtrlConnectCallback](c.e, c.vtable.Connect)
	if !ok || connect(c.arg) == 0 {
		return false
	}
	if features, ok := callback[native.CtrlFeaturesCallback](c.e, c.vtable.GetFeatures); ok {
		features(c.arg)
	}
	uuid := ""
	if request, ok := callback[native.CtrlRequestUUIDCallback](c.e, c.vtable.RequestUUID); ok {
		b := &stringBuffer{}
		buf, drop := c.e.scratch(b)
		if request(c.arg, buf) != 0 {
			uuid = b.String()
		}
		drop()
	}
	c.mu.Lock()
	c.connected = true
	c.uuid = uuid
	c.mu.Unlock()
	return true
}

func (c *controller) screencap() bool {
	if !c.isConnected() {
		return false
	}
	var img *pixels
	if c.typ == "custom" {
		fn, ok := callback[native.CtrlScreencapCallback](c.e, c.vtable.Screencap)
		if !ok {
			return false
		}
		b := &imageBuffer{}
		buf, drop := c.e.scratch(b)
		if fn(c.arg, buf) != 0 {
			img = b.load()
		}
		drop()
	} else {
		img = testPattern(ScreenWidth, ScreenHeight)
	}
	if img == nil {
		return false
	}
	c.mu.Lock()
	c.cached = img
	c.mu.Unlock()
	return true
}

func (c *controller) click(x, y int32) bool {
	return c.device(func() bool {
		fn, ok := callback[native.CtrlClickCallback](c.e, c.vtable.Click)
		return ok && fn(x, y, c.arg) != 0
	})
}

// ctrl resolves h for a post function.
func (e *Engine) ctrl(fn string, h uintptr) (*controller, bool) {
	return get[*controller](e, fn, h)
}

func (e *Engine) controllerPost(fn string, h uintptr, action string, param map[string]any, op func(c *controller) bool) int64 {
	c, ok := e.ctrl(fn, h)
	if !ok {
		return native.InvalidID
	}
	return c.q.post(func(j *job) bool {
		return c.run(j.id, action, param, func() bool { return op(c) })
	})
}

func (e *Engine) controllerPostConnection(h uintptr) int64 {
	return e.controllerPost("MaaControllerPostConnection", h, "connect", nil, (*controller).connect)
}

func (e *Engine) controllerPostClick(h uintptr, x, y int32) int64 {
	return e.controllerPost("MaaControllerPostClick", h, "click", map[string]any{"x": x, "y": y},
		func(c *controller) bool { return c.click(x, y) })
}

func (e *Engine) controllerPostSwipe(h uintptr, x1, y1, x2, y2, duration int32) int64 {
	param := map[string]any{"x1": x1, "y1": y1, "x2": x2, "y2": y2, "duration": duration}
	return e.controllerPost("MaaControllerPostSwipe", h, "swipe", param, func(c *controller) bool {
		return c.device(func() bool {
			fn, ok := callback[native.CtrlSwipeCallback](e, c.vtable.Swipe)
			return ok && fn(x1, y1, x2, y2, duration, c.arg) != 0
		})
	})
}

func (e *Engine) controllerPostKey(fn, action string, h uintptr, keycode int32, slot func(c *controller) uintptr) int64 {
	return e.controllerPost(fn, h, action, map[string]any{"keycode": keycode}, func(c *controller) bool {
		return c.device(func() bool {
			cb, ok := callback[native.CtrlKeyCallback](e, slot(c))
			return ok && cb(keycode, c.arg) != 0
		})
	})
}

func (e *Engine) controllerPostClickKey(h uintptr, keycode int32) int64 {
	return e.controllerPostKey("MaaControllerPostClickKey", "click_key", h, keycode,
		func(c *controller) uintptr { return c.vtable.ClickKey })
}

func (e *Engine) controllerPostKeyDown(h uintptr, keycode int32) int64 {
	return e.controllerPostKey("MaaControllerPostKeyDown", "key_down", h, keycode,
		func(c *controller) uintptr { return c.vtable.KeyDown })
}

func (e *Engine) controllerPostKeyUp(h uintptr, keycode int32) int64 {
	return e.controllerPostKey("MaaControllerPostKeyUp", "key_up", h, keycode,
		func(c *controller) uintptr { return c.vtable.KeyUp })
}

func (e *Engine) controllerPostInputText(h uintptr, text string) int64 {
	return e.controllerPost("MaaControllerPostInputText", h, "input_text", map[string]any{"text": text}, func(c *controller) bool {
		return c.device(func() bool {
			fn, ok := callback[native.CtrlInputTextCallback](e, c.vtable.InputText)
			if !ok {
				return false
			}
			a := new(arena)
			defer a.release()
			return fn(a.cstr(text), c.arg) != 0
		})
	})
}

func (e *Engine) controllerPostApp(fn, action string, h uintptr, intent string, slot func(c *controller) uintptr) int64 {
	return e.controllerPost(fn, h, action, map[string]any{"intent": intent}, func(c *controller) bool {
		return c.device(func() bool {
			cb, ok := callback[native.CtrlAppCallback](e, slot(c))
			if !ok {
				return false
			}
			a := new(arena)
			defer a.release()
			return cb(a.cstr(intent), c.arg) != 0
		})
	})
}

func (e *Engine) controllerPostStartApp(h uintptr, intent string) int64 {
	return e.controllerPostApp("MaaControllerPostStartApp", "start_app", h, intent,
		func(c *controller) uintptr { return c.vtable.StartApp })
}

func (e *Engine) controllerPostStopApp(h uintptr, intent string) int64 {
	return e.controllerPostApp("MaaControllerPostStopApp", "stop_app", h, intent,
		func(c *controller) uintptr { return c.vtable.StopApp })
}

func (e *Engine) controllerPostTouch(fn, action string, h uintptr, contact, x, y, pressure int32, slot func(c *controller) uintptr) int64 {
	param := map[string]any{"contact": contact, "x": x, "y": y, "pressure": pressure}
	return e.controllerPost(fn, h, action, param, func(c *controller) bool {
		return c.device(func() bool {
			cb, ok := callback[native.CtrlTouchCallback](e, slot(c))
			return ok && cb(contact, x, y, pressure, c.arg) != 0
		})
	})
}

func (e *Engine) controllerPostTouchDown(h uintptr, contact, x, y, pressure int32) int64 {
	return e.controllerPostTouch("MaaControllerPostTouchDown", "touch_down", h, contact, x, y, pressure,
		func(c *controller) uintptr { return c.vtable.TouchDown })
}

func (e *Engine) controllerPostTouchMove(h uintptr, contact, x, y, pressure int32) int64 {
	return e.controllerPostTouch("MaaControllerPostTouchMove", "touch_move", h, contact, x, y, pressure,
		func(c *controller) uintptr { return c.vtable.TouchMove })
}

func (e *Engine) controllerPostTouchUp(h uintptr, contact int32) int64 {
	return e.controllerPost("MaaControllerPostTouchUp", h, "touch_up", map[string]any{"contact": contact}, func(c *controller) bool {
		return c.device(func() bool {
			cb, ok := callback[native.CtrlTouchUpCallback](e, c.vtable.TouchUp)
			return ok && cb(contact, c.arg) != 0
		})
	})
}

func (e *Engine) controllerPostScreencap(h uintptr) int64 {
	return e.controllerPost("MaaControllerPostScreencap", h, "screencap", nil, (*controller).screencap)
}

func (e *Engine) controllerPostScroll(h uintptr, dx, dy int32) int64 {
	return e.controllerPost("MaaControllerPostScroll", h, "scroll", map[string]any{"dx": dx, "dy": dy}, func(c *controller) bool {
		return c.device(func() bool {
			cb, ok := callback[native.CtrlScrollCallback](e, c.vtable.Scroll)
			return ok && cb(dx, dy, c.arg) != 0
		})
	})
}

// ============================================================================
// Queries
// ============================================================================

func (e *Engine) controllerStatus(h uintptr, id int64) int32 {
	c, ok := e.ctrl("MaaControllerStatus", h)
	if !ok {
		return native.StatusInvalid
	}
	return c.q.status(id)
}

func (e *Engine) controllerWait(h uintptr, id int64) int32 {
	c, ok := e.ctrl("MaaControllerWait", h)
	if !ok {
		return native.StatusInvalid
	}
	return c.q.wait(id)
}

func (e *Engine) controllerConnected(h uintptr) uint8 {
	c, ok := e.ctrl("MaaControllerConnected", h)
	if !ok {
		return 0
	}
	return boolU8(c.isConnected())
}

func (e *Engine) controllerCachedImage(h, img uintptr) uint8 {
	c, ok := e.ctrl("MaaControllerCachedImage", h)
	if !ok {
		return 0
	}
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()
	if cached == nil {
		return 0
	}
	return boolU8(e.writeImage("MaaControllerCachedImage", img, cached))
}

func (e *Engine) controllerGetUUID(h, buf uintptr) uint8 {
	c, ok := e.ctrl("MaaControllerGetUuid", h)
	if !ok {
		return 0
	}
	c.mu.Lock()
	uuid, connected := c.uuid, c.connected
	c.mu.Unlock()
	if !connected {
		return 0
	}
	return boolU8(e.writeString("MaaControllerGetUuid", buf, uuid))
}

func (e *Engine) controllerGetResolution(h uintptr, width, height *int32) uint8 {
	c, ok := e.ctrl("MaaControllerGetResolution", h)
	if !ok || width == nil || height == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.cached != nil:
		*width, *height = c.cached.width, c.cached.height
	case c.connected && c.typ != "custom":
		*width, *height = ScreenWidth, ScreenHeight
	default:
		return 0
	}
	return 1
}

// Operations returns the device operations controller h performed, in
// order.
func (e *Engine) Operations(h uintptr) []string {
	c, ok := e.lookup(h).(*controller)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}

// ControllerOption returns the raw value of option key set on controller
// h.
func (e *Engine) ControllerOption(h uintptr, key int32) ([]byte, bool) {
	c, ok := e.lookup(h).(*controller)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.options[key]
	return v, ok
}
