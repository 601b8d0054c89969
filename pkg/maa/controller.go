package maa

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// AdbScreencapMethod selects the screencap methods an adb controller may
// try, as a bit set.
type AdbScreencapMethod uint64

const (
	AdbScreencapEncodeToFileAndPull AdbScreencapMethod = 1
	AdbScreencapEncode              AdbScreencapMethod = 1 << 1
	AdbScreencapRawWithGzip         AdbScreencapMethod = 1 << 2
	AdbScreencapRawByNetcat         AdbScreencapMethod = 1 << 3
	AdbScreencapMinicapDirect       AdbScreencapMethod = 1 << 4
	AdbScreencapMinicapStream       AdbScreencapMethod = 1 << 5
	AdbScreencapEmulatorExtras      AdbScreencapMethod = 1 << 6

	AdbScreencapAll     AdbScreencapMethod = ^AdbScreencapMethod(0)
	AdbScreencapDefault                    = AdbScreencapAll &^ (AdbScreencapRawByNetcat | AdbScreencapMinicapDirect | AdbScreencapMinicapStream)
)

// AdbInputMethod selects the input methods of an adb controller.
type AdbInputMethod uint64

const (
	AdbInputAdbShell           AdbInputMethod = 1
	AdbInputMinitouchAndAdbKey AdbInputMethod = 1 << 1
	AdbInputMaatouch           AdbInputMethod = 1 << 2
	AdbInputEmulatorExtras     AdbInputMethod = 1 << 3

	AdbInputAll     AdbInputMethod = ^AdbInputMethod(0)
	AdbInputDefault                = AdbInputAll &^ AdbInputEmulatorExtras
)

// Win32ScreencapMethod selects the screencap method of a win32 controller.
type Win32ScreencapMethod uint64

const (
	Win32ScreencapGDI                  Win32ScreencapMethod = 1
	Win32ScreencapFramePool            Win32ScreencapMethod = 1 << 1
	Win32ScreencapDXGIDesktopDup       Win32ScreencapMethod = 1 << 2
	Win32ScreencapDXGIDesktopDupWindow Win32ScreencapMethod = 1 << 3
	Win32ScreencapPrintWindow          Win32ScreencapMethod = 1 << 4
	Win32ScreencapScreenDC             Win32ScreencapMethod = 1 << 5
)

// Win32InputMethod selects the mouse or keyboard method of a win32
// controller.
type Win32InputMethod uint64

const (
	Win32InputSeize                    Win32InputMethod = 1
	Win32InputSendMessage              Win32InputMethod = 1 << 1
	Win32InputPostMessage              Win32InputMethod = 1 << 2
	Win32InputLegacyEvent              Win32InputMethod = 1 << 3
	Win32InputPostThreadMessage        Win32InputMethod = 1 << 4
	Win32InputSendMessageWithCursorPos Win32InputMethod = 1 << 5
	Win32InputPostMessageWithCursorPos Win32InputMethod = 1 << 6
)

// DbgControllerType selects what a debug controller replays.
type DbgControllerType uint64

const (
	DbgCarouselImage   DbgControllerType = 1
	DbgReplayRecording DbgControllerType = 1 << 1
)

// AdbConfig configures NewAdbController. Zero method sets mean the
// defaults.
type AdbConfig struct {
	AdbPath   string
	Address   string
	Screencap AdbScreencapMethod
	Input     AdbInputMethod
	// Config is the extra JSON configuration, usually taken from a
	// discovered AdbDevice.
	Config    any
	AgentPath string
}

// Win32Config configures NewWin32Controller.
type Win32Config struct {
	HWnd      uintptr
	Screencap Win32ScreencapMethod
	Mouse     Win32InputMethod
	Keyboard  Win32InputMethod
}

// DbgConfig configures NewDbgController.
type DbgConfig struct {
	ReadPath  string
	WritePath string
	Type      DbgControllerType
	Config    any
}

// Controller drives one device.
type Controller struct {
	h   handle
	lib *native.Lib
}

var controllerSinks = sinkOps{
	prefix: "sink",
	add: func(l *native.Lib, raw, cb, token uintptr) int64 {
		return l.MaaControllerAddSink(raw, cb, token)
	},
	remove: func(l *native.Lib, raw uintptr, id int64) {
		l.MaaControllerRemoveSink(raw, id)
	},
}

func newController(l *native.Lib, raw uintptr, what string) (*Controller, error) {
	if raw == 0 {
		return nil, fmt.Errorf("%w: %s controller", ErrConstruction, what)
	}
	c := &Controller{lib: l}
	c.h.init("controller", raw)
	return c, nil
}

// NewAdbController creates a controller for the android device at
// cfg.Address.
func NewAdbController(cfg AdbConfig) (*Controller, error) {
	l, err := lib()
	if err != nil {
		return nil, err
	}
	if err := encodeString("adb path", cfg.AdbPath); err != nil {
		return nil, err
	}
	if err := encodeString("address", cfg.Address); err != nil {
		return nil, err
	}
	if err := encodeString("agent path", cfg.AgentPath); err != nil {
		return nil, err
	}
	config, err := encodeDocument("adb config", cfg.Config)
	if err != nil {
		return nil, err
	}
	screencap, input := cfg.Screencap, cfg.Input
	if screencap == 0 {
		screencap = AdbScreencapDefault
	}
	if input == 0 {
		input = AdbInputDefault
	}
	raw := l.MaaAdbControllerCreate(cfg.AdbPath, cfg.Address, uint64(screencap), uint64(input), config, cfg.AgentPath)
	return newController(l, raw, "adb")
}

// NewWin32Controller creates a controller for the desktop window cfg.HWnd.
func NewWin32Controller(cfg Win32Config) (*Controller, error) {
	l, err := lib()
	if err != nil {
		return nil, err
	}
	if cfg.HWnd == 0 {
		return nil, fmt.Errorf("%w: win32 controller needs a window handle", ErrConstruction)
	}
	raw := l.MaaWin32ControllerCreate(cfg.HWnd, uint64(cfg.Screencap), uint64(cfg.Mouse), uint64(cfg.Keyboard))
	return newController(l, raw, "win32")
}

// NewDbgController creates a controller that replays recorded images or
// operations.
func NewDbgController(cfg DbgConfig) (*Controller, error) {
	l, err := lib()
	if err != nil {
		return nil, err
	}
	if err := encodeString("read path", cfg.ReadPath); err != nil {
		return nil, err
	}
	if err := encodeString("write path", cfg.WritePath); err != nil {
		return nil, err
	}
	config, err := encodeDocument("dbg config", cfg.Config)
	if err != nil {
		return nil, err
	}
	raw := l.MaaDbgControllerCreate(cfg.ReadPath, cfg.WritePath, uint64(cfg.Type), config)
	return newController(l, raw, "dbg")
}

// NewCustomController creates a controller whose device operations are
// implemented by impl. impl is called from native threads and stays
// reachable until Close.
func NewCustomController(impl CustomController) (*Controller, error) {
	if impl == nil {
		return nil, fmt.Errorf("%w: nil custom controller", ErrConstruction)
	}
	l, err := lib()
	if err != nil {
		return nil, err
	}
	c := &Controller{lib: l}
	c.h.init("controller", 0)

	reg := registry.add(&c.h, KindController, "custom", impl)
	// The callback table lives in the process-wide trampoline set, so the
	// pointer handed over stays valid for the life of the process.
	raw := l.MaaCustomControllerCreate(trampolines(l).controller, reg.token)
	if raw == 0 {
		registry.remove(reg.token)
		return nil, fmt.Errorf("%w: custom controller", ErrConstruction)
	}
	c.h.mu.Lock()
	c.h.raw = raw
	c.h.mu.Unlock()
	registry.publish(reg, "custom")
	return c, nil
}

// Close destroys the controller. It returns ErrInUse while a Tasker is
// bound to it. Closing twice is a no-op.
func (c *Controller) Close() error {
	raw, err := c.h.take()
	if err != nil || raw == 0 {
		return err
	}
	c.lib.MaaControllerClearSinks(raw)
	c.lib.MaaControllerDestroy(raw)
	registry.drop(&c.h, 0)
	return nil
}

// LastFault returns the last fault raised by a callback owned by c.
func (c *Controller) LastFault() *CallbackFault {
	return c.h.lastFault()
}

func (c *Controller) jobStatus(id int64) (int32, error) {
	raw, err := c.h.ptr()
	if err != nil {
		return 0, err
	}
	return c.lib.MaaControllerStatus(raw, id), nil
}

func (c *Controller) jobWait(id int64) (int32, error) {
	raw, err := c.h.ptr()
	if err != nil {
		return 0, err
	}
	return c.lib.MaaControllerWait(raw, id), nil
}

func (c *Controller) post(op string, fn func(raw uintptr) int64) (*Job, error) {
	raw, err := c.h.ptr()
	if err != nil {
		return nil, err
	}
	id := fn(raw)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: controller %s", ErrRejected, op)
	}
	return newJob(c, id), nil
}

// PostConnection connects to the device.
func (c *Controller) PostConnection() (*Job, error) {
	return c.post("connection", c.lib.MaaControllerPostConnection)
}

func (c *Controller) PostClick(x, y int32) (*Job, error) {
	return c.post("click", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostClick(raw, x, y)
	})
}

// PostSwipe swipes from (x1, y1) to (x2, y2) over duration milliseconds.
func (c *Controller) PostSwipe(x1, y1, x2, y2, duration int32) (*Job, error) {
	return c.post("swipe", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostSwipe(raw, x1, y1, x2, y2, duration)
	})
}

func (c *Controller) PostClickKey(keycode int32) (*Job, error) {
	return c.post("click key", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostClickKey(raw, keycode)
	})
}

func (c *Controller) PostInputText(text string) (*Job, error) {
	if err := encodeString("input text", text); err != nil {
		return nil, err
	}
	return c.post("input text", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostInputText(raw, text)
	})
}

// PostStartApp starts the app named by intent (an android package or
// activity).
func (c *Controller) PostStartApp(intent string) (*Job, error) {
	if err := encodeString("intent", intent); err != nil {
		return nil, err
	}
	return c.post("start app", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostStartApp(raw, intent)
	})
}

func (c *Controller) PostStopApp(intent string) (*Job, error) {
	if err := encodeString("intent", intent); err != nil {
		return nil, err
	}
	return c.post("stop app", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostStopApp(raw, intent)
	})
}

func (c *Controller) PostTouchDown(contact, x, y, pressure int32) (*Job, error) {
	return c.post("touch down", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostTouchDown(raw, contact, x, y, pressure)
	})
}

func (c *Controller) PostTouchMove(contact, x, y, pressure int32) (*Job, error) {
	return c.post("touch move", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostTouchMove(raw, contact, x, y, pressure)
	})
}

func (c *Controller) PostTouchUp(contact int32) (*Job, error) {
	return c.post("touch up", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostTouchUp(raw, contact)
	})
}

func (c *Controller) PostKeyDown(keycode int32) (*Job, error) {
	return c.post("key down", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostKeyDown(raw, keycode)
	})
}

func (c *Controller) PostKeyUp(keycode int32) (*Job, error) {
	return c.post("key up", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostKeyUp(raw, keycode)
	})
}

// PostScreencap takes a screenshot. Read it with CachedImage once the job
// succeeds.
func (c *Controller) PostScreencap() (*Job, error) {
	return c.post("screencap", c.lib.MaaControllerPostScreencap)
}

func (c *Controller) PostScroll(dx, dy int32) (*Job, error) {
	return c.post("scroll", func(raw uintptr) int64 {
		return c.lib.MaaControllerPostScroll(raw, dx, dy)
	})
}

// Connected reports whether the device is connected.
func (c *Controller) Connected() (bool, error) {
	raw, err := c.h.ptr()
	if err != nil {
		return false, err
	}
	return c.lib.MaaControllerConnected(raw) != 0, nil
}

// CachedImage returns a copy of the last screenshot.
func (c *Controller) CachedImage() (*Image, error) {
	raw, err := c.h.ptr()
	if err != nil {
		return nil, err
	}
	buf, err := newImageBuffer(c.lib)
	if err != nil {
		return nil, err
	}
	defer buf.close()
	if c.lib.MaaControllerCachedImage(raw, buf.p) == 0 {
		return nil, fmt.Errorf("%w: no cached image", ErrRejected)
	}
	img, err := buf.image()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: cached image is empty", ErrRejected)
	}
	return img, nil
}

// EncodedPNG returns the last screenshot as PNG, encoded by the library.
func (c *Controller) EncodedPNG() ([]byte, error) {
	raw, err := c.h.ptr()
	if err != nil {
		return nil, err
	}
	buf, err := newImageBuffer(c.lib)
	if err != nil {
		return nil, err
	}
	defer buf.close()
	if c.lib.MaaControllerCachedImage(raw, buf.p) == 0 {
		return nil, fmt.Errorf("%w: no cached image", ErrRejected)
	}
	data := readEncoded(c.lib, buf.p)
	if !bytes.HasPrefix(data, pngMagic) {
		return nil, fmt.Errorf("%w: encoded image is not PNG", ErrDecode)
	}
	return data, nil
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// UUID returns the device identifier.
func (c *Controller) UUID() (string, error) {
	raw, err := c.h.ptr()
	if err != nil {
		return "", err
	}
	buf, err := newStringBuffer(c.lib)
	if err != nil {
		return "", err
	}
	defer buf.close()
	if c.lib.MaaControllerGetUuid(raw, buf.p) == 0 {
		return "", fmt.Errorf("%w: controller uuid", ErrRejected)
	}
	return buf.get("uuid")
}

// Resolution returns the raw screen size of the device.
func (c *Controller) Resolution() (width, height int32, err error) {
	raw, err := c.h.ptr()
	if err != nil {
		return 0, 0, err
	}
	if c.lib.MaaControllerGetResolution(raw, &width, &height) == 0 {
		return 0, 0, fmt.Errorf("%w: controller resolution", ErrRejected)
	}
	return width, height, nil
}

// SetScreenshotTargetLongSide scales screenshots so the long side is n
// pixels.
func (c *Controller) SetScreenshotTargetLongSide(n int32) error {
	return c.setOption("screenshot target long side", native.CtrlOptionScreenshotTargetLongSide, unsafe.Pointer(&n), 4)
}

// SetScreenshotTargetShortSide scales screenshots so the short side is n
// pixels.
func (c *Controller) SetScreenshotTargetShortSide(n int32) error {
	return c.setOption("screenshot target short side", native.CtrlOptionScreenshotTargetShortSide, unsafe.Pointer(&n), 4)
}

// SetScreenshotUseRawSize disables screenshot scaling.
func (c *Controller) SetScreenshotUseRawSize(on bool) error {
	v := boolByte(on)
	return c.setOption("screenshot use raw size", native.CtrlOptionScreenshotUseRawSize, unsafe.Pointer(&v), 1)
}

func (c *Controller) setOption(name string, key int32, value unsafe.Pointer, size uint64) error {
	raw, err := c.h.ptr()
	if err != nil {
		return err
	}
	if c.lib.MaaControllerSetOption(raw, key, value, size) == 0 {
		return fmt.Errorf("%w: controller option %s", ErrRejected, name)
	}
	return nil
}

// AddSink registers fn for controller events.
func (c *Controller) AddSink(fn Sink) (SinkID, error) {
	return addSink(c.lib, &c.h, controllerSinks, fn)
}

func (c *Controller) RemoveSink(id SinkID) error {
	return removeSink(c.lib, &c.h, controllerSinks, id)
}

func (c *Controller) ClearSinks() error {
	raw, err := c.h.ptr()
	if err != nil {
		return err
	}
	c.lib.MaaControllerClearSinks(raw)
	registry.drop(&c.h, KindSink)
	return nil
}
