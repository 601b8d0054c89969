package maatest

import (
	"fmt"
	"sync"
)

// AdbDevice is a device reported by the simulated adb scan.
type AdbDevice struct {
	Name      string
	AdbPath   string
	Address   string
	Screencap uint64
	Input     uint64
	Config    string
}

// DesktopWindow is a window reported by the simulated window scan.
type DesktopWindow struct {
	HWnd      uintptr
	ClassName string
	Name      string
}

// SetAdbDevices sets the devices found by later scans.
func (e *Engine) SetAdbDevices(devices ...AdbDevice) {
	e.devMu.Lock()
	defer e.devMu.Unlock()
	e.devices = append([]AdbDevice(nil), devices...)
}

// SetDesktopWindows sets the windows found by later scans.
func (e *Engine) SetDesktopWindows(windows ...DesktopWindow) {
	e.devMu.Lock()
	defer e.devMu.Unlock()
	e.windows = append([]DesktopWindow(nil), windows...)
}

func (e *Engine) toolkitConfigInitOption(userPath, defaultJSON string) uint8 {
	if _, err := parsePipeline(defaultJSON); err != nil {
		return 0
	}
	return 1
}

// ============================================================================
// Adb devices
// ============================================================================

type adbDevice struct {
	screencap, input               uint64
	name, adbPath, address, config *block
}

func (*adbDevice) kind() string { return "adb_device" }

func (d *adbDevice) release() {
	d.name.release()
	d.adbPath.release()
	d.address.release()
	d.config.release()
}

type itemList struct {
	listKind string
	mu       sync.Mutex
	items    []uintptr
}

func (l *itemList) kind() string { return l.listKind }

func (l *itemList) size() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.items))
}

func (l *itemList) at(i uint64) uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= uint64(len(l.items)) {
		return 0
	}
	return l.items[i]
}

func (e *Engine) fillList(l *itemList, objs []object) {
	l.mu.Lock()
	old := l.items
	l.items = nil
	l.mu.Unlock()
	for _, h := range old {
		e.forget(h)
	}
	for _, obj := range objs {
		h := e.put(obj)
		l.mu.Lock()
		l.items = append(l.items, h)
		l.mu.Unlock()
	}
}

func (e *Engine) destroyList(fn string, h uintptr, kind string) {
	if l, ok := e.free(fn, h, kind).(*itemList); ok {
		e.fillList(l, nil)
	}
}

func (e *Engine) adbDeviceListCreate() uintptr {
	return e.put(&itemList{listKind: KindAdbDeviceList})
}

func (e *Engine) adbDeviceListDestroy(h uintptr) {
	e.destroyList("MaaToolkitAdbDeviceListDestroy", h, KindAdbDeviceList)
}

func (e *Engine) adbDeviceList(fn string, h uintptr) (*itemList, bool) {
	l, ok := get[*itemList](e, fn, h)
	if !ok || l.listKind != KindAdbDeviceList {
		if ok {
			e.fault("%s: %#x is not an adb device list", fn, h)
		}
		return nil, false
	}
	return l, true
}

func (e *Engine) adbDeviceFind(h uintptr) uint8 {
	return e.adbDeviceFindSpecified("", h)
}

// adbDeviceFindSpecified fills list h with the configured devices, keeping
// only those using adbPath when it is set.
func (e *Engine) adbDeviceFindSpecified(adbPath string, h uintptr) uint8 {
	l, ok := e.adbDeviceList("MaaToolkitAdbDeviceFind", h)
	if !ok {
		return 0
	}
	e.devMu.Lock()
	var objs []object
	for _, d := range e.devices {
		if adbPath != "" && d.AdbPath != adbPath {
			continue
		}
		objs = append(objs, &adbDevice{
			screencap: d.Screencap,
			input:     d.Input,
			name:      cstring(d.Name),
			adbPath:   cstring(d.AdbPath),
			address:   cstring(d.Address),
			config:    cstring(d.Config),
		})
	}
	e.devMu.Unlock()
	e.fillList(l, objs)
	return 1
}

func (e *Engine) adbDeviceListSize(h uintptr) uint64 {
	l, ok := e.adbDeviceList("MaaToolkitAdbDeviceListSize", h)
	if !ok {
		return 0
	}
	return l.size()
}

func (e *Engine) adbDeviceListAt(h uintptr, i uint64) uintptr {
	l, ok := e.adbDeviceList("MaaToolkitAdbDeviceListAt", h)
	if !ok {
		return 0
	}
	return l.at(i)
}

func (e *Engine) adbDeviceField(fn string, h uintptr, field func(d *adbDevice) *block) uintptr {
	d, ok := get[*adbDevice](e, fn, h)
	if !ok {
		return 0
	}
	return field(d).addr()
}

func (e *Engine) adbDeviceName(h uintptr) uintptr {
	return e.adbDeviceField("MaaToolkitAdbDeviceGetName", h, func(d *adbDevice) *block { return d.name })
}

func (e *Engine) adbDeviceAdbPath(h uintptr) uintptr {
	return e.adbDeviceField("MaaToolkitAdbDeviceGetAdbPath", h, func(d *adbDevice) *block { return d.adbPath })
}

func (e *Engine) adbDeviceAddress(h uintptr) uintptr {
	return e.adbDeviceField("MaaToolkitAdbDeviceGetAddress", h, func(d *adbDevice) *block { return d.address })
}

func (e *Engine) adbDeviceConfig(h uintptr) uintptr {
	return e.adbDeviceField("MaaToolkitAdbDeviceGetConfig", h, func(d *adbDevice) *block { return d.config })
}

func (e *Engine) adbDeviceScreencap(h uintptr) uint64 {
	d, ok := get[*adbDevice](e, "MaaToolkitAdbDeviceGetScreencapMethods", h)
	if !ok {
		return 0
	}
	return d.screencap
}

func (e *Engine) adbDeviceInput(h uintptr) uint64 {
	d, ok := get[*adbDevice](e, "MaaToolkitAdbDeviceGetInputMethods", h)
	if !ok {
		return 0
	}
	return d.input
}

// ============================================================================
// Desktop windows
// ============================================================================

type desktopWindow struct {
	hwnd            uintptr
	className, name *block
}

func (*desktopWindow) kind() string { return "desktop_window" }

func (w *desktopWindow) release() {
	w.className.release()
	w.name.release()
}

func (e *Engine) desktopWindowListCreate() uintptr {
	return e.put(&itemList{listKind: KindDesktopWindowList})
}

func (e *Engine) desktopWindowListDestroy(h uintptr) {
	e.destroyList("MaaToolkitDesktopWindowListDestroy", h, KindDesktopWindowList)
}

func (e *Engine) windowList(fn string, h uintptr) (*itemList, bool) {
	l, ok := get[*itemList](e, fn, h)
	if !ok || l.listKind != KindDesktopWindowList {
		if ok {
			e.fault("%s: %#x is not a desktop window list", fn, h)
		}
		return nil, false
	}
	return l, true
}

func (e *Engine) desktopWindowFindAll(h uintptr) uint8 {
	l, ok := e.windowList("MaaToolkitDesktopWindowFindAll", h)
	if !ok {
		return 0
	}
	e.devMu.Lock()
	objs := make([]object, 0, len(e.windows))
	for _, w := range e.windows {
		objs = append(objs, &desktopWindow{hwnd: w.HWnd, className: cstring(w.ClassName), name: cstring(w.Name)})
	}
	e.devMu.Unlock()
	e.fillList(l, objs)
	return 1
}

func (e *Engine) desktopWindowListSize(h uintptr) uint64 {
	l, ok := e.windowList("MaaToolkitDesktopWindowListSize", h)
	if !ok {
		return 0
	}
	return l.size()
}

func (e *Engine) desktopWindowListAt(h uintptr, i uint64) uintptr {
	l, ok := e.windowList("MaaToolkitDesktopWindowListAt", h)
	if !ok {
		return 0
	}
	return l.at(i)
}

func (e *Engine) desktopWindowHandle(h uintptr) uintptr {
	w, ok := get[*desktopWindow](e, "MaaToolkitDesktopWindowGetHandle", h)
	if !ok {
		return 0
	}
	return w.hwnd
}

func (e *Engine) desktopWindowClassName(h uintptr) uintptr {
	w, ok := get[*desktopWindow](e, "MaaToolkitDesktopWindowGetClassName", h)
	if !ok {
		return 0
	}
	return w.className.addr()
}

func (e *Engine) desktopWindowName(h uintptr) uintptr {
	w, ok := get[*desktopWindow](e, "MaaToolkitDesktopWindowGetWindowName", h)
	if !ok {
		return 0
	}
	return w.name.addr()
}

// HWndString formats a window handle the way built-in win32 controllers
// report it in their uuid.
func HWndString(hwnd uintptr) string {
	return fmt.Sprintf("hwnd:%#x", hwnd)
}
