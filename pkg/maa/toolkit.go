package maa

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// AdbDevice is an android device found by the toolkit.
type AdbDevice struct {
	Name      string             `json:"name"`
	AdbPath   string             `json:"adb_path"`
	Address   string             `json:"address"`
	Screencap AdbScreencapMethod `json:"screencap_methods"`
	Input     AdbInputMethod     `json:"input_methods"`
	Config    json.RawMessage    `json:"config,omitempty"`
}

// AdbConfig returns the controller configuration for d.
func (d AdbDevice) AdbConfig() AdbConfig {
	cfg := AdbConfig{
		AdbPath:   d.AdbPath,
		Address:   d.Address,
		Screencap: d.Screencap,
		Input:     d.Input,
	}
	if len(d.Config) > 0 {
		cfg.Config = d.Config
	}
	return cfg
}

// DesktopWindow is a top-level desktop window found by the toolkit.
type DesktopWindow struct {
	HWnd      uintptr `json:"hwnd"`
	ClassName string  `json:"class_name"`
	Name      string  `json:"window_name"`
}

// Toolkit discovers devices and windows. It needs the MaaToolkit library
// next to MaaFramework.
type Toolkit struct {
	lib    *native.Lib
	closed atomic.Bool
}

var adbDeviceSymbols = []string{
	"MaaToolkitAdbDeviceListCreate",
	"MaaToolkitAdbDeviceListDestroy",
	"MaaToolkitAdbDeviceListSize",
	"MaaToolkitAdbDeviceListAt",
	"MaaToolkitAdbDeviceGetName",
	"MaaToolkitAdbDeviceGetAdbPath",
	"MaaToolkitAdbDeviceGetAddress",
	"MaaToolkitAdbDeviceGetScreencapMethods",
	"MaaToolkitAdbDeviceGetInputMethods",
	"MaaToolkitAdbDeviceGetConfig",
}

var desktopWindowSymbols = []string{
	"MaaToolkitDesktopWindowListCreate",
	"MaaToolkitDesktopWindowListDestroy",
	"MaaToolkitDesktopWindowFindAll",
	"MaaToolkitDesktopWindowListSize",
	"MaaToolkitDesktopWindowListAt",
	"MaaToolkitDesktopWindowGetHandle",
	"MaaToolkitDesktopWindowGetClassName",
	"MaaToolkitDesktopWindowGetWindowName",
}

// NewToolkit initializes the toolkit with its user directory and default
// configuration document.
func NewToolkit(userPath string, defaultConfig any) (*Toolkit, error) {
	l, err := lib()
	if err != nil {
		return nil, err
	}
	if l.MaaToolkitConfigInitOption == nil {
		return nil, missingSymbol(l, "MaaToolkitConfigInitOption")
	}
	if err := encodeString("user path", userPath); err != nil {
		return nil, err
	}
	doc, err := encodeDocument("toolkit config", defaultConfig)
	if err != nil {
		return nil, err
	}
	if l.MaaToolkitConfigInitOption(userPath, doc) == 0 {
		return nil, fmt.Errorf("%w: toolkit init", ErrConstruction)
	}
	return &Toolkit{lib: l}, nil
}

// Close releases the toolkit. Later scans fail with ErrInvalidHandle.
// Closing twice is a no-op.
func (tk *Toolkit) Close() error {
	tk.closed.Store(true)
	return nil
}

func (tk *Toolkit) check() error {
	if tk == nil || tk.closed.Load() {
		return fmt.Errorf("%w: toolkit closed", ErrInvalidHandle)
	}
	return nil
}

func missingSymbol(l *native.Lib, name string) error {
	return &LinkError{Path: l.Path, Symbol: name}
}

// requireSymbols reports the first of the named optional entry points that
// the loaded library lacks.
func requireSymbols(l *native.Lib, names ...string) error {
	v := reflect.ValueOf(l).Elem()
	for _, name := range names {
		f := v.FieldByName(name)
		if !f.IsValid() || f.IsNil() {
			return missingSymbol(l, name)
		}
	}
	return nil
}

// FindAdbDevices scans for android devices with every adb known to the
// toolkit.
func (tk *Toolkit) FindAdbDevices() ([]AdbDevice, error) {
	if err := tk.check(); err != nil {
		return nil, err
	}
	if err := requireSymbols(tk.lib, "MaaToolkitAdbDeviceFind"); err != nil {
		return nil, err
	}
	return tk.adbDevices(tk.lib.MaaToolkitAdbDeviceFind)
}

// FindAdbDevicesAt scans for android devices with the adb at adbPath.
func (tk *Toolkit) FindAdbDevicesAt(adbPath string) ([]AdbDevice, error) {
	if err := tk.check(); err != nil {
		return nil, err
	}
	if err := requireSymbols(tk.lib, "MaaToolkitAdbDeviceFindSpecified"); err != nil {
		return nil, err
	}
	if err := encodeString("adb path", adbPath); err != nil {
		return nil, err
	}
	return tk.adbDevices(func(list uintptr) uint8 {
		return tk.lib.MaaToolkitAdbDeviceFindSpecified(adbPath, list)
	})
}

func (tk *Toolkit) adbDevices(find func(list uintptr) uint8) ([]AdbDevice, error) {
	l := tk.lib
	if err := requireSymbols(l, adbDeviceSymbols...); err != nil {
		return nil, err
	}
	list := l.MaaToolkitAdbDeviceListCreate()
	if list == 0 {
		return nil, fmt.Errorf("%w: adb device list", ErrConstruction)
	}
	defer l.MaaToolkitAdbDeviceListDestroy(list)
	if find(list) == 0 {
		return nil, fmt.Errorf("%w: find adb devices", ErrRejected)
	}

	n := l.MaaToolkitAdbDeviceListSize(list)
	out := make([]AdbDevice, 0, n)
	for i := range n {
		dev := l.MaaToolkitAdbDeviceListAt(list, i)
		if dev == 0 {
			continue
		}
		d := AdbDevice{
			Screencap: AdbScreencapMethod(l.MaaToolkitAdbDeviceGetScreencapMethods(dev)),
			Input:     AdbInputMethod(l.MaaToolkitAdbDeviceGetInputMethods(dev)),
		}
		var err error
		if d.Name, err = decodeCString("device name", l.MaaToolkitAdbDeviceGetName(dev)); err != nil {
			return nil, err
		}
		if d.AdbPath, err = decodeCString("adb path", l.MaaToolkitAdbDeviceGetAdbPath(dev)); err != nil {
			return nil, err
		}
		if d.Address, err = decodeCString("device address", l.MaaToolkitAdbDeviceGetAddress(dev)); err != nil {
			return nil, err
		}
		config, err := decodeCString("device config", l.MaaToolkitAdbDeviceGetConfig(dev))
		if err != nil {
			return nil, err
		}
		if d.Config, err = decodeDocument("device config", config); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// FindDesktopWindows lists the top-level desktop windows.
func (tk *Toolkit) FindDesktopWindows() ([]DesktopWindow, error) {
	if err := tk.check(); err != nil {
		return nil, err
	}
	l := tk.lib
	if err := requireSymbols(l, desktopWindowSymbols...); err != nil {
		return nil, err
	}
	list := l.MaaToolkitDesktopWindowListCreate()
	if list == 0 {
		return nil, fmt.Errorf("%w: desktop window list", ErrConstruction)
	}
	defer l.MaaToolkitDesktopWindowListDestroy(list)
	if l.MaaToolkitDesktopWindowFindAll(list) == 0 {
		return nil, fmt.Errorf("%w: find desktop windows", ErrRejected)
	}

	n := l.MaaToolkitDesktopWindowListSize(list)
	out := make([]DesktopWindow, 0, n)
	for i := range n {
		win := l.MaaToolkitDesktopWindowListAt(list, i)
		if win == 0 {
			continue
		}
		w := DesktopWindow{HWnd: l.MaaToolkitDesktopWindowGetHandle(win)}
		var err error
		if w.ClassName, err = decodeCString("class name", l.MaaToolkitDesktopWindowGetClassName(win)); err != nil {
			return nil, err
		}
		if w.Name, err = decodeCString("window name", l.MaaToolkitDesktopWindowGetWindowName(win)); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
