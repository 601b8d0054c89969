package maa

import (
	"errors"
	"reflect"
	"testing"

	"github.com/haivivi/maafw/pkg/maa/maatest"
	"github.com/haivivi/maafw/pkg/maa/native"
)

func newToolkit(t *testing.T) *Toolkit {
	t.Helper()
	tk, err := NewToolkit(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewToolkit: %v", err)
	}
	t.Cleanup(func() {
		tk.Close()
		engine.SetAdbDevices()
		engine.SetDesktopWindows()
	})
	return tk
}

func TestToolkit_FindAdbDevices(t *testing.T) {
	tk := newToolkit(t)
	engine.SetAdbDevices(
		maatest.AdbDevice{
			Name: "emulator", AdbPath: "/usr/bin/adb", Address: "127.0.0.1:5555",
			Screencap: uint64(AdbScreencapDefault), Input: uint64(AdbInputDefault),
			Config: `{"extras":{"mumu":{"enable":true}}}`,
		},
		maatest.AdbDevice{Name: "phone", AdbPath: "/opt/adb", Address: "R58M", Screencap: 1, Input: 1},
	)
	before := engine.Destroyed(maatest.KindAdbDeviceList)

	devices, err := tk.FindAdbDevices()
	if err != nil {
		t.Fatalf("FindAdbDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %+v", devices)
	}
	d := devices[0]
	if d.Name != "emulator" || d.Address != "127.0.0.1:5555" || d.Screencap != AdbScreencapDefault {
		t.Errorf("device = %+v", d)
	}
	if string(d.Config) != `{"extras":{"mumu":{"enable":true}}}` {
		t.Errorf("config = %s", d.Config)
	}
	if devices[1].Config != nil {
		t.Errorf("empty config decoded as %s", devices[1].Config)
	}

	cfg := d.AdbConfig()
	if cfg.AdbPath != "/usr/bin/adb" || cfg.Input != AdbInputDefault || cfg.Config == nil {
		t.Errorf("AdbConfig = %+v", cfg)
	}

	at, err := tk.FindAdbDevicesAt("/opt/adb")
	if err != nil {
		t.Fatalf("FindAdbDevicesAt: %v", err)
	}
	if len(at) != 1 || at[0].Name != "phone" {
		t.Errorf("FindAdbDevicesAt = %+v", at)
	}

	if got := engine.Live(maatest.KindAdbDeviceList); got != 0 {
		t.Errorf("%d device lists leaked", got)
	}
	if got := engine.Destroyed(maatest.KindAdbDeviceList) - before; got != 2 {
		t.Errorf("destroyed %d device lists, want 2", got)
	}
}

func TestToolkit_DeviceConnects(t *testing.T) {
	tk := newToolkit(t)
	engine.SetAdbDevices(maatest.AdbDevice{
		Name: "emulator", AdbPath: "adb", Address: "emulator-5554",
		Screencap: uint64(AdbScreencapDefault), Input: uint64(AdbInputDefault),
	})
	devices, err := tk.FindAdbDevices()
	if err != nil || len(devices) != 1 {
		t.Fatalf("FindAdbDevices = %v, %v", devices, err)
	}
	ctrl, err := NewAdbController(devices[0].AdbConfig())
	if err != nil {
		t.Fatalf("NewAdbController: %v", err)
	}
	defer ctrl.Close()
	job, err := ctrl.PostConnection()
	waitFor(t, "connect", job, err, StatusSucceeded)
	if uuid, _ := ctrl.UUID(); uuid != "adb:emulator-5554" {
		t.Errorf("UUID = %q", uuid)
	}
}

func TestToolkit_FindDesktopWindows(t *testing.T) {
	tk := newToolkit(t)
	engine.SetDesktopWindows(
		maatest.DesktopWindow{HWnd: 0x1001, ClassName: "Notepad", Name: "notes.txt"},
		maatest.DesktopWindow{HWnd: 0x2002, ClassName: "UnityWndClass", Name: "Game"},
	)
	windows, err := tk.FindDesktopWindows()
	if err != nil {
		t.Fatalf("FindDesktopWindows: %v", err)
	}
	want := []DesktopWindow{
		{HWnd: 0x1001, ClassName: "Notepad", Name: "notes.txt"},
		{HWnd: 0x2002, ClassName: "UnityWndClass", Name: "Game"},
	}
	if len(windows) != len(want) {
		t.Fatalf("windows = %+v", windows)
	}
	for i := range want {
		if windows[i] != want[i] {
			t.Errorf("window %d = %+v, want %+v", i, windows[i], want[i])
		}
	}

	ctrl, err := NewWin32Controller(Win32Config{HWnd: windows[1].HWnd})
	if err != nil {
		t.Fatalf("NewWin32Controller: %v", err)
	}
	defer ctrl.Close()
	job, err := ctrl.PostConnection()
	waitFor(t, "connect", job, err, StatusSucceeded)
	if uuid, _ := ctrl.UUID(); uuid != "win32:"+maatest.HWndString(0x2002) {
		t.Errorf("UUID = %q", uuid)
	}
	if got := engine.Live(maatest.KindDesktopWindowList); got != 0 {
		t.Errorf("%d window lists leaked", got)
	}
}

func TestToolkit_BadConfig(t *testing.T) {
	if _, err := NewToolkit(t.TempDir(), "{"); !errors.Is(err, ErrDecode) {
		t.Errorf("malformed config: err = %v, want ErrDecode", err)
	}
	if _, err := NewToolkit(t.TempDir(), "[1]"); !errors.Is(err, ErrConstruction) {
		t.Errorf("non-object config: err = %v, want ErrConstruction", err)
	}
}

func TestToolkit_MissingLibrary(t *testing.T) {
	tk := &Toolkit{lib: maatest.WithoutToolkit(engine.Lib())}
	var le *LinkError
	if _, err := tk.FindAdbDevices(); !errors.As(err, &le) || le.Symbol != "MaaToolkitAdbDeviceFind" {
		t.Errorf("FindAdbDevices: err = %v, want a LinkError", err)
	}
	if _, err := tk.FindDesktopWindows(); !errors.As(err, &le) {
		t.Errorf("FindDesktopWindows: err = %v, want a LinkError", err)
	}
}

// withoutSymbol returns the fake library with the named entry point unset.
func withoutSymbol(name string) *native.Lib {
	lib := engine.Lib()
	reflect.ValueOf(lib).Elem().FieldByName(name).SetZero()
	return lib
}

func TestToolkit_PartialLibrary(t *testing.T) {
	engine.SetAdbDevices(maatest.AdbDevice{Name: "emulator", AdbPath: "adb", Address: "emulator-5554", Config: "{}"})
	engine.SetDesktopWindows(maatest.DesktopWindow{HWnd: 0x1001, ClassName: "Notepad", Name: "notes.txt"})
	t.Cleanup(func() {
		engine.SetAdbDevices()
		engine.SetDesktopWindows()
	})

	for _, name := range adbDeviceSymbols {
		tk := &Toolkit{lib: withoutSymbol(name)}
		var le *LinkError
		if _, err := tk.FindAdbDevices(); !errors.As(err, &le) || le.Symbol != name {
			t.Errorf("FindAdbDevices without %s: err = %v", name, err)
		}
		if _, err := tk.FindAdbDevicesAt("adb"); !errors.As(err, &le) || le.Symbol != name {
			t.Errorf("FindAdbDevicesAt without %s: err = %v", name, err)
		}
	}
	for _, name := range desktopWindowSymbols {
		tk := &Toolkit{lib: withoutSymbol(name)}
		var le *LinkError
		if _, err := tk.FindDesktopWindows(); !errors.As(err, &le) || le.Symbol != name {
			t.Errorf("FindDesktopWindows without %s: err = %v", name, err)
		}
	}
	if got := engine.Live(maatest.KindAdbDeviceList); got != 0 {
		t.Errorf("%d device lists leaked", got)
	}
	if got := engine.Live(maatest.KindDesktopWindowList); got != 0 {
		t.Errorf("%d window lists leaked", got)
	}
}

func TestToolkit_Closed(t *testing.T) {
	tk := newToolkit(t)
	engine.SetAdbDevices(maatest.AdbDevice{Name: "emulator", AdbPath: "adb", Address: "emulator-5554"})
	if _, err := tk.FindAdbDevices(); err != nil {
		t.Fatalf("FindAdbDevices: %v", err)
	}
	if err := tk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tk.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := tk.FindAdbDevices(); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("FindAdbDevices after Close: err = %v, want ErrInvalidHandle", err)
	}
	if _, err := tk.FindAdbDevicesAt("adb"); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("FindAdbDevicesAt after Close: err = %v, want ErrInvalidHandle", err)
	}
	if _, err := tk.FindDesktopWindows(); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("FindDesktopWindows after Close: err = %v, want ErrInvalidHandle", err)
	}
}
