package maa

import (
	"github.com/haivivi/maafw/pkg/maa/native"
)

// ControllerFeature flags returned by CustomController.Features.
type ControllerFeature uint64

const (
	FeatureNone ControllerFeature = 0
	// FeatureMouseDownUp makes the engine send TouchDown/TouchUp instead
	// of Click.
	FeatureMouseDownUp ControllerFeature = 1
	// FeatureKeyDownUp makes the engine send KeyDown/KeyUp instead of
	// ClickKey.
	FeatureKeyDownUp ControllerFeature = 2
)

// CustomController is a device controller implemented in Go. Methods run
// on native threads and report success with their bool result. Embed
// CustomControllerBase to implement only what the device supports.
type CustomController interface {
	Connect() bool
	RequestUUID() (string, bool)
	Features() ControllerFeature
	StartApp(intent string) bool
	StopApp(intent string) bool
	Screencap() (*Image, bool)
	Click(x, y int32) bool
	Swipe(x1, y1, x2, y2, duration int32) bool
	TouchDown(contact, x, y, pressure int32) bool
	TouchMove(contact, x, y, pressure int32) bool
	TouchUp(contact int32) bool
	ClickKey(keycode int32) bool
	InputText(text string) bool
	KeyDown(keycode int32) bool
	KeyUp(keycode int32) bool
	Scroll(dx, dy int32) bool
}

// CustomControllerBase fails every operation.
type CustomControllerBase struct{}

func (CustomControllerBase) Connect() bool                                { return false }
func (CustomControllerBase) RequestUUID() (string, bool)                  { return "", false }
func (CustomControllerBase) Features() ControllerFeature                  { return FeatureNone }
func (CustomControllerBase) StartApp(string) bool                         { return false }
func (CustomControllerBase) StopApp(string) bool                          { return false }
func (CustomControllerBase) Screencap() (*Image, bool)                    { return nil, false }
func (CustomControllerBase) Click(int32, int32) bool                      { return false }
func (CustomControllerBase) Swipe(int32, int32, int32, int32, int32) bool { return false }
func (CustomControllerBase) TouchDown(int32, int32, int32, int32) bool    { return false }
func (CustomControllerBase) TouchMove(int32, int32, int32, int32) bool    { return false }
func (CustomControllerBase) TouchUp(int32) bool                           { return false }
func (CustomControllerBase) ClickKey(int32) bool                          { return false }
func (CustomControllerBase) InputText(string) bool                        { return false }
func (CustomControllerBase) KeyDown(int32) bool                           { return false }
func (CustomControllerBase) KeyUp(int32) bool                             { return false }
func (CustomControllerBase) Scroll(int32, int32) bool                     { return false }

func newControllerCallbacks(l *native.Lib) *native.CustomControllerCallbacks {
	return &native.CustomControllerCallbacks{
		Connect:     l.NewCallback(ctrlConnect),
		RequestUUID: l.NewCallback(ctrlRequestUUID),
		GetFeatures: l.NewCallback(ctrlFeatures),
		StartApp:    l.NewCallback(ctrlStartApp),
		StopApp:     l.NewCallback(ctrlStopApp),
		Screencap:   l.NewCallback(ctrlScreencap),
		Click:       l.NewCallback(ctrlClick),
		Swipe:       l.NewCallback(ctrlSwipe),
		TouchDown:   l.NewCallback(ctrlTouchDown),
		TouchMove:   l.NewCallback(ctrlTouchMove),
		TouchUp:     l.NewCallback(ctrlTouchUp),
		ClickKey:    l.NewCallback(ctrlClickKey),
		InputText:   l.NewCallback(ctrlInputText),
		KeyDown:     l.NewCallback(ctrlKeyDown),
		KeyUp:       l.NewCallback(ctrlKeyUp),
		Scroll:      l.NewCallback(ctrlScroll),
	}
}

// withController runs fn against the controller registered under token.
func withController(token uintptr, fn func(c CustomController) (bool, error)) uintptr {
	reg := lookupKind(token, KindController)
	if reg == nil {
		return 0
	}
	return nativeBool(reg.invoke(func() (bool, error) {
		return fn(reg.fn.(CustomController))
	}))
}

func ctrlConnect(transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.Connect(), nil
	})
}

func ctrlRequestUUID(transArg, buffer uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		uuid, ok := c.RequestUUID()
		if !ok {
			return false, nil
		}
		if err := encodeString("uuid", uuid); err != nil {
			return false, err
		}
		l, err := lib()
		if err != nil {
			return false, err
		}
		return true, writeStringBuffer(l, buffer, uuid)
	})
}

func ctrlFeatures(transArg uintptr) uintptr {
	reg := lookupKind(transArg, KindController)
	if reg == nil {
		return 0
	}
	var features ControllerFeature
	reg.invoke(func() (bool, error) {
		features = reg.fn.(CustomController).Features()
		return true, nil
	})
	return uintptr(features)
}

func ctrlStartApp(intent, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		s, err := decodeCString("intent", intent)
		if err != nil {
			return false, err
		}
		return c.StartApp(s), nil
	})
}

func ctrlStopApp(intent, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		s, err := decodeCString("intent", intent)
		if err != nil {
			return false, err
		}
		return c.StopApp(s), nil
	})
}

func ctrlScreencap(transArg, buffer uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		img, ok := c.Screencap()
		if !ok || img == nil {
			return false, nil
		}
		l, err := lib()
		if err != nil {
			return false, err
		}
		return true, writeImage(l, buffer, img)
	})
}

func ctrlClick(x, y int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.Click(x, y), nil
	})
}

func ctrlSwipe(x1, y1, x2, y2, duration int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.Swipe(x1, y1, x2, y2, duration), nil
	})
}

func ctrlTouchDown(contact, x, y, pressure int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.TouchDown(contact, x, y, pressure), nil
	})
}

func ctrlTouchMove(contact, x, y, pressure int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.TouchMove(contact, x, y, pressure), nil
	})
}

func ctrlTouchUp(contact int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.TouchUp(contact), nil
	})
}

func ctrlClickKey(keycode int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.ClickKey(keycode), nil
	})
}

func ctrlInputText(text, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		s, err := decodeCString("input text", text)
		if err != nil {
			return false, err
		}
		return c.InputText(s), nil
	})
}

func ctrlKeyDown(keycode int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.KeyDown(keycode), nil
	})
}

func ctrlKeyUp(keycode int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.KeyUp(keycode), nil
	})
}

func ctrlScroll(dx, dy int32, transArg uintptr) uintptr {
	return withController(transArg, func(c CustomController) (bool, error) {
		return c.Scroll(dx, dy), nil
	})
}
