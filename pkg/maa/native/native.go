// Package native is the raw binding layer over the MaaFramework C ABI.
//
// Every exported function field of [Lib] is named exactly after the C symbol
// it binds and carries no logic: handles are uintptr, ids are int64, MaaBool
// is uint8 and returned C strings are raw pointers. The safe API lives in the
// parent package maa; nothing here validates arguments or owns memory.
//
// # Loading
//
// The default build resolves the library at runtime with [Load], using
// purego (no cgo required). Building with the maa_static tag links
// -lMaaFramework at process start instead and resolves every symbol from the
// process image on first use; see static.go.
//
// A [Lib] can also be published with [Install]. The maatest package uses this
// to run the whole binding against a simulated engine.
//
// # Callbacks
//
// Native code calls back through plain function pointers. [Lib.NewCallback]
// converts a Go function into such a pointer. Callback functions must use the
// Go signatures declared below (RecognitionCallback and friends) so that the
// purego trampolines and the simulated engine agree on argument layout.
package native

import "unsafe"

// Callback signatures. All pointer-sized arguments are passed as uintptr;
// MaaBool results are returned as uintptr (0 or 1).
type (
	// RecognitionCallback matches MaaCustomRecognitionCallback.
	RecognitionCallback = func(context uintptr, taskID int64, nodeName, name, param, image, roi, transArg, outBox, outDetail uintptr) uintptr

	// ActionCallback matches MaaCustomActionCallback.
	ActionCallback = func(context uintptr, taskID int64, nodeName, name, param uintptr, recoID int64, box, transArg uintptr) uintptr

	// EventCallback matches MaaEventCallback. The return value is ignored.
	EventCallback = func(handle, message, details, transArg uintptr) uintptr
)

// Custom controller callback signatures, in MaaCustomControllerCallbacks order.
type (
	CtrlConnectCallback     = func(transArg uintptr) uintptr
	CtrlRequestUUIDCallback = func(transArg, buffer uintptr) uintptr
	CtrlFeaturesCallback    = func(transArg uintptr) uintptr
	CtrlAppCallback         = func(intent, transArg uintptr) uintptr
	CtrlScreencapCallback   = func(transArg, buffer uintptr) uintptr
	CtrlClickCallback       = func(x, y int32, transArg uintptr) uintptr
	CtrlSwipeCallback       = func(x1, y1, x2, y2, duration int32, transArg uintptr) uintptr
	CtrlTouchCallback       = func(contact, x, y, pressure int32, transArg uintptr) uintptr
	CtrlTouchUpCallback     = func(contact int32, transArg uintptr) uintptr
	CtrlKeyCallback         = func(keycode int32, transArg uintptr) uintptr
	CtrlInputTextCallback   = func(text, transArg uintptr) uintptr
	CtrlScrollCallback      = func(dx, dy int32, transArg uintptr) uintptr
)

// CustomControllerCallbacks has the memory layout of
// MaaCustomControllerCallbacks: sixteen function pointers.
type CustomControllerCallbacks struct {
	Connect     uintptr
	RequestUUID uintptr
	GetFeatures uintptr
	StartApp    uintptr
	StopApp     uintptr
	Screencap   uintptr
	Click       uintptr
	Swipe       uintptr
	TouchDown   uintptr
	TouchMove   uintptr
	TouchUp     uintptr
	ClickKey    uintptr
	InputText   uintptr
	KeyDown     uintptr
	KeyUp       uintptr
	Scroll      uintptr
}

// Rect has the memory layout of MaaRect.
type Rect struct {
	X, Y, W, H int32
}

// Lib is the resolved function table.
//
// Fields tagged maa:"optional" live in MaaToolkit and may be nil when that
// library is absent. Fields tagged maa:"-" are not symbols.
type Lib struct {
	// NewCallback converts a Go function with one of the callback
	// signatures above into a native function pointer. Pointers are never
	// released, so callers must create a fixed number of them.
	NewCallback func(fn any) uintptr `maa:"-"`

	// Path is the file the table was resolved from, or a label.
	Path string `maa:"-"`

	// ----- global -----

	MaaVersion          func() uintptr
	MaaGlobalSetOption  func(key int32, value unsafe.Pointer, size uint64) uint8
	MaaGlobalLoadPlugin func(path string) uint8

	// ----- string buffer -----

	MaaStringBufferCreate  func() uintptr
	MaaStringBufferDestroy func(buf uintptr)
	MaaStringBufferIsEmpty func(buf uintptr) uint8
	MaaStringBufferClear   func(buf uintptr) uint8
	MaaStringBufferGet     func(buf uintptr) uintptr
	MaaStringBufferSize    func(buf uintptr) uint64
	MaaStringBufferSet     func(buf uintptr, str string) uint8
	MaaStringBufferSetEx   func(buf uintptr, str string, size uint64) uint8

	// ----- string list buffer -----

	MaaStringListBufferCreate  func() uintptr
	MaaStringListBufferDestroy func(list uintptr)
	MaaStringListBufferIsEmpty func(list uintptr) uint8
	MaaStringListBufferSize    func(list uintptr) uint64
	MaaStringListBufferAt      func(list uintptr, index uint64) uintptr
	MaaStringListBufferAppend  func(list, value uintptr) uint8
	MaaStringListBufferRemove  func(list uintptr, index uint64) uint8
	MaaStringListBufferClear   func(list uintptr) uint8

	// ----- image buffer -----

	MaaImageBufferCreate         func() uintptr
	MaaImageBufferDestroy        func(img uintptr)
	MaaImageBufferIsEmpty        func(img uintptr) uint8
	MaaImageBufferClear          func(img uintptr) uint8
	MaaImageBufferGetRawData     func(img uintptr) uintptr
	MaaImageBufferWidth          func(img uintptr) int32
	MaaImageBufferHeight         func(img uintptr) int32
	MaaImageBufferChannels       func(img uintptr) int32
	MaaImageBufferType           func(img uintptr) int32
	MaaImageBufferSetRawData     func(img uintptr, data unsafe.Pointer, width, height, typ int32) uint8
	MaaImageBufferGetEncoded     func(img uintptr) uintptr
	MaaImageBufferGetEncodedSize func(img uintptr) uint64
	MaaImageBufferSetEncoded     func(img uintptr, data unsafe.Pointer, size uint64) uint8

	// ----- image list buffer -----

	MaaImageListBufferCreate  func() uintptr
	MaaImageListBufferDestroy func(list uintptr)
	MaaImageListBufferIsEmpty func(list uintptr) uint8
	MaaImageListBufferSize    func(list uintptr) uint64
	MaaImageListBufferAt      func(list uintptr, index uint64) uintptr
	MaaImageListBufferAppend  func(list, value uintptr) uint8
	MaaImageListBufferRemove  func(list uintptr, index uint64) uint8
	MaaImageListBufferClear   func(list uintptr) uint8

	// ----- resource -----

	MaaResourceCreate                      func() uintptr
	MaaResourceDestroy                     func(res uintptr)
	MaaResourceAddSink                     func(res, sink, transArg uintptr) int64
	MaaResourceRemoveSink                  func(res uintptr, sinkID int64)
	MaaResourceClearSinks                  func(res uintptr)
	MaaResourceRegisterCustomRecognition   func(res uintptr, name string, fn, transArg uintptr) uint8
	MaaResourceUnregisterCustomRecognition func(res uintptr, name string) uint8
	MaaResourceClearCustomRecognition      func(res uintptr) uint8
	MaaResourceRegisterCustomAction        func(res uintptr, name string, fn, transArg uintptr) uint8
	MaaResourceUnregisterCustomAction      func(res uintptr, name string) uint8
	MaaResourceClearCustomAction           func(res uintptr) uint8
	MaaResourcePostBundle                  func(res uintptr, path string) int64
	MaaResourcePostOcrModel                func(res uintptr, path string) int64
	MaaResourcePostPipeline                func(res uintptr, path string) int64
	MaaResourcePostImage                   func(res uintptr, path string) int64
	MaaResourceOverridePipeline            func(res uintptr, pipeline string) uint8
	MaaResourceOverrideNext                func(res uintptr, nodeName string, nextList uintptr) uint8
	MaaResourceOverrideImage               func(res uintptr, imageName string, img uintptr) uint8
	MaaResourceGetNodeData                 func(res uintptr, nodeName string, buf uintptr) uint8
	MaaResourceClear                       func(res uintptr) uint8
	MaaResourceStatus                      func(res uintptr, id int64) int32
	MaaResourceWait                        func(res uintptr, id int64) int32
	MaaResourceLoaded                      func(res uintptr) uint8
	MaaResourceSetOption                   func(res uintptr, key int32, value unsafe.Pointer, size uint64) uint8
	MaaResourceGetHash                     func(res, buf uintptr) uint8
	MaaResourceGetNodeList                 func(res, list uintptr) uint8
	MaaResourceGetCustomRecognitionList    func(res, list uintptr) uint8
	MaaResourceGetCustomActionList         func(res, list uintptr) uint8

	// ----- controller -----

	MaaAdbControllerCreate      func(adbPath, address string, screencapMethods, inputMethods uint64, config, agentPath string) uintptr
	MaaWin32ControllerCreate    func(hwnd uintptr, screencapMethod, mouseMethod, keyboardMethod uint64) uintptr
	MaaCustomControllerCreate   func(callbacks *CustomControllerCallbacks, transArg uintptr) uintptr
	MaaDbgControllerCreate      func(readPath, writePath string, typ uint64, config string) uintptr
	MaaControllerDestroy        func(ctrl uintptr)
	MaaControllerAddSink        func(ctrl, sink, transArg uintptr) int64
	MaaControllerRemoveSink     func(ctrl uintptr, sinkID int64)
	MaaControllerClearSinks     func(ctrl uintptr)
	MaaControllerSetOption      func(ctrl uintptr, key int32, value unsafe.Pointer, size uint64) uint8
	MaaControllerPostConnection func(ctrl uintptr) int64
	MaaControllerPostClick      func(ctrl uintptr, x, y int32) int64
	MaaControllerPostSwipe      func(ctrl uintptr, x1, y1, x2, y2, duration int32) int64
	MaaControllerPostClickKey   func(ctrl uintptr, keycode int32) int64
	MaaControllerPostInputText  func(ctrl uintptr, text string) int64
	MaaControllerPostStartApp   func(ctrl uintptr, intent string) int64
	MaaControllerPostStopApp    func(ctrl uintptr, intent string) int64
	MaaControllerPostTouchDown  func(ctrl uintptr, contact, x, y, pressure int32) int64
	MaaControllerPostTouchMove  func(ctrl uintptr, contact, x, y, pressure int32) int64
	MaaControllerPostTouchUp    func(ctrl uintptr, contact int32) int64
	MaaControllerPostKeyDown    func(ctrl uintptr, keycode int32) int64
	MaaControllerPostKeyUp      func(ctrl uintptr, keycode int32) int64
	MaaControllerPostScreencap  func(ctrl uintptr) int64
	MaaControllerPostScroll     func(ctrl uintptr, dx, dy int32) int64
	MaaControllerStatus         func(ctrl uintptr, id int64) int32
	MaaControllerWait           func(ctrl uintptr, id int64) int32
	MaaControllerConnected      func(ctrl uintptr) uint8
	MaaControllerCachedImage    func(ctrl, img uintptr) uint8
	MaaControllerGetUuid        func(ctrl, buf uintptr) uint8
	MaaControllerGetResolution  func(ctrl uintptr, width, height *int32) uint8

	// ----- tasker -----

	MaaTaskerCreate               func() uintptr
	MaaTaskerDestroy              func(tasker uintptr)
	MaaTaskerAddSink              func(tasker, sink, transArg uintptr) int64
	MaaTaskerRemoveSink           func(tasker uintptr, sinkID int64)
	MaaTaskerClearSinks           func(tasker uintptr)
	MaaTaskerAddContextSink       func(tasker, sink, transArg uintptr) int64
	MaaTaskerRemoveContextSink    func(tasker uintptr, sinkID int64)
	MaaTaskerClearContextSinks    func(tasker uintptr)
	MaaTaskerBindResource         func(tasker, res uintptr) uint8
	MaaTaskerBindController       func(tasker, ctrl uintptr) uint8
	MaaTaskerInited               func(tasker uintptr) uint8
	MaaTaskerPostTask             func(tasker uintptr, entry, pipelineOverride string) int64
	MaaTaskerPostRecognition      func(tasker uintptr, recoType, recoParam string, img uintptr) int64
	MaaTaskerPostAction           func(tasker uintptr, actionType, actionParam string, box *Rect, recoDetail string) int64
	MaaTaskerStatus               func(tasker uintptr, id int64) int32
	MaaTaskerWait                 func(tasker uintptr, id int64) int32
	MaaTaskerRunning              func(tasker uintptr) uint8
	MaaTaskerPostStop             func(tasker uintptr) int64
	MaaTaskerStopping             func(tasker uintptr) uint8
	MaaTaskerGetResource          func(tasker uintptr) uintptr
	MaaTaskerGetController        func(tasker uintptr) uintptr
	MaaTaskerClearCache           func(tasker uintptr) uint8
	MaaTaskerOverridePipeline     func(tasker uintptr, taskID int64, pipeline string) uint8
	MaaTaskerGetRecognitionDetail func(tasker uintptr, recoID int64, nodeName, algorithm uintptr, hit *uint8, box *Rect, detail, raw, draws uintptr) uint8
	MaaTaskerGetActionDetail      func(tasker uintptr, actionID int64, nodeName, action uintptr, box *Rect, success *uint8, detail uintptr) uint8
	MaaTaskerGetNodeDetail        func(tasker uintptr, nodeID int64, nodeName uintptr, recoID, actionID *int64, completed *uint8) uint8
	MaaTaskerGetTaskDetail        func(tasker uintptr, taskID int64, entry uintptr, nodeIDs *int64, size *uint64, status *int32) uint8
	MaaTaskerGetLatestNode        func(tasker uintptr, nodeName string, nodeID *int64) uint8

	// ----- context -----

	MaaContextRunTask          func(ctx uintptr, entry, pipelineOverride string) int64
	MaaContextRunRecognition   func(ctx uintptr, entry, pipelineOverride string, img uintptr) int64
	MaaContextRunAction        func(ctx uintptr, entry, pipelineOverride string, box *Rect, recoDetail string) int64
	MaaContextOverridePipeline func(ctx uintptr, pipeline string) uint8
	MaaContextOverrideNext     func(ctx uintptr, nodeName string, nextList uintptr) uint8
	MaaContextOverrideImage    func(ctx uintptr, imageName string, img uintptr) uint8
	MaaContextGetNodeData      func(ctx uintptr, nodeName string, buf uintptr) uint8
	MaaContextGetTaskId        func(ctx uintptr) int64
	MaaContextGetTasker        func(ctx uintptr) uintptr
	MaaContextClone            func(ctx uintptr) uintptr
	MaaContextSetAnchor        func(ctx uintptr, anchorName, nodeName string) uint8
	MaaContextGetAnchor        func(ctx uintptr, anchorName string, buf uintptr) uint8
	MaaContextGetHitCount      func(ctx uintptr, nodeName string, count *uint64) uint8
	MaaContextClearHitCount    func(ctx uintptr, nodeName string) uint8

	// ----- toolkit (MaaToolkit) -----

	MaaToolkitConfigInitOption             func(userPath, defaultJSON string) uint8 `maa:"optional"`
	MaaToolkitAdbDeviceListCreate          func() uintptr                           `maa:"optional"`
	MaaToolkitAdbDeviceListDestroy         func(list uintptr)                       `maa:"optional"`
	MaaToolkitAdbDeviceFind                func(list uintptr) uint8                 `maa:"optional"`
	MaaToolkitAdbDeviceFindSpecified       func(adbPath string, list uintptr) uint8 `maa:"optional"`
	MaaToolkitAdbDeviceListSize            func(list uintptr) uint64                `maa:"optional"`
	MaaToolkitAdbDeviceListAt              func(list uintptr, index uint64) uintptr `maa:"optional"`
	MaaToolkitAdbDeviceGetName             func(dev uintptr) uintptr                `maa:"optional"`
	MaaToolkitAdbDeviceGetAdbPath          func(dev uintptr) uintptr                `maa:"optional"`
	MaaToolkitAdbDeviceGetAddress          func(dev uintptr) uintptr                `maa:"optional"`
	MaaToolkitAdbDeviceGetScreencapMethods func(dev uintptr) uint64                 `maa:"optional"`
	MaaToolkitAdbDeviceGetInputMethods     func(dev uintptr) uint64                 `maa:"optional"`
	MaaToolkitAdbDeviceGetConfig           func(dev uintptr) uintptr                `maa:"optional"`
	MaaToolkitDesktopWindowListCreate      func() uintptr                           `maa:"optional"`
	MaaToolkitDesktopWindowListDestroy     func(list uintptr)                       `maa:"optional"`
	MaaToolkitDesktopWindowFindAll         func(list uintptr) uint8                 `maa:"optional"`
	MaaToolkitDesktopWindowListSize        func(list uintptr) uint64                `maa:"optional"`
	MaaToolkitDesktopWindowListAt          func(list uintptr, index uint64) uintptr `maa:"optional"`
	MaaToolkitDesktopWindowGetHandle       func(win uintptr) uintptr                `maa:"optional"`
	MaaToolkitDesktopWindowGetClassName    func(win uintptr) uintptr                `maa:"optional"`
	MaaToolkitDesktopWindowGetWindowName   func(win uintptr) uintptr                `maa:"optional"`
}
