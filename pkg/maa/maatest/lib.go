package maatest

import "github.com/haivivi/maafw/pkg/maa/native"

// Lib returns a function table backed by e. Every field is set, including
// the toolkit ones.
func (e *Engine) Lib() *native.Lib {
	return &native.Lib{
		NewCallback: e.newCallback,
		Path:        "maatest",

		MaaVersion:          e.maaVersion,
		MaaGlobalSetOption:  e.globalSetOption,
		MaaGlobalLoadPlugin: e.globalLoadPlugin,

		MaaStringBufferCreate:  e.stringBufferCreate,
		MaaStringBufferDestroy: e.stringBufferDestroy,
		MaaStringBufferIsEmpty: e.stringBufferIsEmpty,
		MaaStringBufferClear:   e.stringBufferClear,
		MaaStringBufferGet:     e.stringBufferGet,
		MaaStringBufferSize:    e.stringBufferSize,
		MaaStringBufferSet:     e.stringBufferSet,
		MaaStringBufferSetEx:   e.stringBufferSetEx,

		MaaStringListBufferCreate:  e.stringListCreate,
		MaaStringListBufferDestroy: e.stringListDestroy,
		MaaStringListBufferIsEmpty: e.stringListIsEmpty,
		MaaStringListBufferSize:    e.stringListSize,
		MaaStringListBufferAt:      e.stringListAt,
		MaaStringListBufferAppend:  e.stringListAppend,
		MaaStringListBufferRemove:  e.stringListRemove,
		MaaStringListBufferClear:   e.stringListClear,

		MaaImageBufferCreate:         e.imageBufferCreate,
		MaaImageBufferDestroy:        e.imageBufferDestroy,
		MaaImageBufferIsEmpty:        e.imageBufferIsEmpty,
		MaaImageBufferClear:          e.imageBufferClear,
		MaaImageBufferGetRawData:     e.imageBufferRawData,
		MaaImageBufferWidth:          e.imageBufferWidth,
		MaaImageBufferHeight:         e.imageBufferHeight,
		MaaImageBufferChannels:       e.imageBufferChannels,
		MaaImageBufferType:           e.imageBufferType,
		MaaImageBufferSetRawData:     e.imageBufferSetRawData,
		MaaImageBufferGetEncoded:     e.imageBufferEncoded,
		MaaImageBufferGetEncodedSize: e.imageBufferEncodedSize,
		MaaImageBufferSetEncoded:     e.imageBufferSetEncoded,

		MaaImageListBufferCreate:  e.imageListCreate,
		MaaImageListBufferDestroy: e.imageListDestroy,
		MaaImageListBufferIsEmpty: e.imageListIsEmpty,
		MaaImageListBufferSize:    e.imageListSize,
		MaaImageListBufferAt:      e.imageListAt,
		MaaImageListBufferAppend:  e.imageListAppend,
		MaaImageListBufferRemove:  e.imageListRemove,
		MaaImageListBufferClear:   e.imageListClear,

		MaaResourceCreate:     e.resourceCreate,
		MaaResourceDestroy:    e.resourceDestroy,
		MaaResourceAddSink:    e.resourceAddSink,
		MaaResourceRemoveSink: e.resourceRemoveSink,
		MaaResourceClearSinks: e.resourceClearSinks,
		MaaResourceRegisterCustomRecognition: func(h uintptr, name string, fn, arg uintptr) uint8 {
			return e.resourceRegister("MaaResourceRegisterCustomRecognition", "recognition", h, name, fn, arg)
		},
		MaaResourceUnregisterCustomRecognition: func(h uintptr, name string) uint8 {
			return e.resourceUnregister("MaaResourceUnregisterCustomRecognition", "recognition", h, name)
		},
		MaaResourceClearCustomRecognition: func(h uintptr) uint8 {
			return e.resourceClearCustom("MaaResourceClearCustomRecognition", "recognition", h)
		},
		MaaResourceRegisterCustomAction: func(h uintptr, name string, fn, arg uintptr) uint8 {
			return e.resourceRegister("MaaResourceRegisterCustomAction", "action", h, name, fn, arg)
		},
		MaaResourceUnregisterCustomAction: func(h uintptr, name string) uint8 {
			return e.resourceUnregister("MaaResourceUnregisterCustomAction", "action", h, name)
		},
		MaaResourceClearCustomAction: func(h uintptr) uint8 {
			return e.resourceClearCustom("MaaResourceClearCustomAction", "action", h)
		},
		MaaResourcePostBundle:       e.resourcePostBundle,
		MaaResourcePostOcrModel:     e.resourcePostOcrModel,
		MaaResourcePostPipeline:     e.resourcePostPipeline,
		MaaResourcePostImage:        e.resourcePostImage,
		MaaResourceOverridePipeline: e.resourceOverridePipeline,
		MaaResourceOverrideNext:     e.resourceOverrideNext,
		MaaResourceOverrideImage:    e.resourceOverrideImage,
		MaaResourceGetNodeData:      e.resourceGetNodeData,
		MaaResourceClear:            e.resourceClear,
		MaaResourceStatus:           e.resourceStatus,
		MaaResourceWait:             e.resourceWait,
		MaaResourceLoaded:           e.resourceLoaded,
		MaaResourceSetOption:        e.resourceSetOption,
		MaaResourceGetHash:          e.resourceGetHash,
		MaaResourceGetNodeList:      e.resourceGetNodeList,
		MaaResourceGetCustomRecognitionList: func(h, list uintptr) uint8 {
			return e.resourceCustomList("MaaResourceGetCustomRecognitionList", "recognition", h, list)
		},
		MaaResourceGetCustomActionList: func(h, list uintptr) uint8 {
			return e.resourceCustomList("MaaResourceGetCustomActionList", "action", h, list)
		},

		MaaAdbControllerCreate:      e.adbControllerCreate,
		MaaWin32ControllerCreate:    e.win32ControllerCreate,
		MaaCustomControllerCreate:   e.customControllerCreate,
		MaaDbgControllerCreate:      e.dbgControllerCreate,
		MaaControllerDestroy:        e.controllerDestroy,
		MaaControllerAddSink:        e.controllerAddSink,
		MaaControllerRemoveSink:     e.controllerRemoveSink,
		MaaControllerClearSinks:     e.controllerClearSinks,
		MaaControllerSetOption:      e.controllerSetOption,
		MaaControllerPostConnection: e.controllerPostConnection,
		MaaControllerPostClick:      e.controllerPostClick,
		MaaControllerPostSwipe:      e.controllerPostSwipe,
		MaaControllerPostClickKey:   e.controllerPostClickKey,
		MaaControllerPostInputText:  e.controllerPostInputText,
		MaaControllerPostStartApp:   e.controllerPostStartApp,
		MaaControllerPostStopApp:    e.controllerPostStopApp,
		MaaControllerPostTouchDown:  e.controllerPostTouchDown,
		MaaControllerPostTouchMove:  e.controllerPostTouchMove,
		MaaControllerPostTouchUp:    e.controllerPostTouchUp,
		MaaControllerPostKeyDown:    e.controllerPostKeyDown,
		MaaControllerPostKeyUp:      e.controllerPostKeyUp,
		MaaControllerPostScreencap:  e.controllerPostScreencap,
		MaaControllerPostScroll:     e.controllerPostScroll,
		MaaControllerStatus:         e.controllerStatus,
		MaaControllerWait:           e.controllerWait,
		MaaControllerConnected:      e.controllerConnected,
		MaaControllerCachedImage:    e.controllerCachedImage,
		MaaControllerGetUuid:        e.controllerGetUUID,
		MaaControllerGetResolution:  e.controllerGetResolution,

		MaaTaskerCreate:               e.taskerCreate,
		MaaTaskerDestroy:              e.taskerDestroy,
		MaaTaskerAddSink:              e.taskerAddSink,
		MaaTaskerRemoveSink:           e.taskerRemoveSink,
		MaaTaskerClearSinks:           e.taskerClearSinks,
		MaaTaskerAddContextSink:       e.taskerAddContextSink,
		MaaTaskerRemoveContextSink:    e.taskerRemoveContextSink,
		MaaTaskerClearContextSinks:    e.taskerClearContextSinks,
		MaaTaskerBindResource:         e.taskerBindResource,
		MaaTaskerBindController:       e.taskerBindController,
		MaaTaskerInited:               e.taskerInited,
		MaaTaskerPostTask:             e.taskerPostTask,
		MaaTaskerPostRecognition:      e.taskerPostRecognition,
		MaaTaskerPostAction:           e.taskerPostAction,
		MaaTaskerStatus:               e.taskerStatus,
		MaaTaskerWait:                 e.taskerWait,
		MaaTaskerRunning:              e.taskerRunning,
		MaaTaskerPostStop:             e.taskerPostStop,
		MaaTaskerStopping:             e.taskerStopping,
		MaaTaskerGetResource:          e.taskerGetResource,
		MaaTaskerGetController:        e.taskerGetController,
		MaaTaskerClearCache:           e.taskerClearCache,
		MaaTaskerOverridePipeline:     e.taskerOverridePipeline,
		MaaTaskerGetRecognitionDetail: e.taskerGetRecognitionDetail,
		MaaTaskerGetActionDetail:      e.taskerGetActionDetail,
		MaaTaskerGetNodeDetail:        e.taskerGetNodeDetail,
		MaaTaskerGetTaskDetail:        e.taskerGetTaskDetail,
		MaaTaskerGetLatestNode:        e.taskerGetLatestNode,

		MaaContextRunTask:          e.contextRunTask,
		MaaContextRunRecognition:   e.contextRunRecognition,
		MaaContextRunAction:        e.contextRunAction,
		MaaContextOverridePipeline: e.contextOverridePipeline,
		MaaContextOverrideNext:     e.contextOverrideNext,
		MaaContextOverrideImage:    e.contextOverrideImage,
		MaaContextGetNodeData:      e.contextGetNodeData,
		MaaContextGetTaskId:        e.contextGetTaskID,
		MaaContextGetTasker:        e.contextGetTasker,
		MaaContextClone:            e.contextClone,
		MaaContextSetAnchor:        e.contextSetAnchor,
		MaaContextGetAnchor:        e.contextGetAnchor,
		MaaContextGetHitCount:      e.contextGetHitCount,
		MaaContextClearHitCount:    e.contextClearHitCount,

		MaaToolkitConfigInitOption:             e.toolkitConfigInitOption,
		MaaToolkitAdbDeviceListCreate:          e.adbDeviceListCreate,
		MaaToolkitAdbDeviceListDestroy:         e.adbDeviceListDestroy,
		MaaToolkitAdbDeviceFind:                e.adbDeviceFind,
		MaaToolkitAdbDeviceFindSpecified:       e.adbDeviceFindSpecified,
		MaaToolkitAdbDeviceListSize:            e.adbDeviceListSize,
		MaaToolkitAdbDeviceListAt:              e.adbDeviceListAt,
		MaaToolkitAdbDeviceGetName:             e.adbDeviceName,
		MaaToolkitAdbDeviceGetAdbPath:          e.adbDeviceAdbPath,
		MaaToolkitAdbDeviceGetAddress:          e.adbDeviceAddress,
		MaaToolkitAdbDeviceGetScreencapMethods: e.adbDeviceScreencap,
		MaaToolkitAdbDeviceGetInputMethods:     e.adbDeviceInput,
		MaaToolkitAdbDeviceGetConfig:           e.adbDeviceConfig,
		MaaToolkitDesktopWindowListCreate:      e.desktopWindowListCreate,
		MaaToolkitDesktopWindowListDestroy:     e.desktopWindowListDestroy,
		MaaToolkitDesktopWindowFindAll:         e.desktopWindowFindAll,
		MaaToolkitDesktopWindowListSize:        e.desktopWindowListSize,
		MaaToolkitDesktopWindowListAt:          e.desktopWindowListAt,
		MaaToolkitDesktopWindowGetHandle:       e.desktopWindowHandle,
		MaaToolkitDesktopWindowGetClassName:    e.desktopWindowClassName,
		MaaToolkitDesktopWindowGetWindowName:   e.desktopWindowName,
	}
}

// WithoutToolkit returns lib with every toolkit symbol cleared, the way a
// library loaded without MaaToolkit looks.
func WithoutToolkit(lib *native.Lib) *native.Lib {
	out := *lib
	out.MaaToolkitConfigInitOption = nil
	out.MaaToolkitAdbDeviceListCreate = nil
	out.MaaToolkitAdbDeviceListDestroy = nil
	out.MaaToolkitAdbDeviceFind = nil
	out.MaaToolkitAdbDeviceFindSpecified = nil
	out.MaaToolkitAdbDeviceListSize = nil
	out.MaaToolkitAdbDeviceListAt = nil
	out.MaaToolkitAdbDeviceGetName = nil
	out.MaaToolkitAdbDeviceGetAdbPath = nil
	out.MaaToolkitAdbDeviceGetAddress = nil
	out.MaaToolkitAdbDeviceGetScreencapMethods = nil
	out.MaaToolkitAdbDeviceGetInputMethods = nil
	out.MaaToolkitAdbDeviceGetConfig = nil
	out.MaaToolkitDesktopWindowListCreate = nil
	out.MaaToolkitDesktopWindowListDestroy = nil
	out.MaaToolkitDesktopWindowFindAll = nil
	out.MaaToolkitDesktopWindowListSize = nil
	out.MaaToolkitDesktopWindowListAt = nil
	out.MaaToolkitDesktopWindowGetHandle = nil
	out.MaaToolkitDesktopWindowGetClassName = nil
	out.MaaToolkitDesktopWindowGetWindowName = nil
	return &out
}
