package native

// InvalidID is the id native post functions return on rejection.
const InvalidID int64 = 0

// MaaStatus values.
const (
	StatusInvalid   int32 = 0
	StatusPending   int32 = 1000
	StatusRunning   int32 = 2000
	StatusSucceeded int32 = 3000
	StatusFailed    int32 = 4000
)

// MaaGlobalOption keys.
const (
	GlobalOptionLogDir              int32 = 1
	GlobalOptionSaveDraw            int32 = 2
	GlobalOptionStdoutLevel         int32 = 4
	GlobalOptionDebugMode           int32 = 6
	GlobalOptionSaveOnError         int32 = 7
	GlobalOptionDrawQuality         int32 = 8
	GlobalOptionRecoImageCacheLimit int32 = 9
)

// MaaCtrlOption keys.
const (
	CtrlOptionScreenshotTargetLongSide  int32 = 1
	CtrlOptionScreenshotTargetShortSide int32 = 2
	CtrlOptionScreenshotUseRawSize      int32 = 3
)

// MaaResOption keys.
const (
	ResOptionInferenceDevice            int32 = 1
	ResOptionInferenceExecutionProvider int32 = 2
)

// MaaLoggingLevel values.
const (
	LoggingLevelOff   int32 = 0
	LoggingLevelFatal int32 = 1
	LoggingLevelError int32 = 2
	LoggingLevelWarn  int32 = 3
	LoggingLevelInfo  int32 = 4
	LoggingLevelDebug int32 = 5
	LoggingLevelTrace int32 = 6
	LoggingLevelAll   int32 = 7
)

// MaaInferenceDevice special values. Non-negative values select a GPU id.
const (
	InferenceDeviceCPU  int32 = -2
	InferenceDeviceAuto int32 = -1
)

// MaaInferenceExecutionProvider values.
const (
	InferenceEPAuto     int32 = 0
	InferenceEPCPU      int32 = 1
	InferenceEPDirectML int32 = 2
	InferenceEPCoreML   int32 = 3
	InferenceEPCUDA     int32 = 4
)

// OpenCV matrix type of 8-bit, 3-channel images (CV_8UC3).
const ImageTypeBGR int32 = 16
