package maa

import (
	"fmt"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// LoggingLevel is the native stdout logging level.
type LoggingLevel int32

const (
	LogOff   = LoggingLevel(native.LoggingLevelOff)
	LogFatal = LoggingLevel(native.LoggingLevelFatal)
	LogError = LoggingLevel(native.LoggingLevelError)
	LogWarn  = LoggingLevel(native.LoggingLevelWarn)
	LogInfo  = LoggingLevel(native.LoggingLevelInfo)
	LogDebug = LoggingLevel(native.LoggingLevelDebug)
	LogTrace = LoggingLevel(native.LoggingLevelTrace)
	LogAll   = LoggingLevel(native.LoggingLevelAll)
)

// Version returns the native library version.
func Version() (string, error) {
	l, err := lib()
	if err != nil {
		return "", err
	}
	return decodeCString("version", l.MaaVersion())
}

// LoadPlugin loads a native plugin library.
func LoadPlugin(path string) error {
	l, err := lib()
	if err != nil {
		return err
	}
	if err := encodeString("plugin path", path); err != nil {
		return err
	}
	if l.MaaGlobalLoadPlugin(path) == 0 {
		return fmt.Errorf("%w: load plugin %s", ErrRejected, path)
	}
	return nil
}

// SetLogDir sets the directory the native library writes logs to.
func SetLogDir(dir string) error {
	if err := encodeString("log dir", dir); err != nil {
		return err
	}
	b := append([]byte(dir), 0)
	return setGlobal("log dir", native.GlobalOptionLogDir, unsafe.Pointer(&b[0]), uint64(len(dir)))
}

// SetSaveDraw enables saving recognition drawings to the log directory.
func SetSaveDraw(on bool) error {
	v := boolByte(on)
	return setGlobal("save draw", native.GlobalOptionSaveDraw, unsafe.Pointer(&v), 1)
}

// SetStdoutLevel sets the native stdout logging level.
func SetStdoutLevel(level LoggingLevel) error {
	v := int32(level)
	return setGlobal("stdout level", native.GlobalOptionStdoutLevel, unsafe.Pointer(&v), 4)
}

// SetDebugMode makes the native library collect recognition images and
// draws so they appear in RecognitionDetail.
func SetDebugMode(on bool) error {
	v := boolByte(on)
	return setGlobal("debug mode", native.GlobalOptionDebugMode, unsafe.Pointer(&v), 1)
}

// SetSaveOnError saves a screenshot when a task fails.
func SetSaveOnError(on bool) error {
	v := boolByte(on)
	return setGlobal("save on error", native.GlobalOptionSaveOnError, unsafe.Pointer(&v), 1)
}

// SetDrawQuality sets the JPEG quality (0-100) of saved drawings.
func SetDrawQuality(quality int32) error {
	return setGlobal("draw quality", native.GlobalOptionDrawQuality, unsafe.Pointer(&quality), 4)
}

// SetRecoImageCacheLimit bounds the number of cached recognition images.
func SetRecoImageCacheLimit(limit uint64) error {
	return setGlobal("reco image cache limit", native.GlobalOptionRecoImageCacheLimit, unsafe.Pointer(&limit), 8)
}

func setGlobal(name string, key int32, value unsafe.Pointer, size uint64) error {
	l, err := lib()
	if err != nil {
		return err
	}
	if l.MaaGlobalSetOption(key, value, size) == 0 {
		return fmt.Errorf("%w: global option %s", ErrRejected, name)
	}
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
