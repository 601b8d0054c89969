package maa

import (
	"errors"
	"slices"
	"testing"

	"github.com/haivivi/maafw/pkg/maa/maatest"
	"github.com/haivivi/maafw/pkg/maa/native"
)

func TestVersion(t *testing.T) {
	v, err := Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != maatest.Version {
		t.Errorf("Version = %q, want %q", v, maatest.Version)
	}
	if !Loaded() {
		t.Error("Loaded = false with an installed library")
	}
}

func TestLoadLibrary_Twice(t *testing.T) {
	if err := LoadLibrary(""); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("err = %v, want ErrAlreadyLoaded", err)
	}
}

func TestLoadPlugin(t *testing.T) {
	if err := LoadPlugin("/nonexistent/plugin.so"); !errors.Is(err, ErrRejected) {
		t.Errorf("err = %v, want ErrRejected", err)
	}
	if err := LoadPlugin("a\x00b"); !errors.Is(err, ErrDecode) {
		t.Errorf("NUL in path: err = %v, want ErrDecode", err)
	}
}

func TestGlobalOptions(t *testing.T) {
	t.Cleanup(func() {
		SetDebugMode(false)
		SetSaveDraw(false)
	})

	tests := []struct {
		name string
		set  func() error
		key  int32
		want []byte
	}{
		{"debug mode", func() error { return SetDebugMode(true) }, native.GlobalOptionDebugMode, []byte{1}},
		{"save draw", func() error { return SetSaveDraw(true) }, native.GlobalOptionSaveDraw, []byte{1}},
		{"save on error", func() error { return SetSaveOnError(false) }, native.GlobalOptionSaveOnError, []byte{0}},
		{"log dir", func() error { return SetLogDir("/tmp/maa") }, native.GlobalOptionLogDir, []byte("/tmp/maa")},
	}
	for _, tt := range tests {
		if err := tt.set(); err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		got, ok := engine.Option(tt.key)
		if !ok || !slices.Equal(got, tt.want) {
			t.Errorf("%s: option = %q, %v; want %q", tt.name, got, ok, tt.want)
		}
	}

	if err := SetStdoutLevel(LogWarn); err != nil {
		t.Errorf("SetStdoutLevel: %v", err)
	}
	if got, _ := engine.Option(native.GlobalOptionStdoutLevel); len(got) != 4 {
		t.Errorf("stdout level option has %d bytes, want 4", len(got))
	}
	if err := SetRecoImageCacheLimit(16); err != nil {
		t.Errorf("SetRecoImageCacheLimit: %v", err)
	}
	if got, _ := engine.Option(native.GlobalOptionRecoImageCacheLimit); len(got) != 8 {
		t.Errorf("cache limit option has %d bytes, want 8", len(got))
	}
	if err := SetLogDir("bad\x00dir"); !errors.Is(err, ErrDecode) {
		t.Errorf("NUL in log dir: err = %v, want ErrDecode", err)
	}
}
