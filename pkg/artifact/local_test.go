package artifact

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haivivi/maafw/pkg/maa"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLocal_PutOpen(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	key := RunKey("r1", "detail.json")
	if err := l.Put(ctx, key, strings.NewReader(`{"ok":true}`), "application/json"); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAll(ctx, l, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("got %q", got)
	}
	if want := filepath.Join(l.Root(), "runs", "r1", "detail.json"); l.Location(key) != want {
		t.Errorf("Location = %q, want %q", l.Location(key), want)
	}

	// Overwrite replaces the content and leaves no temp files.
	if err := l.Put(ctx, key, strings.NewReader("v2"), ""); err != nil {
		t.Fatal(err)
	}
	got, _ = ReadAll(ctx, l, key)
	if string(got) != "v2" {
		t.Fatalf("after overwrite got %q", got)
	}
	entries, err := os.ReadDir(filepath.Join(l.Root(), "runs", "r1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir holds %d entries, want 1", len(entries))
	}
}

func TestLocal_Missing(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	if _, err := l.Open(ctx, "nope.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open missing: err = %v, want ErrNotFound", err)
	}
	ok, err := l.Exists(ctx, "nope.png")
	if err != nil || ok {
		t.Errorf("Exists missing = %v, %v", ok, err)
	}
	if err := l.Delete(ctx, "nope.png"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestLocal_Delete(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	if err := l.Put(ctx, "a/b.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatal(err)
	}
	if ok, _ := l.Exists(ctx, "a/b.txt"); !ok {
		t.Fatal("object missing after Put")
	}
	if err := l.Delete(ctx, "a/b.txt"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := l.Exists(ctx, "a/b.txt"); ok {
		t.Error("object still present after Delete")
	}
}

func TestLocal_BadKeys(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"", "/abs", "..", "../escape", "a/../../b", `a\b`, "."} {
		if err := l.Put(ctx, key, strings.NewReader("x"), ""); !errors.Is(err, ErrBadKey) {
			t.Errorf("Put(%q): err = %v, want ErrBadKey", key, err)
		}
		if _, err := l.Exists(ctx, key); !errors.Is(err, ErrBadKey) {
			t.Errorf("Exists(%q): err = %v, want ErrBadKey", key, err)
		}
	}
	// Inner dot segments are cleaned, not rejected.
	if err := l.Put(ctx, "a/./b/../c", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("Put with inner dots: %v", err)
	}
	if ok, _ := l.Exists(ctx, "a/c"); !ok {
		t.Error("cleaned key a/c not found")
	}
}

func TestSaveImage(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	img := maa.NewImage(4, 2)
	img.Pix[0], img.Pix[1], img.Pix[2] = 10, 20, 30 // BGR
	key := RunKey("r2", "screen.png")
	if err := SaveImage(ctx, l, key, img); err != nil {
		t.Fatal(err)
	}
	data, err := ReadAll(ctx, l, key)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stored object is not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("bounds = %v", b)
	}
	r, g, b, _ := decoded.At(0, 0).RGBA()
	if r>>8 != 30 || g>>8 != 20 || b>>8 != 10 {
		t.Errorf("pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}

	if err := SaveImage(ctx, l, key, nil); err == nil {
		t.Error("SaveImage(nil) succeeded")
	}

	short := &maa.Image{Width: 4, Height: 4, Channels: 3, Type: 16, Stride: 12, Pix: make([]byte, 10)}
	badKey := RunKey("r3", "screen.png")
	if err := SaveImage(ctx, l, badKey, short); !errors.Is(err, maa.ErrDecode) {
		t.Errorf("SaveImage(short buffer) err = %v, want ErrDecode", err)
	}
	if ok, _ := l.Exists(ctx, badKey); ok {
		t.Error("bad image was stored")
	}
}

func TestOpenConfig(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Local); !ok {
		t.Errorf("default kind = %T, want *Local", s)
	}

	s, err = Open(Config{Kind: "s3", S3: &S3Config{Bucket: "shots", Prefix: "maa", Endpoint: "http://127.0.0.1:9000", PathStyle: true}})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Location("runs/x/screen.png"); got != "s3://shots/maa/runs/x/screen.png" {
		t.Errorf("Location = %q", got)
	}

	bad := []Config{
		{},
		{Kind: "s3"},
		{Kind: "s3", S3: &S3Config{}},
		{Kind: "ftp", Dir: dir},
	}
	for _, cfg := range bad {
		if _, err := Open(cfg); err == nil {
			t.Errorf("Open(%+v) succeeded", cfg)
		}
	}
}
