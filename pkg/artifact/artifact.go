// Package artifact stores files produced by maactl runs: screenshots,
// recognition images and task details. Keys are slash-separated and
// relative, for example "runs/<run id>/screen.png".
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/haivivi/maafw/pkg/maa"
)

var (
	// ErrNotFound is returned by Open for a key with no stored object.
	ErrNotFound = errors.New("artifact: not found")

	// ErrBadKey is returned for empty, absolute or escaping keys.
	ErrBadKey = errors.New("artifact: bad key")
)

// Store is a flat object store.
type Store interface {
	// Put stores the content of r under key, replacing any previous object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Open returns the object stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds an object.
	Exists(ctx context.Context, key string) (bool, error)

	// Location returns a human-readable address for key, such as a file
	// path or an s3:// URL.
	Location(key string) string
}

// RunKey returns the key of a named artifact belonging to a run.
func RunKey(runID, name string) string {
	return path.Join("runs", runID, name)
}

// cleanKey validates key and returns its canonical form.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsRune(key, '\\') {
		return "", fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return clean, nil
}

// SaveImage encodes img as PNG and stores it under key.
func SaveImage(ctx context.Context, s Store, key string, img *maa.Image) error {
	if img == nil {
		return fmt.Errorf("artifact: nil image for %s", key)
	}
	var buf bytes.Buffer
	if err := img.EncodePNG(&buf); err != nil {
		return fmt.Errorf("artifact: encode %s: %w", key, err)
	}
	return SavePNG(ctx, s, key, buf.Bytes())
}

// SavePNG stores already encoded PNG bytes under key.
func SavePNG(ctx context.Context, s Store, key string, data []byte) error {
	return s.Put(ctx, key, bytes.NewReader(data), "image/png")
}

// ReadAll returns the full content stored under key.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	r, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
