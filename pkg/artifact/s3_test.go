package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	lengths map[string]int64

	failPut error
	failGet error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		lengths: make(map[string]int64),
	}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	if in.ContentType != nil {
		f.types[*in.Key] = *in.ContentType
	}
	if in.ContentLength != nil {
		f.lengths[*in.Key] = *in.ContentLength
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Store_Prefix(t *testing.T) {
	fake := newFakeS3()
	store := NewS3(fake, "shots", "/maa/")
	ctx := context.Background()

	if err := SavePNG(ctx, store, "runs/r1/screen.png", []byte("png")); err != nil {
		t.Fatal(err)
	}
	const objectKey = "maa/runs/r1/screen.png"
	if string(fake.objects[objectKey]) != "png" {
		t.Fatalf("objects = %v", fake.objects)
	}
	if fake.types[objectKey] != "image/png" {
		t.Errorf("content type = %q", fake.types[objectKey])
	}
	if fake.lengths[objectKey] != 3 {
		t.Errorf("content length = %d, want 3", fake.lengths[objectKey])
	}
	if got := store.Location("runs/r1/screen.png"); got != "s3://shots/"+objectKey {
		t.Errorf("Location = %q", got)
	}

	got, err := ReadAll(ctx, store, "runs/r1/screen.png")
	if err != nil || string(got) != "png" {
		t.Errorf("ReadAll = %q, %v", got, err)
	}
}

func TestS3Store_NoPrefix(t *testing.T) {
	fake := newFakeS3()
	store := NewS3(fake, "shots", "")
	if err := store.Put(context.Background(), "a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["a.txt"]; !ok {
		t.Errorf("objects = %v", fake.objects)
	}
	if _, ok := fake.types["a.txt"]; ok {
		t.Error("empty content type was sent")
	}
}

func TestS3Store_NotFound(t *testing.T) {
	store := NewS3(newFakeS3(), "shots", "")
	ctx := context.Background()

	if _, err := store.Open(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open: err = %v, want ErrNotFound", err)
	}
	ok, err := store.Exists(ctx, "missing")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
}

func TestS3Store_Delete(t *testing.T) {
	fake := newFakeS3()
	store := NewS3(fake, "shots", "p")
	ctx := context.Background()

	store.Put(ctx, "k", strings.NewReader("v"), "")
	if ok, _ := store.Exists(ctx, "k"); !ok {
		t.Fatal("object missing after Put")
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Exists(ctx, "k"); ok {
		t.Error("object present after Delete")
	}
}

func TestS3Store_Errors(t *testing.T) {
	fake := newFakeS3()
	store := NewS3(fake, "shots", "")
	ctx := context.Background()

	fake.failPut = errors.New("connection reset")
	err := store.Put(ctx, "k", strings.NewReader("v"), "")
	if err == nil || !strings.Contains(err.Error(), "s3://shots/k") {
		t.Errorf("Put error = %v", err)
	}

	fake.failGet = &apiError{code: "AccessDenied"}
	_, err = store.Open(ctx, "k")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Open error = %v, want a non-NotFound error", err)
	}

	if err := store.Put(ctx, "../k", strings.NewReader("v"), ""); !errors.Is(err, ErrBadKey) {
		t.Errorf("bad key: err = %v", err)
	}
}
