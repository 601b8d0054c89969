package maa

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/haivivi/maafw/pkg/maa/maatest"
	"github.com/haivivi/maafw/pkg/maa/native"
)

// engine backs every test of the package. The function table can be
// published once per process, so all tests share it.
var engine *maatest.Engine

func TestMain(m *testing.M) {
	e, err := maatest.Install()
	if err != nil {
		fmt.Fprintln(os.Stderr, "install engine:", err)
		os.Exit(1)
	}
	engine = e
	code := m.Run()
	if misuse := engine.Misuse(); code == 0 && len(misuse) > 0 {
		for _, err := range misuse {
			fmt.Fprintln(os.Stderr, "native misuse:", err)
		}
		code = 1
	}
	os.Exit(code)
}

// patchLib replaces the named entry point of the installed table until the
// test ends. A nil fn unsets it.
func patchLib(t *testing.T, name string, fn any) {
	t.Helper()
	l, err := native.Current()
	if err != nil {
		t.Fatal(err)
	}
	field := reflect.ValueOf(l).Elem().FieldByName(name)
	if !field.IsValid() {
		t.Fatalf("no entry point %s", name)
	}
	old := reflect.New(field.Type()).Elem()
	old.Set(field)
	if fn == nil {
		field.SetZero()
	} else {
		field.Set(reflect.ValueOf(fn))
	}
	t.Cleanup(func() { field.Set(old) })
}

// writePipeline stores doc as a pipeline file and returns its path.
func writePipeline(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	return path
}

func waitFor(t *testing.T, what string, job *Job, err error, want Status) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: post: %v", what, err)
	}
	got, err := job.Wait()
	if err != nil {
		t.Fatalf("%s: wait: %v", what, err)
	}
	if got != want {
		t.Fatalf("%s: status = %v, want %v", what, got, want)
	}
}

// newLoadedResource returns a resource with doc loaded.
func newLoadedResource(t *testing.T, doc string) *Resource {
	t.Helper()
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	job, err := res.PostPipeline(writePipeline(t, doc))
	waitFor(t, "load pipeline", job, err, StatusSucceeded)
	return res
}

// newConnectedController returns a connected debug controller.
func newConnectedController(t *testing.T) *Controller {
	t.Helper()
	ctrl, err := NewDbgController(DbgConfig{ReadPath: t.TempDir(), Type: DbgCarouselImage})
	if err != nil {
		t.Fatalf("NewDbgController: %v", err)
	}
	job, err := ctrl.PostConnection()
	waitFor(t, "connect", job, err, StatusSucceeded)
	return ctrl
}

type fixture struct {
	res    *Resource
	ctrl   *Controller
	tasker *Tasker
}

// newFixture builds a ready tasker over doc. Everything is closed at the
// end of the test, tasker first.
func newFixture(t *testing.T, doc string) *fixture {
	t.Helper()
	f := &fixture{res: newLoadedResource(t, doc), ctrl: newConnectedController(t)}
	tasker, err := NewTasker()
	if err != nil {
		t.Fatalf("NewTasker: %v", err)
	}
	f.tasker = tasker
	t.Cleanup(func() {
		if err := f.tasker.Close(); err != nil {
			t.Errorf("close tasker: %v", err)
		}
		if err := f.ctrl.Close(); err != nil {
			t.Errorf("close controller: %v", err)
		}
		if err := f.res.Close(); err != nil {
			t.Errorf("close resource: %v", err)
		}
	})
	if err := tasker.BindResource(f.res); err != nil {
		t.Fatalf("BindResource: %v", err)
	}
	if err := tasker.BindController(f.ctrl); err != nil {
		t.Fatalf("BindController: %v", err)
	}
	return f
}

// run posts entry and waits for it.
func (f *fixture) run(t *testing.T, entry string, override any) (*TaskJob, Status) {
	t.Helper()
	job, err := f.tasker.PostTask(entry, override)
	if err != nil {
		t.Fatalf("PostTask(%q): %v", entry, err)
	}
	st, err := job.Wait()
	if err != nil {
		t.Fatalf("wait %q: %v", entry, err)
	}
	return job, st
}
