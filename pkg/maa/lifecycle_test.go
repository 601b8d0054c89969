package maa

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/haivivi/maafw/pkg/maa/maatest"
)

func TestResource_CloseTwice(t *testing.T) {
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	before := engine.Destroyed(maatest.KindResource)

	if err := res.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := engine.Destroyed(maatest.KindResource) - before; got != 1 {
		t.Errorf("destroyed %d resources, want 1", got)
	}

	if _, err := res.Loaded(); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Loaded after Close: err = %v, want ErrInvalidHandle", err)
	}
	if _, err := res.PostPipeline("x"); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("PostPipeline after Close: err = %v, want ErrInvalidHandle", err)
	}
}

func TestController_CloseTwice(t *testing.T) {
	ctrl := newConnectedController(t)
	before := engine.Destroyed(maatest.KindController)
	if err := ctrl.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := engine.Destroyed(maatest.KindController) - before; got != 1 {
		t.Errorf("destroyed %d controllers, want 1", got)
	}
	if _, err := ctrl.PostClick(1, 1); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("PostClick after Close: err = %v, want ErrInvalidHandle", err)
	}
}

func TestTasker_CloseTwice(t *testing.T) {
	tasker, err := NewTasker()
	if err != nil {
		t.Fatalf("NewTasker: %v", err)
	}
	before := engine.Destroyed(maatest.KindTasker)
	if err := tasker.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := tasker.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := engine.Destroyed(maatest.KindTasker) - before; got != 1 {
		t.Errorf("destroyed %d taskers, want 1", got)
	}
	if _, err := tasker.Running(); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Running after Close: err = %v, want ErrInvalidHandle", err)
	}
}

func TestTasker_PinsBoundHandles(t *testing.T) {
	res := newLoadedResource(t, `{"Start": {}}`)
	ctrl := newConnectedController(t)
	tasker, err := NewTasker()
	if err != nil {
		t.Fatalf("NewTasker: %v", err)
	}
	if err := tasker.BindResource(res); err != nil {
		t.Fatalf("BindResource: %v", err)
	}
	if err := tasker.BindController(ctrl); err != nil {
		t.Fatalf("BindController: %v", err)
	}

	if err := res.Close(); !errors.Is(err, ErrInUse) {
		t.Errorf("Close bound resource: err = %v, want ErrInUse", err)
	}
	if err := ctrl.Close(); !errors.Is(err, ErrInUse) {
		t.Errorf("Close bound controller: err = %v, want ErrInUse", err)
	}
	// Still usable after the refused Close.
	if ok, err := res.Loaded(); err != nil || !ok {
		t.Errorf("Loaded = %v, %v; want true, nil", ok, err)
	}

	if err := tasker.Close(); err != nil {
		t.Fatalf("close tasker: %v", err)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close released resource: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Errorf("Close released controller: %v", err)
	}
}

func TestTasker_BindSameTwice(t *testing.T) {
	res := newLoadedResource(t, `{"Start": {}}`)
	tasker, err := NewTasker()
	if err != nil {
		t.Fatalf("NewTasker: %v", err)
	}
	for i := range 2 {
		if err := tasker.BindResource(res); err != nil {
			t.Fatalf("BindResource #%d: %v", i, err)
		}
	}
	if tasker.Resource() != res {
		t.Error("Resource() does not return the bound resource")
	}
	if err := tasker.Close(); err != nil {
		t.Fatalf("close tasker: %v", err)
	}
	// One pin for two binds of the same resource.
	if err := res.Close(); err != nil {
		t.Errorf("Close after tasker closed: %v", err)
	}
}

func TestTasker_RebindReleasesPrevious(t *testing.T) {
	first := newLoadedResource(t, `{"A": {}}`)
	second := newLoadedResource(t, `{"B": {}}`)
	tasker, err := NewTasker()
	if err != nil {
		t.Fatalf("NewTasker: %v", err)
	}
	defer func() {
		tasker.Close()
		second.Close()
	}()

	if err := tasker.BindResource(first); err != nil {
		t.Fatalf("bind first: %v", err)
	}
	if err := tasker.BindResource(second); err != nil {
		t.Fatalf("bind second: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Errorf("Close replaced resource: %v", err)
	}
	if err := second.Close(); !errors.Is(err, ErrInUse) {
		t.Errorf("Close bound resource: err = %v, want ErrInUse", err)
	}
}

func TestTasker_BindClosed(t *testing.T) {
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	res.Close()
	tasker, err := NewTasker()
	if err != nil {
		t.Fatalf("NewTasker: %v", err)
	}
	defer tasker.Close()

	err = tasker.BindResource(res)
	if !errors.Is(err, ErrBind) || !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("bind closed resource: err = %v, want ErrBind and ErrInvalidHandle", err)
	}
	if err := tasker.BindResource(nil); !errors.Is(err, ErrBind) {
		t.Errorf("bind nil: err = %v, want ErrBind", err)
	}
	if tasker.Resource() != nil {
		t.Error("failed bind left a resource bound")
	}
}

func TestTasker_PostUnbound(t *testing.T) {
	tasker, err := NewTasker()
	if err != nil {
		t.Fatalf("NewTasker: %v", err)
	}
	defer tasker.Close()

	if _, err := tasker.PostTask("Start", nil); !errors.Is(err, ErrBind) {
		t.Errorf("PostTask unbound: err = %v, want ErrBind", err)
	}

	res := newLoadedResource(t, `{"Start": {}}`)
	defer func() {
		tasker.Close()
		res.Close()
	}()
	if err := tasker.BindResource(res); err != nil {
		t.Fatalf("BindResource: %v", err)
	}
	if _, err := tasker.PostTask("Start", nil); !errors.Is(err, ErrBind) {
		t.Errorf("PostTask without controller: err = %v, want ErrBind", err)
	}
	if ok, err := tasker.Inited(); err != nil || ok {
		t.Errorf("Inited = %v, %v; want false, nil", ok, err)
	}
}

func TestClose_ReleasesRegistrations(t *testing.T) {
	f := newFixture(t, `{"Start": {}}`)
	if _, err := f.tasker.AddSink(func(Event) {}); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	if _, err := f.tasker.AddContextSink(func(Event) {}); err != nil {
		t.Fatalf("AddContextSink: %v", err)
	}
	if err := f.res.RegisterCustomAction("Noop", CustomActionFunc(func(*Context, *ActionArg) bool { return true })); err != nil {
		t.Fatalf("RegisterCustomAction: %v", err)
	}
	if got := registry.count(&f.tasker.h); got != 2 {
		t.Errorf("tasker registrations = %d, want 2", got)
	}
	if got := registry.count(&f.res.h); got != 1 {
		t.Errorf("resource registrations = %d, want 1", got)
	}

	if err := f.tasker.Close(); err != nil {
		t.Fatalf("close tasker: %v", err)
	}
	if err := f.res.Close(); err != nil {
		t.Fatalf("close resource: %v", err)
	}
	if got := registry.count(&f.tasker.h); got != 0 {
		t.Errorf("tasker registrations after Close = %d", got)
	}
	if got := registry.count(&f.res.h); got != 0 {
		t.Errorf("resource registrations after Close = %d", got)
	}
}

func TestCallbackPointers_Bounded(t *testing.T) {
	// Trampolines are created once per process, not per registration.
	f := newFixture(t, `{"Start": {}}`)
	before := engine.Callbacks()
	for range 10 {
		id, err := f.tasker.AddSink(func(Event) {})
		if err != nil {
			t.Fatalf("AddSink: %v", err)
		}
		if err := f.tasker.RemoveSink(id); err != nil {
			t.Fatalf("RemoveSink: %v", err)
		}
	}
	if got := engine.Callbacks(); got != before {
		t.Errorf("callback pointers grew from %d to %d", before, got)
	}
}

func TestRegistry_ChurnDuringDispatch(t *testing.T) {
	f := newFixture(t, customPipeline)
	var calls atomic.Int64
	finder := CustomRecognitionFunc(func(*Context, *RecognitionArg) (RecognitionResult, bool) {
		calls.Add(1)
		return RecognitionResult{Box: Rect{X: 1, Y: 1, Width: 2, Height: 2}}, true
	})
	press := CustomActionFunc(func(*Context, *ActionArg) bool {
		calls.Add(1)
		return true
	})
	if err := f.res.RegisterCustomRecognition("Finder", finder); err != nil {
		t.Fatal(err)
	}

	const rounds = 50
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for range rounds {
			job, err := f.tasker.PostTask("Start", nil)
			if err != nil {
				t.Errorf("PostTask: %v", err)
				return
			}
			st, err := job.Wait()
			if err != nil {
				t.Errorf("Wait: %v", err)
				return
			}
			if st != StatusSucceeded && st != StatusFailed {
				t.Errorf("status = %v", st)
			}
		}
	}()

	// Registrations flip while tasks dispatch to them.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := f.res.RegisterCustomAction("Press", press); err != nil {
				t.Errorf("RegisterCustomAction: %v", err)
				return
			}
			if err := f.res.UnregisterCustomAction("Press"); err != nil {
				t.Errorf("UnregisterCustomAction: %v", err)
				return
			}
			f.res.RegisterCustomRecognition("Finder", finder)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			id, err := f.tasker.AddSink(func(Event) {})
			if err != nil {
				t.Errorf("AddSink: %v", err)
				return
			}
			if err := f.tasker.RemoveSink(id); err != nil {
				t.Errorf("RemoveSink: %v", err)
				return
			}
		}
	}()

	// Unrelated handles come and go with live registrations.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			res, err := NewResource()
			if err != nil {
				t.Errorf("NewResource: %v", err)
				return
			}
			res.RegisterCustomAction("Press", press)
			res.AddSink(func(Event) {})
			if err := res.Close(); err != nil {
				t.Errorf("Close: %v", err)
				return
			}
		}
	}()

	wg.Wait()
	if calls.Load() == 0 {
		t.Error("no callback ran")
	}
}
