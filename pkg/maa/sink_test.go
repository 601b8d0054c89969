package maa

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) sink(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Message)
	}
	return out
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func TestTaskerSink(t *testing.T) {
	f := newFixture(t, `{"Start": {}}`)
	var rec recorder
	if _, err := f.tasker.AddSink(rec.sink); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	job, st := f.run(t, "Start", nil)
	if st != StatusSucceeded {
		t.Fatalf("status = %v", st)
	}

	want := []string{MsgTaskerTaskStarting, MsgTaskerTaskSucceeded}
	if got := rec.messages(); !slices.Equal(got, want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	var detail TaskerTaskDetail
	if err := rec.all()[1].Decode(&detail); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if detail.TaskID != job.ID() || detail.Entry != "Start" {
		t.Errorf("detail = %+v", detail)
	}
	uuid, _ := f.ctrl.UUID()
	if detail.UUID != uuid {
		t.Errorf("detail uuid = %q, want %q", detail.UUID, uuid)
	}
	if hash, _ := f.res.Hash(); detail.Hash != hash {
		t.Errorf("detail hash = %q, want %q", detail.Hash, hash)
	}
}

func TestContextSink(t *testing.T) {
	f := newFixture(t, `{"Start": {"next": ["End"]}, "End": {}}`)
	var rec recorder
	if _, err := f.tasker.AddContextSink(rec.sink); err != nil {
		t.Fatalf("AddContextSink: %v", err)
	}
	job, _ := f.run(t, "Start", nil)

	events := rec.all()
	if len(events) == 0 {
		t.Fatal("no context events")
	}
	var pipelineNodes []string
	for _, ev := range events {
		if ev.Handle == 0 {
			t.Errorf("%s: zero context handle", ev.Message)
		}
		if ev.Category() != "Node.PipelineNode" || ev.Phase() != PhaseSucceeded {
			continue
		}
		var d NodePipelineNodeDetail
		if err := ev.Decode(&d); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if d.TaskID != job.ID() {
			t.Errorf("task id = %d, want %d", d.TaskID, job.ID())
		}
		pipelineNodes = append(pipelineNodes, d.Name)
	}
	if !slices.Equal(pipelineNodes, []string{"Start", "End"}) {
		t.Errorf("succeeded nodes = %v, want [Start End]", pipelineNodes)
	}

	// Recognition precedes action within a node.
	msgs := rec.messages()
	reco := slices.Index(msgs, MsgNodeRecognitionSucceeded)
	act := slices.Index(msgs, MsgNodeActionSucceeded)
	if reco < 0 || act < 0 || reco > act {
		t.Errorf("messages out of order: %v", msgs)
	}
}

func TestRemoveSink(t *testing.T) {
	f := newFixture(t, `{"Start": {}}`)
	var kept, removed recorder
	if _, err := f.tasker.AddSink(kept.sink); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	id, err := f.tasker.AddSink(removed.sink)
	if err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	if err := f.tasker.RemoveSink(id); err != nil {
		t.Fatalf("RemoveSink: %v", err)
	}
	f.run(t, "Start", nil)

	if n := len(removed.all()); n != 0 {
		t.Errorf("removed sink got %d events", n)
	}
	if n := len(kept.all()); n != 2 {
		t.Errorf("kept sink got %d events, want 2", n)
	}

	if err := f.tasker.ClearSinks(); err != nil {
		t.Fatalf("ClearSinks: %v", err)
	}
	f.run(t, "Start", nil)
	if n := len(kept.all()); n != 2 {
		t.Errorf("cleared sink got %d events, want 2", n)
	}
	if _, err := f.tasker.AddSink(nil); !errors.Is(err, ErrRejected) {
		t.Errorf("AddSink(nil): err = %v, want ErrRejected", err)
	}
}

func TestSink_PanicIsContained(t *testing.T) {
	f := newFixture(t, `{"Start": {}}`)
	if _, err := f.tasker.AddSink(func(Event) { panic("sink broke") }); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	if _, st := f.run(t, "Start", nil); st != StatusSucceeded {
		t.Errorf("status = %v, want succeeded", st)
	}
	fault := f.tasker.LastFault()
	if fault == nil || fault.Kind != KindSink {
		t.Fatalf("LastFault = %v, want a sink fault", fault)
	}
}

func TestResourceSink(t *testing.T) {
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	defer res.Close()
	var rec recorder
	if _, err := res.AddSink(rec.sink); err != nil {
		t.Fatalf("AddSink: %v", err)
	}

	path := writePipeline(t, `{"A": {}}`)
	first, err := res.PostPipeline(path)
	waitFor(t, "load", first, err, StatusSucceeded)
	job, err := res.PostPipeline(path + ".missing")
	waitFor(t, "load missing", job, err, StatusFailed)

	want := []string{
		MsgResourceLoadingStarting, MsgResourceLoadingSucceeded,
		MsgResourceLoadingStarting, MsgResourceLoadingFailed,
	}
	if got := rec.messages(); !slices.Equal(got, want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	var d ResourceLoadingDetail
	if err := rec.all()[1].Decode(&d); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Path != path || d.ResID != first.ID() {
		t.Errorf("detail = %+v", d)
	}
	if hash, _ := res.Hash(); d.Hash != hash {
		t.Errorf("detail hash = %q, want %q", d.Hash, hash)
	}
}

func TestControllerSink(t *testing.T) {
	ctrl := newConnectedController(t)
	defer ctrl.Close()
	var rec recorder
	if _, err := ctrl.AddSink(rec.sink); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	job, err := ctrl.PostClick(3, 4)
	waitFor(t, "click", job, err, StatusSucceeded)

	events := rec.all()
	if len(events) != 2 {
		t.Fatalf("events = %v", rec.messages())
	}
	var d ControllerActionDetail
	if err := events[1].Decode(&d); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.CtrlID != job.ID() || d.Action != "click" {
		t.Errorf("detail = %+v", d)
	}
	if string(d.Param) != `{"x":3,"y":4}` {
		t.Errorf("param = %s", d.Param)
	}
}

func TestEvent_Phase(t *testing.T) {
	tests := []struct {
		msg      string
		category string
		phase    Phase
	}{
		{MsgTaskerTaskStarting, "Tasker.Task", PhaseStarting},
		{MsgNodeActionSucceeded, "Node.Action", PhaseSucceeded},
		{MsgResourceLoadingFailed, "Resource.Loading", PhaseFailed},
		{"Custom", "Custom", PhaseUnknown},
	}
	for _, tt := range tests {
		ev := Event{Message: tt.msg}
		if got := ev.Category(); got != tt.category {
			t.Errorf("Category(%q) = %q, want %q", tt.msg, got, tt.category)
		}
		if got := ev.Phase(); got != tt.phase {
			t.Errorf("Phase(%q) = %q, want %q", tt.msg, got, tt.phase)
		}
	}
	if err := (Event{Message: "x"}).Decode(&struct{}{}); !errors.Is(err, ErrDecode) {
		t.Errorf("Decode without details: err = %v, want ErrDecode", err)
	}
}
