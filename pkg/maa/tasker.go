package maa

import (
	"fmt"
	"sync"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// liveTaskers maps native tasker handles to their wrappers so a Context
// can hand back the Tasker running it.
var liveTaskers sync.Map

// Tasker runs pipeline tasks with one bound Resource and Controller.
type Tasker struct {
	h   handle
	lib *native.Lib

	bindMu sync.Mutex
	res    *Resource
	ctrl   *Controller
}

var (
	taskerSinks = sinkOps{
		prefix: "sink",
		add: func(l *native.Lib, raw, cb, token uintptr) int64 {
			return l.MaaTaskerAddSink(raw, cb, token)
		},
		remove: func(l *native.Lib, raw uintptr, id int64) {
			l.MaaTaskerRemoveSink(raw, id)
		},
	}
	contextSinks = sinkOps{
		prefix: "ctx",
		add: func(l *native.Lib, raw, cb, token uintptr) int64 {
			return l.MaaTaskerAddContextSink(raw, cb, token)
		},
		remove: func(l *native.Lib, raw uintptr, id int64) {
			l.MaaTaskerRemoveContextSink(raw, id)
		},
	}
)

// NewTasker creates a tasker with nothing bound.
func NewTasker() (*Tasker, error) {
	l, err := lib()
	if err != nil {
		return nil, err
	}
	raw := l.MaaTaskerCreate()
	if raw == 0 {
		return nil, fmt.Errorf("%w: tasker", ErrConstruction)
	}
	t := &Tasker{lib: l}
	t.h.init("tasker", raw)
	liveTaskers.Store(raw, t)
	return t, nil
}

// Close destroys the tasker and releases the Resource and Controller it
// pinned. Closing twice is a no-op.
func (t *Tasker) Close() error {
	raw, err := t.h.take()
	if err != nil || raw == 0 {
		return err
	}
	t.lib.MaaTaskerClearSinks(raw)
	t.lib.MaaTaskerClearContextSinks(raw)
	t.lib.MaaTaskerDestroy(raw)
	liveTaskers.Delete(raw)
	registry.drop(&t.h, 0)

	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	if t.res != nil {
		t.res.h.unpin()
		t.res = nil
	}
	if t.ctrl != nil {
		t.ctrl.h.unpin()
		t.ctrl = nil
	}
	return nil
}

// LastFault returns the last fault raised by a sink owned by t.
func (t *Tasker) LastFault() *CallbackFault {
	return t.h.lastFault()
}

// BindResource binds r, replacing any resource bound before. The previous
// resource is released and may be closed.
func (t *Tasker) BindResource(r *Resource) error {
	if r == nil {
		return fmt.Errorf("%w: nil resource", ErrBind)
	}
	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	raw, err := t.h.ptr()
	if err != nil {
		return err
	}
	if t.res == r {
		return nil
	}
	res, err := r.h.pin()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	if t.lib.MaaTaskerBindResource(raw, res) == 0 {
		r.h.unpin()
		return fmt.Errorf("%w: native bind resource", ErrBind)
	}
	if t.res != nil {
		t.res.h.unpin()
	}
	t.res = r
	return nil
}

// BindController binds c, replacing any controller bound before.
func (t *Tasker) BindController(c *Controller) error {
	if c == nil {
		return fmt.Errorf("%w: nil controller", ErrBind)
	}
	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	raw, err := t.h.ptr()
	if err != nil {
		return err
	}
	if t.ctrl == c {
		return nil
	}
	ctrl, err := c.h.pin()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	if t.lib.MaaTaskerBindController(raw, ctrl) == 0 {
		c.h.unpin()
		return fmt.Errorf("%w: native bind controller", ErrBind)
	}
	if t.ctrl != nil {
		t.ctrl.h.unpin()
	}
	t.ctrl = c
	return nil
}

// Resource returns the bound resource, or nil.
func (t *Tasker) Resource() *Resource {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	return t.res
}

// Controller returns the bound controller, or nil.
func (t *Tasker) Controller() *Controller {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	return t.ctrl
}

// Inited reports whether the library considers the tasker ready to run.
func (t *Tasker) Inited() (bool, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return false, err
	}
	return t.lib.MaaTaskerInited(raw) != 0, nil
}

// ready returns the tasker handle if both roles are bound and live.
func (t *Tasker) ready() (uintptr, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return 0, err
	}
	t.bindMu.Lock()
	res, ctrl := t.res, t.ctrl
	t.bindMu.Unlock()
	if res == nil {
		return 0, fmt.Errorf("%w: no resource bound", ErrBind)
	}
	if ctrl == nil {
		return 0, fmt.Errorf("%w: no controller bound", ErrBind)
	}
	if res.h.closed() || ctrl.h.closed() {
		return 0, fmt.Errorf("%w: bound handle is closed", ErrInvalidHandle)
	}
	return raw, nil
}

func (t *Tasker) jobStatus(id int64) (int32, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return 0, err
	}
	return t.lib.MaaTaskerStatus(raw, id), nil
}

func (t *Tasker) jobWait(id int64) (int32, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return 0, err
	}
	return t.lib.MaaTaskerWait(raw, id), nil
}

func (t *Tasker) stopJobs() error {
	_, err := t.PostStop()
	return err
}

// PostTask runs the pipeline from node entry. override, if not nil, is a
// pipeline document merged on top of the resource for this task only.
func (t *Tasker) PostTask(entry string, override any) (*TaskJob, error) {
	if err := encodeString("entry", entry); err != nil {
		return nil, err
	}
	doc, err := encodeDocument("pipeline override", override)
	if err != nil {
		return nil, err
	}
	raw, err := t.ready()
	if err != nil {
		return nil, err
	}
	id := t.lib.MaaTaskerPostTask(raw, entry, doc)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: post task %q", ErrRejected, entry)
	}
	return &TaskJob{Job: newJob(t, id), tasker: t}, nil
}

// PostRecognition runs one recognition of type recoType with param on img.
func (t *Tasker) PostRecognition(recoType string, param any, img *Image) (*TaskJob, error) {
	if err := encodeString("recognition type", recoType); err != nil {
		return nil, err
	}
	doc, err := encodeDocument("recognition param", param)
	if err != nil {
		return nil, err
	}
	raw, err := t.ready()
	if err != nil {
		return nil, err
	}
	buf, err := imageBufferFrom(t.lib, img)
	if err != nil {
		return nil, err
	}
	defer buf.close()
	id := t.lib.MaaTaskerPostRecognition(raw, recoType, doc, buf.p)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: post recognition %q", ErrRejected, recoType)
	}
	return &TaskJob{Job: newJob(t, id), tasker: t}, nil
}

// PostAction runs one action of type actionType with param on box.
func (t *Tasker) PostAction(actionType string, param any, box Rect, recoDetail string) (*TaskJob, error) {
	if err := encodeString("action type", actionType); err != nil {
		return nil, err
	}
	if err := encodeString("recognition detail", recoDetail); err != nil {
		return nil, err
	}
	doc, err := encodeDocument("action param", param)
	if err != nil {
		return nil, err
	}
	raw, err := t.ready()
	if err != nil {
		return nil, err
	}
	r := box.native()
	id := t.lib.MaaTaskerPostAction(raw, actionType, doc, &r, recoDetail)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: post action %q", ErrRejected, actionType)
	}
	return &TaskJob{Job: newJob(t, id), tasker: t}, nil
}

// PostStop asks every running task to stop. It does not wait.
func (t *Tasker) PostStop() (*Job, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return nil, err
	}
	id := t.lib.MaaTaskerPostStop(raw)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: post stop", ErrRejected)
	}
	return newJob(t, id), nil
}

// Running reports whether a task is running.
func (t *Tasker) Running() (bool, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return false, err
	}
	return t.lib.MaaTaskerRunning(raw) != 0, nil
}

// Stopping reports whether a stop is in progress.
func (t *Tasker) Stopping() (bool, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return false, err
	}
	return t.lib.MaaTaskerStopping(raw) != 0, nil
}

// ClearCache drops recorded task, node, recognition and action details.
func (t *Tasker) ClearCache() error {
	raw, err := t.h.ptr()
	if err != nil {
		return err
	}
	if t.lib.MaaTaskerClearCache(raw) == 0 {
		return fmt.Errorf("%w: clear cache", ErrRejected)
	}
	return nil
}

// OverridePipeline merges doc into the pipeline of the running task
// taskID.
func (t *Tasker) OverridePipeline(taskID int64, doc any) error {
	raw, err := t.h.ptr()
	if err != nil {
		return err
	}
	s, err := encodeDocument("pipeline override", doc)
	if err != nil {
		return err
	}
	if t.lib.MaaTaskerOverridePipeline(raw, taskID, s) == 0 {
		return fmt.Errorf("%w: override pipeline of task %d", ErrRejected, taskID)
	}
	return nil
}

// TaskDetail returns the task and the nodes it ran.
func (t *Tasker) TaskDetail(taskID int64) (*TaskDetail, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return nil, err
	}
	return taskDetail(t.lib, raw, taskID)
}

func (t *Tasker) NodeDetail(nodeID int64) (*NodeDetail, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return nil, err
	}
	return nodeDetail(t.lib, raw, nodeID)
}

func (t *Tasker) RecognitionDetail(recoID int64) (*RecognitionDetail, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return nil, err
	}
	return recognitionDetail(t.lib, raw, recoID)
}

func (t *Tasker) ActionDetail(actionID int64) (*ActionDetail, error) {
	raw, err := t.h.ptr()
	if err != nil {
		return nil, err
	}
	return actionDetail(t.lib, raw, actionID)
}

// LatestNode returns the most recent run of the node called name.
func (t *Tasker) LatestNode(name string) (*NodeDetail, error) {
	if err := encodeString("node name", name); err != nil {
		return nil, err
	}
	raw, err := t.h.ptr()
	if err != nil {
		return nil, err
	}
	var id int64
	if t.lib.MaaTaskerGetLatestNode(raw, name, &id) == 0 || id == native.InvalidID {
		return nil, fmt.Errorf("%w: node %q has not run", ErrRejected, name)
	}
	return nodeDetail(t.lib, raw, id)
}

// AddSink registers fn for tasker events.
func (t *Tasker) AddSink(fn Sink) (SinkID, error) {
	return addSink(t.lib, &t.h, taskerSinks, fn)
}

// AddContextSink registers fn for node events; Event.Handle is the
// MaaContext of the node.
func (t *Tasker) AddContextSink(fn Sink) (SinkID, error) {
	return addSink(t.lib, &t.h, contextSinks, fn)
}

func (t *Tasker) RemoveSink(id SinkID) error {
	return removeSink(t.lib, &t.h, taskerSinks, id)
}

func (t *Tasker) RemoveContextSink(id SinkID) error {
	return removeSink(t.lib, &t.h, contextSinks, id)
}

// ClearSinks removes every tasker sink. Context sinks are kept.
func (t *Tasker) ClearSinks() error {
	raw, err := t.h.ptr()
	if err != nil {
		return err
	}
	t.lib.MaaTaskerClearSinks(raw)
	registry.dropSinks(&t.h, taskerSinks.prefix)
	return nil
}

func (t *Tasker) ClearContextSinks() error {
	raw, err := t.h.ptr()
	if err != nil {
		return err
	}
	t.lib.MaaTaskerClearContextSinks(raw)
	registry.dropSinks(&t.h, contextSinks.prefix)
	return nil
}
