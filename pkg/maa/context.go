package maa

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// Context is the engine state passed to custom recognitions and actions.
// It does not own the native context and is valid only until the callback
// that received it returns; later calls fail with ErrContextExpired.
type Context struct {
	lib  *native.Lib
	raw  uintptr
	live *atomic.Bool
}

func newContext(l *native.Lib, raw uintptr) *Context {
	live := new(atomic.Bool)
	live.Store(true)
	return &Context{lib: l, raw: raw, live: live}
}

func (c *Context) expire() {
	c.live.Store(false)
}

func (c *Context) ptr() (uintptr, error) {
	if !c.live.Load() {
		return 0, ErrContextExpired
	}
	if c.raw == 0 {
		return 0, fmt.Errorf("%w: null context", ErrInvalidHandle)
	}
	return c.raw, nil
}

// Valid reports whether the context may still be used.
func (c *Context) Valid() bool {
	return c.live.Load() && c.raw != 0
}

// TaskID returns the id of the task being run.
func (c *Context) TaskID() (int64, error) {
	raw, err := c.ptr()
	if err != nil {
		return 0, err
	}
	return c.lib.MaaContextGetTaskId(raw), nil
}

// Tasker returns the Tasker running the task.
func (c *Context) Tasker() (*Tasker, error) {
	raw, err := c.ptr()
	if err != nil {
		return nil, err
	}
	t, ok := liveTaskers.Load(c.lib.MaaContextGetTasker(raw))
	if !ok {
		return nil, fmt.Errorf("%w: tasker of context is not owned by this process", ErrInvalidHandle)
	}
	return t.(*Tasker), nil
}

func (c *Context) tasker(raw uintptr) (uintptr, error) {
	t := c.lib.MaaContextGetTasker(raw)
	if t == 0 {
		return 0, fmt.Errorf("%w: context has no tasker", ErrInvalidHandle)
	}
	return t, nil
}

// RunTask runs entry synchronously as a sub-task, with override applied on
// top of the current pipeline, and returns its detail.
func (c *Context) RunTask(entry string, override any) (*TaskDetail, error) {
	raw, err := c.ptr()
	if err != nil {
		return nil, err
	}
	if err := encodeString("entry", entry); err != nil {
		return nil, err
	}
	doc, err := encodeDocument("pipeline override", override)
	if err != nil {
		return nil, err
	}
	id := c.lib.MaaContextRunTask(raw, entry, doc)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: run task %q", ErrRejected, entry)
	}
	t, err := c.tasker(raw)
	if err != nil {
		return nil, err
	}
	return taskDetail(c.lib, t, id)
}

// RunRecognition runs the recognition of node entry on img.
func (c *Context) RunRecognition(entry string, img *Image, override any) (*RecognitionDetail, error) {
	raw, err := c.ptr()
	if err != nil {
		return nil, err
	}
	if err := encodeString("entry", entry); err != nil {
		return nil, err
	}
	doc, err := encodeDocument("pipeline override", override)
	if err != nil {
		return nil, err
	}
	buf, err := imageBufferFrom(c.lib, img)
	if err != nil {
		return nil, err
	}
	defer buf.close()
	id := c.lib.MaaContextRunRecognition(raw, entry, doc, buf.p)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: run recognition %q", ErrRejected, entry)
	}
	t, err := c.tasker(raw)
	if err != nil {
		return nil, err
	}
	return recognitionDetail(c.lib, t, id)
}

// RunAction runs the action of node entry on box. recoDetail is passed to
// the action as the recognition detail.
func (c *Context) RunAction(entry string, box Rect, recoDetail string, override any) (*ActionDetail, error) {
	raw, err := c.ptr()
	if err != nil {
		return nil, err
	}
	if err := encodeString("entry", entry); err != nil {
		return nil, err
	}
	if err := encodeString("recognition detail", recoDetail); err != nil {
		return nil, err
	}
	doc, err := encodeDocument("pipeline override", override)
	if err != nil {
		return nil, err
	}
	r := box.native()
	id := c.lib.MaaContextRunAction(raw, entry, doc, &r, recoDetail)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: run action %q", ErrRejected, entry)
	}
	t, err := c.tasker(raw)
	if err != nil {
		return nil, err
	}
	return actionDetail(c.lib, t, id)
}

// OverridePipeline merges doc into the pipeline of the running task.
func (c *Context) OverridePipeline(doc any) error {
	raw, err := c.ptr()
	if err != nil {
		return err
	}
	s, err := encodeDocument("pipeline override", doc)
	if err != nil {
		return err
	}
	if c.lib.MaaContextOverridePipeline(raw, s) == 0 {
		return fmt.Errorf("%w: override pipeline", ErrRejected)
	}
	return nil
}

// OverrideNext replaces the next list of node.
func (c *Context) OverrideNext(node string, next []string) error {
	raw, err := c.ptr()
	if err != nil {
		return err
	}
	if err := encodeString("node name", node); err != nil {
		return err
	}
	list, err := newStringList(c.lib, next)
	if err != nil {
		return err
	}
	defer list.close()
	if c.lib.MaaContextOverrideNext(raw, node, list.p) == 0 {
		return fmt.Errorf("%w: override next of %q", ErrRejected, node)
	}
	return nil
}

// OverrideImage replaces the template image called name.
func (c *Context) OverrideImage(name string, img *Image) error {
	raw, err := c.ptr()
	if err != nil {
		return err
	}
	if err := encodeString("image name", name); err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrDecode)
	}
	buf, err := imageBufferFrom(c.lib, img)
	if err != nil {
		return err
	}
	defer buf.close()
	if c.lib.MaaContextOverrideImage(raw, name, buf.p) == 0 {
		return fmt.Errorf("%w: override image %q", ErrRejected, name)
	}
	return nil
}

// NodeData returns the effective definition of node as JSON.
func (c *Context) NodeData(node string) (json.RawMessage, error) {
	raw, err := c.ptr()
	if err != nil {
		return nil, err
	}
	if err := encodeString("node name", node); err != nil {
		return nil, err
	}
	buf, err := newStringBuffer(c.lib)
	if err != nil {
		return nil, err
	}
	defer buf.close()
	if c.lib.MaaContextGetNodeData(raw, node, buf.p) == 0 {
		return nil, fmt.Errorf("%w: node %q not found", ErrRejected, node)
	}
	s, err := buf.get("node data")
	if err != nil {
		return nil, err
	}
	return decodeDocument("node data", s)
}

// SetAnchor points anchor at node.
func (c *Context) SetAnchor(anchor, node string) error {
	raw, err := c.ptr()
	if err != nil {
		return err
	}
	if err := encodeString("anchor name", anchor); err != nil {
		return err
	}
	if err := encodeString("node name", node); err != nil {
		return err
	}
	if c.lib.MaaContextSetAnchor(raw, anchor, node) == 0 {
		return fmt.Errorf("%w: set anchor %q", ErrRejected, anchor)
	}
	return nil
}

// Anchor returns the node anchor points at.
func (c *Context) Anchor(anchor string) (string, error) {
	raw, err := c.ptr()
	if err != nil {
		return "", err
	}
	if err := encodeString("anchor name", anchor); err != nil {
		return "", err
	}
	buf, err := newStringBuffer(c.lib)
	if err != nil {
		return "", err
	}
	defer buf.close()
	if c.lib.MaaContextGetAnchor(raw, anchor, buf.p) == 0 {
		return "", fmt.Errorf("%w: anchor %q not set", ErrRejected, anchor)
	}
	return buf.get("anchor")
}

// HitCount returns how many times node has hit in the running task.
func (c *Context) HitCount(node string) (uint64, error) {
	raw, err := c.ptr()
	if err != nil {
		return 0, err
	}
	if err := encodeString("node name", node); err != nil {
		return 0, err
	}
	var n uint64
	if c.lib.MaaContextGetHitCount(raw, node, &n) == 0 {
		return 0, fmt.Errorf("%w: hit count of %q", ErrRejected, node)
	}
	return n, nil
}

// ClearHitCount resets the hit count of node.
func (c *Context) ClearHitCount(node string) error {
	raw, err := c.ptr()
	if err != nil {
		return err
	}
	if err := encodeString("node name", node); err != nil {
		return err
	}
	if c.lib.MaaContextClearHitCount(raw, node) == 0 {
		return fmt.Errorf("%w: clear hit count of %q", ErrRejected, node)
	}
	return nil
}

// Clone returns a copy of the context that can be overridden without
// affecting c. The copy expires together with c.
func (c *Context) Clone() (*Context, error) {
	raw, err := c.ptr()
	if err != nil {
		return nil, err
	}
	p := c.lib.MaaContextClone(raw)
	if p == 0 {
		return nil, fmt.Errorf("%w: clone context", ErrConstruction)
	}
	return &Context{lib: c.lib, raw: p, live: c.live}, nil
}
