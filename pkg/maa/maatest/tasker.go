package maatest

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// maxSteps bounds the nodes one task may visit.
const maxSteps = 64

type recoRecord struct {
	node, algo string
	hit        bool
	box        native.Rect
	detail     string
	raw        *pixels
}

type actionRecord struct {
	node, action string
	box          native.Rect
	success      bool
	detail       string
}

type nodeRecord struct {
	name      string
	reco      int64
	action    int64
	completed bool
}

type taskRecord struct {
	entry    string
	gen      int64
	status   atomic.Int32
	mu       sync.Mutex
	nodes    []int64
	override pipeline
}

func (r *taskRecord) addNode(id int64) {
	r.mu.Lock()
	r.nodes = append(r.nodes, id)
	r.mu.Unlock()
}

// takeOverride returns and clears the override posted for a running task.
func (r *taskRecord) takeOverride() pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.override
	r.override = nil
	return p
}

type tasker struct {
	e        *Engine
	h        uintptr
	q        *queue
	sinks    sinkSet
	ctxSinks sinkSet
	stopGen  atomic.Int64
	stopping atomic.Bool

	mu      sync.Mutex
	res     uintptr
	ctrl    uintptr
	tasks   map[int64]*taskRecord
	nodes   map[int64]*nodeRecord
	recos   map[int64]*recoRecord
	actions map[int64]*actionRecord
	latest  map[string]int64
}

func (*tasker) kind() string { return KindTasker }

func (t *tasker) reset() {
	t.tasks = make(map[int64]*taskRecord)
	t.nodes = make(map[int64]*nodeRecord)
	t.recos = make(map[int64]*recoRecord)
	t.actions = make(map[int64]*actionRecord)
	t.latest = make(map[string]int64)
}

func (e *Engine) taskerCreate() uintptr {
	t := &tasker{e: e, q: newQueue(e)}
	t.reset()
	t.h = e.put(t)
	return t.h
}

func (e *Engine) taskerDestroy(h uintptr) {
	if t, ok := e.free("MaaTaskerDestroy", h, KindTasker).(*tasker); ok {
		t.stopGen.Add(1)
		t.q.close()
	}
}

func (e *Engine) taskerAddSink(h, cb, arg uintptr) int64 {
	t, ok := get[*tasker](e, "MaaTaskerAddSink", h)
	if !ok {
		return native.InvalidID
	}
	return t.sinks.add(e, cb, arg)
}

func (e *Engine) taskerRemoveSink(h uintptr, id int64) {
	if t, ok := get[*tasker](e, "MaaTaskerRemoveSink", h); ok {
		t.sinks.remove(id)
	}
}

func (e *Engine) taskerClearSinks(h uintptr) {
	if t, ok := get[*tasker](e, "MaaTaskerClearSinks", h); ok {
		t.sinks.clear()
	}
}

func (e *Engine) taskerAddContextSink(h, cb, arg uintptr) int64 {
	t, ok := get[*tasker](e, "MaaTaskerAddContextSink", h)
	if !ok {
		return native.InvalidID
	}
	return t.ctxSinks.add(e, cb, arg)
}

func (e *Engine) taskerRemoveContextSink(h uintptr, id int64) {
	if t, ok := get[*tasker](e, "MaaTaskerRemoveContextSink", h); ok {
		t.ctxSinks.remove(id)
	}
}

func (e *Engine) taskerClearContextSinks(h uintptr) {
	if t, ok := get[*tasker](e, "MaaTaskerClearContextSinks", h); ok {
		t.ctxSinks.clear()
	}
}

func (e *Engine) taskerBindResource(h, res uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerBindResource", h)
	if !ok {
		return 0
	}
	if res != 0 {
		if _, ok := get[*resource](e, "MaaTaskerBindResource", res); !ok {
			return 0
		}
	}
	t.mu.Lock()
	t.res = res
	t.mu.Unlock()
	return 1
}

func (e *Engine) taskerBindController(h, ctrl uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerBindController", h)
	if !ok {
		return 0
	}
	if ctrl != 0 {
		if _, ok := get[*controller](e, "MaaTaskerBindController", ctrl); !ok {
			return 0
		}
	}
	t.mu.Lock()
	t.ctrl = ctrl
	t.mu.Unlock()
	return 1
}

// bound returns the bound resource and controller, or false when either is
// missing or destroyed.
func (t *tasker) bound() (*resource, *controller, bool) {
	t.mu.Lock()
	rh, ch := t.res, t.ctrl
	t.mu.Unlock()
	r, ok := t.e.lookup(rh).(*resource)
	if !ok {
		return nil, nil, false
	}
	c, ok := t.e.lookup(ch).(*controller)
	if !ok {
		return nil, nil, false
	}
	return r, c, true
}

func (t *tasker) inited() bool {
	r, c, ok := t.bound()
	return ok && r.loaded() && c.isConnected()
}

func (e *Engine) taskerInited(h uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerInited", h)
	if !ok {
		return 0
	}
	return boolU8(t.inited())
}

func (e *Engine) taskerGetResource(h uintptr) uintptr {
	t, ok := get[*tasker](e, "MaaTaskerGetResource", h)
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res
}

func (e *Engine) taskerGetController(h uintptr) uintptr {
	t, ok := get[*tasker](e, "MaaTaskerGetController", h)
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctrl
}

// ============================================================================
// Posting
// ============================================================================

// postRun queues body as a task. body runs with a fresh run whose root
// context is live until body returns.
func (t *tasker) postRun(entry string, body func(r *run, ctx *ctxObject) bool) int64 {
	if !t.inited() {
		return native.InvalidID
	}
	rec := &taskRecord{entry: entry, gen: t.stopGen.Load()}
	rec.status.Store(native.StatusPending)
	id := t.q.post(func(j *job) bool {
		t.mu.Lock()
		t.tasks[j.id] = rec
		t.mu.Unlock()
		rec.status.Store(native.StatusRunning)
		ok := t.execute(j.id, rec, body)
		if ok {
			rec.status.Store(native.StatusSucceeded)
		} else {
			rec.status.Store(native.StatusFailed)
		}
		return ok
	})
	if id != native.InvalidID {
		t.mu.Lock()
		t.tasks[id] = rec
		t.mu.Unlock()
	}
	return id
}

func (t *tasker) execute(id int64, rec *taskRecord, body func(r *run, ctx *ctxObject) bool) bool {
	res, ctrl, ok := t.bound()
	if !ok {
		return false
	}
	r := &run{t: t, id: id, rec: rec, res: res, ctrl: ctrl, anchors: map[string]string{}, hits: map[string]uint64{}}
	ctx := r.newContext(res.pipeline(), nil)
	defer r.close()

	ctrl.mu.Lock()
	uuid := ctrl.uuid
	ctrl.mu.Unlock()
	detail := map[string]any{"task_id": id, "entry": rec.entry, "uuid": uuid, "hash": res.pipelineHash()}
	t.sinks.emit(t.e, t.h, "Tasker.Task.Starting", detail)
	ok = body(r, ctx)
	if ok {
		t.sinks.emit(t.e, t.h, "Tasker.Task.Succeeded", detail)
	} else {
		t.sinks.emit(t.e, t.h, "Tasker.Task.Failed", detail)
	}
	return ok
}

func (r *resource) pipelineHash() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes.hash()
}

func (e *Engine) taskerPostTask(h uintptr, entry, override string) int64 {
	t, ok := get[*tasker](e, "MaaTaskerPostTask", h)
	if !ok || entry == "" {
		return native.InvalidID
	}
	doc, err := parsePipeline(override)
	if err != nil {
		return native.InvalidID
	}
	return t.postRun(entry, func(r *run, ctx *ctxObject) bool {
		ctx.merge(doc)
		return r.runPipeline(ctx, entry)
	})
}

func (e *Engine) taskerPostRecognition(h uintptr, typ, param string, img uintptr) int64 {
	t, ok := get[*tasker](e, "MaaTaskerPostRecognition", h)
	if !ok {
		return native.InvalidID
	}
	n, ok := directNode("recognition", typ, param)
	if !ok {
		return native.InvalidID
	}
	screen := e.readImage("MaaTaskerPostRecognition", img)
	return t.postRun(typ, func(r *run, ctx *ctxObject) bool {
		if screen == nil {
			screen = r.screen()
		}
		if screen == nil {
			return false
		}
		_, hit, _ := r.recognize(ctx, typ, n, screen, native.Rect{})
		return hit
	})
}

func (e *Engine) taskerPostAction(h uintptr, typ, param string, box *native.Rect, recoDetail string) int64 {
	t, ok := get[*tasker](e, "MaaTaskerPostAction", h)
	if !ok {
		return native.InvalidID
	}
	n, ok := directNode("action", typ, param)
	if !ok {
		return native.InvalidID
	}
	var b native.Rect
	if box != nil {
		b = *box
	}
	return t.postRun(typ, func(r *run, ctx *ctxObject) bool {
		_, ok, _ := r.act(ctx, typ, n, native.InvalidID, b)
		return ok
	})
}

// directNode builds a one-off node running algorithm typ with the JSON
// parameters param.
func directNode(field, typ, param string) (node, bool) {
	if typ == "" {
		return nil, false
	}
	p := map[string]any{}
	if param != "" {
		doc, err := parsePipeline(`{"p":` + param + `}`)
		if err != nil {
			return nil, false
		}
		p = doc["p"]
	}
	return node{field: map[string]any{"type": typ, "param": p}}, true
}

func (e *Engine) taskerPostStop(h uintptr) int64 {
	t, ok := get[*tasker](e, "MaaTaskerPostStop", h)
	if !ok {
		return native.InvalidID
	}
	t.stopGen.Add(1)
	t.stopping.Store(true)
	return t.q.post(func(*job) bool {
		t.stopping.Store(false)
		return true
	})
}

func (e *Engine) taskerStopping(h uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerStopping", h)
	if !ok {
		return 0
	}
	return boolU8(t.stopping.Load())
}

func (e *Engine) taskerRunning(h uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerRunning", h)
	if !ok {
		return 0
	}
	return boolU8(t.q.busy())
}

func (e *Engine) taskerStatus(h uintptr, id int64) int32 {
	t, ok := get[*tasker](e, "MaaTaskerStatus", h)
	if !ok {
		return native.StatusInvalid
	}
	return t.q.status(id)
}

func (e *Engine) taskerWait(h uintptr, id int64) int32 {
	t, ok := get[*tasker](e, "MaaTaskerWait", h)
	if !ok {
		return native.StatusInvalid
	}
	return t.q.wait(id)
}

func (e *Engine) taskerClearCache(h uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerClearCache", h)
	if !ok || t.q.busy() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
	return 1
}

func (e *Engine) taskerOverridePipeline(h uintptr, id int64, text string) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerOverridePipeline", h)
	if !ok {
		return 0
	}
	doc, err := parsePipeline(text)
	if err != nil {
		return 0
	}
	t.mu.Lock()
	rec, ok := t.tasks[id]
	t.mu.Unlock()
	if !ok || rec.status.Load() != native.StatusRunning {
		return 0
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.override == nil {
		rec.override = pipeline{}
	}
	rec.override.merge(doc)
	return 1
}

// ============================================================================
// Details
// ============================================================================

func (e *Engine) taskerGetRecognitionDetail(h uintptr, id int64, name, algo uintptr, hit *uint8, box *native.Rect, detail, raw, draws uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerGetRecognitionDetail", h)
	if !ok {
		return 0
	}
	t.mu.Lock()
	rec, ok := t.recos[id]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	const fn = "MaaTaskerGetRecognitionDetail"
	if !e.writeString(fn, name, rec.node) || !e.writeString(fn, algo, rec.algo) || !e.writeString(fn, detail, rec.detail) {
		return 0
	}
	if hit != nil {
		*hit = boolU8(rec.hit)
	}
	if box != nil {
		*box = rec.box
	}
	if e.debugMode() && rec.raw != nil {
		if !e.writeImage(fn, raw, rec.raw) {
			return 0
		}
	}
	if draws != 0 {
		if _, ok := get[*imageList](e, fn, draws); !ok {
			return 0
		}
	}
	return 1
}

func (e *Engine) taskerGetActionDetail(h uintptr, id int64, name, action uintptr, box *native.Rect, success *uint8, detail uintptr) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerGetActionDetail", h)
	if !ok {
		return 0
	}
	t.mu.Lock()
	rec, ok := t.actions[id]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	const fn = "MaaTaskerGetActionDetail"
	if !e.writeString(fn, name, rec.node) || !e.writeString(fn, action, rec.action) || !e.writeString(fn, detail, rec.detail) {
		return 0
	}
	if box != nil {
		*box = rec.box
	}
	if success != nil {
		*success = boolU8(rec.success)
	}
	return 1
}

func (e *Engine) taskerGetNodeDetail(h uintptr, id int64, name uintptr, reco, action *int64, completed *uint8) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerGetNodeDetail", h)
	if !ok {
		return 0
	}
	t.mu.Lock()
	rec, ok := t.nodes[id]
	var n nodeRecord
	if ok {
		n = *rec
	}
	t.mu.Unlock()
	if !ok || !e.writeString("MaaTaskerGetNodeDetail", name, n.name) {
		return 0
	}
	if reco != nil {
		*reco = n.reco
	}
	if action != nil {
		*action = n.action
	}
	if completed != nil {
		*completed = boolU8(n.completed)
	}
	return 1
}

// taskerGetTaskDetail reports the node count when ids is nil, and
// otherwise copies at most *size ids and stores how many it copied.
func (e *Engine) taskerGetTaskDetail(h uintptr, id int64, entry uintptr, ids *int64, size *uint64, status *int32) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerGetTaskDetail", h)
	if !ok || size == nil {
		return 0
	}
	t.mu.Lock()
	rec, ok := t.tasks[id]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	rec.mu.Lock()
	nodes := append([]int64(nil), rec.nodes...)
	rec.mu.Unlock()

	if ids == nil {
		*size = uint64(len(nodes))
	} else {
		n := min(*size, uint64(len(nodes)))
		copy(unsafe.Slice(ids, n), nodes)
		*size = n
	}
	if status != nil {
		code, forced := e.forcedStatus(id)
		if !forced {
			code = rec.status.Load()
		}
		*status = code
	}
	return boolU8(e.writeString("MaaTaskerGetTaskDetail", entry, rec.entry))
}

func (e *Engine) taskerGetLatestNode(h uintptr, name string, id *int64) uint8 {
	t, ok := get[*tasker](e, "MaaTaskerGetLatestNode", h)
	if !ok || id == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	nid, ok := t.latest[name]
	if !ok {
		return 0
	}
	*id = nid
	return 1
}
