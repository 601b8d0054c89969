package maatest

import (
	"sync"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// run is one execution of a task or sub-task.
type run struct {
	t    *tasker
	id   int64
	rec  *taskRecord
	res  *resource
	ctrl *controller

	mu      sync.Mutex
	anchors map[string]string
	hits    map[string]uint64
	handles []uintptr
}

// ctxObject is a MaaContext. Every context of a run shares the run's
// anchors and hit counts but owns its pipeline overrides.
type ctxObject struct {
	r *run
	h uintptr

	mu     sync.Mutex
	p      pipeline
	images map[string]*pixels
}

func (*ctxObject) kind() string { return KindContext }

func (r *run) newContext(p pipeline, images map[string]*pixels) *ctxObject {
	c := &ctxObject{r: r, p: p, images: make(map[string]*pixels, len(images))}
	for k, v := range images {
		c.images[k] = v
	}
	c.h = r.t.e.put(c)
	r.mu.Lock()
	r.handles = append(r.handles, c.h)
	r.mu.Unlock()
	return c
}

// close destroys every context created during the run.
func (r *run) close() {
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()
	for _, h := range handles {
		r.t.e.free("context end", h, KindContext)
	}
}

func (r *run) stopped() bool {
	return r.t.stopGen.Load() != r.rec.gen
}

func (c *ctxObject) merge(doc pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p.merge(doc)
}

func (c *ctxObject) node(name string) (node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.p[name]
	if !ok {
		return nil, false
	}
	out := make(node, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out, true
}

func (c *ctxObject) snapshot() (pipeline, map[string]*pixels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.p.clone(), c.images
}

func (r *run) emit(ctx *ctxObject, message string, detail map[string]any) {
	detail["task_id"] = r.id
	r.t.ctxSinks.emit(r.t.e, ctx.h, message, detail)
}

// screen takes a screenshot through the bound controller.
func (r *run) screen() *pixels {
	if !r.ctrl.run(r.t.e.newID(), "screencap", nil, r.ctrl.screencap) {
		return nil
	}
	r.ctrl.mu.Lock()
	defer r.ctrl.mu.Unlock()
	return r.ctrl.cached.clone()
}

// runPipeline walks the pipeline from entry. Each step recognizes the
// candidates in order, acts on the first hit and continues with its next
// list.
func (r *run) runPipeline(ctx *ctxObject, entry string) bool {
	candidates := []string{entry}
	for range maxSteps {
		if r.stopped() {
			return false
		}
		if doc := r.rec.takeOverride(); doc != nil {
			ctx.merge(doc)
		}
		img := r.screen()
		if img == nil {
			return false
		}

		var (
			name   string
			n      node
			recoID int64
			box    native.Rect
			hit    bool
		)
		for _, cand := range candidates {
			cn, ok := ctx.node(cand)
			if !ok || !cn.enabled() {
				continue
			}
			recoID, hit, box = r.recognize(ctx, cand, cn, img, native.Rect{})
			if hit {
				name, n = cand, cn
				break
			}
		}
		if !hit {
			return false
		}

		nodeID := r.t.e.newID()
		r.t.mu.Lock()
		r.t.nodes[nodeID] = &nodeRecord{name: name, reco: recoID}
		r.t.latest[name] = nodeID
		r.t.mu.Unlock()
		r.rec.addNode(nodeID)
		r.mu.Lock()
		r.hits[name]++
		if anchor, ok := n["anchor"].(string); ok && anchor != "" {
			r.anchors[anchor] = name
		}
		r.mu.Unlock()

		detail := map[string]any{"node_id": nodeID, "name": name, "focus": n["focus"]}
		r.emit(ctx, "Node.PipelineNode.Starting", detail)
		actionID, ok, stop := r.act(ctx, name, n, recoID, box)
		r.t.mu.Lock()
		r.t.nodes[nodeID].action = actionID
		r.t.nodes[nodeID].completed = ok
		r.t.mu.Unlock()
		if !ok {
			r.emit(ctx, "Node.PipelineNode.Failed", detail)
			return false
		}
		r.emit(ctx, "Node.PipelineNode.Succeeded", detail)

		// The action may have overridden the node.
		if cur, ok := ctx.node(name); ok {
			n = cur
		}
		candidates = r.resolve(n.next())
		if stop || len(candidates) == 0 {
			return true
		}
	}
	return false
}

// resolve replaces anchor references ("[Anchor]name") by the node the
// anchor points at.
func (r *run) resolve(next []string) []string {
	const prefix = "[Anchor]"
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(next))
	for _, name := range next {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			target, ok := r.anchors[name[len(prefix):]]
			if !ok {
				continue
			}
			name = target
		}
		out = append(out, name)
	}
	return out
}

func (r *run) recognize(ctx *ctxObject, name string, n node, img *pixels, roi native.Rect) (int64, bool, native.Rect) {
	e := r.t.e
	typ, param := n.stage("recognition", "DirectHit")
	id := e.newID()
	rec := &recoRecord{node: name, algo: typ}
	if e.debugMode() {
		rec.raw = img.clone()
	}
	if b, ok := rectParam(param["roi"]); ok {
		roi = b
	}

	detail := map[string]any{"reco_id": id, "name": name, "focus": n["focus"]}
	r.emit(ctx, "Node.Recognition.Starting", detail)
	switch typ {
	case "DirectHit":
		rec.hit = true
		rec.box = roi
		if roi == (native.Rect{}) {
			rec.box = native.Rect{W: img.width, H: img.height}
		}
	case "Custom":
		cname, _ := param["custom_recognition"].(string)
		if entry, ok := r.res.custom("recognition", cname); ok {
			rec.hit, rec.box, rec.detail = r.customRecognition(ctx, entry, name, cname, param["custom_recognition_param"], img, roi)
		}
	}

	r.t.mu.Lock()
	r.t.recos[id] = rec
	r.t.mu.Unlock()
	if rec.hit {
		r.emit(ctx, "Node.Recognition.Succeeded", detail)
	} else {
		r.emit(ctx, "Node.Recognition.Failed", detail)
	}
	return id, rec.hit, rec.box
}

func (r *run) customRecognition(ctx *ctxObject, entry customEntry, node, name string, param any, img *pixels, roi native.Rect) (bool, native.Rect, string) {
	e := r.t.e
	fn, ok := callback[native.RecognitionCallback](e, entry.fn)
	if !ok {
		return false, native.Rect{}, ""
	}
	a := new(arena)
	defer a.release()
	imgBuf, dropImg := e.scratch(&imageBuffer{img: img.clone()})
	defer dropImg()
	out := &stringBuffer{}
	outBuf, dropOut := e.scratch(out)
	defer dropOut()
	roiP, _ := a.rect(roi)
	boxP, box := a.rect(native.Rect{})

	ret := fn(ctx.h, r.id, a.cstr(node), a.cstr(name), a.cstr(jsonParam(param)), imgBuf, roiP, entry.arg, boxP, outBuf)
	if ret == 0 {
		return false, native.Rect{}, ""
	}
	return true, *box, out.String()
}

// act runs the action of n. stop reports a StopTask action.
func (r *run) act(ctx *ctxObject, name string, n node, recoID int64, box native.Rect) (id int64, ok, stop bool) {
	e := r.t.e
	typ, param := n.stage("action", "DoNothing")
	id = e.newID()
	rec := &actionRecord{node: name, action: typ, box: box}

	detail := map[string]any{"action_id": id, "name": name, "focus": n["focus"]}
	r.emit(ctx, "Node.Action.Starting", detail)
	switch typ {
	case "Click":
		target := box
		if b, ok := rectParam(param["target"]); ok {
			target = b
		}
		x, y := target.X+target.W/2, target.Y+target.H/2
		ok = r.ctrl.run(e.newID(), "click", map[string]any{"x": x, "y": y}, func() bool { return r.ctrl.click(x, y) })
	case "StopTask":
		ok, stop = true, true
	case "Custom":
		cname, _ := param["custom_action"].(string)
		if entry, found := r.res.custom("action", cname); found {
			ok = r.customAction(ctx, entry, name, cname, param["custom_action_param"], recoID, box)
		}
	default:
		ok = true
	}
	rec.success = ok

	r.t.mu.Lock()
	r.t.actions[id] = rec
	r.t.mu.Unlock()
	if ok {
		r.emit(ctx, "Node.Action.Succeeded", detail)
	} else {
		r.emit(ctx, "Node.Action.Failed", detail)
	}
	return id, ok, stop
}

func (r *run) customAction(ctx *ctxObject, entry customEntry, node, name string, param any, recoID int64, box native.Rect) bool {
	fn, ok := callback[native.ActionCallback](r.t.e, entry.fn)
	if !ok {
		return false
	}
	a := new(arena)
	defer a.release()
	boxP, _ := a.rect(box)
	return fn(ctx.h, r.id, a.cstr(node), a.cstr(name), a.cstr(jsonParam(param)), recoID, boxP, entry.arg) != 0
}

// ============================================================================
// MaaContext
// ============================================================================

func (e *Engine) contextRunTask(h uintptr, entry, override string) int64 {
	c, ok := get[*ctxObject](e, "MaaContextRunTask", h)
	if !ok {
		return native.InvalidID
	}
	doc, err := parsePipeline(override)
	if err != nil {
		return native.InvalidID
	}
	parent := c.r
	p, images := c.snapshot()
	p.merge(doc)
	if _, ok := p[entry]; !ok {
		return native.InvalidID
	}

	id := e.newID()
	rec := &taskRecord{entry: entry, gen: parent.rec.gen}
	rec.status.Store(native.StatusRunning)
	parent.t.mu.Lock()
	parent.t.tasks[id] = rec
	parent.t.mu.Unlock()

	sub := &run{t: parent.t, id: id, rec: rec, res: parent.res, ctrl: parent.ctrl, anchors: map[string]string{}, hits: map[string]uint64{}}
	defer sub.close()
	if sub.runPipeline(sub.newContext(p, images), entry) {
		rec.status.Store(native.StatusSucceeded)
	} else {
		rec.status.Store(native.StatusFailed)
	}
	return id
}

// subContext returns a context of c's run with override applied, for
// one-off recognitions and actions.
func (c *ctxObject) subContext(override string) (*ctxObject, bool) {
	doc, err := parsePipeline(override)
	if err != nil {
		return nil, false
	}
	p, images := c.snapshot()
	p.merge(doc)
	return c.r.newContext(p, images), true
}

func (e *Engine) contextRunRecognition(h uintptr, entry, override string, img uintptr) int64 {
	c, ok := get[*ctxObject](e, "MaaContextRunRecognition", h)
	if !ok {
		return native.InvalidID
	}
	sub, ok := c.subContext(override)
	if !ok {
		return native.InvalidID
	}
	n, ok := sub.node(entry)
	if !ok {
		return native.InvalidID
	}
	screen := e.readImage("MaaContextRunRecognition", img)
	if screen == nil {
		if screen = c.r.screen(); screen == nil {
			return native.InvalidID
		}
	}
	id, _, _ := c.r.recognize(sub, entry, n, screen, native.Rect{})
	return id
}

func (e *Engine) contextRunAction(h uintptr, entry, override string, box *native.Rect, recoDetail string) int64 {
	c, ok := get[*ctxObject](e, "MaaContextRunAction", h)
	if !ok {
		return native.InvalidID
	}
	sub, ok := c.subContext(override)
	if !ok {
		return native.InvalidID
	}
	n, ok := sub.node(entry)
	if !ok {
		return native.InvalidID
	}
	var b native.Rect
	if box != nil {
		b = *box
	}
	id, _, _ := c.r.act(sub, entry, n, native.InvalidID, b)
	return id
}

func (e *Engine) contextOverridePipeline(h uintptr, text string) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextOverridePipeline", h)
	if !ok {
		return 0
	}
	doc, err := parsePipeline(text)
	if err != nil {
		return 0
	}
	c.merge(doc)
	return 1
}

func (e *Engine) contextOverrideNext(h uintptr, name string, list uintptr) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextOverrideNext", h)
	if !ok {
		return 0
	}
	next, ok := e.strings("MaaContextOverrideNext", list)
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return boolU8(setNext(c.p, name, next))
}

func (e *Engine) contextOverrideImage(h uintptr, name string, img uintptr) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextOverrideImage", h)
	if !ok {
		return 0
	}
	p := e.readImage("MaaContextOverrideImage", img)
	if p == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[name] = p
	return 1
}

func (e *Engine) contextGetNodeData(h uintptr, name string, buf uintptr) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextGetNodeData", h)
	if !ok {
		return 0
	}
	n, ok := c.node(name)
	if !ok {
		return 0
	}
	return boolU8(e.writeString("MaaContextGetNodeData", buf, jsonParam(n)))
}

func (e *Engine) contextGetTaskID(h uintptr) int64 {
	c, ok := get[*ctxObject](e, "MaaContextGetTaskId", h)
	if !ok {
		return native.InvalidID
	}
	return c.r.id
}

func (e *Engine) contextGetTasker(h uintptr) uintptr {
	c, ok := get[*ctxObject](e, "MaaContextGetTasker", h)
	if !ok {
		return 0
	}
	return c.r.t.h
}

func (e *Engine) contextClone(h uintptr) uintptr {
	c, ok := get[*ctxObject](e, "MaaContextClone", h)
	if !ok {
		return 0
	}
	p, images := c.snapshot()
	return c.r.newContext(p, images).h
}

func (e *Engine) contextSetAnchor(h uintptr, anchor, name string) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextSetAnchor", h)
	if !ok || anchor == "" {
		return 0
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.anchors[anchor] = name
	return 1
}

func (e *Engine) contextGetAnchor(h uintptr, anchor string, buf uintptr) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextGetAnchor", h)
	if !ok {
		return 0
	}
	c.r.mu.Lock()
	name, ok := c.r.anchors[anchor]
	c.r.mu.Unlock()
	if !ok {
		return 0
	}
	return boolU8(e.writeString("MaaContextGetAnchor", buf, name))
}

func (e *Engine) contextGetHitCount(h uintptr, name string, count *uint64) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextGetHitCount", h)
	if !ok || count == nil {
		return 0
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	*count = c.r.hits[name]
	return 1
}

func (e *Engine) contextClearHitCount(h uintptr, name string) uint8 {
	c, ok := get[*ctxObject](e, "MaaContextClearHitCount", h)
	if !ok {
		return 0
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	delete(c.r.hits, name)
	return 1
}
