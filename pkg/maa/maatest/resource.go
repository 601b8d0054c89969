package maatest

import (
	"os"
	"sort"
	"sync"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

type customEntry struct {
	fn, arg uintptr
}

type resource struct {
	q     *queue
	sinks sinkSet

	mu      sync.Mutex
	nodes   pipeline
	images  map[string]*pixels
	recos   map[string]customEntry
	actions map[string]customEntry
	loads   int
	failed  int
	options map[int32]int32
}

func (*resource) kind() string { return KindResource }

func (r *resource) pipeline() pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes.clone()
}

func (r *resource) custom(kind, name string) (customEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.recos
	if kind == "action" {
		m = r.actions
	}
	c, ok := m[name]
	return c, ok
}

func (r *resource) loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads > 0 && r.failed == 0
}

func (e *Engine) resourceCreate() uintptr {
	return e.put(&resource{
		q:       newQueue(e),
		nodes:   pipeline{},
		images:  make(map[string]*pixels),
		recos:   make(map[string]customEntry),
		actions: make(map[string]customEntry),
		options: make(map[int32]int32),
	})
}

func (e *Engine) resourceDestroy(h uintptr) {
	if r, ok := e.free("MaaResourceDestroy", h, KindResource).(*resource); ok {
		r.q.close()
	}
}

func (e *Engine) resourceAddSink(h, cb, arg uintptr) int64 {
	r, ok := get[*resource](e, "MaaResourceAddSink", h)
	if !ok {
		return native.InvalidID
	}
	return r.sinks.add(e, cb, arg)
}

func (e *Engine) resourceRemoveSink(h uintptr, id int64) {
	if r, ok := get[*resource](e, "MaaResourceRemoveSink", h); ok {
		r.sinks.remove(id)
	}
}

func (e *Engine) resourceClearSinks(h uintptr) {
	if r, ok := get[*resource](e, "MaaResourceClearSinks", h); ok {
		r.sinks.clear()
	}
}

func (e *Engine) resourceRegister(fn string, kind string, h uintptr, name string, cb, arg uintptr) uint8 {
	r, ok := get[*resource](e, fn, h)
	if !ok || name == "" || cb == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == "action" {
		r.actions[name] = customEntry{cb, arg}
	} else {
		r.recos[name] = customEntry{cb, arg}
	}
	return 1
}

func (e *Engine) resourceUnregister(fn string, kind string, h uintptr, name string) uint8 {
	r, ok := get[*resource](e, fn, h)
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.recos
	if kind == "action" {
		m = r.actions
	}
	if _, ok := m[name]; !ok {
		return 0
	}
	delete(m, name)
	return 1
}

func (e *Engine) resourceClearCustom(fn string, kind string, h uintptr) uint8 {
	r, ok := get[*resource](e, fn, h)
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == "action" {
		r.actions = make(map[string]customEntry)
	} else {
		r.recos = make(map[string]customEntry)
	}
	return 1
}

func (e *Engine) resourceCustomList(fn string, kind string, h, list uintptr) uint8 {
	r, ok := get[*resource](e, fn, h)
	if !ok {
		return 0
	}
	r.mu.Lock()
	m := r.recos
	if kind == "action" {
		m = r.actions
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return boolU8(e.writeStrings(fn, list, names))
}

// resourcePost queues a load of path. load returns the nodes to merge.
func (e *Engine) resourcePost(fn string, h uintptr, path string, load func(path string) (pipeline, error)) int64 {
	r, ok := get[*resource](e, fn, h)
	if !ok {
		return native.InvalidID
	}
	return r.q.post(func(j *job) bool {
		detail := map[string]any{"res_id": j.id, "path": path, "hash": ""}
		r.sinks.emit(e, h, "Resource.Loading.Starting", detail)
		nodes, err := load(path)

		r.mu.Lock()
		r.loads++
		if err != nil {
			r.failed++
		} else {
			r.nodes.merge(nodes)
		}
		detail["hash"] = r.nodes.hash()
		r.mu.Unlock()

		if err != nil {
			r.sinks.emit(e, h, "Resource.Loading.Failed", detail)
			return false
		}
		r.sinks.emit(e, h, "Resource.Loading.Succeeded", detail)
		return true
	})
}

func statOnly(path string) (pipeline, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return pipeline{}, nil
}

func (e *Engine) resourcePostBundle(h uintptr, path string) int64 {
	return e.resourcePost("MaaResourcePostBundle", h, path, loadBundle)
}

func (e *Engine) resourcePostPipeline(h uintptr, path string) int64 {
	return e.resourcePost("MaaResourcePostPipeline", h, path, loadPipelinePath)
}

func (e *Engine) resourcePostImage(h uintptr, path string) int64 {
	return e.resourcePost("MaaResourcePostImage", h, path, statOnly)
}

func (e *Engine) resourcePostOcrModel(h uintptr, path string) int64 {
	return e.resourcePost("MaaResourcePostOcrModel", h, path, statOnly)
}

func (e *Engine) resourceOverridePipeline(h uintptr, text string) uint8 {
	r, ok := get[*resource](e, "MaaResourceOverridePipeline", h)
	if !ok {
		return 0
	}
	doc, err := parsePipeline(text)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes.merge(doc)
	return 1
}

func (e *Engine) resourceOverrideNext(h uintptr, name string, list uintptr) uint8 {
	r, ok := get[*resource](e, "MaaResourceOverrideNext", h)
	if !ok {
		return 0
	}
	next, ok := e.strings("MaaResourceOverrideNext", list)
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return boolU8(setNext(r.nodes, name, next))
}

func setNext(p pipeline, name string, next []string) bool {
	n, ok := p[name]
	if !ok {
		return false
	}
	list := make([]any, len(next))
	for i, s := range next {
		list[i] = s
	}
	n["next"] = list
	return true
}

func (e *Engine) resourceOverrideImage(h uintptr, name string, img uintptr) uint8 {
	r, ok := get[*resource](e, "MaaResourceOverrideImage", h)
	if !ok {
		return 0
	}
	p := e.readImage("MaaResourceOverrideImage", img)
	if p == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[name] = p
	return 1
}

func (e *Engine) resourceGetNodeData(h uintptr, name string, buf uintptr) uint8 {
	r, ok := get[*resource](e, "MaaResourceGetNodeData", h)
	if !ok {
		return 0
	}
	r.mu.Lock()
	n, ok := r.nodes[name]
	text := ""
	if ok {
		text = jsonParam(n)
	}
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return boolU8(e.writeString("MaaResourceGetNodeData", buf, text))
}

func (e *Engine) resourceClear(h uintptr) uint8 {
	r, ok := get[*resource](e, "MaaResourceClear", h)
	if !ok || r.q.busy() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = pipeline{}
	r.images = make(map[string]*pixels)
	r.loads, r.failed = 0, 0
	return 1
}

func (e *Engine) resourceStatus(h uintptr, id int64) int32 {
	r, ok := get[*resource](e, "MaaResourceStatus", h)
	if !ok {
		return native.StatusInvalid
	}
	return r.q.status(id)
}

func (e *Engine) resourceWait(h uintptr, id int64) int32 {
	r, ok := get[*resource](e, "MaaResourceWait", h)
	if !ok {
		return native.StatusInvalid
	}
	return r.q.wait(id)
}

func (e *Engine) resourceLoaded(h uintptr) uint8 {
	r, ok := get[*resource](e, "MaaResourceLoaded", h)
	if !ok {
		return 0
	}
	return boolU8(r.loaded())
}

func (e *Engine) resourceSetOption(h uintptr, key int32, value unsafe.Pointer, size uint64) uint8 {
	r, ok := get[*resource](e, "MaaResourceSetOption", h)
	if !ok || value == nil || size != 4 {
		return 0
	}
	switch key {
	case native.ResOptionInferenceDevice, native.ResOptionInferenceExecutionProvider:
	default:
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[key] = *(*int32)(value)
	return 1
}

func (e *Engine) resourceGetHash(h, buf uintptr) uint8 {
	r, ok := get[*resource](e, "MaaResourceGetHash", h)
	if !ok {
		return 0
	}
	r.mu.Lock()
	sum := r.nodes.hash()
	r.mu.Unlock()
	return boolU8(e.writeString("MaaResourceGetHash", buf, sum))
}

func (e *Engine) resourceGetNodeList(h, list uintptr) uint8 {
	r, ok := get[*resource](e, "MaaResourceGetNodeList", h)
	if !ok {
		return 0
	}
	r.mu.Lock()
	names := r.nodes.names()
	r.mu.Unlock()
	return boolU8(e.writeStrings("MaaResourceGetNodeList", list, names))
}

// ResourceOption returns the value of option key set on resource h.
func (e *Engine) ResourceOption(h uintptr, key int32) (int32, bool) {
	r, ok := e.lookup(h).(*resource)
	if !ok {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.options[key]
	return v, ok
}
