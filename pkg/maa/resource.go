package maa

import (
	"encoding/json"
	"fmt"
	"unsafe"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// InferenceDevice selects where OCR and neural network models run.
// Non-negative values are GPU ids.
type InferenceDevice int32

const (
	InferenceDeviceCPU  = InferenceDevice(native.InferenceDeviceCPU)
	InferenceDeviceAuto = InferenceDevice(native.InferenceDeviceAuto)
)

// InferenceExecutionProvider selects the ONNX Runtime execution provider.
type InferenceExecutionProvider int32

const (
	InferenceEPAuto     = InferenceExecutionProvider(native.InferenceEPAuto)
	InferenceEPCPU      = InferenceExecutionProvider(native.InferenceEPCPU)
	InferenceEPDirectML = InferenceExecutionProvider(native.InferenceEPDirectML)
	InferenceEPCoreML   = InferenceExecutionProvider(native.InferenceEPCoreML)
	InferenceEPCUDA     = InferenceExecutionProvider(native.InferenceEPCUDA)
)

// Resource holds pipelines, templates, models and custom callbacks.
type Resource struct {
	h   handle
	lib *native.Lib
}

var resourceSinks = sinkOps{
	prefix: "sink",
	add: func(l *native.Lib, raw, cb, token uintptr) int64 {
		return l.MaaResourceAddSink(raw, cb, token)
	},
	remove: func(l *native.Lib, raw uintptr, id int64) {
		l.MaaResourceRemoveSink(raw, id)
	},
}

// NewResource creates an empty resource.
func NewResource() (*Resource, error) {
	l, err := lib()
	if err != nil {
		return nil, err
	}
	raw := l.MaaResourceCreate()
	if raw == 0 {
		return nil, fmt.Errorf("%w: resource", ErrConstruction)
	}
	r := &Resource{lib: l}
	r.h.init("resource", raw)
	return r, nil
}

// Close destroys the resource and releases its custom callbacks. It
// returns ErrInUse while a Tasker is bound to it. Closing twice is a no-op.
func (r *Resource) Close() error {
	raw, err := r.h.take()
	if err != nil || raw == 0 {
		return err
	}
	r.lib.MaaResourceClearSinks(raw)
	r.lib.MaaResourceClearCustomAction(raw)
	r.lib.MaaResourceClearCustomRecognition(raw)
	r.lib.MaaResourceDestroy(raw)
	registry.drop(&r.h, 0)
	return nil
}

// LastFault returns the last fault raised by a callback owned by r.
func (r *Resource) LastFault() *CallbackFault {
	return r.h.lastFault()
}

func (r *Resource) jobStatus(id int64) (int32, error) {
	raw, err := r.h.ptr()
	if err != nil {
		return 0, err
	}
	return r.lib.MaaResourceStatus(raw, id), nil
}

func (r *Resource) jobWait(id int64) (int32, error) {
	raw, err := r.h.ptr()
	if err != nil {
		return 0, err
	}
	return r.lib.MaaResourceWait(raw, id), nil
}

func (r *Resource) postPath(op, path string, fn func(raw uintptr, path string) int64) (*Job, error) {
	if err := encodeString(op+" path", path); err != nil {
		return nil, err
	}
	raw, err := r.h.ptr()
	if err != nil {
		return nil, err
	}
	id := fn(raw, path)
	if id == native.InvalidID {
		return nil, fmt.Errorf("%w: resource %s %q", ErrRejected, op, path)
	}
	return newJob(r, id), nil
}

// PostBundle loads a resource bundle directory (pipeline, image, model).
func (r *Resource) PostBundle(path string) (*Job, error) {
	return r.postPath("bundle", path, r.lib.MaaResourcePostBundle)
}

// PostPipeline loads a pipeline directory or file.
func (r *Resource) PostPipeline(path string) (*Job, error) {
	return r.postPath("pipeline", path, r.lib.MaaResourcePostPipeline)
}

// PostImage loads a template image directory or file.
func (r *Resource) PostImage(path string) (*Job, error) {
	return r.postPath("image", path, r.lib.MaaResourcePostImage)
}

// PostOcrModel loads an OCR model directory.
func (r *Resource) PostOcrModel(path string) (*Job, error) {
	return r.postPath("ocr model", path, r.lib.MaaResourcePostOcrModel)
}

// Loaded reports whether every posted load has succeeded.
func (r *Resource) Loaded() (bool, error) {
	raw, err := r.h.ptr()
	if err != nil {
		return false, err
	}
	return r.lib.MaaResourceLoaded(raw) != 0, nil
}

// Clear unloads everything loaded into the resource.
func (r *Resource) Clear() error {
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	if r.lib.MaaResourceClear(raw) == 0 {
		return fmt.Errorf("%w: clear resource", ErrRejected)
	}
	return nil
}

// OverridePipeline merges doc into the loaded pipeline.
func (r *Resource) OverridePipeline(doc any) error {
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	s, err := encodeDocument("pipeline override", doc)
	if err != nil {
		return err
	}
	if r.lib.MaaResourceOverridePipeline(raw, s) == 0 {
		return fmt.Errorf("%w: override pipeline", ErrRejected)
	}
	return nil
}

// OverrideNext replaces the next list of node.
func (r *Resource) OverrideNext(node string, next []string) error {
	if err := encodeString("node name", node); err != nil {
		return err
	}
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	list, err := newStringList(r.lib, next)
	if err != nil {
		return err
	}
	defer list.close()
	if r.lib.MaaResourceOverrideNext(raw, node, list.p) == 0 {
		return fmt.Errorf("%w: override next of %q", ErrRejected, node)
	}
	return nil
}

// OverrideImage replaces the template image called name.
func (r *Resource) OverrideImage(name string, img *Image) error {
	if err := encodeString("image name", name); err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrDecode)
	}
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	buf, err := imageBufferFrom(r.lib, img)
	if err != nil {
		return err
	}
	defer buf.close()
	if r.lib.MaaResourceOverrideImage(raw, name, buf.p) == 0 {
		return fmt.Errorf("%w: override image %q", ErrRejected, name)
	}
	return nil
}

// NodeData returns the definition of node as JSON.
func (r *Resource) NodeData(node string) (json.RawMessage, error) {
	if err := encodeString("node name", node); err != nil {
		return nil, err
	}
	raw, err := r.h.ptr()
	if err != nil {
		return nil, err
	}
	buf, err := newStringBuffer(r.lib)
	if err != nil {
		return nil, err
	}
	defer buf.close()
	if r.lib.MaaResourceGetNodeData(raw, node, buf.p) == 0 {
		return nil, fmt.Errorf("%w: node %q not found", ErrRejected, node)
	}
	s, err := buf.get("node data")
	if err != nil {
		return nil, err
	}
	return decodeDocument("node data", s)
}

// NodeList returns the names of all loaded nodes.
func (r *Resource) NodeList() ([]string, error) {
	return r.list("node list", r.lib.MaaResourceGetNodeList)
}

// CustomRecognitionList returns the names of the registered custom
// recognitions, as the library sees them.
func (r *Resource) CustomRecognitionList() ([]string, error) {
	return r.list("custom recognition list", r.lib.MaaResourceGetCustomRecognitionList)
}

// CustomActionList returns the names of the registered custom actions.
func (r *Resource) CustomActionList() ([]string, error) {
	return r.list("custom action list", r.lib.MaaResourceGetCustomActionList)
}

func (r *Resource) list(what string, fn func(res, list uintptr) uint8) ([]string, error) {
	raw, err := r.h.ptr()
	if err != nil {
		return nil, err
	}
	list, err := newStringList(r.lib, nil)
	if err != nil {
		return nil, err
	}
	defer list.close()
	if fn(raw, list.p) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRejected, what)
	}
	return list.items(what)
}

// Hash returns the hash of the loaded content.
func (r *Resource) Hash() (string, error) {
	raw, err := r.h.ptr()
	if err != nil {
		return "", err
	}
	buf, err := newStringBuffer(r.lib)
	if err != nil {
		return "", err
	}
	defer buf.close()
	if r.lib.MaaResourceGetHash(raw, buf.p) == 0 {
		return "", fmt.Errorf("%w: resource hash", ErrRejected)
	}
	return buf.get("hash")
}

// ============================================================================
// Custom recognitions and actions
// ============================================================================

// register stores fn in the registry, hands its token to native code and
// publishes it once native code accepted it. An existing registration of
// the same name is replaced only then.
func (r *Resource) register(kind CustomKind, name string, fn any, cb uintptr,
	call func(raw uintptr, name string, cb, token uintptr) uint8) error {
	if err := encodeString(kind.String()+" name", name); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty %s name", ErrRejected, kind)
	}
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	reg := registry.add(&r.h, kind, name, fn)
	if call(raw, name, cb, reg.token) == 0 {
		registry.remove(reg.token)
		return fmt.Errorf("%w: register custom %s %q", ErrRejected, kind, name)
	}
	registry.publish(reg, name)
	return nil
}

func (r *Resource) unregister(kind CustomKind, name string, call func(raw uintptr, name string) uint8) error {
	if err := encodeString(kind.String()+" name", name); err != nil {
		return err
	}
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	if call(raw, name) == 0 {
		return fmt.Errorf("%w: unregister custom %s %q", ErrRejected, kind, name)
	}
	if token, ok := registry.find(&r.h, kind, name); ok {
		registry.remove(token)
	}
	return nil
}

// RegisterCustomRecognition makes rec available to pipelines as the
// custom recognition name. Registering a name again replaces it.
func (r *Resource) RegisterCustomRecognition(name string, rec CustomRecognition) error {
	if rec == nil {
		return fmt.Errorf("%w: nil custom recognition", ErrRejected)
	}
	return r.register(KindRecognition, name, rec, trampolines(r.lib).recognition,
		r.lib.MaaResourceRegisterCustomRecognition)
}

func (r *Resource) UnregisterCustomRecognition(name string) error {
	return r.unregister(KindRecognition, name, r.lib.MaaResourceUnregisterCustomRecognition)
}

// ClearCustomRecognitions unregisters every custom recognition.
func (r *Resource) ClearCustomRecognitions() error {
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	if r.lib.MaaResourceClearCustomRecognition(raw) == 0 {
		return fmt.Errorf("%w: clear custom recognitions", ErrRejected)
	}
	registry.drop(&r.h, KindRecognition)
	return nil
}

// RegisterCustomAction makes act available to pipelines as the custom
// action name. Registering a name again replaces it.
func (r *Resource) RegisterCustomAction(name string, act CustomAction) error {
	if act == nil {
		return fmt.Errorf("%w: nil custom action", ErrRejected)
	}
	return r.register(KindAction, name, act, trampolines(r.lib).action,
		r.lib.MaaResourceRegisterCustomAction)
}

func (r *Resource) UnregisterCustomAction(name string) error {
	return r.unregister(KindAction, name, r.lib.MaaResourceUnregisterCustomAction)
}

// ClearCustomActions unregisters every custom action.
func (r *Resource) ClearCustomActions() error {
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	if r.lib.MaaResourceClearCustomAction(raw) == 0 {
		return fmt.Errorf("%w: clear custom actions", ErrRejected)
	}
	registry.drop(&r.h, KindAction)
	return nil
}

// ============================================================================
// Options and sinks
// ============================================================================

// SetInferenceDevice selects the device models run on.
func (r *Resource) SetInferenceDevice(dev InferenceDevice) error {
	v := int32(dev)
	return r.setOption("inference device", native.ResOptionInferenceDevice, unsafe.Pointer(&v), 4)
}

// SetInferenceExecutionProvider selects the execution provider.
func (r *Resource) SetInferenceExecutionProvider(ep InferenceExecutionProvider) error {
	v := int32(ep)
	return r.setOption("inference execution provider", native.ResOptionInferenceExecutionProvider, unsafe.Pointer(&v), 4)
}

func (r *Resource) setOption(name string, key int32, value unsafe.Pointer, size uint64) error {
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	if r.lib.MaaResourceSetOption(raw, key, value, size) == 0 {
		return fmt.Errorf("%w: resource option %s", ErrRejected, name)
	}
	return nil
}

// AddSink registers fn for resource events.
func (r *Resource) AddSink(fn Sink) (SinkID, error) {
	return addSink(r.lib, &r.h, resourceSinks, fn)
}

func (r *Resource) RemoveSink(id SinkID) error {
	return removeSink(r.lib, &r.h, resourceSinks, id)
}

func (r *Resource) ClearSinks() error {
	raw, err := r.h.ptr()
	if err != nil {
		return err
	}
	r.lib.MaaResourceClearSinks(raw)
	registry.drop(&r.h, KindSink)
	return nil
}
