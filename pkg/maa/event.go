package maa

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// Notification messages sent to sinks.
const (
	MsgResourceLoadingStarting  = "Resource.Loading.Starting"
	MsgResourceLoadingSucceeded = "Resource.Loading.Succeeded"
	MsgResourceLoadingFailed    = "Resource.Loading.Failed"

	MsgControllerActionStarting  = "Controller.Action.Starting"
	MsgControllerActionSucceeded = "Controller.Action.Succeeded"
	MsgControllerActionFailed    = "Controller.Action.Failed"

	MsgTaskerTaskStarting  = "Tasker.Task.Starting"
	MsgTaskerTaskSucceeded = "Tasker.Task.Succeeded"
	MsgTaskerTaskFailed    = "Tasker.Task.Failed"

	MsgNodePipelineNodeStarting  = "Node.PipelineNode.Starting"
	MsgNodePipelineNodeSucceeded = "Node.PipelineNode.Succeeded"
	MsgNodePipelineNodeFailed    = "Node.PipelineNode.Failed"

	MsgNodeRecognitionStarting  = "Node.Recognition.Starting"
	MsgNodeRecognitionSucceeded = "Node.Recognition.Succeeded"
	MsgNodeRecognitionFailed    = "Node.Recognition.Failed"

	MsgNodeActionStarting  = "Node.Action.Starting"
	MsgNodeActionSucceeded = "Node.Action.Succeeded"
	MsgNodeActionFailed    = "Node.Action.Failed"

	MsgNodeNextListStarting  = "Node.NextList.Starting"
	MsgNodeNextListSucceeded = "Node.NextList.Succeeded"
	MsgNodeNextListFailed    = "Node.NextList.Failed"

	MsgNodeRecognitionNodeStarting  = "Node.RecognitionNode.Starting"
	MsgNodeRecognitionNodeSucceeded = "Node.RecognitionNode.Succeeded"
	MsgNodeRecognitionNodeFailed    = "Node.RecognitionNode.Failed"

	MsgNodeActionNodeStarting  = "Node.ActionNode.Starting"
	MsgNodeActionNodeSucceeded = "Node.ActionNode.Succeeded"
	MsgNodeActionNodeFailed    = "Node.ActionNode.Failed"
)

// Phase is the last segment of a notification message.
type Phase string

const (
	PhaseStarting  Phase = "Starting"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
	PhaseUnknown   Phase = "Unknown"
)

// Event is one notification delivered to a Sink.
type Event struct {
	// Handle is the native handle that emitted the event. For context
	// sinks it is the MaaContext.
	Handle  uintptr
	Message string
	Details json.RawMessage
}

// Category returns the message without its phase, e.g. "Tasker.Task".
func (e Event) Category() string {
	if i := strings.LastIndexByte(e.Message, '.'); i >= 0 {
		return e.Message[:i]
	}
	return e.Message
}

// Phase returns the phase of the message.
func (e Event) Phase() Phase {
	switch {
	case strings.HasSuffix(e.Message, ".Starting"):
		return PhaseStarting
	case strings.HasSuffix(e.Message, ".Succeeded"):
		return PhaseSucceeded
	case strings.HasSuffix(e.Message, ".Failed"):
		return PhaseFailed
	}
	return PhaseUnknown
}

// Decode unmarshals the details into v, typically one of the *Detail
// types below.
func (e Event) Decode(v any) error {
	if len(e.Details) == 0 {
		return fmt.Errorf("%w: event %s has no details", ErrDecode, e.Message)
	}
	if err := json.Unmarshal(e.Details, v); err != nil {
		return fmt.Errorf("%w: event %s: %w", ErrDecode, e.Message, err)
	}
	return nil
}

// ResourceLoadingDetail is sent with Resource.Loading.*.
type ResourceLoadingDetail struct {
	ResID int64  `json:"res_id"`
	Hash  string `json:"hash"`
	Path  string `json:"path"`
}

// ControllerActionDetail is sent with Controller.Action.*.
type ControllerActionDetail struct {
	CtrlID int64           `json:"ctrl_id"`
	UUID   string          `json:"uuid"`
	Action string          `json:"action"`
	Param  json.RawMessage `json:"param"`
}

// TaskerTaskDetail is sent with Tasker.Task.*.
type TaskerTaskDetail struct {
	TaskID int64  `json:"task_id"`
	Entry  string `json:"entry"`
	UUID   string `json:"uuid"`
	Hash   string `json:"hash"`
}

// NextListItem is one candidate of a next list.
type NextListItem struct {
	Name     string `json:"name"`
	JumpBack bool   `json:"jump_back"`
	Anchor   bool   `json:"anchor"`
}

// NodeNextListDetail is sent with Node.NextList.*.
type NodeNextListDetail struct {
	TaskID int64           `json:"task_id"`
	Name   string          `json:"name"`
	List   []NextListItem  `json:"list"`
	Focus  json.RawMessage `json:"focus"`
}

// NodeRecognitionDetail is sent with Node.Recognition.* and
// Node.RecognitionNode.*.
type NodeRecognitionDetail struct {
	TaskID int64           `json:"task_id"`
	RecoID int64           `json:"reco_id"`
	Name   string          `json:"name"`
	Focus  json.RawMessage `json:"focus"`
}

// NodeActionDetail is sent with Node.Action.* and Node.ActionNode.*.
type NodeActionDetail struct {
	TaskID   int64           `json:"task_id"`
	ActionID int64           `json:"action_id"`
	Name     string          `json:"name"`
	Focus    json.RawMessage `json:"focus"`
}

// NodePipelineNodeDetail is sent with Node.PipelineNode.*.
type NodePipelineNodeDetail struct {
	TaskID int64           `json:"task_id"`
	NodeID int64           `json:"node_id"`
	Name   string          `json:"name"`
	Focus  json.RawMessage `json:"focus"`
}

// Sink receives events. It runs on a native thread behind the fault
// barrier and must not block for long.
type Sink func(Event)

// SinkID identifies a registered sink.
type SinkID int64

// sinkOps are the native sink functions of one handle family.
type sinkOps struct {
	prefix string
	add    func(l *native.Lib, raw, cb, token uintptr) int64
	remove func(l *native.Lib, raw uintptr, id int64)
}

func sinkName(prefix string, id int64) string {
	return fmt.Sprintf("%s:%d", prefix, id)
}

func addSink(l *native.Lib, h *handle, ops sinkOps, fn Sink) (SinkID, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: nil sink", ErrRejected)
	}
	raw, err := h.ptr()
	if err != nil {
		return 0, err
	}
	reg := registry.add(h, KindSink, ops.prefix, fn)
	id := ops.add(l, raw, trampolines(l).sink, reg.token)
	if id == native.InvalidID {
		registry.remove(reg.token)
		return 0, fmt.Errorf("%w: add %s sink", ErrRejected, h.kind)
	}
	registry.publish(reg, sinkName(ops.prefix, id))
	return SinkID(id), nil
}

func removeSink(l *native.Lib, h *handle, ops sinkOps, id SinkID) error {
	raw, err := h.ptr()
	if err != nil {
		return err
	}
	ops.remove(l, raw, int64(id))
	if token, ok := registry.find(h, KindSink, sinkName(ops.prefix, int64(id))); ok {
		registry.remove(token)
	}
	return nil
}
