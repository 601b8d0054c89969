package maa

import (
	"encoding/json"
	"fmt"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// RecognitionDetail is the outcome of one recognition.
type RecognitionDetail struct {
	ID        int64           `json:"id"`
	NodeName  string          `json:"node_name"`
	Algorithm string          `json:"algorithm"`
	Hit       bool            `json:"hit"`
	Box       Rect            `json:"box"`
	Detail    json.RawMessage `json:"detail,omitempty"`

	// Raw is the image the recognition ran on. It is only kept when the
	// library runs in debug mode.
	Raw *Image `json:"-"`
	// Draws are the annotated images, kept in debug mode or with save-draw.
	Draws []*Image `json:"-"`
}

// ActionDetail is the outcome of one action.
type ActionDetail struct {
	ID       int64           `json:"id"`
	NodeName string          `json:"node_name"`
	Action   string          `json:"action"`
	Box      Rect            `json:"box"`
	Success  bool            `json:"success"`
	Detail   json.RawMessage `json:"detail,omitempty"`
}

// NodeDetail is one executed pipeline node.
type NodeDetail struct {
	ID            int64  `json:"id"`
	NodeName      string `json:"node_name"`
	RecognitionID int64  `json:"reco_id"`
	ActionID      int64  `json:"action_id"`
	Completed     bool   `json:"completed"`

	Recognition *RecognitionDetail `json:"recognition,omitempty"`
	Action      *ActionDetail      `json:"action,omitempty"`
}

// TaskDetail is the state of a task and the nodes it ran so far.
type TaskDetail struct {
	ID     int64         `json:"id"`
	Entry  string        `json:"entry"`
	Status Status        `json:"status"`
	Nodes  []*NodeDetail `json:"nodes"`
}

// The functions below query details from the tasker handle that owns the
// ids. Buffers are created and destroyed per call.

func recognitionDetail(l *native.Lib, tasker uintptr, id int64) (*RecognitionDetail, error) {
	name, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer name.close()
	algo, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer algo.close()
	detail, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer detail.close()
	raw, err := newImageBuffer(l)
	if err != nil {
		return nil, err
	}
	defer raw.close()
	draws, err := newImageList(l)
	if err != nil {
		return nil, err
	}
	defer draws.close()

	var hit uint8
	var box native.Rect
	if l.MaaTaskerGetRecognitionDetail(tasker, id, name.p, algo.p, &hit, &box, detail.p, raw.p, draws.p) == 0 {
		return nil, fmt.Errorf("%w: recognition detail %d", ErrRejected, id)
	}

	out := &RecognitionDetail{ID: id, Hit: hit != 0, Box: rectFromNative(box)}
	if out.NodeName, err = name.get("node name"); err != nil {
		return nil, err
	}
	if out.Algorithm, err = algo.get("algorithm"); err != nil {
		return nil, err
	}
	text, err := detail.get("recognition detail")
	if err != nil {
		return nil, err
	}
	if out.Detail, err = decodeDocument("recognition detail", text); err != nil {
		return nil, err
	}
	if out.Raw, err = raw.image(); err != nil {
		return nil, err
	}
	if out.Draws, err = draws.images(); err != nil {
		return nil, err
	}
	return out, nil
}

func actionDetail(l *native.Lib, tasker uintptr, id int64) (*ActionDetail, error) {
	name, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer name.close()
	action, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer action.close()
	detail, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer detail.close()

	var box native.Rect
	var success uint8
	if l.MaaTaskerGetActionDetail(tasker, id, name.p, action.p, &box, &success, detail.p) == 0 {
		return nil, fmt.Errorf("%w: action detail %d", ErrRejected, id)
	}

	out := &ActionDetail{ID: id, Box: rectFromNative(box), Success: success != 0}
	if out.NodeName, err = name.get("node name"); err != nil {
		return nil, err
	}
	if out.Action, err = action.get("action"); err != nil {
		return nil, err
	}
	text, err := detail.get("action detail")
	if err != nil {
		return nil, err
	}
	if out.Detail, err = decodeDocument("action detail", text); err != nil {
		return nil, err
	}
	return out, nil
}

func nodeDetail(l *native.Lib, tasker uintptr, id int64) (*NodeDetail, error) {
	name, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer name.close()

	var recoID, actionID int64
	var completed uint8
	if l.MaaTaskerGetNodeDetail(tasker, id, name.p, &recoID, &actionID, &completed) == 0 {
		return nil, fmt.Errorf("%w: node detail %d", ErrRejected, id)
	}

	out := &NodeDetail{ID: id, RecognitionID: recoID, ActionID: actionID, Completed: completed != 0}
	if out.NodeName, err = name.get("node name"); err != nil {
		return nil, err
	}
	if recoID != native.InvalidID {
		if out.Recognition, err = recognitionDetail(l, tasker, recoID); err != nil {
			return nil, err
		}
	}
	if actionID != native.InvalidID {
		if out.Action, err = actionDetail(l, tasker, actionID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// taskDetail asks for the node count first, then for the ids.
func taskDetail(l *native.Lib, tasker uintptr, id int64) (*TaskDetail, error) {
	var size uint64
	var code int32
	if l.MaaTaskerGetTaskDetail(tasker, id, 0, nil, &size, &code) == 0 {
		return nil, fmt.Errorf("%w: task detail %d", ErrRejected, id)
	}

	entry, err := newStringBuffer(l)
	if err != nil {
		return nil, err
	}
	defer entry.close()

	ids := make([]int64, size)
	var first *int64
	if size > 0 {
		first = &ids[0]
	}
	if l.MaaTaskerGetTaskDetail(tasker, id, entry.p, first, &size, &code) == 0 {
		return nil, fmt.Errorf("%w: task detail %d", ErrRejected, id)
	}
	// Nodes may have finished between the two calls; the library never
	// writes more than the capacity it was given.
	ids = ids[:min(size, uint64(len(ids)))]

	out := &TaskDetail{ID: id}
	if out.Status, err = decodeStatus(code); err != nil {
		return nil, err
	}
	if out.Entry, err = entry.get("task entry"); err != nil {
		return nil, err
	}
	out.Nodes = make([]*NodeDetail, 0, len(ids))
	for _, nid := range ids {
		nd, err := nodeDetail(l, tasker, nid)
		if err != nil {
			return nil, err
		}
		out.Nodes = append(out.Nodes, nd)
	}
	return out, nil
}
