package maa

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/haivivi/maafw/pkg/maa/native"
)

func TestResource_Pipeline(t *testing.T) {
	res := newLoadedResource(t, `{
		"$schema": "ignored",
		"Start": {"next": ["B"]},
		"B": {"action": "Click", "target": [1, 2, 3, 4]}
	}`)
	defer res.Close()

	if ok, err := res.Loaded(); err != nil || !ok {
		t.Errorf("Loaded = %v, %v", ok, err)
	}
	nodes, err := res.NodeList()
	if err != nil {
		t.Fatalf("NodeList: %v", err)
	}
	if !slices.Equal(nodes, []string{"B", "Start"}) {
		t.Errorf("NodeList = %v", nodes)
	}

	data, err := res.NodeData("B")
	if err != nil {
		t.Fatalf("NodeData: %v", err)
	}
	var node struct {
		Action string  `json:"action"`
		Target []int32 `json:"target"`
	}
	if err := json.Unmarshal(data, &node); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	if node.Action != "Click" || !slices.Equal(node.Target, []int32{1, 2, 3, 4}) {
		t.Errorf("node = %+v", node)
	}
	if _, err := res.NodeData("Nope"); !errors.Is(err, ErrRejected) {
		t.Errorf("NodeData of missing node: err = %v, want ErrRejected", err)
	}
}

func TestResource_Overrides(t *testing.T) {
	res := newLoadedResource(t, `{"Start": {"next": ["A"]}, "A": {}}`)
	defer res.Close()

	before, err := res.Hash()
	if err != nil || before == "" {
		t.Fatalf("Hash = %q, %v", before, err)
	}
	if err := res.OverridePipeline(map[string]any{"C": map[string]any{}}); err != nil {
		t.Fatalf("OverridePipeline: %v", err)
	}
	after, _ := res.Hash()
	if after == before {
		t.Error("hash unchanged after override")
	}
	if nodes, _ := res.NodeList(); !slices.Contains(nodes, "C") {
		t.Errorf("NodeList = %v, want C added", nodes)
	}

	if err := res.OverrideNext("Start", []string{"C", "A"}); err != nil {
		t.Fatalf("OverrideNext: %v", err)
	}
	data, _ := res.NodeData("Start")
	var node struct {
		Next []string `json:"next"`
	}
	json.Unmarshal(data, &node)
	if !slices.Equal(node.Next, []string{"C", "A"}) {
		t.Errorf("next = %v", node.Next)
	}
	if err := res.OverrideNext("Missing", nil); !errors.Is(err, ErrRejected) {
		t.Errorf("OverrideNext of missing node: err = %v, want ErrRejected", err)
	}

	if err := res.OverrideImage("template.png", NewImage(2, 2)); err != nil {
		t.Errorf("OverrideImage: %v", err)
	}
	if err := res.OverrideImage("x", nil); !errors.Is(err, ErrDecode) {
		t.Errorf("OverrideImage(nil): err = %v, want ErrDecode", err)
	}
	if err := res.OverridePipeline("[1,"); !errors.Is(err, ErrDecode) {
		t.Errorf("malformed override: err = %v, want ErrDecode", err)
	}
}

func TestResource_LoadFailures(t *testing.T) {
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	defer res.Close()

	job, err := res.PostPipeline(filepath.Join(t.TempDir(), "missing.json"))
	waitFor(t, "missing pipeline", job, err, StatusFailed)
	if ok, _ := res.Loaded(); ok {
		t.Error("Loaded after failed load")
	}

	job, err = res.PostPipeline(writePipeline(t, `{"Start": 1}`))
	waitFor(t, "non-object node", job, err, StatusFailed)

	if err := res.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	job, err = res.PostPipeline(writePipeline(t, `{"Start": {}}`))
	waitFor(t, "valid pipeline", job, err, StatusSucceeded)
	if ok, _ := res.Loaded(); !ok {
		t.Error("not Loaded after Clear and a good load")
	}
}

func TestResource_Bundle(t *testing.T) {
	dir := t.TempDir()
	pipelineDir := filepath.Join(dir, "pipeline")
	if err := os.MkdirAll(pipelineDir, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(pipelineDir, "a.json"), []byte(`{"A": {}}`), 0o644)
	os.WriteFile(filepath.Join(pipelineDir, "b.json"), []byte(`{"B": {}}`), 0o644)

	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	defer res.Close()
	job, err := res.PostBundle(dir)
	waitFor(t, "bundle", job, err, StatusSucceeded)
	if nodes, _ := res.NodeList(); !slices.Equal(nodes, []string{"A", "B"}) {
		t.Errorf("NodeList = %v", nodes)
	}

	os.WriteFile(filepath.Join(pipelineDir, "c.json"), []byte(`{"A": {}}`), 0o644)
	job, err = res.PostBundle(dir)
	waitFor(t, "duplicate node", job, err, StatusFailed)
}

func TestResource_CustomLists(t *testing.T) {
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	defer res.Close()

	noop := CustomActionFunc(func(*Context, *ActionArg) bool { return true })
	miss := CustomRecognitionFunc(func(*Context, *RecognitionArg) (RecognitionResult, bool) {
		return RecognitionResult{}, false
	})
	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		if err := res.RegisterCustomAction(name, noop); err != nil {
			t.Fatalf("RegisterCustomAction(%s): %v", name, err)
		}
	}
	if err := res.RegisterCustomRecognition("Finder", miss); err != nil {
		t.Fatalf("RegisterCustomRecognition: %v", err)
	}

	actions, err := res.CustomActionList()
	if err != nil {
		t.Fatalf("CustomActionList: %v", err)
	}
	if !slices.Equal(actions, []string{"Alpha", "Mid", "Zeta"}) {
		t.Errorf("actions = %v", actions)
	}
	if recos, _ := res.CustomRecognitionList(); !slices.Equal(recos, []string{"Finder"}) {
		t.Errorf("recognitions = %v", recos)
	}

	if err := res.UnregisterCustomAction("Mid"); err != nil {
		t.Fatalf("UnregisterCustomAction: %v", err)
	}
	if err := res.UnregisterCustomAction("Mid"); !errors.Is(err, ErrRejected) {
		t.Errorf("second unregister: err = %v, want ErrRejected", err)
	}
	if actions, _ := res.CustomActionList(); !slices.Equal(actions, []string{"Alpha", "Zeta"}) {
		t.Errorf("actions after unregister = %v", actions)
	}

	if err := res.ClearCustomActions(); err != nil {
		t.Fatalf("ClearCustomActions: %v", err)
	}
	if actions, _ := res.CustomActionList(); len(actions) != 0 {
		t.Errorf("actions after clear = %v", actions)
	}
	if got := registry.count(&res.h); got != 1 {
		t.Errorf("registrations = %d, want only the recognition", got)
	}
	if err := res.ClearCustomRecognitions(); err != nil {
		t.Fatalf("ClearCustomRecognitions: %v", err)
	}
	if got := registry.count(&res.h); got != 0 {
		t.Errorf("registrations after clear = %d", got)
	}
}

func TestResource_RegisterRejects(t *testing.T) {
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	defer res.Close()
	noop := CustomActionFunc(func(*Context, *ActionArg) bool { return true })

	if err := res.RegisterCustomAction("", noop); !errors.Is(err, ErrRejected) {
		t.Errorf("empty name: err = %v, want ErrRejected", err)
	}
	if err := res.RegisterCustomAction("a\x00b", noop); !errors.Is(err, ErrDecode) {
		t.Errorf("NUL in name: err = %v, want ErrDecode", err)
	}
	if err := res.RegisterCustomAction("x", nil); !errors.Is(err, ErrRejected) {
		t.Errorf("nil action: err = %v, want ErrRejected", err)
	}
	if got := registry.count(&res.h); got != 0 {
		t.Errorf("rejected registrations left %d entries", got)
	}
}

func TestResource_InferenceOptions(t *testing.T) {
	res, err := NewResource()
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	defer res.Close()
	raw, _ := res.h.ptr()

	if err := res.SetInferenceDevice(InferenceDeviceCPU); err != nil {
		t.Fatalf("SetInferenceDevice: %v", err)
	}
	if v, ok := engine.ResourceOption(raw, native.ResOptionInferenceDevice); !ok || v != int32(InferenceDeviceCPU) {
		t.Errorf("device option = %d, %v", v, ok)
	}
	if err := res.SetInferenceExecutionProvider(InferenceEPCUDA); err != nil {
		t.Fatalf("SetInferenceExecutionProvider: %v", err)
	}
	if v, ok := engine.ResourceOption(raw, native.ResOptionInferenceExecutionProvider); !ok || v != int32(InferenceEPCUDA) {
		t.Errorf("execution provider option = %d, %v", v, ok)
	}
}
