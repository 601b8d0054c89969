package maatest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// node is one pipeline node as decoded from JSON.
type node map[string]any

// pipeline maps node names to nodes.
type pipeline map[string]node

func (p pipeline) clone() pipeline {
	out := make(pipeline, len(p))
	for name, n := range p {
		c := make(node, len(n))
		for k, v := range n {
			c[k] = v
		}
		out[name] = c
	}
	return out
}

// merge applies doc field by field: listed fields replace the node's,
// unlisted fields are kept, unknown nodes are added.
func (p pipeline) merge(doc pipeline) {
	for name, n := range doc {
		cur, ok := p[name]
		if !ok {
			cur = make(node, len(n))
			p[name] = cur
		}
		for k, v := range n {
			cur[k] = v
		}
	}
}

func (p pipeline) names() []string {
	out := make([]string, 0, len(p))
	for name := range p {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p pipeline) hash() string {
	b, _ := json.Marshal(p)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// parsePipeline decodes a pipeline document. Keys starting with '$' are
// metadata and skipped; every other value must be an object.
func parsePipeline(text string) (pipeline, error) {
	if strings.TrimSpace(text) == "" {
		return pipeline{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}
	out := make(pipeline, len(raw))
	for name, v := range raw {
		if strings.HasPrefix(name, "$") {
			continue
		}
		var n node
		if err := json.Unmarshal(v, &n); err != nil {
			return nil, fmt.Errorf("node %s: %w", name, err)
		}
		if n == nil {
			return nil, fmt.Errorf("node %s: not an object", name)
		}
		out[name] = n
	}
	return out, nil
}

// loadPipelinePath reads a pipeline file, or every .json file below a
// directory. Node names must be unique across files.
func loadPipelinePath(path string) (pipeline, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return parsePipeline(string(b))
	}
	out := pipeline{}
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".json") {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		doc, err := parsePipeline(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		for name, n := range doc {
			if _, dup := out[name]; dup {
				return fmt.Errorf("%s: duplicate node %s", p, name)
			}
			out[name] = n
		}
		return nil
	})
	return out, err
}

// loadBundle reads the pipeline directory of a bundle. A bundle without a
// pipeline directory loads nothing.
func loadBundle(dir string) (pipeline, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("bundle is not a directory")
	}
	p, err := loadPipelinePath(filepath.Join(dir, "pipeline"))
	if errors.Is(err, os.ErrNotExist) {
		return pipeline{}, nil
	}
	return p, err
}

// ============================================================================
// Node fields
// ============================================================================

// stage returns the type and parameters of a recognition or action field.
// Both the flat form ("recognition": "Custom", parameters beside it) and
// the nested form ("recognition": {"type": ..., "param": {...}}) are
// accepted.
func (n node) stage(field, def string) (string, map[string]any) {
	switch v := n[field].(type) {
	case string:
		if v == "" {
			v = def
		}
		return v, n
	case map[string]any:
		typ, _ := v["type"].(string)
		if typ == "" {
			typ = def
		}
		param, _ := v["param"].(map[string]any)
		if param == nil {
			param = map[string]any{}
		}
		return typ, param
	}
	return def, n
}

func (n node) next() []string {
	if s, ok := n["next"].(string); ok {
		return []string{s}
	}
	list, _ := n["next"].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case map[string]any:
			if name, ok := x["name"].(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

func (n node) enabled() bool {
	v, ok := n["enabled"].(bool)
	return !ok || v
}

// rectParam decodes an [x, y, w, h] array.
func rectParam(v any) (native.Rect, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 4 {
		return native.Rect{}, false
	}
	var out [4]int32
	for i, x := range arr {
		f, ok := x.(float64)
		if !ok {
			return native.Rect{}, false
		}
		out[i] = int32(f)
	}
	return native.Rect{X: out[0], Y: out[1], W: out[2], H: out[3]}, true
}

// jsonParam renders a custom parameter as the JSON text passed to
// callbacks. Missing parameters become "{}".
func jsonParam(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
