package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name   string          `json:"name"`
	Nodes  []string        `json:"nodes"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sample{Name: "Start", Nodes: []string{"A"}}, OutputOptions{Format: FormatJSON, Writer: &buf})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	var got sample
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got.Name != "Start" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestOutput_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	v := sample{Name: "Start", Detail: json.RawMessage(`{"score":0.9}`)}
	if err := Output(v, OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("Output: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"name: Start", "score: 0.9"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestOutput_Raw(t *testing.T) {
	var buf bytes.Buffer
	Output("plain", OutputOptions{Format: FormatRaw, Writer: &buf})
	Output([]byte("bytes"), OutputOptions{Format: FormatRaw, Writer: &buf})
	if buf.String() != "plain\nbytes" {
		t.Errorf("raw output = %q", buf.String())
	}
}

func TestOutput_Query(t *testing.T) {
	v := sample{Name: "Start", Nodes: []string{"A", "B"}}

	var buf bytes.Buffer
	if err := Output(v, OutputOptions{Format: FormatRaw, Query: ".nodes[]", Writer: &buf}); err != nil {
		t.Fatalf("Output: %v", err)
	}
	if buf.String() != "A\nB\n" {
		t.Errorf("query output = %q", buf.String())
	}

	buf.Reset()
	if err := Output(v, OutputOptions{Format: FormatJSON, Query: "{n: (.nodes | length)}", Writer: &buf}); err != nil {
		t.Fatalf("Output: %v", err)
	}
	if strings.Join(strings.Fields(buf.String()), "") != `{"n":2}` {
		t.Errorf("json query output = %q", buf.String())
	}
}

func TestQuery_Errors(t *testing.T) {
	if _, err := Query(map[string]any{}, ".["); err == nil {
		t.Error("invalid expression accepted")
	}
	if _, err := Query(map[string]any{"a": 1}, ".a[]"); err == nil {
		t.Error("iterating a number succeeded")
	}
	got, err := Query([]int{1, 2, 3}, ".[] | select(. > 1)")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %v", got)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatYAML, "yaml": FormatYAML, "json": FormatJSON, "raw": FormatRaw} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("table"); err == nil {
		t.Error("ParseFormat(table) succeeded")
	}
}

func TestParseDocument(t *testing.T) {
	yamlDoc := []byte("Start:\n  next: [A]\nA:\n  action: Click\n")
	got, err := ParseDocument(yamlDoc, "override.yaml")
	if err != nil {
		t.Fatalf("ParseDocument yaml: %v", err)
	}
	var doc map[string]map[string]any
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("result is not JSON: %s", got)
	}
	if doc["A"]["action"] != "Click" {
		t.Errorf("doc = %v", doc)
	}

	if _, err := ParseDocument([]byte(`{"A": {}}`), "o.json"); err != nil {
		t.Errorf("ParseDocument json: %v", err)
	}
	if _, err := ParseDocument([]byte(`{"A": `), "o.json"); err == nil {
		t.Error("malformed JSON accepted")
	}
	if _, err := ParseDocument([]byte("a: [1, 2"), "o.yml"); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{850 * time.Millisecond, "850ms"},
		{1500 * time.Millisecond, "1.5s"},
		{123 * time.Second, "2m3.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{3 << 20, "3.00 MB"},
		{5 << 30, "5.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
	if ShortID("0190c2f4-aaaa") != "0190c2f4" || ShortID("abc") != "abc" {
		t.Error("ShortID")
	}
}

func TestStyles_Table(t *testing.T) {
	var buf bytes.Buffer
	s := NewStyles(DefaultTheme)
	s.Table(&buf, Row{"ID", "ENTRY"}, []Row{{"abc", "Start"}, {"d", "LongerEntry"}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[1], "abc") || !strings.Contains(lines[2], "LongerEntry") {
		t.Errorf("rows = %q", lines[1:])
	}
	if strings.Index(lines[1], "Start") != strings.Index(lines[2], "LongerEntry") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}
