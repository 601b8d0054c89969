package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// LoadDocument reads a YAML or JSON file and returns it as JSON, ready to
// pass as a pipeline override. "-" reads stdin.
func LoadDocument(path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseDocument(data, path)
}

// ParseDocument converts data to JSON. Files ending in .json must be JSON.
// Anything else is parsed as YAML, which also accepts JSON.
func ParseDocument(data []byte, filename string) (json.RawMessage, error) {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s: invalid JSON", filename)
		}
		return json.RawMessage(data), nil
	}
	out, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", filename, err)
	}
	return json.RawMessage(out), nil
}
