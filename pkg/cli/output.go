package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// OutputFormat is the output encoding.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
	// FormatRaw writes strings and bytes verbatim and falls back to YAML.
	FormatRaw OutputFormat = "raw"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case "", FormatYAML:
		return FormatYAML, nil
	case FormatJSON, FormatRaw:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want yaml, json or raw)", s)
}

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat

	// Query is a jq expression applied before encoding. Each value the
	// query yields is written separately.
	Query string

	// Writer defaults to stdout.
	Writer io.Writer
}

// Output writes result in the requested format.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.Query == "" {
		return write(w, result, opts.Format)
	}

	values, err := Query(result, opts.Query)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := write(w, v, opts.Format); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a jq expression over result and returns every value it
// yields. result is converted to plain JSON values first, so struct tags
// decide the field names.
func Query(result any, expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	input, err := toJSONValue(result)
	if err != nil {
		return nil, err
	}
	var out []any
	iter := q.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("jq %q: %w", expr, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func write(w io.Writer, v any, format OutputFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML, "":
		return writeYAML(w, v)
	case FormatRaw:
		switch s := v.(type) {
		case []byte:
			_, err := w.Write(s)
			return err
		case string:
			_, err := fmt.Fprintln(w, s)
			return err
		}
		return writeYAML(w, v)
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

// writeYAML goes through JSON so types with custom JSON encodings, such as
// json.RawMessage details, print as structured YAML.
func writeYAML(w io.Writer, v any) error {
	plain, err := toJSONValue(v)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(plain)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
