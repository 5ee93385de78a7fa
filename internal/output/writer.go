// Package output handles serialization of command results to the terminal
// or to files.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Writer serializes a stream of result items.
type Writer interface {
	// Write buffers or emits a single result.
	Write(data any) error

	// Flush ensures all buffered data is written.
	Flush() error
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format) (Writer, error) {
	switch format {
	case FormatJSON:
		return &jsonWriter{w: bufio.NewWriter(w), pretty: true}, nil
	case FormatJSONL:
		return &jsonWriter{w: bufio.NewWriter(w), stream: true}, nil
	case FormatYAML:
		return &yamlWriter{w: bufio.NewWriter(w)}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// jsonWriter covers both buffered-array JSON and line-delimited JSONL.
type jsonWriter struct {
	w      *bufio.Writer
	pretty bool
	stream bool
	items  []any
}

func (w *jsonWriter) Write(data any) error {
	if !w.stream {
		w.items = append(w.items, data)
		return nil
	}
	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(append(out, '\n')); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonWriter) Flush() error {
	if w.stream {
		return w.w.Flush()
	}

	var payload any = w.items
	if len(w.items) == 1 {
		// A single item is emitted directly, not wrapped in an array.
		payload = w.items[0]
	}

	var out []byte
	var err error
	if w.pretty {
		out, err = json.MarshalIndent(payload, "", "  ")
	} else {
		out, err = json.Marshal(payload)
	}
	if err != nil {
		return err
	}
	if _, err := w.w.Write(append(out, '\n')); err != nil {
		return err
	}
	return w.w.Flush()
}

type yamlWriter struct {
	w     *bufio.Writer
	items []any
}

func (w *yamlWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

func (w *yamlWriter) Flush() error {
	enc := yaml.NewEncoder(w.w)
	enc.SetIndent(2)

	var payload any = w.items
	if len(w.items) == 1 {
		payload = w.items[0]
	}
	if err := enc.Encode(payload); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}
