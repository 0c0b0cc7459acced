package sinks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/james-see/mei2perf/pkg/converter"
)

// JSON writes every Movement and Performance of a result as one JSON document
type JSON struct {
	Indent string
}

// NewJSON creates a JSON sink with two-space indentation
func NewJSON() *JSON {
	return &JSON{Indent: "  "}
}

// Name returns the sink name
func (j *JSON) Name() string {
	return "JSON"
}

// Extension returns the file extension
func (j *JSON) Extension() string {
	return ".json"
}

// Write encodes res
func (j *JSON) Write(w io.Writer, res *converter.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	enc := json.NewEncoder(w)
	if j.Indent != "" {
		enc.SetIndent("", j.Indent)
	}
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
