// Package sinks provides the output formats conversion results are written in
package sinks

import (
	"fmt"

	"github.com/james-see/mei2perf/pkg/converter"
)

// ForFormat returns the sink writing the given output format
func ForFormat(format converter.Format) (converter.Sink, error) {
	switch format {
	case converter.FormatJSON:
		return NewJSON(), nil
	case converter.FormatMIDI:
		return NewMIDI(0), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
