package sinks

import (
	"errors"
	"fmt"
	"io"

	"github.com/james-see/mei2perf/pkg/converter"
	"github.com/james-see/mei2perf/pkg/mpm"
)

// MIDI renders one movement of a result as a Standard MIDI File
type MIDI struct {
	// Movement is the index of the movement to render
	Movement int
}

// NewMIDI creates a MIDI sink for the given movement
func NewMIDI(movement int) *MIDI {
	return &MIDI{Movement: movement}
}

// Name returns the sink name
func (m *MIDI) Name() string {
	return "Standard MIDI File"
}

// Extension returns the file extension
func (m *MIDI) Extension() string {
	return ".mid"
}

// Write renders the selected movement with its performance
func (m *MIDI) Write(w io.Writer, res *converter.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if m.Movement < 0 || m.Movement >= len(res.Movements) {
		return fmt.Errorf("movement %d out of range: result has %d", m.Movement, len(res.Movements))
	}

	var perf *mpm.Performance
	if m.Movement < len(res.Performances) {
		perf = res.Performances[m.Movement]
	}
	data, err := converter.NewMIDIConverter().GenerateMIDI(res.Movements[m.Movement], perf)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write MIDI: %w", err)
	}
	return nil
}
