package sinks

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scale = `<mei xmlns="http://www.music-encoding.org/ns/mei"><music><body><mdiv xml:id="m1"><score>` +
	`<scoreDef meter.count="4" meter.unit="4"><staffGrp><staffDef n="1" label="Piano"/></staffGrp></scoreDef>` +
	`<section><measure n="1"><staff n="1"><layer n="1">` +
	`<note xml:id="n1" pname="c" oct="4" dur="4"/><note xml:id="n2" pname="d" oct="4" dur="4"/>` +
	`<note xml:id="n3" pname="e" oct="4" dur="4"/><note xml:id="n4" pname="f" oct="4" dur="4"/>` +
	`</layer></staff><tempo tstamp="1" midi.bpm="100"/></measure></section></score></mdiv></body></music></mei>`

func convertScale(t *testing.T) *converter.Result {
	t.Helper()
	res, err := converter.New(converter.DefaultOptions(), logging.Discard()).ConvertBytes([]byte(scale))
	require.NoError(t, err)
	return res
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  converter.Format
		name    string
		ext     string
		wantErr bool
	}{
		{converter.FormatJSON, "JSON", ".json", false},
		{converter.FormatMIDI, "Standard MIDI File", ".mid", false},
		{converter.FormatMEI, "", "", true},
		{converter.FormatUnknown, "", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			sink, err := ForFormat(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, sink.Name())
			assert.Equal(t, tt.ext, sink.Extension())
		})
	}
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSON().Write(&buf, convertScale(t)))

	var decoded struct {
		PPQ       int `json:"ppq"`
		Movements []struct {
			ID    string `json:"id"`
			Parts []struct {
				Name  string `json:"name"`
				Score []struct {
					ID        string  `json:"id"`
					MidiPitch float64 `json:"midiPitch"`
				} `json:"score"`
			} `json:"parts"`
		} `json:"movements"`
		Performances []json.RawMessage `json:"performances"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, 720, decoded.PPQ)
	require.Len(t, decoded.Movements, 1)
	assert.Equal(t, "m1", decoded.Movements[0].ID)
	require.Len(t, decoded.Movements[0].Parts, 1)
	part := decoded.Movements[0].Parts[0]
	assert.Equal(t, "Piano", part.Name)
	require.Len(t, part.Score, 4)
	assert.Equal(t, "n3", part.Score[2].ID)
	assert.Equal(t, 64.0, part.Score[2].MidiPitch)
	assert.Len(t, decoded.Performances, 1)
}

func TestJSONSinkRejectsNil(t *testing.T) {
	assert.Error(t, NewJSON().Write(&bytes.Buffer{}, nil))
}

func TestMIDISink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMIDI(0).Write(&buf, convertScale(t)))

	summary, err := converter.NewMIDIConverter().ParseMIDI(buf.Bytes())
	require.NoError(t, err)
	assert.InDelta(t, 100.0, summary.Tempo, 0.01)
	require.Len(t, summary.Notes, 4)
	assert.Equal(t, uint8(65), summary.Notes[3].Key)
	assert.Equal(t, int64(2160), summary.Notes[3].Tick)
}

func TestMIDISinkMovementOutOfRange(t *testing.T) {
	assert.Error(t, NewMIDI(3).Write(&bytes.Buffer{}, convertScale(t)))
	assert.Error(t, NewMIDI(0).Write(&bytes.Buffer{}, &converter.Result{}))
}

func TestConvertFileThroughSink(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scale.mei")
	out := filepath.Join(dir, "scale.mid")
	require.NoError(t, os.WriteFile(in, []byte(scale), 0644))

	conv := converter.New(converter.DefaultOptions(), logging.Discard())
	assert.Error(t, conv.ConvertFile(in, out), "no sink configured")

	conv.SetSink(NewMIDI(0))
	require.NoError(t, conv.ConvertFile(in, out))

	summary, err := converter.NewMIDIConverter().ParseMIDIFile(out)
	require.NoError(t, err)
	assert.Len(t, summary.Notes, 4)
}
