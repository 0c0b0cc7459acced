package converter

import (
	"testing"

	"github.com/james-see/mei2perf/pkg/msm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMIDIRoundTrip(t *testing.T) {
	res := convert(t, DefaultOptions(), document(oneStaff,
		`<measure n="1" right="rptend"><staff n="1"><layer n="1">`+
			`<note pname="c" oct="4" dur="2"/><note pname="e" oct="4" dur="2"/>`+
			`</layer></staff>`+
			`<dynam staff="1" tstamp="3">p</dynam><tempo tstamp="1" midi.bpm="90"/></measure>`))

	mc := NewMIDIConverter()
	data, err := mc.GenerateMIDI(res.Movements[0], res.Performances[0])
	require.NoError(t, err)
	assert.Equal(t, "MThd", string(data[:4]))

	summary, err := mc.ParseMIDI(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(720), summary.TicksPerQuarter)
	assert.Equal(t, 2, summary.Tracks)
	assert.InDelta(t, 90.0, summary.Tempo, 0.01)

	require.Len(t, summary.Notes, 2)
	first, second := summary.Notes[0], summary.Notes[1]
	assert.Equal(t, 1, first.Track)
	assert.Equal(t, uint8(60), first.Key)
	assert.Equal(t, int64(0), first.Tick)
	assert.Equal(t, int64(1440), first.Duration)
	assert.Equal(t, uint8(defaultVelocity), first.Velocity)

	assert.Equal(t, uint8(64), second.Key)
	assert.Equal(t, int64(1440), second.Tick)
	assert.Equal(t, uint8(49), second.Velocity)
}

func TestMIDIRepeatedKeysRetrigger(t *testing.T) {
	mv := msm.NewMovement("t", "t", 480)
	part := msm.NewPart("p", 1, 3, 0, "")
	part.Score.Add(&msm.Note{Date: 0, Duration: 480, MidiPitch: 62})
	part.Score.Add(&msm.Note{Date: 480, Duration: 480, MidiPitch: 62})
	mv.AddPart(part)

	mc := NewMIDIConverter()
	data, err := mc.GenerateMIDI(mv, nil)
	require.NoError(t, err)

	summary, err := mc.ParseMIDI(data)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, summary.Tempo, 0.01)
	require.Len(t, summary.Notes, 2)
	for i, n := range summary.Notes {
		assert.Equal(t, uint8(3), n.Channel)
		assert.Equal(t, int64(i*480), n.Tick)
		assert.Equal(t, int64(480), n.Duration)
	}
}

func TestGenerateMIDIRejectsBadInput(t *testing.T) {
	mc := NewMIDIConverter()

	_, err := mc.GenerateMIDI(nil, nil)
	assert.Error(t, err)

	_, err = mc.GenerateMIDI(msm.NewMovement("t", "t", 40000), nil)
	assert.Error(t, err)
}

func TestParseMIDIRejectsGarbage(t *testing.T) {
	_, err := NewMIDIConverter().ParseMIDI([]byte("not a midi file"))
	assert.Error(t, err)
}

func TestKeySignatureMessage(t *testing.T) {
	tests := []struct {
		name     string
		accids   []msm.KeyAccidental
		expected byte
	}{
		{"c major", nil, 0},
		{"two sharps", []msm.KeyAccidental{{PitchName: "f", Octave: -1, Value: 1}, {PitchName: "c", Octave: -1, Value: 1}}, 2},
		{"one flat", []msm.KeyAccidental{{PitchName: "b", Octave: -1, Value: -1}}, 0xFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := keySignatureMessage(&msm.KeySignature{Accidentals: tt.accids})
			require.Len(t, msg, 5)
			assert.Equal(t, tt.expected, msg[3])
		})
	}
}

func TestVarLen(t *testing.T) {
	assert.Equal(t, []byte{0x00}, varLen(0))
	assert.Equal(t, []byte{0x7F}, varLen(127))
	assert.Equal(t, []byte{0x81, 0x00}, varLen(128))
	assert.Equal(t, []byte{0xFF, 0x7F}, varLen(16383))
}
