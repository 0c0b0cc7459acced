package msm

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapKeepsInsertionOrderAtEqualDates(t *testing.T) {
	m := NewMap[*Marker]()
	m.Add(&Marker{Date: 10, ID: "b"})
	m.Add(&Marker{Date: 0, ID: "a"})
	m.Add(&Marker{Date: 10, ID: "c"})
	m.Add(&Marker{Date: 5, ID: "x"})

	var ids []string
	for _, e := range m.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "x", "b", "c"}, ids)
}

func TestMapQueries(t *testing.T) {
	m := NewMap[*Marker]()
	for i, id := range []string{"a", "b", "c"} {
		m.Add(&Marker{Date: float64(i * 10), ID: id})
	}

	e, ok := m.LastBefore(15)
	require.True(t, ok)
	assert.Equal(t, "b", e.ID)

	e, ok = m.LastBefore(20)
	require.True(t, ok)
	assert.Equal(t, "c", e.ID)

	_, ok = m.LastBefore(-1)
	assert.False(t, ok)

	assert.Len(t, m.Between(0, 20), 2)
	assert.Equal(t, 1, m.IndexOf(func(e *Marker) bool { return e.ID == "b" }))

	assert.Equal(t, 1, m.Remove(func(e *Marker) bool { return e.ID == "b" }))
	assert.Equal(t, 2, m.Len())

	m.InsertAt(0, &Marker{Date: 0, ID: "first"})
	assert.Equal(t, "first", m.At(0).ID)
}

func TestNilMapIsEmpty(t *testing.T) {
	var m *Map[*Marker]
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Entries())
	_, ok := m.Last()
	assert.False(t, ok)

	data, err := json.Marshal(struct {
		M *Map[*Marker] `json:"m"`
	}{M: NewMap[*Marker]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":[]}`, string(data))
}

func TestGotoActivity(t *testing.T) {
	tests := []struct {
		activity string
		pass     int
		want     bool
	}{
		{"1", 0, true},
		{"1", 1, false},
		{"01", 0, false},
		{"01", 1, true},
		{"01", 2, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		g := &Goto{Activity: tt.activity}
		assert.Equal(t, tt.want, g.IsActive(tt.pass), "activity %q pass %d", tt.activity, tt.pass)
	}
}

func TestPlaybackSimpleRepeat(t *testing.T) {
	seq := NewMap[SequencingCommand]()
	seq.Add(&Marker{Date: 0, ID: "start", Message: "repetition start"})
	seq.Add(&Goto{Date: 960, Activity: "1", TargetDate: 0, TargetID: "start"})

	segments := Playback(seq)
	require.Len(t, segments, 2)
	assert.Equal(t, Segment{From: 0, To: 960, Offset: 0}, segments[0])
	assert.Equal(t, 0.0, segments[1].From)
	assert.True(t, math.IsInf(segments[1].To, 1))
	assert.Equal(t, 960.0, segments[1].Offset)
}

func TestPlaybackEndings(t *testing.T) {
	// |: A | 1. B :| 2. C |
	seq := NewMap[SequencingCommand]()
	seq.Add(&Goto{Date: 100, Activity: "01", TargetDate: 200, TargetID: "ending2"})
	seq.Add(&Marker{Date: 100, ID: "ending1", Message: "ending 1"})
	seq.Add(&Goto{Date: 200, Activity: "1", TargetDate: 0})
	seq.Add(&Marker{Date: 200, ID: "ending2", Message: "ending 2"})

	segments := Playback(seq)
	require.Len(t, segments, 3)
	assert.Equal(t, Segment{From: 0, To: 200, Offset: 0}, segments[0])
	assert.Equal(t, Segment{From: 0, To: 100, Offset: 200}, segments[1])
	assert.Equal(t, 200.0, segments[2].From)
	assert.Equal(t, 100.0, segments[2].Offset)
}

func newTestMovement() *Movement {
	m := NewMovement("test", "mv", 720)
	p := NewPart("piano", 1, 0, 0, "p1")
	p.Score.Add(&Note{ID: "n1", Date: 0, Duration: 480, MidiPitch: 60, Layer: "1", Tie: "i"})
	p.Score.Add(&Note{ID: "n2", Date: 480, Duration: 480, MidiPitch: 62, Layer: "1"})
	p.Score.Add(&Rest{ID: "r1", Date: 960, Duration: 480, Layer: "1"})
	m.AddPart(p)
	m.Global.TimeSignatures.Add(&TimeSignature{Date: 0, Numerator: 2, Denominator: 4})
	m.Global.Sequencing.Add(&Marker{Date: 0, ID: "s", Message: "repetition start"})
	m.Global.Sequencing.Add(&Goto{Date: 960, Activity: "1", TargetDate: 0, TargetID: "s", N: 1, First: true})
	return m
}

func TestResolveSequencing(t *testing.T) {
	m := newTestMovement()
	m.ResolveSequencing()

	notes := m.Parts[0].Notes()
	require.Len(t, notes, 4)
	assert.Equal(t, "n1", notes[0].ID)
	assert.Equal(t, "n2", notes[1].ID)
	assert.Equal(t, "rep1_n1", notes[2].ID)
	assert.Equal(t, 960.0, notes[2].Date)
	assert.Equal(t, "rep1_n2", notes[3].ID)
	assert.Equal(t, 1440.0, notes[3].Date)

	rests := m.Parts[0].Rests()
	require.Len(t, rests, 1)
	assert.Equal(t, "r1", rests[0].ID)
	assert.Equal(t, 1920.0, rests[0].Date)

	assert.Equal(t, 2, m.Global.TimeSignatures.Len())
	assert.Equal(t, 0, m.Global.Sequencing.Len())
	assert.Equal(t, 2400.0, m.Duration())
}

func TestResolveSequencingWithoutGotos(t *testing.T) {
	m := NewMovement("plain", "mv", 720)
	p := NewPart("p", 1, 0, 0, "")
	p.Score.Add(&Note{ID: "a", Date: 0, Duration: 720})
	m.AddPart(p)

	segments := m.ResolveSequencing()
	require.Len(t, segments, 1)
	assert.Len(t, m.Parts[0].Notes(), 1)
	assert.Equal(t, "a", m.Parts[0].Notes()[0].ID)
}

func TestCleanup(t *testing.T) {
	m := newTestMovement()
	m.Cleanup()

	assert.Nil(t, m.Global.Misc)
	assert.Nil(t, m.Global.KeySignatures)
	assert.NotNil(t, m.Global.TimeSignatures)
	g := Gotos(m.Global.Sequencing)
	require.Len(t, g, 1)
	assert.Zero(t, g[0].N)
	assert.False(t, g[0].First)

	n := m.Parts[0].Notes()[0]
	assert.Empty(t, n.Layer)
	assert.Empty(t, n.Tie)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"misc"`)
	assert.Contains(t, string(data), `"type":"note"`)
	assert.Contains(t, string(data), `"type":"goto"`)
}

func TestTimeSignatureAt(t *testing.T) {
	m := NewMovement("ts", "mv", 720)
	p := NewPart("p", 1, 0, 0, "")
	m.AddPart(p)

	assert.Nil(t, m.TimeSignatureAt(p, 0))

	m.Global.TimeSignatures.Add(&TimeSignature{Date: 0, Numerator: 4, Denominator: 4})
	p.Dated.TimeSignatures.Add(&TimeSignature{Date: 2880, Numerator: 3, Denominator: 4})
	m.Global.TimeSignatures.Add(&TimeSignature{Date: 5040, Numerator: 6, Denominator: 8})

	assert.Equal(t, 4, m.TimeSignatureAt(p, 100).Numerator)
	assert.Equal(t, 3, m.TimeSignatureAt(p, 3000).Numerator)
	assert.Equal(t, 6, m.TimeSignatureAt(p, 5040).Numerator)
	assert.Equal(t, 2160.0, m.TimeSignatureAt(p, 3000).MeasureTicks(720))
	assert.Equal(t, 360.0, m.TimeSignatureAt(p, 6000).BeatTicks(720))
}

func TestKeySignatureLookup(t *testing.T) {
	k := &KeySignature{Accidentals: []KeyAccidental{
		{PitchName: "f", Octave: -1, Value: 1},
		{PitchName: "c", Octave: 5, Value: 1},
	}}
	v, ok := k.Lookup("f", 3)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = k.Lookup("c", 4)
	assert.False(t, ok)
	_, ok = k.Lookup("c", 5)
	assert.True(t, ok)
}

func TestTranspositionActiveAt(t *testing.T) {
	tr := &Transposition{Date: 100, End: 200}
	assert.False(t, tr.ActiveAt(50))
	assert.True(t, tr.ActiveAt(100))
	assert.False(t, tr.ActiveAt(200))

	open := &Transposition{Date: 0, End: -1}
	assert.True(t, open.ActiveAt(1e9))

	assert.True(t, AppliesTo(nil, "2"))
	assert.True(t, AppliesTo([]string{"1", "2"}, "2"))
	assert.False(t, AppliesTo([]string{"1"}, "2"))
}
