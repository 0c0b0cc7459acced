package msm

import "encoding/json"

// TimeSignature is a meter change
type TimeSignature struct {
	Date        float64 `json:"date"`
	Numerator   int     `json:"numerator"`
	Denominator int     `json:"denominator"`
	ID          string  `json:"id,omitempty"`
}

// When implements Dated
func (t *TimeSignature) When() float64 { return t.Date }

// MeasureTicks returns the length of one measure in ticks
func (t *TimeSignature) MeasureTicks(ppq int) float64 {
	if t == nil || t.Denominator == 0 {
		return 4 * float64(ppq)
	}
	return 4 * float64(ppq) * float64(t.Numerator) / float64(t.Denominator)
}

// BeatTicks returns the length of one beat in ticks
func (t *TimeSignature) BeatTicks(ppq int) float64 {
	if t == nil || t.Denominator == 0 {
		return float64(ppq)
	}
	return 4 * float64(ppq) / float64(t.Denominator)
}

// KeyAccidental alters one pitch class; Octave -1 applies to every octave
type KeyAccidental struct {
	PitchName string  `json:"pitchName"`
	Octave    int     `json:"octave"`
	Value     float64 `json:"value"`
}

// KeySignature is a key change
type KeySignature struct {
	Date        float64         `json:"date"`
	Accidentals []KeyAccidental `json:"accidentals"`
	ID          string          `json:"id,omitempty"`
}

// When implements Dated
func (k *KeySignature) When() float64 { return k.Date }

// Lookup returns the accidental the signature applies to a pitch name in an octave
func (k *KeySignature) Lookup(pname string, oct int) (float64, bool) {
	if k == nil {
		return 0, false
	}
	for _, a := range k.Accidentals {
		if a.PitchName == pname && (a.Octave < 0 || a.Octave == oct) {
			return a.Value, true
		}
	}
	return 0, false
}

// Marker is a named point in time
type Marker struct {
	Date    float64 `json:"date"`
	ID      string  `json:"id"`
	Message string  `json:"message"`
}

// When implements Dated
func (m *Marker) When() float64 { return m.Date }

// Section spans a formal section of the movement
type Section struct {
	Date  float64 `json:"date"`
	End   float64 `json:"end"`
	ID    string  `json:"id,omitempty"`
	Label string  `json:"label,omitempty"`
}

// When implements Dated
func (s *Section) When() float64 { return s.Date }

// Phrase spans a phrase or slur; End is -1 while unresolved
type Phrase struct {
	Date   float64  `json:"date"`
	End    float64  `json:"end"`
	ID     string   `json:"id,omitempty"`
	Label  string   `json:"label,omitempty"`
	Slur   bool     `json:"slur,omitempty"`
	Layers []string `json:"layers,omitempty"`
}

// When implements Dated
func (p *Phrase) When() float64 { return p.Date }

// Pedal is a pedal action (down, up, half, bounce)
type Pedal struct {
	Date   float64 `json:"date"`
	End    float64 `json:"end,omitempty"`
	ID     string  `json:"id,omitempty"`
	Action string  `json:"action"`
}

// When implements Dated
func (p *Pedal) When() float64 { return p.Date }

// ScoreEntry is a note or rest in a part's score
type ScoreEntry interface {
	Dated
	EntryID() string
	Span() float64
	LayerID() string
	shifted(date float64, id string) ScoreEntry
}

// Note is a sounding event
type Note struct {
	ID          string  `json:"id,omitempty"`
	Date        float64 `json:"date"`
	Duration    float64 `json:"duration"`
	MidiPitch   float64 `json:"midiPitch"`
	PitchName   string  `json:"pitchName"`
	Accidentals float64 `json:"accidentals"`
	Octave      int     `json:"octave"`
	Lyrics      string  `json:"lyrics,omitempty"`
	Layer       string  `json:"layer,omitempty"`
	Tie         string  `json:"tie,omitempty"`
}

// When implements Dated
func (n *Note) When() float64 { return n.Date }

// EntryID returns the note id
func (n *Note) EntryID() string { return n.ID }

// Span returns the duration
func (n *Note) Span() float64 { return n.Duration }

// LayerID returns the bookkeeping layer
func (n *Note) LayerID() string { return n.Layer }

func (n *Note) shifted(date float64, id string) ScoreEntry {
	cp := *n
	cp.Date = date
	cp.ID = id
	return &cp
}

// MarshalJSON tags the entry as a note
func (n *Note) MarshalJSON() ([]byte, error) {
	type plain Note
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{"note", (*plain)(n)})
}

// Rest is a silent event
type Rest struct {
	ID       string  `json:"id,omitempty"`
	Date     float64 `json:"date"`
	Duration float64 `json:"duration"`
	Layer    string  `json:"layer,omitempty"`
}

// When implements Dated
func (r *Rest) When() float64 { return r.Date }

// EntryID returns the rest id
func (r *Rest) EntryID() string { return r.ID }

// Span returns the duration
func (r *Rest) Span() float64 { return r.Duration }

// LayerID returns the bookkeeping layer
func (r *Rest) LayerID() string { return r.Layer }

func (r *Rest) shifted(date float64, id string) ScoreEntry {
	cp := *r
	cp.Date = date
	cp.ID = id
	return &cp
}

// MarshalJSON tags the entry as a rest
func (r *Rest) MarshalJSON() ([]byte, error) {
	type plain Rest
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{"rest", (*plain)(r)})
}

// Shift returns a copy of e moved to date with the given id
func Shift(e ScoreEntry, date float64, id string) ScoreEntry {
	return e.shifted(date, id)
}

// DefaultDuration is a dur.default declaration; empty Layers means every layer
type DefaultDuration struct {
	Date   float64  `json:"date"`
	Value  string   `json:"value"`
	Layers []string `json:"layers,omitempty"`
}

// When implements Dated
func (d *DefaultDuration) When() float64 { return d.Date }

// DefaultOctave is an oct.default declaration
type DefaultOctave struct {
	Date   float64  `json:"date"`
	Value  int      `json:"value"`
	Layers []string `json:"layers,omitempty"`
}

// When implements Dated
func (d *DefaultOctave) When() float64 { return d.Date }

// Transposition shifts pitches by Semitones. Additive ones (octave lines) stack on top of
// the latest plain one and stay active until End; End is -1 while unresolved.
type Transposition struct {
	Date      float64  `json:"date"`
	End       float64  `json:"end"`
	Semitones float64  `json:"semitones"`
	Additive  bool     `json:"additive,omitempty"`
	ID        string   `json:"id,omitempty"`
	Layers    []string `json:"layers,omitempty"`
}

// When implements Dated
func (t *Transposition) When() float64 { return t.Date }

// ActiveAt reports whether an additive transposition covers date
func (t *Transposition) ActiveAt(date float64) bool {
	return t.Date <= date && (t.End < 0 || date < t.End)
}

// AppliesTo reports whether an entry scoped to layers affects layer
func AppliesTo(layers []string, layer string) bool {
	if len(layers) == 0 {
		return true
	}
	for _, l := range layers {
		if l == layer {
			return true
		}
	}
	return false
}
