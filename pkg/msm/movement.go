// Package msm holds the Movement model: parts, their notes and rests, and the dated maps
// (meter, key, markers, sequencing, sections, phrases, pedals) of one musical division.
package msm

// Misc holds conversion bookkeeping that Cleanup strips
type Misc struct {
	DurationDefaults *Map[*DefaultDuration] `json:"durationDefaults,omitempty"`
	OctaveDefaults   *Map[*DefaultOctave]   `json:"octaveDefaults,omitempty"`
	Transpositions   *Map[*Transposition]   `json:"transpositions,omitempty"`
}

// NewMisc creates empty bookkeeping maps
func NewMisc() *Misc {
	return &Misc{
		DurationDefaults: NewMap[*DefaultDuration](),
		OctaveDefaults:   NewMap[*DefaultOctave](),
		Transpositions:   NewMap[*Transposition](),
	}
}

// Region is a set of dated maps, either global or part-local
type Region struct {
	TimeSignatures *Map[*TimeSignature]    `json:"timeSignatures,omitempty"`
	KeySignatures  *Map[*KeySignature]     `json:"keySignatures,omitempty"`
	Markers        *Map[*Marker]           `json:"markers,omitempty"`
	Sequencing     *Map[SequencingCommand] `json:"sequencing,omitempty"`
	Sections       *Map[*Section]          `json:"sections,omitempty"`
	Phrases        *Map[*Phrase]           `json:"phrases,omitempty"`
	Pedals         *Map[*Pedal]            `json:"pedals,omitempty"`
	Misc           *Misc                   `json:"misc,omitempty"`
}

// NewRegion creates a region with every map allocated
func NewRegion() *Region {
	return &Region{
		TimeSignatures: NewMap[*TimeSignature](),
		KeySignatures:  NewMap[*KeySignature](),
		Markers:        NewMap[*Marker](),
		Sequencing:     NewMap[SequencingCommand](),
		Sections:       NewMap[*Section](),
		Phrases:        NewMap[*Phrase](),
		Pedals:         NewMap[*Pedal](),
		Misc:           NewMisc(),
	}
}

// Part is one instrumental voice group
type Part struct {
	Name        string           `json:"name"`
	Number      int              `json:"number"`
	MidiChannel int              `json:"midiChannel"`
	MidiPort    int              `json:"midiPort"`
	ID          string           `json:"id,omitempty"`
	Dated       *Region          `json:"dated"`
	Score       *Map[ScoreEntry] `json:"score"`
}

// NewPart creates an empty part
func NewPart(name string, number, channel, port int, id string) *Part {
	return &Part{
		Name:        name,
		Number:      number,
		MidiChannel: channel,
		MidiPort:    port,
		ID:          id,
		Dated:       NewRegion(),
		Score:       NewMap[ScoreEntry](),
	}
}

// Notes returns the notes of the part's score in order
func (p *Part) Notes() []*Note {
	var out []*Note
	for _, e := range p.Score.Entries() {
		if n, ok := e.(*Note); ok {
			out = append(out, n)
		}
	}
	return out
}

// Rests returns the rests of the part's score in order
func (p *Part) Rests() []*Rest {
	var out []*Rest
	for _, e := range p.Score.Entries() {
		if r, ok := e.(*Rest); ok {
			out = append(out, r)
		}
	}
	return out
}

// Movement is the note-event timeline of one musical division
type Movement struct {
	Title  string  `json:"title"`
	ID     string  `json:"id"`
	PPQ    int     `json:"ppq"`
	Global *Region `json:"global"`
	Parts  []*Part `json:"parts"`
}

// NewMovement creates an empty movement
func NewMovement(title, id string, ppq int) *Movement {
	return &Movement{
		Title:  title,
		ID:     id,
		PPQ:    ppq,
		Global: NewRegion(),
	}
}

// AddPart appends a part
func (m *Movement) AddPart(p *Part) {
	m.Parts = append(m.Parts, p)
}

// Part returns the part with the given number or nil
func (m *Movement) Part(number int) *Part {
	for _, p := range m.Parts {
		if p.Number == number {
			return p
		}
	}
	return nil
}

// TimeSignatureAt returns the effective time signature of a part (nil for global) at date.
// A local signature wins when it is not older than the latest global one.
func (m *Movement) TimeSignatureAt(p *Part, date float64) *TimeSignature {
	global, gok := m.Global.TimeSignatures.LastBefore(date)
	if p != nil {
		if local, ok := p.Dated.TimeSignatures.LastBefore(date); ok && (!gok || local.Date >= global.Date) {
			return local
		}
	}
	if gok {
		return global
	}
	return nil
}

// Duration returns the end date of the latest score entry
func (m *Movement) Duration() float64 {
	end := 0.0
	for _, p := range m.Parts {
		for _, e := range p.Score.Entries() {
			if d := e.When() + e.Span(); d > end {
				end = d
			}
		}
	}
	return end
}

// ResolveSequencing lays the movement out through its gotos. Repeated entries get
// rep<N>_ ids, the sequencing maps are emptied and the played segments are returned
// so parallel models can follow.
func (m *Movement) ResolveSequencing() []Segment {
	segments := Playback(m.Global.Sequencing)
	if len(segments) == 1 && segments[0].Offset == 0 && segments[0].From == 0 {
		m.Global.Sequencing = NewMap[SequencingCommand]()
		for _, p := range m.Parts {
			p.Dated.Sequencing = NewMap[SequencingCommand]()
		}
		return segments
	}

	expandRegion(m.Global, segments)
	for _, p := range m.Parts {
		expandRegion(p.Dated, segments)
		p.Score = Expand(p.Score, segments, func(e ScoreEntry, date float64, pass int) (ScoreEntry, bool) {
			return Shift(e, date, RepeatedID(e.EntryID(), pass)), true
		})
	}
	return segments
}

func expandRegion(r *Region, segments []Segment) {
	if r == nil {
		return
	}
	r.TimeSignatures = Expand(r.TimeSignatures, segments, func(e *TimeSignature, date float64, pass int) (*TimeSignature, bool) {
		cp := *e
		cp.Date, cp.ID = date, RepeatedID(e.ID, pass)
		return &cp, true
	})
	r.KeySignatures = Expand(r.KeySignatures, segments, func(e *KeySignature, date float64, pass int) (*KeySignature, bool) {
		cp := *e
		cp.Date, cp.ID = date, RepeatedID(e.ID, pass)
		return &cp, true
	})
	r.Markers = Expand(r.Markers, segments, func(e *Marker, date float64, pass int) (*Marker, bool) {
		cp := *e
		cp.Date, cp.ID = date, RepeatedID(e.ID, pass)
		return &cp, true
	})
	r.Sections = Expand(r.Sections, segments, func(e *Section, date float64, pass int) (*Section, bool) {
		cp := *e
		cp.End += date - e.Date
		cp.Date, cp.ID = date, RepeatedID(e.ID, pass)
		return &cp, true
	})
	r.Phrases = Expand(r.Phrases, segments, func(e *Phrase, date float64, pass int) (*Phrase, bool) {
		cp := *e
		if cp.End >= 0 {
			cp.End += date - e.Date
		}
		cp.Date, cp.ID = date, RepeatedID(e.ID, pass)
		return &cp, true
	})
	r.Pedals = Expand(r.Pedals, segments, func(e *Pedal, date float64, pass int) (*Pedal, bool) {
		cp := *e
		if cp.End > 0 {
			cp.End += date - e.Date
		}
		cp.Date, cp.ID = date, RepeatedID(e.ID, pass)
		return &cp, true
	})
	r.Sequencing = NewMap[SequencingCommand]()
	r.Misc = nil
}

// Cleanup strips conversion bookkeeping: misc maps, note layers and ties, goto numbering
// and empty maps
func (m *Movement) Cleanup() {
	cleanRegion(m.Global)
	for _, p := range m.Parts {
		cleanRegion(p.Dated)
		for _, e := range p.Score.Entries() {
			switch v := e.(type) {
			case *Note:
				v.Layer, v.Tie = "", ""
			case *Rest:
				v.Layer = ""
			}
		}
	}
}

func cleanRegion(r *Region) {
	if r == nil {
		return
	}
	r.Misc = nil
	for _, g := range Gotos(r.Sequencing) {
		g.N, g.First = 0, false
	}
	if r.TimeSignatures.Len() == 0 {
		r.TimeSignatures = nil
	}
	if r.KeySignatures.Len() == 0 {
		r.KeySignatures = nil
	}
	if r.Markers.Len() == 0 {
		r.Markers = nil
	}
	if r.Sequencing.Len() == 0 {
		r.Sequencing = nil
	}
	if r.Sections.Len() == 0 {
		r.Sections = nil
	}
	if r.Phrases.Len() == 0 {
		r.Phrases = nil
	}
	if r.Pedals.Len() == 0 {
		r.Pedals = nil
	}
}
