package mpm

// Dynamics is a loudness instruction. A continuous entry moves from Volume towards
// TransitionTo until the next entry; End is -1 when no explicit end was given.
type Dynamics struct {
	Date         float64  `json:"date"`
	End          float64  `json:"end"`
	Volume       float64  `json:"volume"`
	TransitionTo *float64 `json:"transitionTo,omitempty"`
	Continuous   bool     `json:"continuous,omitempty"`
	Name         string   `json:"name,omitempty"`
	Style        string   `json:"style,omitempty"`
	NoteID       string   `json:"noteId,omitempty"`
	ID           string   `json:"id,omitempty"`
}

// When implements msm.Dated
func (d *Dynamics) When() float64 { return d.Date }

// Tempo is a tempo instruction; BeatLength is the beat as a fraction of a whole note
type Tempo struct {
	Date         float64  `json:"date"`
	End          float64  `json:"end"`
	Bpm          float64  `json:"bpm"`
	BeatLength   float64  `json:"beatLength"`
	TransitionTo *float64 `json:"transitionTo,omitempty"`
	Continuous   bool     `json:"continuous,omitempty"`
	Name         string   `json:"name,omitempty"`
	Style        string   `json:"style,omitempty"`
	NoteID       string   `json:"noteId,omitempty"`
	ID           string   `json:"id,omitempty"`
}

// When implements msm.Dated
func (t *Tempo) When() float64 { return t.Date }

// Articulation applies a named articulation definition to a note
type Articulation struct {
	Date   float64 `json:"date"`
	Name   string  `json:"name"`
	Style  string  `json:"style,omitempty"`
	NoteID string  `json:"noteId,omitempty"`
	ID     string  `json:"id,omitempty"`
}

// When implements msm.Dated
func (a *Articulation) When() float64 { return a.Date }

// Ornament is a trill, mordent, turn or arpeggio. NoteIDs holds the referenced notes or
// chords until NoteOrder is finalized; End is -1 when no explicit end was given.
type Ornament struct {
	Date       float64  `json:"date"`
	End        float64  `json:"end"`
	Name       string   `json:"name"`
	Style      string   `json:"style,omitempty"`
	NoteID     string   `json:"noteId,omitempty"`
	NoteIDs    []string `json:"-"`
	NoteOrder  []string `json:"noteOrder,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	ID         string   `json:"id,omitempty"`
}

// When implements msm.Dated
func (o *Ornament) When() float64 { return o.Date }
