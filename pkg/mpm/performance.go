// Package mpm holds the Performance model: expressive dynamics, tempo, articulation and
// ornamentation maps parallel to a Movement, plus the style vocabularies they refer to.
package mpm

import (
	"github.com/james-see/mei2perf/pkg/msm"
)

// Region is a set of performance maps, either global or part-local
type Region struct {
	Dynamics      *msm.Map[*Dynamics]     `json:"dynamics,omitempty"`
	Tempo         *msm.Map[*Tempo]        `json:"tempo,omitempty"`
	Articulation  *msm.Map[*Articulation] `json:"articulation,omitempty"`
	Ornamentation *msm.Map[*Ornament]     `json:"ornamentation,omitempty"`
}

// NewRegion creates a region with every map allocated
func NewRegion() *Region {
	return &Region{
		Dynamics:      msm.NewMap[*Dynamics](),
		Tempo:         msm.NewMap[*Tempo](),
		Articulation:  msm.NewMap[*Articulation](),
		Ornamentation: msm.NewMap[*Ornament](),
	}
}

// Part holds the performance maps of one part
type Part struct {
	Name        string  `json:"name"`
	Number      int     `json:"number"`
	MidiChannel int     `json:"midiChannel"`
	MidiPort    int     `json:"midiPort"`
	ID          string  `json:"id,omitempty"`
	Dated       *Region `json:"dated"`
}

// Performance is the expressive model of one movement
type Performance struct {
	Name     string    `json:"name"`
	ID       string    `json:"id"`
	PPQ      int       `json:"ppq"`
	Header   *Header   `json:"header"`
	Global   *Region   `json:"global"`
	Parts    []*Part   `json:"parts"`
	Metadata *Metadata `json:"metadata"`
}

// NewPerformance creates an empty performance
func NewPerformance(name, id string, ppq int) *Performance {
	return &Performance{
		Name:     name,
		ID:       id,
		PPQ:      ppq,
		Header:   &Header{},
		Global:   NewRegion(),
		Metadata: &Metadata{},
	}
}

// AddPart creates and appends a part
func (p *Performance) AddPart(name string, number, channel, port int, id string) *Part {
	part := &Part{
		Name:        name,
		Number:      number,
		MidiChannel: channel,
		MidiPort:    port,
		ID:          id,
		Dated:       NewRegion(),
	}
	p.Parts = append(p.Parts, part)
	return part
}

// Part returns the part with the given number or nil
func (p *Performance) Part(number int) *Part {
	for _, part := range p.Parts {
		if part.Number == number {
			return part
		}
	}
	return nil
}

// Regions returns the global region followed by every part region
func (p *Performance) Regions() []*Region {
	out := []*Region{p.Global}
	for _, part := range p.Parts {
		out = append(out, part.Dated)
	}
	return out
}

// ApplySegments lays the performance out along the segments a Movement was played through,
// renaming note references the same way the Movement renamed repeated notes
func (p *Performance) ApplySegments(segments []msm.Segment) {
	for _, r := range p.Regions() {
		r.Dynamics = msm.Expand(r.Dynamics, segments, func(e *Dynamics, date float64, pass int) (*Dynamics, bool) {
			cp := *e
			if cp.End >= 0 {
				cp.End += date - e.Date
			}
			cp.Date, cp.ID, cp.NoteID = date, msm.RepeatedID(e.ID, pass), msm.RepeatedID(e.NoteID, pass)
			return &cp, true
		})
		r.Tempo = msm.Expand(r.Tempo, segments, func(e *Tempo, date float64, pass int) (*Tempo, bool) {
			cp := *e
			if cp.End >= 0 {
				cp.End += date - e.Date
			}
			cp.Date, cp.ID, cp.NoteID = date, msm.RepeatedID(e.ID, pass), msm.RepeatedID(e.NoteID, pass)
			return &cp, true
		})
		r.Articulation = msm.Expand(r.Articulation, segments, func(e *Articulation, date float64, pass int) (*Articulation, bool) {
			cp := *e
			cp.Date, cp.ID, cp.NoteID = date, msm.RepeatedID(e.ID, pass), msm.RepeatedID(e.NoteID, pass)
			return &cp, true
		})
		r.Ornamentation = msm.Expand(r.Ornamentation, segments, func(e *Ornament, date float64, pass int) (*Ornament, bool) {
			cp := *e
			if cp.End >= 0 {
				cp.End += date - e.Date
			}
			cp.Date, cp.ID, cp.NoteID = date, msm.RepeatedID(e.ID, pass), msm.RepeatedID(e.NoteID, pass)
			if len(e.NoteOrder) > 0 {
				cp.NoteOrder = make([]string, len(e.NoteOrder))
				for i, id := range e.NoteOrder {
					cp.NoteOrder[i] = msm.RepeatedID(id, pass)
				}
			}
			return &cp, true
		})
	}
}

// Cleanup drops empty maps
func (p *Performance) Cleanup() {
	for _, r := range p.Regions() {
		if r.Dynamics.Len() == 0 {
			r.Dynamics = nil
		}
		if r.Tempo.Len() == 0 {
			r.Tempo = nil
		}
		if r.Articulation.Len() == 0 {
			r.Articulation = nil
		}
		if r.Ornamentation.Len() == 0 {
			r.Ornamentation = nil
		}
	}
}

// Author is a person credited in the metadata
type Author struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Resource is a file or document the performance relates to
type Resource struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// Metadata is filled in by the caller
type Metadata struct {
	Authors          []Author   `json:"authors,omitempty"`
	Comments         []string   `json:"comments,omitempty"`
	RelatedResources []Resource `json:"relatedResources,omitempty"`
}

// AddAuthor appends an author
func (m *Metadata) AddAuthor(name, id string) {
	m.Authors = append(m.Authors, Author{Name: name, ID: id})
}

// AddComment appends a comment
func (m *Metadata) AddComment(text string) {
	m.Comments = append(m.Comments, text)
}

// AddRelatedResource appends a resource reference
func (m *Metadata) AddRelatedResource(uri, kind string) {
	m.RelatedResources = append(m.RelatedResources, Resource{URI: uri, Type: kind})
}
