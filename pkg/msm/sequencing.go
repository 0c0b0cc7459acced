package msm

import (
	"encoding/json"
	"math"
	"strconv"
)

// SequencingCommand is a marker or a goto in the sequencing map
type SequencingCommand interface {
	Dated
	sequencing()
}

func (m *Marker) sequencing() {}

// Goto is a conditional jump. Activity is read one character per pass: '1' jumps, anything
// else (or running past the end) falls through.
type Goto struct {
	Date       float64 `json:"date"`
	Activity   string  `json:"activity"`
	TargetDate float64 `json:"targetDate"`
	TargetID   string  `json:"targetId"`
	ID         string  `json:"id,omitempty"`
	// N is the ending number the goto was compiled from, First marks a provisional first-ending goto
	N     int  `json:"n,omitempty"`
	First bool `json:"first,omitempty"`
}

// When implements Dated
func (g *Goto) When() float64 { return g.Date }

func (g *Goto) sequencing() {}

// IsActive reports whether the goto fires on the given pass (0-based)
func (g *Goto) IsActive(pass int) bool {
	return pass >= 0 && pass < len(g.Activity) && g.Activity[pass] == '1'
}

// MarshalJSON tags the entry as a goto
func (g *Goto) MarshalJSON() ([]byte, error) {
	type plain Goto
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{"goto", (*plain)(g)})
}

// Gotos returns the gotos of a sequencing map in order
func Gotos(m *Map[SequencingCommand]) []*Goto {
	var out []*Goto
	for _, e := range m.Entries() {
		if g, ok := e.(*Goto); ok {
			out = append(out, g)
		}
	}
	return out
}

// Markers returns the markers of a sequencing map in order
func Markers(m *Map[SequencingCommand]) []*Marker {
	var out []*Marker
	for _, e := range m.Entries() {
		if mk, ok := e.(*Marker); ok {
			out = append(out, mk)
		}
	}
	return out
}

// Segment is one stretch of source time [From, To) played back shifted by Offset
type Segment struct {
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Offset float64 `json:"offset"`
}

// Contains reports whether date lies in the segment
func (s Segment) Contains(date float64) bool {
	return date >= s.From && date < s.To
}

// Playback follows the gotos of a sequencing map and returns the played segments in order.
// Every evaluation of a goto consumes one activity slot, so playback always terminates.
func Playback(m *Map[SequencingCommand]) []Segment {
	gotos := Gotos(m)
	if len(gotos) == 0 {
		return []Segment{{From: 0, To: math.Inf(1)}}
	}

	passes := make([]int, len(gotos))
	var segments []Segment
	current, offset := 0.0, 0.0

	for {
		fired := -1
		for i, g := range gotos {
			if g.Date < current {
				continue
			}
			pass := passes[i]
			passes[i]++
			if g.IsActive(pass) {
				fired = i
				break
			}
		}
		if fired < 0 {
			segments = append(segments, Segment{From: current, To: math.Inf(1), Offset: offset})
			return segments
		}

		g := gotos[fired]
		if g.Date > current {
			segments = append(segments, Segment{From: current, To: g.Date, Offset: offset})
		}
		offset += g.Date - g.TargetDate
		current = g.TargetDate
	}
}

// Expand lays the entries of m out along segments. clone receives the entry, its new date
// and how many earlier segments already played it; it returns false to drop the entry.
func Expand[T Dated](m *Map[T], segments []Segment, clone func(e T, date float64, pass int) (T, bool)) *Map[T] {
	out := NewMap[T]()
	if m == nil {
		return out
	}
	for si, s := range segments {
		for _, e := range m.Between(s.From, s.To) {
			pass := 0
			for _, prev := range segments[:si] {
				if prev.Contains(e.When()) {
					pass++
				}
			}
			if c, ok := clone(e, e.When()+s.Offset, pass); ok {
				out.Add(c)
			}
		}
	}
	return out
}

// RepeatedID names the pass-th repetition of an id
func RepeatedID(id string, pass int) string {
	if id == "" || pass == 0 {
		return id
	}
	return "rep" + strconv.Itoa(pass) + "_" + id
}
