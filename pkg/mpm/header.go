package mpm

import (
	"fmt"
	"strings"
)

// DefaultStyle names the style that converted definitions are collected in
const DefaultStyle = "MEI export"

// Kind selects one of the header's style vocabularies
type Kind int

const (
	KindArticulation Kind = iota
	KindDynamics
	KindTempo
	KindOrnamentation
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindArticulation:
		return "articulation"
	case KindDynamics:
		return "dynamics"
	case KindTempo:
		return "tempo"
	case KindOrnamentation:
		return "ornamentation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Definition is one named entry of a style vocabulary. Value is the volume of a dynamics
// definition or the bpm of a tempo definition.
type Definition struct {
	Name             string  `json:"name"`
	Value            float64 `json:"value,omitempty"`
	RelativeDuration float64 `json:"relativeDuration,omitempty"`
	RelativeVelocity float64 `json:"relativeVelocity,omitempty"`
}

// Style is a named vocabulary of definitions
type Style struct {
	Name        string        `json:"name"`
	Definitions []*Definition `json:"definitions"`
}

// Definition returns the named definition or nil
func (s *Style) Definition(name string) *Definition {
	for _, d := range s.Definitions {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Header holds the style vocabularies shared by a performance; they fill up lazily
type Header struct {
	ArticulationStyles  []*Style `json:"articulationStyles,omitempty"`
	DynamicsStyles      []*Style `json:"dynamicsStyles,omitempty"`
	TempoStyles         []*Style `json:"tempoStyles,omitempty"`
	OrnamentationStyles []*Style `json:"ornamentationStyles,omitempty"`
}

func (h *Header) styles(kind Kind) *[]*Style {
	switch kind {
	case KindDynamics:
		return &h.DynamicsStyles
	case KindTempo:
		return &h.TempoStyles
	case KindOrnamentation:
		return &h.OrnamentationStyles
	default:
		return &h.ArticulationStyles
	}
}

// Style returns the named style of a kind, creating it on first use
func (h *Header) Style(kind Kind, name string) *Style {
	list := h.styles(kind)
	for _, s := range *list {
		if s.Name == name {
			return s
		}
	}
	s := &Style{Name: name}
	*list = append(*list, s)
	return s
}

// Lookup returns a definition without creating anything
func (h *Header) Lookup(kind Kind, style, name string) *Definition {
	for _, s := range *h.styles(kind) {
		if s.Name == style {
			return s.Definition(name)
		}
	}
	return nil
}

// Define returns the named definition of a style, creating style and definition on first use.
// init fills in a new definition and is not called for existing ones.
func (h *Header) Define(kind Kind, style, name string, init func(d *Definition)) *Definition {
	s := h.Style(kind, style)
	if d := s.Definition(name); d != nil {
		return d
	}
	d := &Definition{Name: name}
	if init != nil {
		init(d)
	}
	s.Definitions = append(s.Definitions, d)
	return d
}

// dynamicsVolumes maps dynamics marks to MIDI-style volumes
var dynamicsVolumes = map[string]float64{
	"pppp": 8,
	"ppp":  16,
	"pp":   33,
	"p":    49,
	"mp":   64,
	"mf":   80,
	"f":    96,
	"ff":   112,
	"fff":  127,
	"ffff": 127,
	"sf":   110,
	"sfz":  115,
	"sffz": 120,
	"fz":   110,
	"rfz":  105,
	"fp":   96,
}

// DynamicsVolume returns the volume of a dynamics mark
func DynamicsVolume(mark string) (float64, bool) {
	v, ok := dynamicsVolumes[strings.ToLower(strings.TrimSpace(mark))]
	return v, ok
}

// tempoWords maps common tempo indications to bpm
var tempoWords = []struct {
	word string
	bpm  float64
}{
	{"larghissimo", 24},
	{"grave", 35},
	{"largo", 50},
	{"lento", 55},
	{"larghetto", 63},
	{"adagietto", 75},
	{"adagio", 70},
	{"andantino", 95},
	{"andante", 90},
	{"moderato", 110},
	{"allegretto", 115},
	{"allegro", 130},
	{"vivace", 160},
	{"presto", 180},
	{"prestissimo", 200},
}

// TempoWordBpm returns the bpm of the first known tempo word contained in text
func TempoWordBpm(text string) (float64, string, bool) {
	lower := strings.ToLower(text)
	for _, w := range tempoWords {
		if strings.Contains(lower, w.word) {
			return w.bpm, w.word, true
		}
	}
	return 0, "", false
}

// articulationDefaults gives duration and velocity factors of known articulations
var articulationDefaults = map[string]Definition{
	"acc":        {RelativeDuration: 1, RelativeVelocity: 1.2},
	"marc":       {RelativeDuration: 0.8, RelativeVelocity: 1.3},
	"stacc":      {RelativeDuration: 0.5, RelativeVelocity: 1},
	"stacciss":   {RelativeDuration: 0.25, RelativeVelocity: 1},
	"spicc":      {RelativeDuration: 0.3, RelativeVelocity: 1},
	"ten":        {RelativeDuration: 1, RelativeVelocity: 1},
	"ten-stacc":  {RelativeDuration: 0.75, RelativeVelocity: 1},
	"marc-stacc": {RelativeDuration: 0.5, RelativeVelocity: 1.3},
	"acc-stacc":  {RelativeDuration: 0.5, RelativeVelocity: 1.2},
	"legato":     {RelativeDuration: 1.05, RelativeVelocity: 1},
	"portato":    {RelativeDuration: 0.8, RelativeVelocity: 1},
	"sfz":        {RelativeDuration: 1, RelativeVelocity: 1.4},
}

// InitArticulation fills in the factors of a known articulation, defaulting to neutral ones
func InitArticulation(d *Definition) {
	if def, ok := articulationDefaults[d.Name]; ok {
		d.RelativeDuration = def.RelativeDuration
		d.RelativeVelocity = def.RelativeVelocity
		return
	}
	d.RelativeDuration = 1
	d.RelativeVelocity = 1
}
