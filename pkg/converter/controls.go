package converter

import (
	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/msm"
)

// octaveShifts maps the dis attribute of an octave line to semitones
var octaveShifts = map[string]float64{
	"8":  12,
	"15": 24,
	"22": 36,
}

// processOctave turns an octave line into an additive transposition over its span
func (s *session) processOctave(e *xmlquery.Node) {
	shift, ok := octaveShifts[mei.AttrOr(e, "dis", "")]
	if !ok {
		s.warn("octave needs dis 8, 15 or 22", e)
		return
	}
	switch mei.AttrOr(e, "dis.place", "") {
	case "above":
	case "below":
		shift = -shift
	default:
		s.warn("octave needs dis.place above or below", e)
		return
	}

	date := s.startDate(e)
	p := s.controlPart(e)
	transpositions := s.region(p).Misc.Transpositions
	t := &msm.Transposition{
		Date:      date,
		End:       -1,
		Semitones: shift,
		Additive:  true,
		ID:        mei.ID(e),
		Layers:    s.controlLayers(e),
	}
	finish := func(end float64) { t.End = end }
	drop := func() {
		transpositions.Remove(func(x *msm.Transposition) bool { return x == t })
	}
	if !s.scheduleEnd(e, date, false, finish, drop) {
		s.warn("octave has no end", e)
		return
	}
	transpositions.Add(t)
}

// pedalActions are the values of a pedal's dir attribute
var pedalActions = map[string]bool{
	"down":   true,
	"up":     true,
	"half":   true,
	"bounce": true,
}

func (s *session) processPedal(e *xmlquery.Node) {
	dir := mei.AttrOr(e, "dir", "")
	if !pedalActions[dir] {
		s.warn("pedal needs dir", e)
		return
	}
	date := s.startDate(e)

	pedals := s.region(s.controlPart(e)).Pedals
	pedal := &msm.Pedal{Date: date, ID: mei.ID(e), Action: dir}
	pedals.Add(pedal)
	drop := func() {
		pedals.Remove(func(x *msm.Pedal) bool { return x == pedal })
	}
	s.scheduleEnd(e, date, false, func(end float64) { pedal.End = end }, drop)
}

// processPhrase records a phrase or slur; slurs end where their last note starts
func (s *session) processPhrase(e *xmlquery.Node) {
	date := s.startDate(e)
	slur := mei.Name(e) == "slur"
	phrases := s.region(s.controlPart(e)).Phrases
	phrase := &msm.Phrase{
		Date:   date,
		End:    -1,
		ID:     mei.ID(e),
		Label:  mei.AttrOr(e, "label", mei.AttrOr(e, "n", "")),
		Slur:   slur,
		Layers: s.controlLayers(e),
	}
	finish := func(end float64) { phrase.End = end }
	drop := func() {
		phrases.Remove(func(x *msm.Phrase) bool { return x == phrase })
	}
	if !s.scheduleEnd(e, date, slur, finish, drop) {
		s.warn(mei.Name(e)+" has no end", e)
		return
	}
	phrases.Add(phrase)
	if !slur {
		s.convert(e)
	}
}

// processReh places a rehearsal mark as a marker
func (s *session) processReh(e *xmlquery.Node) {
	date := s.startDate(e)
	id := mei.ID(e)
	if id == "" {
		id = mei.NewID()
	}
	s.region(s.part).Markers.Add(&msm.Marker{Date: date, ID: id, Message: mei.Text(e)})
}

// processAccid records a stand-alone accidental for the rest of the measure
func (s *session) processAccid(e *xmlquery.Node) {
	if mei.Ancestor(e, "note") != nil {
		return
	}
	pname, ok := mei.Attr(e, "ploc")
	if !ok {
		s.warn("accid needs ploc", e)
		return
	}
	value := mei.AttrOr(e, "accid.ges", mei.AttrOr(e, "accid", ""))
	if _, ok := accidValue(value); !ok {
		s.warn("invalid accid", e)
		return
	}
	oct, err := parseInt(mei.AttrOr(e, "oloc", ""))
	if err != nil {
		s.warn("accid needs oloc", e)
		return
	}
	s.accids = append(s.accids, accidental{pname: pname, oct: oct, value: value})
}
