package converter

import (
	"math"

	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/msm"
)

// durationKinds are the elements computeDuration knows how to measure
var durationKinds = map[string]bool{
	"bTrem":    true,
	"chord":    true,
	"fTrem":    true,
	"halfmRpt": true,
	"mRest":    true,
	"mSpace":   true,
	"note":     true,
	"octave":   true,
	"rest":     true,
	"space":    true,
	"tuplet":   true,
}

// chordKinds are containers whose events sound simultaneously
var chordKinds = []string{"chord", "bTrem", "fTrem"}

// computeDuration returns the duration of e in ticks, or 0 when it cannot be determined
func (s *session) computeDuration(e *xmlquery.Node) float64 {
	if !durationKinds[mei.Name(e)] {
		return 0
	}

	token, own := s.durationToken(e)
	base := durationTicks(token, s.ppq)
	if base == 0 {
		return 0
	}
	dur := base * dotFactor(s.dots(e, own))

	for t := mei.Ancestor(e, "tuplet"); t != nil; t = mei.Ancestor(t, "tuplet") {
		num, err1 := parseFloat(mei.AttrOr(t, "num", ""))
		numbase, err2 := parseFloat(mei.AttrOr(t, "numbase", ""))
		if err1 != nil || err2 != nil || num == 0 {
			return 0
		}
		dur *= numbase / num
	}

	return dur * s.spanFactor()
}

// durationToken finds the duration token of e and reports whether it is e's own
func (s *session) durationToken(e *xmlquery.Node) (string, bool) {
	for _, attr := range []string{"dur.ges", "dur"} {
		if v, ok := mei.Attr(e, attr); ok && durationDecimal(v) > 0 {
			return v, true
		}
	}
	for c := mei.Ancestor(e, chordKinds...); c != nil; c = mei.Ancestor(c, chordKinds...) {
		if v, ok := mei.Attr(c, "dur"); ok && durationDecimal(v) > 0 {
			return v, false
		}
	}
	return s.defaultDuration(), false
}

// dots counts the augmentation dots of e: its dots attribute, its dot children, or those of
// the enclosing chord when e borrowed the chord's duration
func (s *session) dots(e *xmlquery.Node, own bool) int {
	if v, ok := mei.Attr(e, "dots"); ok {
		if n, err := parseInt(v); err == nil {
			return n
		}
	}
	if n := len(mei.ChildElements(e, "dot")); n > 0 {
		return n
	}
	if own {
		return 0
	}
	if c := mei.Ancestor(e, chordKinds...); c != nil {
		if n, err := parseInt(mei.AttrOr(c, "dots", "")); err == nil {
			return n
		}
	}
	return 0
}

// defaultDuration returns the latest dur.default applying to the current layer
func (s *session) defaultDuration() string {
	now, layer := s.now(), s.layerID()
	keep := func(d *msm.DefaultDuration) bool { return msm.AppliesTo(d.Layers, layer) }
	if s.part != nil {
		if d, ok := s.part.part.Dated.Misc.DurationDefaults.LastMatching(now, keep); ok {
			return d.Value
		}
	}
	if d, ok := s.mv.movement.Global.Misc.DurationDefaults.LastMatching(now, keep); ok {
		return d.Value
	}
	return ""
}

// spanFactor multiplies the tuplet spans covering the current date; expired spans are dropped
func (s *session) spanFactor() float64 {
	if s.part == nil {
		return 1
	}
	now, layer := s.now(), s.layerID()
	factor := 1.0
	kept := s.part.spans[:0]
	for _, sp := range s.part.spans {
		if sp.end >= 0 && sp.end <= now {
			continue
		}
		kept = append(kept, sp)
		if sp.start <= now && msm.AppliesTo(sp.layers, layer) {
			factor *= sp.numbase / sp.num
		}
	}
	s.part.spans = kept
	return factor
}

// eventDuration is the duration a terminator waiting for e adds to the current date
func (s *session) eventDuration(e *xmlquery.Node) float64 {
	switch mei.Name(e) {
	case "chord", "bTrem", "fTrem":
		return s.chordDuration(e)
	default:
		return s.computeDuration(e)
	}
}

// chordDuration is the chord's own duration, else the longest of its events
func (s *session) chordDuration(e *xmlquery.Node) float64 {
	if mei.HasAttr(e, "dur") {
		if d := s.computeDuration(e); d > 0 {
			return d
		}
	}
	longest := 0.0
	for _, c := range mei.Descendants(e, "note", "chord", "rest", "space") {
		longest = math.Max(longest, s.computeDuration(c))
	}
	return longest
}

// controlDuration reads the duration token of a control event
func (s *session) controlDuration(e *xmlquery.Node) float64 {
	dots, _ := parseInt(mei.AttrOr(e, "dots", "0"))
	return durationTicks(mei.AttrOr(e, "dur", ""), s.ppq) * dotFactor(dots)
}

// measureStart returns the start of the current measure, or the current date outside one
func (s *session) measureStart() float64 {
	if s.measure != nil {
		return s.measure.start
	}
	return s.now()
}

// beatDate converts a beat of the measure starting at start into ticks
func (s *session) beatDate(start, beat float64, p *partState) float64 {
	ts := s.mv.movement.TimeSignatureAt(msmPart(p), start)
	return start + math.Max(0, beat-1)*ts.BeatTicks(s.ppq)
}

// startDate returns the date a control event starts at: its tstamp, else the date of its
// startid target, else the current date. Events are moved in front of their startid target
// before the walk, so a target not converted yet starts now.
func (s *session) startDate(e *xmlquery.Node) float64 {
	if v, ok := mei.Attr(e, "tstamp"); ok {
		beat, err := parseFloat(v)
		if err == nil {
			return s.beatDate(s.measureStart(), beat, s.controlPart(e))
		}
		s.warn("invalid tstamp", e)
	}

	if ref, ok := mei.Attr(e, "startid"); ok {
		id := mei.RefID(ref)
		if d, ok := s.mv.dates[id]; ok {
			return d
		}
		if s.mv.index[id] == nil {
			s.warn("startid points to a missing element", e)
		}
	}

	return s.now()
}

// scheduleEnd resolves the end of a control event starting at start through finish, now or
// once the end is reached; drop removes the event if its end never shows up. It reports
// whether the event declares an end at all.
func (s *session) scheduleEnd(e *xmlquery.Node, start float64, slurLike bool, finish func(float64), drop func()) bool {
	if v, ok := mei.Attr(e, "dur"); ok && durationDecimal(v) > 0 {
		finish(start + s.controlDuration(e))
		return true
	}

	if v, ok := mei.Attr(e, "tstamp2"); ok {
		measures, beat, ok := parseMeasureBeat(v)
		if ok {
			p := s.controlPart(e)
			if measures == 0 {
				finish(s.beatDate(s.measureStart(), beat, p))
				return true
			}
			s.mv.byMeasure = append(s.mv.byMeasure, &terminator{
				node:     e,
				measures: measures,
				beat:     beat,
				part:     p,
				finish:   finish,
				drop:     drop,
			})
			return true
		}
		s.warn("invalid tstamp2", e)
	}

	if ref, ok := mei.Attr(e, "endid"); ok {
		id := mei.RefID(ref)
		if d, ok := s.mv.dates[id]; ok {
			if !slurLike {
				d += s.mv.durs[id]
			}
			finish(d)
			return true
		}
		s.mv.byID[id] = append(s.mv.byID[id], &terminator{
			node:     e,
			slurLike: slurLike,
			finish:   finish,
			drop:     drop,
		})
		return true
	}

	return false
}

// resolveTerminators ends every control event waiting for e: at the current date, plus
// e's duration unless the event is slur-like
func (s *session) resolveTerminators(e *xmlquery.Node) {
	id := mei.ID(e)
	if s.mv == nil || id == "" {
		return
	}
	waiting := s.mv.byID[id]
	if len(waiting) == 0 {
		return
	}
	delete(s.mv.byID, id)

	now, dur := s.now(), s.eventDuration(e)
	for _, t := range waiting {
		if t.slurLike {
			t.finish(now)
		} else {
			t.finish(now + dur)
		}
	}
}

// crossBarline counts a measure end for every tstamp2 terminator and resolves those
// whose target measure starts at end
func (s *session) crossBarline(end float64) {
	kept := s.mv.byMeasure[:0]
	for _, t := range s.mv.byMeasure {
		t.measures--
		if t.measures > 0 {
			kept = append(kept, t)
			continue
		}
		t.finish(s.beatDate(end, t.beat, t.part))
	}
	for i := len(kept); i < len(s.mv.byMeasure); i++ {
		s.mv.byMeasure[i] = nil
	}
	s.mv.byMeasure = kept
}

func (s *session) processTuplet(e *xmlquery.Node) {
	if s.part == nil || !mei.HasAttr(e, "dur") {
		s.convert(e)
		return
	}
	start := s.part.date
	s.convert(e)
	if d := s.computeDuration(e); d > 0 {
		s.part.date = start + d
	}
}

func (s *session) processTupletSpan(e *xmlquery.Node) {
	p := s.controlPart(e)
	if p == nil {
		s.warn("tupletSpan outside of a part", e)
		return
	}
	num, err1 := parseFloat(mei.AttrOr(e, "num", ""))
	numbase, err2 := parseFloat(mei.AttrOr(e, "numbase", ""))
	if err1 != nil || err2 != nil || num == 0 {
		s.warn("tupletSpan needs num and numbase", e)
		return
	}
	start := s.startDate(e)

	span := &tupletSpan{start: start, end: -1, layers: s.controlLayers(e), num: num, numbase: numbase}
	finish := func(end float64) { span.end = end }
	drop := func() {
		kept := p.spans[:0]
		for _, sp := range p.spans {
			if sp != span {
				kept = append(kept, sp)
			}
		}
		p.spans = kept
	}
	if !s.scheduleEnd(e, start, false, finish, drop) {
		s.warn("tupletSpan has no end", e)
		return
	}
	p.spans = append(p.spans, span)
}

// controlLayers returns the layers a control event names, else the current one
func (s *session) controlLayers(e *xmlquery.Node) []string {
	if v := mei.RefIDs(mei.AttrOr(e, "layer", "")); len(v) > 0 {
		return v
	}
	return s.layerScope()
}
