package converter

import (
	"math"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/mpm"
	"github.com/james-see/mei2perf/pkg/msm"
)

// tieEpsilon is how far apart in ticks a tie's end and its continuation may lie
const tieEpsilon = 1e-6

func (s *session) processNote(e *xmlquery.Node) {
	if s.part == nil {
		s.warn("note outside of a staff", e)
		return
	}
	if mei.HasAttr(e, "grace") {
		return
	}

	date := s.part.date
	p, ok := s.computePitch(e)
	if !ok {
		s.warn("note has no pitch", e)
		return
	}
	dur := s.computeDuration(e)
	if dur == 0 {
		s.warn("note has no duration", e)
		return
	}
	if s.chord == nil {
		s.part.date = date + dur
	}
	s.record(e, date, dur)

	id := mei.ID(e)
	tie := mei.AttrOr(e, "tie", "")
	if tie == "" && s.chord != nil {
		tie = mei.AttrOr(s.chord, "tie", "")
	}

	if strings.ContainsAny(tie, "mt") {
		if prev := s.tiedPredecessor(date, p.midi); prev != nil {
			prev.Duration += dur
			if !strings.Contains(tie, "m") {
				prev.Tie = ""
			}
			if id != "" {
				s.mv.notes[id] = prev
			}
			s.addLyrics(prev, e)
			s.addArticulations(e, date, prev.ID)
			return
		}
		s.warn("tie has no matching start", e)
	}

	note := &msm.Note{
		ID:          id,
		Date:        date,
		Duration:    dur,
		MidiPitch:   p.midi,
		PitchName:   p.pname,
		Accidentals: p.accid,
		Octave:      p.octave,
		Layer:       s.layerID(),
	}
	if strings.ContainsAny(tie, "im") {
		note.Tie = "i"
	}
	s.addLyrics(note, e)
	s.part.part.Score.Add(note)

	if id != "" {
		s.mv.notes[id] = note
	}
	if s.chord != nil {
		if cid := mei.ID(s.chord); cid != "" {
			s.mv.chordNotes[cid] = append(s.mv.chordNotes[cid], note)
		}
	}
	s.addArticulations(e, date, id)
}

// tiedPredecessor finds the open tie of the current part that ends at date on the same pitch
func (s *session) tiedPredecessor(date, midi float64) *msm.Note {
	entries := s.part.part.Score.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		n, ok := entries[i].(*msm.Note)
		if !ok || n.Tie == "" || n.MidiPitch != midi {
			continue
		}
		if math.Abs(n.Date+n.Duration-date) < tieEpsilon {
			return n
		}
	}
	return nil
}

// addLyrics appends the syllables a note carries and those waiting for it
func (s *session) addLyrics(n *msm.Note, e *xmlquery.Node) {
	var texts []string
	for _, syl := range mei.Descendants(e, "syl") {
		if t := mei.Text(syl); t != "" {
			texts = append(texts, t)
		}
	}
	if id := mei.ID(e); id != "" {
		for _, f := range s.mv.lyrics[id] {
			texts = append(texts, f.text)
		}
		delete(s.mv.lyrics, id)
	}
	if len(texts) == 0 {
		return
	}
	if n.Lyrics != "" {
		texts = append([]string{n.Lyrics}, texts...)
	}
	n.Lyrics = strings.Join(texts, " ")
}

func (s *session) processChord(e *xmlquery.Node) {
	if s.part == nil {
		s.warn(mei.Name(e)+" outside of a staff", e)
		return
	}

	if mei.HasAttr(e, "grace") {
		return
	}

	date := s.part.date
	dur := s.chordDuration(e)

	prev := s.chord
	s.chord = e
	s.convert(e)
	s.chord = prev

	if s.chord == nil {
		s.part.date = date + dur
	}
	s.record(e, date, dur)
	s.addArticulations(e, date, mei.ID(e))
}

func (s *session) processRest(e *xmlquery.Node) {
	if s.part == nil {
		s.warn(mei.Name(e)+" outside of a staff", e)
		return
	}
	date := s.part.date
	dur := s.computeDuration(e)
	if dur == 0 {
		s.warn(mei.Name(e)+" has no duration", e)
		return
	}
	s.addRest(e, date, dur)
}

// addRest places a rest in the current part and moves the cursor behind it
func (s *session) addRest(e *xmlquery.Node, date, dur float64) {
	if s.chord == nil {
		s.part.date = date + dur
	}
	s.part.part.Score.Add(&msm.Rest{
		ID:       mei.ID(e),
		Date:     date,
		Duration: dur,
		Layer:    s.layerID(),
	})
	s.record(e, date, dur)
}

// measureLength is the length of one measure of the current part at the current date
func (s *session) measureLength() float64 {
	ts := s.mv.movement.TimeSignatureAt(msmPart(s.part), s.now())
	if ts == nil {
		return 0
	}
	return ts.MeasureTicks(s.ppq)
}

func (s *session) processMeasureRest(e *xmlquery.Node) {
	if s.part == nil {
		s.warn(mei.Name(e)+" outside of a staff", e)
		return
	}
	dur := s.measureLength()
	if dur == 0 {
		dur = s.computeDuration(e)
	}
	if dur == 0 {
		s.warn(mei.Name(e)+" without a time signature", e)
		return
	}
	s.addRest(e, s.part.date, dur)
}

func (s *session) processMultiRest(e *xmlquery.Node) {
	if s.part == nil {
		s.warn("multiRest outside of a staff", e)
		return
	}
	num, err := parseInt(mei.AttrOr(e, "num", "1"))
	if err != nil || num < 1 {
		s.warn("invalid multiRest num", e)
		num = 1
	}
	dur := s.measureLength() * float64(num)
	if dur == 0 {
		s.warn("multiRest without a time signature", e)
		return
	}
	s.spanMeasures(num)
	s.addRest(e, s.part.date, dur)
}

// articulationNames collects the articulation tokens of an element and of its artic children
func articulationNames(e *xmlquery.Node) []string {
	names := strings.Fields(mei.AttrOr(e, "artic", mei.AttrOr(e, "artic.ges", "")))
	for _, a := range mei.ChildElements(e, "artic") {
		names = append(names, strings.Fields(mei.AttrOr(a, "artic", mei.AttrOr(a, "artic.ges", "")))...)
	}
	return names
}

// addArticulations creates articulation entries for the tokens of e, referencing noteID
func (s *session) addArticulations(e *xmlquery.Node, date float64, noteID string) {
	names := articulationNames(e)
	if len(names) == 0 {
		return
	}
	region := s.perfRegion(s.part)
	for _, name := range names {
		s.mv.performance.Header.Define(mpm.KindArticulation, mpm.DefaultStyle, name, mpm.InitArticulation)
		region.Articulation.Add(&mpm.Articulation{
			Date:   date,
			Name:   name,
			Style:  mpm.DefaultStyle,
			NoteID: noteID,
		})
	}
}

// processArtic handles an articulation outside of a note, addressed by startid
func (s *session) processArtic(e *xmlquery.Node) {
	names := articulationNames(e)
	if len(names) == 0 {
		s.warn("artic without articulation", e)
		return
	}
	date := s.startDate(e)
	noteID := mei.RefID(mei.AttrOr(e, "startid", ""))
	if noteID == "" {
		if owner := mei.Ancestor(e, "note", "chord"); owner != nil {
			noteID = mei.ID(owner)
		}
	}

	region := s.perfRegion(s.controlPart(e))
	for _, name := range names {
		s.mv.performance.Header.Define(mpm.KindArticulation, mpm.DefaultStyle, name, mpm.InitArticulation)
		region.Articulation.Add(&mpm.Articulation{
			Date:   date,
			Name:   name,
			Style:  mpm.DefaultStyle,
			NoteID: noteID,
			ID:     mei.ID(e),
		})
	}
}

// processSyl attaches a syllable outside of its note to the note it points to
func (s *session) processSyl(e *xmlquery.Node) {
	text := mei.Text(e)
	target := mei.RefID(mei.AttrOr(e, "startid", ""))
	if target == "" {
		if owner := mei.Ancestor(e, "note"); owner != nil {
			target = mei.ID(owner)
		}
	}
	if text == "" || target == "" {
		return
	}

	if n, ok := s.mv.notes[target]; ok {
		if n.Lyrics == "" {
			n.Lyrics = text
		} else {
			n.Lyrics += " " + text
		}
		return
	}
	s.mv.lyrics[target] = append(s.mv.lyrics[target], &lyricFragment{node: e, text: text})
}
