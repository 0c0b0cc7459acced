package converter

import (
	"math"
	"sort"

	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/mpm"
	"github.com/james-see/mei2perf/pkg/msm"
)

// postProcess finishes the current movement once its tree has been walked
func (s *session) postProcess() {
	s.sweepTerminators()
	s.finalizeArpeggios()

	for _, label := range s.mv.performance.ResolveTransitions() {
		logging.Diagnostic(s.logger, "continuous instruction has no successor, kept constant", label)
	}

	if s.opts.ExpandRepeats {
		expandRepeats(s.mv.movement, s.mv.performance)
	}

	if s.opts.Cleanup {
		s.mv.movement.Cleanup()
		s.mv.performance.Cleanup()
	}
}

// expandRepeats unrolls the gotos of a movement and lays its performance out the same way
func expandRepeats(m *msm.Movement, p *mpm.Performance) {
	if len(msm.Gotos(m.Global.Sequencing)) == 0 {
		return
	}
	p.ApplySegments(m.ResolveSequencing())
}

// sweepTerminators drops every control event whose end never showed up
func (s *session) sweepTerminators() {
	ids := make([]string, 0, len(s.mv.byID))
	for id := range s.mv.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, t := range s.mv.byID[id] {
			s.warn("end reference never reached", t.node, "endid", id)
			t.drop()
		}
	}
	s.mv.byID = make(map[string][]*terminator)

	for _, t := range s.mv.byMeasure {
		s.warn("tstamp2 lies beyond the end of the movement", t.node)
		t.drop()
	}
	s.mv.byMeasure = nil

	targets := make([]string, 0, len(s.mv.lyrics))
	for id := range s.mv.lyrics {
		targets = append(targets, id)
	}
	sort.Strings(targets)
	for _, id := range targets {
		for _, f := range s.mv.lyrics[id] {
			s.warn("syllable refers to a note that was never converted", f.node, "startid", id)
		}
	}
	s.mv.lyrics = make(map[string][]*lyricFragment)
}

// finalizeArpeggios orders the notes of every arpeggio by pitch
func (s *session) finalizeArpeggios() {
	for _, a := range s.mv.arpeggios {
		var notes []*msm.Note
		for _, id := range a.entry.NoteIDs {
			if chord, ok := s.mv.chordNotes[id]; ok {
				notes = append(notes, chord...)
			} else if n, ok := s.mv.notes[id]; ok {
				notes = append(notes, n)
			}
		}
		if len(notes) == 0 {
			s.warn("arpeggio notes were never converted", a.node)
			a.region.Ornamentation.Remove(func(o *mpm.Ornament) bool { return o == a.entry })
			continue
		}

		sort.SliceStable(notes, func(i, j int) bool {
			if a.entry.Descending {
				return notes[i].MidiPitch > notes[j].MidiPitch
			}
			return notes[i].MidiPitch < notes[j].MidiPitch
		})

		earliest := math.Inf(1)
		order := make([]string, 0, len(notes))
		for _, n := range notes {
			earliest = math.Min(earliest, n.Date)
			if n.ID != "" {
				order = append(order, n.ID)
			}
		}
		a.entry.NoteOrder = order
		a.entry.NoteIDs = nil

		if !mei.HasAttr(a.node, "tstamp") && !mei.HasAttr(a.node, "startid") && a.entry.Date != earliest {
			a.entry.Date = earliest
			a.region.Ornamentation.Sort()
		}
	}
	s.mv.arpeggios = nil
}
