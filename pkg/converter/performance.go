package converter

import (
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/mpm"
	"github.com/james-see/mei2perf/pkg/msm"
)

// defaultVolume is assumed before the first dynamics mark
const defaultVolume = 80

// defaultBpm is assumed before the first tempo instruction
const defaultBpm = 120

// gradualDynamics maps textual crescendo and diminuendo marks to entry names
var gradualDynamics = []struct {
	prefix, name string
}{
	{"cresc", "cresc"},
	{"decresc", "dim"},
	{"dim", "dim"},
}

// gradualTempo are textual marks of a gradual tempo change
var gradualTempo = []string{"accel", "rit", "rall", "string", "allarg"}

// removeDynamics returns a drop function deleting d from m
func removeDynamics(m *msm.Map[*mpm.Dynamics], d *mpm.Dynamics) func() {
	return func() { m.Remove(func(x *mpm.Dynamics) bool { return x == d }) }
}

// previousVolume is the volume reached at date in the part region, else globally
func (s *session) previousVolume(regions []*mpm.Region, date float64) float64 {
	for _, r := range regions {
		if d, ok := r.Dynamics.LastBefore(date); ok {
			if d.Continuous && d.TransitionTo != nil {
				return *d.TransitionTo
			}
			return d.Volume
		}
	}
	return defaultVolume
}

func (s *session) dynamicsRegions(p *partState) []*mpm.Region {
	if p == nil {
		return []*mpm.Region{s.mv.performance.Global}
	}
	return []*mpm.Region{p.perf.Dated, s.mv.performance.Global}
}

func (s *session) processDynam(e *xmlquery.Node) {
	text := mei.Text(e)
	if text == "" {
		text = mei.AttrOr(e, "label", "")
	}
	lower := strings.ToLower(text)
	fields := strings.Fields(strings.Trim(lower, ".!"))
	if len(fields) == 0 {
		s.warn("dynam without text", e)
		return
	}

	date := s.startDate(e)
	p := s.controlPart(e)
	regions := s.dynamicsRegions(p)

	d := &mpm.Dynamics{
		Date:   date,
		End:    -1,
		Style:  mpm.DefaultStyle,
		NoteID: mei.RefID(mei.AttrOr(e, "startid", "")),
		ID:     mei.ID(e),
	}
	mark := strings.Trim(fields[0], ".")
	if volume, ok := mpm.DynamicsVolume(mark); ok {
		d.Volume, d.Name = volume, mark
		s.mv.performance.Header.Define(mpm.KindDynamics, mpm.DefaultStyle, mark, func(def *mpm.Definition) {
			def.Value = volume
		})
	} else {
		for _, g := range gradualDynamics {
			if strings.HasPrefix(lower, g.prefix) {
				d.Name, d.Continuous = g.name, true
				d.Volume = s.previousVolume(regions, date)
				break
			}
		}
		if d.Name == "" {
			s.warn("unknown dynamics mark", e)
			return
		}
	}

	dynamics := regions[0].Dynamics
	if s.scheduleEnd(e, date, false, func(end float64) { d.End = end }, removeDynamics(dynamics, d)) {
		d.Continuous = true
	}
	dynamics.Add(d)
}

func (s *session) processHairpin(e *xmlquery.Node) {
	var name string
	switch mei.AttrOr(e, "form", "") {
	case "cres":
		name = "cresc"
	case "dim":
		name = "dim"
	default:
		s.warn("hairpin needs form cres or dim", e)
		return
	}

	date := s.startDate(e)
	regions := s.dynamicsRegions(s.controlPart(e))
	dynamics := regions[0].Dynamics
	d := &mpm.Dynamics{
		Date:       date,
		End:        -1,
		Volume:     s.previousVolume(regions, date),
		Continuous: true,
		Name:       name,
		Style:      mpm.DefaultStyle,
		NoteID:     mei.RefID(mei.AttrOr(e, "startid", "")),
		ID:         mei.ID(e),
	}
	if !s.scheduleEnd(e, date, false, func(end float64) { d.End = end }, removeDynamics(dynamics, d)) {
		s.warn("hairpin has no end", e)
	}
	dynamics.Add(d)
}

// processTempo reads midi.bpm, a metronome mark or a tempo word. Tempo is performance-wide.
func (s *session) processTempo(e *xmlquery.Node) {
	text := mei.Text(e)
	lower := strings.ToLower(text)

	bpm, beat, name := 0.0, 0.25, ""
	if v, ok := mei.Attr(e, "midi.bpm"); ok {
		if f, err := parseFloat(v); err == nil {
			bpm = f
		}
	}
	if v, ok := mei.Attr(e, "mm"); ok && bpm == 0 {
		if f, err := parseFloat(v); err == nil {
			bpm = f
			if token, ok := mei.Attr(e, "mm.unit"); ok && durationDecimal(token) > 0 {
				dots, _ := parseInt(mei.AttrOr(e, "mm.dots", "0"))
				beat = durationDecimal(token) * dotFactor(dots)
			}
		}
	}
	if w, word, ok := mpm.TempoWordBpm(text); ok {
		name = word
		if bpm == 0 {
			bpm = w
		}
	}

	continuous := false
	for _, g := range gradualTempo {
		if strings.Contains(lower, g) {
			continuous = true
			break
		}
	}

	date := s.startDate(e)
	tempo := s.mv.performance.Global.Tempo
	if bpm == 0 {
		if !continuous {
			s.warn("tempo without bpm, metronome mark or known tempo word", e)
			return
		}
		bpm = defaultBpm
		if prev, ok := tempo.LastBefore(date); ok {
			bpm = prev.Bpm
		}
	}
	if name == "" {
		name = text
	}
	if name != "" {
		s.mv.performance.Header.Define(mpm.KindTempo, mpm.DefaultStyle, name, func(def *mpm.Definition) {
			def.Value = bpm
		})
	}

	t := &mpm.Tempo{
		Date:       date,
		End:        -1,
		Bpm:        bpm,
		BeatLength: beat,
		Continuous: continuous,
		Name:       name,
		Style:      mpm.DefaultStyle,
		NoteID:     mei.RefID(mei.AttrOr(e, "startid", "")),
		ID:         mei.ID(e),
	}
	drop := func() { tempo.Remove(func(x *mpm.Tempo) bool { return x == t }) }
	s.scheduleEnd(e, date, false, func(end float64) { t.End = end }, drop)
	tempo.Add(t)
}

// processOrnament handles trill, mordent and turn
func (s *session) processOrnament(e *xmlquery.Node) {
	date := s.startDate(e)
	name := mei.Name(e)
	if form, ok := mei.Attr(e, "form"); ok && name != "trill" {
		name += "." + form
	}
	s.mv.performance.Header.Define(mpm.KindOrnamentation, mpm.DefaultStyle, name, nil)

	ornaments := s.perfRegion(s.controlPart(e)).Ornamentation
	o := &mpm.Ornament{
		Date:   date,
		End:    -1,
		Name:   name,
		Style:  mpm.DefaultStyle,
		NoteID: mei.RefID(mei.AttrOr(e, "startid", "")),
		ID:     mei.ID(e),
	}
	drop := func() { ornaments.Remove(func(x *mpm.Ornament) bool { return x == o }) }
	s.scheduleEnd(e, date, false, func(end float64) { o.End = end }, drop)
	ornaments.Add(o)
}

// processArpeg records an arpeggio; its note order is settled once all notes are known
func (s *session) processArpeg(e *xmlquery.Node) {
	order := mei.AttrOr(e, "order", "")
	if order == "nonarpeg" {
		return
	}
	ids := mei.RefIDs(mei.AttrOr(e, "plist", ""))
	if len(ids) == 0 {
		ids = mei.RefIDs(mei.AttrOr(e, "startid", ""))
	}
	if len(ids) == 0 {
		s.warn("arpeg references no notes", e)
		return
	}

	date := s.startDate(e)
	s.mv.performance.Header.Define(mpm.KindOrnamentation, mpm.DefaultStyle, "arpeggio", nil)

	region := s.perfRegion(s.controlPart(e))
	o := &mpm.Ornament{
		Date:       date,
		End:        -1,
		Name:       "arpeggio",
		Style:      mpm.DefaultStyle,
		NoteIDs:    ids,
		Descending: order == "down",
		ID:         mei.ID(e),
	}
	region.Ornamentation.Add(o)
	s.mv.arpeggios = append(s.mv.arpeggios, &arpeggio{entry: o, region: region, node: e})
}
