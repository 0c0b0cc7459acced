package converter

import (
	"math"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/msm"
)

// pitch is a computed note pitch with the spelling it is reported under
type pitch struct {
	midi   float64
	pname  string
	accid  float64
	octave int
}

// computePitch derives the MIDI pitch of a note from its pitch class, octave, accidentals,
// the key signature and every transposition in effect
func (s *session) computePitch(e *xmlquery.Node) (pitch, bool) {
	var pname string
	fromKey := false
	if v, ok := mei.Attr(e, "pname.ges"); ok && v != "none" {
		pname = v
	} else if v, ok := mei.Attr(e, "pname"); ok {
		pname, fromKey = v, true
	} else {
		return pitch{}, false
	}
	pname = strings.ToLower(strings.TrimSpace(pname))
	pc, ok := pitchClass(pname)
	if !ok {
		return pitch{}, false
	}

	oct, ok := s.octave(e)
	if !ok {
		return pitch{}, false
	}

	accid := s.accidental(e, pname, oct, fromKey)

	trans := 0.0
	if !mei.HasAttr(e, "pname.ges") || !mei.HasAttr(e, "oct.ges") {
		trans = s.transposition()
	}

	p := pitch{
		midi:   pc + 12*float64(oct+1) + accid + trans,
		pname:  pname,
		accid:  accid,
		octave: oct,
	}
	if trans != 0 {
		p.pname, p.accid, p.octave = relabel(pc, oct, accid, trans)
	}
	return p, true
}

// octave reads oct.ges, oct, or the latest oct.default applying to the current layer
func (s *session) octave(e *xmlquery.Node) (int, bool) {
	for _, attr := range []string{"oct.ges", "oct"} {
		if v, ok := mei.Attr(e, attr); ok {
			if oct, err := parseInt(v); err == nil {
				return oct, true
			}
		}
	}

	now, layer := s.now(), s.layerID()
	keep := func(d *msm.DefaultOctave) bool { return msm.AppliesTo(d.Layers, layer) }
	if s.part != nil {
		if d, ok := s.part.part.Dated.Misc.OctaveDefaults.LastMatching(now, keep); ok {
			return d.Value, true
		}
	}
	if d, ok := s.mv.movement.Global.Misc.OctaveDefaults.LastMatching(now, keep); ok {
		return d.Value, true
	}
	return 0, false
}

// accidental resolves the alteration of a note. Written accidentals hold for the rest of the
// measure; the key signature only applies to notes spelled with a notated pitch name.
func (s *session) accidental(e *xmlquery.Node, pname string, oct int, fromKey bool) float64 {
	if v, ok := mei.Attr(e, "accid.ges"); ok {
		if value, ok := accidValue(v); ok {
			return value
		}
		s.warn("invalid accid.ges", e)
	}
	if v, ok := mei.Attr(e, "accid"); ok {
		if value, ok := accidValue(v); ok {
			s.accids = append(s.accids, accidental{pname: pname, oct: oct, value: v})
			return value
		}
		s.warn("invalid accid", e)
	}
	if child := mei.FirstChildElement(e, "accid"); child != nil {
		if v, ok := mei.Attr(child, "accid.ges"); ok {
			if value, ok := accidValue(v); ok {
				return value
			}
		}
		if v, ok := mei.Attr(child, "accid"); ok {
			if value, ok := accidValue(v); ok {
				s.accids = append(s.accids, accidental{pname: pname, oct: oct, value: v})
				return value
			}
		}
	}

	for i := len(s.accids) - 1; i >= 0; i-- {
		a := s.accids[i]
		if a.pname == pname && a.oct == oct {
			value, _ := accidValue(a.value)
			return value
		}
	}

	if fromKey {
		if value, ok := s.keySignatureAt(s.now()).Lookup(pname, oct); ok {
			return value
		}
	}
	return 0
}

// keySignatureAt returns the key signature in effect for the current part. A local signature
// wins unless a newer global one exists; in that case the global one is copied into a
// non-empty local map so later lookups see it.
func (s *session) keySignatureAt(date float64) *msm.KeySignature {
	global, gok := s.mv.movement.Global.KeySignatures.LastBefore(date)
	if s.part == nil {
		return global
	}

	locals := s.part.part.Dated.KeySignatures
	local, lok := locals.LastBefore(date)
	if lok && (!gok || local.Date >= global.Date) {
		return local
	}
	if gok && locals.Len() > 0 {
		cp := *global
		cp.Accidentals = append([]msm.KeyAccidental(nil), global.Accidentals...)
		locals.Add(&cp)
		return &cp
	}
	return global
}

// transposition sums the transpositions in effect for the current layer: the latest plain one
// plus every active additive one, globally and in the current part
func (s *session) transposition() float64 {
	now, layer := s.now(), s.layerID()
	regions := []*msm.Region{s.mv.movement.Global}
	if s.part != nil {
		regions = append(regions, s.part.part.Dated)
	}

	total := 0.0
	for _, r := range regions {
		m := r.Misc.Transpositions
		plain := func(t *msm.Transposition) bool { return !t.Additive && msm.AppliesTo(t.Layers, layer) }
		if t, ok := m.LastMatching(now, plain); ok {
			total += t.Semitones
		}
		for _, t := range m.Entries() {
			if t.Additive && t.ActiveAt(now) && msm.AppliesTo(t.Layers, layer) {
				total += t.Semitones
			}
		}
	}
	return total
}

// keyNames spells every semitone of the octave; black keys are spelled by their lower and
// upper neighbours
var keyNames = [12]struct {
	name, lower, upper string
}{
	{name: "c"},
	{lower: "c", upper: "d"},
	{name: "d"},
	{lower: "d", upper: "e"},
	{name: "e"},
	{name: "f"},
	{lower: "f", upper: "g"},
	{name: "g"},
	{lower: "g", upper: "a"},
	{name: "a"},
	{lower: "a", upper: "b"},
	{name: "b"},
}

// relabel spells a transposed pitch: upward transpositions use sharps, downward ones flats.
// The octave follows the transposed pitch; the note's own accidental is carried along.
func relabel(pc float64, oct int, accid, trans float64) (string, float64, int) {
	p := pc + 12*float64(oct+1) + trans
	base := math.Floor(p)
	frac := p - base

	semitone := int(math.Mod(base, 12))
	if semitone < 0 {
		semitone += 12
	}
	outOct := int(math.Floor(base/12)) - 1

	k := keyNames[semitone]
	switch {
	case k.name != "":
		return k.name, accid + frac, outOct
	case trans > 0:
		return k.lower, accid + 1 + frac, outOct
	default:
		return k.upper, accid - 1 + frac, outOct
	}
}
