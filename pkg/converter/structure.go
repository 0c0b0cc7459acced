package converter

import (
	"math"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/msm"
)

func (s *session) processMdiv(e *xmlquery.Node) {
	if mei.FirstChildElement(e, "score") == nil && mei.FirstChildElement(e, "parts") == nil {
		s.convert(e)
		return
	}
	prev := s.beginMovement(e)
	s.convert(e)
	s.endMovement(prev)
}

func (s *session) processSection(e *xmlquery.Node) {
	sec := &msm.Section{
		Date:  s.now(),
		End:   -1,
		ID:    mei.ID(e),
		Label: mei.AttrOr(e, "label", mei.AttrOr(e, "n", "")),
	}
	s.mv.movement.Global.Sections.Add(sec)
	s.convert(e)
	sec.End = s.now()
}

func (s *session) processScoreDef(e *xmlquery.Node) {
	s.applyDefinitions(e, s.part)
	s.convert(e)
}

func (s *session) processStaffDef(e *xmlquery.Node) {
	p := s.makePart(e)
	prev := s.part
	s.part = p
	s.applyDefinitions(e, p)
	s.convert(e)
	s.accids = nil
	s.part = prev
}

// applyDefinitions records the meter, key, defaults and transposition a scoreDef or staffDef
// declares, globally when p is nil
func (s *session) applyDefinitions(e *xmlquery.Node, p *partState) {
	date := s.now()
	r := s.region(p)

	if ts := s.timeSignature(e, date); ts != nil {
		r.TimeSignatures.Add(ts)
	}
	if ks := s.keySignature(e, date); ks != nil {
		r.KeySignatures.Add(ks)
	}
	s.addDefaults(e, r, date, s.layerScope())

	semi := 0.0
	if v, ok := mei.Attr(e, "trans.semi"); ok {
		f, err := parseFloat(v)
		if err != nil {
			s.warn("invalid trans.semi", e)
		} else {
			semi = f
		}
	}
	r.Misc.Transpositions.Add(&msm.Transposition{
		Date:      date,
		End:       -1,
		Semitones: semi,
		ID:        mei.ID(e),
		Layers:    s.layerScope(),
	})
}

// addDefaults records dur.default and oct.default (octave.default in older encodings)
func (s *session) addDefaults(e *xmlquery.Node, r *msm.Region, date float64, layers []string) {
	if v, ok := mei.Attr(e, "dur.default"); ok {
		if durationDecimal(v) == 0 {
			s.warn("invalid dur.default", e)
		} else {
			r.Misc.DurationDefaults.Add(&msm.DefaultDuration{Date: date, Value: v, Layers: layers})
		}
	}
	v, ok := mei.Attr(e, "oct.default")
	if !ok {
		v, ok = mei.Attr(e, "octave.default")
	}
	if ok {
		oct, err := parseInt(v)
		if err != nil {
			s.warn("invalid oct.default", e)
		} else {
			r.Misc.OctaveDefaults.Add(&msm.DefaultOctave{Date: date, Value: oct, Layers: layers})
		}
	}
}

func (s *session) processStaff(e *xmlquery.Node) {
	p := s.findPart(mei.RefID(mei.AttrOr(e, "def", "")))
	if p == nil {
		p = s.findPart(mei.AttrOr(e, "n", ""))
	}
	if p == nil {
		s.warn("staff has no staffDef, creating a part for it", e)
		p = s.makePart(e)
	}

	date := s.now()
	prev, prevEnd := s.part, s.layerEnd
	s.part, s.layerEnd = p, 0
	p.date = date
	s.convert(e)
	s.accids = nil
	s.part, s.layerEnd = prev, prevEnd
}

func (s *session) processLayerDef(e *xmlquery.Node) {
	var layers []string
	for _, key := range []string{mei.ID(e), mei.AttrOr(e, "n", "")} {
		if key != "" {
			layers = append(layers, key)
		}
	}
	s.addDefaults(e, s.region(s.part), s.now(), layers)
	s.convert(e)
}

// layerKey returns the key layer-scoped entries are matched with: the layerDef the
// layer points to, else its number, else its id
func layerKey(layer *xmlquery.Node) string {
	if def := mei.RefID(mei.AttrOr(layer, "def", "")); def != "" {
		return def
	}
	if n := mei.AttrOr(layer, "n", ""); n != "" {
		return n
	}
	return mei.ID(layer)
}

func (s *session) processLayer(e *xmlquery.Node) {
	if s.part == nil {
		s.warn("layer outside of a staff", e)
		return
	}

	start := s.part.date
	prev := s.layer
	s.layer = e
	s.convert(e)
	s.layer = prev
	s.accids = nil

	end := s.part.date
	if nextLayer(e) != nil {
		s.layerEnd = math.Max(s.layerEnd, end)
		s.part.date = start
		return
	}
	s.part.date = math.Max(s.layerEnd, end)
	s.layerEnd = 0
}

func nextLayer(e *xmlquery.Node) *xmlquery.Node {
	for n := mei.NextSiblingElement(e); n != nil; n = mei.NextSiblingElement(n) {
		if mei.Name(n) == "layer" {
			return n
		}
	}
	return nil
}

func (s *session) processMeasure(e *xmlquery.Node) {
	start := s.now()
	measureTicks := 0.0
	if ts := s.mv.movement.TimeSignatureAt(msmPart(s.part), start); ts != nil {
		measureTicks = ts.MeasureTicks(s.ppq)
	}

	prev := s.measure
	s.measure = &measureState{node: e, start: start, span: 1}
	s.convert(e)
	span := s.measure.span
	s.accids = nil
	s.measure = prev

	end := s.now()
	if measureTicks >= end-start && mei.AttrOr(e, "metcon", "") != "false" {
		end = start + measureTicks
	}
	for _, p := range s.mv.parts {
		p.date = end
	}

	if left, ok := mei.Attr(e, "left"); ok {
		s.barline(e, left, start)
	}
	if right, ok := mei.Attr(e, "right"); ok {
		s.barline(e, right, end)
	}
	step := (end - start) / float64(span)
	for k := 1; k < span; k++ {
		s.crossBarline(start + float64(k)*step)
	}
	s.crossBarline(end)
}

// spanMeasures records that the current measure stands for n written measures
func (s *session) spanMeasures(n int) {
	if s.measure != nil && n > s.measure.span {
		s.measure.span = n
	}
}

func (s *session) processMeterSig(e *xmlquery.Node) {
	if ts := s.timeSignature(e, s.now()); ts != nil {
		s.region(s.part).TimeSignatures.Add(ts)
	}
}

func (s *session) processKeySig(e *xmlquery.Node) {
	if ks := s.keySignature(e, s.now()); ks != nil {
		s.region(s.part).KeySignatures.Add(ks)
	}
}

// timeSignature reads meterSig attributes or the meter.* attributes of a scoreDef/staffDef
func (s *session) timeSignature(e *xmlquery.Node, date float64) *msm.TimeSignature {
	prefix := "meter."
	if mei.Name(e) == "meterSig" {
		prefix = ""
	}
	count, hasCount := mei.Attr(e, prefix+"count")
	unit, hasUnit := mei.Attr(e, prefix+"unit")
	if !hasCount || !hasUnit {
		switch mei.AttrOr(e, prefix+"sym", "") {
		case "common":
			count, unit = "4", "4"
		case "cut":
			count, unit = "2", "2"
		default:
			return nil
		}
	}

	num, ok := meterValue(count)
	den, err := parseInt(unit)
	if !ok || err != nil || num <= 0 || den <= 0 {
		s.warn("invalid meter", e)
		return nil
	}

	id := ""
	if prefix == "" {
		id = mei.ID(e)
	}
	return &msm.TimeSignature{Date: date, Numerator: num, Denominator: den, ID: id}
}

// keySignature reads keySig attributes and keyAccid children, or the key.* attributes of a
// scoreDef/staffDef
func (s *session) keySignature(e *xmlquery.Node, date float64) *msm.KeySignature {
	prefix := "key."
	if mei.Name(e) == "keySig" {
		prefix = ""
	}
	sig, hasSig := mei.Attr(e, prefix+"sig")
	mixed, hasMixed := mei.Attr(e, prefix+"sig.mixed")
	keyAccids := mei.ChildElements(e, "keyAccid")
	if !hasSig && !hasMixed && len(keyAccids) == 0 {
		return nil
	}

	ks := &msm.KeySignature{Date: date, Accidentals: []msm.KeyAccidental{}}
	if prefix == "" {
		ks.ID = mei.ID(e)
	}

	if hasSig && sig != "mixed" {
		accids, ok := keySigAccidentals(sig)
		if !ok {
			s.warn("invalid key signature", e)
		}
		ks.Accidentals = append(ks.Accidentals, accids...)
	}
	if hasMixed {
		accids, ok := mixedAccidentals(mixed)
		if !ok {
			s.warn("invalid mixed key signature", e)
		}
		ks.Accidentals = append(ks.Accidentals, accids...)
	}
	for _, ka := range keyAccids {
		pname := strings.ToLower(mei.AttrOr(ka, "pname", ""))
		value, ok := accidValue(mei.AttrOr(ka, "accid", ""))
		if _, known := pitchClass(pname); !known || !ok {
			s.warn("keyAccid needs pname and accid", ka)
			continue
		}
		oct := -1
		if v, err := parseInt(mei.AttrOr(ka, "oct", "")); err == nil {
			oct = v
		}
		ks.Accidentals = append(ks.Accidentals, msm.KeyAccidental{PitchName: pname, Octave: oct, Value: value})
	}
	return ks
}

// processApp converts the lemma of a critical apparatus, else its first reading
func (s *session) processApp(e *xmlquery.Node) {
	if lem := mei.FirstChildElement(e, "lem"); lem != nil {
		s.convert(lem)
		return
	}
	if rdg := mei.FirstChildElement(e, "rdg"); rdg != nil {
		s.convert(rdg)
	}
}

// choicePreference orders the alternatives of a choice
var choicePreference = []string{"corr", "reg", "expan", "orig", "sic"}

func (s *session) processChoice(e *xmlquery.Node) {
	for _, name := range choicePreference {
		if alt := mei.FirstChildElement(e, name); alt != nil {
			s.convert(alt)
			return
		}
	}
}
