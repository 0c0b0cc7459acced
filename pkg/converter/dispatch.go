package converter

import (
	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
)

// handlerFunc converts one element kind; handlers that want the children converted
// call s.convert themselves
type handlerFunc func(s *session, e *xmlquery.Node)

// handlers is filled in init to break the initialization cycle through s.convert
var handlers map[string]handlerFunc

// diveKinds are containers whose children are converted without further processing
var diveKinds = map[string]bool{
	"add":         true,
	"beam":        true,
	"corr":        true,
	"damage":      true,
	"lyrics":      true,
	"meterSigGrp": true,
	"orig":        true,
	"part":        true,
	"parts":       true,
	"reg":         true,
	"restore":     true,
	"score":       true,
	"sic":         true,
	"staffGrp":    true,
	"subst":       true,
	"supplied":    true,
	"unclear":     true,
	"verse":       true,
}

func init() {
	handlers = map[string]handlerFunc{
		"accid":      (*session).processAccid,
		"app":        (*session).processApp,
		"arpeg":      (*session).processArpeg,
		"artic":      (*session).processArtic,
		"beatRpt":    (*session).processBeatRpt,
		"bTrem":      (*session).processChord,
		"chord":      (*session).processChord,
		"choice":     (*session).processChoice,
		"dynam":      (*session).processDynam,
		"ending":     (*session).processEnding,
		"fTrem":      (*session).processChord,
		"halfmRpt":   (*session).processHalfmRpt,
		"hairpin":    (*session).processHairpin,
		"keySig":     (*session).processKeySig,
		"layer":      (*session).processLayer,
		"layerDef":   (*session).processLayerDef,
		"mdiv":       (*session).processMdiv,
		"measure":    (*session).processMeasure,
		"meterSig":   (*session).processMeterSig,
		"mordent":    (*session).processOrnament,
		"mRest":      (*session).processMeasureRest,
		"mRpt":       (*session).processMRpt,
		"mRpt2":      (*session).processMRpt2,
		"mSpace":     (*session).processMeasureRest,
		"multiRest":  (*session).processMultiRest,
		"multiRpt":   (*session).processMultiRpt,
		"note":       (*session).processNote,
		"octave":     (*session).processOctave,
		"pedal":      (*session).processPedal,
		"phrase":     (*session).processPhrase,
		"reh":        (*session).processReh,
		"rest":       (*session).processRest,
		"scoreDef":   (*session).processScoreDef,
		"section":    (*session).processSection,
		"slur":       (*session).processPhrase,
		"space":      (*session).processRest,
		"staff":      (*session).processStaff,
		"staffDef":   (*session).processStaffDef,
		"syl":        (*session).processSyl,
		"tempo":      (*session).processTempo,
		"trill":      (*session).processOrnament,
		"tuplet":     (*session).processTuplet,
		"tupletSpan": (*session).processTupletSpan,
		"turn":       (*session).processOrnament,
	}
}

// convert visits the element children of n in document order
func (s *session) convert(n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if mei.IsElement(c) {
			s.visit(c)
		}
		c = next
	}
}

// visit resolves whatever waits for e, then dispatches it by kind. Anything neither handled
// nor a plain container is ignored together with its subtree.
func (s *session) visit(e *xmlquery.Node) {
	name := mei.Name(e)
	if s.mv == nil && name != "mdiv" {
		if diveKinds[name] {
			s.convert(e)
		}
		return
	}
	s.resolveTerminators(e)

	if h, ok := handlers[name]; ok {
		h(s, e)
	} else if diveKinds[name] {
		s.convert(e)
	}
}
