package converter

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/mpm"
	"github.com/james-see/mei2perf/pkg/msm"
)

// partState is a part of the current movement plus its time cursor
type partState struct {
	part  *msm.Part
	perf  *mpm.Part
	key   string
	date  float64
	spans []*tupletSpan
}

// measureState is the measure being converted
type measureState struct {
	node  *xmlquery.Node
	start float64
	span  int
}

// accidental is a visual accidental that holds until the end of its measure
type accidental struct {
	pname string
	oct   int
	value string
}

// tupletSpan scales durations of a layer between its start and end
type tupletSpan struct {
	start   float64
	end     float64
	layers  []string
	num     float64
	numbase float64
}

// terminator is a control event waiting for its end date
type terminator struct {
	node     *xmlquery.Node
	slurLike bool
	measures int
	beat     float64
	part     *partState
	finish   func(end float64)
	drop     func()
}

// lyricFragment is a syllable addressed to a note that has not been converted yet
type lyricFragment struct {
	node *xmlquery.Node
	text string
}

// movementState holds everything scoped to one movement
type movementState struct {
	movement    *msm.Movement
	performance *mpm.Performance
	parts       []*partState
	index       map[string]*xmlquery.Node
	dates       map[string]float64
	durs        map[string]float64
	notes       map[string]*msm.Note
	chordNotes  map[string][]*msm.Note
	byID        map[string][]*terminator
	byMeasure   []*terminator
	lyrics      map[string][]*lyricFragment
	arpeggios   []*arpeggio
}

// arpeggio is an ornament whose note order is finalized after conversion
type arpeggio struct {
	entry  *mpm.Ornament
	region *mpm.Region
	node   *xmlquery.Node
}

// session is the live state of one conversion
type session struct {
	opts   Options
	ppq    int
	logger *slog.Logger
	result *Result

	mv       *movementState
	part     *partState
	layer    *xmlquery.Node
	layerEnd float64
	measure  *measureState
	chord    *xmlquery.Node
	accids   []accidental
}

func newSession(opts Options, ppq int, logger *slog.Logger, res *Result) *session {
	return &session{opts: opts, ppq: ppq, logger: logger, result: res}
}

// warn reports a recoverable anomaly at node e
func (s *session) warn(msg string, e *xmlquery.Node, args ...any) {
	logging.Diagnostic(s.logger, msg, mei.String(e), args...)
}

// now returns the current date: the part cursor, else the measure start, else the
// furthest any part has reached
func (s *session) now() float64 {
	if s.part != nil {
		return s.part.date
	}
	if s.measure != nil {
		return s.measure.start
	}
	if s.mv == nil {
		return 0
	}
	date := 0.0
	for _, p := range s.mv.parts {
		date = math.Max(date, p.date)
	}
	return date
}

// layerID returns the id the current layer scopes its entries with
func (s *session) layerID() string {
	if s.layer == nil {
		return ""
	}
	return layerKey(s.layer)
}

// layerScope returns the layers an entry created now applies to
func (s *session) layerScope() []string {
	if id := s.layerID(); id != "" {
		return []string{id}
	}
	return nil
}

// beginMovement opens a Movement/Performance pair for an mdiv and returns the state it replaces
func (s *session) beginMovement(mdiv *xmlquery.Node) *movementState {
	id := mei.ID(mdiv)
	if id == "" {
		id = mei.NewID()
	}
	title := mei.AttrOr(mdiv, "label", mei.AttrOr(mdiv, "n", ""))

	prev := s.mv
	s.mv = &movementState{
		movement:    msm.NewMovement(title, id, s.ppq),
		performance: mpm.NewPerformance(title, id, s.ppq),
		index:       mei.IndexIDs(mdiv),
		dates:       make(map[string]float64),
		durs:        make(map[string]float64),
		notes:       make(map[string]*msm.Note),
		chordNotes:  make(map[string][]*msm.Note),
		byID:        make(map[string][]*terminator),
		lyrics:      make(map[string][]*lyricFragment),
	}
	s.part, s.layer, s.measure, s.chord, s.accids = nil, nil, nil, nil, nil
	return prev
}

// endMovement post-processes the current movement, hands it to the result and restores prev
func (s *session) endMovement(prev *movementState) {
	s.postProcess()
	s.result.Movements = append(s.result.Movements, s.mv.movement)
	s.result.Performances = append(s.result.Performances, s.mv.performance)
	s.mv = prev
	s.part, s.layer, s.measure, s.chord, s.accids = nil, nil, nil, nil, nil
}

// findPart returns the part registered under key (staff number or staffDef id)
func (s *session) findPart(key string) *partState {
	if s.mv == nil || key == "" {
		return nil
	}
	for _, p := range s.mv.parts {
		if p.key == key || (p.part.ID != "" && p.part.ID == key) {
			return p
		}
	}
	return nil
}

// makePart returns the part of a staffDef or staff, creating it when needed
func (s *session) makePart(e *xmlquery.Node) *partState {
	n := mei.AttrOr(e, "n", "")
	if p := s.findPart(n); p != nil {
		return p
	}

	number, err := parseInt(n)
	if err != nil {
		number = 1
		for _, p := range s.mv.parts {
			if p.part.Number >= number {
				number = p.part.Number + 1
			}
		}
		n = strconv.Itoa(number)
		mei.SetAttr(e, "n", n)
	}

	name := mei.AttrOr(e, "label", "")
	if grp := mei.Ancestor(e, "staffGrp"); grp != nil {
		if label := mei.AttrOr(grp, "label", ""); label != "" {
			name = strings.TrimSpace(label + " " + name)
		}
	}

	channel, port := 0, 0
	if len(s.mv.parts) > 0 {
		last := s.mv.parts[len(s.mv.parts)-1].part
		channel, port = (last.MidiChannel+1)%16, last.MidiPort
		if channel == 9 && s.opts.AvoidPercussionChannel {
			channel = 10
		}
		if channel == 0 {
			port = (port + 1) % 256
		}
	}

	id := mei.ID(e)
	if mei.Name(e) != "staffDef" {
		id = ""
	}
	p := &partState{
		part: msm.NewPart(name, number, channel, port, id),
		perf: s.mv.performance.AddPart(name, number, channel, port, id),
		key:  n,
	}
	if s.measure != nil {
		p.date = s.measure.start
	}
	s.mv.movement.AddPart(p.part)
	s.mv.parts = append(s.mv.parts, p)
	return p
}

// region returns the dated movement region of p, or the global one
func (s *session) region(p *partState) *msm.Region {
	if p == nil {
		return s.mv.movement.Global
	}
	return p.part.Dated
}

// perfRegion returns the performance region of p, or the global one
func (s *session) perfRegion(p *partState) *mpm.Region {
	if p == nil {
		return s.mv.performance.Global
	}
	return p.perf.Dated
}

// controlPart returns the part a control event belongs to: the first staff it names, else
// the current part
func (s *session) controlPart(e *xmlquery.Node) *partState {
	for _, n := range mei.RefIDs(mei.AttrOr(e, "staff", "")) {
		if p := s.findPart(n); p != nil {
			return p
		}
	}
	return s.part
}

// msmPart returns the movement part of p or nil
func msmPart(p *partState) *msm.Part {
	if p == nil {
		return nil
	}
	return p.part
}

// record stores the date and duration of a converted event for later references
func (s *session) record(e *xmlquery.Node, date, dur float64) {
	id := mei.ID(e)
	if id == "" {
		return
	}
	s.mv.dates[id] = date
	s.mv.durs[id] = dur
}
