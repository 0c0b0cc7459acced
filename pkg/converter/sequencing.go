package converter

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/james-see/mei2perf/pkg/mei"
	"github.com/james-see/mei2perf/pkg/msm"
)

// Marker messages the sequencing compiler writes and searches for
const (
	messageFine            = "fine"
	messageRepetitionStart = "repetition start"
	endingMarkerPrefix     = "endingMarker_"
)

var endingNumberPattern = regexp.MustCompile(`-?\d+`)

// barline turns a measure's left or right barline into sequencing commands at date
func (s *session) barline(e *xmlquery.Node, kind string, date float64) {
	seq := s.mv.movement.Global.Sequencing
	switch kind {
	case "end":
		seq.Add(&msm.Marker{Date: date, ID: mei.NewID(), Message: messageFine})
	case "rptstart":
		seq.Add(&msm.Marker{Date: date, ID: mei.NewID(), Message: messageRepetitionStart})
	case "rptboth":
		s.repeatJump(date)
		seq.Add(&msm.Marker{Date: date, ID: mei.NewID(), Message: messageRepetitionStart})
	case "rptend":
		s.repeatJump(date)
	}
}

// repeatJump adds a first-pass jump from date back to the nearest earlier repetition start
// or fine marker, else to the beginning
func (s *session) repeatJump(date float64) {
	seq := s.mv.movement.Global.Sequencing
	target, targetID := 0.0, ""
	for _, m := range msm.Markers(seq) {
		if m.Date < date && (m.Message == messageRepetitionStart || m.Message == messageFine) {
			target, targetID = m.Date, m.ID
		}
	}
	seq.Add(&msm.Goto{
		Date:       date,
		Activity:   "1",
		TargetDate: target,
		TargetID:   targetID,
		ID:         mei.NewID(),
	})
}

// endingNumber orders endings: "fine" sorts last, else the first number of n or label;
// unlabeled endings get math.MinInt
func endingNumber(e *xmlquery.Node) (int, string) {
	label := mei.AttrOr(e, "n", mei.AttrOr(e, "label", ""))
	if strings.Contains(strings.ToLower(label), messageFine) {
		return math.MaxInt, label
	}
	if m := endingNumberPattern.FindString(label); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n, label
		}
	}
	return math.MinInt, label
}

// processEnding marks the start of a volta and wires the jump that reaches it on its pass
func (s *session) processEnding(e *xmlquery.Node) {
	seq := s.mv.movement.Global.Sequencing
	start := s.now()
	n, label := endingNumber(e)

	id := mei.ID(e)
	if id == "" {
		id = mei.NewID()
	}
	marker := &msm.Marker{Date: start, ID: endingMarkerPrefix + id, Message: strings.TrimSpace("ending " + label)}
	seq.Add(marker)

	repStart := 0.0
	for _, m := range msm.Markers(seq) {
		if m.Message == messageRepetitionStart && m.Date <= start {
			repStart = m.Date
		}
	}

	jumpDate, first := start, false
	for _, m := range msm.Markers(seq) {
		if strings.HasPrefix(m.ID, endingMarkerPrefix) && m.Date >= repStart {
			jumpDate = m.Date
			first = m == marker
			break
		}
	}
	if first {
		jumpDate = start
	}

	jump := &msm.Goto{
		Date:       jumpDate,
		Activity:   "01",
		TargetDate: start,
		TargetID:   marker.ID,
		ID:         mei.NewID(),
		N:          n,
	}
	s.placeEndingJump(seq, jump)

	s.convert(e)

	if first {
		jump.TargetDate = s.now()
	}
}

// placeEndingJump orders the jumps of sibling endings by number. The first numbered ending
// gets a provisional jump past itself, which the next numbered ending replaces.
func (s *session) placeEndingJump(seq *msm.Map[msm.SequencingCommand], jump *msm.Goto) {
	if jump.N == math.MinInt {
		seq.Add(jump)
		return
	}

	var same []*msm.Goto
	for _, g := range msm.Gotos(seq) {
		if g.Date == jump.Date {
			same = append(same, g)
		}
	}
	if len(same) == 0 {
		jump.First = true
		jump.TargetID = ""
		seq.Add(jump)
		return
	}

	index := -1
	for i, g := range same {
		if g.N > jump.N {
			index = i
			break
		}
	}
	if index == 0 {
		jump.Activity = "1"
	}
	if index >= 0 {
		before := same[index]
		seq.InsertAt(seq.IndexOf(func(c msm.SequencingCommand) bool { return c == msm.SequencingCommand(before) }), jump)
	} else {
		seq.Add(jump)
	}

	if provisional := same[0]; provisional.First {
		seq.Remove(func(c msm.SequencingCommand) bool { return c == msm.SequencingCommand(provisional) })
	}
}

// processRepeat duplicates the last timeframe ticks of the current layer behind the cursor
func (s *session) processRepeat(e *xmlquery.Node, timeframe float64) {
	if s.part == nil {
		s.warn(mei.Name(e)+" outside of a staff", e)
		return
	}
	if timeframe <= 0 {
		s.warn(mei.Name(e)+" without a time signature", e)
		return
	}

	now, layer := s.part.date, s.layerID()
	score := s.part.part.Score
	for _, entry := range score.Between(now-timeframe, now) {
		if layer != "" && entry.LayerID() != layer {
			continue
		}
		id := entry.EntryID()
		if id != "" {
			id += "_" + mei.NewID()
		}
		score.Add(msm.Shift(entry, entry.When()+timeframe, id))
	}
	s.part.date = now + timeframe
	s.record(e, now, timeframe)
}

func (s *session) processBeatRpt(e *xmlquery.Node) {
	ts := s.mv.movement.TimeSignatureAt(msmPart(s.part), s.now())
	s.processRepeat(e, ts.BeatTicks(s.ppq))
}

func (s *session) processHalfmRpt(e *xmlquery.Node) {
	timeframe := s.computeDuration(e)
	if timeframe == 0 {
		timeframe = s.measureLength() / 2
	}
	s.processRepeat(e, timeframe)
}

func (s *session) processMRpt(e *xmlquery.Node) {
	s.processRepeat(e, s.measureLength())
}

func (s *session) processMRpt2(e *xmlquery.Node) {
	s.spanMeasures(2)
	s.processRepeat(e, 2*s.measureLength())
}

func (s *session) processMultiRpt(e *xmlquery.Node) {
	num, err := parseInt(mei.AttrOr(e, "num", "1"))
	if err != nil || num < 1 {
		s.warn("invalid multiRpt num", e)
		num = 1
	}
	s.spanMeasures(num)
	s.processRepeat(e, float64(num)*s.measureLength())
}
