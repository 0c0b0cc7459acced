package converter

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/james-see/mei2perf/pkg/mpm"
	"github.com/james-see/mei2perf/pkg/msm"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// defaultVelocity is used for notes without a dynamics instruction
const defaultVelocity = 100

// MIDIConverter renders movements as Standard MIDI Files and reads them back
type MIDIConverter struct {
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter() *MIDIConverter {
	return &MIDIConverter{
		ticksPerQuarter: 720,
		tempo:           120.0,
	}
}

// MIDINote is a note read back from a MIDI file
type MIDINote struct {
	Track    int
	Channel  uint8
	Key      uint8
	Velocity uint8
	Tick     int64
	Duration int64
}

// MIDISummary is what ParseMIDI extracts from a MIDI file
type MIDISummary struct {
	TicksPerQuarter uint16
	Tempo           float64
	Tracks          int
	Notes           []MIDINote
}

// ParseMIDIFile reads a MIDI file and extracts its notes
func (m *MIDIConverter) ParseMIDIFile(filename string) (*MIDISummary, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.ParseMIDI(data)
}

// ParseMIDI parses MIDI data and extracts tempo and notes
func (m *MIDIConverter) ParseMIDI(data []byte) (*MIDISummary, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		m.ticksPerQuarter = mt.Resolution()
	}
	summary := &MIDISummary{
		TicksPerQuarter: m.ticksPerQuarter,
		Tempo:           m.tempo,
		Tracks:          len(s.Tracks),
	}

	type openNote struct {
		index int
	}

	for ti, track := range s.Tracks {
		var currentTick int64
		open := make(map[[2]uint8][]openNote)
		for _, ev := range track {
			currentTick += int64(ev.Delta)
			msg := ev.Message

			// Tempo meta message (FF 51 03 ...)
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				microsecondsPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if microsecondsPerBeat > 0 && summary.Tempo == m.tempo {
					summary.Tempo = 60000000.0 / float64(microsecondsPerBeat)
				}
				continue
			}
			if len(msg) < 3 {
				continue
			}

			status, key, velocity := msg[0], msg[1], msg[2]
			channel := status & 0x0F
			slot := [2]uint8{channel, key}
			switch {
			case status&0xF0 == 0x90 && velocity > 0:
				summary.Notes = append(summary.Notes, MIDINote{
					Track:    ti,
					Channel:  channel,
					Key:      key,
					Velocity: velocity,
					Tick:     currentTick,
				})
				open[slot] = append(open[slot], openNote{index: len(summary.Notes) - 1})
			case status&0xF0 == 0x80 || status&0xF0 == 0x90:
				if stack := open[slot]; len(stack) > 0 {
					n := &summary.Notes[stack[0].index]
					n.Duration = currentTick - n.Tick
					open[slot] = stack[1:]
				}
			}
		}
	}

	return summary, nil
}

// midiEvent is a message placed at an absolute tick
type midiEvent struct {
	tick  int64
	order int
	msg   []byte
}

// GenerateMIDI renders a movement as a type 1 MIDI file: a conductor track with tempo, meter,
// key and markers, then one track per part. Velocities follow the performance's dynamics.
func (m *MIDIConverter) GenerateMIDI(mv *msm.Movement, perf *mpm.Performance) ([]byte, error) {
	if mv == nil {
		return nil, errors.New("nil movement")
	}
	if mv.PPQ <= 0 || mv.PPQ > math.MaxInt16 {
		return nil, fmt.Errorf("ticks per quarter %d out of MIDI range", mv.PPQ)
	}
	m.ticksPerQuarter = uint16(mv.PPQ)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	if err := s.Add(m.conductorTrack(mv, perf)); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	for _, part := range mv.Parts {
		if err := s.Add(m.partTrack(part, perf)); err != nil {
			return nil, fmt.Errorf("failed to add track: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMIDIFile writes the MIDI rendering of a movement to a file
func (m *MIDIConverter) WriteMIDIFile(mv *msm.Movement, perf *mpm.Performance, filename string) error {
	data, err := m.GenerateMIDI(mv, perf)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func (m *MIDIConverter) conductorTrack(mv *msm.Movement, perf *mpm.Performance) smf.Track {
	var events []midiEvent

	tempoFound := false
	if perf != nil {
		for _, t := range perf.Global.Tempo.Entries() {
			events = append(events, midiEvent{tick: tick(t.Date), msg: tempoMessage(quarterBpm(t))})
			tempoFound = true
		}
	}
	if !tempoFound {
		events = append(events, midiEvent{tick: 0, msg: tempoMessage(m.tempo)})
	}

	if mv.Global != nil {
		for _, ts := range mv.Global.TimeSignatures.Entries() {
			events = append(events, midiEvent{tick: tick(ts.Date), order: 1, msg: timeSignatureMessage(ts)})
		}
		for _, ks := range mv.Global.KeySignatures.Entries() {
			events = append(events, midiEvent{tick: tick(ks.Date), order: 1, msg: keySignatureMessage(ks)})
		}
		for _, mk := range mv.Global.Markers.Entries() {
			events = append(events, midiEvent{tick: tick(mk.Date), order: 2, msg: textMessage(0x06, mk.Message)})
		}
		for _, mk := range msm.Markers(mv.Global.Sequencing) {
			events = append(events, midiEvent{tick: tick(mk.Date), order: 2, msg: textMessage(0x06, mk.Message)})
		}
	}

	events = append([]midiEvent{{tick: 0, order: -1, msg: textMessage(0x03, mv.Title)}}, events...)
	return buildTrack(events)
}

func (m *MIDIConverter) partTrack(part *msm.Part, perf *mpm.Performance) smf.Track {
	channel := uint8(part.MidiChannel & 0x0F)
	events := []midiEvent{{tick: 0, order: -1, msg: textMessage(0x03, part.Name)}}

	var regions []*mpm.Region
	if perf != nil {
		if pp := perf.Part(part.Number); pp != nil {
			regions = append(regions, pp.Dated)
		}
		regions = append(regions, perf.Global)
	}

	for _, n := range part.Notes() {
		key := uint8(math.Max(0, math.Min(127, math.Round(n.MidiPitch))))
		start := tick(n.Date)
		end := tick(n.Date + n.Duration)
		if end <= start {
			continue
		}
		// note-offs sort before note-ons at the same tick so repeated keys retrigger
		events = append(events,
			midiEvent{tick: start, order: 1, msg: midi.NoteOn(channel, key, velocityAt(regions, n.Date))},
			midiEvent{tick: end, order: 0, msg: midi.NoteOff(channel, key)},
		)
	}
	return buildTrack(events)
}

// buildTrack sorts events and converts absolute ticks to deltas
func buildTrack(events []midiEvent) smf.Track {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].order < events[j].order
	})

	var track smf.Track
	var currentTick int64
	for _, ev := range events {
		track.Add(uint32(ev.tick-currentTick), ev.msg)
		currentTick = ev.tick
	}
	track.Close(0)
	return track
}

func tick(date float64) int64 {
	return int64(math.Round(date))
}

// quarterBpm converts a tempo to quarter notes per minute
func quarterBpm(t *mpm.Tempo) float64 {
	if t.BeatLength <= 0 {
		return t.Bpm
	}
	return t.Bpm * t.BeatLength * 4
}

// velocityAt reads the volume in effect at date from the first region that has one
func velocityAt(regions []*mpm.Region, date float64) uint8 {
	for _, r := range regions {
		if d, ok := r.Dynamics.LastBefore(date); ok {
			return uint8(math.Max(1, math.Min(127, math.Round(d.Volume))))
		}
	}
	return defaultVelocity
}

func tempoMessage(bpm float64) []byte {
	if bpm <= 0 {
		bpm = 120.0
	}
	microsecondsPerBeat := uint32(60000000.0 / bpm)
	return smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	})
}

func timeSignatureMessage(ts *msm.TimeSignature) []byte {
	power := byte(0)
	for d := ts.Denominator; d > 1; d >>= 1 {
		power++
	}
	return smf.Message([]byte{0xFF, 0x58, 0x04, byte(ts.Numerator), power, 0x18, 0x08})
}

// keySignatureMessage counts whole-tone sharps and flats; mixed signatures keep their balance
func keySignatureMessage(ks *msm.KeySignature) []byte {
	count := 0
	for _, a := range ks.Accidentals {
		switch {
		case a.Value > 0:
			count++
		case a.Value < 0:
			count--
		}
	}
	if count > 7 {
		count = 7
	}
	if count < -7 {
		count = -7
	}
	return smf.Message([]byte{0xFF, 0x59, 0x02, byte(int8(count)), 0x00})
}

// textMessage builds a text meta event (0x03 track name, 0x06 marker)
func textMessage(kind byte, text string) []byte {
	msg := []byte{0xFF, kind}
	msg = append(msg, varLen(uint32(len(text)))...)
	return smf.Message(append(msg, text...))
}

// varLen encodes a MIDI variable-length quantity
func varLen(v uint32) []byte {
	out := []byte{byte(v & 0x7F)}
	for v >>= 7; v > 0; v >>= 7 {
		out = append([]byte{byte(v&0x7F) | 0x80}, out...)
	}
	return out
}
