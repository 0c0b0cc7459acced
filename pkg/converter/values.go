package converter

import (
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/james-see/mei2perf/pkg/msm"
)

// valueLexer tokenizes the compound attribute values of meters, key signatures and time stamps
var valueLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Float", Pattern: `[0-9]+\.[0-9]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
	{Name: "Punct", Pattern: `[+\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// meterCount is an additive meter count such as "3" or "2+2+3"
//
//nolint:govet // participle grammar tags are not standard struct tags
type meterCount struct {
	Terms []int `parser:"@Int ( \"+\" @Int )*"`
}

// measureBeat is a tstamp2 value: measures to cross, then the beat in the target measure
//
//nolint:govet // participle grammar tags are not standard struct tags
type measureBeat struct {
	Measures int     `parser:"@Int \"m\""`
	Beat     float64 `parser:"\"+\" @( Float | Int )"`
}

// keySigCount is a key.sig value such as "3s", "2f" or "0"
//
//nolint:govet // participle grammar tags are not standard struct tags
type keySigCount struct {
	Count int    `parser:"@Int"`
	Kind  string `parser:"@( \"s\" | \"f\" )?"`
}

// mixedAccid is one sig.mixed token: "a4s" carries an octave, "bf" applies to every octave
//
//nolint:govet // participle grammar tags are not standard struct tags
type mixedAccid struct {
	Head  string `parser:"@Ident"`
	Oct   *int   `parser:"( @Int"`
	Accid string `parser:"  @Ident )?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type mixedKey struct {
	Accids []*mixedAccid `parser:"@@*"`
}

var (
	meterCountParser  = participle.MustBuild[meterCount](participle.Lexer(valueLexer), participle.Elide("Whitespace"))
	measureBeatParser = participle.MustBuild[measureBeat](participle.Lexer(valueLexer), participle.Elide("Whitespace"))
	keySigParser      = participle.MustBuild[keySigCount](participle.Lexer(valueLexer), participle.Elide("Whitespace"))
	mixedKeyParser    = participle.MustBuild[mixedKey](participle.Lexer(valueLexer), participle.Elide("Whitespace"))
)

// sharpOrder and flatOrder give the pitch classes a key signature alters, in order
var (
	sharpOrder = []string{"f", "c", "g", "d", "a", "e", "b"}
	flatOrder  = []string{"b", "e", "a", "d", "g", "c", "f"}
)

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// meterValue sums an additive meter count
func meterValue(s string) (int, bool) {
	parsed, err := meterCountParser.ParseString("", s)
	if err != nil {
		return 0, false
	}
	sum := 0
	for _, t := range parsed.Terms {
		sum += t
	}
	return sum, true
}

// parseMeasureBeat splits a tstamp2 value like "1m+2.5"
func parseMeasureBeat(s string) (int, float64, bool) {
	parsed, err := measureBeatParser.ParseString("", s)
	if err != nil {
		return 0, 0, false
	}
	return parsed.Measures, parsed.Beat, true
}

// keySigAccidentals expands a key.sig value into the pitch classes it alters
func keySigAccidentals(sig string) ([]msm.KeyAccidental, bool) {
	parsed, err := keySigParser.ParseString("", sig)
	if err != nil || parsed.Count < 0 || parsed.Count > 7 {
		return nil, false
	}
	if parsed.Count == 0 {
		return []msm.KeyAccidental{}, true
	}

	order, value := sharpOrder, 1.0
	switch parsed.Kind {
	case "s":
	case "f":
		order, value = flatOrder, -1.0
	default:
		return nil, false
	}

	out := make([]msm.KeyAccidental, 0, parsed.Count)
	for _, pname := range order[:parsed.Count] {
		out = append(out, msm.KeyAccidental{PitchName: pname, Octave: -1, Value: value})
	}
	return out, true
}

// mixedAccidentals expands a sig.mixed value
func mixedAccidentals(sig string) ([]msm.KeyAccidental, bool) {
	parsed, err := mixedKeyParser.ParseString("", strings.ToLower(sig))
	if err != nil {
		return nil, false
	}

	out := make([]msm.KeyAccidental, 0, len(parsed.Accids))
	for _, a := range parsed.Accids {
		pname, accid, oct := a.Head, a.Accid, -1
		if a.Oct != nil {
			oct = *a.Oct
		} else {
			pname, accid = a.Head[:1], a.Head[1:]
		}
		if _, ok := pitchClass(pname); !ok {
			return nil, false
		}
		v, ok := accidValue(accid)
		if !ok {
			return nil, false
		}
		out = append(out, msm.KeyAccidental{PitchName: pname, Octave: oct, Value: v})
	}
	return out, true
}

// durationDecimal returns a duration token as a fraction of a whole note, or 0 when unknown
func durationDecimal(token string) float64 {
	switch t := strings.TrimSpace(token); t {
	case "maxima":
		return 8
	case "long":
		return 4
	case "breve":
		return 2
	default:
		n, err := strconv.Atoi(t)
		if err != nil || n <= 0 || n > 2048 || n&(n-1) != 0 {
			return 0
		}
		return 1 / float64(n)
	}
}

// durationTicks returns a duration token in ticks
func durationTicks(token string, ppq int) float64 {
	return durationDecimal(token) * 4 * float64(ppq)
}

// dotFactor is the length multiplier of a note with the given number of dots
func dotFactor(dots int) float64 {
	if dots <= 0 {
		return 1
	}
	return 2 - math.Pow(2, -float64(dots))
}

var accidValues = map[string]float64{
	"s":   1,
	"f":   -1,
	"ss":  2,
	"x":   2,
	"ff":  -2,
	"xs":  3,
	"ts":  3,
	"tf":  -3,
	"n":   0,
	"nf":  -1,
	"ns":  1,
	"su":  1.5,
	"sd":  0.5,
	"fu":  -0.5,
	"fd":  -1.5,
	"nu":  0.5,
	"nd":  -0.5,
	"1qf": -0.5,
	"3qf": -1.5,
	"1qs": 0.5,
	"3qs": 1.5,
}

// accidValue returns the semitone offset of an accidental token
func accidValue(token string) (float64, bool) {
	v, ok := accidValues[strings.TrimSpace(token)]
	return v, ok
}

var pitchClasses = map[string]float64{
	"c": 0,
	"d": 2,
	"e": 4,
	"f": 5,
	"g": 7,
	"a": 9,
	"b": 11,
}

// pitchClass returns the semitone of a pitch name within the octave
func pitchClass(pname string) (float64, bool) {
	v, ok := pitchClasses[strings.ToLower(strings.TrimSpace(pname))]
	return v, ok
}
