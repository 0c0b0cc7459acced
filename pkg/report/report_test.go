package report

import (
	"testing"

	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duet = `<mei xmlns="http://www.music-encoding.org/ns/mei"><music><body><mdiv xml:id="m1" label="Minuet"><score>` +
	`<scoreDef meter.count="3" meter.unit="4"><staffGrp>` +
	`<staffDef n="1" label="Violin"/><staffDef n="2" label="Cello"/></staffGrp></scoreDef>` +
	`<section><measure n="1">` +
	`<staff n="1"><layer n="1"><note pname="e" oct="5" dur="2" dots="1"/></layer></staff>` +
	`<staff n="2"><layer n="1"><note pname="c" oct="3" dur="4"/><rest dur="2"/></layer></staff>` +
	`<dynam staff="1" tstamp="1">mf</dynam><tempo tstamp="1" midi.bpm="120"/></measure></section>` +
	`</score></mdiv></body></music></mei>`

func TestRender(t *testing.T) {
	res, err := converter.New(converter.DefaultOptions(), logging.Discard()).ConvertBytes([]byte(duet))
	require.NoError(t, err)

	out := Render("duet.mei", res)

	for _, want := range []string{"duet.mei", "Minuet", "Violin", "Cello", "1 notes", "1 rests", "2160 ticks"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "unresolved")
}

func TestRenderUnresolved(t *testing.T) {
	out := Render("x.mei", &converter.Result{PPQ: 720, Unresolved: []string{"a", "b"}})
	assert.Contains(t, out, "unresolved references: a, b")
}
