package mei

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapLayer(content string) string {
	return `<mei xmlns="http://www.music-encoding.org/ns/mei"><music><body><mdiv><score><section>` +
		`<measure n="1"><staff n="1"><layer n="1">` + content + `</layer></staff></measure>` +
		`</section></score></mdiv></body></music></mei>`
}

func layerIDs(t *testing.T, doc *Document) []string {
	t.Helper()
	layers := Descendants(doc.Root(), "layer")
	require.NotEmpty(t, layers)
	var ids []string
	for _, c := range ChildElements(layers[0]) {
		ids = append(ids, ID(c))
	}
	return ids
}

func TestResolveCopyOfs(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantIDs        []string
		wantUnresolved []string
	}{
		{
			name:    "no placeholders",
			content: `<note xml:id="a" pname="c"/><note xml:id="b" pname="d"/>`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "copyof keeps placeholder id",
			content: `<note xml:id="a" pname="c"/><note xml:id="p" copyof="#a"/>`,
			wantIDs: []string{"a", "p"},
		},
		{
			name:           "missing target is removed",
			content:        `<note xml:id="a" pname="c"/><note xml:id="p" sameas="#zzz"/>`,
			wantIDs:        []string{"a"},
			wantUnresolved: []string{"p"},
		},
		{
			name:           "cycle is reported",
			content:        `<note xml:id="x" copyof="#y"/><note xml:id="y" copyof="#x"/>`,
			wantIDs:        nil,
			wantUnresolved: []string{"x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, wrapLayer(tt.content))
			unresolved := ResolveCopyOfs(doc.Root())
			assert.ElementsMatch(t, tt.wantUnresolved, unresolved)
			assert.Equal(t, tt.wantIDs, layerIDs(t, doc))
		})
	}
}

func TestResolveCopyOfsCopiesContent(t *testing.T) {
	doc := mustParse(t, wrapLayer(
		`<chord xml:id="c1" dur="4"><note xml:id="c1n1" pname="c"/><note xml:id="c1n2" pname="e"/></chord>`+
			`<chord xml:id="c2" copyof="#c1"/>`))

	unresolved := ResolveCopyOfs(doc.Root())
	assert.Empty(t, unresolved)

	chords := Descendants(doc.Root(), "chord")
	require.Len(t, chords, 2)
	copied := chords[1]
	assert.Equal(t, "c2", ID(copied))
	assert.Equal(t, "4", AttrOr(copied, "dur", ""))
	assert.False(t, HasAttr(copied, "copyof"))

	notes := ChildElements(copied, "note")
	require.Len(t, notes, 2)
	assert.True(t, strings.HasPrefix(ID(notes[0]), "c1n1_"+IDPrefix))
	assert.True(t, strings.HasPrefix(ID(notes[1]), "c1n2_"+IDPrefix))
	assert.Equal(t, "e", AttrOr(notes[1], "pname", ""))

	// originals untouched
	assert.Equal(t, "c1n1", ID(ChildElements(chords[0], "note")[0]))
}

func TestResolveCopyOfsChain(t *testing.T) {
	doc := mustParse(t, wrapLayer(
		`<note xml:id="a" pname="g"/><note xml:id="b" copyof="#a"/><note xml:id="c" copyof="#b"/>`))

	unresolved := ResolveCopyOfs(doc.Root())
	assert.Empty(t, unresolved)
	assert.Equal(t, []string{"a", "b", "c"}, layerIDs(t, doc))
	for _, n := range Descendants(doc.Root(), "note") {
		assert.Equal(t, "g", AttrOr(n, "pname", ""))
	}
}

func TestResolveCopyOfsIdempotent(t *testing.T) {
	doc := mustParse(t, wrapLayer(`<note xml:id="a" pname="c"/><note xml:id="p" copyof="#a"/>`))
	require.Empty(t, ResolveCopyOfs(doc.Root()))
	before := doc.XML()
	require.Empty(t, ResolveCopyOfs(doc.Root()))
	assert.Equal(t, before, doc.XML())
}

func TestResolveCopyOfsReportsMarkupWithoutID(t *testing.T) {
	doc := mustParse(t, wrapLayer(`<note copyof="#nowhere"/>`))
	unresolved := ResolveCopyOfs(doc.Root())
	require.Len(t, unresolved, 1)
	assert.Contains(t, unresolved[0], "nowhere")
}
