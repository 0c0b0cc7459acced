package mei

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const expansionMEI = `<mei xmlns="http://www.music-encoding.org/ns/mei"><music><body><mdiv><score>
<section xml:id="main">
  <expansion plist="#A #B #A #C"/>
  <section xml:id="A"><measure xml:id="mA" n="1"/></section>
  <section xml:id="B"><measure xml:id="mB" n="2"/></section>
  <section xml:id="C"><measure xml:id="mC" n="3"/></section>
  <section xml:id="D"><measure xml:id="mD" n="4"/></section>
</section>
</score></mdiv></body></music></mei>`

func TestResolveExpansions(t *testing.T) {
	doc := mustParse(t, expansionMEI)
	original := doc.XML()

	out := ResolveExpansions(doc.Root())
	require.NotNil(t, out)
	assert.Equal(t, original, doc.XML(), "input tree must stay unchanged")

	main := Descendants(out, "section")[0]
	require.Equal(t, "main", ID(main))

	children := ChildElements(main)
	require.Len(t, children, 4)
	assert.Equal(t, "A", ID(children[0]))
	assert.Equal(t, "B", ID(children[1]))
	assert.True(t, strings.HasPrefix(ID(children[2]), "A_"+IDPrefix))
	assert.Equal(t, "C", ID(children[3]))

	// the repeated section's measures get fresh ids too
	repeatedMeasure := ChildElements(children[2], "measure")[0]
	assert.True(t, strings.HasPrefix(ID(repeatedMeasure), "mA_"+IDPrefix))

	// expansion element and unlisted section are gone
	assert.Empty(t, ChildElements(main, "expansion"))
	for _, c := range children {
		assert.NotEqual(t, "D", ID(c))
	}
}

func TestResolveExpansionsEmptyPlist(t *testing.T) {
	doc := mustParse(t, `<mei><music><body><mdiv><score><section>
		<expansion plist=""/><measure xml:id="m1"/><measure xml:id="m2"/>
	</section></score></mdiv></body></music></mei>`)

	out := ResolveExpansions(doc.Root())
	section := Descendants(out, "section")[0]
	assert.Len(t, ChildElements(section, "measure"), 2)
	assert.Len(t, ChildElements(section, "expansion"), 1)
}

func TestResolveExpansionsNested(t *testing.T) {
	doc := mustParse(t, `<mei><music><body><mdiv><score>
	<section xml:id="outer">
	  <expansion plist="#inner #inner"/>
	  <section xml:id="inner">
	    <expansion plist="#x #x"/>
	    <measure xml:id="x"/>
	  </section>
	</section></score></mdiv></body></music></mei>`)

	out := ResolveExpansions(doc.Root())
	outer := Descendants(out, "section")[0]
	inners := ChildElements(outer, "section")
	require.Len(t, inners, 2)
	for _, inner := range inners {
		assert.Len(t, ChildElements(inner, "measure"), 2)
	}
	assert.Len(t, Descendants(out, "measure"), 4)
}

func TestResolveExpansionsWithoutExpansion(t *testing.T) {
	doc := mustParse(t, simpleMEI)
	out := ResolveExpansions(doc.Root())
	assert.NotSame(t, doc.Root(), out)

	var before, after []string
	for _, e := range Descendants(doc.Root()) {
		before = append(before, Name(e)+"#"+ID(e))
	}
	for _, e := range Descendants(out) {
		after = append(after, Name(e)+"#"+ID(e))
	}
	assert.Equal(t, before, after)
}
