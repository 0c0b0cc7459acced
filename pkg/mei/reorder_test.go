package mei

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReorderByStartID(t *testing.T) {
	doc := mustParse(t, `<mei><music><body><mdiv><score><section>
	<measure n="1">
	  <staff n="1"><layer n="1">
	    <note xml:id="a" pname="c" oct="4" dur="2"/>
	    <dynam xml:id="placed" startid="#b">p</dynam>
	    <note xml:id="b" pname="d" oct="4" dur="2"><artic xml:id="inner" startid="#b" artic="stacc"/></note>
	  </layer></staff>
	  <octave xml:id="oct" startid="#a" endid="#b" dis="8" dis.place="above"/>
	  <tupletSpan xml:id="span" startid="b" num="3" numbase="2"/>
	  <slur xml:id="lost" startid="#missing"/>
	  <dir xml:id="self" startid="#word"><rend xml:id="word">dolce</rend></dir>
	</measure>
	</section></score></mdiv></body></music></mei>`)

	moved := ReorderByStartID(doc.Root())
	assert.Equal(t, 2, moved)

	index := IndexIDs(doc.Root())
	tests := []struct {
		id     string
		parent string
		next   string
	}{
		{id: "oct", parent: "layer", next: "a"},
		{id: "placed", parent: "layer", next: "span"},
		{id: "span", parent: "layer", next: "b"},
		{id: "inner", parent: "note"},
		{id: "lost", parent: "measure", next: "self"},
		{id: "self", parent: "measure"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			e := index[tt.id]
			require.NotNil(t, e)
			assert.Equal(t, tt.parent, Name(e.Parent))
			next := NextSiblingElement(e)
			if tt.next == "" {
				assert.Nil(t, next)
				return
			}
			require.NotNil(t, next)
			assert.Equal(t, tt.next, ID(next))
		})
	}
}

func TestReorderByStartIDIsIdempotent(t *testing.T) {
	doc := mustParse(t, `<mei><music><body><mdiv><score><section><measure n="1">
	  <staff n="1"><layer n="1"><note xml:id="a" pname="c" oct="4" dur="1"/></layer></staff>
	  <pedal startid="#a" dir="down"/>
	</measure></section></score></mdiv></body></music></mei>`)

	require.Equal(t, 1, ReorderByStartID(doc.Root()))
	before := doc.XML()
	assert.Equal(t, 0, ReorderByStartID(doc.Root()))
	assert.Equal(t, before, doc.XML())
}
