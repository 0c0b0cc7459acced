package mei

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleMEI = `<?xml version="1.0" encoding="UTF-8"?>
<mei xmlns="http://www.music-encoding.org/ns/mei">
  <music>
    <body>
      <mdiv xml:id="m1">
        <score>
          <section>
            <measure xml:id="ms1" n="1">
              <staff n="1">
                <layer n="1">
                  <note xml:id="n1" pname="c" oct="4" dur="4"/>
                  <note xml:id="n2" pname="d" oct="4" dur="4"/>
                </layer>
              </staff>
            </measure>
          </section>
        </score>
      </mdiv>
    </body>
  </music>
</mei>`

func mustParse(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := Parse([]byte(data))
	require.NoError(t, err)
	return doc
}

func TestParseAndLocateMusic(t *testing.T) {
	doc := mustParse(t, simpleMEI)

	require.NotNil(t, doc.RootElement())
	assert.Equal(t, "mei", Name(doc.RootElement()))
	require.NotNil(t, doc.Music())
	assert.Len(t, doc.Bodies(), 1)
	assert.False(t, doc.IsEmpty())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("<mei><music>"))
	assert.Error(t, err)
}

func TestEmptyDocument(t *testing.T) {
	doc := mustParse(t, `<mei xmlns="http://www.music-encoding.org/ns/mei"><meiHead/></mei>`)
	assert.Nil(t, doc.Music())
	assert.True(t, doc.IsEmpty())
}

func TestAttributeAccess(t *testing.T) {
	doc := mustParse(t, simpleMEI)
	notes := Descendants(doc.Root(), "note")
	require.Len(t, notes, 2)

	n := notes[0]
	assert.Equal(t, "n1", ID(n))
	assert.Equal(t, "c", AttrOr(n, "pname", ""))
	assert.Equal(t, "x", AttrOr(n, "accid", "x"))
	assert.True(t, HasAttr(n, "xml:id"))

	SetAttr(n, "accid", "s")
	v, ok := Attr(n, "accid")
	assert.True(t, ok)
	assert.Equal(t, "s", v)

	RemoveAttr(n, "accid")
	assert.False(t, HasAttr(n, "accid"))

	SetID(n, "renamed")
	assert.Equal(t, "renamed", ID(n))
}

func TestQuery(t *testing.T) {
	doc := mustParse(t, simpleMEI)

	nodes, err := doc.Query("//note[@pname='d']")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "n2", ID(nodes[0]))

	_, err = doc.Query("//note[")
	assert.Error(t, err)
}

func TestTreeEditing(t *testing.T) {
	doc := mustParse(t, simpleMEI)
	layer := Descendants(doc.Root(), "layer")[0]
	notes := ChildElements(layer, "note")
	require.Len(t, notes, 2)

	// move n2 in front of n1
	InsertBefore(notes[0], notes[1])
	ids := []string{}
	for _, c := range ChildElements(layer) {
		ids = append(ids, ID(c))
	}
	assert.Equal(t, []string{"n2", "n1"}, ids)
	assert.Equal(t, notes[0], NextSiblingElement(notes[1]))
	assert.Equal(t, notes[1], PrevSiblingElement(notes[0]))

	Detach(notes[0])
	assert.Len(t, ChildElements(layer), 1)
	assert.Nil(t, notes[0].Parent)

	AppendChild(layer, notes[0])
	assert.Equal(t, notes[0], layer.LastChild)
	assert.Equal(t, layer, notes[0].Parent)
}

func TestDeepCopyIsIndependent(t *testing.T) {
	doc := mustParse(t, simpleMEI)
	measure := Descendants(doc.Root(), "measure")[0]

	cp := DeepCopy(measure)
	assert.Nil(t, cp.Parent)
	assert.Len(t, Descendants(cp, "note"), 2)

	SetAttr(Descendants(cp, "note")[0], "pname", "g")
	assert.Equal(t, "c", AttrOr(Descendants(measure, "note")[0], "pname", ""))
}

func TestAncestorAndDescendant(t *testing.T) {
	doc := mustParse(t, simpleMEI)
	note := Descendants(doc.Root(), "note")[0]
	staff := Ancestor(note, "staff")
	require.NotNil(t, staff)
	assert.Equal(t, "1", AttrOr(staff, "n", ""))
	assert.True(t, IsDescendant(note, staff))
	assert.False(t, IsDescendant(staff, note))
	assert.Nil(t, Ancestor(note, "ending"))
}

func TestRefIDs(t *testing.T) {
	assert.Equal(t, "abc", RefID("#abc"))
	assert.Equal(t, "abc", RefID(" abc "))
	assert.Equal(t, []string{"a", "b", "c"}, RefIDs("#a  #b\n#c"))
	assert.Empty(t, RefIDs(""))
}

func TestAddIDs(t *testing.T) {
	doc := mustParse(t, `<mei><music><body><mdiv><score><section><measure><staff><layer>
		<note pname="c"/><rest/><chord><note pname="e"/></chord><note xml:id="keep"/>
	</layer></staff></measure></section></score></mdiv></body></music></mei>`)

	count := AddIDs(doc.Root())
	assert.Equal(t, 5, count)
	for _, n := range Descendants(doc.Root(), "note", "rest", "chord", "mdiv") {
		assert.NotEmpty(t, ID(n))
	}
	assert.Len(t, Descendants(doc.Root(), "note"), 3)
	assert.Equal(t, 0, AddIDs(doc.Root()))
}
