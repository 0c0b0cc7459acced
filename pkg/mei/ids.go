package mei

import (
	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
)

// IDPrefix starts every generated id so that it is a valid XML name
const IDPrefix = "m2p_"

// idTargets are the element kinds AddIDs makes addressable
var idTargets = []string{"note", "rest", "mRest", "multiRest", "chord", "tuplet", "mdiv", "reh"}

// NewID mints a fresh document-unique id
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// ReID gives every id-bearing element in the subtree (n included) a fresh id derived from its old one
func ReID(n *xmlquery.Node) {
	if n == nil {
		return
	}
	nodes := append([]*xmlquery.Node{n}, Descendants(n)...)
	for _, e := range nodes {
		if id := ID(e); id != "" {
			SetID(e, id+"_"+NewID())
		}
	}
}

// AddIDs mints ids on notes, rests, chords, tuplets, mdivs and rehearsal marks that lack one and returns how many were added
func AddIDs(root *xmlquery.Node) int {
	count := 0
	for _, e := range Descendants(root, idTargets...) {
		if ID(e) != "" {
			continue
		}
		SetID(e, NewID())
		count++
	}
	return count
}

// IndexIDs maps every id in the subtree to its element
func IndexIDs(root *xmlquery.Node) map[string]*xmlquery.Node {
	index := make(map[string]*xmlquery.Node)
	if IsElement(root) {
		if id := ID(root); id != "" {
			index[id] = root
		}
	}
	for _, e := range Descendants(root) {
		if id := ID(e); id != "" {
			index[id] = e
		}
	}
	return index
}
