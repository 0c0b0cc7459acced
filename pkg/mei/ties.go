package mei

import "github.com/antchfx/xmlquery"

// ResolveTieElements recodes tie elements as tie attributes (i, m, t) on the notes they connect.
// Every tie element is removed; those lacking startid/endid or pointing at unknown notes are returned as markup.
func ResolveTieElements(root *xmlquery.Node) []string {
	var unresolved []string
	notes := make(map[string]*xmlquery.Node)
	var ties []*xmlquery.Node

	for _, e := range Descendants(root, "note", "tie") {
		if e.Data == "note" {
			if id := ID(e); id != "" {
				notes[id] = e
			}
			continue
		}
		if !HasAttr(e, "startid") || !HasAttr(e, "endid") {
			unresolved = append(unresolved, String(e))
			Detach(e)
			continue
		}
		ties = append(ties, e)
	}

	for _, tie := range ties {
		start := notes[RefID(AttrOr(tie, "startid", ""))]
		end := notes[RefID(AttrOr(tie, "endid", ""))]
		if start == nil || end == nil {
			unresolved = append(unresolved, String(tie))
			Detach(tie)
			continue
		}

		switch v, ok := Attr(start, "tie"); {
		case !ok:
			SetAttr(start, "tie", "i")
		case v == "t":
			SetAttr(start, "tie", "m")
		case v == "n":
			SetAttr(start, "tie", "i")
		}

		switch v, ok := Attr(end, "tie"); {
		case !ok:
			SetAttr(end, "tie", "t")
		case v == "i":
			SetAttr(end, "tie", "m")
		case v == "n":
			SetAttr(end, "tie", "t")
		}

		Detach(tie)
	}

	return unresolved
}
