package mei

import "github.com/antchfx/xmlquery"

// ResolveExpansions renders expansion elements into a through-composed tree.
// The rewrite runs on a copy; the returned root replaces the original, which stays untouched.
func ResolveExpansions(root *xmlquery.Node) *xmlquery.Node {
	out := DeepCopy(root)
	expand(out)
	return out
}

// expand resolves nested expansions first, then reorders n's children according to its own plist
func expand(n *xmlquery.Node) {
	for _, c := range ChildElements(n) {
		expand(c)
	}

	expansion := FirstChildElement(n, "expansion")
	if expansion == nil {
		return
	}
	plist := RefIDs(AttrOr(expansion, "plist", ""))
	if len(plist) == 0 {
		return
	}

	wanted := make(map[string]bool, len(plist))
	for _, id := range plist {
		wanted[id] = true
	}

	children := make(map[string]*xmlquery.Node)
	for _, c := range ChildElements(n) {
		if id := ID(c); id != "" && wanted[id] {
			if _, dup := children[id]; !dup {
				children[id] = c
			}
		}
		Detach(c)
	}

	placed := make(map[string]bool, len(plist))
	for _, id := range plist {
		c, ok := children[id]
		if !ok {
			continue
		}
		if placed[id] {
			c = DeepCopy(c)
			ReID(c)
		}
		placed[id] = true
		AppendChild(n, c)
	}
}
