package mei

import "github.com/antchfx/xmlquery"

// ReorderByStartID moves every element carrying a startid directly in front of the element it
// points to, so control events written at the end of a measure are met where they start.
// Elements pointing into their own subtree, elements inside their target and references to
// unknown ids stay where they are. It returns how many elements were moved.
func ReorderByStartID(root *xmlquery.Node) int {
	index := IndexIDs(root)
	moved := 0
	for _, e := range Descendants(root) {
		ref, ok := Attr(e, "startid")
		if !ok {
			continue
		}
		target := index[RefID(ref)]
		switch {
		case target == nil, target == e:
		case NextSiblingElement(e) == target:
		case IsDescendant(target, e), IsDescendant(e, target):
		default:
			InsertBefore(target, e)
			moved++
		}
	}
	return moved
}
