package mei

import (
	"sort"

	"github.com/antchfx/xmlquery"
)

// aliasAttributes mark an element as a placeholder for a copy of another element
var aliasAttributes = []string{"copyof", "sameas"}

type placeholder struct {
	node   *xmlquery.Node
	target string
}

// aliasTarget returns the referenced id of a placeholder or ""
func aliasTarget(n *xmlquery.Node) string {
	for _, name := range aliasAttributes {
		if v, ok := Attr(n, name); ok {
			if id := RefID(v); id != "" {
				return id
			}
		}
	}
	return ""
}

// ResolveCopyOfs replaces every copyof/sameas placeholder below root with a deep copy of its target.
// Copies get fresh ids except for the copy root, which keeps the placeholder's id.
// Placeholders with a missing target, or caught in a reference cycle, are removed from the tree;
// their ids (or markup, if they have no id) are returned.
func ResolveCopyOfs(root *xmlquery.Node) []string {
	var unresolved []string
	var previous []string

	for {
		var placeholders []placeholder
		elements := make(map[string]*xmlquery.Node)
		for _, e := range Descendants(root) {
			if target := aliasTarget(e); target != "" {
				placeholders = append(placeholders, placeholder{node: e, target: target})
			}
			if id := ID(e); id != "" {
				elements[id] = e
			}
		}

		if len(placeholders) == 0 {
			break
		}

		current := targetSet(placeholders)
		if sameSet(current, previous) {
			for _, p := range placeholders {
				unresolved = append(unresolved, describe(p.node))
				Detach(p.node)
			}
			break
		}
		previous = current

		for _, p := range placeholders {
			if p.node.Parent == nil || !IsDescendant(p.node, root) {
				continue
			}

			found, ok := elements[p.target]
			if !ok {
				unresolved = append(unresolved, describe(p.node))
				Detach(p.node)
				continue
			}

			cp := DeepCopy(found)
			ReID(cp)
			if id := ID(p.node); id != "" {
				SetID(cp, id)
			}
			Replace(p.node, cp)
		}
	}

	return unresolved
}

func describe(n *xmlquery.Node) string {
	if id := ID(n); id != "" {
		return id
	}
	return String(n)
}

func targetSet(ps []placeholder) []string {
	seen := make(map[string]bool, len(ps))
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if !seen[p.target] {
			seen[p.target] = true
			out = append(out, p.target)
		}
	}
	sort.Strings(out)
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) || b == nil {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
