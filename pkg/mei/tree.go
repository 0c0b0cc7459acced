// Package mei provides the notation source tree: parsing, queries, node editing and the tree-to-tree rewrites that run before conversion
package mei

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Namespace is the MEI namespace URI
const Namespace = "http://www.music-encoding.org/ns/mei"

// xmlNamespace is the namespace of the xml:id attribute
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

var (
	musicSelector = xpath.MustCompile("//*[local-name()='music']")
	bodySelector  = xpath.MustCompile("*[local-name()='body']")
)

// Document is a parsed, mutable notation source tree
type Document struct {
	root *xmlquery.Node
}

// Parse parses MEI data and returns a Document
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MEI: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseFile reads and parses an MEI file
func ParseFile(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MEI file: %w", err)
	}
	return Parse(data)
}

// NewDocument wraps an existing tree
func NewDocument(root *xmlquery.Node) *Document {
	return &Document{root: root}
}

// Root returns the document node
func (d *Document) Root() *xmlquery.Node {
	if d == nil {
		return nil
	}
	return d.root
}

// SetRoot replaces the tree, e.g. with the output of ResolveExpansions
func (d *Document) SetRoot(root *xmlquery.Node) {
	d.root = root
}

// RootElement returns the outermost element
func (d *Document) RootElement() *xmlquery.Node {
	if d == nil || d.root == nil {
		return nil
	}
	if d.root.Type == xmlquery.ElementNode {
		return d.root
	}
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// Music returns the music element or nil
func (d *Document) Music() *xmlquery.Node {
	if d == nil || d.root == nil {
		return nil
	}
	return xmlquery.QuerySelector(d.root, musicSelector)
}

// Bodies returns the body elements of the music element
func (d *Document) Bodies() []*xmlquery.Node {
	music := d.Music()
	if music == nil {
		return nil
	}
	return xmlquery.QuerySelectorAll(music, bodySelector)
}

// IsEmpty reports whether the document has no music to convert
func (d *Document) IsEmpty() bool {
	return len(d.Bodies()) == 0
}

// Query evaluates an XPath expression against the document
func (d *Document) Query(expr string) ([]*xmlquery.Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid XPath expression: %w", err)
	}
	return xmlquery.QueryAll(d.root, expr)
}

// Copy returns an independent deep copy of the document
func (d *Document) Copy() *Document {
	return &Document{root: DeepCopy(d.root)}
}

// XML serializes the document
func (d *Document) XML() string {
	if d == nil || d.root == nil {
		return ""
	}
	return d.root.OutputXML(true)
}

// IsElement reports whether n is an element node
func IsElement(n *xmlquery.Node) bool {
	return n != nil && n.Type == xmlquery.ElementNode
}

// Name returns the local name of an element
func Name(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return n.Data
}

// localName strips a namespace prefix from an attribute name
func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Attr returns the value of the attribute with the given local name
func Attr(n *xmlquery.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	local := localName(name)
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when it is absent
func AttrOr(n *xmlquery.Node, name, def string) string {
	if v, ok := Attr(n, name); ok {
		return v
	}
	return def
}

// HasAttr reports whether the attribute is present
func HasAttr(n *xmlquery.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr sets or adds an attribute
func SetAttr(n *xmlquery.Node, name, value string) {
	local := localName(name)
	for i := range n.Attr {
		if n.Attr[i].Name.Local == local {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{Name: xml.Name{Local: local}, Value: value})
}

// RemoveAttr deletes an attribute if present
func RemoveAttr(n *xmlquery.Node, name string) {
	local := localName(name)
	for i := range n.Attr {
		if n.Attr[i].Name.Local == local {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// ID returns the xml:id of an element
func ID(n *xmlquery.Node) string {
	return AttrOr(n, "id", "")
}

// SetID sets the xml:id of an element
func SetID(n *xmlquery.Node, id string) {
	for i := range n.Attr {
		if n.Attr[i].Name.Local == "id" {
			n.Attr[i].Value = id
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:         xml.Name{Space: "xml", Local: "id"},
		Value:        id,
		NamespaceURI: xmlNamespace,
	})
}

// RefID turns a local reference ("#abc") into an id
func RefID(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "#")
}

// RefIDs splits a whitespace separated reference list
func RefIDs(refs string) []string {
	fields := strings.Fields(refs)
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		if id := RefID(f); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ChildElements returns the element children, optionally filtered by local name
func ChildElements(n *xmlquery.Node, names ...string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if len(names) == 0 || hasName(c, names) {
			out = append(out, c)
		}
	}
	return out
}

// FirstChildElement returns the first element child with the given name
func FirstChildElement(n *xmlquery.Node, name string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

// NextSiblingElement returns the following element sibling
func NextSiblingElement(n *xmlquery.Node) *xmlquery.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == xmlquery.ElementNode {
			return s
		}
	}
	return nil
}

// PrevSiblingElement returns the preceding element sibling
func PrevSiblingElement(n *xmlquery.Node) *xmlquery.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == xmlquery.ElementNode {
			return s
		}
	}
	return nil
}

// Descendants returns all element descendants of n in document order, optionally filtered by local name
func Descendants(n *xmlquery.Node, names ...string) []*xmlquery.Node {
	var out []*xmlquery.Node
	var walk func(*xmlquery.Node)
	walk = func(p *xmlquery.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			if len(names) == 0 || hasName(c, names) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Ancestor returns the closest ancestor with one of the given names
func Ancestor(n *xmlquery.Node, names ...string) *xmlquery.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == xmlquery.ElementNode && hasName(p, names) {
			return p
		}
	}
	return nil
}

// IsDescendant reports whether n lies strictly inside of
func IsDescendant(n, of *xmlquery.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == of {
			return true
		}
	}
	return false
}

// Text returns the trimmed text content
func Text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

// String renders a node as markup for diagnostics
func String(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return n.OutputXML(true)
}

// Detach removes n from its parent
func Detach(n *xmlquery.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	} else {
		n.Parent.FirstChild = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	} else {
		n.Parent.LastChild = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// AppendChild detaches n and appends it as the last child of parent
func AppendChild(parent, n *xmlquery.Node) {
	Detach(n)
	n.Parent = parent
	n.PrevSibling = parent.LastChild
	if parent.LastChild != nil {
		parent.LastChild.NextSibling = n
	} else {
		parent.FirstChild = n
	}
	parent.LastChild = n
}

// InsertBefore detaches n and inserts it directly before ref
func InsertBefore(ref, n *xmlquery.Node) {
	if ref == n {
		return
	}
	Detach(n)
	n.Parent = ref.Parent
	n.NextSibling = ref
	n.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if ref.Parent != nil {
		ref.Parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// Replace puts n where old was and detaches old
func Replace(old, n *xmlquery.Node) {
	if old.Parent == nil {
		return
	}
	InsertBefore(old, n)
	Detach(old)
}

// DeepCopy returns a detached copy of n and its subtree
func DeepCopy(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	cp := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		cp.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(cp.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		AppendChild(cp, DeepCopy(c))
	}
	return cp
}

func hasName(n *xmlquery.Node, names []string) bool {
	for _, name := range names {
		if n.Data == name {
			return true
		}
	}
	return false
}
