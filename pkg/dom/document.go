package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a live HTML document.
type Document struct {
	Root *html.Node

	// Window is the synthetic target of window-scoped listeners.
	Window *html.Node

	// URL is the address the document was loaded from.
	URL string

	mutations uint64
	listeners map[*html.Node][]*listener
	observers []func(Mutation)
}

// MutationKind classifies a Mutation.
type MutationKind uint8

const (
	MutationAttr MutationKind = iota
	MutationText
	MutationInsert
	MutationRemove
)

// Mutation describes one change made through a Document.
type Mutation struct {
	Kind MutationKind
	// Target is the node whose attributes, text or children changed.
	Target *html.Node
	// Node is the inserted or removed child.
	Node *html.Node
}

// New wraps an already parsed document node.
func New(root *html.Node) *Document {
	return &Document{
		Root:      root,
		Window:    &html.Node{Type: html.RawNode, Data: "#window"},
		listeners: make(map[*html.Node][]*listener),
	}
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return New(root), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Mutations returns the number of DOM mutations made through d.
func (d *Document) Mutations() uint64 { return d.mutations }

// Observe registers fn to be told about every mutation made through d.
func (d *Document) Observe(fn func(Mutation)) {
	d.observers = append(d.observers, fn)
}

func (d *Document) mutated(m Mutation) {
	d.mutations++
	d.notify(m)
}

func (d *Document) notify(m Mutation) {
	for _, fn := range d.observers {
		fn(m)
	}
}

// Head returns the <head> element, if any.
func (d *Document) Head() *html.Node { return d.FindFirst(IsElement(atom.Head)) }

// Body returns the <body> element, if any.
func (d *Document) Body() *html.Node { return d.FindFirst(IsElement(atom.Body)) }

// Title returns the text of the first <title>.
func (d *Document) Title() string {
	t := d.FindFirst(IsElement(atom.Title))
	if t == nil {
		return ""
	}
	return TextContent(t)
}

// ByID returns the element with the given id attribute.
func (d *Document) ByID(id string) *html.Node {
	return d.FindFirst(func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// FindFirst returns the first node in document order matching pred.
func (d *Document) FindFirst(pred func(*html.Node) bool) *html.Node {
	return FindFirst(d.Root, pred)
}

// FindAll returns every node in document order matching pred.
func (d *Document) FindAll(pred func(*html.Node) bool) []*html.Node {
	return FindAll(d.Root, pred)
}

// Contains reports whether n is attached to the document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.Root {
			return true
		}
	}
	return false
}

// SetAttr sets an attribute, reporting whether anything changed.
func (d *Document) SetAttr(n *html.Node, key, val string) bool {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			if n.Attr[i].Val == val {
				return false
			}
			n.Attr[i].Val = val
			d.mutated(Mutation{Kind: MutationAttr, Target: n})
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.mutated(Mutation{Kind: MutationAttr, Target: n})
	return true
}

// RemoveAttr removes an attribute, reporting whether it was present.
func (d *Document) RemoveAttr(n *html.Node, key string) bool {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.mutated(Mutation{Kind: MutationAttr, Target: n})
			return true
		}
	}
	return false
}

// SetData replaces the content of a text node.
func (d *Document) SetData(n *html.Node, data string) bool {
	if n.Data == data {
		return false
	}
	n.Data = data
	d.mutated(Mutation{Kind: MutationText, Target: n})
	return true
}

// SetText replaces the children of n with a single text node holding s.
// An existing lone text child is reused.
func (d *Document) SetText(n *html.Node, s string) bool {
	if n.Type == html.TextNode {
		return d.SetData(n, s)
	}
	if c := n.FirstChild; c != nil && c == n.LastChild && c.Type == html.TextNode {
		return d.SetData(c, s)
	}
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	if s != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
	}
	if len(removed) == 0 && s == "" {
		return false
	}
	d.mutations++
	for _, c := range removed {
		d.notify(Mutation{Kind: MutationRemove, Target: n, Node: c})
	}
	d.notify(Mutation{Kind: MutationText, Target: n})
	return true
}

// InsertBefore inserts child into parent before ref (appending when ref is
// nil). A child that is already attached elsewhere is moved.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if child == ref || (child.Parent == parent && child.NextSibling == ref) {
		return
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.InsertBefore(child, ref)
	d.mutated(Mutation{Kind: MutationInsert, Target: parent, Node: child})
}

// AppendChild appends child to parent, moving it if attached.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertAfter inserts child right after ref within ref's parent.
func (d *Document) InsertAfter(ref, child *html.Node) {
	d.InsertBefore(ref.Parent, child, ref.NextSibling)
}

// Remove detaches n from its parent.
func (d *Document) Remove(n *html.Node) {
	if n.Parent == nil {
		return
	}
	parent := n.Parent
	parent.RemoveChild(n)
	d.mutated(Mutation{Kind: MutationRemove, Target: parent, Node: n})
}

// ReplaceWith puts repl in the place of old.
func (d *Document) ReplaceWith(old, repl *html.Node) {
	parent := old.Parent
	if parent == nil || old == repl {
		return
	}
	if repl.Parent != nil {
		repl.Parent.RemoveChild(repl)
	}
	parent.InsertBefore(repl, old)
	parent.RemoveChild(old)
	d.mutations++
	d.notify(Mutation{Kind: MutationRemove, Target: parent, Node: old})
	d.notify(Mutation{Kind: MutationInsert, Target: parent, Node: repl})
}

// Render serializes n.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// Render serializes the whole document.
func (d *Document) Render() string { return Render(d.Root) }
