package vdom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// KeyAttr is the attribute holding a node's reconciliation key.
const KeyAttr = "data-wp-key"

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement  VKind = iota // <div>, <button>, etc.
	KindText                  // Plain text node
	KindFragment              // Document root, grouping without wrapper
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	default:
		return "Unknown"
	}
}

// VNode is the virtual DOM node.
type VNode struct {
	Kind      VKind            // Node type
	Tag       string           // Element tag name (e.g., "div")
	Namespace string           // "svg", "math" or "" for HTML
	Attrs     []html.Attribute // Attributes in source order
	Children  []*VNode         // Child nodes
	Key       string           // Reconciliation key
	Text      string           // For KindText

	// Node is the DOM node this VNode describes. It is set for trees built
	// from the live document and filled in by Diff and Apply otherwise.
	Node *html.Node
}

// Attr returns the value of an attribute.
func (v *VNode) Attr(key string) (string, bool) {
	for _, a := range v.Attrs {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Find returns the first element below v (inclusive) matching pred.
func (v *VNode) Find(pred func(*VNode) bool) *VNode {
	if v == nil {
		return nil
	}
	if v.Kind != KindText && pred(v) {
		return v
	}
	for _, c := range v.Children {
		if found := c.Find(pred); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every element below v (inclusive) matching pred, not
// descending into matches.
func (v *VNode) FindAll(pred func(*VNode) bool) []*VNode {
	var out []*VNode
	var walk func(*VNode)
	walk = func(n *VNode) {
		if n.Kind != KindText && pred(n) {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if v != nil {
		walk(v)
	}
	return out
}

// HasAttr returns a predicate matching elements that carry key.
func HasAttr(key string) func(*VNode) bool {
	return func(v *VNode) bool {
		_, ok := v.Attr(key)
		return ok
	}
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// ParseString is Parse over a string.
func ParseString(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

// Build converts a document or element node into a VNode tree.
// Comments, processing instructions and doctypes are dropped; a CDATA
// section becomes a text node with its exact content.
func Build(n *html.Node) *VNode {
	if n == nil {
		return nil
	}
	switch n.Type {
	case html.DocumentNode:
		v := &VNode{Kind: KindFragment, Node: n}
		v.Children = buildChildren(n)
		return v
	case html.ElementNode:
		v := &VNode{
			Kind:      KindElement,
			Tag:       n.Data,
			Namespace: n.Namespace,
			Attrs:     append([]html.Attribute(nil), n.Attr...),
			Node:      n,
		}
		v.Key, _ = v.Attr(KeyAttr)
		v.Children = buildChildren(n)
		return v
	case html.TextNode:
		return &VNode{Kind: KindText, Text: n.Data, Node: n}
	case html.CommentNode:
		if text, ok := cdata(n.Data); ok {
			return &VNode{Kind: KindText, Text: text, Node: n}
		}
	}
	return nil
}

func buildChildren(n *html.Node) []*VNode {
	var out []*VNode
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := Build(c); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// cdata recognizes the comment the HTML parser produces for a CDATA
// section outside foreign content.
func cdata(data string) (string, bool) {
	if strings.HasPrefix(data, "[CDATA[") && strings.HasSuffix(data, "]]") {
		return data[len("[CDATA[") : len(data)-len("]]")], true
	}
	return "", false
}

// Create materializes v as a detached DOM subtree and records the created
// nodes on v and its descendants.
func Create(v *VNode) *html.Node {
	var n *html.Node
	switch v.Kind {
	case KindText:
		n = &html.Node{Type: html.TextNode, Data: v.Text}
	case KindFragment:
		n = &html.Node{Type: html.DocumentNode}
	default:
		n = &html.Node{
			Type:      html.ElementNode,
			Data:      v.Tag,
			DataAtom:  atom.Lookup([]byte(v.Tag)),
			Namespace: v.Namespace,
			Attr:      append([]html.Attribute(nil), v.Attrs...),
		}
	}
	for _, c := range v.Children {
		n.AppendChild(Create(c))
	}
	v.Node = n
	return n
}

// IsManaged reports whether n is represented in VNode trees. Comments
// (other than CDATA), processing instructions and doctypes are not.
func IsManaged(n *html.Node) bool {
	switch n.Type {
	case html.ElementNode, html.TextNode:
		return true
	case html.CommentNode:
		_, ok := cdata(n.Data)
		return ok
	}
	return false
}

// Detach forgets the DOM nodes of v and its descendants, so that Diff and
// Apply treat v as a description of content still to be created.
func Detach(v *VNode) *VNode {
	if v == nil {
		return nil
	}
	v.Node = nil
	for _, c := range v.Children {
		Detach(c)
	}
	return v
}
