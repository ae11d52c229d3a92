package directive

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/pkg/dom"
)

// Slot positions.
const (
	PositionChildren = "children"
	PositionBefore   = "before"
	PositionAfter    = "after"
	PositionReplace  = "replace"

	// positionAppend appends without hiding what is already there.
	positionAppend = "append"
)

type slotTarget struct {
	name     string
	node     *html.Node
	position string
}

// parseSlot accepts a plain name or {"name": ..., "position": ...}.
func parseSlot(v string) (name, position string) {
	v = strings.TrimSpace(v)
	position = PositionChildren
	if !strings.HasPrefix(v, "{") {
		return v, position
	}
	var raw struct {
		Name     string `json:"name"`
		Position string `json:"position"`
	}
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return "", position
	}
	switch raw.Position {
	case PositionBefore, PositionAfter, PositionReplace:
		position = raw.Position
	}
	return raw.Name, position
}

func evalSlot(ctx context.Context, c *Call) error {
	ref := c.Ref()
	if ref.Value != nil {
		return nil
	}
	name, pos := parseSlot(c.Bindings[0].Value)
	if name == "" {
		return nil
	}
	t := &slotTarget{name: name, node: c.Element.Node, position: pos}
	ref.Value = t
	slots := c.engine.slots
	slots.Set(name, t)
	ref.Dispose = func() {
		if cur, _ := slots.Peek(name); cur == t {
			slots.Delete(name)
		}
	}
	return nil
}

// relocation moves the original children of an element somewhere else in
// the document while they stay its logical children.
type relocation struct {
	home    *html.Node
	content []*html.Node
	target  *slotTarget
	// hidden holds what the content displaced: the children of a slot, or
	// the slot element itself for replace.
	hidden []*html.Node
}

func (c *Call) relocation() *relocation {
	ref := c.Ref()
	if r, ok := ref.Value.(*relocation); ok {
		return r
	}
	r := &relocation{home: c.Element.Node}
	for n := c.Element.Node.FirstChild; n != nil; n = n.NextSibling {
		r.content = append(r.content, n)
	}
	if r.content == nil {
		r.content = []*html.Node{}
	}
	ref.Value = r
	doc := c.Document()
	ref.Dispose = func() { r.restore(doc) }
	c.Relocate(r.content)
	return r
}

// evalFill moves the element's content into the slot its expression
// names, or back home when the name is empty or the slot is absent.
func evalFill(ctx context.Context, c *Call) error {
	r := c.relocation()
	name := Stringify(c.Evaluate(ctx, c.Bindings[0]))
	var t *slotTarget
	if name != "" {
		t, _ = c.engine.slots.Get(ctx, name).(*slotTarget)
	}
	r.moveTo(c.Document(), t)
	return nil
}

// evalBody moves the element's content to the end of the document body.
func evalBody(ctx context.Context, c *Call) error {
	r := c.relocation()
	if r.target != nil {
		return nil
	}
	body := c.Document().Body()
	if body == nil {
		return nil
	}
	r.moveTo(c.Document(), &slotTarget{node: body, position: positionAppend})
	return nil
}

func (r *relocation) moveTo(doc *dom.Document, t *slotTarget) {
	if r.target == t {
		return
	}
	r.restore(doc)
	if t == nil {
		return
	}
	r.target = t
	switch t.position {
	case PositionChildren:
		for c := t.node.FirstChild; c != nil; {
			next := c.NextSibling
			r.hidden = append(r.hidden, c)
			doc.Remove(c)
			c = next
		}
		for _, n := range r.content {
			doc.AppendChild(t.node, n)
		}
	case positionAppend:
		for _, n := range r.content {
			doc.AppendChild(t.node, n)
		}
	case PositionBefore:
		for _, n := range r.content {
			doc.InsertBefore(t.node.Parent, n, t.node)
		}
	case PositionAfter:
		ref := t.node
		for _, n := range r.content {
			doc.InsertAfter(ref, n)
			ref = n
		}
	case PositionReplace:
		for _, n := range r.content {
			doc.InsertBefore(t.node.Parent, n, t.node)
		}
		if len(r.content) > 0 {
			r.hidden = []*html.Node{t.node}
			doc.Remove(t.node)
		}
	}
}

// restore puts the content back into its home and reinstates whatever it
// displaced.
func (r *relocation) restore(doc *dom.Document) {
	t := r.target
	if t == nil {
		return
	}
	r.target = nil
	switch t.position {
	case PositionChildren:
		for _, n := range r.content {
			doc.Remove(n)
		}
		for _, n := range r.hidden {
			doc.AppendChild(t.node, n)
		}
	case PositionReplace:
		if len(r.hidden) > 0 && r.content[0].Parent != nil {
			doc.InsertBefore(r.content[0].Parent, t.node, r.content[0])
		}
	}
	r.hidden = nil
	for _, n := range r.content {
		doc.AppendChild(r.home, n)
	}
}
