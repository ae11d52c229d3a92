package directive

import (
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/islands/pkg/ctxchain"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/scope"
)

type eachItem struct {
	key   any
	nodes []*html.Node
	layer *ctxchain.Layer
}

type eachState struct {
	items   []*eachItem
	adopted bool
}

// dupKey disambiguates repeated keys within one list.
type dupKey struct {
	key any
	n   int
}

// evalEach renders one copy of the template content per item, after the
// template. Items are matched by key across renders and their nodes are
// moved rather than recreated.
func evalEach(ctx context.Context, c *Call) error {
	tmpl := c.Element.Node
	if tmpl.DataAtom != atom.Template {
		return nil
	}
	b := c.Bindings[0]
	ref := c.Ref()
	st, _ := ref.Value.(*eachState)
	if st == nil {
		st = &eachState{}
		ref.Value = st
	}

	prop := itemProp(b.Suffix)
	parent := c.Element.stack.Layer(b.Namespace)
	keyBinding, keyed := firstBinding(c.Element, "each-key")

	type entry struct {
		item  any
		key   any
		layer *ctxchain.Layer
	}
	var entries []entry
	seen := make(map[any]int)
	for _, item := range listOf(ctx, c.Evaluate(ctx, b)) {
		layer := ctxchain.NewLayer(tmpl, b.Namespace, nil, parent)
		layer.Own.Set(prop, item)
		key := identity(item)
		if keyed {
			key = identity(c.Evaluate(itemScope(ctx, c.Element, layer), keyBinding))
		}
		if n := seen[key]; n > 0 {
			seen[key]++
			key = dupKey{key: key, n: n}
		} else {
			seen[key] = 1
		}
		entries = append(entries, entry{item: item, key: key, layer: layer})
	}

	doc := c.Document()
	if !st.adopted {
		st.adopted = true
		server := serverItems(c.Prefix(), tmpl)
		for i, en := range entries {
			if i >= len(server) {
				break
			}
			it := &eachItem{key: en.key, nodes: []*html.Node{server[i]}, layer: en.layer}
			st.items = append(st.items, it)
			c.AfterCommit(func() { c.engine.mountItem(c.Element, it) })
		}
		for i := len(entries); i < len(server); i++ {
			doc.Remove(server[i])
		}
		if len(st.items) == len(entries) {
			return nil
		}
		entries = entries[len(st.items):]
		after := tmpl
		if n := len(st.items); n > 0 {
			after = advance(after, st.items[n-1])
		}
		for _, en := range entries {
			it := c.createItem(en.key, en.layer, after)
			st.items = append(st.items, it)
			after = advance(after, it)
		}
		return nil
	}

	old := make(map[any]*eachItem, len(st.items))
	for _, it := range st.items {
		old[it.key] = it
	}
	next := make([]*eachItem, len(entries))
	for i, en := range entries {
		if it, ok := old[en.key]; ok {
			it.layer.Own.Set(prop, en.item)
			next[i] = it
			delete(old, en.key)
		}
	}
	for _, it := range st.items {
		if _, gone := old[it.key]; !gone {
			continue
		}
		for _, n := range it.nodes {
			c.engine.Unmount(n)
			doc.Remove(n)
		}
	}

	after := tmpl
	for i, en := range entries {
		it := next[i]
		if it == nil {
			it = c.createItem(en.key, en.layer, after)
			next[i] = it
		} else {
			for _, n := range it.nodes {
				placeAfter(doc, after, n)
				after = n
			}
		}
		after = advance(after, it)
	}
	st.items = next
	return nil
}

// createItem clones the template content after the node after and mounts
// it once the template commits.
func (c *Call) createItem(key any, layer *ctxchain.Layer, after *html.Node) *eachItem {
	doc := c.Document()
	it := &eachItem{key: key, layer: layer}
	for n := c.Element.Node.FirstChild; n != nil; n = n.NextSibling {
		clone := dom.Clone(n)
		if clone.Type == html.ElementNode {
			// Marked like server items so a serialized page re-hydrates
			// onto the same nodes.
			clone.Attr = append(clone.Attr, html.Attribute{Key: c.Prefix() + attrEachChild})
		}
		doc.InsertBefore(after.Parent, clone, after.NextSibling)
		it.nodes = append(it.nodes, clone)
		after = clone
	}
	c.AfterCommit(func() { c.engine.mountItem(c.Element, it) })
	return it
}

func (e *Engine) mountItem(tmpl *Element, it *eachItem) {
	if !tmpl.mounted {
		return
	}
	st := walkState{
		ctx:      tmpl.ctx,
		parent:   tmpl,
		stack:    tmpl.stack.With(it.layer),
		ns:       tmpl.Namespace,
		isolated: tmpl.isolated,
		depth:    tmpl.depth + 1,
		adopt:    true,
	}
	for _, n := range it.nodes {
		e.walk(n, st)
	}
}

// serverItems returns the server-rendered items following tmpl.
func serverItems(prefix string, tmpl *html.Node) []*html.Node {
	var out []*html.Node
	for n := tmpl.NextSibling; n != nil; n = n.NextSibling {
		if isFiller(n) {
			continue
		}
		if n.Type != html.ElementNode || !hasMarker(prefix, n, attrEachChild) {
			break
		}
		out = append(out, n)
	}
	return out
}

// placeAfter moves n right after after, ignoring whitespace and comments
// in between. Nodes already in place are not touched.
func placeAfter(doc *dom.Document, after, n *html.Node) {
	ref := after.NextSibling
	for ref != nil && ref != n && isFiller(ref) {
		ref = ref.NextSibling
	}
	if ref == n {
		return
	}
	doc.InsertBefore(after.Parent, n, after.NextSibling)
}

func isFiller(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode:
		return true
	case html.TextNode:
		return strings.TrimSpace(n.Data) == ""
	}
	return false
}

// advance returns the last node of it, or after for an empty item.
func advance(after *html.Node, it *eachItem) *html.Node {
	if len(it.nodes) == 0 {
		return after
	}
	return it.nodes[len(it.nodes)-1]
}

func itemScope(ctx context.Context, el *Element, layer *ctxchain.Layer) context.Context {
	return scope.With(ctx, scope.Scope{
		Element:   el.Node,
		Contexts:  el.stack.With(layer),
		Namespace: el.Namespace,
	})
}

func firstBinding(el *Element, name string) (Binding, bool) {
	for _, b := range el.bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// itemProp turns the each suffix into the context property of the item:
// "item" by default, camel-cased otherwise.
func itemProp(suffix string) string {
	if suffix == "" {
		return "item"
	}
	parts := strings.Split(suffix, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func listOf(ctx context.Context, v any) []any {
	switch t := v.(type) {
	case *reactive.Array:
		return t.Items(ctx)
	case []any:
		return t
	}
	return nil
}
