package directive

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/pkg/ctxchain"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
)

// Element is a mounted element carrying directives.
type Element struct {
	Node      *html.Node
	Namespace string
	Parent    *Element

	engine   *Engine
	ctx      context.Context
	seq      uint64
	bindings []Binding
	inStack  ctxchain.Stack
	stack    ctxchain.Stack
	levels   []*level
	children []*Element
	depth    int
	isolated bool

	baseline []html.Attribute
	managed  []string

	// content replaces the DOM children as the logical children of an
	// element whose content was relocated.
	content []*html.Node

	mounted  bool
	attached bool
}

// Bindings returns the element's bindings in attribute order.
func (el *Element) Bindings() []Binding { return el.bindings }

// Children returns the logical child elements.
func (el *Element) Children() []*Element { return el.children }

// Stack returns the context layers the element's children inherit.
func (el *Element) Stack() ctxchain.Stack { return el.stack }

// Mounted reports whether the element is still live.
func (el *Element) Mounted() bool { return el.mounted }

func (el *Element) bindingsOf(name string) []Binding {
	var out []Binding
	for _, b := range el.bindings {
		if b.Name == name {
			out = append(out, b)
		}
	}
	return out
}

func (el *Element) baseAttr(name string) (string, bool) {
	for _, a := range el.baseline {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (el *Element) removeChild(c *Element) {
	for i, x := range el.children {
		if x == c {
			el.children = append(el.children[:i], el.children[i+1:]...)
			return
		}
	}
}

// childNodes returns the nodes the walker descends into.
func (el *Element) childNodes() []*html.Node {
	if el.content != nil {
		return el.content
	}
	var out []*html.Node
	for c := el.Node.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// setAttached attaches or detaches every listener of the element.
func (el *Element) setAttached(on bool) {
	if el.attached == on {
		return
	}
	el.attached = on
	for _, l := range el.levels {
		for _, h := range l.hooks {
			if lh, ok := h.(*listenHook); ok {
				if on {
					lh.attach()
				} else {
					lh.detach()
				}
			}
		}
	}
}

// level is a group of directives sharing a priority. It is the unit of
// dependency tracking and re-rendering.
type level struct {
	reactive.Tracker
	id       uint64
	seq      uint64
	el       *Element
	index    int
	priority int
	names    []string

	ops    []op
	hooks  []hook
	cursor int
	dirty  bool
}

func (l *level) ID() uint64 { return l.id }

func (l *level) MarkDirty() {
	if l.dirty || !l.el.mounted {
		return
	}
	l.dirty = true
	l.el.engine.sched.Enqueue(l)
}

func (l *level) Rank() reactive.Rank {
	return reactive.Rank{Phase: reactive.PhaseRender, Depth: l.el.depth, Priority: l.priority, Seq: l.seq}
}

func (l *level) Run() {
	if !l.dirty {
		return
	}
	l.el.engine.rerender(l.el, l.index)
}

func (l *level) Drop() { l.dirty = false }

func (l *level) sameNames(names []string) bool {
	if len(l.names) != len(names) {
		return false
	}
	for i := range names {
		if l.names[i] != names[i] {
			return false
		}
	}
	return true
}

// nextHook returns the hook in the current slot if it has the same type
// as fresh, or installs fresh there.
func (l *level) nextHook(fresh hook, same func(hook) bool) hook {
	i := l.cursor
	l.cursor++
	if i < len(l.hooks) {
		if same(l.hooks[i]) {
			return l.hooks[i]
		}
		l.hooks[i].dispose()
		l.hooks[i] = fresh
		return fresh
	}
	l.hooks = append(l.hooks, fresh)
	return fresh
}

// trimHooks disposes the hooks the last run did not claim.
func (l *level) trimHooks() {
	for _, h := range l.hooks[l.cursor:] {
		h.dispose()
	}
	l.hooks = l.hooks[:l.cursor]
}

func (l *level) dispose() {
	l.dirty = false
	l.Release(l)
	for i := len(l.hooks) - 1; i >= 0; i-- {
		l.hooks[i].dispose()
	}
	l.hooks = nil
}

type hook interface {
	dispose()
}

// Ref is a value kept across renders of one level.
type Ref struct {
	Value any
	// Dispose runs when the element unmounts.
	Dispose func()
}

type refHook struct{ ref *Ref }

func (h *refHook) dispose() {
	if h.ref.Dispose != nil {
		h.ref.Dispose()
		h.ref.Dispose = nil
	}
}

// listenHook owns one native listener. The listener stays registered
// across renders and always calls the latest handler.
type listenHook struct {
	doc     *dom.Document
	target  *html.Node
	typ     string
	handler func(*dom.Event)
	remove  func()
}

func (h *listenHook) attach() {
	if h.remove != nil {
		return
	}
	h.remove = h.doc.AddEventListener(h.target, h.typ, func(ev *dom.Event) {
		if h.handler != nil {
			h.handler(ev)
		}
	})
}

func (h *listenHook) detach() {
	if h.remove != nil {
		h.remove()
		h.remove = nil
	}
}

func (h *listenHook) dispose() { h.detach() }

// effectHook backs init and watch.
type effectHook struct {
	eff *reactive.Effect
	fn  func(ctx context.Context) reactive.Cleanup
}

func (h *effectHook) dispose() { h.eff.Dispose() }

type opKind uint8

const (
	opAttr opKind = iota
	opRemoveAttr
	opClass
	opStyle
	opText
)

type op struct {
	kind  opKind
	name  string
	value string
	on    bool
}

// commit applies the ops of all levels over the server-rendered baseline.
// Attributes no level touches any more fall back to the baseline.
func (e *Engine) commit(el *Element) {
	desired := make(map[string]*string)
	var order []string
	touch := func(name string) {
		if _, ok := desired[name]; !ok {
			order = append(order, name)
		}
	}
	current := func(name string) *string {
		if v, ok := desired[name]; ok {
			return v
		}
		if b, ok := el.baseAttr(name); ok {
			return &b
		}
		return nil
	}

	var text *string
	for _, l := range el.levels {
		for _, o := range l.ops {
			switch o.kind {
			case opAttr:
				v := o.value
				touch(o.name)
				desired[o.name] = &v
			case opRemoveAttr:
				touch(o.name)
				desired[o.name] = nil
			case opClass:
				next := toggleClass(current("class"), o.name, o.on)
				touch("class")
				desired["class"] = next
			case opStyle:
				next := setStyle(current("style"), o.name, o.value)
				touch("style")
				desired["style"] = next
			case opText:
				v := o.value
				text = &v
			}
		}
	}

	names := append([]string(nil), order...)
	for _, m := range el.managed {
		if _, ok := desired[m]; !ok {
			names = append(names, m)
		}
	}
	for _, name := range names {
		want := current(name)
		cur, has := dom.Attr(el.Node, name)
		switch {
		case want == nil && has:
			e.doc.RemoveAttr(el.Node, name)
		case want != nil && (!has || cur != *want):
			e.doc.SetAttr(el.Node, name, *want)
		}
	}
	el.managed = order

	if text != nil {
		e.doc.SetText(el.Node, *text)
	}
}

// toggleClass returns the class attribute with name added or removed. The
// original string is kept when nothing changes.
func toggleClass(cur *string, name string, on bool) *string {
	var tokens []string
	if cur != nil {
		tokens = strings.Fields(*cur)
	}
	idx := -1
	for i, t := range tokens {
		if t == name {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		tokens = append(tokens, name)
	case !on && idx >= 0:
		tokens = append(tokens[:idx], tokens[idx+1:]...)
	default:
		return cur
	}
	s := strings.Join(tokens, " ")
	return &s
}

type decl struct{ prop, value string }

func parseStyle(s string) []decl {
	var out []decl
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		if prop == "" {
			continue
		}
		out = append(out, decl{prop: prop, value: strings.TrimSpace(value)})
	}
	return out
}

// setStyle sets or, for an empty value, removes one style property.
func setStyle(cur *string, prop, value string) *string {
	var decls []decl
	if cur != nil {
		decls = parseStyle(*cur)
	}
	idx := -1
	for i, d := range decls {
		if d.prop == prop {
			idx = i
			break
		}
	}
	switch {
	case value == "" && idx < 0:
		return cur
	case value == "":
		decls = append(decls[:idx], decls[idx+1:]...)
	case idx >= 0 && decls[idx].value == value:
		return cur
	case idx >= 0:
		decls[idx].value = value
	default:
		decls = append(decls, decl{prop: prop, value: value})
	}
	if len(decls) == 0 {
		return nil
	}
	var b strings.Builder
	for _, d := range decls {
		b.WriteString(d.prop)
		b.WriteString(":")
		b.WriteString(d.value)
		b.WriteString(";")
	}
	s := b.String()
	return &s
}
