package directive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/ctxchain"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/scope"
	"github.com/vango-dev/islands/pkg/store"
)

// Option configures an Engine.
type Option func(*Engine)

// WithPrefix changes the directive attribute prefix.
func WithPrefix(prefix string) Option {
	return func(e *Engine) { e.prefix = prefix }
}

// WithWarn routes coded warnings to fn.
func WithWarn(fn func(*errors.Error)) Option {
	return func(e *Engine) { e.warnFn = fn }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine mounts directive elements and keeps them rendered.
// All methods must be called on the runtime thread.
type Engine struct {
	doc      *dom.Document
	registry *Registry
	store    *store.Registry
	sched    *reactive.Scheduler
	prefix   string
	warnFn   func(*errors.Error)
	logger   *slog.Logger

	elements map[*html.Node]*Element
	islands  map[*html.Node]bool
	seq      uint64

	// slots maps slot names to their *slotTarget.
	slots *reactive.Object

	retaining bool
	retained  map[layerKey]*ctxchain.Layer

	// afterCommit collects work of the element being rendered that must
	// wait for its commit.
	afterCommit []func()
}

type layerKey struct {
	owner *html.Node
	ns    string
}

// New creates an engine over doc. Directives registered on reg later
// re-render the elements that carry them.
func New(doc *dom.Document, reg *Registry, st *store.Registry, sched *reactive.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		doc:      doc,
		registry: reg,
		store:    st,
		sched:    sched,
		prefix:   DefaultPrefix,
		logger:   slog.Default(),
		elements: make(map[*html.Node]*Element),
		islands:  make(map[*html.Node]bool),
		slots:    reactive.NewObject(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "directive")
	reg.OnRegister(e.rescan)
	doc.Observe(e.observe)
	return e
}

// Document returns the live document.
func (e *Engine) Document() *dom.Document { return e.doc }

// Prefix returns the directive attribute prefix.
func (e *Engine) Prefix() string { return e.prefix }

// ElementOf returns the mounted element for n, or nil.
func (e *Engine) ElementOf(n *html.Node) *Element { return e.elements[n] }

// Len returns the number of mounted elements.
func (e *Engine) Len() int { return len(e.elements) }

// Hydrated reports whether n was mounted, either as a directive element
// or as an island root.
func (e *Engine) Hydrated(n *html.Node) bool {
	return e.islands[n] || e.elements[n] != nil
}

func (e *Engine) warn(err *errors.Error) {
	if e.warnFn != nil {
		e.warnFn(err)
		return
	}
	e.logger.Warn(err.Message, "code", err.Code, "namespace", err.Namespace, "directive", err.Directive)
}

// fail reports a failed evaluator.
func (e *Engine) fail(el *Element, name string, err error) {
	e.warn(errors.New("E103").
		WithNamespace(el.Namespace).
		WithDirective(e.prefix + name).
		WithElement(describe(el.Node)).
		Wrap(err))
}

// recoverInto must be deferred directly.
func (e *Engine) recoverInto(el *Element, name string) {
	if r := recover(); r != nil {
		e.fail(el, name, fmt.Errorf("panic: %v", r))
	}
}

// Overflow reports a job refused by the scheduler budget. It is meant to
// be passed to reactive.OnOverflow.
func (e *Engine) Overflow(j reactive.Job) {
	err := errors.New("E104")
	if l, ok := j.(*level); ok {
		names := make([]string, len(l.names))
		for i, n := range l.names {
			names[i] = e.prefix + n
		}
		err = err.
			WithNamespace(l.el.Namespace).
			WithDirective(strings.Join(names, " ")).
			WithElement(describe(l.el.Node))
	}
	e.warn(err)
}

type walkState struct {
	ctx      context.Context
	parent   *Element
	stack    ctxchain.Stack
	ns       string
	isolated bool
	depth    int
	// adopt lets the walk start at a server-rendered each item.
	adopt bool
}

// Mount hydrates the subtree at n. The namespace, context layers and
// logical parent are taken from the closest mounted ancestor and island.
// It returns the number of elements mounted.
func (e *Engine) Mount(ctx context.Context, n *html.Node) int {
	before := len(e.elements)
	e.walk(n, e.stateAt(ctx, n))
	return len(e.elements) - before
}

// stateAt reconstructs the walk state that applies at n.
func (e *Engine) stateAt(ctx context.Context, n *html.Node) walkState {
	st := walkState{ctx: ctx}
	nsFound, inner := false, false
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		isl, island := InteractiveOf(e.prefix, p)
		if island && isl.Isolated && inner {
			// Inner blocks of an isolated island start a fresh tree.
			break
		}
		if st.parent == nil {
			if el := e.elements[p]; el != nil && el.mounted {
				st.parent, st.stack, st.depth = el, el.stack, el.depth+1
			}
		}
		if hasMarker(e.prefix, p, attrInnerBlocks) {
			inner = true
		}
		if island {
			if !nsFound {
				st.ns, st.isolated, nsFound = isl.Namespace, isl.Isolated, true
			}
			inner = false
		}
	}
	return st
}

func (e *Engine) walk(n *html.Node, st walkState) {
	if n.Type != html.ElementNode || e.elements[n] != nil {
		return
	}
	if hasMarker(e.prefix, n, attrIgnore) {
		return
	}
	if hasMarker(e.prefix, n, attrEachChild) && !st.adopt {
		return
	}
	st.adopt = false
	if isl, ok := InteractiveOf(e.prefix, n); ok {
		if isl.Namespace != "" {
			st.ns = isl.Namespace
		}
		st.isolated = isl.Isolated
		e.islands[n] = true
	} else if st.isolated && hasMarker(e.prefix, n, attrInnerBlocks) {
		return
	}

	var el *Element
	if bindings := ParseBindings(e.prefix, n, st.ns); len(bindings) > 0 {
		el = e.newElement(n, bindings, st)
		e.renderLevels(el, 0)
		st.parent, st.stack, st.depth = el, el.stack, el.depth+1
	}

	var children []*html.Node
	if el != nil {
		if n.DataAtom == atom.Template && len(el.bindingsOf("each")) > 0 {
			return
		}
		children = el.childNodes()
	} else {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, c)
		}
	}
	for _, c := range children {
		e.walk(c, st)
	}
}

func (e *Engine) newElement(n *html.Node, bindings []Binding, st walkState) *Element {
	e.seq++
	el := &Element{
		Node:      n,
		Namespace: st.ns,
		Parent:    st.parent,
		engine:    e,
		bindings:  bindings,
		inStack:   st.stack,
		stack:     st.stack,
		depth:     st.depth,
		isolated:  st.isolated,
		baseline:  append([]html.Attribute(nil), n.Attr...),
		ctx:       st.ctx,
		seq:       e.seq,
		mounted:   true,
		attached:  e.doc.Contains(n),
	}
	if el.ctx == nil {
		el.ctx = context.Background()
	}
	if st.parent != nil {
		st.parent.children = append(st.parent.children, el)
	}
	e.elements[n] = el
	e.buildLevels(el)
	return el
}

// buildLevels derives the levels of el from the registry, keeping levels
// whose directive set did not change.
func (e *Engine) buildLevels(el *Element) {
	groups := e.registry.levelsFor(el.bindings)
	old := el.levels
	used := make([]bool, len(old))
	levels := make([]*level, 0, len(groups))
	for i, g := range groups {
		var l *level
		for j, o := range old {
			if !used[j] && o.priority == g.priority && o.sameNames(g.names) {
				l, used[j] = o, true
				break
			}
		}
		if l == nil {
			l = &level{id: reactive.NextID(), seq: reactive.NextID(), el: el, priority: g.priority, names: g.names}
		}
		l.index = i
		levels = append(levels, l)
	}
	for j, o := range old {
		if !used[j] {
			o.dispose()
		}
	}
	el.levels = levels
}

// scopeCtx is the ctx evaluators of el receive, without a listener.
func (e *Engine) scopeCtx(el *Element) context.Context {
	ctx := scope.WithRunner(el.ctx, e.sched)
	return scope.With(ctx, scope.Scope{Element: el.Node, Contexts: el.stack, Namespace: el.Namespace})
}

// renderLevels runs the levels of el from index from on and commits.
func (e *Engine) renderLevels(el *Element, from int) {
	if !el.mounted {
		return
	}
	if from == 0 {
		el.stack = el.inStack
	}
	outer := e.afterCommit
	e.afterCommit = nil
	for i := from; i < len(el.levels); i++ {
		e.runLevel(el, el.levels[i])
	}
	e.commit(el)
	pending := e.afterCommit
	e.afterCommit = outer
	for _, fn := range pending {
		fn()
	}
}

// rerender is a level job: levels from..N, then the children.
func (e *Engine) rerender(el *Element, from int) {
	e.renderLevels(el, from)
	for _, c := range el.children {
		c.invalidate()
	}
}

func (el *Element) invalidate() {
	if !el.mounted {
		return
	}
	if len(el.levels) > 0 {
		el.levels[0].MarkDirty()
		return
	}
	for _, c := range el.children {
		c.invalidate()
	}
}

func (e *Engine) runLevel(el *Element, l *level) {
	l.dirty = false
	l.Release(l)
	l.ops = l.ops[:0]
	l.cursor = 0
	ctx := reactive.WithListener(e.scopeCtx(el), l)
	for _, name := range l.names {
		cfg, ok := e.registry.Lookup(name)
		if !ok || cfg.Evaluate == nil {
			continue
		}
		c := &Call{Element: el, Name: name, Bindings: el.bindingsOf(name), engine: e, level: l}
		e.evaluate(ctx, cfg.Evaluate, c)
	}
	l.trimHooks()
}

func (e *Engine) evaluate(ctx context.Context, fn Evaluator, c *Call) {
	defer e.recoverInto(c.Element, c.Name)
	if err := fn(ctx, c); err != nil {
		e.fail(c.Element, c.Name, err)
	}
}

// Unmount tears down every element in the subtree of n: effect cleanups
// run, listeners detach and derived memos are released. It returns the
// number of elements unmounted.
func (e *Engine) Unmount(n *html.Node) int {
	var found []*Element
	dom.Walk(n, func(c *html.Node) bool {
		if el := e.elements[c]; el != nil {
			found = append(found, el)
		}
		delete(e.islands, c)
		return true
	})
	before := len(e.elements)
	for _, el := range found {
		e.unmount(el)
	}
	return before - len(e.elements)
}

func (e *Engine) unmount(el *Element) {
	if !el.mounted {
		return
	}
	for i := len(el.children) - 1; i >= 0; i-- {
		e.unmount(el.children[i])
	}
	el.mounted = false
	for i := len(el.levels) - 1; i >= 0; i-- {
		el.levels[i].dispose()
	}
	el.attached = false
	if el.Parent != nil {
		el.Parent.removeChild(el)
	}
	delete(e.elements, el.Node)
	for _, name := range e.store.Names() {
		if ns, ok := e.store.Lookup(name); ok {
			ns.Release(el.Node)
		}
	}
}

// Retaining runs fn, typically an unmount, patch and mount of a region.
// Context layers of elements unmounted during fn are handed to the
// elements that mount on the same node, which merge the new server value
// into them instead of starting over.
func (e *Engine) Retaining(fn func()) {
	e.retaining = true
	e.retained = make(map[layerKey]*ctxchain.Layer)
	defer func() {
		e.retaining = false
		e.retained = nil
	}()
	fn()
}

func (e *Engine) retain(l *ctxchain.Layer) {
	if e.retaining {
		e.retained[layerKey{owner: l.Owner, ns: l.Namespace}] = l
	}
}

func (e *Engine) takeRetained(owner *html.Node, ns string) *ctxchain.Layer {
	k := layerKey{owner: owner, ns: ns}
	l := e.retained[k]
	delete(e.retained, k)
	return l
}

// rescan re-derives the levels of mounted elements carrying name.
func (e *Engine) rescan(name string) {
	var els []*Element
	for _, el := range e.elements {
		if el.mounted && len(el.bindingsOf(name)) > 0 {
			els = append(els, el)
		}
	}
	sort.Slice(els, func(i, j int) bool { return els[i].seq < els[j].seq })
	for _, el := range els {
		if !el.mounted {
			continue
		}
		e.buildLevels(el)
		e.rerender(el, 0)
	}
}

// observe keeps listeners attached exactly while their element is in the
// document.
func (e *Engine) observe(m dom.Mutation) {
	if m.Node == nil || len(e.elements) == 0 {
		return
	}
	if m.Kind != dom.MutationInsert && m.Kind != dom.MutationRemove {
		return
	}
	dom.Walk(m.Node, func(n *html.Node) bool {
		if el := e.elements[n]; el != nil && el.mounted {
			el.setAttached(e.doc.Contains(n))
		}
		return true
	})
}

// describe renders the start tag of n for diagnostics.
func describe(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		fmt.Fprintf(&b, " %s=%q", a.Key, a.Val)
	}
	b.WriteString(">")
	s := b.String()
	if len(s) > 120 {
		cut := 117
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
