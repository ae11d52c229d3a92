package directive

import (
	"context"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/ctxchain"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
)

// Call is handed to an Evaluator for one render of one directive on one
// element.
type Call struct {
	Element  *Element
	Name     string
	Bindings []Binding

	engine *Engine
	level  *level
}

// Document returns the live document.
func (c *Call) Document() *dom.Document { return c.engine.doc }

// Prefix returns the directive attribute prefix.
func (c *Call) Prefix() string { return c.engine.prefix }

// Evaluate resolves b in ctx. Failures are reported and yield nil.
func (c *Call) Evaluate(ctx context.Context, b Binding, args ...any) any {
	v, err := c.engine.Evaluate(ctx, b, args...)
	if err != nil {
		c.Warn(err, b)
		return nil
	}
	return v
}

// Warn reports err for binding b of this element.
func (c *Call) Warn(err error, b Binding) {
	e, ok := err.(*errors.Error)
	if !ok {
		e = errors.New("E103").Wrap(err)
	}
	if e.Namespace == "" {
		e = e.WithNamespace(b.Namespace)
	}
	c.engine.warn(e.
		WithDirective(b.Attr(c.engine.prefix)).
		WithElement(describe(c.Element.Node)))
}

// SetAttr declares the value of an attribute.
func (c *Call) SetAttr(name, value string) {
	c.level.ops = append(c.level.ops, op{kind: opAttr, name: name, value: value})
}

// RemoveAttr declares an attribute absent.
func (c *Call) RemoveAttr(name string) {
	c.level.ops = append(c.level.ops, op{kind: opRemoveAttr, name: name})
}

// ToggleClass declares whether a class token is present.
func (c *Call) ToggleClass(name string, on bool) {
	c.level.ops = append(c.level.ops, op{kind: opClass, name: name, on: on})
}

// SetStyle declares a style property. An empty value removes it.
func (c *Call) SetStyle(prop, value string) {
	c.level.ops = append(c.level.ops, op{kind: opStyle, name: prop, value: value})
}

// SetText declares the text content of the element.
func (c *Call) SetText(s string) {
	c.level.ops = append(c.level.ops, op{kind: opText, value: s})
}

// Ref returns a value that survives re-renders of this directive.
func (c *Call) Ref() *Ref {
	h := c.level.nextHook(&refHook{ref: &Ref{}}, func(h hook) bool {
		_, ok := h.(*refHook)
		return ok
	})
	return h.(*refHook).ref
}

// On listens for typ on target while the element is mounted and
// connected. The handler receives an untracked ctx with the element's
// scope.
func (c *Call) On(ctx context.Context, target *html.Node, typ string, fn func(ctx context.Context, ev *dom.Event)) {
	fresh := &listenHook{doc: c.engine.doc, target: target, typ: typ}
	h := c.level.nextHook(fresh, func(h hook) bool {
		lh, ok := h.(*listenHook)
		return ok && lh.target == target && lh.typ == typ
	}).(*listenHook)

	hctx := reactive.Untracked(ctx)
	el, name := c.Element, c.Name
	h.handler = func(ev *dom.Event) {
		defer c.engine.recoverInto(el, name)
		fn(hctx, ev)
	}
	if h == fresh && el.attached {
		h.attach()
	}
}

// Init runs fn once after the element first commits. Its cleanup runs on
// unmount.
func (c *Call) Init(ctx context.Context, fn func(ctx context.Context) reactive.Cleanup) {
	c.effect(ctx, fn, false)
}

// Watch runs fn after the element commits and again whenever anything fn
// read changes. Its cleanup runs before each re-run and on unmount.
func (c *Call) Watch(ctx context.Context, fn func(ctx context.Context) reactive.Cleanup) {
	c.effect(ctx, fn, true)
}

func (c *Call) effect(ctx context.Context, fn func(ctx context.Context) reactive.Cleanup, tracked bool) {
	fresh := &effectHook{}
	eh := c.level.nextHook(fresh, func(h hook) bool {
		_, ok := h.(*effectHook)
		return ok
	}).(*effectHook)
	eh.fn = fn
	if eh != fresh {
		return
	}

	el, name := c.Element, c.Name
	eh.eff = reactive.NewEffect(reactive.Untracked(ctx), c.engine.sched, func(ctx context.Context) reactive.Cleanup {
		defer c.engine.recoverInto(el, name)
		if !tracked {
			ctx = reactive.Untracked(ctx)
		}
		return eh.fn(ctx)
	}).WithRank(reactive.Rank{
		Phase:    reactive.PhaseEffect,
		Depth:    el.depth,
		Priority: c.level.priority,
		Seq:      reactive.NextID(),
	})
	eh.eff.MarkDirty()
}

// Provide makes l the context layer of its namespace for the rest of the
// element's levels and for its children.
func (c *Call) Provide(l *ctxchain.Layer) {
	c.Element.stack = c.Element.stack.With(l)
}

// Inherited returns the layer of ns the element inherits from its
// ancestors.
func (c *Call) Inherited(ns string) *ctxchain.Layer {
	return c.Element.inStack.Layer(ns)
}

// Relocate makes nodes the logical children of the element, which are
// walked in place of its DOM children.
func (c *Call) Relocate(nodes []*html.Node) {
	c.Element.content = nodes
}

// AfterCommit defers fn until the element has committed.
func (c *Call) AfterCommit(fn func()) {
	c.engine.afterCommit = append(c.engine.afterCommit, fn)
}
