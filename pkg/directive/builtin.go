package directive

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/ctxchain"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
)

// RegisterBuiltins registers the built-in directives on r.
func RegisterBuiltins(r *Registry) {
	r.Register("context", Config{Priority: PriorityContext, Evaluate: evalContext})

	r.Register("bind", Config{Priority: PriorityAttribute, Evaluate: evalBind})
	r.Register("class", Config{Priority: PriorityAttribute, Evaluate: evalClass})
	r.Register("style", Config{Priority: PriorityAttribute, Evaluate: evalStyle})
	r.Register("on", Config{Priority: PriorityAttribute, Evaluate: onEvaluator(false, elementTarget)})
	r.Register("on-async", Config{Priority: PriorityAttribute, Evaluate: onEvaluator(true, elementTarget)})
	r.Register("on-window", Config{Priority: PriorityAttribute, Evaluate: onEvaluator(false, windowTarget)})
	r.Register("on-async-window", Config{Priority: PriorityAttribute, Evaluate: onEvaluator(true, windowTarget)})
	r.Register("on-document", Config{Priority: PriorityAttribute, Evaluate: onEvaluator(false, documentTarget)})
	r.Register("on-async-document", Config{Priority: PriorityAttribute, Evaluate: onEvaluator(true, documentTarget)})
	r.Register("init", Config{Priority: PriorityAttribute, Evaluate: evalInit})
	r.Register("watch", Config{Priority: PriorityAttribute, Evaluate: evalWatch})
	r.Register("run", Config{Priority: PriorityAttribute, Evaluate: evalRun})

	r.Register("text", Config{Priority: PriorityText, Evaluate: evalText})

	r.Register("each", Config{Priority: PriorityChildren, Evaluate: evalEach})
	r.Register("slot", Config{Priority: PriorityChildren, Evaluate: evalSlot})
	r.Register("fill", Config{Priority: PriorityChildren, Evaluate: evalFill})
	r.Register("body", Config{Priority: PriorityChildren, Evaluate: evalBody})

	// Read by other directives or by the differ; nothing to evaluate.
	r.Register("each-key", Config{Priority: PriorityChildren})
	r.Register("key", Config{})
}

type contextState struct {
	layer *ctxchain.Layer
}

func evalContext(ctx context.Context, c *Call) error {
	for _, b := range c.Bindings {
		if b.Suffix != "" {
			continue
		}
		ref := c.Ref()
		st, _ := ref.Value.(*contextState)
		if st == nil {
			value := c.contextValue(b)
			inherited := c.Inherited(b.Namespace)
			layer := c.engine.takeRetained(c.Element.Node, b.Namespace)
			if layer != nil {
				layer.Parent = inherited
				layer.Merge(value)
			} else {
				layer = ctxchain.NewLayer(c.Element.Node, b.Namespace, value, inherited)
			}
			st = &contextState{layer: layer}
			ref.Value = st
			ref.Dispose = func() { c.engine.retain(layer) }
		}
		c.Provide(st.layer)
	}
	return nil
}

// contextValue decodes the JSON value of a context binding. Anything but
// an object warns E105 and yields an empty object.
func (c *Call) contextValue(b Binding) *reactive.Object {
	raw := strings.TrimSpace(b.Value)
	if raw == "" {
		return reactive.NewObject()
	}
	v, err := reactive.DecodeJSON([]byte(raw))
	if obj, ok := v.(*reactive.Object); ok && err == nil {
		return obj
	}
	e := errors.New("E105")
	if err != nil {
		e = e.Wrap(err)
	}
	c.Warn(e, b)
	return reactive.NewObject()
}

func evalBind(ctx context.Context, c *Call) error {
	for _, b := range c.Bindings {
		if b.Suffix == "" {
			continue
		}
		applyBind(c, b.Suffix, c.Evaluate(ctx, b))
	}
	return nil
}

// booleanAttrs are reflected as present-and-empty when bound to true.
var booleanAttrs = map[string]bool{
	"allowfullscreen": true, "async": true, "autofocus": true, "autoplay": true,
	"checked": true, "controls": true, "default": true, "defer": true,
	"disabled": true, "formnovalidate": true, "hidden": true, "inert": true,
	"ismap": true, "loop": true, "multiple": true, "muted": true,
	"nomodule": true, "novalidate": true, "open": true, "playsinline": true,
	"readonly": true, "required": true, "reversed": true, "selected": true,
}

func applyBind(c *Call, attr string, v any) {
	// aria-* and data-* keep an explicit "false".
	enumerated := strings.HasPrefix(attr, "aria-") || strings.HasPrefix(attr, "data-")
	switch t := v.(type) {
	case nil:
		c.RemoveAttr(attr)
	case bool:
		switch {
		case enumerated:
			c.SetAttr(attr, Stringify(t))
		case !t:
			c.RemoveAttr(attr)
		case booleanAttrs[attr]:
			c.SetAttr(attr, "")
		default:
			c.SetAttr(attr, "true")
		}
	case *reactive.Object, *reactive.Array, map[string]any, []any:
		c.RemoveAttr(attr)
	default:
		c.SetAttr(attr, Stringify(v))
	}
}

func evalClass(ctx context.Context, c *Call) error {
	for _, b := range c.Bindings {
		if b.Suffix == "" {
			continue
		}
		c.ToggleClass(b.Suffix, Truthy(c.Evaluate(ctx, b)))
	}
	return nil
}

func evalStyle(ctx context.Context, c *Call) error {
	for _, b := range c.Bindings {
		if b.Suffix == "" {
			continue
		}
		v := c.Evaluate(ctx, b)
		if !Truthy(v) {
			c.SetStyle(b.Suffix, "")
			continue
		}
		c.SetStyle(b.Suffix, Stringify(v))
	}
	return nil
}

func evalText(ctx context.Context, c *Call) error {
	b := c.Bindings[len(c.Bindings)-1]
	c.SetText(Stringify(c.Evaluate(ctx, b)))
	return nil
}

func elementTarget(c *Call) *html.Node  { return c.Element.Node }
func windowTarget(c *Call) *html.Node   { return c.Document().Window }
func documentTarget(c *Call) *html.Node { return c.Document().Root }

// onEvaluator builds the on-* family. Every binding gets its own listener
// so bindings of one event fire in attribute order. Async handlers run on
// the next scheduler task.
func onEvaluator(async bool, target func(*Call) *html.Node) Evaluator {
	return func(ctx context.Context, c *Call) error {
		t := target(c)
		for _, b := range c.Bindings {
			ev := b.Event()
			if ev == "" {
				continue
			}
			b := b
			c.On(ctx, t, ev, func(ctx context.Context, e *dom.Event) {
				if !async {
					c.Evaluate(ctx, b, e)
					return
				}
				c.engine.sched.Post(func() { c.Evaluate(ctx, b, e) })
			})
		}
		return nil
	}
}

func evalInit(ctx context.Context, c *Call) error {
	for _, b := range c.Bindings {
		b := b
		c.Init(ctx, func(ctx context.Context) reactive.Cleanup {
			return cleanupOf(c.Evaluate(ctx, b))
		})
	}
	return nil
}

func evalWatch(ctx context.Context, c *Call) error {
	for _, b := range c.Bindings {
		b := b
		c.Watch(ctx, func(ctx context.Context) reactive.Cleanup {
			return cleanupOf(c.Evaluate(ctx, b))
		})
	}
	return nil
}

// evalRun evaluates during render, so what it reads re-renders the
// element.
func evalRun(ctx context.Context, c *Call) error {
	for _, b := range c.Bindings {
		c.Evaluate(ctx, b)
	}
	return nil
}

func cleanupOf(v any) reactive.Cleanup {
	switch fn := v.(type) {
	case reactive.Cleanup:
		return fn
	case func():
		return fn
	}
	return nil
}
