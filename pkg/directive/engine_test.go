package directive

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/scope"
	"github.com/vango-dev/islands/pkg/store"
)

type harness struct {
	t        *testing.T
	doc      *dom.Document
	sched    *reactive.Scheduler
	store    *store.Registry
	reg      *Registry
	engine   *Engine
	warnings []*errors.Error
}

func newHarness(t *testing.T, src string, opts ...reactive.SchedulerOption) *harness {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{t: t, doc: doc}
	opts = append(opts, reactive.OnOverflow(func(j reactive.Job) { h.engine.Overflow(j) }))
	h.sched = reactive.NewScheduler(opts...)
	h.store = store.NewRegistry(store.WithWarn(h.warn))
	h.reg = NewRegistry()
	RegisterBuiltins(h.reg)
	h.engine = New(doc, h.reg, h.store, h.sched, WithWarn(h.warn))
	return h
}

func (h *harness) warn(e *errors.Error) { h.warnings = append(h.warnings, e) }

func (h *harness) codes() []string {
	var out []string
	for _, w := range h.warnings {
		out = append(out, w.Code)
	}
	return out
}

// hydrate mounts every island in document order and flushes.
func (h *harness) hydrate() {
	for _, n := range h.doc.FindAll(func(n *html.Node) bool {
		_, ok := InteractiveOf(DefaultPrefix, n)
		return ok
	}) {
		if !h.engine.Hydrated(n) {
			h.engine.Mount(context.Background(), n)
		}
	}
	h.sched.Flush()
}

func (h *harness) byID(id string) *html.Node {
	h.t.Helper()
	n := h.doc.ByID(id)
	if n == nil {
		h.t.Fatalf("no element #%s", id)
	}
	return n
}

func (h *harness) state(ns string) *reactive.Object { return h.store.Namespace(ns).State }

func TestHydrationWithoutFlash(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<p id="label" data-wp-text="state.label">Hello</p>`+
		`<div id="box" class="box open" data-wp-class--open="state.open" data-wp-style--color="state.color" style="color:red;"></div>`+
		`<input id="field" data-wp-bind--hidden="!state.open" data-wp-bind--aria-expanded="state.open" aria-expanded="true">`+
		`</div>`)
	h.store.Define("app", store.Definition{State: map[string]any{
		"label": "Hello", "open": true, "color": "red",
	}})

	before := h.doc.Mutations()
	h.hydrate()
	if got := h.doc.Mutations() - before; got != 0 {
		t.Fatalf("hydration made %d mutations, want 0:\n%s", got, h.doc.Render())
	}

	h.state("app").Set("label", "Bye")
	h.state("app").Set("open", false)
	h.sched.Flush()

	if got := dom.TextContent(h.byID("label")); got != "Bye" {
		t.Errorf("label = %q", got)
	}
	if got, _ := dom.Attr(h.byID("box"), "class"); got != "box" {
		t.Errorf("class = %q", got)
	}
	field := h.byID("field")
	if _, ok := dom.Attr(field, "hidden"); !ok {
		t.Error("hidden should be set")
	}
	if got, _ := dom.Attr(field, "aria-expanded"); got != "false" {
		t.Errorf("aria-expanded = %q, want false", got)
	}
	if len(h.warnings) != 0 {
		t.Errorf("warnings: %v", h.codes())
	}
}

func TestBindRules(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app"><a id="a"
		data-wp-bind--href="state.url"
		data-wp-bind--title="state.missing"
		data-wp-bind--disabled="state.yes"
		data-wp-bind--draggable="state.yes"
		data-wp-bind--data-off="state.no"
		data-wp-bind--tabindex="state.num"
		data-wp-bind--rel="state.no" rel="noopener"></a></div>`)
	h.store.Define("app", store.Definition{State: map[string]any{
		"url": "/x", "yes": true, "no": false, "num": 3.0,
	}})
	h.hydrate()

	a := h.byID("a")
	want := map[string]string{"href": "/x", "disabled": "", "draggable": "true", "data-off": "false", "tabindex": "3"}
	for k, v := range want {
		if got, ok := dom.Attr(a, k); !ok || got != v {
			t.Errorf("%s = %q (present %v), want %q", k, got, ok, v)
		}
	}
	for _, k := range []string{"title", "rel"} {
		if _, ok := dom.Attr(a, k); ok {
			t.Errorf("%s should be removed", k)
		}
	}
}

func TestRemovedAttributeReturnsToBaseline(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app"><p id="p" class="a" data-wp-class--b="state.b"></p></div>`)
	h.store.Define("app", store.Definition{State: map[string]any{"b": true}})
	h.hydrate()
	if got, _ := dom.Attr(h.byID("p"), "class"); got != "a b" {
		t.Fatalf("class = %q", got)
	}
	h.state("app").Set("b", false)
	h.sched.Flush()
	if got, _ := dom.Attr(h.byID("p"), "class"); got != "a" {
		t.Errorf("class = %q, want a", got)
	}
}

func TestRehydrationIsNoop(t *testing.T) {
	src := `<div data-wp-interactive="app" data-wp-context='{"n": 2}'>` +
		`<span id="n" data-wp-text="context.n"></span>` +
		`<ul><template data-wp-each="state.items"><li data-wp-text="context.item"></li></template></ul>` +
		`</div>`
	state := map[string]any{"items": []any{"a", "b"}}

	first := newHarness(t, src)
	first.store.Define("app", store.Definition{State: state})
	first.hydrate()
	rendered := first.doc.Render()

	second := newHarness(t, rendered)
	second.store.Define("app", store.Definition{State: state})
	before := second.doc.Mutations()
	second.hydrate()
	if got := second.doc.Mutations() - before; got != 0 {
		t.Errorf("re-hydration made %d mutations:\n%s", got, second.doc.Render())
	}
	if second.doc.Render() != rendered {
		t.Errorf("document changed:\n%s\nvs\n%s", rendered, second.doc.Render())
	}
}

func TestListenerFollowsConnection(t *testing.T) {
	h := newHarness(t, `<div id="root" data-wp-interactive="app"><button id="b" data-wp-on--click="actions.inc">+</button></div>`)
	h.store.Define("app", store.Definition{
		State: map[string]any{"count": 0.0},
		Actions: map[string]store.Action{
			"inc": func(ctx context.Context, args ...any) any {
				st := h.state("app")
				n, _ := st.Peek("count")
				st.Set("count", n.(float64)+1)
				return nil
			},
		},
	})
	h.hydrate()

	b := h.byID("b")
	h.doc.Click(b)
	if n, _ := h.state("app").Peek("count"); n != 1.0 {
		t.Fatalf("count = %v, want 1", n)
	}

	root := h.byID("root")
	h.doc.Remove(b)
	if got := h.doc.ListenerCount(b, "click"); got != 0 {
		t.Errorf("detached button has %d listeners", got)
	}
	h.doc.AppendChild(root, b)
	h.doc.AppendChild(root, b)
	if got := h.doc.ListenerCount(b, "click"); got != 1 {
		t.Errorf("reinserted button has %d listeners, want 1", got)
	}
	h.doc.Click(b)
	if n, _ := h.state("app").Peek("count"); n != 2.0 {
		t.Errorf("count = %v, want 2", n)
	}
}

func TestEventBindingsFireInOrder(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app"><button id="b"
		data-wp-on--click="actions.first"
		data-wp-on--click--second="actions.second"
		data-wp-on-document--click="actions.doc"></button></div>`)
	var order []string
	record := func(name string) store.Action {
		return func(ctx context.Context, args ...any) any {
			if ev, ok := args[0].(*dom.Event); !ok || ev.Type != "click" {
				t.Errorf("%s: first argument is %#v", name, args[0])
			}
			order = append(order, name)
			return nil
		}
	}
	h.store.Define("app", store.Definition{Actions: map[string]store.Action{
		"first": record("first"), "second": record("second"), "doc": record("doc"),
	}})
	h.hydrate()

	h.doc.Click(h.byID("b"))
	if got := strings.Join(order, ","); got != "first,second,doc" {
		t.Errorf("order = %s", got)
	}
}

func TestAsyncHandlerRunsOnNextTask(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app"><button id="b" data-wp-on-async--click="actions.go"></button></div>`)
	ran := 0
	h.store.Define("app", store.Definition{Actions: map[string]store.Action{
		"go": func(context.Context, ...any) any { ran++; return nil },
	}})
	h.hydrate()
	h.doc.Click(h.byID("b"))
	if ran != 0 {
		t.Fatal("async handler ran synchronously")
	}
	h.sched.Flush()
	if ran != 1 {
		t.Errorf("ran = %d, want 1", ran)
	}
}

func TestInitAndWatchLifecycle(t *testing.T) {
	h := newHarness(t, `<div id="root" data-wp-interactive="app"><p data-wp-init="callbacks.setup" data-wp-watch="callbacks.log"></p></div>`)
	var events []string
	h.store.Define("app", store.Definition{
		State: map[string]any{"n": 1.0},
		Callbacks: map[string]store.Action{
			"setup": func(ctx context.Context, _ ...any) any {
				events = append(events, "init")
				return func() { events = append(events, "init-cleanup") }
			},
			"log": func(ctx context.Context, _ ...any) any {
				n := h.store.Namespace("app").StateView().Get(ctx, "n")
				events = append(events, "watch "+Stringify(n))
				return func() { events = append(events, "watch-cleanup") }
			},
		},
	})
	h.hydrate()
	h.state("app").Set("n", 2.0)
	h.sched.Flush()
	h.engine.Unmount(h.byID("root"))

	want := "init,watch 1,watch-cleanup,watch 2,watch-cleanup,init-cleanup"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("events =\n%s\nwant\n%s", got, want)
	}
	if h.engine.Len() != 0 {
		t.Errorf("%d elements still mounted", h.engine.Len())
	}
}

func TestEvaluatorFailureIsContained(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<p id="bad" data-wp-explode="state.x"><span id="child" data-wp-text="state.x"></span></p>`+
		`<p id="sibling" data-wp-text="state.x"></p></div>`)
	h.reg.Register("explode", Config{Evaluate: func(context.Context, *Call) error { panic("boom") }})
	h.store.Define("app", store.Definition{State: map[string]any{"x": "ok"}})
	h.hydrate()

	for _, id := range []string{"child", "sibling"} {
		if got := dom.TextContent(h.byID(id)); got != "ok" {
			t.Errorf("#%s = %q, want ok", id, got)
		}
	}
	if len(h.warnings) != 1 || h.warnings[0].Code != "E103" {
		t.Fatalf("warnings = %v, want [E103]", h.codes())
	}
	if h.warnings[0].Directive != "data-wp-explode" {
		t.Errorf("directive = %q", h.warnings[0].Directive)
	}
}

func TestUnknownReferencesWarn(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<button id="b" data-wp-on--click="actions.nope"></button>`+
		`<p data-wp-text="globals.x"></p>`+
		`<p data-wp-context="[1, 2]"></p></div>`)
	h.hydrate()
	h.doc.Click(h.byID("b"))
	got := strings.Join(h.codes(), ",")
	if got != "E107,E105,E107" {
		t.Errorf("codes = %s", got)
	}
}

func TestBudgetOverflowWarns(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app"><p data-wp-watch="callbacks.loop"></p></div>`,
		reactive.WithBudget(reactive.NewBudget(reactive.BudgetConfig{MaxRunsPerJob: 5})))
	runs := 0
	h.store.Define("app", store.Definition{
		State: map[string]any{"n": 0.0},
		Callbacks: map[string]store.Action{
			"loop": func(ctx context.Context, _ ...any) any {
				runs++
				n := h.state("app").Get(ctx, "n").(float64)
				h.state("app").Set("n", n+1)
				return nil
			},
		},
	})
	h.hydrate()

	if runs != 5 {
		t.Errorf("runs = %d, want 5", runs)
	}
	if got := h.codes(); len(got) != 1 || got[0] != "E104" {
		t.Errorf("codes = %v, want [E104]", got)
	}
}

func TestLateRegistrationRerenders(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app"><p id="p" data-wp-shout="state.msg">hi</p></div>`)
	h.store.Define("app", store.Definition{State: map[string]any{"msg": "hi"}})
	h.hydrate()

	h.reg.Register("shout", Config{Priority: PriorityText, Evaluate: func(ctx context.Context, c *Call) error {
		c.SetText(strings.ToUpper(Stringify(c.Evaluate(ctx, c.Bindings[0]))))
		return nil
	}})
	if got := dom.TextContent(h.byID("p")); got != "HI" {
		t.Fatalf("text = %q, want HI", got)
	}
	h.state("app").Set("msg", "yo")
	h.sched.Flush()
	if got := dom.TextContent(h.byID("p")); got != "YO" {
		t.Errorf("text = %q, want YO", got)
	}
}

func TestIgnoreExcludesSubtree(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app"><div data-wp-ignore data-wp-text="state.x"><p id="inner" data-wp-text="state.x">keep</p></div></div>`)
	h.store.Define("app", store.Definition{State: map[string]any{"x": "changed"}})
	h.hydrate()
	if got := dom.TextContent(h.byID("inner")); got != "keep" {
		t.Errorf("ignored text = %q", got)
	}
}

func TestContextInheritanceAndScope(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app" data-wp-context='{"obj": {"x": 1}, "label": "outer"}'>`+
		`<div data-wp-context='{"obj": {"y": 2}}'>`+
		`<span id="x" data-wp-text="context.obj.x"></span>`+
		`<span id="y" data-wp-text="context.obj.y"></span>`+
		`<button id="b" data-wp-on--click="actions.rename"></button>`+
		`</div><span id="label" data-wp-text="context.label"></span></div>`)
	h.store.Define("app", store.Definition{Actions: map[string]store.Action{
		"rename": func(ctx context.Context, _ ...any) any {
			if scope.GetElement(ctx) != h.byID("b") {
				t.Error("action scope element is not the button")
			}
			scope.GetContext(ctx).Set("label", "renamed")
			return nil
		},
	}})
	h.hydrate()

	if got := dom.TextContent(h.byID("x")); got != "1" {
		t.Errorf("x = %q", got)
	}
	if got := dom.TextContent(h.byID("y")); got != "2" {
		t.Errorf("y = %q", got)
	}
	h.doc.Click(h.byID("b"))
	h.sched.Flush()
	if got := dom.TextContent(h.byID("label")); got != "renamed" {
		t.Errorf("label = %q, want renamed", got)
	}
}

func TestContextLevelRunsFirst(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<p id="p" data-wp-early="x" data-wp-context='{"msg": "ctx"}'>server</p></div>`)
	h.reg.Register("early", Config{Priority: 1, Evaluate: func(ctx context.Context, c *Call) error {
		view := scope.GetContext(ctx)
		if view == nil {
			c.SetText("no context")
			return nil
		}
		c.SetText(Stringify(view.Get(ctx, "msg")))
		return nil
	}})
	h.hydrate()

	if got := dom.TextContent(h.byID("p")); got != "ctx" {
		t.Errorf("text = %q, want ctx", got)
	}
}

func TestSuffixedContextIsIgnored(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<div data-wp-context='{"a": "default"}' data-wp-context--extra='{"a": "extra", "b": "extra"}'>`+
		`<span id="a" data-wp-text="context.a"></span><span id="b" data-wp-text="context.b">b</span>`+
		`</div></div>`)
	h.hydrate()

	if got := dom.TextContent(h.byID("a")); got != "default" {
		t.Errorf("a = %q, want default", got)
	}
	if got := dom.TextContent(h.byID("b")); got != "" {
		t.Errorf("b = %q, want empty", got)
	}
}

func TestLevelRerunsFollowPriority(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<div data-wp-lo="state.a" data-wp-hi="state.b"><span data-wp-kid="state.c"></span></div></div>`)
	h.store.Define("app", store.Definition{State: map[string]any{"a": 1.0, "b": 1.0, "c": 1.0}})

	runs := map[string]int{}
	counter := func(name string, priority int) {
		h.reg.Register(name, Config{Priority: priority, Evaluate: func(ctx context.Context, c *Call) error {
			runs[name]++
			c.Evaluate(ctx, c.Bindings[0])
			return nil
		}})
	}
	counter("lo", PriorityAttribute)
	counter("hi", PriorityText)
	counter("kid", PriorityAttribute)
	h.hydrate()

	tests := []struct {
		prop string
		want map[string]int
	}{
		{"b", map[string]int{"lo": 0, "hi": 1, "kid": 1}},
		{"a", map[string]int{"lo": 1, "hi": 1, "kid": 1}},
	}
	for _, tt := range tests {
		before := map[string]int{"lo": runs["lo"], "hi": runs["hi"], "kid": runs["kid"]}
		h.state("app").Set(tt.prop, 2.0)
		h.sched.Flush()
		for name, want := range tt.want {
			if got := runs[name] - before[name]; got != want {
				t.Errorf("state.%s changed: %s ran %d more times, want %d", tt.prop, name, got, want)
			}
		}
	}
}
