package islands

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/html"

	"github.com/vango-dev/islands/internal/config"
	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/directive"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/router"
	"github.com/vango-dev/islands/pkg/scope"
	"github.com/vango-dev/islands/pkg/store"
)

const cartPage = `<!DOCTYPE html><html><head><title>Cart</title></head><body>` +
	`<div id="cart" data-wp-interactive="shop" data-wp-context='{"qty":1}'>` +
	`<span id="qty" data-wp-text="context.qty">1</span>` +
	`<span id="total" data-wp-text="state.total">10</span>` +
	`<button id="add" data-wp-on--click="actions.add">+</button>` +
	`<button id="load" data-wp-on--click="actions.load">load</button>` +
	`</div>` +
	`<script type="application/json" id="wp-interactivity-data">` +
	`{"state":{"shop":{"price":10,"total":10}},"config":{"shop":{"currency":"EUR"}}}` +
	`</script></body></html>`

type seen struct {
	element  *html.Node
	server   any
	currency any
	runtime  *Runtime
}

func newCart(t *testing.T, opts ...Option) (*Runtime, *seen) {
	t.Helper()
	rt, err := ParseString(cartPage, opts...)
	if err != nil {
		t.Fatal(err)
	}
	s := &seen{}
	rt.Store("shop", store.Definition{
		Actions: map[string]store.Action{
			"add": func(ctx context.Context, _ ...any) any {
				untracked := reactive.Untracked(ctx)
				c := GetContext(ctx)
				qty := c.Get(untracked, "qty").(float64) + 1
				c.Set("qty", qty)

				st := rt.Namespace("shop").State
				price, _ := st.Peek("price")
				st.Set("total", qty*price.(float64))

				s.element = GetElement(ctx)
				s.server = GetServerState(ctx).Get(untracked, "total")
				s.currency = GetConfig(ctx).Get(untracked, "currency")
				s.runtime = FromContext(ctx)
				return nil
			},
			"load": func(ctx context.Context, _ ...any) any {
				scope.Await(ctx, func(context.Context) (any, error) {
					time.Sleep(time.Millisecond)
					return 7.0, nil
				}, func(ctx context.Context, v any, err error) {
					if err == nil {
						GetContext(ctx).Set("qty", v)
					}
				})
				return nil
			},
		},
	})
	return rt, s
}

func byID(t *testing.T, rt *Runtime, id string) *html.Node {
	t.Helper()
	n := rt.Document().ByID(id)
	if n == nil {
		t.Fatalf("no element #%s", id)
	}
	return n
}

func TestHydrateKeepsServerMarkup(t *testing.T) {
	rt, _ := newCart(t)
	if got := rt.Hydrate(context.Background()); got != 1 {
		t.Fatalf("Hydrate() = %d, want 1", got)
	}
	if got := rt.Document().Mutations(); got != 0 {
		t.Errorf("hydration mutated the document %d times", got)
	}
	if got := rt.Hydrate(context.Background()); got != 0 {
		t.Errorf("second Hydrate() = %d, want 0", got)
	}
}

func TestActionsSeeRuntimeAndScope(t *testing.T) {
	rt, s := newCart(t)
	rt.Hydrate(context.Background())

	add := byID(t, rt, "add")
	rt.Click(add)

	if got := dom.TextContent(byID(t, rt, "qty")); got != "2" {
		t.Errorf("qty = %q, want 2", got)
	}
	if got := dom.TextContent(byID(t, rt, "total")); got != "20" {
		t.Errorf("total = %q, want 20", got)
	}
	if s.element != add {
		t.Error("GetElement() is not the clicked button")
	}
	if s.server != 10.0 {
		t.Errorf("GetServerState().total = %v, want 10", s.server)
	}
	if s.currency != "EUR" {
		t.Errorf("GetConfig().currency = %v, want EUR", s.currency)
	}
	if s.runtime != rt {
		t.Error("FromContext() did not return the runtime")
	}
}

func TestGettersOutsideRuntime(t *testing.T) {
	ctx := context.Background()
	if GetServerState(ctx) != nil || GetConfig(ctx) != nil {
		t.Error("getters returned data without a runtime")
	}
	if GetElement(ctx) != nil || GetContext(ctx) != nil {
		t.Error("getters returned a scope without one")
	}
}

func TestAwaitResumesOnFlush(t *testing.T) {
	rt, _ := newCart(t)
	rt.Hydrate(context.Background())

	rt.Click(byID(t, rt, "load"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Wait(ctx); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if got := dom.TextContent(byID(t, rt, "qty")); got != "7" {
		t.Errorf("qty = %q, want 7", got)
	}
}

func TestWarningsAreLoggedCountedAndForwarded(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	var got []*errors.Error

	rt, err := ParseString(`<div data-wp-interactive="app"><p data-wp-watch="callbacks.loop"></p>`+
		`<script type="application/json" data-wp-interactive-state="app">{broken</script></div>`,
		WithLogger(logger),
		WithMetrics(reg),
		WithMaxEffectRuns(3),
		WithWarningHandler(func(e *errors.Error) { got = append(got, e) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	rt.Store("app", store.Definition{Callbacks: map[string]store.Action{
		"loop": func(ctx context.Context, _ ...any) any {
			st := rt.Namespace("app").State
			n, _ := st.Get(ctx, "n").(float64)
			st.Set("n", n+1)
			return nil
		},
	}})
	rt.Hydrate(context.Background())

	codes := map[string]bool{}
	for _, e := range got {
		codes[e.Code] = true
	}
	if !codes["E101"] || !codes["E104"] {
		t.Errorf("warnings = %v, want E101 and E104", codes)
	}
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "code=E104") {
		t.Errorf("log output missing warning:\n%s", buf.String())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				counts[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	if counts["islands_warnings_total"] < 2 {
		t.Errorf("islands_warnings_total = %v, want >= 2", counts["islands_warnings_total"])
	}
	if counts["islands_budget_overflows_total"] != 1 {
		t.Errorf("islands_budget_overflows_total = %v, want 1", counts["islands_budget_overflows_total"])
	}
	if counts["islands_islands_hydrated_total"] != 1 {
		t.Errorf("islands_islands_hydrated_total = %v, want 1", counts["islands_islands_hydrated_total"])
	}
}

func TestRegisterDirectiveAfterHydrate(t *testing.T) {
	rt, err := ParseString(`<div data-wp-interactive="app"><p id="p" data-wp-shout="state.msg">hi</p></div>`)
	if err != nil {
		t.Fatal(err)
	}
	rt.Store("app", store.Definition{State: map[string]any{"msg": "hi"}})
	rt.Hydrate(context.Background())

	rt.RegisterDirective("shout", directive.Config{
		Priority: directive.PriorityText,
		Evaluate: func(ctx context.Context, c *directive.Call) error {
			c.SetText(strings.ToUpper(directive.Stringify(c.Evaluate(ctx, c.Bindings[0]))))
			return nil
		},
	})
	rt.Flush()
	if got := dom.TextContent(byID(t, rt, "p")); got != "HI" {
		t.Errorf("text = %q, want HI", got)
	}
}

func TestCustomPrefix(t *testing.T) {
	rt, err := ParseString(`<div data-x-interactive="app"><p id="p" data-x-text="state.msg">-</p></div>`,
		WithPrefix("data-x-"))
	if err != nil {
		t.Fatal(err)
	}
	rt.Store("app", store.Definition{State: map[string]any{"msg": "prefixed"}})
	rt.Hydrate(context.Background())
	if got := dom.TextContent(byID(t, rt, "p")); got != "prefixed" {
		t.Errorf("text = %q, want prefixed", got)
	}
}

func TestNavigateThroughRuntime(t *testing.T) {
	next := strings.Replace(cartPage, "<title>Cart</title>", "<title>Checkout</title>", 1)
	base, _ := url.Parse("https://shop.test/cart")
	rt, _ := newCart(t,
		WithURL(base),
		WithFetcher(router.NewMapFetcher(map[string]string{"/checkout": next})),
	)
	rt.Hydrate(context.Background())

	req, err := rt.Navigate(context.Background(), "/checkout")
	if err != nil {
		t.Fatalf("Navigate() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if req.Status != router.StatusCommitted {
		t.Fatalf("Status = %v, want committed", req.Status)
	}
	if got := rt.Document().Title(); got != "Checkout" {
		t.Errorf("Title() = %q", got)
	}
	if got := rt.URL().String(); got != "https://shop.test/checkout" {
		t.Errorf("URL() = %q", got)
	}
	if rt.Back(context.Background()) == nil {
		t.Error("Back() = nil after a navigation")
	}
}

func TestResetUnmounts(t *testing.T) {
	rt, _ := newCart(t)
	rt.Hydrate(context.Background())
	add := byID(t, rt, "add")

	rt.Reset()
	if rt.Engine().Len() != 0 {
		t.Errorf("%d elements still mounted", rt.Engine().Len())
	}
	if got := rt.Document().ListenerCount(add, "click"); got != 0 {
		t.Errorf("ListenerCount = %d after Reset", got)
	}
	if _, ok := rt.Namespace("shop").Actions["add"]; ok {
		t.Error("namespace survived Reset")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.New()
	cfg.Prefix = "data-x-"
	cfg.MaxEffectRuns = 7

	var o Options
	for _, opt := range FromConfig(cfg) {
		opt(&o)
	}
	if o.Prefix != "data-x-" || o.MaxEffectRuns != 7 {
		t.Errorf("options = %+v", o)
	}
	if o.Fetcher != nil {
		t.Error("fetcher set without a bucket")
	}

	cfg.S3 = config.S3Config{Bucket: "site", Prefix: "public/", Region: "eu-west-1"}
	o = Options{}
	for _, opt := range FromConfig(cfg) {
		opt(&o)
	}
	if _, ok := o.Fetcher.(*router.S3Fetcher); !ok {
		t.Errorf("Fetcher = %T, want *router.S3Fetcher", o.Fetcher)
	}
}
