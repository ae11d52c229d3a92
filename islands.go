// Package islands is a headless interactivity runtime for server-rendered
// HTML.
//
// A Runtime owns one document. It reads the directive attributes the
// server left in the markup, binds them to namespaced reactive stores and
// keeps the document in sync as state changes. Client navigation fetches
// other pages and patches their router regions in place, so the DOM nodes
// and client-side context of everything that did not change survive.
//
//	rt, err := islands.ParseString(page, islands.WithURL(u))
//	if err != nil {
//	    return err
//	}
//	rt.Store("shop", store.Definition{
//	    Actions: map[string]store.Action{
//	        "add": func(ctx context.Context, _ ...any) any {
//	            state := islands.GetContext(ctx)
//	            ...
//	        },
//	    },
//	})
//	rt.Hydrate(ctx)
//
// All methods must be called from one goroutine, the runtime thread.
// Asynchronous work started by actions or navigations is handed back to
// that goroutine through Flush, Wait or Run.
package islands

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/directive"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/hydrate"
	"github.com/vango-dev/islands/pkg/metrics"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/router"
	"github.com/vango-dev/islands/pkg/scope"
	"github.com/vango-dev/islands/pkg/store"
)

// Runtime is the interactivity runtime of one document.
type Runtime struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	doc        *dom.Document
	sched      *reactive.Scheduler
	store      *store.Registry
	directives *directive.Registry
	engine     *directive.Engine
	hydrator   *hydrate.Hydrator
	router     *router.Router

	hydrated bool
}

// New creates a runtime over doc.
func New(doc *dom.Document, opts ...Option) *Runtime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Prefix == "" {
		o.Prefix = directive.DefaultPrefix
	}

	r := &Runtime{
		opts:   o,
		logger: o.Logger.With("component", "runtime"),
		doc:    doc,
	}
	if o.Registerer != nil {
		r.metrics = metrics.New(metrics.WithRegistry(o.Registerer))
	}

	// The engine does not exist yet when the scheduler is built, but
	// overflows only happen during a flush.
	r.sched = reactive.NewScheduler(
		reactive.WithBudget(reactive.NewBudget(reactive.BudgetConfig{MaxRunsPerJob: o.MaxEffectRuns})),
		reactive.OnOverflow(func(j reactive.Job) { r.engine.Overflow(j) }),
		reactive.OnFlush(r.metrics.Flush),
	)
	r.store = store.NewRegistry(store.WithWarn(r.Warn), store.WithLogger(o.Logger))
	r.directives = directive.NewRegistry()
	directive.RegisterBuiltins(r.directives)
	r.engine = directive.New(doc, r.directives, r.store, r.sched,
		directive.WithPrefix(o.Prefix),
		directive.WithWarn(r.Warn),
		directive.WithLogger(o.Logger),
	)

	hopts := []hydrate.Option{hydrate.WithLogger(o.Logger), hydrate.WithMetrics(r.metrics)}
	ropts := []router.Option{
		router.WithWarn(r.Warn),
		router.WithLogger(o.Logger),
		router.WithMetrics(r.metrics),
	}
	if o.Tracer != nil {
		hopts = append(hopts, hydrate.WithTracer(o.Tracer))
		ropts = append(ropts, router.WithTracer(o.Tracer))
	}
	if o.Fetcher != nil {
		ropts = append(ropts, router.WithFetcher(o.Fetcher))
	}
	if o.URL != nil {
		ropts = append(ropts, router.WithURL(o.URL))
	}
	if o.OnFullLoad != nil {
		ropts = append(ropts, router.WithFullLoad(o.OnFullLoad))
	}
	r.hydrator = hydrate.New(r.engine, hopts...)
	r.router = router.New(r.hydrator, r.store, r.sched, ropts...)
	return r
}

// Parse reads an HTML document and creates a runtime over it.
func Parse(rd io.Reader, opts ...Option) (*Runtime, error) {
	doc, err := dom.Parse(rd)
	if err != nil {
		return nil, err
	}
	return New(doc, opts...), nil
}

// ParseString is Parse for a string.
func ParseString(s string, opts ...Option) (*Runtime, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Document returns the live document.
func (r *Runtime) Document() *dom.Document { return r.doc }

// Scheduler returns the scheduler that runs effects and resumes
// asynchronous work.
func (r *Runtime) Scheduler() *reactive.Scheduler { return r.sched }

// Router returns the client-side router.
func (r *Runtime) Router() *router.Router { return r.router }

// Engine returns the directive engine.
func (r *Runtime) Engine() *directive.Engine { return r.engine }

// Prefix returns the directive attribute prefix.
func (r *Runtime) Prefix() string { return r.opts.Prefix }

// RegisterDirective adds or replaces a directive. It may be called at any
// time; elements already hydrated pick it up on the next flush.
func (r *Runtime) RegisterDirective(name string, cfg directive.Config) {
	r.directives.Register(name, cfg)
}

// Store merges a code-supplied definition into the namespace ns and
// returns it.
func (r *Runtime) Store(ns string, def store.Definition) *store.Namespace {
	return r.store.Define(ns, def)
}

// Namespace returns the store of ns, creating it on first use.
func (r *Runtime) Namespace(ns string) *store.Namespace {
	return r.store.Namespace(ns)
}

// Context returns ctx carrying the runtime, so that actions and the
// getters of this package can reach it.
func (r *Runtime) Context(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, runtimeKey{}, r)
	return scope.WithRunner(ctx, r.sched)
}

// Hydrate seeds the stores from the state blobs of the document, mounts
// every island and runs the first flush. A second call only picks up
// islands that were not mounted yet. It returns the number of island roots
// mounted.
func (r *Runtime) Hydrate(ctx context.Context) int {
	start := time.Now()
	if !r.hydrated {
		r.store.Seed(r.doc.Root)
		r.hydrated = true
	}
	n := r.hydrator.Hydrate(r.Context(ctx))
	r.sched.Flush()
	r.logger.Debug("hydrated",
		"islands", n,
		"elements", r.engine.Len(),
		"mutations", r.doc.Mutations(),
		"duration", time.Since(start),
	)
	return n
}

// Navigate loads href and patches its router regions into the document.
// The returned request is committed or discarded on a later flush.
func (r *Runtime) Navigate(ctx context.Context, href string, opts ...router.NavigateOption) (*router.Request, error) {
	return r.router.Navigate(r.Context(ctx), href, opts...)
}

// Back steps back in the router history. It returns nil at the start.
func (r *Runtime) Back(ctx context.Context) *router.Request {
	return r.router.Back(r.Context(ctx))
}

// Forward steps forward in the router history. It returns nil at the end.
func (r *Runtime) Forward(ctx context.Context) *router.Request {
	return r.router.Forward(r.Context(ctx))
}

// InterceptLinks routes clicks on same-origin anchors through Navigate.
// The returned function stops it.
func (r *Runtime) InterceptLinks(ctx context.Context) func() {
	return r.router.InterceptLinks(r.Context(ctx))
}

// Click dispatches a click on n and flushes. It reports whether no
// handler prevented the default action.
func (r *Runtime) Click(n *html.Node) bool {
	ok := r.doc.Click(n)
	r.sched.Flush()
	return ok
}

// Flush runs posted tasks and pending effects until the runtime is idle.
func (r *Runtime) Flush() { r.sched.Flush() }

// Wait flushes until no asynchronous work is outstanding or ctx is done.
func (r *Runtime) Wait(ctx context.Context) error { return r.sched.Wait(ctx) }

// Run flushes whenever work arrives until ctx is done.
func (r *Runtime) Run(ctx context.Context) error { return r.sched.Run(ctx) }

// URL returns the current location.
func (r *Runtime) URL() *url.URL { return r.router.URL() }

// Render serializes the document.
func (r *Runtime) Render() string { return r.doc.Render() }

// Warn reports a warning. Warnings never abort hydration.
func (r *Runtime) Warn(e *errors.Error) {
	attrs := []any{"code", e.Code}
	if e.Namespace != "" {
		attrs = append(attrs, "namespace", e.Namespace)
	}
	if e.Directive != "" {
		attrs = append(attrs, "directive", e.Directive)
	}
	if e.Element != "" {
		attrs = append(attrs, "element", e.Element)
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}
	if e.Wrapped != nil {
		attrs = append(attrs, "error", e.Wrapped)
	}
	r.logger.Warn(e.Message, attrs...)
	r.metrics.Warning(e.Code, e.Directive)
	if r.opts.OnWarning != nil {
		r.opts.OnWarning(e)
	}
}

// Reset unmounts the document and drops every namespace. Directives stay
// registered.
func (r *Runtime) Reset() {
	r.engine.Unmount(r.doc.Root)
	r.store.Reset()
	r.hydrated = false
}
