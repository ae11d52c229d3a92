package router

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/directive"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/hydrate"
	"github.com/vango-dev/islands/pkg/metrics"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/store"
	"github.com/vango-dev/islands/pkg/vdom"
)

// Namespace is the store namespace mirroring the router state.
const Namespace = "core/router"

const tracerName = "islands/router"

// Option configures a Router.
type Option func(*Router)

// WithFetcher sets how pages are loaded. Default: an HTTPFetcher.
func WithFetcher(f Fetcher) Option {
	return func(r *Router) { r.fetcher = f }
}

// WithURL sets the location of the initial document.
func WithURL(u *url.URL) Option {
	return func(r *Router) { r.location = u }
}

// WithFullLoad sets the fallback for navigations that cannot be done in
// place, typically a real page load.
func WithFullLoad(fn func(*url.URL)) Option {
	return func(r *Router) { r.onFullLoad = fn }
}

// WithWarn routes coded warnings to fn.
func WithWarn(fn func(*errors.Error)) Option {
	return func(r *Router) { r.warnFn = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithTracer sets the tracer used for navigation spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// WithMetrics sets the collectors navigations are recorded on.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// Router performs client-side navigations: it fetches a page, patches the
// router regions of the live document to match it and re-mounts them.
//
// The router is idle until a navigation starts and busy while any is in
// flight. Every navigation gets a higher id than the previous one; a page
// reaches the document only when no higher id has been committed before
// it resolved. Fetches run off the runtime thread; everything else runs on
// it. All methods must be called on the runtime thread.
type Router struct {
	doc      *dom.Document
	engine   *directive.Engine
	hydrator *hydrate.Hydrator
	store    *store.Registry
	sched    *reactive.Scheduler

	fetcher    Fetcher
	onFullLoad func(*url.URL)
	warnFn     func(*errors.Error)
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *metrics.Metrics

	location *url.URL
	history  []*url.URL
	index    int

	seq       uint64
	committed uint64
	busy      int
	started   bool
	finished  bool

	prefetched map[string][]byte
}

// New creates a router over the hydrator's document.
func New(h *hydrate.Hydrator, st *store.Registry, sched *reactive.Scheduler, opts ...Option) *Router {
	r := &Router{
		doc:        h.Engine().Document(),
		engine:     h.Engine(),
		hydrator:   h,
		store:      st,
		sched:      sched,
		fetcher:    &HTTPFetcher{},
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		prefetched: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.location == nil {
		r.location = &url.URL{Path: "/"}
	}
	r.logger = r.logger.With("component", "router")
	r.history = []*url.URL{r.location}
	r.syncState()
	return r
}

// URL returns the current location.
func (r *Router) URL() *url.URL { return r.location }

// Busy returns the number of navigations in flight.
func (r *Router) Busy() int { return r.busy }

// Committed returns the id of the committed navigation, 0 before any.
func (r *Router) Committed() uint64 { return r.committed }

// Navigate starts a navigation to href, resolved against the current
// location. It returns once the fetch is under way; the page commits on a
// later flush. Cross-origin targets fail with ErrNotSameOrigin.
func (r *Router) Navigate(ctx context.Context, href string, opts ...NavigateOption) (*Request, error) {
	u, err := Resolve(r.location, href)
	if err != nil {
		return nil, err
	}
	var o NavigateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return r.start(ctx, buildURL(u, o), o, -1), nil
}

// Back navigates to the previous history entry. It returns nil at the
// start of the history.
func (r *Router) Back(ctx context.Context) *Request {
	if r.index == 0 {
		return nil
	}
	return r.start(ctx, r.history[r.index-1], NavigateOptions{history: true}, r.index-1)
}

// Forward navigates to the next history entry. It returns nil at the end
// of the history.
func (r *Router) Forward(ctx context.Context) *Request {
	if r.index >= len(r.history)-1 {
		return nil
	}
	return r.start(ctx, r.history[r.index+1], NavigateOptions{history: true}, r.index+1)
}

// Prefetch loads href in the background so a later navigation to it does
// not wait for the network.
func (r *Router) Prefetch(ctx context.Context, href string) error {
	u, err := Resolve(r.location, href)
	if err != nil {
		return err
	}
	key := cacheKey(u)
	if _, ok := r.prefetched[key]; ok {
		return nil
	}
	fetcher, start := r.fetcher, time.Now()
	r.sched.Go(func() func() {
		body, err := fetcher.Fetch(ctx, u)
		return func() {
			if err != nil {
				r.logger.Debug("prefetch failed", "url", u.String(), "error", err)
				return
			}
			r.prefetched[key] = body
			r.metrics.Navigation(metrics.ResultPrefetched, time.Since(start))
		}
	})
	return nil
}

// InterceptLinks turns clicks on same-origin anchors into navigations.
// It returns a function that stops intercepting.
func (r *Router) InterceptLinks(ctx context.Context) func() {
	return r.doc.AddEventListener(r.doc.Root, "click", func(e *dom.Event) {
		if e.DefaultPrevented() {
			return
		}
		a := anchorOf(e.Target)
		if a == nil {
			return
		}
		if target, ok := dom.Attr(a, "target"); ok && target != "" && target != "_self" {
			return
		}
		if dom.HasAttr(a, "download") {
			return
		}
		href, _ := dom.Attr(a, "href")
		u, err := Resolve(r.location, href)
		if err != nil {
			return
		}
		if u.Path == r.location.Path && u.RawQuery == r.location.RawQuery {
			if ref, _ := url.Parse(href); ref != nil && ref.Fragment != "" {
				return
			}
		}
		e.PreventDefault()
		r.start(ctx, u, NavigateOptions{}, -1)
	})
}

func anchorOf(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.A && dom.HasAttr(n, "href") {
			return n
		}
	}
	return nil
}

// start allocates a request and fetches its page off-thread. index is the
// history entry the request moves to, or -1.
func (r *Router) start(ctx context.Context, u *url.URL, o NavigateOptions, index int) *Request {
	r.seq++
	req := &Request{ID: r.seq, URL: u, Options: o}
	r.busy++
	r.started, r.finished = true, false
	r.syncState()

	ctx, span := r.tracer.Start(ctx, "islands.navigate", trace.WithAttributes(
		attribute.String("islands.url", u.String()),
		attribute.Int64("islands.request", int64(req.ID)),
	))

	body, cached := r.prefetched[cacheKey(u)]
	if o.Force {
		cached = false
	}
	fetcher, prefix, began := r.fetcher, r.engine.Prefix(), time.Now()
	r.logger.Debug("navigation started", "id", req.ID, "url", u.String(), "prefetched", cached)

	r.sched.Go(func() func() {
		var err error
		if !cached {
			body, err = fetcher.Fetch(ctx, u)
		}
		var page *Page
		if err == nil {
			page, err = ParsePage(u, body, prefix)
		}
		return func() {
			defer span.End()
			r.resolve(ctx, req, page, err, index, began, span)
		}
	})
	return req
}

type regionPatch struct {
	id      string
	live    *html.Node
	next    *vdom.VNode
	patches []vdom.Patch
}

// resolve settles a request on the runtime thread.
func (r *Router) resolve(ctx context.Context, req *Request, page *Page, err error, index int, began time.Time, span trace.Span) {
	r.busy--
	if r.busy == 0 {
		r.finished = true
	}
	defer r.syncState()

	if err != nil {
		req.Status, req.Err = StatusFailed, err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.Navigation(metrics.ResultFailed, time.Since(began))
		if req.ID <= r.committed {
			return
		}
		r.warn(errors.New("E106").WithDetail(req.URL.String()).Wrap(err))
		if req.ID == r.seq && r.onFullLoad != nil {
			r.onFullLoad(req.URL)
		}
		return
	}

	diffs := r.diff(page)
	if req.ID <= r.committed {
		req.Status = StatusStale
		span.SetAttributes(attribute.String("islands.result", metrics.ResultStale))
		r.metrics.Navigation(metrics.ResultStale, time.Since(began))
		r.logger.Debug("stale navigation discarded", "id", req.ID, "committed", r.committed)
		return
	}

	r.committed = req.ID
	r.commit(ctx, req, page, diffs, index)
	req.Status = StatusCommitted
	span.SetAttributes(
		attribute.String("islands.result", metrics.ResultCommitted),
		attribute.Int("islands.regions", len(req.Regions)),
	)
	r.metrics.Navigation(metrics.ResultCommitted, time.Since(began))
	r.logger.Info("navigated", "id", req.ID, "url", req.URL.String(), "regions", len(req.Regions))
}

// diff computes the patches turning each live region into its counterpart
// in page. Regions missing from page are left alone.
func (r *Router) diff(page *Page) []regionPatch {
	var out []regionPatch
	for _, live := range r.regions() {
		val, _ := dom.Attr(live, r.engine.Prefix()+"router-region")
		id := regionID(val)
		next, ok := page.Regions[id]
		if !ok {
			continue
		}
		out = append(out, regionPatch{
			id:      id,
			live:    live,
			next:    next,
			patches: vdom.Diff(vdom.Build(live), next),
		})
	}
	return out
}

// regions returns the outermost router regions of the live document.
func (r *Router) regions() []*html.Node {
	attr := r.engine.Prefix() + "router-region"
	var out []*html.Node
	dom.Walk(r.doc.Root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && dom.HasAttr(n, attr) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func (r *Router) commit(ctx context.Context, req *Request, page *Page, diffs []regionPatch, index int) {
	switch {
	case index >= 0:
		r.index = index
	case req.Options.Replace:
		r.history[r.index] = req.URL
	default:
		r.history = append(r.history[:r.index+1], req.URL)
		r.index++
	}
	r.location = req.URL

	r.store.Apply(r.store.Extract(page.Root))
	r.updateHead(page)

	r.engine.Retaining(func() {
		for _, d := range diffs {
			r.hydrator.Unmount(d.live)
			vdom.Apply(r.doc, d.patches)
			r.hydrator.MountRegion(ctx, d.next.Node)
			req.Regions = append(req.Regions, d.id)
		}
	})
	sort.Strings(req.Regions)
}

// updateHead keeps the head element: the title is updated in place and
// stylesheets the page adds are appended.
func (r *Router) updateHead(page *Page) {
	head := r.doc.Head()
	if head == nil {
		return
	}
	if page.HasTitle {
		title := dom.FindFirst(head, dom.IsElement(atom.Title))
		if title == nil {
			title = dom.Element("title")
			r.doc.AppendChild(head, title)
		}
		r.doc.SetText(title, page.Title)
	}
	have := liveStyles(head)
	for _, s := range page.Styles {
		href, _ := s.Attr("href")
		key := styleKey(s.Tag, href, textOf(s))
		if have[key] {
			continue
		}
		have[key] = true
		r.doc.AppendChild(head, vdom.Create(s))
	}
}

// syncState mirrors the router into its store namespace.
func (r *Router) syncState() {
	st := r.store.Namespace(Namespace).State
	st.Set("url", r.location.String())
	st.SetPath("navigation.busy", r.busy > 0)
	st.SetPath("navigation.hasStarted", r.started)
	st.SetPath("navigation.hasFinished", r.finished)
	r.metrics.RouterBusy(r.busy)
}

func (r *Router) warn(e *errors.Error) {
	if r.warnFn != nil {
		r.warnFn(e)
		return
	}
	r.logger.Warn(e.Message, "code", e.Code, "detail", e.Detail)
}
