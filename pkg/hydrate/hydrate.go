// Package hydrate finds the islands of a document and mounts them on a
// directive engine.
//
// An island is an element carrying data-wp-interactive. Islands nested in
// another island are hydrated within the outer pass. The inner blocks of an
// isolated island are skipped by the outer pass and their islands become
// roots of their own.
package hydrate

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/islands/pkg/directive"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/metrics"
)

const tracerName = "islands/hydrate"

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hydrator) { h.logger = l }
}

// WithTracer sets the tracer used for hydration spans.
func WithTracer(t trace.Tracer) Option {
	return func(h *Hydrator) { h.tracer = t }
}

// WithMetrics sets the collectors hydrated islands are counted on.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hydrator) { h.metrics = m }
}

// Hydrator mounts islands on an engine.
type Hydrator struct {
	engine  *directive.Engine
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

// New creates a Hydrator over engine.
func New(engine *directive.Engine, opts ...Option) *Hydrator {
	h := &Hydrator{
		engine: engine,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hydrate")
	return h
}

// Engine returns the engine islands are mounted on.
func (h *Hydrator) Engine() *directive.Engine { return h.engine }

// Hydrate mounts every island of the document that is not hydrated yet,
// in document order, and returns the number of island roots mounted.
func (h *Hydrator) Hydrate(ctx context.Context) int {
	return h.hydrateWithin(ctx, h.engine.Document().Root, "hydrate")
}

// MountRegion mounts a router region after it was patched: the region's
// own bindings and every island inside it.
func (h *Hydrator) MountRegion(ctx context.Context, region *html.Node) int {
	n := h.engine.Mount(ctx, region)
	h.hydrateWithin(ctx, region, "mount_region")
	return n
}

// Unmount tears down every element below n (inclusive) and returns how
// many were unmounted.
func (h *Hydrator) Unmount(n *html.Node) int {
	return h.engine.Unmount(n)
}

// Islands returns the island roots below root in document order: islands
// not contained in another island's pass. Ignored subtrees and template
// content are never scanned.
func (h *Hydrator) Islands(root *html.Node) []*html.Node {
	prefix := h.engine.Prefix()
	var out []*html.Node
	var visit func(n *html.Node, inIsland, isolated bool)
	visit = func(n *html.Node, inIsland, isolated bool) {
		if n.Type == html.ElementNode {
			if n != root && (n.DataAtom == atom.Template || dom.HasAttr(n, prefix+"ignore")) {
				return
			}
			if isl, ok := directive.InteractiveOf(prefix, n); ok {
				if !inIsland {
					out = append(out, n)
				}
				inIsland, isolated = true, isl.Isolated
			} else if isolated && dom.HasAttr(n, prefix+"inner-blocks") {
				inIsland, isolated = false, false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, inIsland, isolated)
		}
	}
	visit(root, false, false)
	return out
}

func (h *Hydrator) hydrateWithin(ctx context.Context, root *html.Node, span string) int {
	ctx, sp := h.tracer.Start(ctx, "islands."+span)
	defer sp.End()

	roots, elements := 0, 0
	for _, n := range h.Islands(root) {
		if h.engine.Hydrated(n) {
			continue
		}
		elements += h.engine.Mount(ctx, n)
		roots++
	}
	sp.SetAttributes(
		attribute.Int("islands.roots", roots),
		attribute.Int("islands.elements", elements),
	)
	h.metrics.IslandsHydrated(roots)
	if roots > 0 {
		h.logger.Debug("hydrated", "islands", roots, "elements", elements)
	}
	return roots
}
