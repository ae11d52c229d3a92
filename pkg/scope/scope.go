// Package scope carries the directive scope through context.Context.
//
// A Scope names the element a directive, action or event callback runs
// for, the context layers in effect there and the store namespace. It is
// passed explicitly: every evaluator receives a ctx holding its scope, and
// Await resumes asynchronous work with the very same ctx, so interleaved
// continuations never observe each other's element or context.
package scope

import (
	"context"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/pkg/ctxchain"
	"github.com/vango-dev/islands/pkg/reactive"
)

// Scope is the ambient information of one directive invocation.
type Scope struct {
	Element   *html.Node
	Contexts  ctxchain.Stack
	Namespace string
}

// Context returns the effective context view for ns, or for the scope's
// namespace when ns is empty. The result is nil when no layer is in scope.
func (s Scope) Context(ns string) *ctxchain.View {
	if ns == "" {
		ns = s.Namespace
	}
	l := s.Contexts.Layer(ns)
	if l == nil {
		return nil
	}
	return l.View()
}

// ServerContext is Context over the read-only server snapshots.
func (s Scope) ServerContext(ns string) *ctxchain.ServerView {
	if ns == "" {
		ns = s.Namespace
	}
	l := s.Contexts.Layer(ns)
	if l == nil {
		return nil
	}
	return l.ServerView()
}

type scopeKey struct{}

// With returns a ctx carrying s.
func With(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// From returns the scope carried by ctx, or the zero Scope.
func From(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithNamespace returns ctx with the scope's namespace replaced.
func WithNamespace(ctx context.Context, ns string) context.Context {
	s := From(ctx)
	s.Namespace = ns
	return With(ctx, s)
}

// GetElement returns the element of the current scope.
func GetElement(ctx context.Context) *html.Node {
	return From(ctx).Element
}

// GetContext returns the context view of the current scope. An optional
// namespace selects another namespace's chain.
func GetContext(ctx context.Context, ns ...string) *ctxchain.View {
	return From(ctx).Context(first(ns))
}

// GetServerContext returns the read-only server context of the current
// scope.
func GetServerContext(ctx context.Context, ns ...string) *ctxchain.ServerView {
	return From(ctx).ServerContext(first(ns))
}

func first(ns []string) string {
	if len(ns) > 0 {
		return ns[0]
	}
	return ""
}

// Runner executes off-thread work and hands its continuation back to the
// runtime thread. *reactive.Scheduler implements it.
type Runner interface {
	Go(work func() func())
}

type runnerKey struct{}

// WithRunner returns a ctx whose Await calls go through r.
func WithRunner(ctx context.Context, r Runner) context.Context {
	return context.WithValue(ctx, runnerKey{}, r)
}

var _ Runner = (*reactive.Scheduler)(nil)

// Await runs work off the runtime thread and then calls resume on the
// runtime thread with a ctx carrying exactly the scope of ctx. Without a
// runner in ctx both run synchronously.
func Await(ctx context.Context, work func(context.Context) (any, error), resume func(context.Context, any, error)) {
	resumeCtx := reactive.Untracked(ctx)
	r, _ := ctx.Value(runnerKey{}).(Runner)
	if r == nil {
		v, err := work(resumeCtx)
		if resume != nil {
			resume(resumeCtx, v, err)
		}
		return
	}
	r.Go(func() func() {
		v, err := work(resumeCtx)
		if resume == nil {
			return nil
		}
		return func() { resume(resumeCtx, v, err) }
	})
}
