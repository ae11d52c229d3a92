package islands

import (
	"context"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/pkg/ctxchain"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/scope"
)

type runtimeKey struct{}

// FromContext returns the runtime whose actions or directives run with
// ctx, or nil.
func FromContext(ctx context.Context) *Runtime {
	r, _ := ctx.Value(runtimeKey{}).(*Runtime)
	return r
}

// GetElement returns the element the current directive, action or
// callback runs for.
func GetElement(ctx context.Context) *html.Node {
	return scope.GetElement(ctx)
}

// GetContext returns the context of the current element. An optional
// namespace selects another namespace's context. Writes through the view
// are reactive.
func GetContext(ctx context.Context, ns ...string) *ctxchain.View {
	return scope.GetContext(ctx, ns...)
}

// GetServerContext returns the context the server rendered for the
// current element. It is read-only and changes only on navigation.
func GetServerContext(ctx context.Context, ns ...string) *ctxchain.ServerView {
	return scope.GetServerContext(ctx, ns...)
}

// GetServerState returns the read-only state last delivered by the server
// for the current namespace, or for ns. It is nil outside a runtime.
func GetServerState(ctx context.Context, ns ...string) *reactive.Object {
	r := FromContext(ctx)
	if r == nil {
		return nil
	}
	return r.store.Namespace(namespaceOf(ctx, ns)).Server
}

// GetConfig returns the read-only configuration of the current namespace,
// or of ns. It is nil outside a runtime.
func GetConfig(ctx context.Context, ns ...string) *reactive.Object {
	r := FromContext(ctx)
	if r == nil {
		return nil
	}
	return r.store.Namespace(namespaceOf(ctx, ns)).Config
}

func namespaceOf(ctx context.Context, ns []string) string {
	if len(ns) > 0 && ns[0] != "" {
		return ns[0]
	}
	return scope.From(ctx).Namespace
}
