package ctxchain

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/pkg/reactive"
)

// Layer is the context owned by one element for one namespace.
type Layer struct {
	Owner     *html.Node
	Namespace string

	// Own holds the layer's client-side values.
	Own *reactive.Object

	// Server is a read-only snapshot of the values last delivered by the
	// server for this layer.
	Server *reactive.Object

	Parent *Layer

	views       map[string]*View
	serverViews map[string]*ServerView
}

// NewLayer creates a layer seeded from value, which should be an object.
// The server snapshot starts as a frozen copy of value.
func NewLayer(owner *html.Node, ns string, value any, parent *Layer) *Layer {
	l := &Layer{
		Owner:     owner,
		Namespace: ns,
		Own:       reactive.NewObject(),
		Server:    reactive.NewReadOnly(),
		Parent:    parent,
	}
	l.Merge(value)
	return l
}

// Merge folds a re-evaluated context value into the layer. Keys already
// present on the client keep their values; the server snapshot takes the
// new values.
func (l *Layer) Merge(value any) {
	reactive.Merge(l.Own, value, false)
	reactive.Merge(l.Server, value, true)
}

// View returns the memoized effective view at the layer's root.
func (l *Layer) View() *View {
	return l.viewAt(nil)
}

// ServerView returns the memoized read-only server view.
func (l *Layer) ServerView() *ServerView {
	return l.serverViewAt(nil)
}

func pathKey(path []string) string { return strings.Join(path, "\x00") }

func (l *Layer) viewAt(path []string) *View {
	if l.views == nil {
		l.views = make(map[string]*View)
	}
	k := pathKey(path)
	if v, ok := l.views[k]; ok {
		return v
	}
	v := &View{layer: l, path: append([]string(nil), path...)}
	l.views[k] = v
	return v
}

func (l *Layer) serverViewAt(path []string) *ServerView {
	if l.serverViews == nil {
		l.serverViews = make(map[string]*ServerView)
	}
	k := pathKey(path)
	if v, ok := l.serverViews[k]; ok {
		return v
	}
	v := &ServerView{layer: l, path: append([]string(nil), path...)}
	l.serverViews[k] = v
	return v
}

// objectAt walks path from root, tracking each hop, and returns the object
// found there or nil.
func objectAt(ctx context.Context, root *reactive.Object, path []string) *reactive.Object {
	cur := root
	for _, seg := range path {
		next, _ := cur.Get(ctx, seg).(*reactive.Object)
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Stack maps namespaces to the innermost layer in scope. It is immutable:
// With returns a copy, so an element's stack is shared by reference with
// its descendants until one of them adds a layer.
type Stack struct {
	layers map[string]*Layer
}

// Layer returns the innermost layer for ns, or nil.
func (s Stack) Layer(ns string) *Layer {
	return s.layers[ns]
}

// With returns a copy of s with l as the innermost layer of its namespace.
func (s Stack) With(l *Layer) Stack {
	next := make(map[string]*Layer, len(s.layers)+1)
	for k, v := range s.layers {
		next[k] = v
	}
	next[l.Namespace] = l
	return Stack{layers: next}
}

// Namespaces returns the namespaces with a layer in scope.
func (s Stack) Namespaces() []string {
	out := make([]string, 0, len(s.layers))
	for ns := range s.layers {
		out = append(out, ns)
	}
	return out
}
