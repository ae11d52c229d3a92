package store

import (
	"context"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/scope"
)

// Action is a store action or callback. It runs with the namespace set in
// the scope of ctx; asynchronous work goes through scope.Await.
type Action func(ctx context.Context, args ...any) any

// Derived computes a derived state value. Results are memoized per element
// and recomputed when anything they read changes.
type Derived func(ctx context.Context) any

// Namespace is the store of one namespace.
type Namespace struct {
	Name string

	// State is the client-side state.
	State *reactive.Object

	// Server is the read-only state last delivered by the server.
	Server *reactive.Object

	// Config is read-only per-namespace configuration.
	Config *reactive.Object

	Actions   map[string]Action
	Callbacks map[string]Action

	derived map[string]Derived
	memos   map[memoKey]*reactive.Memo
	view    *StateView
	warn    func(*errors.Error)
}

type memoKey struct {
	name string
	el   *html.Node
}

func newNamespace(name string, warn func(*errors.Error)) *Namespace {
	ns := &Namespace{
		Name:      name,
		State:     reactive.NewObject(),
		Server:    reactive.NewReadOnly(),
		Config:    reactive.NewReadOnly(),
		Actions:   make(map[string]Action),
		Callbacks: make(map[string]Action),
		derived:   make(map[string]Derived),
		memos:     make(map[memoKey]*reactive.Memo),
		warn:      warn,
	}
	ns.view = &StateView{ns: ns, obj: ns.State}
	return ns
}

// StateView returns the state with derived getters overlaid.
func (ns *Namespace) StateView() *StateView { return ns.view }

// Derived returns the value of a derived getter for the element in the
// scope of ctx.
func (ns *Namespace) Derived(ctx context.Context, name string) (any, bool) {
	fn, ok := ns.derived[name]
	if !ok {
		return nil, false
	}
	key := memoKey{name: name, el: scope.GetElement(ctx)}
	m, ok := ns.memos[key]
	if !ok {
		m = reactive.NewMemo(func(ctx context.Context) any {
			return fn(scope.WithNamespace(ctx, ns.Name))
		})
		ns.memos[key] = m
	}
	return m.Get(ctx), true
}

// Release drops the derived memos held for el.
func (ns *Namespace) Release(el *html.Node) {
	for k, m := range ns.memos {
		if k.el == el {
			m.Dispose()
			delete(ns.memos, k)
		}
	}
}

// Call runs an action. Unknown actions warn E107 and return nil.
func (ns *Namespace) Call(ctx context.Context, name string, args ...any) any {
	fn, ok := ns.Actions[name]
	if !ok {
		ns.report(errors.New("E107").WithNamespace(ns.Name).WithDetail("unknown action " + name))
		return nil
	}
	return fn(scope.WithNamespace(ctx, ns.Name), args...)
}

// ReplaceState swaps the state for v. Anything but an object is rejected
// with warning E102 and the prior state is kept.
func (ns *Namespace) ReplaceState(v any) bool {
	var keys []string
	var get func(string) any
	switch t := v.(type) {
	case *reactive.Object:
		keys = t.Keys(reactive.Untracked(context.Background()))
		get = func(k string) any { val, _ := t.Peek(k); return val }
	case map[string]any:
		for k := range t {
			keys = append(keys, k)
		}
		get = func(k string) any { return t[k] }
	default:
		ns.report(errors.New("E102").WithNamespace(ns.Name))
		return false
	}

	keep := make(map[string]bool, len(keys))
	for _, k := range keys {
		keep[k] = true
	}
	for _, k := range ns.State.Keys(reactive.Untracked(context.Background())) {
		if !keep[k] {
			ns.State.Delete(k)
		}
	}
	for _, k := range keys {
		ns.State.Set(k, get(k))
	}
	return true
}

func (ns *Namespace) report(e *errors.Error) {
	if ns.warn != nil {
		ns.warn(e)
	}
}

// StateView reads state with derived getters taking precedence.
type StateView struct {
	ns  *Namespace
	obj *reactive.Object
}

// Get implements path traversal for expressions.
func (v *StateView) Get(ctx context.Context, key string) any {
	if val, ok := v.ns.Derived(ctx, key); ok {
		return val
	}
	return v.obj.Get(ctx, key)
}

// Set writes to the underlying state.
func (v *StateView) Set(key string, value any) error {
	if _, ok := v.ns.derived[key]; ok {
		v.ns.report(errors.New("E108").WithNamespace(v.ns.Name).WithDetail("derived state " + key + " cannot be assigned"))
		return reactive.ErrReadOnly
	}
	return v.obj.Set(key, value)
}
