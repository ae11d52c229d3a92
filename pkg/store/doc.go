// Package store holds the namespaced stores of the islands runtime.
//
// Each namespace has observable State, Derived getters memoized per
// element, Actions and Callbacks, a read-only snapshot of the state last
// delivered by the server, and read-only Config. Namespaces are created on
// first reference and are merged, never discarded, when new data arrives.
//
//	reg := store.NewRegistry()
//	reg.Define("counter", store.Definition{
//	    State: map[string]any{"count": 0},
//	    Derived: map[string]store.Derived{
//	        "double": func(ctx context.Context) any {
//	            ns := reg.Namespace("counter")
//	            return ns.State.Get(ctx, "count").(float64) * 2
//	        },
//	    },
//	    Actions: map[string]store.Action{
//	        "increment": func(ctx context.Context, args ...any) any { ... },
//	    },
//	})
package store
