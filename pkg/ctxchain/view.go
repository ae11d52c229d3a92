package ctxchain

import (
	"context"

	"github.com/vango-dev/islands/pkg/reactive"
)

// View is the effective context seen from a layer at a nested path.
// A nil *View reads as empty.
type View struct {
	layer *Layer
	path  []string
}

// Layer returns the layer the view is anchored at.
func (v *View) Layer() *Layer {
	if v == nil {
		return nil
	}
	return v.layer
}

// Get returns key from the first layer, starting at the view's own, that
// owns it at the view's path. Objects come back as chained views.
func (v *View) Get(ctx context.Context, key string) any {
	if v == nil {
		return nil
	}
	for l := v.layer; l != nil; l = l.Parent {
		obj := objectAt(ctx, l.Own, v.path)
		if obj == nil || !obj.Has(ctx, key) {
			continue
		}
		val := obj.Get(ctx, key)
		if _, ok := val.(*reactive.Object); ok {
			return v.layer.viewAt(append(v.path[:len(v.path):len(v.path)], key))
		}
		return val
	}
	return nil
}

// Has reports whether any layer in the chain owns key.
func (v *View) Has(ctx context.Context, key string) bool {
	if v == nil {
		return false
	}
	for l := v.layer; l != nil; l = l.Parent {
		if obj := objectAt(ctx, l.Own, v.path); obj != nil && obj.Has(ctx, key) {
			return true
		}
	}
	return false
}

// Keys returns the union of keys, own layer first.
func (v *View) Keys(ctx context.Context) []string {
	if v == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for l := v.layer; l != nil; l = l.Parent {
		obj := objectAt(ctx, l.Own, v.path)
		if obj == nil {
			continue
		}
		for _, k := range obj.Keys(ctx) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// Set assigns key in the nearest layer that owns it at the view's path,
// or in the view's own layer when none does.
func (v *View) Set(key string, value any) error {
	if v == nil {
		return nil
	}
	ctx := reactive.Untracked(context.Background())
	for l := v.layer; l != nil; l = l.Parent {
		if obj := objectAt(ctx, l.Own, v.path); obj != nil && obj.Has(ctx, key) {
			return obj.Set(key, value)
		}
	}
	cur := v.layer.Own
	for _, seg := range v.path {
		next, _ := cur.Get(ctx, seg).(*reactive.Object)
		if next == nil {
			next = reactive.NewObject()
			if err := cur.Set(seg, next); err != nil {
				return err
			}
		}
		cur = next
	}
	return cur.Set(key, value)
}

// Snapshot flattens the view into plain values.
func (v *View) Snapshot(ctx context.Context) map[string]any {
	out := make(map[string]any)
	for _, k := range v.Keys(ctx) {
		val := v.Get(ctx, k)
		if sub, ok := val.(*View); ok {
			out[k] = sub.Snapshot(ctx)
			continue
		}
		out[k] = reactive.Plain(val)
	}
	return out
}

// ServerView is the read-only chain over server snapshots.
type ServerView struct {
	layer *Layer
	path  []string
}

// Get returns key from the nearest server snapshot owning it.
func (v *ServerView) Get(ctx context.Context, key string) any {
	if v == nil {
		return nil
	}
	for l := v.layer; l != nil; l = l.Parent {
		obj := objectAt(ctx, l.Server, v.path)
		if obj == nil || !obj.Has(ctx, key) {
			continue
		}
		val := obj.Get(ctx, key)
		if _, ok := val.(*reactive.Object); ok {
			return v.layer.serverViewAt(append(v.path[:len(v.path):len(v.path)], key))
		}
		return val
	}
	return nil
}

// Set always fails: server snapshots are read-only.
func (v *ServerView) Set(string, any) error { return reactive.ErrReadOnly }

// Snapshot flattens the view into plain values.
func (v *ServerView) Snapshot(ctx context.Context) map[string]any {
	out := make(map[string]any)
	if v == nil {
		return out
	}
	seen := make(map[string]bool)
	for l := v.layer; l != nil; l = l.Parent {
		obj := objectAt(ctx, l.Server, v.path)
		if obj == nil {
			continue
		}
		for _, k := range obj.Keys(ctx) {
			if seen[k] {
				continue
			}
			seen[k] = true
			val := v.Get(ctx, k)
			if sub, ok := val.(*ServerView); ok {
				out[k] = sub.Snapshot(ctx)
			} else {
				out[k] = reactive.Plain(val)
			}
		}
	}
	return out
}
