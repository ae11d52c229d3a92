package reactive

import (
	"context"
	"sort"
)

// Array is an observable ordered list. Any structural or element change
// notifies every reader of the array.
type Array struct {
	id       uint64
	vals     []any
	dep      dep
	readOnly bool
}

// NewArray returns an empty Array.
func NewArray(items ...any) *Array {
	a := &Array{id: NextID()}
	for _, item := range items {
		a.vals = append(a.vals, Wrap(item))
	}
	return a
}

// ID returns the array's identity.
func (a *Array) ID() uint64 { return a.id }

// Len returns the length, tracking the array.
func (a *Array) Len(ctx context.Context) int {
	a.dep.track(ctx)
	return len(a.vals)
}

// Index returns item i (nil when out of range), tracking the array.
func (a *Array) Index(ctx context.Context, i int) any {
	a.dep.track(ctx)
	if i < 0 || i >= len(a.vals) {
		return nil
	}
	return a.vals[i]
}

// Items returns a copy of the items, tracking the array.
func (a *Array) Items(ctx context.Context) []any {
	a.dep.track(ctx)
	out := make([]any, len(a.vals))
	copy(out, a.vals)
	return out
}

// Set replaces item i, growing the array with nils when needed.
func (a *Array) Set(i int, v any) error {
	if a.readOnly {
		return ErrReadOnly
	}
	if i < 0 {
		return nil
	}
	w := Wrap(v)
	for len(a.vals) <= i {
		a.vals = append(a.vals, nil)
	}
	if same(a.vals[i], w) {
		return nil
	}
	a.vals[i] = w
	a.dep.notify()
	return nil
}

// Push appends items.
func (a *Array) Push(items ...any) error {
	if a.readOnly {
		return ErrReadOnly
	}
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		a.vals = append(a.vals, Wrap(item))
	}
	a.dep.notify()
	return nil
}

// Splice removes deleteCount items at start and inserts items there,
// returning the removed items.
func (a *Array) Splice(start, deleteCount int, items ...any) ([]any, error) {
	if a.readOnly {
		return nil, ErrReadOnly
	}
	if start < 0 {
		start = 0
	}
	if start > len(a.vals) {
		start = len(a.vals)
	}
	end := start + deleteCount
	if end > len(a.vals) {
		end = len(a.vals)
	}
	removed := append([]any(nil), a.vals[start:end]...)
	inserted := make([]any, len(items))
	for i, item := range items {
		inserted[i] = Wrap(item)
	}
	rest := append(inserted, a.vals[end:]...)
	a.vals = append(a.vals[:start], rest...)
	if len(removed) > 0 || len(inserted) > 0 {
		a.dep.notify()
	}
	return removed, nil
}

// Snapshot returns a deep plain copy.
func (a *Array) Snapshot() []any {
	out := make([]any, len(a.vals))
	for i, v := range a.vals {
		out[i] = Plain(v)
	}
	return out
}

func sortStrings(s []string) { sort.Strings(s) }
