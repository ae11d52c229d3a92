package reactive

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
)

// ErrReadOnly is returned by writes to read-only containers.
var ErrReadOnly = errors.New("reactive: container is read-only")

// Object is an observable string-keyed container that keeps insertion order.
type Object struct {
	id       uint64
	keys     []string
	vals     map[string]any
	deps     map[string]*dep
	keysDep  dep
	readOnly bool
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{
		id:   NextID(),
		vals: make(map[string]any),
		deps: make(map[string]*dep),
	}
}

// NewReadOnly returns an empty Object that rejects writes.
// Merge still updates it, which is how snapshots are refreshed.
func NewReadOnly() *Object {
	o := NewObject()
	o.readOnly = true
	return o
}

// ObjectFrom wraps a plain map into a new Object.
func ObjectFrom(m map[string]any) *Object {
	o, _ := Wrap(m).(*Object)
	if o == nil {
		return NewObject()
	}
	return o
}

// ID returns the object's identity.
func (o *Object) ID() uint64 { return o.id }

// ReadOnly reports whether writes are rejected.
func (o *Object) ReadOnly() bool { return o.readOnly }

func (o *Object) depFor(key string) *dep {
	d, ok := o.deps[key]
	if !ok {
		d = &dep{}
		o.deps[key] = d
	}
	return d
}

// Get returns the value of key and subscribes the listener in ctx to it.
// Missing keys are tracked too, so a reader notices when the key appears.
func (o *Object) Get(ctx context.Context, key string) any {
	o.depFor(key).track(ctx)
	return o.vals[key]
}

// Has reports whether key is present, tracking key.
func (o *Object) Has(ctx context.Context, key string) bool {
	o.depFor(key).track(ctx)
	_, ok := o.vals[key]
	return ok
}

// Peek returns the value of key without tracking.
func (o *Object) Peek(key string) (any, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order, tracking the key set.
func (o *Object) Keys(ctx context.Context) []string {
	o.keysDep.track(ctx)
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys without tracking.
func (o *Object) Len() int { return len(o.keys) }

// Set assigns key. Plain maps and slices are wrapped; other values are
// stored opaque. Assigning an equal primitive or the same container does
// not notify.
func (o *Object) Set(key string, value any) error {
	if o.readOnly {
		return ErrReadOnly
	}
	o.set(key, Wrap(value))
	return nil
}

func (o *Object) set(key string, value any) {
	old, exists := o.vals[key]
	if exists && same(old, value) {
		return
	}
	o.vals[key] = value
	if !exists {
		o.keys = append(o.keys, key)
		o.keysDep.notify()
	}
	if d, ok := o.deps[key]; ok {
		d.notify()
	}
}

// Delete removes key.
func (o *Object) Delete(key string) error {
	if o.readOnly {
		return ErrReadOnly
	}
	o.del(key)
	return nil
}

func (o *Object) del(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	o.keysDep.notify()
	if d, ok := o.deps[key]; ok {
		d.notify()
	}
}

// GetPath walks a dot-separated path, tracking every hop.
// It returns nil when a segment is missing or not a container.
func (o *Object) GetPath(ctx context.Context, path string) any {
	if path == "" {
		return o
	}
	var cur any = o
	for _, seg := range strings.Split(path, ".") {
		cur = Child(ctx, cur, seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// SetPath assigns a dot-separated path, creating intermediate objects.
func (o *Object) SetPath(path string, value any) error {
	if o.readOnly {
		return ErrReadOnly
	}
	segs := strings.Split(path, ".")
	cur := o
	for _, seg := range segs[:len(segs)-1] {
		next, _ := cur.vals[seg].(*Object)
		if next == nil {
			next = NewObject()
			cur.set(seg, next)
		}
		if next.readOnly {
			return ErrReadOnly
		}
		cur = next
	}
	cur.set(segs[len(segs)-1], Wrap(value))
	return nil
}

// Snapshot returns a deep plain copy (map[string]any / []any).
func (o *Object) Snapshot() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = Plain(o.vals[k])
	}
	return out
}

// Child reads one segment of a container: a key of an Object or an index
// of an Array. Anything else yields nil.
func Child(ctx context.Context, v any, seg string) any {
	switch c := v.(type) {
	case *Object:
		return c.Get(ctx, seg)
	case *Array:
		if seg == "length" {
			return c.Len(ctx)
		}
		i, err := strconv.Atoi(seg)
		if err != nil {
			return nil
		}
		return c.Index(ctx, i)
	case interface {
		Get(context.Context, string) any
	}:
		return c.Get(ctx, seg)
	}
	return nil
}

// Wrap converts plain maps and slices into observable containers.
// Containers are returned as is, so assigning one shares it.
func Wrap(v any) any {
	switch t := v.(type) {
	case map[string]any:
		o := NewObject()
		for _, k := range sortedKeys(t) {
			o.set(k, Wrap(t[k]))
		}
		return o
	case []any:
		a := NewArray()
		for _, item := range t {
			a.vals = append(a.vals, Wrap(item))
		}
		return a
	}
	return v
}

// Plain converts containers back into plain values.
func Plain(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Snapshot()
	case *Array:
		return t.Snapshot()
	}
	return v
}

// IsContainer reports whether v is an *Object or *Array.
func IsContainer(v any) bool {
	switch v.(type) {
	case *Object, *Array:
		return true
	}
	return false
}

// Merge deep-merges src into dst. Nested objects present on both sides are
// merged recursively; other keys are assigned when override is set or when
// dst lacks them. Merge writes through read-only containers.
func Merge(dst *Object, src any, override bool) {
	var keys []string
	var get func(string) any
	switch s := src.(type) {
	case *Object:
		keys, get = s.keys, func(k string) any { return s.vals[k] }
	case map[string]any:
		keys, get = sortedKeys(s), func(k string) any { return s[k] }
	default:
		return
	}
	for _, k := range keys {
		sv := get(k)
		dv, exists := dst.vals[k]
		if dobj, ok := dv.(*Object); ok && isObjectLike(sv) {
			Merge(dobj, sv, override)
			continue
		}
		if exists && !override {
			continue
		}
		w := Wrap(Plain(sv))
		if dst.readOnly {
			w = freeze(w)
		}
		dst.set(k, w)
	}
}

func isObjectLike(v any) bool {
	switch v.(type) {
	case *Object, map[string]any:
		return true
	}
	return false
}

// freeze marks a freshly wrapped value and its children read-only.
func freeze(v any) any {
	switch t := v.(type) {
	case *Object:
		t.readOnly = true
		for _, k := range t.keys {
			freeze(t.vals[k])
		}
	case *Array:
		t.readOnly = true
		for _, item := range t.vals {
			freeze(item)
		}
	}
	return v
}

// same reports whether assigning b over a is a no-op.
func same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	switch ta.Kind() {
	case reflect.Struct, reflect.Array, reflect.Interface:
		return false
	}
	return a == b
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}
