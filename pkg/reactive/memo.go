package reactive

import "context"

// Memo is a cached derived value. It recomputes lazily on the first read
// after any dependency changes, and is itself observable.
type Memo struct {
	id      uint64
	compute func(ctx context.Context) any
	value   any
	valid   bool

	// computing guards against a memo reading itself.
	computing bool

	src  sources
	subs dep
}

// NewMemo creates a memo. compute runs on first Get.
func NewMemo(compute func(ctx context.Context) any) *Memo {
	return &Memo{id: NextID(), compute: compute}
}

// ID implements Listener.
func (m *Memo) ID() uint64 { return m.id }

// MarkDirty invalidates the cached value and propagates to readers.
func (m *Memo) MarkDirty() {
	if !m.valid {
		return
	}
	m.valid = false
	m.subs.notify()
}

func (m *Memo) addSource(d *dep) { m.src.addSource(d) }

// Get returns the cached value, recomputing if stale. The computation sees
// ctx (and so its scope) but tracks into the memo, not the caller.
func (m *Memo) Get(ctx context.Context) any {
	m.subs.track(ctx)
	if m.valid || m.computing {
		return m.value
	}
	m.computing = true
	m.src.release(m)
	m.value = m.compute(WithListener(ctx, m))
	m.valid = true
	m.computing = false
	return m.value
}

// Peek returns the cached value without tracking or recomputing.
func (m *Memo) Peek() any { return m.value }

// Dispose unsubscribes the memo from its dependencies.
func (m *Memo) Dispose() {
	m.src.release(m)
	m.valid = false
}
