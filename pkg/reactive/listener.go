package reactive

import (
	"context"
	"sync/atomic"
)

// Listener is anything that can be notified when a dependency changes.
// Memos invalidate their cached value; effects and render jobs schedule
// themselves on a Scheduler.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	ID() uint64
}

// Cleanup is returned by effects and runs before the next run and on dispose.
type Cleanup func()

// sourceTracker is implemented by listeners that remember their
// dependencies so they can unsubscribe before re-running.
type sourceTracker interface {
	addSource(d *dep)
}

type listenerKey struct{}

// WithListener returns a context whose reads subscribe l.
// A nil listener disables tracking.
func WithListener(ctx context.Context, l Listener) context.Context {
	return context.WithValue(ctx, listenerKey{}, listenerBox{l})
}

// Untracked returns a context whose reads do not subscribe anything.
func Untracked(ctx context.Context) context.Context {
	return WithListener(ctx, nil)
}

// ListenerFrom returns the listener reads in ctx subscribe, or nil.
func ListenerFrom(ctx context.Context) Listener {
	if ctx == nil {
		return nil
	}
	box, _ := ctx.Value(listenerKey{}).(listenerBox)
	return box.l
}

// listenerBox lets WithListener store a nil listener that still shadows an
// outer one.
type listenerBox struct{ l Listener }

var globalIDCounter uint64

// NextID returns the next unique ID for a reactive primitive.
// IDs are monotonically increasing and never reused.
func NextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}
