package reactive

import "context"

// Effect is a reactive side effect. It re-runs on the scheduler whenever a
// property it read changes, running its previous Cleanup first.
type Effect struct {
	id    uint64
	ctx   context.Context
	fn    func(ctx context.Context) Cleanup
	sched *Scheduler
	rank  Rank

	cleanup  Cleanup
	src      sources
	dirty    bool
	disposed bool
}

// NewEffect creates an effect bound to sched. It does not run until Run is
// called; ctx is the context every run receives (usually carrying a scope).
func NewEffect(ctx context.Context, sched *Scheduler, fn func(ctx context.Context) Cleanup) *Effect {
	return &Effect{
		id:    NextID(),
		ctx:   ctx,
		fn:    fn,
		sched: sched,
		rank:  Rank{Phase: PhaseEffect},
	}
}

// WithRank sets the position of the effect within a flush.
func (e *Effect) WithRank(r Rank) *Effect {
	e.rank = r
	return e
}

// ID implements Listener.
func (e *Effect) ID() uint64 { return e.id }

// Rank implements Job.
func (e *Effect) Rank() Rank { return e.rank }

// MarkDirty schedules the effect once.
func (e *Effect) MarkDirty() {
	if e.disposed || e.dirty {
		return
	}
	e.dirty = true
	if e.sched != nil {
		e.sched.Enqueue(e)
	}
}

// Drop implements Job: the scheduler refused to run the effect this flush.
func (e *Effect) Drop() { e.dirty = false }

func (e *Effect) addSource(d *dep) { e.src.addSource(d) }

// Run executes the effect, re-tracking its dependencies.
func (e *Effect) Run() {
	if e.disposed {
		return
	}
	e.dirty = false
	if e.cleanup != nil {
		c := e.cleanup
		e.cleanup = nil
		c()
	}
	e.src.release(e)
	e.cleanup = e.fn(WithListener(e.ctx, e))
}

// Dispose runs the cleanup and unsubscribes from all dependencies.
func (e *Effect) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
	e.src.release(e)
}

// Disposed reports whether Dispose was called.
func (e *Effect) Disposed() bool { return e.disposed }
