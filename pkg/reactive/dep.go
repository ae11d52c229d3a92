package reactive

import "context"

// dep is the subscriber list of a single observable property.
type dep struct {
	subs []Listener
}

// track subscribes the listener carried by ctx, if any.
func (d *dep) track(ctx context.Context) {
	l := ListenerFrom(ctx)
	if l == nil {
		return
	}
	d.subscribe(l)
	if t, ok := l.(sourceTracker); ok {
		t.addSource(d)
	}
}

// subscribe adds a listener, deduplicated by ID.
func (d *dep) subscribe(l Listener) {
	lid := l.ID()
	for _, existing := range d.subs {
		if existing.ID() == lid {
			return
		}
	}
	d.subs = append(d.subs, l)
}

// unsubscribe removes a listener.
func (d *dep) unsubscribe(l Listener) {
	lid := l.ID()
	for i, existing := range d.subs {
		if existing.ID() == lid {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

// notify marks every subscriber dirty. Subscribers are copied first since
// MarkDirty may re-enter and resubscribe.
func (d *dep) notify() {
	if len(d.subs) == 0 {
		return
	}
	subs := make([]Listener, len(d.subs))
	copy(subs, d.subs)
	for _, sub := range subs {
		sub.MarkDirty()
	}
}

// sources is the dependency bookkeeping shared by memos, effects and jobs.
type sources struct {
	deps []*dep
}

func (s *sources) addSource(d *dep) {
	for _, existing := range s.deps {
		if existing == d {
			return
		}
	}
	s.deps = append(s.deps, d)
}

// release unsubscribes l from every recorded dependency.
func (s *sources) release(l Listener) {
	for _, d := range s.deps {
		d.unsubscribe(l)
	}
	s.deps = s.deps[:0]
}

// Tracker is embeddable dependency bookkeeping for listeners defined in
// other packages, such as directive render levels.
type Tracker struct {
	src sources
}

func (t *Tracker) addSource(d *dep) { t.src.addSource(d) }

// Release unsubscribes l from everything it read since the last Release.
func (t *Tracker) Release(l Listener) { t.src.release(l) }

// Deps returns the number of properties currently tracked.
func (t *Tracker) Deps() int { return len(t.src.deps) }
