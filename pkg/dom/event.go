package dom

import "golang.org/x/net/html"

// Event is a dispatched DOM event.
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node

	// Key is set for keyboard events.
	Key string
	// Detail carries an arbitrary payload for custom events.
	Detail any
	// Bubbles controls propagation to ancestors and the window.
	Bubbles bool

	defaultPrevented bool
	stopped          bool
}

// PreventDefault marks the default action as cancelled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation stops the event after the current target.
func (e *Event) StopPropagation() { e.stopped = true }

// Handler receives dispatched events.
type Handler func(*Event)

type listener struct {
	typ     string
	handler Handler
	removed bool
}

// AddEventListener attaches h to target for events of typ and returns a
// function that detaches it.
func (d *Document) AddEventListener(target *html.Node, typ string, h Handler) func() {
	l := &listener{typ: typ, handler: h}
	d.listeners[target] = append(d.listeners[target], l)
	return func() { d.removeListener(target, l) }
}

func (d *Document) removeListener(target *html.Node, l *listener) {
	ls := d.listeners[target]
	for i, existing := range ls {
		if existing == l {
			l.removed = true
			ls = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(ls) == 0 {
		delete(d.listeners, target)
	} else {
		d.listeners[target] = ls
	}
}

// ListenerCount returns how many listeners for typ are attached to target.
func (d *Document) ListenerCount(target *html.Node, typ string) int {
	n := 0
	for _, l := range d.listeners[target] {
		if l.typ == typ {
			n++
		}
	}
	return n
}

// Dispatch fires e at target. Bubbling events visit each ancestor and then
// the window. It returns false if a handler called PreventDefault.
func (d *Document) Dispatch(target *html.Node, e *Event) bool {
	e.Target = target
	path := []*html.Node{target}
	if e.Bubbles && target != d.Window {
		for p := target.Parent; p != nil; p = p.Parent {
			path = append(path, p)
		}
		if d.Contains(target) {
			path = append(path, d.Window)
		}
	}
	for _, node := range path {
		e.CurrentTarget = node
		ls := append([]*listener(nil), d.listeners[node]...)
		for _, l := range ls {
			if l.typ != e.Type || l.removed {
				continue
			}
			l.handler(e)
		}
		if e.stopped {
			break
		}
	}
	return !e.defaultPrevented
}

// Click dispatches a bubbling click event.
func (d *Document) Click(target *html.Node) bool {
	return d.Dispatch(target, &Event{Type: "click", Bubbles: true})
}
