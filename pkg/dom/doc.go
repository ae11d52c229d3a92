// Package dom wraps a golang.org/x/net/html tree as a live document.
//
// Nodes are plain *html.Node values and pointer identity is node identity.
// Every structural or attribute change made through a Document is counted,
// which lets callers assert that a pass produced no mutations at all.
// Documents also carry event listeners and dispatch events with bubbling
// from a node up to the window.
//
// A Document is not safe for concurrent use; it belongs to the runtime
// thread like the reactive state that drives it.
package dom
