// Package vdom provides the virtual DOM used for hydration and page diffs.
//
// A VNode tree is an ordered view of an HTML tree containing only elements
// and text. Comments, processing instructions and doctypes never appear,
// so sibling positions in a VNode tree line up between the live document
// and a freshly fetched page. VNodes are rebuilt on every pass; identity
// across passes lives in the *html.Node each VNode points at.
//
// # Building
//
// Build converts a parsed tree:
//
//	root, _ := vdom.Parse(strings.NewReader(page))
//	v := vdom.Build(root)
//
// # Diffing
//
// Diff compares a VNode tree built from the live document with one built
// from new markup and returns the Patch operations that turn the live tree
// into the new one. Children carrying data-wp-key are matched by key,
// everything else by position. Matched nodes keep their DOM identity:
// Apply moves them, never recreates them.
//
//	patches := vdom.Diff(vdom.Build(region), vdom.Build(fetched))
//	vdom.Apply(doc, patches)
package vdom
