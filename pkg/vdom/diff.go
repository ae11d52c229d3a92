package vdom

import "golang.org/x/net/html"

// Diff compares two VNode trees and returns the patches needed to transform
// prev into next. prev must be built from the live document. Matched nodes
// in next receive the DOM node of their prev counterpart.
func Diff(prev, next *VNode) []Patch {
	var patches []Patch
	diff(prev, next, &patches)
	return patches
}

// diff recursively compares nodes and appends patches.
func diff(prev, next *VNode, patches *[]Patch) {
	// Both nil - nothing to do
	if prev == nil && next == nil {
		return
	}

	// Node added (handled by parent via InsertNode)
	if prev == nil || prev.Node == nil {
		return
	}

	// Node removed
	if next == nil {
		*patches = append(*patches, Patch{Op: PatchRemoveNode, Target: prev.Node})
		return
	}

	if !sameType(prev, next) {
		*patches = append(*patches, Patch{Op: PatchReplaceNode, Target: prev.Node, Node: next})
		return
	}

	next.Node = prev.Node
	switch prev.Kind {
	case KindText:
		diffText(prev, next, patches)
	case KindElement:
		diffAttrs(prev, next, patches)
		diffChildren(prev, next, patches)
	case KindFragment:
		diffChildren(prev, next, patches)
	}
}

// sameType reports whether next can reuse prev's DOM node.
func sameType(prev, next *VNode) bool {
	if prev.Kind != next.Kind {
		return false
	}
	if prev.Kind == KindElement {
		return prev.Tag == next.Tag && prev.Namespace == next.Namespace
	}
	return true
}

// diffText compares text nodes.
func diffText(prev, next *VNode, patches *[]Patch) {
	if prev.Text == next.Text {
		return
	}
	if prev.Node.Type != html.TextNode {
		// CDATA lives in a comment node; swap it for real text.
		next.Node = nil
		*patches = append(*patches, Patch{Op: PatchReplaceNode, Target: prev.Node, Node: next})
		return
	}
	*patches = append(*patches, Patch{Op: PatchSetText, Target: prev.Node, Value: next.Text})
}

// diffAttrs compares and patches attributes.
func diffAttrs(prev, next *VNode, patches *[]Patch) {
	for _, a := range prev.Attrs {
		if a.Namespace != "" {
			continue
		}
		if _, ok := next.Attr(a.Key); !ok {
			*patches = append(*patches, Patch{Op: PatchRemoveAttr, Target: prev.Node, Key: a.Key})
		}
	}
	for _, a := range next.Attrs {
		if a.Namespace != "" {
			continue
		}
		if old, ok := prev.Attr(a.Key); !ok || old != a.Val {
			*patches = append(*patches, Patch{Op: PatchSetAttr, Target: prev.Node, Key: a.Key, Value: a.Val})
		}
	}
}

// diffChildren compares and patches child nodes. Removals come first,
// then each child of next is placed left to right.
func diffChildren(prev, next *VNode, patches *[]Patch) {
	prevChildren := prev.Children
	nextChildren := next.Children

	// Check if children are keyed
	if hasKeys(prevChildren) || hasKeys(nextChildren) {
		diffKeyedChildren(prev.Node, prevChildren, nextChildren, patches)
	} else {
		diffUnkeyedChildren(prev.Node, prevChildren, nextChildren, patches)
	}
}

// diffUnkeyedChildren handles children without keys using positional matching.
func diffUnkeyedChildren(parent *html.Node, prev, next []*VNode, patches *[]Patch) {
	for i := len(next); i < len(prev); i++ {
		*patches = append(*patches, Patch{Op: PatchRemoveNode, Target: prev[i].Node})
	}

	var after *VNode
	for i, nextChild := range next {
		if i < len(prev) {
			diff(prev[i], nextChild, patches)
		} else {
			*patches = append(*patches, Patch{
				Op:     PatchInsertNode,
				Parent: parent,
				After:  after,
				Node:   nextChild,
			})
		}
		after = nextChild
	}
}

// diffKeyedChildren handles children with keys for efficient reordering.
// Unkeyed children in a keyed list are matched in order against the
// unkeyed children of prev.
func diffKeyedChildren(parent *html.Node, prev, next []*VNode, patches *[]Patch) {
	prevKeyMap := make(map[string]int)
	var prevUnkeyed []int
	for i, child := range prev {
		if key := getKey(child); key != "" {
			if _, dup := prevKeyMap[key]; !dup {
				prevKeyMap[key] = i
				continue
			}
		}
		prevUnkeyed = append(prevUnkeyed, i)
	}

	// Pair every next child with a prev index, or -1.
	matches := make([]int, len(next))
	matched := make(map[int]bool)
	unkeyedCursor := 0
	for i, child := range next {
		matches[i] = -1
		key := getKey(child)
		if key != "" {
			if prevIdx, ok := prevKeyMap[key]; ok && !matched[prevIdx] {
				matches[i] = prevIdx
				matched[prevIdx] = true
			}
			continue
		}
		if unkeyedCursor < len(prevUnkeyed) {
			prevIdx := prevUnkeyed[unkeyedCursor]
			unkeyedCursor++
			matches[i] = prevIdx
			matched[prevIdx] = true
		}
	}

	// Remove unmatched prev nodes
	for i, prevChild := range prev {
		if !matched[i] {
			*patches = append(*patches, Patch{Op: PatchRemoveNode, Target: prevChild.Node})
		}
	}

	var after *VNode
	lastIndex := -1
	for i, nextChild := range next {
		prevIdx := matches[i]
		switch {
		case prevIdx < 0:
			*patches = append(*patches, Patch{
				Op:     PatchInsertNode,
				Parent: parent,
				After:  after,
				Node:   nextChild,
			})
		case prevIdx < lastIndex:
			diff(prev[prevIdx], nextChild, patches)
			*patches = append(*patches, Patch{
				Op:     PatchMoveNode,
				Parent: parent,
				After:  after,
				Node:   nextChild,
			})
		default:
			lastIndex = prevIdx
			diff(prev[prevIdx], nextChild, patches)
		}
		after = nextChild
	}
}

// getKey extracts the key from a node.
func getKey(node *VNode) string {
	if node == nil || node.Kind != KindElement {
		return ""
	}
	return node.Key
}

// hasKeys returns true if any child has a key.
func hasKeys(children []*VNode) bool {
	for _, child := range children {
		if getKey(child) != "" {
			return true
		}
	}
	return false
}
