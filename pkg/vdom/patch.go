package vdom

import (
	"golang.org/x/net/html"

	"github.com/vango-dev/islands/pkg/dom"
)

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetText     PatchOp = 0x01 // Update text content
	PatchSetAttr     PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr  PatchOp = 0x03 // Remove attribute
	PatchInsertNode  PatchOp = 0x04 // Insert new node
	PatchRemoveNode  PatchOp = 0x05 // Remove node
	PatchMoveNode    PatchOp = 0x06 // Move node to new position
	PatchReplaceNode PatchOp = 0x07 // Replace node entirely
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchMoveNode:
		return "MoveNode"
	case PatchReplaceNode:
		return "ReplaceNode"
	default:
		return "Unknown"
	}
}

// Patch represents a single DOM operation to apply.
type Patch struct {
	Op     PatchOp    // Operation type
	Target *html.Node // Node to change, remove or replace
	Key    string     // Attribute key (for SetAttr/RemoveAttr)
	Value  string     // New text or attribute value
	Node   *VNode     // Node to insert, move or replace with

	// Parent and After position InsertNode and MoveNode: the node goes
	// right after After's DOM node, or first in Parent when After is nil.
	// After is resolved at apply time since it may itself be inserted by
	// an earlier patch.
	Parent *html.Node
	After  *VNode
}

// Apply applies patches in order through doc and returns the number of
// DOM mutations made.
func Apply(doc *dom.Document, patches []Patch) int {
	before := doc.Mutations()
	for _, p := range patches {
		switch p.Op {
		case PatchSetText:
			doc.SetData(p.Target, p.Value)
		case PatchSetAttr:
			doc.SetAttr(p.Target, p.Key, p.Value)
		case PatchRemoveAttr:
			doc.RemoveAttr(p.Target, p.Key)
		case PatchRemoveNode:
			doc.Remove(p.Target)
		case PatchReplaceNode:
			doc.ReplaceWith(p.Target, Create(p.Node))
		case PatchInsertNode, PatchMoveNode:
			n := p.Node.Node
			if n == nil {
				n = Create(p.Node)
			}
			var after *html.Node
			if p.After != nil {
				after = p.After.Node
			}
			if inPlace(p.Parent, after, n) {
				continue
			}
			ref := p.Parent.FirstChild
			if after != nil {
				ref = after.NextSibling
			}
			doc.InsertBefore(p.Parent, n, ref)
		}
	}
	return int(doc.Mutations() - before)
}

// inPlace reports whether n already follows after, ignoring unmanaged
// nodes such as comments in between.
func inPlace(parent, after, n *html.Node) bool {
	if n.Parent != parent {
		return false
	}
	c := parent.FirstChild
	if after != nil {
		if after.Parent != parent {
			return false
		}
		c = after.NextSibling
	}
	for c != nil && c != n && !IsManaged(c) {
		c = c.NextSibling
	}
	return c == n
}
