package directive

import (
	"testing"

	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/store"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in, name, pos string
	}{
		{"side", "side", PositionChildren},
		{`{"name": "side", "position": "before"}`, "side", PositionBefore},
		{`{"name": "side", "position": "sideways"}`, "side", PositionChildren},
		{`{"name": `, "", PositionChildren},
	}
	for _, tt := range tests {
		name, pos := parseSlot(tt.in)
		if name != tt.name || pos != tt.pos {
			t.Errorf("parseSlot(%q) = %q, %q", tt.in, name, pos)
		}
	}
}

func TestFillMovesIntoSlotAndBack(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<aside id="slot" data-wp-slot="side"><em id="placeholder">empty</em></aside>`+
		`<div id="fill" data-wp-context='{"label":"from fill"}' data-wp-fill="state.target">`+
		`<span id="moved" data-wp-text="context.label"></span></div>`+
		`</div>`)
	h.store.Define("app", store.Definition{State: map[string]any{"target": "side"}})
	placeholder := h.byID("placeholder")
	h.hydrate()

	moved, slot := h.byID("moved"), h.byID("slot")
	if moved.Parent != slot {
		t.Fatal("content was not moved into the slot")
	}
	if placeholder.Parent != nil {
		t.Error("slot children still attached")
	}
	if got := dom.TextContent(moved); got != "from fill" {
		t.Errorf("moved text = %q, context lost", got)
	}

	h.state("app").Set("target", "")
	h.sched.Flush()
	if moved.Parent != h.byID("fill") {
		t.Error("content did not return home")
	}
	if placeholder.Parent != slot {
		t.Error("slot children not restored")
	}
}

func TestFillWaitsForLateSlot(t *testing.T) {
	h := newHarness(t, `<div data-wp-interactive="app">`+
		`<div id="fill" data-wp-fill="state.target"><b id="moved">x</b></div>`+
		`<div id="slot" data-wp-slot="late"></div>`+
		`</div>`)
	h.store.Define("app", store.Definition{State: map[string]any{"target": "late"}})
	h.hydrate()
	if h.byID("moved").Parent != h.byID("slot") {
		t.Error("fill did not follow a slot registered after it")
	}
}

func TestSlotReplacePosition(t *testing.T) {
	h := newHarness(t, `<div id="root" data-wp-interactive="app">`+
		`<p id="slot" data-wp-slot='{"name":"main","position":"replace"}'>slot</p>`+
		`<div id="fill" data-wp-fill="state.target"><b id="moved">x</b></div>`+
		`</div>`)
	h.store.Define("app", store.Definition{State: map[string]any{"target": "main"}})
	h.hydrate()

	root, moved := h.byID("root"), h.byID("moved")
	if root.FirstChild != moved {
		t.Fatal("content does not take the place of the slot")
	}
	if h.doc.ByID("slot") != nil {
		t.Error("replaced slot still attached")
	}

	h.state("app").Set("target", "")
	h.sched.Flush()
	if root.FirstChild != h.byID("slot") {
		t.Error("slot not reinstated at its position")
	}
	if moved.Parent != h.byID("fill") {
		t.Error("content did not return home")
	}
}

func TestBodyAppendsToDocumentBody(t *testing.T) {
	h := newHarness(t, `<html><body><div data-wp-interactive="app">`+
		`<div id="portal" data-wp-body><dialog id="modal" data-wp-bind--open="state.open"></dialog></div>`+
		`</div><footer id="footer"></footer></body></html>`)
	h.store.Define("app", store.Definition{State: map[string]any{"open": true}})
	h.hydrate()

	body := h.doc.Body()
	modal := h.byID("modal")
	if body.LastChild != modal {
		t.Fatal("content is not at the end of the body")
	}
	if !dom.HasAttr(modal, "open") {
		t.Error("bindings inside relocated content did not render")
	}

	h.engine.Unmount(h.byID("portal"))
	if modal.Parent != h.byID("portal") {
		t.Error("unmount did not bring content home")
	}
}
