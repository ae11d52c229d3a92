package dom

import "testing"

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := ParseString(s)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return d
}

func TestMutationCounting(t *testing.T) {
	d := mustParse(t, `<div id="a" class="x"><p id="p">hi</p></div>`)
	div := d.ByID("a")
	p := d.ByID("p")

	if d.SetAttr(div, "class", "x") {
		t.Error("SetAttr with the same value reported a change")
	}
	if d.SetText(p, "hi") {
		t.Error("SetText with the same text reported a change")
	}
	d.InsertBefore(div, p, nil)
	if got := d.Mutations(); got != 0 {
		t.Errorf("Mutations = %d, want 0", got)
	}

	d.SetAttr(div, "class", "y")
	d.RemoveAttr(div, "class")
	d.SetText(p, "bye")
	if got := d.Mutations(); got != 3 {
		t.Errorf("Mutations = %d, want 3", got)
	}
	if got := TextContent(p); got != "bye" {
		t.Errorf("TextContent = %q, want bye", got)
	}
}

func TestInsertBeforeMovesNode(t *testing.T) {
	d := mustParse(t, `<ul id="l"><li id="a"></li><li id="b"></li><li id="c"></li></ul>`)
	ul := d.ByID("l")
	a, c := d.ByID("a"), d.ByID("c")

	d.InsertBefore(ul, c, a)

	var ids []string
	for n := ul.FirstChild; n != nil; n = n.NextSibling {
		id, _ := Attr(n, "id")
		ids = append(ids, id)
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
	if d.ByID("c") != c {
		t.Error("moved node lost identity")
	}
}

func TestDispatchBubblesInOrder(t *testing.T) {
	d := mustParse(t, `<div id="outer"><button id="btn">x</button></div>`)
	btn := d.ByID("btn")
	outer := d.ByID("outer")

	var log []string
	d.AddEventListener(btn, "click", func(*Event) { log = append(log, "btn-1") })
	d.AddEventListener(btn, "click", func(*Event) { log = append(log, "btn-2") })
	d.AddEventListener(outer, "click", func(*Event) { log = append(log, "outer") })
	d.AddEventListener(d.Window, "click", func(*Event) { log = append(log, "window") })
	d.AddEventListener(btn, "keydown", func(*Event) { log = append(log, "key") })

	d.Click(btn)

	want := []string{"btn-1", "btn-2", "outer", "window"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %s, want %s", i, log[i], want[i])
		}
	}
}

func TestStopPropagationAndPreventDefault(t *testing.T) {
	d := mustParse(t, `<div id="outer"><a id="link" href="/x">x</a></div>`)
	link := d.ByID("link")
	outerCalled := false
	d.AddEventListener(d.ByID("outer"), "click", func(*Event) { outerCalled = true })
	d.AddEventListener(link, "click", func(e *Event) {
		e.PreventDefault()
		e.StopPropagation()
	})

	if d.Click(link) {
		t.Error("Click should report the default as prevented")
	}
	if outerCalled {
		t.Error("event propagated past StopPropagation")
	}
}

func TestRemoveListener(t *testing.T) {
	d := mustParse(t, `<button id="b"></button>`)
	b := d.ByID("b")
	calls := 0
	remove := d.AddEventListener(b, "click", func(*Event) { calls++ })
	if got := d.ListenerCount(b, "click"); got != 1 {
		t.Errorf("ListenerCount = %d, want 1", got)
	}
	remove()
	remove()
	d.Click(b)
	if calls != 0 || d.ListenerCount(b, "click") != 0 {
		t.Errorf("calls = %d, count = %d after remove", calls, d.ListenerCount(b, "click"))
	}
}

func TestContainsAndHeadBody(t *testing.T) {
	d := mustParse(t, `<html><head><title>T</title></head><body><p id="p"></p></body></html>`)
	p := d.ByID("p")
	if !d.Contains(p) {
		t.Error("Contains(p) = false")
	}
	d.Remove(p)
	if d.Contains(p) {
		t.Error("Contains after Remove = true")
	}
	if d.Title() != "T" {
		t.Errorf("Title = %q", d.Title())
	}
	if d.Head() == nil || d.Body() == nil {
		t.Error("missing head or body")
	}
	if d.Body().FirstChild != nil {
		t.Error("body should be empty")
	}
}

func TestCloneIsDetached(t *testing.T) {
	d := mustParse(t, `<div id="x" class="c"><span>t</span></div>`)
	orig := d.ByID("x")
	c := Clone(orig)
	if c.Parent != nil || c == orig {
		t.Fatal("clone should be a new detached node")
	}
	if Render(c) != Render(orig) {
		t.Errorf("Render(clone) = %s, want %s", Render(c), Render(orig))
	}
	c.Attr[0].Val = "changed"
	if v, _ := Attr(orig, "id"); v != "x" {
		t.Error("clone shares attribute storage")
	}
}
