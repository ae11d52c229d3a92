package vdom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/vango-dev/islands/pkg/dom"
)

func liveTree(t *testing.T, markup string) (*dom.Document, *VNode) {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	return doc, Build(doc.ByID("root"))
}

func fetchedTree(t *testing.T, markup string) *VNode {
	t.Helper()
	root, err := ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	return Build(root).Find(func(v *VNode) bool { id, _ := v.Attr("id"); return id == "root" })
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsManaged(c) {
			out = append(out, c)
		}
	}
	return out
}

func TestDiffIdenticalTreesIsEmpty(t *testing.T) {
	markup := `<div id="root" class="a"><p>x</p><ul><li data-wp-key="1">1</li></ul></div>`
	doc, prev := liveTree(t, markup)
	next := fetchedTree(t, markup)

	patches := Diff(prev, next)
	if len(patches) != 0 {
		t.Errorf("patches = %v, want none", patches)
	}
	if got := Apply(doc, patches); got != 0 {
		t.Errorf("mutations = %d, want 0", got)
	}
}

func TestDiffKeyedRotationKeepsIdentity(t *testing.T) {
	doc, prev := liveTree(t, `<ul id="root"><li data-wp-key="avocado">avocado</li><li data-wp-key="banana">banana</li><li data-wp-key="cherimoya">cherimoya</li></ul>`)
	before := childNodes(doc.ByID("root"))

	next := fetchedTree(t, `<ul id="root"><li data-wp-key="cherimoya">cherimoya</li><li data-wp-key="avocado">avocado</li><li data-wp-key="banana">banana</li></ul>`)
	Apply(doc, Diff(prev, next))

	after := childNodes(doc.ByID("root"))
	want := []*html.Node{before[2], before[0], before[1]}
	for i := range want {
		if after[i] != want[i] {
			t.Errorf("position %d holds a different node", i)
		}
	}
	if got := dom.TextContent(doc.ByID("root")); got != "cherimoyaavocadobanana" {
		t.Errorf("text = %q", got)
	}
}

func TestDiffKeyedInsertRemove(t *testing.T) {
	doc, prev := liveTree(t, `<ul id="root"><li data-wp-key="a">a</li><li data-wp-key="b">b</li><li data-wp-key="c">c</li></ul>`)
	before := childNodes(doc.ByID("root"))

	next := fetchedTree(t, `<ul id="root"><li data-wp-key="x">x</li><li data-wp-key="c">c</li><li data-wp-key="a">a</li></ul>`)
	Apply(doc, Diff(prev, next))

	after := childNodes(doc.ByID("root"))
	if len(after) != 3 {
		t.Fatalf("children = %d, want 3", len(after))
	}
	if after[1] != before[2] || after[2] != before[0] {
		t.Error("persisting keyed nodes were recreated")
	}
	if got := dom.TextContent(doc.ByID("root")); got != "xca" {
		t.Errorf("text = %q, want xca", got)
	}
}

func TestDiffUnkeyed(t *testing.T) {
	tests := []struct {
		name string
		prev string
		next string
		want string
	}{
		{"append", `<div id="root"><p>a</p></div>`, `<div id="root"><p>a</p><p>b</p></div>`, `<div id="root"><p>a</p><p>b</p></div>`},
		{"truncate", `<div id="root"><p>a</p><p>b</p></div>`, `<div id="root"><p>a</p></div>`, `<div id="root"><p>a</p></div>`},
		{"text", `<div id="root">old</div>`, `<div id="root">new</div>`, `<div id="root">new</div>`},
		{"tag change", `<div id="root"><p>a</p></div>`, `<div id="root"><span>a</span></div>`, `<div id="root"><span>a</span></div>`},
		{"attrs", `<div id="root" class="x" title="t"></div>`, `<div id="root" class="y" lang="en"></div>`, `<div id="root" class="y" lang="en"></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, prev := liveTree(t, tt.prev)
			Apply(doc, Diff(prev, fetchedTree(t, tt.next)))
			if got := dom.Render(doc.ByID("root")); got != tt.want {
				t.Errorf("Render = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDiffKeepsMatchedNodeAcrossTextChange(t *testing.T) {
	doc, prev := liveTree(t, `<div id="root"><p id="p">a</p></div>`)
	p := doc.ByID("p")
	text := p.FirstChild

	Apply(doc, Diff(prev, fetchedTree(t, `<div id="root"><p id="p">b</p></div>`)))

	if doc.ByID("p") != p || p.FirstChild != text {
		t.Error("text change recreated nodes")
	}
}

func TestApplyIgnoresCommentsForPlacement(t *testing.T) {
	doc, prev := liveTree(t, `<div id="root"><!-- c --><p>a</p><!-- d --><p>b</p></div>`)
	patches := Diff(prev, fetchedTree(t, `<div id="root"><p>a</p><p>b</p></div>`))
	if got := Apply(doc, patches); got != 0 {
		t.Errorf("mutations = %d, want 0", got)
	}
	if !strings.Contains(dom.Render(doc.ByID("root")), "<!-- c -->") {
		t.Error("unmanaged comment was removed")
	}
}
