package router

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/vdom"
)

// Page is a fetched document, parsed and built off the runtime thread.
// Its VNodes are detached: they describe content, Root keeps the parsed
// nodes only for reading embedded state.
type Page struct {
	URL  *url.URL
	Root *html.Node
	Tree *vdom.VNode

	Title    string
	HasTitle bool
	// Styles are the stylesheet links and style elements of the head.
	Styles []*vdom.VNode
	// Regions maps region ids to their subtrees, outermost regions only.
	Regions map[string]*vdom.VNode
}

// ParsePage parses body as the page at u.
func ParsePage(u *url.URL, body []byte, prefix string) (*Page, error) {
	root, err := vdom.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	p := &Page{
		URL:     u,
		Root:    root,
		Tree:    vdom.Detach(vdom.Build(root)),
		Regions: make(map[string]*vdom.VNode),
	}
	if head := p.Tree.Find(func(v *vdom.VNode) bool { return v.Tag == "head" }); head != nil {
		for _, c := range head.Children {
			switch {
			case c.Kind != vdom.KindElement:
			case c.Tag == "title":
				p.Title, p.HasTitle = textOf(c), true
			case isStyle(c):
				p.Styles = append(p.Styles, c)
			}
		}
	}
	attr := prefix + "router-region"
	for _, v := range p.Tree.FindAll(vdom.HasAttr(attr)) {
		val, _ := v.Attr(attr)
		if id := regionID(val); id != "" {
			p.Regions[id] = v
		}
	}
	return p, nil
}

// regionID accepts a plain id or {"id": ...}.
func regionID(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "{") {
		return v
	}
	var raw struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return ""
	}
	return raw.ID
}

func textOf(v *vdom.VNode) string {
	var b strings.Builder
	var walk func(*vdom.VNode)
	walk = func(n *vdom.VNode) {
		if n.Kind == vdom.KindText {
			b.WriteString(n.Text)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(v)
	return b.String()
}

func isStyle(v *vdom.VNode) bool {
	if v.Tag == "style" {
		return true
	}
	if v.Tag != "link" {
		return false
	}
	rel, _ := v.Attr("rel")
	return strings.EqualFold(strings.TrimSpace(rel), "stylesheet")
}

// styleKey identifies a stylesheet: links by href, style elements by
// their text.
func styleKey(tag, href, text string) string {
	if tag == "link" {
		return "link:" + href
	}
	return "style:" + text
}

// liveStyles returns the style keys already present in head.
func liveStyles(head *html.Node) map[string]bool {
	out := make(map[string]bool)
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Link:
			rel, _ := dom.Attr(c, "rel")
			if strings.EqualFold(strings.TrimSpace(rel), "stylesheet") {
				href, _ := dom.Attr(c, "href")
				out[styleKey("link", href, "")] = true
			}
		case atom.Style:
			out[styleKey("style", "", dom.TextContent(c))] = true
		}
	}
	return out
}
