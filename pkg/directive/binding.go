package directive

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// DefaultPrefix is the attribute prefix of directives.
const DefaultPrefix = "data-wp-"

// Priorities of the built-in directive groups. Lower runs first.
const (
	PriorityContext   = 5
	PriorityAttribute = 10
	PriorityText      = 15
	PriorityChildren  = 20
)

// Marker attributes that carry no directive of their own.
const (
	attrInteractive = "interactive"
	attrRegion      = "router-region"
	attrInnerBlocks = "inner-blocks"
	attrIgnore      = "ignore"
	attrEachChild   = "each-child"
)

// Binding is one directive attribute of an element.
type Binding struct {
	// Namespace is the explicit ns:: prefix of the value or the namespace
	// of the closest island.
	Namespace string
	Name      string
	// Suffix is everything after the first "--", or "".
	Suffix string
	// Value is the attribute value without the namespace prefix.
	Value string
}

// Event returns the event type of an on-style binding: the suffix up to
// its first "--".
func (b Binding) Event() string {
	ev, _, _ := strings.Cut(b.Suffix, "--")
	return ev
}

// ID returns the unique id of a binding: the part of the suffix after the
// event type, as in data-wp-on--click--second.
func (b Binding) ID() string {
	_, id, _ := strings.Cut(b.Suffix, "--")
	return id
}

// Attr returns the attribute name the binding was parsed from.
func (b Binding) Attr(prefix string) string {
	if b.Suffix == "" {
		return prefix + b.Name
	}
	return prefix + b.Name + "--" + b.Suffix
}

// ParseAttr parses a single attribute. Marker attributes and attributes
// without prefix are rejected.
func ParseAttr(prefix string, a html.Attribute, ns string) (Binding, bool) {
	if a.Namespace != "" || !strings.HasPrefix(a.Key, prefix) {
		return Binding{}, false
	}
	rest := a.Key[len(prefix):]
	name, suffix, _ := strings.Cut(rest, "--")
	switch name {
	case "", attrInteractive, attrRegion, attrInnerBlocks:
		return Binding{}, false
	}
	b := Binding{Name: name, Suffix: suffix, Namespace: ns, Value: a.Val}
	if n, v, ok := splitNamespace(a.Val); ok {
		b.Namespace, b.Value = n, v
	}
	return b, true
}

// ParseBindings returns the directive bindings of n in attribute order.
func ParseBindings(prefix string, n *html.Node, ns string) []Binding {
	var out []Binding
	for _, a := range n.Attr {
		if b, ok := ParseAttr(prefix, a, ns); ok {
			out = append(out, b)
		}
	}
	return out
}

// splitNamespace splits "ns::expr". JSON values are never split on a
// "::" that appears inside them.
func splitNamespace(v string) (string, string, bool) {
	i := strings.Index(v, "::")
	if i <= 0 {
		return "", v, false
	}
	ns := v[:i]
	if strings.ContainsAny(ns, " {[\"'") {
		return "", v, false
	}
	return ns, v[i+2:], true
}

// Interactive is the parsed value of a data-wp-interactive attribute.
type Interactive struct {
	Namespace string
	Isolated  bool
}

// ParseInteractive accepts a plain namespace or a JSON object with
// "namespace" and "isolated" fields.
func ParseInteractive(v string) Interactive {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "{") {
		return Interactive{Namespace: v}
	}
	var raw struct {
		Namespace string `json:"namespace"`
		Isolated  bool   `json:"isolated"`
	}
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return Interactive{}
	}
	return Interactive{Namespace: raw.Namespace, Isolated: raw.Isolated}
}

// InteractiveOf returns the island declaration on n, if any.
func InteractiveOf(prefix string, n *html.Node) (Interactive, bool) {
	if n == nil || n.Type != html.ElementNode {
		return Interactive{}, false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == prefix+attrInteractive {
			return ParseInteractive(a.Val), true
		}
	}
	return Interactive{}, false
}

func hasMarker(prefix string, n *html.Node, marker string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == prefix+marker {
			return true
		}
	}
	return false
}
