package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/dom"
	"github.com/vango-dev/islands/pkg/reactive"
)

const (
	// StateAttr marks a per-namespace state blob script.
	StateAttr = "data-wp-interactive-state"

	// DataID is the id of the combined state and config blob.
	DataID = "wp-interactivity-data"
)

// Definition is the part of a store supplied by code.
type Definition struct {
	State     map[string]any
	Derived   map[string]Derived
	Actions   map[string]Action
	Callbacks map[string]Action
}

// Option configures a Registry.
type Option func(*Registry)

// WithWarn routes coded warnings to fn.
func WithWarn(fn func(*errors.Error)) Option {
	return func(r *Registry) { r.warn = fn }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Registry holds every namespace of one runtime.
type Registry struct {
	namespaces map[string]*Namespace
	warn       func(*errors.Error)
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		namespaces: make(map[string]*Namespace),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "store")
	return r
}

// Namespace returns the namespace called name, creating it on first use.
func (r *Registry) Namespace(name string) *Namespace {
	ns, ok := r.namespaces[name]
	if !ok {
		ns = newNamespace(name, r.warn)
		r.namespaces[name] = ns
	}
	return ns
}

// Lookup returns an existing namespace.
func (r *Registry) Lookup(name string) (*Namespace, bool) {
	ns, ok := r.namespaces[name]
	return ns, ok
}

// Names returns the namespaces in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Define merges a code-supplied definition into a namespace. State is deep
// merged with the definition winning.
func (r *Registry) Define(name string, def Definition) *Namespace {
	ns := r.Namespace(name)
	if def.State != nil {
		reactive.Merge(ns.State, def.State, true)
	}
	for k, fn := range def.Derived {
		ns.derived[k] = fn
		for key, m := range ns.memos {
			if key.name == k {
				m.Dispose()
				delete(ns.memos, key)
			}
		}
	}
	for k, fn := range def.Actions {
		ns.Actions[k] = fn
	}
	for k, fn := range def.Callbacks {
		ns.Callbacks[k] = fn
	}
	return ns
}

// MergeServer merge-patches server data into a namespace: keys present in
// data overwrite, recursively for nested objects; absent keys are left as
// they are. The server snapshot is patched the same way.
func (r *Registry) MergeServer(name string, data any) {
	ns := r.Namespace(name)
	reactive.Merge(ns.State, data, true)
	reactive.Merge(ns.Server, data, true)
}

// MergeConfig merge-patches read-only configuration.
func (r *Registry) MergeConfig(name string, data any) {
	reactive.Merge(r.Namespace(name).Config, data, true)
}

// Reset drops every namespace.
func (r *Registry) Reset() {
	r.namespaces = make(map[string]*Namespace)
}

// Payload is the server data found in one document.
type Payload struct {
	State  map[string]*reactive.Object
	Config map[string]*reactive.Object
}

// Extract reads every state blob in doc. Malformed blobs warn E101 and
// yield an empty object for their namespace.
func (r *Registry) Extract(root *html.Node) Payload {
	p := Payload{
		State:  make(map[string]*reactive.Object),
		Config: make(map[string]*reactive.Object),
	}
	isJSONScript := func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script {
			return false
		}
		typ, _ := dom.Attr(n, "type")
		return strings.EqualFold(typ, "application/json")
	}

	for _, n := range dom.FindAll(root, isJSONScript) {
		if ns, ok := dom.Attr(n, StateAttr); ok {
			obj := r.decodeObject(ns, dom.TextContent(n))
			if prev, ok := p.State[ns]; ok {
				reactive.Merge(prev, obj, true)
			} else {
				p.State[ns] = obj
			}
			continue
		}
		if id, _ := dom.Attr(n, "id"); id == DataID {
			r.extractCombined(dom.TextContent(n), &p)
		}
	}
	return p
}

func (r *Registry) extractCombined(text string, p *Payload) {
	data := r.decodeObject("", text)
	ctx := reactive.Untracked(context.Background())
	for _, section := range []struct {
		key string
		dst map[string]*reactive.Object
	}{{"state", p.State}, {"config", p.Config}} {
		raw := data.Get(ctx, section.key)
		if raw == nil {
			continue
		}
		all, ok := raw.(*reactive.Object)
		if !ok {
			r.report(errors.New("E101").WithDetail(section.key + " section is not an object"))
			continue
		}
		for _, ns := range all.Keys(ctx) {
			obj, ok := all.Get(ctx, ns).(*reactive.Object)
			if !ok {
				r.report(errors.New("E101").WithNamespace(ns).WithDetail(section.key + " is not an object"))
				obj = reactive.NewObject()
			}
			if prev, ok := section.dst[ns]; ok {
				reactive.Merge(prev, obj, true)
			} else {
				section.dst[ns] = obj
			}
		}
	}
}

// decodeObject parses a blob, substituting an empty object on failure.
func (r *Registry) decodeObject(ns, text string) *reactive.Object {
	v, err := reactive.DecodeJSON([]byte(text))
	if err != nil {
		r.report(errors.New("E101").WithNamespace(ns).Wrap(err))
		return reactive.NewObject()
	}
	obj, ok := v.(*reactive.Object)
	if !ok {
		r.report(errors.New("E101").WithNamespace(ns).WithDetail("blob is not a JSON object"))
		return reactive.NewObject()
	}
	return obj
}

// Seed loads the server data embedded in doc. It never fails: bad blobs
// leave an empty namespace behind.
func (r *Registry) Seed(root *html.Node) Payload {
	p := r.Extract(root)
	r.Apply(p)
	return p
}

// Apply merge-patches a payload into the registry.
func (r *Registry) Apply(p Payload) {
	for _, ns := range sortedNames(p.State) {
		r.MergeServer(ns, p.State[ns])
	}
	for _, ns := range sortedNames(p.Config) {
		r.MergeConfig(ns, p.Config[ns])
	}
	r.logger.Debug("server data applied", "state", len(p.State), "config", len(p.Config))
}

func (r *Registry) report(e *errors.Error) {
	if r.warn != nil {
		r.warn(e)
	}
}

func sortedNames(m map[string]*reactive.Object) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
