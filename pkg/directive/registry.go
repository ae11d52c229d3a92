package directive

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Evaluator runs all bindings of one directive name on one element. It is
// called on every render of its level; state it reads through ctx is
// tracked, and the side effects it declares through c replace those of the
// previous run.
type Evaluator func(ctx context.Context, c *Call) error

// Config describes a directive.
type Config struct {
	// Priority orders the levels of an element, lowest first. Zero selects
	// PriorityAttribute. The context directive always forms the first
	// level of its element whatever its priority.
	Priority int
	Evaluate Evaluator
}

// Registry maps directive names to their configuration.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
	hooks   []func(name string)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]Config)}
}

// Register adds or replaces a directive. Registering after hydration
// re-renders the mounted elements that carry it.
func (r *Registry) Register(name string, cfg Config) {
	if cfg.Priority == 0 {
		cfg.Priority = PriorityAttribute
	}
	r.mu.Lock()
	r.configs[name] = cfg
	hooks := append([]func(string){}, r.hooks...)
	r.mu.Unlock()
	for _, h := range hooks {
		h(name)
	}
}

// OnRegister adds a hook called after every Register.
func (r *Registry) OnRegister(fn func(name string)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Lookup returns the configuration of name.
func (r *Registry) Lookup(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.configs))
	for n := range r.configs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// group is one level in the making: the known directive names sharing a
// priority, in first-seen attribute order.
type group struct {
	priority int
	names    []string
}

// contextLevel is the level priority of the context directive: below
// every registered priority.
const contextLevel = math.MinInt

// levelsFor groups the known bindings of an element by priority.
func (r *Registry) levelsFor(bindings []Binding) []group {
	var groups []group
	seen := make(map[string]bool)
	for _, b := range bindings {
		if seen[b.Name] {
			continue
		}
		cfg, ok := r.Lookup(b.Name)
		if !ok || cfg.Evaluate == nil {
			continue
		}
		seen[b.Name] = true
		p := cfg.Priority
		if b.Name == "context" {
			p = contextLevel
		}
		i := sort.Search(len(groups), func(i int) bool { return groups[i].priority >= p })
		if i < len(groups) && groups[i].priority == p {
			groups[i].names = append(groups[i].names, b.Name)
			continue
		}
		groups = append(groups, group{})
		copy(groups[i+1:], groups[i:])
		groups[i] = group{priority: p, names: []string{b.Name}}
	}
	return groups
}
