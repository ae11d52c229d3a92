package ctxchain

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/islands/pkg/reactive"
)

type probe struct {
	id    uint64
	dirty int
}

func (p *probe) MarkDirty() { p.dirty++ }
func (p *probe) ID() uint64 { return p.id }

func shadowingChain() (parent, child *Layer) {
	parent = NewLayer(nil, "ns", map[string]any{
		"prop1": "parent",
		"obj":   map[string]any{"prop4": "parent", "prop5": "parent"},
	}, nil)
	child = NewLayer(nil, "ns", map[string]any{
		"prop2": "child",
		"obj":   map[string]any{"prop5": "child", "prop6": "child"},
	}, parent)
	return parent, child
}

func TestChildViewMergesNestedObjects(t *testing.T) {
	_, child := shadowingChain()
	ctx := context.Background()

	got := child.View().Snapshot(ctx)
	want := map[string]any{
		"prop1": "parent",
		"prop2": "child",
		"obj":   map[string]any{"prop4": "parent", "prop5": "child", "prop6": "child"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("child view = %v, want %v", got, want)
	}
}

func TestChildWriteReachesOwningParent(t *testing.T) {
	parent, child := shadowingChain()
	ctx := context.Background()

	if err := child.View().Set("prop1", "from child"); err != nil {
		t.Fatal(err)
	}
	if got := parent.View().Get(ctx, "prop1"); got != "from child" {
		t.Errorf("parent prop1 = %v, want %q", got, "from child")
	}

	obj := child.View().Get(ctx, "obj").(*View)
	obj.Set("prop4", "nested from child")
	if got := parent.Own.GetPath(ctx, "obj.prop4"); got != "nested from child" {
		t.Errorf("parent obj.prop4 = %v", got)
	}
}

func TestParentWriteToShadowedKeyIsInvisible(t *testing.T) {
	parent, child := shadowingChain()
	ctx := context.Background()

	parent.View().Set("prop2", "parent")
	if got := child.View().Get(ctx, "prop2"); got != "child" {
		t.Errorf("child prop2 = %v, want child", got)
	}
	if got := parent.View().Get(ctx, "prop2"); got != "parent" {
		t.Errorf("parent prop2 = %v, want parent", got)
	}
}

func TestNewKeyIsCreatedInWritersLayer(t *testing.T) {
	parent, child := shadowingChain()
	ctx := context.Background()

	child.View().Set("fresh", 1)
	if parent.View().Has(ctx, "fresh") {
		t.Error("new key leaked into the parent layer")
	}
	if got := child.View().Get(ctx, "fresh"); got != 1 {
		t.Errorf("fresh = %v, want 1", got)
	}
}

func TestTrackingIsPerProperty(t *testing.T) {
	parent, child := shadowingChain()
	p := &probe{id: reactive.NextID()}
	ctx := reactive.WithListener(context.Background(), p)

	child.View().Get(ctx, "prop1")

	parent.Own.Set("prop3", "unrelated")
	if p.dirty != 0 {
		t.Errorf("unread key notified: dirty = %d", p.dirty)
	}
	parent.Own.Set("prop1", "changed")
	if p.dirty != 1 {
		t.Errorf("dirty = %d, want 1", p.dirty)
	}

	// The child starts shadowing prop1: the reader sees the new owner.
	child.Own.Set("prop1", "shadow")
	if p.dirty != 2 {
		t.Errorf("dirty = %d, want 2", p.dirty)
	}
}

func TestViewsAreMemoized(t *testing.T) {
	_, child := shadowingChain()
	ctx := context.Background()
	if child.View() != child.View() {
		t.Error("root view not memoized")
	}
	if child.View().Get(ctx, "obj") != child.View().Get(ctx, "obj") {
		t.Error("nested view not memoized")
	}
}

func TestMergeKeepsClientValues(t *testing.T) {
	l := NewLayer(nil, "ns", map[string]any{"a": 1, "n": map[string]any{"x": 1}}, nil)
	ctx := context.Background()
	l.View().Set("a", 5)

	l.Merge(map[string]any{"a": 2, "b": 3, "n": map[string]any{"x": 2, "y": 2}})

	if got := l.View().Snapshot(ctx); !reflect.DeepEqual(got, map[string]any{"a": 5, "b": 3, "n": map[string]any{"x": 1, "y": 2}}) {
		t.Errorf("client view = %v", got)
	}
	if got := l.ServerView().Snapshot(ctx); !reflect.DeepEqual(got, map[string]any{"a": 2, "b": 3, "n": map[string]any{"x": 2, "y": 2}}) {
		t.Errorf("server view = %v", got)
	}
}

func TestServerViewIsReadOnly(t *testing.T) {
	_, child := shadowingChain()
	ctx := context.Background()

	if err := child.ServerView().Set("prop1", "x"); !errors.Is(err, reactive.ErrReadOnly) {
		t.Errorf("Set error = %v, want ErrReadOnly", err)
	}
	if err := child.Server.Set("prop1", "x"); !errors.Is(err, reactive.ErrReadOnly) {
		t.Errorf("snapshot Set error = %v, want ErrReadOnly", err)
	}
	obj := child.ServerView().Get(ctx, "obj").(*ServerView)
	if got := obj.Get(ctx, "prop4"); got != "parent" {
		t.Errorf("server obj.prop4 = %v, want parent", got)
	}
}

func TestStackWithCopies(t *testing.T) {
	var s Stack
	a := NewLayer(nil, "a", map[string]any{}, nil)
	b := NewLayer(nil, "b", map[string]any{}, nil)

	s1 := s.With(a)
	s2 := s1.With(b)
	if s1.Layer("b") != nil {
		t.Error("With mutated the original stack")
	}
	if s2.Layer("a") != a || s2.Layer("b") != b {
		t.Error("With lost layers")
	}
}

func TestNilViewIsEmpty(t *testing.T) {
	var v *View
	ctx := context.Background()
	if v.Get(ctx, "x") != nil || v.Has(ctx, "x") || len(v.Snapshot(ctx)) != 0 {
		t.Error("nil view should read as empty")
	}
}
