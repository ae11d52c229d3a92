package directive

import (
	"context"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/scope"
	"github.com/vango-dev/islands/pkg/store"
)

// Evaluate resolves the expression of b in the scope of ctx. Actions and
// callbacks are invoked with args and their result is returned; a leading
// "!" negates the result.
func (e *Engine) Evaluate(ctx context.Context, b Binding, args ...any) (any, error) {
	expr := strings.TrimSpace(b.Value)
	negate := strings.HasPrefix(expr, "!")
	if negate {
		expr = strings.TrimSpace(expr[1:])
	}
	v, err := e.resolve(ctx, b.Namespace, expr, args)
	if err != nil {
		return nil, err
	}
	if negate {
		return !Truthy(v), nil
	}
	return v, nil
}

func (e *Engine) resolve(ctx context.Context, ns, expr string, args []any) (any, error) {
	root, rest, _ := strings.Cut(expr, ".")
	unknown := func(what string) error {
		return errors.New("E107").
			WithNamespace(ns).
			WithDetail(what + " " + strconv.Quote(expr))
	}

	var cur any
	switch root {
	case "state":
		cur = e.store.Namespace(ns).StateView()
	case "context":
		v := scope.From(ctx).Context(ns)
		if v == nil {
			return nil, nil
		}
		cur = v
	case "actions", "callbacks":
		n := e.store.Namespace(ns)
		fns := n.Actions
		if root == "callbacks" {
			fns = n.Callbacks
		}
		fn, ok := fns[rest]
		if !ok {
			return nil, unknown("unknown " + strings.TrimSuffix(root, "s"))
		}
		return fn(scope.WithNamespace(ctx, ns), args...), nil
	default:
		return nil, unknown("unknown root in")
	}

	if rest == "" {
		return cur, nil
	}
	for _, seg := range strings.Split(rest, ".") {
		cur = reactive.Child(ctx, cur, seg)
		if cur == nil {
			return nil, nil
		}
	}
	if fn, ok := cur.(store.Action); ok {
		return fn(scope.WithNamespace(ctx, ns), args...), nil
	}
	return cur, nil
}

// Truthy follows script truthiness: nil, false, 0, NaN and "" are false,
// everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	return true
}

// Stringify renders a value as text content. Containers render as "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case *reactive.Object, *reactive.Array, map[string]any, []any:
		return ""
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// identity returns a comparable key for an each item.
func identity(v any) any {
	if v == nil {
		return nil
	}
	if reflect.TypeOf(v).Comparable() {
		return v
	}
	return Stringify(v)
}
