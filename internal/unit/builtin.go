package unit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry is the process-wide set of trusted units. Entries cannot be
// replaced once registered.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*Unit
}

func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Unit)}
}

func (r *Registry) Register(name string, fn EvaluatorFunc) error {
	if name == "" {
		return errors.New("builtin: missing name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[name]; ok {
		return errors.Errorf("builtin %q already registered", name)
	}
	r.units[name] = New(name, BuiltinLoader, func() (Evaluator, error) { return fn, nil })
	return nil
}

func (r *Registry) Lookup(name string) (*Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[name]
	return u, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins returns a registry preloaded with the system aggregation units.
// They read the numeric list passed as the "values" parameter.
func Builtins() *Registry {
	r := NewRegistry()
	_ = r.Register("sys.Sum", aggregate(func(xs []float64) float64 {
		var s float64
		for _, x := range xs {
			s += x
		}
		return s
	}))
	_ = r.Register("sys.Count", aggregate(func(xs []float64) float64 { return float64(len(xs)) }))
	_ = r.Register("sys.Min", aggregate(func(xs []float64) float64 {
		if len(xs) == 0 {
			return 0
		}
		m := xs[0]
		for _, x := range xs[1:] {
			if x < m {
				m = x
			}
		}
		return m
	}))
	_ = r.Register("sys.Max", aggregate(func(xs []float64) float64 {
		if len(xs) == 0 {
			return 0
		}
		m := xs[0]
		for _, x := range xs[1:] {
			if x > m {
				m = x
			}
		}
		return m
	}))
	_ = r.Register("sys.Avg", aggregate(func(xs []float64) float64 {
		if len(xs) == 0 {
			return 0
		}
		var s float64
		for _, x := range xs {
			s += x
		}
		return s / float64(len(xs))
	}))
	return r
}

func aggregate(fn func([]float64) float64) EvaluatorFunc {
	return func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		raw, ok := params["values"]
		if !ok {
			return fn(nil), nil
		}
		list, ok := raw.([]interface{})
		if !ok {
			return nil, errors.Errorf("values: expected a list, got %T", raw)
		}
		xs := make([]float64, 0, len(list))
		for i, v := range list {
			f, err := toFloat(v)
			if err != nil {
				return nil, errors.Wrapf(err, "values[%d]", i)
			}
			xs = append(xs, f)
		}
		return fn(xs), nil
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
