// Package unit holds loadable code units and the trusted built-in set.
package unit

import (
	"context"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/pkg/errors"
)

// BuiltinLoader is the loader identity of every trusted built-in unit.
const BuiltinLoader = "builtin"

// Evaluator is one instance of a unit, invoked by the evaluation engine.
type Evaluator interface {
	Evaluate(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

type EvaluatorFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return f(ctx, params)
}

type Factory func() (Evaluator, error)

// Unit is a named, loaded unit. Identity is the pointer: callers may compare
// two *Unit values to learn whether they came from the same load.
type Unit struct {
	name    string
	loader  string
	factory Factory
}

func New(name, loader string, factory Factory) *Unit {
	return &Unit{name: name, loader: loader, factory: factory}
}

func (u *Unit) Name() string   { return u.name }
func (u *Unit) Loader() string { return u.loader }

// New returns a fresh evaluator instance.
func (u *Unit) New() (Evaluator, error) {
	return u.factory()
}

var language = gval.Full()

// Compile turns an archive entry payload (an expression over the evaluation
// parameters) into a unit owned by loader.
func Compile(name, loader string, payload []byte) (*Unit, error) {
	src := strings.TrimSpace(string(payload))
	if src == "" {
		return nil, errors.Errorf("unit %q: empty payload", name)
	}
	ev, err := language.NewEvaluable(src)
	if err != nil {
		return nil, errors.Wrapf(err, "unit %q: compile", name)
	}
	return New(name, loader, func() (Evaluator, error) {
		return exprEvaluator{eval: ev}, nil
	}), nil
}

type exprEvaluator struct {
	eval gval.Evaluable
}

func (e exprEvaluator) Evaluate(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	return e.eval(ctx, params)
}
