// Package cel evaluates CEL expressions against document nodes. The node
// under evaluation is bound to the variable "_".
package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	celext "github.com/google/cel-go/ext"
)

// Evaluator compiles CEL predicates.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an evaluator with the standard extension libraries.
func NewEvaluator() (*Evaluator, error) {
	env, err := newStandardCELEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// newStandardCELEnv creates a CEL environment with common extensions.
func newStandardCELEnv(opts ...cel.EnvOption) (*cel.Env, error) {
	allOpts := make([]cel.EnvOption, 0, 5+len(opts))
	allOpts = append(allOpts,
		cel.Variable("_", cel.DynType),
		celext.Strings(),
		celext.Encoders(),
		celext.Lists(),
		celext.Math(),
	)
	allOpts = append(allOpts, opts...)
	return cel.NewEnv(allOpts...)
}

// Predicate is a compiled boolean expression.
type Predicate struct {
	expr string
	prg  cel.Program
}

// Compile compiles a boolean predicate. Expressions whose static type is
// neither bool nor dyn are rejected.
func (e *Evaluator) Compile(expr string) (*Predicate, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(types.BoolType) && !out.IsExactType(types.DynType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expr, out)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Predicate{expr: expr, prg: prg}, nil
}

// Match evaluates the predicate against data. Runtime errors (a missing
// key, for example) are returned so callers can treat them as misses.
func (p *Predicate) Match(data interface{}) (bool, error) {
	out, _, err := p.prg.Eval(map[string]interface{}{"_": data})
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %s, not bool", p.expr, out.Type())
	}
	return bool(b), nil
}

// String returns the source expression.
func (p *Predicate) String() string {
	return p.expr
}
