package nodes

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// celEvaluator evaluates boolean CEL expressions against a node's
// resolved inputs and params, caching compiled programs by expression
// text, grounded in the orchestrator example's condition.Evaluator.
type celEvaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

func newCELEvaluator() *celEvaluator {
	return &celEvaluator{cache: make(map[string]cel.Program)}
}

// EvalBool compiles (or reuses a cached compile of) expr and evaluates
// it with "input" bound to inputs and "params" bound to params. The
// expression must produce a bool.
func (e *celEvaluator) EvalBool(expr string, inputs, params map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{"input": inputs, "params": params})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return a boolean, got %T", out.Value())
	}
	return result, nil
}

func (e *celEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("input", cel.DynType),
		cel.Variable("params", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile CEL expression %q: %w", expr, issues.Err())
	}
	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build CEL program for %q: %w", expr, err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// isTruthy is the fallback used when a branching node has no CEL
// expression configured: a plain JS-ish truthiness check on the value
// flowing into its "value" input port.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
