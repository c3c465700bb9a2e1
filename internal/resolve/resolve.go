// Package resolve implements the parameter resolver: it turns a
// ParamValue reference into a plain value against a running
// execution's state, and assembles a node's port inputs from the edges
// feeding it.
package resolve

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/flowcraft/engine/internal/apperr"
	"github.com/flowcraft/engine/internal/dsl"
)

// State is the minimal view of a running execution's state that the
// resolver needs. internal/exec.ExecutionState satisfies it.
type State interface {
	Secret(ref string) (any, bool)
	Input(path string) any
	Output(nodeID, port string) (any, bool)
}

// Param resolves a single ParamValue against state.
//
//   - static  -> the literal value, unchanged.
//   - secret  -> state.Secret(ref); apperr.SecretMissing if absent.
//   - input   -> dot-path lookup into workflow inputs; a missing or null
//     step returns nil (distinguishing the two is a declared non-goal).
func Param(pv dsl.ParamValue, state State) (any, error) {
	switch pv.Type {
	case dsl.ParamStatic:
		return pv.Value, nil
	case dsl.ParamSecret:
		v, ok := state.Secret(pv.Ref)
		if !ok {
			return nil, apperr.SecretMissing(pv.Ref)
		}
		return v, nil
	case dsl.ParamInput:
		return state.Input(pv.Path), nil
	default:
		return nil, apperr.Validation("unknown param value type %q", pv.Type)
	}
}

// Params resolves every entry of a node's Params map.
func Params(params map[string]dsl.ParamValue, state State) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for name, pv := range params {
		v, err := Param(pv, state)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// PortInputs assembles a node's input port values from its incoming
// edges: for each edge (source, sourceHandle) -> (target, targetHandle)
// targeting nodeID, it reads state.Output(source, sourceHandle) and
// writes it into inputs[targetHandle]. Edges to unexecuted sources
// yield nil, which may indicate a pruned branch. Multiple edges
// targeting the same port are last-write-wins in edge order.
func PortInputs(nodeID string, edges []dsl.Edge, state State) map[string]any {
	inputs := make(map[string]any)
	for _, e := range edges {
		if e.Target != nodeID {
			continue
		}
		v, _ := state.Output(e.Source, e.SourceHandle)
		inputs[e.TargetHandle] = v
	}
	return inputs
}

// inputPath descends a dot-separated path into a plain Go value by
// round-tripping through JSON and gjson's path syntax. Returning nil on
// a missing or null step is deliberate: the two are not distinguished.
func inputPath(root map[string]any, path string) any {
	if path == "" {
		return nil
	}
	data, err := json.Marshal(root)
	if err != nil {
		return nil
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(res.Raw), &v); err != nil {
		// Raw may not be valid JSON on its own for scalars wrapped oddly;
		// fall back to gjson's typed accessor.
		return res.Value()
	}
	return v
}

// InputPath is exported so internal/exec's ExecutionState.Input can
// reuse the same dot-path semantics without duplicating the gjson glue.
func InputPath(root map[string]any, path string) any {
	return inputPath(root, path)
}
