// Package exec implements the workflow executor: the per-run state
// machine that walks a topological order, resolves inputs and params,
// invokes node contracts, and implements conditional branch pruning.
// It is intentionally single-threaded within a run — nodes execute one
// at a time; parallelism happens across runs and across workers.
package exec

import (
	"context"
	"fmt"

	"github.com/flowcraft/engine/internal/apperr"
	"github.com/flowcraft/engine/internal/dsl"
	"github.com/flowcraft/engine/internal/registry"
	"github.com/flowcraft/engine/internal/resolve"
)

// Executor walks a DSL workflow's topological order against a registry
// of node definitions.
type Executor struct {
	Registry *registry.Registry
}

// New creates an Executor bound to a node registry.
func New(reg *registry.Registry) *Executor {
	return &Executor{Registry: reg}
}

// Result is the outcome of one run.
type Result struct {
	Status  string // "success" | "error"
	Outputs map[string]any
	Error   string
}

// Execute runs workflow w's nodes in the given topological order against
// state, which already carries workflow-level inputs and secrets. order
// is expected to come from dag.BuildExecutionOrder on an already-validated
// graph — Execute does not re-validate node types or detect cycles.
func (ex *Executor) Execute(ctx context.Context, w dsl.WorkflowDSL, order []string, state *ExecutionState) (*Result, error) {
	nodeByID := make(map[string]dsl.Node, len(w.Nodes))
	for _, n := range w.Nodes {
		nodeByID[n.ID] = n
	}

	incoming := make(map[string][]string) // target -> unique source ids
	outgoing := make(map[string][]dsl.Edge) // source -> its outgoing edges
	seenDep := make(map[string]map[string]bool)
	for _, e := range w.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e)
		if seenDep[e.Target] == nil {
			seenDep[e.Target] = make(map[string]bool)
		}
		if !seenDep[e.Target][e.Source] {
			seenDep[e.Target][e.Source] = true
			incoming[e.Target] = append(incoming[e.Target], e.Source)
		}
	}

	executed := make(map[string]bool, len(order))
	skipped := make(map[string]bool, len(order))

	for _, nodeID := range order {
		if executed[nodeID] || skipped[nodeID] {
			continue
		}

		// Dependency gate: a predecessor that did not execute was
		// pruned by a conditional branch, so this node (and, by the
		// same gate on later iterations, everything downstream of it)
		// must be pruned too.
		depsOK := true
		for _, dep := range incoming[nodeID] {
			if !executed[dep] {
				depsOK = false
				break
			}
		}
		if !depsOK {
			skipped[nodeID] = true
			continue
		}

		node, ok := nodeByID[nodeID]
		if !ok {
			return nil, ex.fail(state, apperr.SchedulerInternal("node %q missing from workflow during walk", nodeID))
		}

		def, ok := ex.Registry.Get(node.Type)
		if !ok {
			return nil, ex.fail(state, apperr.SchedulerInternal("node type %q not registered", node.Type))
		}

		state.CurrentNode = nodeID
		if state.OnNodeStart != nil {
			state.OnNodeStart(nodeID, node.Type)
		}
		state.appendLog(fmt.Sprintf("[%s] Executing %s", nodeID, node.Type))

		inputs := resolve.PortInputs(nodeID, w.Edges, state)
		params, err := resolve.Params(node.Params, state)
		if err != nil {
			return nil, ex.fail(state, err)
		}

		rc := registry.RunContext{
			NodeID:         nodeID,
			ExecutionID:    state.ExecutionID,
			WorkflowID:     state.WorkflowID,
			WorkflowInputs: copyMap(state.Inputs),
			Log:            func(msg string) { state.appendLog(fmt.Sprintf("[%s] %s", nodeID, msg)) },
			Done:           ctx.Done(),
		}
		if state.WriteLog != nil {
			rc.WriteLog = func(data any) error { return state.WriteLog(nodeID, data) }
		}

		output, err := def.Run(ctx, inputs, params, rc)
		if err != nil {
			return nil, ex.fail(state, apperr.NodeRuntime(nodeID, err))
		}

		state.SetOutput(nodeID, output)
		executed[nodeID] = true
		if state.OnNodeComplete != nil {
			state.OnNodeComplete(nodeID, output)
		}
		state.appendLog(fmt.Sprintf("[%s] Completed", nodeID))

		if def.Branch != nil {
			if taken := def.Branch(output); taken != nil {
				takenSet := make(map[string]bool, len(taken))
				for _, h := range taken {
					takenSet[h] = true
				}
				for _, e := range outgoing[nodeID] {
					if !takenSet[e.SourceHandle] {
						skipped[e.Target] = true
					}
				}
			}
		}
	}

	outputs := DeriveOutputs(w, state)
	return &Result{Status: "success", Outputs: outputs}, nil
}

// fail records the failure message on state and returns the typed error.
// The first failure stops the walk; downstream nodes are neither
// executed nor marked skipped.
func (ex *Executor) fail(state *ExecutionState, err error) error {
	state.Err = apperr.Message(err)
	node := state.CurrentNode
	if node != "" {
		state.appendLog(fmt.Sprintf("[%s] Error: %s", node, err.Error()))
	}
	return err
}

// DeriveOutputs collects workflow-level outputs: state.Outputs[n] for
// every node n whose type is "output" OR which has no outgoing edges
// (a sink), keyed by n.Label (falling back to n.ID).
func DeriveOutputs(w dsl.WorkflowDSL, state *ExecutionState) map[string]any {
	hasOutgoing := make(map[string]bool, len(w.Nodes))
	for _, e := range w.Edges {
		hasOutgoing[e.Source] = true
	}

	outputs := make(map[string]any)
	for _, n := range w.Nodes {
		if n.Type != "output" && hasOutgoing[n.ID] {
			continue
		}
		nodeOut, present := state.NodeOutputs(n.ID)
		if !present {
			continue
		}
		key := n.Label
		if key == "" {
			key = n.ID
		}
		outputs[key] = nodeOut
	}
	return outputs
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
