package exec

import (
	"sync"

	"github.com/flowcraft/engine/internal/resolve"
)

// ExecutionState is the per-run state threaded through the scheduler.
// Once state.Outputs[n] is set it is never mutated.
type ExecutionState struct {
	ExecutionID string
	WorkflowID  string

	Inputs  map[string]any
	Secrets map[string]any

	mu      sync.Mutex
	Outputs map[string]map[string]any

	Logs        []string
	CurrentNode string
	Err         string

	// WriteLog, when non-nil, persists arbitrary JSON against
	// (WorkflowID, ExecutionID, NodeID) — bound to the database by the
	// worker, left nil in tests that don't care about side-channel logs.
	WriteLog func(nodeID string, data any) error

	OnNodeStart    func(nodeID, nodeType string)
	OnNodeComplete func(nodeID string, output map[string]any)
}

// NewExecutionState creates a ready-to-run ExecutionState.
func NewExecutionState(executionID, workflowID string, inputs, secrets map[string]any) *ExecutionState {
	if inputs == nil {
		inputs = map[string]any{}
	}
	if secrets == nil {
		secrets = map[string]any{}
	}
	return &ExecutionState{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Inputs:      inputs,
		Secrets:     secrets,
		Outputs:     make(map[string]map[string]any),
	}
}

// Secret satisfies resolve.State.
func (s *ExecutionState) Secret(ref string) (any, bool) {
	v, ok := s.Secrets[ref]
	return v, ok
}

// Input satisfies resolve.State: a dot-path lookup into workflow inputs.
func (s *ExecutionState) Input(path string) any {
	return resolve.InputPath(s.Inputs, path)
}

// Output satisfies resolve.State: the value of a previously executed
// node's output port, or (nil, false) if the node has not produced
// output yet (e.g. it was skipped).
func (s *ExecutionState) Output(nodeID, port string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.Outputs[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := n[port]
	return v, ok
}

// SetOutput records a node's output map. The scheduler never calls this
// twice for the same nodeID, since each node id is visited at most once
// per run.
func (s *ExecutionState) SetOutput(nodeID string, output map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if output == nil {
		output = map[string]any{}
	}
	s.Outputs[nodeID] = output
}

// NodeOutputs returns the full output map recorded for nodeID, and
// whether that node has executed at all.
func (s *ExecutionState) NodeOutputs(nodeID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Outputs[nodeID]
	return v, ok
}

func (s *ExecutionState) appendLog(line string) {
	s.Logs = append(s.Logs, line)
}
