package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/engine/internal/apperr"
	"github.com/flowcraft/engine/internal/dsl"
	"github.com/flowcraft/engine/internal/registry"
	"github.com/flowcraft/engine/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to drive the
// worker loop without a database.
type fakeStore struct {
	mu         sync.Mutex
	versions   map[uuid.UUID]*store.WorkflowVersion
	executions map[uuid.UUID]*store.Execution
	claimFails map[uuid.UUID]bool
	logs       []store.ExecutionLog
	completed  map[uuid.UUID]map[string]any
	failed     map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		versions:   make(map[uuid.UUID]*store.WorkflowVersion),
		executions: make(map[uuid.UUID]*store.Execution),
		claimFails: make(map[uuid.UUID]bool),
		completed:  make(map[uuid.UUID]map[string]any),
		failed:     make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) CreateWorkflow(ctx context.Context, name string) (*store.Workflow, error) {
	return nil, nil
}
func (f *fakeStore) GetWorkflow(ctx context.Context, id uuid.UUID) (*store.Workflow, error) {
	return nil, nil
}
func (f *fakeStore) DeleteWorkflow(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeStore) PublishVersion(ctx context.Context, workflowID uuid.UUID, w dsl.WorkflowDSL) (*store.WorkflowVersion, error) {
	return nil, nil
}
func (f *fakeStore) GetVersion(ctx context.Context, id uuid.UUID) (*store.WorkflowVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[id]
	if !ok {
		return nil, apperr.SchedulerInternal("version %s not found", id)
	}
	return v, nil
}
func (f *fakeStore) GetCurrentVersion(ctx context.Context, workflowID uuid.UUID) (*store.WorkflowVersion, error) {
	return nil, nil
}
func (f *fakeStore) Enqueue(ctx context.Context, workflowID, versionID uuid.UUID, inputs map[string]any) (*store.Execution, error) {
	return nil, nil
}
func (f *fakeStore) GetExecution(ctx context.Context, id uuid.UUID) (*store.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executions[id], nil
}

func (f *fakeStore) ClaimBatch(ctx context.Context, workerID string, batchSize int) ([]store.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Execution
	for id, e := range f.executions {
		if len(out) >= batchSize {
			break
		}
		if e.Status != store.ExecutionPending {
			continue
		}
		if f.claimFails[id] {
			return nil, apperr.ClaimLost(id.String())
		}
		e.Status = store.ExecutionRunning
		e.ClaimedBy = workerID
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeStore) CompleteExecution(ctx context.Context, id uuid.UUID, outputs map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = outputs
	if e, ok := f.executions[id]; ok {
		e.Status = store.ExecutionSuccess
	}
	return nil
}

func (f *fakeStore) FailExecution(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	if e, ok := f.executions[id]; ok {
		e.Status = store.ExecutionError
	}
	return nil
}

func (f *fakeStore) AppendLog(ctx context.Context, workflowID, executionID uuid.UUID, nodeID string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, store.ExecutionLog{WorkflowID: workflowID, ExecutionID: executionID, NodeID: nodeID, Data: data, CreatedAt: time.Now()})
	return nil
}

func passthroughRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(&registry.NodeDefinition{
		ID: "pass",
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			return map[string]any{"value": params["value"]}, nil
		},
	})
	reg.Register(&registry.NodeDefinition{
		ID: "output",
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			return inputs, nil
		},
	})
	return reg
}

func simpleWorkflow() dsl.WorkflowDSL {
	return dsl.WorkflowDSL{
		DSLVersion: dsl.CurrentDSLVersion,
		Meta:       dsl.WorkflowMeta{Name: "wf"},
		Nodes: []dsl.Node{
			{ID: "a", Type: "pass", Params: map[string]dsl.ParamValue{
				"value": {Type: dsl.ParamInput, Path: "value"},
			}},
			{ID: "b", Type: "output"},
		},
		Edges: []dsl.Edge{{ID: "e1", Source: "a", Target: "b", SourceHandle: "value", TargetHandle: "value"}},
	}
}

func TestWorker_PollOnce_CompletesExecution(t *testing.T) {
	fs := newFakeStore()
	versionID := uuid.New()
	executionID := uuid.New()
	workflowID := uuid.New()
	fs.versions[versionID] = &store.WorkflowVersion{ID: versionID, WorkflowID: workflowID, DSL: simpleWorkflow()}
	fs.executions[executionID] = &store.Execution{
		ID:         executionID,
		WorkflowID: workflowID,
		VersionID:  versionID,
		Status:     store.ExecutionPending,
		Inputs:     map[string]any{"value": "hi"},
	}

	w := New(fs, passthroughRegistry(), Config{PollInterval: time.Hour, BatchSize: 5})
	w.pollOnce(context.Background())
	w.wg.Wait()

	require.Contains(t, fs.completed, executionID)
	assert.Equal(t, "hi", fs.completed[executionID]["b"].(map[string]any)["value"])
	assert.NotEmpty(t, fs.logs)
}

func TestWorker_PollOnce_ClaimLostIsNotAFailure(t *testing.T) {
	fs := newFakeStore()
	executionID := uuid.New()
	fs.executions[executionID] = &store.Execution{ID: executionID, Status: store.ExecutionPending}
	fs.claimFails[executionID] = true

	w := New(fs, passthroughRegistry(), Config{PollInterval: time.Hour, BatchSize: 5})
	w.pollOnce(context.Background())
	w.wg.Wait()

	assert.Empty(t, fs.completed)
	assert.Empty(t, fs.failed)
}

func TestWorker_PollOnce_NodeRuntimeErrorMarksFailed(t *testing.T) {
	fs := newFakeStore()
	versionID := uuid.New()
	executionID := uuid.New()
	workflowID := uuid.New()

	reg := registry.New()
	reg.Register(&registry.NodeDefinition{
		ID: "boom",
		Run: func(ctx context.Context, inputs, params map[string]any, rc registry.RunContext) (map[string]any, error) {
			return nil, apperr.SecretMissing("OPENAI_KEY")
		},
	})

	fs.versions[versionID] = &store.WorkflowVersion{
		ID: versionID, WorkflowID: workflowID,
		DSL: dsl.WorkflowDSL{
			DSLVersion: dsl.CurrentDSLVersion,
			Meta:       dsl.WorkflowMeta{Name: "wf"},
			Nodes:      []dsl.Node{{ID: "a", Type: "boom"}},
		},
	}
	fs.executions[executionID] = &store.Execution{ID: executionID, WorkflowID: workflowID, VersionID: versionID, Status: store.ExecutionPending}

	w := New(fs, reg, Config{PollInterval: time.Hour, BatchSize: 5})
	w.pollOnce(context.Background())
	w.wg.Wait()

	require.Contains(t, fs.failed, executionID)
	assert.Contains(t, fs.failed[executionID], "OPENAI_KEY")
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	fs := newFakeStore()
	w := New(fs, passthroughRegistry(), Config{PollInterval: time.Millisecond, BatchSize: 1})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
