// Package worker implements the polling worker loop: it claims batches
// of queued executions, runs each one through internal/exec, and
// persists results and logs. Shutdown drains in-flight executions
// before returning instead of dropping them mid-run.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowcraft/engine/internal/apperr"
	"github.com/flowcraft/engine/internal/dag"
	"github.com/flowcraft/engine/internal/exec"
	"github.com/flowcraft/engine/internal/metrics"
	"github.com/flowcraft/engine/internal/registry"
	"github.com/flowcraft/engine/internal/store"
	"github.com/flowcraft/engine/internal/telemetry"
)

// DefaultPollInterval and DefaultBatchSize are used when the
// environment does not override them.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 5
)

// Config holds the tunables read from environment variables at startup.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultConfig returns Config populated with its package defaults.
func DefaultConfig() Config {
	return Config{PollInterval: DefaultPollInterval, BatchSize: DefaultBatchSize}
}

// Worker polls store.Store for queued executions and runs them via
// internal/exec.
type Worker struct {
	ID       string
	Store    store.Store
	Registry *registry.Registry
	Executor *exec.Executor
	Metrics  *metrics.Metrics
	Tracer   *telemetry.Provider
	Limiter  Limiter
	cfg      Config

	wg sync.WaitGroup
}

// New creates a Worker with a freshly generated unique id.
func New(st store.Store, reg *registry.Registry, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Worker{
		ID:       uuid.New().String(),
		Store:    st,
		Registry: reg,
		Executor: exec.New(reg),
		cfg:      cfg,
	}
}

// Run polls until ctx is cancelled. On cancellation it stops scheduling
// new batches but waits for in-flight executions (the current batch)
// to finish before returning.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("worker starting", "workerId", w.ID, "pollInterval", w.cfg.PollInterval, "batchSize", w.cfg.BatchSize)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker shutting down, waiting for in-flight executions", "workerId", w.ID)
			w.wg.Wait()
			return nil
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

// pollOnce claims one batch and runs every claimed execution
// concurrently; each run is internally sequential.
func (w *Worker) pollOnce(ctx context.Context) {
	want := w.cfg.BatchSize
	if w.Limiter != nil {
		granted, err := w.Limiter.Reserve(ctx, w.ID, want)
		if err != nil {
			slog.Warn("worker lease reserve failed, proceeding unthrottled", "workerId", w.ID, "error", err)
		} else {
			want = granted
		}
	}
	if want <= 0 {
		return
	}

	claimCtx := ctx
	var span trace.Span
	if w.Tracer != nil {
		claimCtx, span = w.Tracer.StartClaimSpan(ctx, w.ID, want)
	}

	claimed, err := w.Store.ClaimBatch(claimCtx, w.ID, want)
	if span != nil {
		telemetry.RecordClaimResult(span, len(claimed), err)
		span.End()
	}
	if err != nil {
		if apperrKind, ok := apperr.KindOf(err); ok && apperrKind == apperr.KindClaimLost {
			slog.Info("claim lost to another worker, continuing", "workerId", w.ID)
			return
		}
		slog.Error("failed to claim batch", "workerId", w.ID, "error", err)
		return
	}

	for _, execution := range claimed {
		w.Metrics.ClaimedExecution()
		w.wg.Add(1)
		go func(e store.Execution) {
			defer w.wg.Done()
			w.runOne(ctx, e)
		}(execution)
	}
}

// runOne loads the execution's frozen workflow version, runs it through
// internal/exec, and persists the outcome.
func (w *Worker) runOne(ctx context.Context, execution store.Execution) {
	logger := slog.With("workerId", w.ID, "executionId", execution.ID.String())
	// Persistence outlives shutdown so a drained run still records its outcome.
	persistCtx := context.WithoutCancel(ctx)

	version, err := w.Store.GetVersion(persistCtx, execution.VersionID)
	if err != nil {
		logger.Error("failed to load workflow version", "error", err)
		w.fail(persistCtx, execution.ID, err)
		return
	}

	order, err := dag.BuildExecutionOrder(version.DSL.Nodes, version.DSL.Edges)
	if err != nil {
		logger.Error("failed to build execution order", "error", err)
		w.fail(persistCtx, execution.ID, err)
		return
	}

	state := exec.NewExecutionState(execution.ID.String(), execution.WorkflowID.String(), execution.Inputs, map[string]any{})
	state.WriteLog = func(nodeID string, data any) error {
		return w.Store.AppendLog(persistCtx, execution.WorkflowID, execution.ID, nodeID, logPayload(data))
	}

	var nodeSpan trace.Span
	var nodeStarted time.Time
	var currentNodeType string
	state.OnNodeStart = func(nodeID, nodeType string) {
		nodeStarted = time.Now()
		currentNodeType = nodeType
		if w.Tracer != nil {
			_, nodeSpan = w.Tracer.StartNodeSpan(ctx, execution.ID.String(), nodeID, nodeType)
		}
		if err := w.Store.AppendLog(persistCtx, execution.WorkflowID, execution.ID, nodeID, map[string]any{"message": "Executing " + nodeType}); err != nil {
			logger.Warn("failed to append node-start log", "nodeId", nodeID, "error", err)
		}
	}
	state.OnNodeComplete = func(nodeID string, output map[string]any) {
		w.Metrics.ObserveNodeDuration(currentNodeType, "success", time.Since(nodeStarted))
		if nodeSpan != nil {
			telemetry.EndNodeSpan(nodeSpan, nil)
			nodeSpan = nil
		}
	}

	result, err := w.Executor.Execute(ctx, version.DSL, order, state)
	if nodeSpan != nil {
		telemetry.EndNodeSpan(nodeSpan, err)
		nodeSpan = nil
	}
	if err != nil {
		w.Metrics.ObserveNodeDuration(currentNodeType, "error", time.Since(nodeStarted))
		logger.Warn("execution failed", "error", err)
		w.fail(persistCtx, execution.ID, err)
		return
	}

	if err := w.Store.CompleteExecution(persistCtx, execution.ID, result.Outputs); err != nil {
		logger.Error("failed to mark execution completed", "error", err)
		return
	}
	w.Metrics.CompletedExecution()
	logger.Info("execution completed", "outputCount", len(result.Outputs))
}

// logPayload normalizes an arbitrary value written by a node via
// rc.WriteLog into the map[string]any shape execution_logs.data stores.
// Values that already marshal to a JSON object are kept as-is; anything
// else (a string, a number, a slice) is wrapped under "value" so it
// still round-trips through the JSONB column.
func logPayload(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return map[string]any{"value": fmt.Sprintf("%v", data)}
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err == nil {
		return m
	}
	return map[string]any{"value": data}
}

func (w *Worker) fail(ctx context.Context, id uuid.UUID, cause error) {
	if err := w.Store.FailExecution(ctx, id, apperr.Message(cause)); err != nil {
		slog.Error("failed to mark execution failed", "workerId", w.ID, "executionId", id.String(), "markError", err, "cause", cause)
		return
	}
	w.Metrics.FailedExecution()
}
