// Package telemetry wires an OpenTelemetry tracer around node
// invocations and queue claims. Spans are created per event rather
// than held open across suspension points, and an unconfigured
// provider degrades to the otel SDK's own no-op tracer.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flowcraft/engine"

// Provider owns the process-wide TracerProvider and hands out a single
// tracer used for node and claim spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider creates a TracerProvider with no span processor attached;
// callers add a batcher via Option if they want spans exported
// anywhere. It is still safe to use: spans are created and ended
// normally, just not exported until a processor is registered.
func NewProvider(opts ...sdktrace.TracerProviderOption) *Provider {
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp, tracer: tp.Tracer(tracerName)}
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes and releases the underlying TracerProvider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartNodeSpan starts a span for one node invocation within a run.
func (p *Provider) StartNodeSpan(ctx context.Context, executionID, nodeID, nodeType string) (context.Context, trace.Span) {
	tracer := p.tracerOrNoop()
	return tracer.Start(ctx, "node.execute",
		trace.WithAttributes(
			attribute.String("flowcraft.execution_id", executionID),
			attribute.String("flowcraft.node_id", nodeID),
			attribute.String("flowcraft.node_type", nodeType),
		),
	)
}

// EndNodeSpan closes a node span, recording err (if any) as the span's
// status.
func EndNodeSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}

// StartClaimSpan starts a span for one worker's attempt to claim a
// batch of queued executions.
func (p *Provider) StartClaimSpan(ctx context.Context, workerID string, batchSize int) (context.Context, trace.Span) {
	tracer := p.tracerOrNoop()
	return tracer.Start(ctx, "queue.claim",
		trace.WithAttributes(
			attribute.String("flowcraft.worker_id", workerID),
			attribute.Int("flowcraft.batch_size", batchSize),
		),
	)
}

func (p *Provider) tracerOrNoop() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer(tracerName)
	}
	return p.tracer
}

// RecordClaimResult annotates a claim span with the outcome so
// internal/worker doesn't need to import otel/codes directly.
func RecordClaimResult(span trace.Span, claimed int, err error) {
	span.SetAttributes(attribute.Int("flowcraft.claimed_count", claimed))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}
