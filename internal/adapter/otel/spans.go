package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tubedigest"

// StartTaskSpan starts a span for one task served by an agent.
func StartTaskSpan(ctx context.Context, agent, taskID, parentID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, agent+".task",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.parent_id", parentID),
		),
	)
}

// StartDelegationSpan starts a span for a delegation to a peer agent.
func StartDelegationSpan(ctx context.Context, peer, taskID string, stream bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delegate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("delegation.peer", peer),
			attribute.String("delegation.task_id", taskID),
			attribute.Bool("delegation.stream", stream),
		),
	)
}

// StartToolCallSpan starts a span for a tool call.
func StartToolCallSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("toolcall.tool", tool),
		),
	)
}
