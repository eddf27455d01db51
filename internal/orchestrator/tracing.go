package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing span names and attribute keys, grounded on the reference
// repository's internal/domain/agent/react/tracing.go.
const (
	traceScope = "agentcore.orchestrator"

	traceSpanIteration = "agentcore.orchestrator.iteration"

	traceAttrSessionID = "agentcore.session_id"
	traceAttrIteration = "agentcore.iteration"
	traceAttrStep      = "agentcore.workflow_step"
	traceAttrStatus    = "agentcore.status"
)

func startIterationSpan(ctx context.Context, state *State, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(extra)+3)
	if state != nil {
		attrs = append(attrs,
			attribute.String(traceAttrSessionID, state.SessionID),
			attribute.Int(traceAttrIteration, state.Iteration),
			attribute.String(traceAttrStep, string(state.Step)),
		)
	}
	attrs = append(attrs, extra...)
	return otel.Tracer(traceScope).Start(ctx, traceSpanIteration, trace.WithAttributes(attrs...))
}

func markSpanResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "success"))
}
