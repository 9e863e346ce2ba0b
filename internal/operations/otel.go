package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scdash/internal/infrastructure"
)

const (
	TracerName = "scdash.operation"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs.
// The zero value falls back to the global tracer and records no metrics.
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer backed by the given providers. Both
// arguments may be nil.
func NewOperationTracer(providers *infrastructure.OTelProviders, metrics *infrastructure.PipelineMetrics) *OperationTracer {
	t := &OperationTracer{tracer: otel.Tracer(TracerName), metrics: metrics}
	if providers != nil && providers.TracerProvider != nil {
		t.tracer = providers.TracerProvider.Tracer(TracerName)
	}
	return t
}

// TraceOperationExecution creates a span for the entire operation execution
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, req OperationRequest) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", req.ID),
			attribute.String("operation.input_file", req.InputFile),
			attribute.String("operation.output_file", req.OutputFile),
			attribute.Bool("operation.persist_db", req.PersistsDB()),
		),
	)
}

// TraceStepExecution creates a span for one step
func (pt *OperationTracer) TraceStepExecution(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordStepCompletion ends the step span and records its duration.
func (pt *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	pt.metrics.RecordStep(ctx, stepID, duration, err)
}

// RecordOperationCompletion ends the run span and records run metrics.
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, summary *RunSummary, err error) {
	if summary != nil {
		span.SetAttributes(
			attribute.Int("operation.rows", summary.Rows),
			attribute.Bool("operation.persisted_db", summary.PersistedDB),
		)
		pt.metrics.RecordRows(ctx, summary.Rows)
		pt.metrics.RecordUndefined(ctx, summary.Undefined)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	pt.metrics.RecordRun(ctx, err)
}
