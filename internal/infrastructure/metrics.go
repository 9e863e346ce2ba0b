package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the application instruments. A nil *PipelineMetrics
// is valid and records nothing.
type PipelineMetrics struct {
	RunsTotal            metric.Int64Counter
	StepDuration         metric.Float64Histogram
	RowsProcessed        metric.Int64Counter
	UndefinedMetrics     metric.Int64Counter
	ForecastTrainingRuns metric.Int64Counter
	CacheHits            metric.Int64Counter
	CacheMisses          metric.Int64Counter
	HTTPRequestsTotal    metric.Int64Counter
	HTTPRequestDuration  metric.Float64Histogram
}

// NewPipelineMetrics creates every instrument on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var err error

	if m.RunsTotal, err = meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Total number of ETL pipeline runs")); err != nil {
		return nil, err
	}
	if m.StepDuration, err = meter.Float64Histogram("pipeline_step_duration_seconds",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.RowsProcessed, err = meter.Int64Counter("pipeline_rows_processed_total",
		metric.WithDescription("Rows written by the pipeline")); err != nil {
		return nil, err
	}
	if m.UndefinedMetrics, err = meter.Int64Counter("kpi_undefined_metrics_total",
		metric.WithDescription("Derived metrics left undefined by a zero denominator")); err != nil {
		return nil, err
	}
	if m.ForecastTrainingRuns, err = meter.Int64Counter("forecast_training_runs_total",
		metric.WithDescription("Demand model training runs")); err != nil {
		return nil, err
	}
	if m.CacheHits, err = meter.Int64Counter("table_cache_hits_total",
		metric.WithDescription("Table cache lookups served from memory")); err != nil {
		return nil, err
	}
	if m.CacheMisses, err = meter.Int64Counter("table_cache_misses_total",
		metric.WithDescription("Table cache lookups that parsed the file")); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "failure")
	}
	return attribute.String("status", "success")
}

// RecordRun counts a finished pipeline run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.RunsTotal.Add(ctx, 1, metric.WithAttributes(statusAttr(err)))
}

// RecordStep records one step's duration.
func (m *PipelineMetrics) RecordStep(ctx context.Context, step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("step", step), statusAttr(err)))
}

// RecordRows counts rows that made it through a run.
func (m *PipelineMetrics) RecordRows(ctx context.Context, rows int) {
	if m == nil {
		return
	}
	m.RowsProcessed.Add(ctx, int64(rows))
}

// RecordUndefined counts undefined values per derived metric.
func (m *PipelineMetrics) RecordUndefined(ctx context.Context, counts map[string]int) {
	if m == nil {
		return
	}
	for name, n := range counts {
		if n > 0 {
			m.UndefinedMetrics.Add(ctx, int64(n), metric.WithAttributes(attribute.String("metric", name)))
		}
	}
}

// RecordTraining counts a forecast training run.
func (m *PipelineMetrics) RecordTraining(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.ForecastTrainingRuns.Add(ctx, 1, metric.WithAttributes(statusAttr(err)))
}

// RecordCacheLookup counts a table cache hit or miss.
func (m *PipelineMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Add(ctx, 1)
		return
	}
	m.CacheMisses.Add(ctx, 1)
}

// RecordHTTPRequest records one served request.
func (m *PipelineMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, d.Seconds(), attrs)
}
