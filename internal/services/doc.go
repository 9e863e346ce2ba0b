// Package services holds the application logic behind the HTTP handlers
// and the batch processor.
//
// PipelineService runs the ETL pipeline and owns the active source file.
// Runs are serialized because every run overwrites the same artifacts.
// DashboardService rebuilds the enriched table per request and serves
// filtered views of it. ForecastService trains or reloads the demand
// model. HealthService reports liveness, readiness and build information.
//
// Services take their collaborators through constructors and log with an
// injected *slog.Logger:
//
//	pipeline := services.NewPipelineService(manager, cache, paths, cfg.Pipeline.PersistDB, logger)
//	resp, err := pipeline.Run(ctx, operations.OperationRequest{})
package services
