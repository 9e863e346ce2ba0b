// Package operations runs the supply-chain ETL pipeline as a sequence of
// registered steps: load, clean, calculate and persist.
//
// Manager executes the steps of a Registry in dependency order, passing
// intermediate tables through OperationState. Each run gets a UUID, a span
// per step and step duration metrics. The context is checked between
// steps; a failed step marks the remaining ones as skipped. Steps are never
// retried.
//
//	registry, err := operations.NewPipelineRegistry(deps)
//	manager := operations.NewManager(registry, operations.NewConfig(), tracer, logger)
//	resp, err := manager.Execute(ctx, operations.OperationRequest{
//		InputFile:  paths.InputFile,
//		OutputFile: paths.ProcessedFile,
//	})
package operations
