package http

import (
	"context"
	"io"

	"scdash/internal/dataprocessing"
	"scdash/internal/operations"
)

// PipelineServiceInterface defines the pipeline operations handlers use.
type PipelineServiceInterface interface {
	Run(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
	SaveUpload(ctx context.Context, name string, r io.Reader) (string, error)
	ClearCache(ctx context.Context) int
	CacheStats() dataprocessing.CacheStats
	LastRun() *operations.OperationResponse
	Source() string
	ProcessedFile() string
}
