package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"scdash/internal/config"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/files"
	"scdash/internal/operations"
)

// UploadBaseName is the file name, without extension, of uploaded sources.
const UploadBaseName = "uploaded_source"

// PipelineService runs the ETL pipeline against the active source file.
type PipelineService struct {
	mu        sync.Mutex
	manager   *operations.Manager
	cache     *dataprocessing.TableCache
	paths     *config.Paths
	persistDB bool
	logger    *slog.Logger

	stateMu  sync.RWMutex
	source string
	last   *operations.OperationResponse
}

// NewPipelineService creates the service. The initial source is the newest
// earlier upload in the data directory, else the configured input file.
func NewPipelineService(manager *operations.Manager, cache *dataprocessing.TableCache, paths *config.Paths, persistDB bool, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "pipeline_service"))

	source := paths.InputFile
	if latest, ok := files.NewDiscovery(paths.DataDir).LatestSource(UploadBaseName); ok {
		source = latest.Path
		logger.Info("resuming from earlier upload", slog.String("file", source))
	}

	return &PipelineService{
		manager:   manager,
		cache:     cache,
		paths:     paths,
		persistDB: persistDB,
		source:    source,
		logger:    logger,
	}
}

// Source returns the file the dashboard and pipeline currently read.
func (s *PipelineService) Source() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.source
}

// ProcessedFile returns where the processed workbook is written.
func (s *PipelineService) ProcessedFile() string {
	return s.paths.ProcessedFile
}

// LastRun returns the response of the most recent run, or nil.
func (s *PipelineService) LastRun() *operations.OperationResponse {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.last
}

// Run executes the pipeline. Empty paths default to the active source and
// the configured processed file; a nil PersistDB takes the configured DB
// setting while an explicit false skips the database.
// Concurrent calls run one after another.
func (s *PipelineService) Run(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	if req.InputFile == "" {
		req.InputFile = s.Source()
	}
	if req.OutputFile == "" {
		req.OutputFile = s.paths.ProcessedFile
	}
	if req.PersistDB == nil {
		persist := s.persistDB
		req.PersistDB = &persist
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.InfoContext(ctx, "pipeline run requested",
		slog.String("input_file", req.InputFile),
		slog.Bool("persist_db", req.PersistsDB()))

	resp, err := s.manager.Execute(ctx, req)

	s.stateMu.Lock()
	s.last = resp
	s.stateMu.Unlock()
	return resp, err
}

// SaveUpload stores an uploaded source file in the data directory and
// makes it the active source. name only selects the format.
func (s *PipelineService) SaveUpload(ctx context.Context, name string, r io.Reader) (string, error) {
	format, err := dataprocessing.DetectFormat(name)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(s.paths.DataDir, UploadBaseName+"."+string(format))
	if err := writeAtomic(dest, r); err != nil {
		return "", err
	}

	s.stateMu.Lock()
	s.source = dest
	s.stateMu.Unlock()

	if n, err := files.NewDiscovery(s.paths.DataDir).PruneSources(UploadBaseName, dest); err != nil {
		s.logger.WarnContext(ctx, "cannot remove earlier uploads", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.DebugContext(ctx, "removed earlier uploads", slog.Int("count", n))
	}

	s.logger.InfoContext(ctx, "source file uploaded",
		slog.String("name", name),
		slog.String("file", dest))
	return dest, nil
}

// ClearCache drops every parsed table and returns how many were removed.
func (s *PipelineService) ClearCache(ctx context.Context) int {
	n := s.cache.Clear()
	s.logger.InfoContext(ctx, "table cache cleared", slog.Int("entries", n))
	return n
}

// CacheStats reports the table cache counters.
func (s *PipelineService) CacheStats() dataprocessing.CacheStats {
	return s.cache.Stats()
}

func writeAtomic(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewIOError(fmt.Sprintf("cannot create directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return apperrors.NewIOError("cannot create upload file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return apperrors.NewIOError("cannot store upload", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewIOError("cannot store upload", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return apperrors.NewIOError("cannot store upload", err)
	}
	return nil
}
