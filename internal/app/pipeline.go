package app

import (
	"log/slog"

	"scdash/internal/config"
	"scdash/internal/dataprocessing"
	"scdash/internal/exporter"
	"scdash/internal/infrastructure"
	"scdash/internal/operations"
	"scdash/internal/storage"
)

// Pipeline bundles the ETL components shared by the web server and the
// batch processor.
type Pipeline struct {
	Cache       *dataprocessing.TableCache
	LoadOptions dataprocessing.LoadOptions
	Cleaner     *dataprocessing.Cleaner
	Calculator  *dataprocessing.Calculator
	Manager     *operations.Manager
}

// BuildPipeline wires load, clean, calculate and persist from cfg. store
// may be nil, in which case runs asking for database persistence fail
// validation.
func BuildPipeline(cfg *config.Config, store *storage.Store, providers *infrastructure.OTelProviders,
	metrics *infrastructure.PipelineMetrics, logger *slog.Logger) (*Pipeline, error) {
	fills, err := dataprocessing.ParseFillDefaults(cfg.Pipeline.FillDefaults)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Cache:      dataprocessing.NewTableCache(metrics),
		Cleaner:    dataprocessing.NewCleaner(fills, logger),
		Calculator: dataprocessing.NewCalculator(cfg.Pipeline.DelayThresholdDays, logger),
	}

	deps := operations.PipelineDeps{
		Cache:       p.Cache,
		LoadOptions: p.LoadOptions,
		Cleaner:     p.Cleaner,
		Calculator:  p.Calculator,
		XLSX:        exporter.NewXLSXWriter(logger),
		CSV:         exporter.NewCSVWriter(logger),
		Logger:      logger,
	}
	if store != nil {
		deps.DB = store
	}
	registry, err := operations.NewPipelineRegistry(deps)
	if err != nil {
		return nil, err
	}

	p.Manager = operations.NewManager(registry,
		&operations.Config{StepTimeout: cfg.Pipeline.StepTimeout},
		operations.NewOperationTracer(providers, metrics),
		logger)
	return p, nil
}
