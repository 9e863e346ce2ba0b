package operations

import (
	"context"
	"fmt"
	"log/slog"

	"scdash/internal/dataprocessing"
	"scdash/internal/exporter"
)

// TablePersister stores an enriched table in a database.
type TablePersister interface {
	Replace(ctx context.Context, e *dataprocessing.EnrichedTable) error
}

// PipelineDeps are the components the pipeline steps run.
type PipelineDeps struct {
	Cache       *dataprocessing.TableCache
	LoadOptions dataprocessing.LoadOptions
	Cleaner     *dataprocessing.Cleaner
	Calculator  *dataprocessing.Calculator
	XLSX        *exporter.XLSXWriter
	CSV         *exporter.CSVWriter
	// DB may be nil when no database is configured.
	DB     TablePersister
	Logger *slog.Logger
}

// NewPipelineRegistry registers load, clean, calculate and persist.
func NewPipelineRegistry(deps PipelineDeps) (*Registry, error) {
	r := NewRegistry()
	steps := []Step{
		NewLoadStep(deps.Cache, deps.LoadOptions, deps.Logger),
		NewCleanStep(deps.Cleaner, deps.Logger),
		NewCalculateStep(deps.Calculator, deps.Logger),
		NewPersistStep(deps.XLSX, deps.CSV, deps.DB, deps.Logger),
	}
	for _, s := range steps {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadStep reads the source file through the table cache.
type LoadStep struct {
	BaseStage
	cache  *dataprocessing.TableCache
	opts   dataprocessing.LoadOptions
	logger *slog.Logger
}

// NewLoadStep creates the load step
func NewLoadStep(cache *dataprocessing.TableCache, opts dataprocessing.LoadOptions, logger *slog.Logger) *LoadStep {
	return &LoadStep{
		BaseStage: NewBaseStage(StepIDLoad, StepNameLoad),
		cache:     cache,
		opts:      opts,
		logger:    logger,
	}
}

// Validate requires an input file.
func (s *LoadStep) Validate(state *OperationState) error {
	if state.ConfigString(ConfigKeyInputFile) == "" {
		return NewValidationError(s.ID(), "input file is required")
	}
	return nil
}

// Execute loads the input table.
func (s *LoadStep) Execute(ctx context.Context, state *OperationState) error {
	path := state.ConfigString(ConfigKeyInputFile)

	table, key, err := s.cache.Load(ctx, path, s.opts)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyRawTable, table)
	state.SetContext(ContextKeyCacheKey, key)
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("rows", table.Len())
		st.SetMetadata("columns", len(table.Columns))
	}

	s.logger.InfoContext(ctx, "loaded source table",
		slog.String("operation_id", state.ID),
		slog.String("file", path),
		slog.Int("rows", table.Len()),
		slog.Int("columns", len(table.Columns)))
	return nil
}

// CleanStep normalizes labels and fills missing cells.
type CleanStep struct {
	BaseStage
	cleaner *dataprocessing.Cleaner
	logger  *slog.Logger
}

// NewCleanStep creates the clean step
func NewCleanStep(cleaner *dataprocessing.Cleaner, logger *slog.Logger) *CleanStep {
	return &CleanStep{
		BaseStage: NewBaseStage(StepIDClean, StepNameClean, StepIDLoad),
		cleaner:   cleaner,
		logger:    logger,
	}
}

// Execute cleans the loaded table.
func (s *CleanStep) Execute(ctx context.Context, state *OperationState) error {
	raw, err := contextValue[*dataprocessing.Table](state, ContextKeyRawTable)
	if err != nil {
		return err
	}

	cleaned, report := s.cleaner.Clean(raw)
	state.SetContext(ContextKeyCleanTable, cleaned)
	state.SetContext(ContextKeyCleanReport, report)
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("cells_filled", report.TotalFilled())
	}
	return nil
}

// CalculateStep derives the KPI columns.
type CalculateStep struct {
	BaseStage
	calc   *dataprocessing.Calculator
	logger *slog.Logger
}

// NewCalculateStep creates the calculate step
func NewCalculateStep(calc *dataprocessing.Calculator, logger *slog.Logger) *CalculateStep {
	return &CalculateStep{
		BaseStage: NewBaseStage(StepIDCalculate, StepNameCalculate, StepIDClean),
		calc:      calc,
		logger:    logger,
	}
}

// Execute enriches the cleaned table.
func (s *CalculateStep) Execute(ctx context.Context, state *OperationState) error {
	cleaned, err := contextValue[*dataprocessing.Table](state, ContextKeyCleanTable)
	if err != nil {
		return err
	}

	enriched, err := s.calc.Calculate(cleaned)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyEnriched, enriched)
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("undefined", enriched.Undefined)
		st.SetMetadata("warnings", len(enriched.Warnings))
	}
	return nil
}

// PersistStep writes the processed workbook, an optional CSV copy and,
// when requested, the database table.
type PersistStep struct {
	BaseStage
	xlsx   *exporter.XLSXWriter
	csv    *exporter.CSVWriter
	db     TablePersister
	logger *slog.Logger
}

// NewPersistStep creates the persist step. db may be nil.
func NewPersistStep(xlsx *exporter.XLSXWriter, csv *exporter.CSVWriter, db TablePersister, logger *slog.Logger) *PersistStep {
	return &PersistStep{
		BaseStage: NewBaseStage(StepIDPersist, StepNamePersist, StepIDCalculate),
		xlsx:      xlsx,
		csv:       csv,
		db:        db,
		logger:    logger,
	}
}

// Validate requires an output file, and a database when one is requested.
func (s *PersistStep) Validate(state *OperationState) error {
	if state.ConfigString(ConfigKeyOutputFile) == "" {
		return NewValidationError(s.ID(), "output file is required")
	}
	if state.ConfigBool(ConfigKeyPersistDB) && s.db == nil {
		return NewValidationError(s.ID(), "database persistence requested but no database is configured")
	}
	if state.ConfigString(ConfigKeyCSVFile) != "" && s.csv == nil {
		return NewValidationError(s.ID(), "CSV output requested but no CSV writer is configured")
	}
	return nil
}

// Execute writes every requested output.
func (s *PersistStep) Execute(ctx context.Context, state *OperationState) error {
	enriched, err := contextValue[*dataprocessing.EnrichedTable](state, ContextKeyEnriched)
	if err != nil {
		return err
	}

	output := state.ConfigString(ConfigKeyOutputFile)
	if err := s.xlsx.Write(output, enriched); err != nil {
		return err
	}

	if csvPath := state.ConfigString(ConfigKeyCSVFile); csvPath != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.csv.WriteEnriched(csvPath, enriched); err != nil {
			return err
		}
		state.SetContext(ContextKeyPersistedCSV, csvPath)
	}

	if state.ConfigBool(ConfigKeyPersistDB) {
		if err := s.db.Replace(ctx, enriched); err != nil {
			return fmt.Errorf("persist to database: %w", err)
		}
		state.SetContext(ContextKeyPersistedDB, true)
	}

	s.logger.InfoContext(ctx, "persisted results",
		slog.String("operation_id", state.ID),
		slog.String("output_file", output),
		slog.Bool("database", state.ConfigBool(ConfigKeyPersistDB)),
		slog.Int("rows", enriched.Len()))
	return nil
}
