package operations

import (
	"time"
)

// Step identifiers of the ETL pipeline
const (
	StepIDLoad      = "load"
	StepIDClean     = "clean"
	StepIDCalculate = "calculate"
	StepIDPersist   = "persist"
)

// Step names
const (
	StepNameLoad      = "Load Source Data"
	StepNameClean     = "Clean Data"
	StepNameCalculate = "Derive KPIs"
	StepNamePersist   = "Persist Results"
)

// Keys of values passed between steps through OperationState.Context
const (
	ContextKeyRawTable     = "raw_table"
	ContextKeyCacheKey     = "cache_key"
	ContextKeyCleanTable   = "clean_table"
	ContextKeyCleanReport  = "clean_report"
	ContextKeyEnriched     = "enriched"
	ContextKeyPersistedDB  = "persisted_db"
	ContextKeyPersistedCSV = "persisted_csv"
)

// Keys of request values in OperationState.Config
const (
	ConfigKeyInputFile  = "input_file"
	ConfigKeyOutputFile = "output_file"
	ConfigKeyCSVFile    = "csv_file"
	ConfigKeyPersistDB  = "persist_db"
)

// DefaultStepTimeout bounds a single step when no timeout is configured.
const DefaultStepTimeout = 5 * time.Minute

// OperationRequest describes one pipeline run.
type OperationRequest struct {
	ID         string `json:"id"`
	InputFile  string `json:"input_file" validate:"required"`
	OutputFile string `json:"output_file" validate:"required"`
	// CSVFile additionally writes the enriched table as CSV when set.
	CSVFile string `json:"csv_file,omitempty"`
	// PersistDB nil leaves the database choice to the caller's configuration.
	PersistDB *bool `json:"persist_db,omitempty"`
}

// PersistsDB reports whether the run writes the enriched table to the database.
func (r OperationRequest) PersistsDB() bool {
	return r.PersistDB != nil && *r.PersistDB
}

// RunSummary describes what a completed run produced.
type RunSummary struct {
	Rows        int            `json:"rows"`
	Columns     int            `json:"columns"`
	CacheKey    string         `json:"cache_key,omitempty"`
	Filled      map[string]int `json:"filled,omitempty"`
	Undefined   map[string]int `json:"undefined,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	OutputFile  string         `json:"output_file"`
	CSVFile     string         `json:"csv_file,omitempty"`
	PersistedDB bool           `json:"persisted_db"`
}

// OperationResponse represents the response from a operation execution
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Summary  *RunSummary           `json:"summary,omitempty"`
	Error    string                `json:"error,omitempty"`
}
