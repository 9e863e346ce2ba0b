package operations

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scdash/internal/dataprocessing"
)

// Config holds the runtime settings of the manager.
type Config struct {
	// StepTimeout bounds every step. Zero means DefaultStepTimeout.
	StepTimeout time.Duration
}

// NewConfig returns the default manager configuration.
func NewConfig() *Config {
	return &Config{StepTimeout: DefaultStepTimeout}
}

// Manager orchestrates operation execution. Steps run strictly in
// dependency order; a failed step skips the rest and nothing is retried.
type Manager struct {
	registry *Registry
	config   *Config
	tracer   *OperationTracer
	logger   *slog.Logger

	mu         sync.RWMutex
	operations map[string]*OperationState
}

// NewManager creates a new operation manager. tracer may be nil.
func NewManager(registry *Registry, config *Config, tracer *OperationTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if tracer == nil {
		tracer = NewOperationTracer(nil, nil)
	}
	return &Manager{
		registry:   registry,
		config:     config,
		tracer:     tracer,
		logger:     logger.With(slog.String("component", "operations")),
		operations: make(map[string]*OperationState),
	}
}

// Execute runs the pipeline for req. The response is always non-nil and
// describes every step, including on failure.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	state := NewOperationState(req.ID)
	state.SetConfig(ConfigKeyInputFile, req.InputFile)
	state.SetConfig(ConfigKeyOutputFile, req.OutputFile)
	state.SetConfig(ConfigKeyCSVFile, req.CSVFile)
	state.SetConfig(ConfigKeyPersistDB, req.PersistsDB())

	m.storeOperation(state)
	defer m.removeOperation(req.ID)

	ctx, span := m.tracer.TraceOperationExecution(ctx, req)
	logger := m.logger.With(slog.String("operation_id", req.ID))

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		state.Fail(err)
		m.tracer.RecordOperationCompletion(ctx, span, nil, err)
		return m.createResponse(state), err
	}
	for _, s := range steps {
		state.SetStage(s.ID(), NewStepState(s.ID(), s.Name()))
	}

	state.Start()
	logger.InfoContext(ctx, "operation started",
		slog.String("input_file", req.InputFile),
		slog.Int("step_count", len(steps)))

	err = m.executeSequential(ctx, state, steps)

	var summary *RunSummary
	switch {
	case err == nil:
		state.Complete()
		summary = buildSummary(state)
		logger.InfoContext(ctx, "operation completed",
			slog.Duration("duration", state.Duration()),
			slog.Int("rows", summary.Rows))
	case GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel(err)
		logger.WarnContext(ctx, "operation cancelled", slog.String("error", err.Error()))
	default:
		state.Fail(err)
		logger.ErrorContext(ctx, "operation failed", slog.String("error", err.Error()))
	}

	m.tracer.RecordOperationCompletion(ctx, span, summary, err)

	resp := m.createResponse(state)
	resp.Summary = summary
	return resp, err
}

func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if cerr := ctx.Err(); cerr != nil {
			m.skipRemaining(state, steps[i:], "operation cancelled")
			return NewCancellationError(step.ID(), cerr)
		}

		if err := m.executeStep(ctx, state, step); err != nil {
			m.skipRemaining(state, steps[i+1:], "previous step "+step.ID()+" failed")
			return err
		}
	}
	return nil
}

func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())

	if err := step.Validate(state); err != nil {
		stepState.Fail(err)
		return err
	}

	timeout := m.config.StepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stepCtx, span := m.tracer.TraceStepExecution(stepCtx, state.ID, step.ID())
	stepState.Start()
	start := time.Now()

	err := step.Execute(stepCtx, state)
	duration := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			err = NewTimeoutError(step.ID(), timeout.String(), err)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			err = NewCancellationError(step.ID(), err)
		default:
			var opErr *OperationError
			if !errors.As(err, &opErr) {
				err = NewExecutionError(step.ID(), err)
			}
		}
		stepState.Fail(err)
		m.tracer.RecordStepCompletion(stepCtx, span, step.ID(), duration, err)

		m.logger.ErrorContext(ctx, "step failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return err
	}

	stepState.Complete()
	m.tracer.RecordStepCompletion(stepCtx, span, step.ID(), duration, nil)

	m.logger.DebugContext(ctx, "step completed",
		slog.String("operation_id", state.ID),
		slog.String("step", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, s := range steps {
		if st := state.GetStage(s.ID()); st != nil && st.GetStatus() == StepStatusPending {
			st.Skip(reason)
		}
	}
}

// buildSummary collects what the steps left in the state.
func buildSummary(state *OperationState) *RunSummary {
	summary := &RunSummary{
		OutputFile:  state.ConfigString(ConfigKeyOutputFile),
		PersistedDB: state.ConfigBool(ConfigKeyPersistDB),
	}
	if v, ok := state.GetContext(ContextKeyCacheKey); ok {
		summary.CacheKey, _ = v.(string)
	}
	if v, ok := state.GetContext(ContextKeyPersistedCSV); ok {
		summary.CSVFile, _ = v.(string)
	}
	if report, err := contextValue[dataprocessing.CleanReport](state, ContextKeyCleanReport); err == nil {
		summary.Filled = report.Filled
	}
	if e, err := contextValue[*dataprocessing.EnrichedTable](state, ContextKeyEnriched); err == nil {
		summary.Rows = e.Len()
		summary.Columns = len(e.Header())
		summary.Undefined = e.Undefined
		for _, w := range e.Warnings {
			summary.Warnings = append(summary.Warnings, w.Error())
		}
	}
	return summary
}

// GetOperation returns a running operation by ID.
func (m *Manager) GetOperation(id string) (*OperationState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.operations[id]
	return op, ok
}

// ActiveOperations returns the IDs of running operations.
func (m *Manager) ActiveOperations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.operations))
	for id := range m.operations {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) storeOperation(state *OperationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}

func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	resp := &OperationResponse{
		ID:       state.ID,
		Status:   state.GetStatus(),
		Duration: state.Duration(),
		Steps:    make(map[string]*StepState),
	}

	state.mu.RLock()
	for id, s := range state.Steps {
		resp.Steps[id] = s
	}
	if state.Error != nil {
		resp.Error = state.Error.Error()
	}
	state.mu.RUnlock()

	return resp
}
