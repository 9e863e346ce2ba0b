package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/middleware"
	"scdash/internal/operations"
)

// PipelineRunRequest is the body of POST /api/pipeline/run. Empty paths
// fall back to the active source and the configured outputs; an absent
// persist_db falls back to the configured database setting.
type PipelineRunRequest struct {
	Input     string `json:"input" validate:"omitempty,datafile"`
	Output    string `json:"output" validate:"omitempty,xlsxfile"`
	CSV       string `json:"csv" validate:"omitempty,endswith=.csv"`
	PersistDB *bool  `json:"persist_db"`
}

// PipelineStatus reports the last run and the table cache counters.
type PipelineStatus struct {
	Source        string                        `json:"source"`
	ProcessedFile string                        `json:"processed_file"`
	LastRun       *operations.OperationResponse `json:"last_run,omitempty"`
	Cache         dataprocessing.CacheStats     `json:"cache"`
}

// OperationsHandler handles pipeline HTTP requests
type OperationsHandler struct {
	service      PipelineServiceInterface
	validator    *middleware.Validator
	tracer       trace.Tracer
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service PipelineServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = middleware.NewValidator()
	}
	return &OperationsHandler{
		service:      service,
		validator:    validator,
		tracer:       otel.Tracer("scdash/operations-handler"),
		logger:       logger.With(slog.String("handler", "operations")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes adds the pipeline routes to r.
func (h *OperationsHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/api/pipeline/run", h.RunPipeline)
		r.Get("/api/pipeline/status", h.Status)
		r.Post("/api/cache/clear", h.ClearCache)
	})
}

// RunPipeline handles POST /api/pipeline/run
func (h *OperationsHandler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	ctx, span := h.tracer.Start(r.Context(), "operations_handler.run_pipeline",
		trace.WithAttributes(
			attribute.String("request_id", reqID),
			attribute.String("component", "operations_handler"),
		),
	)
	defer span.End()

	var body PipelineRunRequest
	if err := h.validator.DecodeJSON(r, &body); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "request_validation"))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	operationID := reqID
	if operationID == "" {
		operationID = uuid.NewString()
	}
	h.logger.InfoContext(ctx, "pipeline run request",
		slog.String("request_id", reqID),
		slog.String("operation_id", operationID),
		slog.String("input", body.Input))

	resp, err := h.service.Run(ctx, operations.OperationRequest{
		ID:         operationID,
		InputFile:  body.Input,
		OutputFile: body.Output,
		CSVFile:    body.CSV,
		PersistDB:  body.PersistDB,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		h.errorHandler.HandleError(w, r.WithContext(ctx), err)
		return
	}

	span.SetAttributes(attribute.String("operation.status", string(resp.Status)))
	render.JSON(w, r, resp)
}

// Status handles GET /api/pipeline/status
func (h *OperationsHandler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, PipelineStatus{
		Source:        h.service.Source(),
		ProcessedFile: h.service.ProcessedFile(),
		LastRun:       h.service.LastRun(),
		Cache:         h.service.CacheStats(),
	})
}

// ClearCache handles POST /api/cache/clear
func (h *OperationsHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	n := h.service.ClearCache(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"cleared": n,
	})
}
