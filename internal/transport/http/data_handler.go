package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"scdash/internal/dashboard"
	apperrors "scdash/internal/errors"
	"scdash/internal/operations"
	"scdash/internal/services"
)

// ProcessedDownloadName is the file name offered for the processed workbook.
const ProcessedDownloadName = "processed_data.xlsx"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DataHandler serves dashboard data: KPIs, chart pages and the processed
// workbook.
type DataHandler struct {
	dashboard    DashboardServiceInterface
	pipeline     PipelineServiceInterface
	forecast     ForecastServiceInterface
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(dash DashboardServiceInterface, pipeline PipelineServiceInterface, fc ForecastServiceInterface,
	logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		dashboard:    dash,
		pipeline:     pipeline,
		forecast:     fc,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes adds the data routes to r.
func (h *DataHandler) RegisterRoutes(r chi.Router) {
	r.Get("/charts", h.Charts)
	r.Get("/forecast/charts", h.ForecastCharts)
	r.Get("/download/processed.xlsx", h.DownloadProcessed)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/api/kpis", h.GetKPIs)
		r.Get("/api/forecast", h.GetForecast)
	})
}

// GetKPIs handles GET /api/kpis
func (h *DataHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	view, _, err := h.dashboard.View(r.Context(), dashboard.FilterFromQuery(r.URL.Query()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// GetForecast handles GET /api/forecast
func (h *DataHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	report, err := h.forecast.Last()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// Charts handles GET /charts, the chart page embedded by the dashboard.
func (h *DataHandler) Charts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.dashboard.RenderCharts(r.Context(), &buf, dashboard.FilterFromQuery(r.URL.Query())); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeHTML(w, buf.Bytes())
}

// ForecastCharts handles GET /forecast/charts
func (h *DataHandler) ForecastCharts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.forecast.RenderCharts(&buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeHTML(w, buf.Bytes())
}

// DownloadProcessed handles GET /download/processed.xlsx. The pipeline runs
// first so the workbook reflects the current source.
func (h *DataHandler) DownloadProcessed(w http.ResponseWriter, r *http.Request) {
	resp, err := h.pipeline.Run(r.Context(), operations.OperationRequest{})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	path := h.pipeline.ProcessedFile()
	if resp != nil && resp.Summary != nil && resp.Summary.OutputFile != "" {
		path = resp.Summary.OutputFile
	}

	if _, err := os.Stat(path); err != nil {
		h.errorHandler.HandleError(w, r, services.ErrNoProcessed)
		return
	}

	h.logger.InfoContext(r.Context(), "serving processed workbook",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("file", path))

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+ProcessedDownloadName+`"`)
	http.ServeFile(w, r, path)
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
