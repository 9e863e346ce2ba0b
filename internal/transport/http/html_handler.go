package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"scdash/internal/dashboard"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/forecast"
	"scdash/internal/operations"
	"scdash/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"money":   formatMoney,
	"fixed":   formatFixed,
	"percent": formatPercent,
	"join":    strings.Join,
	"has": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

type dashboardPage struct {
	Title     string
	Error     string
	View      *services.DashboardView
	ChartsURL string
}

type featureInput struct {
	Name  string
	Value string
}

type forecastPage struct {
	Title      string
	Error      string
	ModelPath  string
	Train      bool
	Report     *forecast.Report
	Inputs     []featureInput
	Prediction *float64
}

// PageHandler serves the HTML dashboard and forecast pages. Client-side
// problems such as a file with missing columns are shown on the page;
// anything else becomes a problem response.
type PageHandler struct {
	dashboard    DashboardServiceInterface
	pipeline     PipelineServiceInterface
	forecast     ForecastServiceInterface
	modelPath    string
	maxUpload    int64
	pages        *template.Template
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewPageHandler creates the page handler. maxUpload bounds uploaded files.
func NewPageHandler(dash DashboardServiceInterface, pipeline PipelineServiceInterface, fc ForecastServiceInterface,
	modelPath string, maxUpload int64, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) (*PageHandler, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, apperrors.NewConfigError("cannot parse page templates", err)
	}
	return &PageHandler{
		dashboard:    dash,
		pipeline:     pipeline,
		forecast:     fc,
		modelPath:    modelPath,
		maxUpload:    maxUpload,
		pages:        pages,
		logger:       logger.With(slog.String("component", "page_handler")),
		errorHandler: errorHandler,
	}, nil
}

// RegisterRoutes adds the page routes to r.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Dashboard)
	r.Post("/upload", h.Upload)
	r.Get("/forecast", h.Forecast)
	r.Post("/forecast", h.ForecastSubmit)
}

// Dashboard handles GET /
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, http.StatusOK, nil)
}

// Upload handles POST /upload. The uploaded file becomes the dashboard
// source and the pipeline runs on it.
func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.formError(w, r, err, func(status int, msg error) {
			h.renderDashboard(w, r, status, msg)
		})
		return
	}
	defer file.Close()

	if _, err := h.pipeline.SaveUpload(r.Context(), header.Filename, file); err != nil {
		h.pageError(w, r, err, func(status int) { h.renderDashboard(w, r, status, err) })
		return
	}
	if _, err := h.pipeline.Run(r.Context(), operations.OperationRequest{}); err != nil {
		h.pageError(w, r, err, func(status int) { h.renderDashboard(w, r, status, err) })
		return
	}

	h.logger.InfoContext(r.Context(), "dashboard source replaced", slog.String("name", header.Filename))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Forecast handles GET /forecast
func (h *PageHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	page := h.newForecastPage()
	if report, err := h.forecast.Last(); err == nil {
		page.Report = report
		page.Inputs = defaultInputs(report)
	}
	h.render(w, r, http.StatusOK, "forecast", page)
}

// ForecastSubmit handles POST /forecast. action=predict predicts from the
// feature_<name> fields; anything else evaluates an uploaded file.
func (h *PageHandler) ForecastSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			h.formError(w, r, err, func(status int, msg error) {
				h.renderForecast(w, r, status, h.newForecastPage(), msg)
			})
			return
		}
	}

	if r.FormValue("action") == "predict" {
		h.predict(w, r)
		return
	}

	page := h.newForecastPage()
	page.Train = r.FormValue("train") != ""

	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderForecast(w, r, http.StatusBadRequest, page,
			apperrors.NewAppValidationError("choose a CSV or XLSX file to evaluate"))
		return
	}
	defer file.Close()

	report, err := h.forecast.Run(r.Context(), header.Filename, file, page.Train)
	if err != nil {
		h.pageError(w, r, err, func(status int) { h.renderForecast(w, r, status, page, err) })
		return
	}
	page.Report = report
	page.Inputs = defaultInputs(report)
	h.render(w, r, http.StatusOK, "forecast", page)
}

func (h *PageHandler) predict(w http.ResponseWriter, r *http.Request) {
	page := h.newForecastPage()
	report, err := h.forecast.Last()
	if err != nil {
		h.pageError(w, r, err, func(status int) { h.renderForecast(w, r, status, page, err) })
		return
	}
	page.Report = report

	values := make([]float64, len(report.Features))
	for i, name := range report.Features {
		raw := strings.TrimSpace(r.FormValue("feature_" + name))
		if raw == "" {
			values[i] = report.FeatureMeans[i]
		} else {
			v, ok := dataprocessing.ParseNumber(raw)
			if !ok {
				page.Inputs = submittedInputs(r, report)
				h.renderForecast(w, r, http.StatusBadRequest, page,
					apperrors.NewAppValidationError(fmt.Sprintf("%s must be a number", name)))
				return
			}
			values[i] = v
		}
		page.Inputs = append(page.Inputs, featureInput{Name: name, Value: dataprocessing.FormatNumber(values[i])})
	}

	prediction, err := h.forecast.Predict(values)
	if err != nil {
		h.pageError(w, r, err, func(status int) { h.renderForecast(w, r, status, page, err) })
		return
	}
	page.Prediction = &prediction
	h.render(w, r, http.StatusOK, "forecast", page)
}

func (h *PageHandler) newForecastPage() *forecastPage {
	return &forecastPage{Title: "Supply Chain Demand Forecasting", ModelPath: h.modelPath}
}

func (h *PageHandler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, cause error) {
	f := dashboard.FilterFromQuery(r.URL.Query())
	page := &dashboardPage{Title: "Supply Chain Management Dashboard", ChartsURL: "/charts"}
	if q := f.Query().Encode(); q != "" {
		page.ChartsURL += "?" + q
	}

	view, _, err := h.dashboard.View(r.Context(), f)
	switch {
	case err == nil:
		page.View = view
	case cause == nil:
		cause = err
		if !isClientError(err) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		status = apperrors.StatusFor(mustType(err))
	}
	if cause != nil {
		page.Error = displayError(cause)
	}
	h.render(w, r, status, "dashboard", page)
}

func (h *PageHandler) renderForecast(w http.ResponseWriter, r *http.Request, status int, page *forecastPage, cause error) {
	page.Error = displayError(cause)
	h.render(w, r, status, "forecast", page)
}

// pageError shows client errors on the page via show and hands the rest to
// the error handler.
func (h *PageHandler) pageError(w http.ResponseWriter, r *http.Request, err error, show func(status int)) {
	if !isClientError(err) {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "request rejected", slog.String("error", err.Error()))
	show(apperrors.StatusFor(mustType(err)))
}

// formError handles a failure to read the submitted form.
func (h *PageHandler) formError(w http.ResponseWriter, r *http.Request, err error, show func(status int, msg error)) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.errorHandler.HandleError(w, r, apperrors.ErrPayloadTooLarge)
		return
	}
	show(http.StatusBadRequest, apperrors.NewAppValidationError("choose a CSV or XLSX file to upload"))
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewIOError("cannot render page", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func defaultInputs(report *forecast.Report) []featureInput {
	inputs := make([]featureInput, len(report.Features))
	for i, name := range report.Features {
		inputs[i] = featureInput{Name: name, Value: strconv.FormatFloat(report.FeatureMeans[i], 'f', -1, 64)}
	}
	return inputs
}

func submittedInputs(r *http.Request, report *forecast.Report) []featureInput {
	inputs := make([]featureInput, len(report.Features))
	for i, name := range report.Features {
		inputs[i] = featureInput{Name: name, Value: r.FormValue("feature_" + name)}
	}
	return inputs
}

// isClientError reports whether err is an application error caused by the
// submitted data rather than the server.
func isClientError(err error) bool {
	t, ok := apperrors.TypeOf(err)
	return ok && apperrors.StatusFor(t) < http.StatusInternalServerError
}

func mustType(err error) apperrors.ErrorType {
	t, _ := apperrors.TypeOf(err)
	return t
}

func displayError(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	return err.Error()
}

func formatMoney(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func formatFixed(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatPercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v*100, 'f', 2, 64) + "%"
}
