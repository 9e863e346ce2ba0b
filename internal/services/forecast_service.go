package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"scdash/internal/dashboard"
	"scdash/internal/dataprocessing"
	"scdash/internal/forecast"
)

// ForecastService trains or reloads the demand model on uploaded data and
// keeps the latest report for prediction and charts.
type ForecastService struct {
	forecaster *forecast.Forecaster
	loadOpts   dataprocessing.LoadOptions
	logger     *slog.Logger

	mu   sync.Mutex
	last *forecast.Report
}

// NewForecastService creates the service.
func NewForecastService(f *forecast.Forecaster, loadOpts dataprocessing.LoadOptions, logger *slog.Logger) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastService{
		forecaster: f,
		loadOpts:   loadOpts,
		logger:     logger.With(slog.String("component", "forecast_service")),
	}
}

// Run parses data, whose format is taken from name, and evaluates the
// model. With train set the model is refitted and saved first.
func (s *ForecastService) Run(ctx context.Context, name string, data io.Reader, train bool) (*forecast.Report, error) {
	format, err := dataprocessing.DetectFormat(name)
	if err != nil {
		return nil, err
	}
	table, err := dataprocessing.LoadReader(data, format, s.loadOpts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.forecaster.Run(ctx, table, forecast.RunOptions{Train: train})
	if err != nil {
		s.logger.WarnContext(ctx, "forecast failed",
			slog.String("file", name),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.last = report
	return report, nil
}

// Last returns the most recent successful report.
func (s *ForecastService) Last() (*forecast.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, ErrNoForecast
	}
	return s.last, nil
}

// Predict runs the latest model on one value per feature.
func (s *ForecastService) Predict(values []float64) (float64, error) {
	report, err := s.Last()
	if err != nil {
		return 0, err
	}
	return report.Predict(values)
}

// RenderCharts writes the training history and true-vs-predicted charts of
// the latest report.
func (s *ForecastService) RenderCharts(w io.Writer) error {
	report, err := s.Last()
	if err != nil {
		return err
	}
	return dashboard.RenderCharts(w, "Demand Forecast", dashboard.ForecastCharts(report)...)
}
