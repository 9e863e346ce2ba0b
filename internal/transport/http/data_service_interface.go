package http

import (
	"context"
	"io"

	"scdash/internal/dashboard"
	"scdash/internal/dataprocessing"
	"scdash/internal/forecast"
	"scdash/internal/services"
)

// DashboardServiceInterface defines the dashboard operations handlers use.
type DashboardServiceInterface interface {
	View(ctx context.Context, f dashboard.Filter) (*services.DashboardView, *dataprocessing.EnrichedTable, error)
	RenderCharts(ctx context.Context, w io.Writer, f dashboard.Filter) error
}

// ForecastServiceInterface defines the forecast operations handlers use.
type ForecastServiceInterface interface {
	Run(ctx context.Context, name string, data io.Reader, train bool) (*forecast.Report, error)
	Last() (*forecast.Report, error)
	Predict(values []float64) (float64, error)
	RenderCharts(w io.Writer) error
}
