package services

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"scdash/internal/dashboard"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/pkg/contracts/domain"
)

// SourceProvider names the file the dashboard reads.
type SourceProvider interface {
	Source() string
}

// DashboardView is everything the dashboard page shows besides charts.
type DashboardView struct {
	Source   string                  `json:"source"`
	Filter   dashboard.Filter        `json:"filter"`
	Options  dashboard.FilterOptions `json:"options"`
	KPIs     domain.KPISummary       `json:"kpis"`
	Total    int                     `json:"total_rows"`
	Warnings []string                `json:"warnings,omitempty"`
}

// DashboardService rebuilds the enriched table from the active source on
// every request. Only parsing is cached.
type DashboardService struct {
	source     SourceProvider
	cache      *dataprocessing.TableCache
	loadOpts   dataprocessing.LoadOptions
	cleaner    *dataprocessing.Cleaner
	calculator *dataprocessing.Calculator
	logger     *slog.Logger
}

// NewDashboardService creates the service.
func NewDashboardService(source SourceProvider, cache *dataprocessing.TableCache, loadOpts dataprocessing.LoadOptions,
	cleaner *dataprocessing.Cleaner, calculator *dataprocessing.Calculator, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		source:     source,
		cache:      cache,
		loadOpts:   loadOpts,
		cleaner:    cleaner,
		calculator: calculator,
		logger:     logger.With(slog.String("component", "dashboard_service")),
	}
}

// Enriched loads, cleans and enriches the whole active source.
func (s *DashboardService) Enriched(ctx context.Context) (*dataprocessing.EnrichedTable, error) {
	path := s.source.Source()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError("source data file").WithContext("file", path)
	}

	raw, _, err := s.cache.Load(ctx, path, s.loadOpts)
	if err != nil {
		return nil, err
	}
	cleaned, _ := s.cleaner.Clean(raw)
	return s.calculator.Calculate(cleaned)
}

// View applies f to the active source and summarizes the selection.
func (s *DashboardService) View(ctx context.Context, f dashboard.Filter) (*DashboardView, *dataprocessing.EnrichedTable, error) {
	full, err := s.Enriched(ctx)
	if err != nil {
		return nil, nil, err
	}

	selected := f.Apply(full)
	view := &DashboardView{
		Source:  s.source.Source(),
		Filter:  f,
		Options: dashboard.Options(full),
		KPIs:    dashboard.ComputeKPIs(selected),
		Total:   full.Len(),
	}
	for _, w := range full.Warnings {
		view.Warnings = append(view.Warnings, w.Error())
	}

	s.logger.DebugContext(ctx, "dashboard view built",
		slog.Int("rows", selected.Len()),
		slog.Int("total_rows", full.Len()))
	return view, selected, nil
}

// RenderCharts writes the chart page for the rows selected by f.
func (s *DashboardService) RenderCharts(ctx context.Context, w io.Writer, f dashboard.Filter) error {
	_, selected, err := s.View(ctx, f)
	if err != nil {
		return err
	}
	cs, err := dashboard.DashboardCharts(selected)
	if err != nil {
		return err
	}
	return dashboard.RenderCharts(w, "Supply Chain Charts", cs...)
}
