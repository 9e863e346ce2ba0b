package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scdash/internal/config"
	"scdash/internal/dashboard"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/exporter"
	"scdash/internal/forecast"
	"scdash/internal/operations"
	"scdash/internal/shared/testutil"
)

type fixture struct {
	paths     *config.Paths
	cache     *dataprocessing.TableCache
	pipeline  *PipelineService
	dashboard *DashboardService
	handler   *testutil.BufferedSlogHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	paths, err := config.GetPaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	require.NoError(t, os.WriteFile(paths.InputFile, []byte(testutil.SampleCSV(t)), 0644))

	logger, handler := testutil.NewTestLogger(t)
	cache := dataprocessing.NewTableCache(nil)
	cleaner := dataprocessing.NewCleaner(dataprocessing.DefaultFillDefaults(), logger)
	calc := dataprocessing.NewCalculator(dataprocessing.DefaultDelayThreshold, logger)

	registry, err := operations.NewPipelineRegistry(operations.PipelineDeps{
		Cache:      cache,
		Cleaner:    cleaner,
		Calculator: calc,
		XLSX:       exporter.NewXLSXWriter(logger),
		CSV:        exporter.NewCSVWriter(logger),
		Logger:     logger,
	})
	require.NoError(t, err)

	pipeline := NewPipelineService(operations.NewManager(registry, nil, nil, logger), cache, paths, false, logger)
	return &fixture{
		paths:     paths,
		cache:     cache,
		pipeline:  pipeline,
		dashboard: NewDashboardService(pipeline, cache, dataprocessing.LoadOptions{}, cleaner, calc, logger),
		handler:   handler,
	}
}

func TestPipelineService_RunDefaults(t *testing.T) {
	f := newFixture(t)

	resp, err := f.pipeline.Run(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)

	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 5, resp.Summary.Rows)
	assert.Equal(t, f.paths.ProcessedFile, resp.Summary.OutputFile)
	assert.FileExists(t, f.paths.ProcessedFile)
	assert.Same(t, resp, f.pipeline.LastRun())
	testutil.AssertLogContains(t, f.handler, slog.LevelInfo, "pipeline run requested")
}

func TestPipelineService_PersistRequiresDatabase(t *testing.T) {
	f := newFixture(t)
	f.pipeline.persistDB = true

	resp, err := f.pipeline.Run(context.Background(), operations.OperationRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Equal(t, operations.OperationStatusFailed, resp.Status)
}

func TestPipelineService_ExplicitPersistDBOverridesConfig(t *testing.T) {
	f := newFixture(t)
	f.pipeline.persistDB = true

	persist := false
	resp, err := f.pipeline.Run(context.Background(), operations.OperationRequest{PersistDB: &persist})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	assert.False(t, resp.Summary.PersistedDB)
	assert.True(t, f.handler.ContainsAttr("persist_db", false))
}

func TestPipelineService_ConcurrentRunsAreSerialized(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.pipeline.Run(context.Background(), operations.OperationRequest{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	loaded, err := dataprocessing.LoadFile(f.paths.ProcessedFile, dataprocessing.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Len())
}

func TestPipelineService_SaveUpload(t *testing.T) {
	f := newFixture(t)
	rows := testutil.CloneRows(testutil.SampleRows[:2])
	body := testutil.CSVText(t, testutil.SampleHeader, rows)

	dest, err := f.pipeline.SaveUpload(context.Background(), "mine.CSV", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, dest, f.pipeline.Source())
	assert.Contains(t, dest, UploadBaseName+".csv")

	resp, err := f.pipeline.Run(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Summary.Rows)

	_, err = f.pipeline.SaveUpload(context.Background(), "notes.pdf", strings.NewReader("x"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeIO))
	assert.Equal(t, dest, f.pipeline.Source(), "rejected upload keeps the active source")
}

func TestPipelineService_ResumesLatestUpload(t *testing.T) {
	f := newFixture(t)
	body := testutil.CSVText(t, testutil.SampleHeader, testutil.CloneRows(testutil.SampleRows[:3]))

	first, err := f.pipeline.SaveUpload(context.Background(), "a.tsv", strings.NewReader(strings.ReplaceAll(body, ",", "\t")))
	require.NoError(t, err)
	dest, err := f.pipeline.SaveUpload(context.Background(), "b.csv", strings.NewReader(body))
	require.NoError(t, err)
	assert.NoFileExists(t, first, "earlier upload in another format is removed")

	restarted := NewPipelineService(f.pipeline.manager, f.cache, f.paths, false, nil)
	assert.Equal(t, dest, restarted.Source())

	resp, err := restarted.Run(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Summary.Rows)
}

func TestPipelineService_ClearCache(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Run(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.pipeline.CacheStats().Entries)
	assert.Equal(t, 1, f.pipeline.ClearCache(context.Background()))
	assert.Equal(t, 0, f.pipeline.CacheStats().Entries)
}

func TestDashboardService_View(t *testing.T) {
	f := newFixture(t)

	view, selected, err := f.dashboard.View(context.Background(), dashboard.Filter{Locations: []string{"Mumbai"}})
	require.NoError(t, err)

	assert.Equal(t, 5, view.Total)
	assert.Equal(t, 2, view.KPIs.Rows)
	assert.Equal(t, 5000.0, view.KPIs.TotalRevenue)
	assert.Equal(t, []string{"Delhi", "Kolkata", "Mumbai"}, view.Options.Locations)
	assert.Equal(t, 2, selected.Len())
	require.NotNil(t, view.KPIs.DeliveryRatio)
	assert.Equal(t, 0.5, *view.KPIs.DeliveryRatio)
}

func TestDashboardService_ReflectsEditedSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, _, err := f.dashboard.View(ctx, dashboard.Filter{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(f.paths.InputFile,
		[]byte(testutil.CSVText(t, testutil.SampleHeader, testutil.SampleRows[:3])), 0644))
	after, _, err := f.dashboard.View(ctx, dashboard.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 5, before.Total)
	assert.Equal(t, 3, after.Total)
}

func TestDashboardService_MissingSource(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.paths.InputFile))

	_, _, err := f.dashboard.View(context.Background(), dashboard.Filter{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestDashboardService_RenderCharts(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	require.NoError(t, f.dashboard.RenderCharts(context.Background(), &buf, dashboard.Filter{}))
	assert.Contains(t, buf.String(), "Total Revenue by Product Type")
}

func salesCSV(n int) string {
	var sb strings.Builder
	sb.WriteString("Date,Price,Promotion,HistoricalSales\n")
	for i := 0; i < n; i++ {
		promo := "No"
		if i%2 == 0 {
			promo = "Yes"
		}
		fmt.Fprintf(&sb, "2024-02-%02d,%d,%s,%d\n", i%28+1, 5+i%7, promo, 100+3*i)
	}
	return sb.String()
}

func newForecastService(t *testing.T) *ForecastService {
	t.Helper()
	cfg := config.Default().Forecast
	cfg.Epochs = 3
	cfg.HiddenLayers = []int{4}
	logger, _ := testutil.NewTestLogger(t)
	f := forecast.NewForecaster(cfg, t.TempDir()+"/model.json", nil, logger)
	return NewForecastService(f, dataprocessing.LoadOptions{}, logger)
}

func TestForecastService_RunPredictCharts(t *testing.T) {
	s := newForecastService(t)
	ctx := context.Background()

	_, err := s.Last()
	assert.ErrorIs(t, err, ErrNoForecast)
	_, err = s.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNoForecast)
	assert.ErrorIs(t, s.RenderCharts(&bytes.Buffer{}), ErrNoForecast)

	report, err := s.Run(ctx, "sales.csv", strings.NewReader(salesCSV(30)), true)
	require.NoError(t, err)
	assert.Equal(t, 6, report.TestSize)

	got, err := s.Predict(report.FeatureMeans)
	require.NoError(t, err)
	want, _ := report.Predict(report.FeatureMeans)
	assert.Equal(t, want, got)

	var buf bytes.Buffer
	require.NoError(t, s.RenderCharts(&buf))
	assert.Contains(t, buf.String(), "True vs Predicted Sales")

	reloaded, err := s.Run(ctx, "sales.csv", strings.NewReader(salesCSV(30)), false)
	require.NoError(t, err)
	assert.Equal(t, report.MSE, reloaded.MSE)
}

func TestForecastService_Errors(t *testing.T) {
	s := newForecastService(t)
	ctx := context.Background()

	_, err := s.Run(ctx, "sales.pdf", strings.NewReader(""), true)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeIO))

	_, err = s.Run(ctx, "sales.csv", strings.NewReader("Price\n1\n2\n"), true)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))

	_, err = s.Run(ctx, "sales.csv", strings.NewReader(salesCSV(10)), false)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

type mockPinger struct {
	mock.Mock
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHealthService_Readiness(t *testing.T) {
	f := newFixture(t)
	logger, _ := testutil.NewTestLogger(t)

	db := new(mockPinger)
	db.On("Ping", mock.Anything).Return(nil).Once()
	db.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()

	hs := NewHealthService("1.2.3", "", f.paths, f.pipeline, db, logger)

	ready := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ready", ready.Services["database"].Status)

	notReady := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", notReady.Status)
	assert.Contains(t, notReady.Services["database"].Message, "connection refused")
	db.AssertExpectations(t)

	require.NoError(t, os.Remove(f.paths.InputFile))
	noDB := NewHealthService("1.2.3", "", f.paths, f.pipeline, nil, logger)
	status := noDB.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "not_ready", status.Services["source"].Status)
	assert.NotContains(t, status.Services, "database")
}

func TestHealthService_LivenessAndVersion(t *testing.T) {
	f := newFixture(t)
	hs := NewHealthService("1.2.3", "2024-01-01", f.paths, f.pipeline, nil, nil)

	assert.Equal(t, "ok", hs.HealthCheck(context.Background()).Status)
	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	v := hs.Version()
	assert.Equal(t, "1.2.3", v["version"])
	assert.Equal(t, "2024-01-01", v["build_time"])
}
