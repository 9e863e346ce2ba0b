package http

import (
	"context"
	"io"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scdash/internal/dashboard"
	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/forecast"
	"scdash/internal/operations"
	"scdash/internal/services"
	"scdash/internal/shared/testutil"
)

type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) View(ctx context.Context, f dashboard.Filter) (*services.DashboardView, *dataprocessing.EnrichedTable, error) {
	args := m.Called(ctx, f)
	view, _ := args.Get(0).(*services.DashboardView)
	table, _ := args.Get(1).(*dataprocessing.EnrichedTable)
	return view, table, args.Error(2)
}

func (m *MockDashboardService) RenderCharts(ctx context.Context, w io.Writer, f dashboard.Filter) error {
	args := m.Called(ctx, w, f)
	if args.Error(0) == nil {
		io.WriteString(w, "<html>charts</html>")
	}
	return args.Error(0)
}

type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) Run(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*operations.OperationResponse)
	return resp, args.Error(1)
}

func (m *MockPipelineService) SaveUpload(ctx context.Context, name string, r io.Reader) (string, error) {
	args := m.Called(ctx, name, r)
	return args.String(0), args.Error(1)
}

func (m *MockPipelineService) ClearCache(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *MockPipelineService) CacheStats() dataprocessing.CacheStats {
	return m.Called().Get(0).(dataprocessing.CacheStats)
}

func (m *MockPipelineService) LastRun() *operations.OperationResponse {
	resp, _ := m.Called().Get(0).(*operations.OperationResponse)
	return resp
}

func (m *MockPipelineService) Source() string {
	return m.Called().String(0)
}

func (m *MockPipelineService) ProcessedFile() string {
	return m.Called().String(0)
}

type MockForecastService struct {
	mock.Mock
}

func (m *MockForecastService) Run(ctx context.Context, name string, data io.Reader, train bool) (*forecast.Report, error) {
	args := m.Called(ctx, name, data, train)
	report, _ := args.Get(0).(*forecast.Report)
	return report, args.Error(1)
}

func (m *MockForecastService) Last() (*forecast.Report, error) {
	args := m.Called()
	report, _ := args.Get(0).(*forecast.Report)
	return report, args.Error(1)
}

func (m *MockForecastService) Predict(values []float64) (float64, error) {
	args := m.Called(values)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockForecastService) RenderCharts(w io.Writer) error {
	args := m.Called(w)
	if args.Error(0) == nil {
		io.WriteString(w, "<html>forecast</html>")
	}
	return args.Error(0)
}

type handlerFixture struct {
	dashboard *MockDashboardService
	pipeline  *MockPipelineService
	forecast  *MockForecastService
	logs      *testutil.BufferedSlogHandler
	router    chi.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	logger, logs := testutil.NewTestLogger(t)
	errorHandler := apperrors.NewErrorHandler(logger, false)
	f := &handlerFixture{
		dashboard: &MockDashboardService{},
		pipeline:  &MockPipelineService{},
		forecast:  &MockForecastService{},
		logs:      logs,
	}

	pages, err := NewPageHandler(f.dashboard, f.pipeline, f.forecast, "data/models/model.json", 1<<20, logger, errorHandler)
	require.NoError(t, err)

	r := chi.NewRouter()
	pages.RegisterRoutes(r)
	NewDataHandler(f.dashboard, f.pipeline, f.forecast, logger, errorHandler).RegisterRoutes(r)
	NewOperationsHandler(f.pipeline, nil, logger, errorHandler).RegisterRoutes(r)
	f.router = r
	return f
}

func (f *handlerFixture) assertExpectations(t *testing.T) {
	f.dashboard.AssertExpectations(t)
	f.pipeline.AssertExpectations(t)
	f.forecast.AssertExpectations(t)
}

func ptr(v float64) *float64 { return &v }
