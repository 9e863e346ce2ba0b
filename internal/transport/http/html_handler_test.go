package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scdash/internal/dashboard"
	apperrors "scdash/internal/errors"
	"scdash/internal/forecast"
	"scdash/internal/operations"
	"scdash/internal/services"
	"scdash/pkg/contracts/domain"
)

func sampleView() *services.DashboardView {
	return &services.DashboardView{
		Source: "data/supply_chain.csv",
		Filter: dashboard.Filter{Locations: []string{"Mumbai"}},
		Options: dashboard.FilterOptions{
			Locations:    []string{"Delhi", "Mumbai"},
			ProductTypes: []string{"haircare", "skincare"},
			Carriers:     []string{"Carrier A"},
		},
		KPIs: domain.KPISummary{
			Rows:             2,
			TotalRevenue:     1234567.891,
			AvgLeadTime:      ptr(7),
			DelayedShipments: 1,
			DeliveryRatio:    ptr(.5),
		},
		Total:    5,
		Warnings: []string{"row 3: price is not numeric"},
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPageHandler_Dashboard(t *testing.T) {
	f := newHandlerFixture(t)
	f.dashboard.On("View", mock.Anything, mock.MatchedBy(mumbaiOnly)).Return(sampleView(), nil, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?location=Mumbai", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "1,234,567.89")
	assert.Contains(t, body, "7.00")
	assert.Contains(t, body, "50.00%")
	assert.Contains(t, body, "n/a")
	assert.Contains(t, body, `<option value="Mumbai" selected>`)
	assert.Contains(t, body, `<option value="Delhi">`)
	assert.Contains(t, body, `src="/charts?location=Mumbai"`)
	assert.Contains(t, body, "row 3: price is not numeric")
	assert.NotContains(t, body, `class="error"`)
	f.assertExpectations(t)
}

func TestPageHandler_DashboardErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantHTML   bool
		wantText   string
	}{
		{"missing source shown inline", apperrors.NewNotFoundError("source data file"), http.StatusNotFound, true, "source data file not found"},
		{"schema shown inline", apperrors.NewSchemaError("missing required columns: sku", nil), http.StatusUnprocessableEntity, true, "missing required columns: sku"},
		{"storage failure is a problem", apperrors.NewStorageError("disk gone", nil), http.StatusInternalServerError, false, "Storage Failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.dashboard.On("View", mock.Anything, mock.Anything).Return(nil, nil, tt.err)

			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			if tt.wantHTML {
				assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
				assert.Contains(t, rec.Body.String(), `name="file"`, "upload form stays available")
			} else {
				assert.Contains(t, rec.Header().Get("Content-Type"), "json")
			}
		})
	}
}

func TestPageHandler_Upload(t *testing.T) {
	f := newHandlerFixture(t)
	f.pipeline.On("SaveUpload", mock.Anything, "new.csv", mock.Anything).Return("data/uploaded_source.csv", nil)
	f.pipeline.On("Run", mock.Anything, operations.OperationRequest{}).Return(&operations.OperationResponse{Status: operations.OperationStatusCompleted}, nil)

	body, ct := multipartBody(t, nil, "new.csv", "SKU,Price\nSKU0,1\n")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	f.assertExpectations(t)
}

func TestPageHandler_UploadErrors(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.dashboard.On("View", mock.Anything, mock.Anything).Return(sampleView(), nil, nil)

		body, ct := multipartBody(t, map[string]string{"other": "x"}, "", "")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "choose a CSV or XLSX file to upload")
		f.pipeline.AssertNotCalled(t, "SaveUpload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("schema error after save", func(t *testing.T) {
		f := newHandlerFixture(t)
		schemaErr := apperrors.NewSchemaError("missing required columns: price", nil)
		f.pipeline.On("SaveUpload", mock.Anything, "bad.csv", mock.Anything).Return("data/uploaded_source.csv", nil)
		f.pipeline.On("Run", mock.Anything, mock.Anything).Return(&operations.OperationResponse{Status: operations.OperationStatusFailed}, schemaErr)
		f.dashboard.On("View", mock.Anything, mock.Anything).Return(nil, nil, schemaErr)

		body, ct := multipartBody(t, nil, "bad.csv", "SKU\nSKU0\n")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing required columns: price")
	})

	t.Run("unsupported format", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.pipeline.On("SaveUpload", mock.Anything, "notes.pdf", mock.Anything).
			Return("", apperrors.NewIOError("unsupported file format .pdf", nil))
		f.dashboard.On("View", mock.Anything, mock.Anything).Return(sampleView(), nil, nil)

		body, ct := multipartBody(t, nil, "notes.pdf", "%PDF")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unsupported file format .pdf")
		assert.Contains(t, rec.Body.String(), "Key Metrics", "current data still shown")
		f.pipeline.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})
}

func sampleReport() *forecast.Report {
	return &forecast.Report{
		Target:       "HistoricalSales",
		Features:     []string{"Price", "Month"},
		FeatureMeans: []float64{10, 6},
		Trained:      true,
		TrainSize:    8,
		TestSize:     2,
		MSE:          1.5,
	}
}

func TestPageHandler_ForecastPage(t *testing.T) {
	f := newHandlerFixture(t)
	f.forecast.On("Last").Return(nil, services.ErrNoForecast).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forecast", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data/models/model.json")
	assert.NotContains(t, rec.Body.String(), "Model Evaluation")

	f.forecast.On("Last").Return(sampleReport(), nil).Once()
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forecast", nil))
	assert.Contains(t, rec.Body.String(), "Model Evaluation")
	assert.Contains(t, rec.Body.String(), `name="feature_Price" value="10"`)
}

func TestPageHandler_ForecastEvaluate(t *testing.T) {
	f := newHandlerFixture(t)
	f.forecast.On("Run", mock.Anything, "sales.csv", mock.Anything, true).Return(sampleReport(), nil)

	body, ct := multipartBody(t, map[string]string{"action": "evaluate", "train": "on"}, "sales.csv", "Price,HistoricalSales\n1,2\n")
	req := httptest.NewRequest(http.MethodPost, "/forecast", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Model trained successfully.")
	assert.Contains(t, rec.Body.String(), "Price, Month")
	assert.Contains(t, rec.Body.String(), "1.50")
	assert.Contains(t, rec.Body.String(), `src="/forecast/charts"`)
	f.assertExpectations(t)
}

func TestPageHandler_ForecastEvaluateErrors(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		f := newHandlerFixture(t)
		body, ct := multipartBody(t, map[string]string{"action": "evaluate"}, "", "")
		req := httptest.NewRequest(http.MethodPost, "/forecast", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "choose a CSV or XLSX file to evaluate")
	})

	t.Run("no saved model", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.forecast.On("Run", mock.Anything, "sales.csv", mock.Anything, false).
			Return(nil, apperrors.NewNotFoundError("trained model"))

		body, ct := multipartBody(t, nil, "sales.csv", "Price,HistoricalSales\n1,2\n")
		req := httptest.NewRequest(http.MethodPost, "/forecast", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "trained model not found")
	})
}

func TestPageHandler_ForecastPredict(t *testing.T) {
	f := newHandlerFixture(t)
	f.forecast.On("Last").Return(sampleReport(), nil)
	f.forecast.On("Predict", []float64{12, 6}).Return(99.5, nil)

	form := url.Values{"action": {"predict"}, "feature_Price": {"12"}, "feature_Month": {""}}
	req := httptest.NewRequest(http.MethodPost, "/forecast", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Predicted Sales: 99.50")
	assert.Contains(t, rec.Body.String(), `name="feature_Month" value="6"`)
	f.assertExpectations(t)
}

func TestPageHandler_ForecastPredictErrors(t *testing.T) {
	for _, raw := range []string{"cheap", "NaN", "Inf", "-Inf", "1e999"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.forecast.On("Last").Return(sampleReport(), nil)

			form := url.Values{"action": {"predict"}, "feature_Price": {raw}}
			req := httptest.NewRequest(http.MethodPost, "/forecast", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Price must be a number")
			assert.Contains(t, rec.Body.String(), `value="`+raw+`"`)
			f.forecast.AssertNotCalled(t, "Predict", mock.Anything)
		})
	}

	t.Run("no forecast yet", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.forecast.On("Last").Return(nil, services.ErrNoForecast)

		form := url.Values{"action": {"predict"}}
		req := httptest.NewRequest(http.MethodPost, "/forecast", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "forecast run not found")
	})
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.999, "1,000.00"},
		{23500, "23,500.00"},
		{-1234567.5, "-1,234,567.50"},
		{12.346, "12.35"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMoney(tt.in), "%v", tt.in)
	}

	assert.Equal(t, "n/a", formatFixed(nil))
	assert.Equal(t, "7.20", formatFixed(ptr(7.2)))
	assert.Equal(t, "n/a", formatPercent(nil))
	assert.Equal(t, "60.00%", formatPercent(ptr(.6)))
}
