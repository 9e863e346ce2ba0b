package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scdash/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "io error",
			err:        NewIOError("cannot open input", errors.New("no such file")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeIO,
		},
		{
			name:       "schema error wrapped",
			err:        fmt.Errorf("calculate: %w", NewSchemaError("missing required columns: sku", nil)),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeSchema,
		},
		{
			name:       "computation error",
			err:        NewComputationError("inventory turnover undefined", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeComputation,
		},
		{
			name:       "storage error",
			err:        NewStorageError("replace failed", errors.New("locked")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeStorage,
		},
		{
			name:       "api error",
			err:        ErrRateLimitExceeded,
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRateLimit,
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/kpis", nil)
			rec := httptest.NewRecorder()
			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/kpis", body["instance"])
			assert.Contains(t, body, "trace_id")
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestErrorHandler_HidesInternalCause(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)
	rec := httptest.NewRecorder()
	h.HandleError(rec, req, NewStorageError("replace failed", errors.New("secret dsn detail")))

	body := decodeProblem(t, rec)
	assert.Equal(t, "replace failed", body["detail"])
	testutil.AssertLogContains(t, handler, slog.LevelError, "request failed")
}

func TestErrorHandler_ClientErrorsLogWarn(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := httptest.NewRecorder()
	h.HandleError(rec, req, NewSchemaError("missing required columns: sku", nil).WithContext("missing", []string{"sku"}))

	body := decodeProblem(t, rec)
	assert.Equal(t, "SCHEMA", body["error_type"])
	assert.Equal(t, []interface{}{"sku"}, body["missing"])
	assert.Contains(t, body, "stack")
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "request failed")
	assert.True(t, handler.ContainsAttr("component", "error_handler"))
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, handler.Count())
	assert.Equal(t, 0, rec.Body.Len())
}

func TestErrorHandler_Middleware_RecoversPanic(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, TypeInternal, decodeProblem(t, rec)["type"])
	testutil.AssertLogContains(t, handler, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "DELETE")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(ErrTypeIO))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(ErrTypeSchema))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(ErrTypeComputation))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ErrTypeStorage))
	assert.Equal(t, http.StatusNotFound, StatusFor(ErrTypeNotFound))
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeIO, "Unreadable Input", "", "/upload").
		WithExtension("file", "a.csv")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "a.csv", body["file"])
	assert.Equal(t, TypeIO, body["type"])
	assert.NotContains(t, body, "detail")
}

func TestAPIError_Helpers(t *testing.T) {
	err := NewValidationErrors([]ValidationError{{Field: "input", Message: "required"}})
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "Request validation failed", err.Error())

	rec := httptest.NewRecorder()
	WriteError(rec, ErrPayloadTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Uploaded file is too large", resp.Error.Message)
}
