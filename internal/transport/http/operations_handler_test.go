package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scdash/internal/dataprocessing"
	apperrors "scdash/internal/errors"
	"scdash/internal/operations"
)

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestOperationsHandler_RunPipeline(t *testing.T) {
	f := newHandlerFixture(t)
	f.pipeline.On("Run", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
		return req.InputFile == "data/in.csv" && req.OutputFile == "out/processed.xlsx" && req.PersistsDB() && req.ID != ""
	})).Return(&operations.OperationResponse{
		ID:      "op-1",
		Status:  operations.OperationStatusCompleted,
		Summary: &operations.RunSummary{Rows: 5, OutputFile: "out/processed.xlsx", PersistedDB: true},
	}, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, postJSON("/api/pipeline/run", `{"input":"data/in.csv","output":"out/processed.xlsx","persist_db":true}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp operations.OperationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	assert.Equal(t, 5, resp.Summary.Rows)
	assert.True(t, resp.Summary.PersistedDB)
	f.assertExpectations(t)
}

func TestOperationsHandler_RunPipeline_EmptyBodyUsesDefaults(t *testing.T) {
	f := newHandlerFixture(t)
	f.pipeline.On("Run", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
		return req.InputFile == "" && req.OutputFile == "" && req.PersistDB == nil
	})).Return(&operations.OperationResponse{Status: operations.OperationStatusCompleted}, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, postJSON("/api/pipeline/run", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	f.assertExpectations(t)
}

func TestOperationsHandler_RunPipeline_ExplicitPersistFalse(t *testing.T) {
	f := newHandlerFixture(t)
	f.pipeline.On("Run", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
		return req.PersistDB != nil && !*req.PersistDB
	})).Return(&operations.OperationResponse{Status: operations.OperationStatusCompleted}, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, postJSON("/api/pipeline/run", `{"persist_db":false}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	f.assertExpectations(t)
}

func TestOperationsHandler_RunPipeline_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		runErr     error
		wantStatus int
		wantText   string
	}{
		{"bad input extension", `{"input":"data/in.pdf"}`, nil, http.StatusBadRequest, "input must be a .csv, .tsv or .xlsx file"},
		{"bad output extension", `{"output":"out.csv"}`, nil, http.StatusBadRequest, "output must be an .xlsx file"},
		{"unknown field", `{"inputs":"a.csv"}`, nil, http.StatusBadRequest, ""},
		{"schema failure", `{}`, apperrors.NewSchemaError("missing required columns: sku", nil), http.StatusUnprocessableEntity, "missing required columns: sku"},
		{"storage failure", `{"persist_db":true}`, apperrors.NewStorageError("cannot write table supply_chain", nil), http.StatusInternalServerError, "cannot write table supply_chain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			if tt.runErr != nil {
				f.pipeline.On("Run", mock.Anything, mock.Anything).
					Return(&operations.OperationResponse{Status: operations.OperationStatusFailed}, tt.runErr)
			}

			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, postJSON("/api/pipeline/run", tt.body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			if tt.runErr == nil {
				f.pipeline.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOperationsHandler_StatusAndClearCache(t *testing.T) {
	f := newHandlerFixture(t)
	f.pipeline.On("Source").Return("data/supply_chain.csv")
	f.pipeline.On("ProcessedFile").Return("data/processed_data.xlsx")
	f.pipeline.On("LastRun").Return(nil)
	f.pipeline.On("CacheStats").Return(dataprocessing.CacheStats{Entries: 2, Hits: 3, Misses: 2})
	f.pipeline.On("ClearCache", mock.Anything).Return(2)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status PipelineStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "data/supply_chain.csv", status.Source)
	assert.Nil(t, status.LastRun)
	assert.Equal(t, dataprocessing.CacheStats{Entries: 2, Hits: 3, Misses: 2}, status.Cache)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, postJSON("/api/cache/clear", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","cleared":2}`, rec.Body.String())
	f.assertExpectations(t)
}
