package reconciliation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	handler "github.com/kevin07696/card-reconciliation/internal/handlers/reconciliation"
	"github.com/kevin07696/card-reconciliation/internal/services/ports"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateBatch(ctx context.Context, req *ports.CreateBatchRequest) (*domain.Batch, error) {
	args := m.Called(ctx, req)
	b, _ := args.Get(0).(*domain.Batch)
	return b, args.Error(1)
}

func (m *mockService) GetBatch(ctx context.Context, batchID string) (*ports.BatchView, error) {
	args := m.Called(ctx, batchID)
	v, _ := args.Get(0).(*ports.BatchView)
	return v, args.Error(1)
}

func (m *mockService) DeleteBatch(ctx context.Context, batchID string) error {
	return m.Called(ctx, batchID).Error(0)
}

func (m *mockService) PopulateLines(ctx context.Context, batchID string) (*ports.SelectionResult, error) {
	args := m.Called(ctx, batchID)
	r, _ := args.Get(0).(*ports.SelectionResult)
	return r, args.Error(1)
}

func (m *mockService) ExportWorksheet(ctx context.Context, batchID string, format ports.WorksheetFormat, w io.Writer) error {
	args := m.Called(ctx, batchID, format, w)
	if content, ok := args.Get(1).(string); ok {
		_, _ = io.WriteString(w, content)
	}
	return args.Error(0)
}

func (m *mockService) ImportWorksheet(ctx context.Context, req *ports.ImportRequest) (*ports.ImportResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*ports.ImportResult)
	return r, args.Error(1)
}

func (m *mockService) ResolveWithholdings(ctx context.Context, batchID string) (*ports.ResolutionResult, error) {
	args := m.Called(ctx, batchID)
	r, _ := args.Get(0).(*ports.ResolutionResult)
	return r, args.Error(1)
}

func (m *mockService) Validate(ctx context.Context, batchID string) error {
	return m.Called(ctx, batchID).Error(0)
}

func (m *mockService) Start(ctx context.Context, batchID string) (*domain.Batch, error) {
	args := m.Called(ctx, batchID)
	b, _ := args.Get(0).(*domain.Batch)
	return b, args.Error(1)
}

func (m *mockService) Complete(ctx context.Context, batchID string) (*ports.CompletionResult, error) {
	args := m.Called(ctx, batchID)
	r, _ := args.Get(0).(*ports.CompletionResult)
	return r, args.Error(1)
}

func (m *mockService) Reset(ctx context.Context, batchID string) (*domain.Batch, error) {
	args := m.Called(ctx, batchID)
	b, _ := args.Get(0).(*domain.Batch)
	return b, args.Error(1)
}

func setup(t *testing.T) (*mockService, http.Handler) {
	t.Helper()
	svc := new(mockService)
	mux := http.NewServeMux()
	handler.NewHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	t.Cleanup(func() { svc.AssertExpectations(t) })
	return svc, mux
}

func do(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateBatch(t *testing.T) {
	svc, h := setup(t)

	svc.On("CreateBatch", mock.Anything, mock.MatchedBy(func(req *ports.CreateBatchRequest) bool {
		return req.CutoffDate.Equal(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)) &&
			req.SourceJournalID == "j-card" && len(req.CardTypes) == 1
	})).Return(&domain.Batch{ID: "b-1", Name: "CCR/00001", State: domain.BatchStateDraft}, nil)

	body := `{"cutoff_date":"2026-03-20","card_types":[{"id":"ct-visa","code":"VISA","name":"Visa"}],
		"source_journal_id":"j-card","destination_journal_id":"j-bank",
		"responsible_party_id":"u-1","reference_partner_id":"p-bank"}`
	rec := do(h, http.MethodPost, "/v1/batches", strings.NewReader(body))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "CCR/00001", decode(t, rec)["name"])
}

func TestCreateBatch_InvalidBody(t *testing.T) {
	_, h := setup(t)

	rec := do(h, http.MethodPost, "/v1/batches", strings.NewReader(`{"cutoff_date":"20/03/2026"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]interface{})
	assert.Equal(t, "datetime", fields["CutoffDate"])
	assert.Equal(t, "required", fields["SourceJournalID"])
}

func TestCreateBatch_CardTypeNeedsIDAndCode(t *testing.T) {
	svc, h := setup(t)

	body := `{"cutoff_date":"2026-03-20","card_types":[{"code":"VISA"},{"id":"ct-mc"}],
		"source_journal_id":"j-card","destination_journal_id":"j-bank",
		"responsible_party_id":"u-1","reference_partner_id":"p-bank"}`
	rec := do(h, http.MethodPost, "/v1/batches", strings.NewReader(body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]interface{})
	assert.Equal(t, "required", fields["ID"])
	assert.Equal(t, "required", fields["Code"])
	svc.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: domain.ErrBatchNotFound("b-1"), status: http.StatusNotFound, code: "BATCH_NOT_FOUND"},
		{name: "invalid transition", err: domain.NewDomainError(domain.ErrorCodeBatchInvalidTransition, "no"), status: http.StatusConflict, code: "BATCH_INVALID_TRANSITION"},
		{name: "locked", err: domain.ErrBatchLocked("b-1", nil), status: http.StatusConflict, code: "BATCH_LOCKED"},
		{name: "validation", err: domain.NewValidationFailure([]domain.LineIssue{{LineID: "l-1", Reason: "withholding pending"}}), status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "missing account", err: domain.NewDomainError(domain.ErrorCodeConfigCommissionAccount, "no account"), status: http.StatusUnprocessableEntity, code: "CONFIG_COMMISSION_ACCOUNT_MISSING"},
		{name: "database", err: domain.NewDomainError(domain.ErrorCodeDatabaseError, "boom"), status: http.StatusInternalServerError, code: "INTERNAL_DATABASE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := setup(t)
			svc.On("Complete", mock.Anything, "b-1").Return(nil, tt.err)

			rec := do(h, http.MethodPost, "/v1/batches/b-1/complete", nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestValidate_ReportsIssues(t *testing.T) {
	svc, h := setup(t)
	issues := []domain.LineIssue{{LineID: "l-1", Reason: "withholding pending"}}
	svc.On("Validate", mock.Anything, "b-1").Return(domain.NewValidationFailure(issues))

	rec := do(h, http.MethodPost, "/v1/batches/b-1/validate", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	details := decode(t, rec)["details"].(map[string]interface{})
	assert.Len(t, details[domain.DetailIssues], 1)
}

func TestUnexpectedErrorHidesMessage(t *testing.T) {
	svc, h := setup(t)
	svc.On("GetBatch", mock.Anything, "b-1").Return(nil, assert.AnError)

	rec := do(h, http.MethodGet, "/v1/batches/b-1", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec)["error"])
}

func TestExportWorksheet(t *testing.T) {
	svc, h := setup(t)
	svc.On("ExportWorksheet", mock.Anything, "b-1", ports.WorksheetFormatCSV, mock.Anything).
		Return(nil, "Line ID,Date\n")

	rec := do(h, http.MethodGet, "/v1/batches/b-1/worksheet?format=csv", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "settlement-b-1.csv")
	assert.Equal(t, "Line ID,Date\n", rec.Body.String())
}

func TestExportWorksheet_UnknownFormat(t *testing.T) {
	_, h := setup(t)

	rec := do(h, http.MethodGet, "/v1/batches/b-1/worksheet?format=ods", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportWorksheet(t *testing.T) {
	svc, h := setup(t)
	svc.On("ImportWorksheet", mock.Anything, mock.MatchedBy(func(req *ports.ImportRequest) bool {
		data, _ := io.ReadAll(req.Data)
		return req.BatchID == "b-1" && req.Format == ports.WorksheetFormatCSV &&
			req.StartRow == 201 && req.MaxRows == 200 && string(data) == "rows"
	})).Return(&ports.ImportResult{Applied: 200, NextRow: 401}, nil)

	rec := do(h, http.MethodPut, "/v1/batches/b-1/worksheet?format=csv&start_row=201&max_rows=200",
		bytes.NewBufferString("rows"))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(200), body["applied"])
	assert.Equal(t, float64(401), body["next_row"])
}

func TestImportWorksheet_BadPaging(t *testing.T) {
	_, h := setup(t)

	rec := do(h, http.MethodPut, "/v1/batches/b-1/worksheet?start_row=-1", strings.NewReader(""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLifecycleEndpoints(t *testing.T) {
	svc, h := setup(t)
	svc.On("PopulateLines", mock.Anything, "b-1").Return(&ports.SelectionResult{AlreadyInBatch: 2}, nil)
	svc.On("ResolveWithholdings", mock.Anything, "b-1").Return(&ports.ResolutionResult{Matched: 1}, nil)
	svc.On("Start", mock.Anything, "b-1").Return(&domain.Batch{ID: "b-1", State: domain.BatchStateInProcess}, nil)
	svc.On("Reset", mock.Anything, "b-1").Return(&domain.Batch{ID: "b-1", State: domain.BatchStateDraft, Revision: 1}, nil)
	svc.On("DeleteBatch", mock.Anything, "b-1").Return(nil)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/v1/batches/b-1/populate", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/v1/batches/b-1/withholdings/resolve", nil).Code)

	rec := do(h, http.MethodPost, "/v1/batches/b-1/start", nil)
	assert.Equal(t, "in_process", decode(t, rec)["state"])

	rec = do(h, http.MethodPost, "/v1/batches/b-1/reset", nil)
	assert.Equal(t, float64(1), decode(t, rec)["revision"])

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/v1/batches/b-1", nil).Code)
}
