// Package reconciliation exposes settlement batches over HTTP JSON.
package reconciliation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	worksheetadapter "github.com/kevin07696/card-reconciliation/internal/adapters/worksheet"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/services/ports"
	"github.com/kevin07696/card-reconciliation/pkg/timeutil"
)

// MaxWorksheetBytes caps an uploaded worksheet
const MaxWorksheetBytes = 32 << 20

// Handler serves the batch lifecycle endpoints
type Handler struct {
	service  ports.ReconciliationService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new reconciliation HTTP handler
func NewHandler(service ports.ReconciliationService, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes mounts every endpoint on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/batches", h.CreateBatch)
	mux.HandleFunc("GET /v1/batches/{id}", h.GetBatch)
	mux.HandleFunc("DELETE /v1/batches/{id}", h.DeleteBatch)
	mux.HandleFunc("POST /v1/batches/{id}/populate", h.PopulateLines)
	mux.HandleFunc("GET /v1/batches/{id}/worksheet", h.ExportWorksheet)
	mux.HandleFunc("PUT /v1/batches/{id}/worksheet", h.ImportWorksheet)
	mux.HandleFunc("POST /v1/batches/{id}/withholdings/resolve", h.ResolveWithholdings)
	mux.HandleFunc("POST /v1/batches/{id}/validate", h.Validate)
	mux.HandleFunc("POST /v1/batches/{id}/start", h.Start)
	mux.HandleFunc("POST /v1/batches/{id}/complete", h.Complete)
	mux.HandleFunc("POST /v1/batches/{id}/reset", h.Reset)
}

// CreateBatchBody is the JSON body of POST /v1/batches
type CreateBatchBody struct {
	CutoffDate           string            `json:"cutoff_date" validate:"required,datetime=2006-01-02"`
	CardTypes            []domain.CardType `json:"card_types" validate:"dive"`
	SourceJournalID      string            `json:"source_journal_id" validate:"required"`
	DestinationJournalID string            `json:"destination_journal_id" validate:"required"`
	ResponsiblePartyID   string            `json:"responsible_party_id" validate:"required"`
	ReferencePartnerID   string            `json:"reference_partner_id" validate:"required"`
}

// CreateBatch handles POST /v1/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var body CreateBatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.respondValidation(w, err)
		return
	}

	cutoff, err := timeutil.ParseDate(timeutil.DateLayout, body.CutoffDate)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "cutoff_date must be YYYY-MM-DD", nil)
		return
	}

	req := &ports.CreateBatchRequest{
		CutoffDate:           cutoff,
		CardTypes:            body.CardTypes,
		SourceJournalID:      body.SourceJournalID,
		DestinationJournalID: body.DestinationJournalID,
		ResponsiblePartyID:   body.ResponsiblePartyID,
		ReferencePartnerID:   body.ReferencePartnerID,
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondValidation(w, err)
		return
	}

	batch, err := h.service.CreateBatch(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, batch)
}

// GetBatch handles GET /v1/batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// DeleteBatch handles DELETE /v1/batches/{id}
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBatch(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PopulateLines handles POST /v1/batches/{id}/populate
func (h *Handler) PopulateLines(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.PopulateLines(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// ExportWorksheet handles GET /v1/batches/{id}/worksheet?format=xlsx|csv
func (h *Handler) ExportWorksheet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format, ok := h.format(w, r)
	if !ok {
		return
	}

	// Buffered so a failure still yields a JSON error instead of a truncated file
	var buf bytes.Buffer
	if err := h.service.ExportWorksheet(r.Context(), id, format, &buf); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", worksheetadapter.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="settlement-%s.%s"`, id, format))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Failed to write worksheet response", zap.String("batch_id", id), zap.Error(err))
	}
}

// ImportWorksheet handles PUT /v1/batches/{id}/worksheet?format=&start_row=&max_rows=
// The request body is the worksheet file.
func (h *Handler) ImportWorksheet(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	startRow, err := queryInt(r, "start_row")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	maxRows, err := queryInt(r, "max_rows")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.service.ImportWorksheet(r.Context(), &ports.ImportRequest{
		Data:     http.MaxBytesReader(w, r.Body, MaxWorksheetBytes),
		BatchID:  r.PathValue("id"),
		Format:   format,
		StartRow: startRow,
		MaxRows:  maxRows,
	})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "worksheet exceeds upload limit", nil)
			return
		}
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// ResolveWithholdings handles POST /v1/batches/{id}/withholdings/resolve
func (h *Handler) ResolveWithholdings(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ResolveWithholdings(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// Validate handles POST /v1/batches/{id}/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Validate(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"valid": true})
}

// Start handles POST /v1/batches/{id}/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	batch, err := h.service.Start(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, batch)
}

// Complete handles POST /v1/batches/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// Reset handles POST /v1/batches/{id}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	batch, err := h.service.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, batch)
}

// Helper methods

func (h *Handler) format(w http.ResponseWriter, r *http.Request) (ports.WorksheetFormat, bool) {
	format := ports.WorksheetFormat(strings.ToLower(r.URL.Query().Get("format")))
	switch format {
	case "":
		return ports.WorksheetFormatXLSX, true
	case ports.WorksheetFormatXLSX, ports.WorksheetFormatCSV:
		return format, true
	default:
		h.respondError(w, http.StatusBadRequest, "format must be xlsx or csv", nil)
		return "", false
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// statusFor maps domain error codes to HTTP status codes
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodeBatchNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeBatchInvalidTransition, domain.ErrorCodeBatchLocked, domain.ErrorCodeBatchImmutable:
		return http.StatusConflict
	case domain.ErrorCodeValidationFailed, domain.ErrorCodeValidationMissingField,
		domain.ErrorCodeWithholdingMismatch, domain.ErrorCodeAmbiguousWithholding,
		domain.ErrorCodeConfigCommissionAccount, domain.ErrorCodeConfigRetentionAccount,
		domain.ErrorCodeConfigDepositAccount, domain.ErrorCodeConfigSequence:
		return http.StatusUnprocessableEntity
	case domain.ErrorCodeWorksheetFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		h.logger.Error("Reconciliation request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	status := statusFor(domainErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Reconciliation request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(domainErr.Code)),
			zap.Error(err),
		)
		h.respondError(w, status, "internal error", map[string]interface{}{"code": domainErr.Code})
		return
	}

	h.logger.Info("Reconciliation request rejected",
		zap.String("path", r.URL.Path),
		zap.String("code", string(domainErr.Code)),
		zap.Int("status", status),
	)
	extra := map[string]interface{}{"code": domainErr.Code}
	if len(domainErr.Details) > 0 {
		extra["details"] = domainErr.Details
	}
	h.respondError(w, status, domainErr.Message, extra)
}

func (h *Handler) respondValidation(w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	h.respondError(w, http.StatusBadRequest, "invalid request", map[string]interface{}{"fields": fields})
}

func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{
		"success": false,
		"error":   message,
		"time":    timeutil.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		body[k] = v
	}
	h.respondJSON(w, statusCode, body)
}

func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
