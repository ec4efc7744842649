package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Batch Errors (BATCH_*)
	ErrorCodeBatchNotFound          ErrorCode = "BATCH_NOT_FOUND"
	ErrorCodeBatchInvalidTransition ErrorCode = "BATCH_INVALID_TRANSITION"
	ErrorCodeBatchLocked            ErrorCode = "BATCH_LOCKED"
	ErrorCodeBatchImmutable         ErrorCode = "BATCH_IMMUTABLE"

	// Configuration Errors (CONFIG_*) block the whole batch
	ErrorCodeConfigCommissionAccount ErrorCode = "CONFIG_COMMISSION_ACCOUNT_MISSING"
	ErrorCodeConfigRetentionAccount  ErrorCode = "CONFIG_RETENTION_ACCOUNT_MISSING"
	ErrorCodeConfigDepositAccount    ErrorCode = "CONFIG_DEPOSIT_ACCOUNT_MISSING"
	ErrorCodeConfigSequence          ErrorCode = "CONFIG_SEQUENCE_MISSING"

	// Validation Errors (VALIDATION_*) are recoverable by operator edits
	ErrorCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeWithholdingMismatch    ErrorCode = "VALIDATION_WITHHOLDING_MISMATCH"

	// Matching Errors
	ErrorCodeAmbiguousWithholding ErrorCode = "AMBIGUOUS_WITHHOLDING_MATCH"

	// Worksheet Errors (WORKSHEET_*)
	ErrorCodeWorksheetFormat ErrorCode = "WORKSHEET_FORMAT_INVALID"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// Detail keys used by the structured reports attached to errors
const (
	DetailIssues     = "issues"
	DetailMismatches = "mismatches"
	DetailAmbiguous  = "ambiguous"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	return GetErrorCode(err) == ErrorCodeBatchNotFound
}

// IsConfigurationError checks if an error is a fatal configuration error
func IsConfigurationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeConfigCommissionAccount ||
		code == ErrorCodeConfigRetentionAccount ||
		code == ErrorCodeConfigDepositAccount ||
		code == ErrorCodeConfigSequence
}

// IsValidationError checks if an error blocks posting until an operator edits the batch
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeWithholdingMismatch
}

// IsConflictError checks if an error reports a batch state or ownership conflict
func IsConflictError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeBatchInvalidTransition ||
		code == ErrorCodeBatchLocked ||
		code == ErrorCodeBatchImmutable
}

// ErrBatchNotFound builds the error returned when a batch id does not resolve
func ErrBatchNotFound(id string) *DomainError {
	return NewDomainError(ErrorCodeBatchNotFound, "reconciliation batch not found").
		WithDetail("batch_id", id)
}

// ErrBatchImmutable builds the error returned when a done batch would be mutated
func ErrBatchImmutable(b *Batch) *DomainError {
	return NewDomainError(ErrorCodeBatchImmutable, "batch is closed; reset it to draft before editing").
		WithDetail("batch_id", b.ID).
		WithDetail("state", string(b.State))
}

// ErrBatchLocked builds the error returned when another writer holds the batch
func ErrBatchLocked(id string, err error) *DomainError {
	return WrapError(ErrorCodeBatchLocked, "batch is being modified by another operator", err).
		WithDetail("batch_id", id)
}

// NewValidationFailure reports every invalid line of a batch
func NewValidationFailure(issues []LineIssue) *DomainError {
	return NewDomainError(ErrorCodeValidationFailed,
		fmt.Sprintf("%d line(s) failed validation", len(issues))).
		WithDetail(DetailIssues, issues)
}

// NewWithholdingMismatch reports withholding documents whose tax lines disagree with the lines
func NewWithholdingMismatch(mismatches []WithholdingMismatch) *DomainError {
	return NewDomainError(ErrorCodeWithholdingMismatch,
		fmt.Sprintf("%d withholding document total(s) differ from the settlement lines", len(mismatches))).
		WithDetail(DetailMismatches, mismatches)
}

// NewAmbiguousWithholding reports lines whose sequence matched more than one document
func NewAmbiguousWithholding(matches []AmbiguousMatch) *DomainError {
	return NewDomainError(ErrorCodeAmbiguousWithholding,
		fmt.Sprintf("%d line(s) matched more than one withholding document", len(matches))).
		WithDetail(DetailAmbiguous, matches)
}

// LineIssuesOf extracts the per-line validation report from an error, if any
func LineIssuesOf(err error) []LineIssue {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return nil
	}
	issues, _ := domainErr.Details[DetailIssues].([]LineIssue)
	return issues
}

// MismatchesOf extracts withholding aggregate mismatches from an error, if any
func MismatchesOf(err error) []WithholdingMismatch {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return nil
	}
	mismatches, _ := domainErr.Details[DetailMismatches].([]WithholdingMismatch)
	return mismatches
}

// AmbiguousMatchesOf extracts ambiguous withholding matches from an error, if any
func AmbiguousMatchesOf(err error) []AmbiguousMatch {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return nil
	}
	matches, _ := domainErr.Details[DetailAmbiguous].([]AmbiguousMatch)
	return matches
}
