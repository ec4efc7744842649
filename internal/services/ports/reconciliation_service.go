package ports

import (
	"context"
	"io"
	"time"

	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// WorksheetFormat selects the settlement worksheet encoding
type WorksheetFormat string

const (
	WorksheetFormatXLSX WorksheetFormat = "xlsx"
	WorksheetFormatCSV  WorksheetFormat = "csv"
)

// CreateBatchRequest contains parameters for opening a reconciliation batch.
// ResponsiblePartyID and ReferencePartnerID are explicit; there is no ambient session.
type CreateBatchRequest struct {
	CutoffDate           time.Time         `json:"cutoff_date" validate:"required"`
	CardTypes            []domain.CardType `json:"card_types" validate:"dive"`
	SourceJournalID      string            `json:"source_journal_id" validate:"required"`
	DestinationJournalID string            `json:"destination_journal_id" validate:"required"`
	ResponsiblePartyID   string            `json:"responsible_party_id" validate:"required"`
	ReferencePartnerID   string            `json:"reference_partner_id" validate:"required"`
}

// BatchView is a batch together with its lines
type BatchView struct {
	Batch *domain.Batch  `json:"batch"`
	Lines []*domain.Line `json:"lines"`
}

// SelectionResult reports one run of the candidate payment selector
type SelectionResult struct {
	Added           []*domain.Line           `json:"added"`
	ExcludedClaimed []domain.ExcludedPayment `json:"excluded_claimed"`
	AlreadyInBatch  int                      `json:"already_in_batch"`
}

// ImportRequest contains parameters for a worksheet import.
// StartRow is the first data row to apply (1-based); zero starts at the beginning.
type ImportRequest struct {
	Data     io.Reader
	BatchID  string
	Format   WorksheetFormat
	StartRow int
	MaxRows  int
}

// RowSkip explains why one worksheet row was not applied
type RowSkip struct {
	LineID string `json:"line_id"`
	Reason string `json:"reason"`
	Row    int    `json:"row"`
}

// ImportResult reports one worksheet import call.
// When Complete is false the caller resumes with StartRow = NextRow.
type ImportResult struct {
	Skipped  []RowSkip `json:"skipped"`
	Applied  int       `json:"applied"`
	Unknown  int       `json:"unknown"`
	NextRow  int       `json:"next_row"`
	Complete bool      `json:"complete"`
}

// ResolutionResult reports one run of the withholding matcher
type ResolutionResult struct {
	Matched   int `json:"matched"`
	Pending   int `json:"pending"`
	Untouched int `json:"untouched"`
}

// CompletionResult reports a successful in_process -> done transition
type CompletionResult struct {
	Batch     *domain.Batch `json:"batch"`
	EntryRefs []string      `json:"entry_refs"`
}

// ReconciliationService defines the port for settlement reconciliation operations
type ReconciliationService interface {
	// CreateBatch opens a draft batch named from the batch numbering sequence
	CreateBatch(ctx context.Context, req *CreateBatchRequest) (*domain.Batch, error)

	// GetBatch returns the batch and its ordered lines
	GetBatch(ctx context.Context, batchID string) (*BatchView, error)

	// DeleteBatch removes a batch that is not done, together with its lines
	DeleteBatch(ctx context.Context, batchID string) error

	// PopulateLines runs the candidate payment selector
	PopulateLines(ctx context.Context, batchID string) (*SelectionResult, error)

	// ExportWorksheet writes the batch worksheet in the given format
	ExportWorksheet(ctx context.Context, batchID string, format WorksheetFormat, w io.Writer) error

	// ImportWorksheet applies settlement-reported amounts from a worksheet
	ImportWorksheet(ctx context.Context, req *ImportRequest) (*ImportResult, error)

	// ResolveWithholdings links withholding documents by sequence
	ResolveWithholdings(ctx context.Context, batchID string) (*ResolutionResult, error)

	// Validate checks every line and returns VALIDATION_FAILED with the full report when any is invalid
	Validate(ctx context.Context, batchID string) error

	// Start moves a draft batch to in_process
	Start(ctx context.Context, batchID string) (*domain.Batch, error)

	// Complete validates, posts every entry and moves the batch to done, atomically
	Complete(ctx context.Context, batchID string) (*CompletionResult, error)

	// Reset re-opens a done batch as draft without reversing posted entries
	Reset(ctx context.Context, batchID string) (*domain.Batch, error)
}
