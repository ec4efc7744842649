package ports

import (
	"context"

	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// WithholdingQuery identifies the withholding documents a line may refer to
type WithholdingQuery struct {
	DocumentType string
	Reference    string
	PartnerID    string
}

// WithholdingSource exposes posted withholding documents (read-only)
type WithholdingSource interface {
	// FindPosted returns every posted document matching the query, tax lines included
	FindPosted(ctx context.Context, db DBTX, q WithholdingQuery) ([]*domain.WithholdingDocument, error)

	// GetDocuments loads documents by ID, tax lines included
	GetDocuments(ctx context.Context, db DBTX, ids []string) ([]*domain.WithholdingDocument, error)
}
