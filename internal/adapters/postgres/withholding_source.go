package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// WithholdingSource reads posted withholding documents with their tax lines
type WithholdingSource struct {
	db ports.DBPort
}

// NewWithholdingSource creates a withholding document source
func NewWithholdingSource(db ports.DBPort) *WithholdingSource {
	return &WithholdingSource{db: db}
}

// FindPosted returns every posted document of the type, reference and partner
func (s *WithholdingSource) FindPosted(ctx context.Context, db ports.DBTX, q ports.WithholdingQuery) ([]*domain.WithholdingDocument, error) {
	return s.load(ctx, executor(db, s.db), `
		SELECT id, document_type, reference, partner_id, posted
		FROM withholding_documents
		WHERE posted AND document_type = $1 AND reference = $2 AND partner_id = $3
		ORDER BY id`,
		q.DocumentType, q.Reference, q.PartnerID)
}

// GetDocuments loads documents by ID regardless of their posted flag
func (s *WithholdingSource) GetDocuments(ctx context.Context, db ports.DBTX, ids []string) ([]*domain.WithholdingDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.load(ctx, executor(db, s.db), `
		SELECT id, document_type, reference, partner_id, posted
		FROM withholding_documents
		WHERE id = ANY($1)
		ORDER BY id`, ids)
}

func (s *WithholdingSource) load(ctx context.Context, q ports.DBTX, query string, args ...interface{}) ([]*domain.WithholdingDocument, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query withholding documents: %w", err)
	}
	defer rows.Close()

	var (
		docs []*domain.WithholdingDocument
		ids  []string
	)
	byID := make(map[string]*domain.WithholdingDocument)
	for rows.Next() {
		var d domain.WithholdingDocument
		if err := rows.Scan(&d.ID, &d.DocumentType, &d.Reference, &d.PartnerID, &d.Posted); err != nil {
			return nil, fmt.Errorf("scan withholding document: %w", err)
		}
		docs = append(docs, &d)
		ids = append(ids, d.ID)
		byID[d.ID] = &d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withholding documents: %w", err)
	}
	if len(docs) == 0 {
		return docs, nil
	}

	taxRows, err := q.Query(ctx, `
		SELECT document_id, category, amount
		FROM withholding_tax_lines
		WHERE document_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query withholding tax lines: %w", err)
	}
	defer taxRows.Close()

	for taxRows.Next() {
		var (
			docID, category string
			amount          pgtype.Numeric
		)
		if err := taxRows.Scan(&docID, &category, &amount); err != nil {
			return nil, fmt.Errorf("scan withholding tax line: %w", err)
		}
		value, err := pgNumericToDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("withholding %s tax amount: %w", docID, err)
		}
		if d, ok := byID[docID]; ok {
			d.TaxLines = append(d.TaxLines, domain.TaxLine{Category: domain.TaxCategory(category), Amount: value})
		}
	}
	if err := taxRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withholding tax lines: %w", err)
	}

	return docs, nil
}
