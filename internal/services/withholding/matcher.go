// Package withholding resolves the withholding documents referenced by settlement lines.
package withholding

import (
	"context"
	"fmt"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	svcports "github.com/kevin07696/card-reconciliation/internal/services/ports"
	"github.com/kevin07696/card-reconciliation/pkg/observability"
)

// Matcher links lines to posted withholding documents by sequence
type Matcher struct {
	repo         ports.BatchRepository
	source       ports.WithholdingSource
	logger       ports.Logger
	documentType string
}

// NewMatcher creates a matcher looking up documents of the given type
func NewMatcher(repo ports.BatchRepository, source ports.WithholdingSource, logger ports.Logger, documentType string) *Matcher {
	return &Matcher{
		repo:         repo,
		source:       source,
		logger:       logger,
		documentType: documentType,
	}
}

type resolution struct {
	line  *domain.Line
	docID string
}

// Resolve matches every line that carries a withholding sequence. All lookups
// finish before any line is written; if any sequence matches several documents
// nothing is written and AMBIGUOUS_WITHHOLDING_MATCH lists every such line.
func (m *Matcher) Resolve(ctx context.Context, tx ports.DBTX, batch *domain.Batch) (*svcports.ResolutionResult, error) {
	if err := batch.EnsureMutable(); err != nil {
		return nil, err
	}

	lines, err := m.repo.ListLines(ctx, tx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("list batch lines: %w", err)
	}

	result := &svcports.ResolutionResult{}
	resolutions := make([]resolution, 0, len(lines))
	var ambiguous []domain.AmbiguousMatch

	for _, l := range lines {
		seq := l.TrimmedWithholdingSequence()
		if seq == "" {
			result.Untouched++
			continue
		}

		docs, err := m.source.FindPosted(ctx, tx, ports.WithholdingQuery{
			DocumentType: m.documentType,
			Reference:    seq,
			PartnerID:    batch.ReferencePartnerID,
		})
		if err != nil {
			return nil, fmt.Errorf("find withholding %q: %w", seq, err)
		}

		switch len(docs) {
		case 0:
			resolutions = append(resolutions, resolution{line: l})
		case 1:
			resolutions = append(resolutions, resolution{line: l, docID: docs[0].ID})
		default:
			ids := make([]string, len(docs))
			for i, d := range docs {
				ids[i] = d.ID
			}
			ambiguous = append(ambiguous, domain.AmbiguousMatch{
				LineID:        l.ID,
				VoucherNumber: l.VoucherNumber,
				Sequence:      seq,
				DocumentIDs:   ids,
			})
		}
	}

	if len(ambiguous) > 0 {
		observability.RecordWithholdingResolution("ambiguous", len(ambiguous))
		m.logger.Warn("ambiguous withholding matches",
			ports.String("batch_id", batch.ID),
			ports.Int("lines", len(ambiguous)))
		return nil, domain.NewAmbiguousWithholding(ambiguous)
	}

	for _, r := range resolutions {
		if r.docID == "" {
			r.line.WithholdingDocumentID = nil
			r.line.WithholdingState = domain.WithholdingStatePending
			result.Pending++
		} else {
			docID := r.docID
			r.line.WithholdingDocumentID = &docID
			r.line.WithholdingState = domain.WithholdingStateDone
			result.Matched++
		}
		if err := m.repo.UpdateLine(ctx, tx, r.line); err != nil {
			return nil, fmt.Errorf("update line %s: %w", r.line.ID, err)
		}
	}

	observability.RecordWithholdingResolution("done", result.Matched)
	observability.RecordWithholdingResolution("pending", result.Pending)
	m.logger.Info("withholding documents resolved",
		ports.String("batch_id", batch.ID),
		ports.Int("matched", result.Matched),
		ports.Int("pending", result.Pending))

	return result, nil
}
