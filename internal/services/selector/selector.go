// Package selector finds unreconciled card payments for a batch and turns them into settlement lines.
package selector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	svcports "github.com/kevin07696/card-reconciliation/internal/services/ports"
	"github.com/kevin07696/card-reconciliation/pkg/observability"
)

// Service is the candidate payment selector
type Service struct {
	repo     ports.BatchRepository
	payments ports.PaymentSource
	logger   ports.Logger
}

// NewService creates a new candidate payment selector
func NewService(repo ports.BatchRepository, payments ports.PaymentSource, logger ports.Logger) *Service {
	return &Service{
		repo:     repo,
		payments: payments,
		logger:   logger,
	}
}

// Populate adds one line per eligible payment to the batch. tx must be a write
// transaction; payments already linked to the batch are skipped, and payments
// claimed by another batch are reported, not added.
func (s *Service) Populate(ctx context.Context, tx ports.DBTX, batch *domain.Batch) (*svcports.SelectionResult, error) {
	if err := batch.EnsureMutable(); err != nil {
		return nil, err
	}

	candidates, err := s.payments.ListPostedPayments(ctx, tx, ports.PaymentQuery{
		JournalID: batch.SourceJournalID,
		From:      batch.PeriodStart(),
		To:        batch.PeriodEnd(),
	})
	if err != nil {
		return nil, fmt.Errorf("list posted payments: %w", err)
	}

	existing, err := s.repo.ListLines(ctx, tx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("list batch lines: %w", err)
	}
	inBatch := make(map[string]bool, len(existing))
	position := 0
	for _, l := range existing {
		inBatch[l.PaymentID] = true
		if l.Position > position {
			position = l.Position
		}
	}

	eligible := make([]*domain.Payment, 0, len(candidates))
	cardTypes := make(map[string]domain.CardType, len(candidates))
	for _, p := range candidates {
		if !p.Posted || p.JournalID != batch.SourceJournalID || !p.InPeriod(batch.PeriodStart(), batch.PeriodEnd()) {
			continue
		}
		ct := domain.CardType{Code: p.CardSelector, Name: p.CardSelector}
		if batch.HasCardTypeFilter() {
			var ok bool
			if ct, ok = batch.CardTypeForSelector(p.CardSelector); !ok {
				continue
			}
		}
		cardTypes[p.ID] = ct
		eligible = append(eligible, p)
	}

	ids := make([]string, len(eligible))
	for i, p := range eligible {
		ids[i] = p.ID
	}
	claimed, err := s.repo.ClaimedPayments(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("check payment claims: %w", err)
	}

	result := &svcports.SelectionResult{
		Added:           []*domain.Line{},
		ExcludedClaimed: []domain.ExcludedPayment{},
	}
	conflicts := 0
	for _, p := range eligible {
		if inBatch[p.ID] || claimed[p.ID] == batch.ID {
			result.AlreadyInBatch++
			continue
		}
		if owner, ok := claimed[p.ID]; ok {
			result.ExcludedClaimed = append(result.ExcludedClaimed, excluded(p, owner))
			continue
		}

		position++
		line := domain.NewLineFromPayment(uuid.NewString(), batch, p, cardTypes[p.ID], position)
		inserted, err := s.repo.InsertLine(ctx, tx, line)
		if err != nil {
			return nil, fmt.Errorf("insert line for payment %s: %w", p.ID, err)
		}
		if !inserted {
			// claimed concurrently between the claim check and the insert
			position--
			conflicts++
			result.ExcludedClaimed = append(result.ExcludedClaimed, excluded(p, ""))
			continue
		}
		result.Added = append(result.Added, line)
	}

	observability.RecordSelection(len(result.Added), len(result.ExcludedClaimed)-conflicts, conflicts)
	s.logger.Info("candidate payments selected",
		ports.String("batch_id", batch.ID),
		ports.Int("candidates", len(candidates)),
		ports.Int("added", len(result.Added)),
		ports.Int("already_in_batch", result.AlreadyInBatch),
		ports.Int("excluded_claimed", len(result.ExcludedClaimed)))

	return result, nil
}

func excluded(p *domain.Payment, owner string) domain.ExcludedPayment {
	return domain.ExcludedPayment{
		PaymentID:     p.ID,
		DocumentName:  p.DocumentName,
		VoucherNumber: p.VoucherNumber,
		ClaimedBy:     owner,
	}
}
