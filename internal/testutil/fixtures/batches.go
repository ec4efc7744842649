package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// Identifiers shared by the default fixtures
const (
	SourceJournalID      = "journal-card-receipts"
	DestinationJournalID = "journal-bank"
	BankPartnerID        = "partner-bank"
	ResponsiblePartyID   = "employee-1"
	CardAccountID        = "account-card-receivable"
	CustomerPartnerID    = "partner-customer"
)

// BatchBuilder provides fluent API for building test batches.
type BatchBuilder struct {
	batch *domain.Batch
}

// NewBatch creates a draft batch with a cutoff of 2026-03-20.
func NewBatch() *BatchBuilder {
	now := time.Now()
	return &BatchBuilder{
		batch: &domain.Batch{
			ID:                   uuid.NewString(),
			Name:                 "CCR/00001",
			CutoffDate:           Date(2026, time.March, 20),
			SourceJournalID:      SourceJournalID,
			DestinationJournalID: DestinationJournalID,
			ResponsiblePartyID:   ResponsiblePartyID,
			ReferencePartnerID:   BankPartnerID,
			State:                domain.BatchStateDraft,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
	}
}

func (b *BatchBuilder) WithID(id string) *BatchBuilder {
	b.batch.ID = id
	return b
}

func (b *BatchBuilder) WithCutoff(cutoff time.Time) *BatchBuilder {
	b.batch.CutoffDate = cutoff
	return b
}

func (b *BatchBuilder) WithState(state domain.BatchState) *BatchBuilder {
	b.batch.State = state
	return b
}

func (b *BatchBuilder) WithCardTypes(types ...domain.CardType) *BatchBuilder {
	b.batch.CardTypes = types
	return b
}

func (b *BatchBuilder) WithReferencePartner(partnerID string) *BatchBuilder {
	b.batch.ReferencePartnerID = partnerID
	return b
}

func (b *BatchBuilder) Build() *domain.Batch {
	return b.batch
}
