package posting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	"github.com/kevin07696/card-reconciliation/internal/services/posting"
	"github.com/kevin07696/card-reconciliation/internal/testutil/fixtures"
	"github.com/kevin07696/card-reconciliation/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	commissionAccount = "acc-commission"
	retentionAccount  = "acc-retention"
	depositAccount    = "acc-bank-settlement"
)

func newStore() *memstore.Store {
	store := memstore.New()
	store.SetPostingAccounts(ports.PostingAccounts{
		CommissionAccountID: commissionAccount,
		RetentionAccountID:  retentionAccount,
	})
	store.SetJournalLines(fixtures.DestinationJournalID,
		ports.JournalPaymentMethodLine{Name: "Manual", PaymentMethodName: "Manual", AccountID: "acc-bank"},
		ports.JournalPaymentMethodLine{Name: "Card settlement", PaymentMethodName: "Manual", AccountID: depositAccount},
	)
	return store
}

func newComposer(store *memstore.Store) *posting.Composer {
	return posting.NewComposer(store, store, store, store, fixtures.NopLogger{}, nil)
}

func postInTx(store *memstore.Store, composer *posting.Composer, batch *domain.Batch, lines []*domain.Line) ([]string, error) {
	var refs []string
	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		refs, err = composer.Post(ctx, tx, batch, lines)
		return err
	})
	return refs, err
}

func legFor(t *testing.T, entry *domain.JournalEntry, account string) domain.JournalLeg {
	t.Helper()
	for _, leg := range entry.Legs {
		if leg.AccountID == account {
			return leg
		}
	}
	t.Fatalf("no leg on account %s", account)
	return domain.JournalLeg{}
}

func TestPost_ScenarioA_RetentionAndDeposit(t *testing.T) {
	store := newStore()
	doc := fixtures.NewWithholdingDocument("001", "5.00", "10.00")
	store.AddWithholdingDocuments(doc)
	batch := fixtures.NewBatch().Build()
	line := fixtures.NewLine(batch.ID).WithRecorded("115.00").
		WithSettlement("100.00", "5.00", "10.00", "0.00").ResolvedTo(doc.ID).Build()

	refs, err := postInTx(store, newComposer(store), batch, []*domain.Line{line})

	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, refs, batch.PostedEntryRefs)

	entries := store.Entries()
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Len(t, entry.Legs, 3)
	assert.True(t, entry.IsBalanced())
	assert.True(t, legFor(t, entry, fixtures.CardAccountID).Credit.Equal(fixtures.Dec("115.00")))
	assert.True(t, legFor(t, entry, retentionAccount).Debit.Equal(fixtures.Dec("15.00")))
	assert.True(t, legFor(t, entry, depositAccount).Debit.Equal(fixtures.Dec("100.00")))
	assert.Equal(t, fixtures.CustomerPartnerID, legFor(t, entry, fixtures.CardAccountID).PartnerID)
	assert.Equal(t, fixtures.BankPartnerID, legFor(t, entry, depositAccount).PartnerID)
	assert.Equal(t, batch.ID, entry.Legs[0].BatchTag)
	assert.Equal(t, domain.PostingKey(batch.ID, 0, line.ID), entry.IdempotencyKey)
	assert.Equal(t, batch.CutoffDate, entry.Date)
}

func TestPost_ScenarioC_WithholdingAggregateMismatch(t *testing.T) {
	store := newStore()
	doc := fixtures.NewWithholdingDocument("777", "20.00", "0")
	store.AddWithholdingDocuments(doc)
	batch := fixtures.NewBatch().Build()
	first := fixtures.NewLine(batch.ID).WithRecorded("112.00").
		WithSettlement("100.00", "12.00", "0", "0").ResolvedTo(doc.ID).Build()
	second := fixtures.NewLine(batch.ID).WithRecorded("107.00").
		WithSettlement("100.00", "7.00", "0", "0").ResolvedTo(doc.ID).Build()

	_, err := postInTx(store, newComposer(store), batch, []*domain.Line{first, second})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeWithholdingMismatch))
	mismatches := domain.MismatchesOf(err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, domain.TaxCategoryIncome, mismatches[0].Category)
	assert.Equal(t, "1.00", domain.FormatAmount(mismatches[0].Difference))
	assert.ElementsMatch(t, []string{first.ID, second.ID}, mismatches[0].LineIDs)
	assert.Empty(t, store.Entries())
}

func TestPost_CommissionAndRoundingAbsorbedByDeposit(t *testing.T) {
	store := newStore()
	batch := fixtures.NewBatch().Build()
	settled := fixtures.Date(2026, time.March, 23)
	line := fixtures.NewLine(batch.ID).WithRecorded("100.00").
		WithSettlement("97.004", "0", "0", "2.99").WithSettlementDate(settled).Build()

	_, err := postInTx(store, newComposer(store), batch, []*domain.Line{line})

	require.NoError(t, err)
	entry := store.Entries()[0]
	assert.True(t, entry.IsBalanced())
	assert.True(t, legFor(t, entry, commissionAccount).Debit.Equal(fixtures.Dec("2.99")))
	assert.True(t, legFor(t, entry, depositAccount).Debit.Equal(fixtures.Dec("97.01")))
	assert.Equal(t, settled, entry.Date)
}

func TestPost_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *memstore.Store)
		line    func(batchID string) *domain.Line
		errCode domain.ErrorCode
	}{
		{
			name:    "missing_commission_account",
			mutate:  func(s *memstore.Store) { s.SetPostingAccounts(ports.PostingAccounts{RetentionAccountID: retentionAccount}) },
			line:    func(b string) *domain.Line { return fixtures.NewLine(b).WithSettlement("98", "0", "0", "2").Build() },
			errCode: domain.ErrorCodeConfigCommissionAccount,
		},
		{
			name:   "missing_retention_account",
			mutate: func(s *memstore.Store) { s.SetPostingAccounts(ports.PostingAccounts{CommissionAccountID: commissionAccount}) },
			line: func(b string) *domain.Line {
				return fixtures.NewLine(b).WithSettlement("90", "10", "0", "0").ResolvedTo("doc-x").Build()
			},
			errCode: domain.ErrorCodeConfigRetentionAccount,
		},
		{
			name: "no_settlement_payment_method",
			mutate: func(s *memstore.Store) {
				s.SetJournalLines(fixtures.DestinationJournalID,
					ports.JournalPaymentMethodLine{Name: "Manual", PaymentMethodName: "Manual", AccountID: "acc-bank"})
			},
			line:    func(b string) *domain.Line { return fixtures.NewLine(b).WithSettlement("100", "0", "0", "0").Build() },
			errCode: domain.ErrorCodeConfigDepositAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			tt.mutate(store)
			batch := fixtures.NewBatch().Build()
			line := tt.line(batch.ID)
			if line.WithholdingDocumentID != nil {
				doc := fixtures.NewWithholdingDocument("w", line.IncomeWithheld.String(), "0")
				doc.ID = *line.WithholdingDocumentID
				store.AddWithholdingDocuments(doc)
			}
			good := fixtures.NewLine(batch.ID).WithSettlement("100", "0", "0", "0").Build()

			_, err := postInTx(store, newComposer(store), batch, []*domain.Line{good, line})

			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err, tt.errCode), "got %v", err)
			assert.True(t, domain.IsConfigurationError(err))
			assert.Empty(t, store.Entries(), "nothing is posted when configuration is incomplete")
			assert.Empty(t, batch.PostedEntryRefs)
		})
	}
}

func TestPost_LedgerFailureRollsBackEveryEntry(t *testing.T) {
	store := newStore()
	batch := fixtures.NewBatch().Build()
	lines := []*domain.Line{
		fixtures.NewLine(batch.ID).WithSettlement("100", "0", "0", "0").Build(),
		fixtures.NewLine(batch.ID).WithSettlement("100", "0", "0", "0").Build(),
		fixtures.NewLine(batch.ID).WithSettlement("100", "0", "0", "0").Build(),
	}
	posted := 0
	store.PostHook = func(*domain.JournalEntry) error {
		posted++
		if posted == 3 {
			return errors.New("ledger unavailable")
		}
		return nil
	}

	_, err := postInTx(store, newComposer(store), batch, lines)

	require.Error(t, err)
	assert.Empty(t, store.Entries())
	assert.Equal(t, 1, store.Rollbacks)
}

func TestPost_SameRevisionIsIdempotent(t *testing.T) {
	store := newStore()
	batch := fixtures.NewBatch().Build()
	line := fixtures.NewLine(batch.ID).WithSettlement("100", "0", "0", "0").Build()
	composer := newComposer(store)

	first, err := postInTx(store, composer, batch, []*domain.Line{line})
	require.NoError(t, err)
	second, err := postInTx(store, composer, batch, []*domain.Line{line})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.Entries(), 1)
	assert.Len(t, batch.PostedEntryRefs, 1)

	batch.Revision++
	third, err := postInTx(store, composer, batch, []*domain.Line{line})
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Len(t, store.Entries(), 2)
}

func TestCompose_SkipsZeroAmountLines(t *testing.T) {
	store := newStore()
	batch := fixtures.NewBatch().Build()
	zero := fixtures.NewLine(batch.ID).WithRecorded("0").Build()

	entries, err := newComposer(store).Compose(context.Background(), nil, batch, []*domain.Line{zero})

	require.NoError(t, err)
	assert.Empty(t, entries)
}
