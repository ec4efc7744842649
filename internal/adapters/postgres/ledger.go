package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// LedgerPoster writes journal entries and their legs
type LedgerPoster struct {
	db        ports.DBPort
	sequences ports.SequenceGenerator
}

// NewLedgerPoster creates a ledger poster numbering entries from sequences
func NewLedgerPoster(db ports.DBPort, sequences ports.SequenceGenerator) *LedgerPoster {
	return &LedgerPoster{db: db, sequences: sequences}
}

// Post records a balanced entry once per idempotency key and returns its reference
func (p *LedgerPoster) Post(ctx context.Context, tx ports.DBTX, entry *domain.JournalEntry) (string, error) {
	if !entry.IsBalanced() {
		return "", fmt.Errorf("journal entry for line %s is unbalanced: debit %s, credit %s",
			entry.LineID, entry.TotalDebit(), entry.TotalCredit())
	}

	q := executor(tx, p.db)

	var existing string
	err := q.QueryRow(ctx, `SELECT reference FROM journal_entries WHERE idempotency_key = $1`,
		entry.IdempotencyKey).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("lookup journal entry %s: %w", entry.IdempotencyKey, err)
	}

	ref, err := p.sequences.Next(ctx, tx, JournalEntrySequence)
	if err != nil {
		return "", err
	}

	entryID := uuid.New().String()
	_, err = q.Exec(ctx, `
		INSERT INTO journal_entries (id, reference, idempotency_key, journal_id, entry_date, batch_id, line_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entryID, ref, entry.IdempotencyKey, entry.JournalID,
		pgtype.Date{Time: entry.Date, Valid: true}, entry.BatchID, entry.LineID)
	if err != nil {
		return "", fmt.Errorf("insert journal entry: %w", err)
	}

	for i, leg := range entry.Legs {
		debit, err := decimalToNumeric(leg.Debit)
		if err != nil {
			return "", err
		}
		credit, err := decimalToNumeric(leg.Credit)
		if err != nil {
			return "", err
		}
		_, err = q.Exec(ctx, `
			INSERT INTO journal_entry_legs (entry_id, account_id, partner_id, label, batch_tag, debit, credit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entryID, leg.AccountID, nullText(leg.PartnerID), leg.Label, nullText(leg.BatchTag), debit, credit)
		if err != nil {
			return "", fmt.Errorf("insert leg %d of %s: %w", i, ref, err)
		}
	}

	return ref, nil
}
