package ports

import (
	"context"

	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// LedgerPoster writes balanced journal entries to the general ledger
type LedgerPoster interface {
	// Post records the entry and returns its reference.
	// Unbalanced entries are rejected. Posting an entry whose idempotency key
	// was already posted returns the existing reference without a second write.
	Post(ctx context.Context, tx DBTX, entry *domain.JournalEntry) (string, error)
}

// JournalPaymentMethodLine is one inbound payment method configured on a journal
type JournalPaymentMethodLine struct {
	Name              string
	PaymentMethodName string
	AccountID         string
}

// JournalDirectory reads journal configuration
type JournalDirectory interface {
	// InboundPaymentMethodLines lists the journal's inbound payment method lines in configured order
	InboundPaymentMethodLines(ctx context.Context, db DBTX, journalID string) ([]JournalPaymentMethodLine, error)
}
