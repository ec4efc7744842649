package ports

import (
	"context"
	"time"

	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// PaymentQuery narrows the payment source to one journal and a date range
type PaymentQuery struct {
	From      time.Time
	To        time.Time
	JournalID string
}

// PaymentSource exposes recorded customer card payments (read-only)
type PaymentSource interface {
	// ListPostedPayments returns posted payments of the journal dated within [From, To]
	ListPostedPayments(ctx context.Context, db DBTX, q PaymentQuery) ([]*domain.Payment, error)
}
