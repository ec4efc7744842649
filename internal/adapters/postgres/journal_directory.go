package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// JournalDirectory reads journal payment method configuration
type JournalDirectory struct {
	db ports.DBPort
}

// NewJournalDirectory creates a journal directory
func NewJournalDirectory(db ports.DBPort) *JournalDirectory {
	return &JournalDirectory{db: db}
}

// InboundPaymentMethodLines lists the journal's inbound payment method lines in configured order
func (d *JournalDirectory) InboundPaymentMethodLines(ctx context.Context, db ports.DBTX, journalID string) ([]ports.JournalPaymentMethodLine, error) {
	rows, err := executor(db, d.db).Query(ctx, `
		SELECT name, payment_method_name, account_id
		FROM journal_payment_method_lines
		WHERE journal_id = $1 AND direction = 'inbound'
		ORDER BY id`, journalID)
	if err != nil {
		return nil, fmt.Errorf("list payment method lines: %w", err)
	}
	defer rows.Close()

	var out []ports.JournalPaymentMethodLine
	for rows.Next() {
		var (
			pm      ports.JournalPaymentMethodLine
			account pgtype.Text
		)
		if err := rows.Scan(&pm.Name, &pm.PaymentMethodName, &account); err != nil {
			return nil, fmt.Errorf("scan payment method line: %w", err)
		}
		pm.AccountID = account.String
		out = append(out, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment method lines: %w", err)
	}
	return out, nil
}
