package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// PaymentSource reads posted card payments from the accounting core
type PaymentSource struct {
	db ports.DBPort
}

// NewPaymentSource creates a payment source
func NewPaymentSource(db ports.DBPort) *PaymentSource {
	return &PaymentSource{db: db}
}

// ListPostedPayments returns posted payments of the journal dated within [From, To]
func (s *PaymentSource) ListPostedPayments(ctx context.Context, db ports.DBTX, q ports.PaymentQuery) ([]*domain.Payment, error) {
	rows, err := executor(db, s.db).Query(ctx, `
		SELECT id, journal_id, payment_date, amount, card_selector, partner_id, ledger_line_id,
			account_id, document_name, lot_number, voucher_number, posted
		FROM card_payments
		WHERE posted
			AND journal_id = $1
			AND payment_date BETWEEN $2 AND $3
		ORDER BY payment_date, id`,
		q.JournalID, pgtype.Date{Time: q.From, Valid: true}, pgtype.Date{Time: q.To, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("list posted payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		var (
			p                            domain.Payment
			date                         pgtype.Date
			amount                       pgtype.Numeric
			partner, ledgerLine, account pgtype.Text
			docName, lot, voucher        pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.JournalID, &date, &amount, &p.CardSelector, &partner, &ledgerLine,
			&account, &docName, &lot, &voucher, &p.Posted); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if p.Amount, err = pgNumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("payment %s amount: %w", p.ID, err)
		}
		p.Date = date.Time
		p.PartnerID = partner.String
		p.LedgerLineID = ledgerLine.String
		p.AccountID = account.String
		p.DocumentName = docName.String
		p.LotNumber = lot.String
		p.VoucherNumber = voucher.String
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}
