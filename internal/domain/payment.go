package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a recorded customer card payment as exposed by the payment source.
// The engine never mutates payments.
type Payment struct {
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	ID            string          `json:"id"`
	JournalID     string          `json:"journal_id"`
	CardSelector  string          `json:"card_selector"`
	PartnerID     string          `json:"partner_id"`
	LedgerLineID  string          `json:"ledger_line_id"`
	AccountID     string          `json:"account_id"`
	DocumentName  string          `json:"document_name"`
	LotNumber     string          `json:"lot_number"`
	VoucherNumber string          `json:"voucher_number"`
	Posted        bool            `json:"posted"`
}

// InPeriod reports whether the payment date falls inside [from, to]
func (p *Payment) InPeriod(from, to time.Time) bool {
	return !p.Date.Before(from) && !p.Date.After(to)
}

// ExcludedPayment is a payment left out of selection because another batch already claimed it
type ExcludedPayment struct {
	PaymentID     string `json:"payment_id"`
	DocumentName  string `json:"document_name"`
	VoucherNumber string `json:"voucher_number"`
	ClaimedBy     string `json:"claimed_by_batch_id"`
}
