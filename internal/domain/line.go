package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WithholdingState tracks whether a line's withholding document has been resolved
type WithholdingState string

const (
	WithholdingStateUnset   WithholdingState = ""
	WithholdingStateDone    WithholdingState = "done"
	WithholdingStatePending WithholdingState = "pending"
)

// Line is one payment-to-settlement correspondence inside a batch.
// Recorded fields come from the payment; settlement fields come from the worksheet.
type Line struct {
	PaymentDate               time.Time        `json:"payment_date"`
	SettlementDate            *time.Time       `json:"settlement_date"`
	WithholdingDocumentID     *string          `json:"withholding_document_id"`
	RecordedAmount            decimal.Decimal  `json:"recorded_amount"`
	TotalDeposit              decimal.Decimal  `json:"total_deposit"`
	IncomeWithheld            decimal.Decimal  `json:"income_withheld"`
	VATWithheld               decimal.Decimal  `json:"vat_withheld"`
	Commission                decimal.Decimal  `json:"commission"`
	ID                        string           `json:"id"`
	BatchID                   string           `json:"batch_id"`
	PaymentID                 string           `json:"payment_id"`
	LedgerLineID              string           `json:"ledger_line_id"`
	AccountID                 string           `json:"account_id"`
	PartnerID                 string           `json:"partner_id"`
	DocumentName              string           `json:"document_name"`
	LotNumber                 string           `json:"lot_number"`
	VoucherNumber             string           `json:"voucher_number"`
	CardTypeID                string           `json:"card_type_id"`
	CardTypeName              string           `json:"card_type_name"`
	BankVoucherNumber         string           `json:"bank_voucher_number"`
	SettlementDateText        string           `json:"settlement_date_text"`
	WithholdingSequence       string           `json:"withholding_sequence"`
	CommissionInvoiceSequence string           `json:"commission_invoice_sequence"`
	WithholdingState          WithholdingState `json:"withholding_state"`
	Position                  int              `json:"position"`
}

// NewLineFromPayment builds an empty-settlement line for a selected payment
func NewLineFromPayment(id string, batch *Batch, p *Payment, cardType CardType, position int) *Line {
	return &Line{
		ID:             id,
		BatchID:        batch.ID,
		Position:       position,
		PaymentID:      p.ID,
		LedgerLineID:   p.LedgerLineID,
		AccountID:      p.AccountID,
		PartnerID:      p.PartnerID,
		PaymentDate:    p.Date,
		DocumentName:   p.DocumentName,
		LotNumber:      p.LotNumber,
		VoucherNumber:  p.VoucherNumber,
		CardTypeID:     cardType.ID,
		CardTypeName:   cardType.Name,
		RecordedAmount: p.Amount,
		TotalDeposit:   decimal.Zero,
		IncomeWithheld: decimal.Zero,
		VATWithheld:    decimal.Zero,
		Commission:     decimal.Zero,
	}
}

// SettlementTotal is deposit + income withheld + VAT withheld + commission
func (l *Line) SettlementTotal() decimal.Decimal {
	return l.TotalDeposit.Add(l.IncomeWithheld).Add(l.VATWithheld).Add(l.Commission)
}

// Delta is (-deposit - income - vat - commission) + recorded
func (l *Line) Delta() decimal.Decimal {
	return l.RecordedAmount.Sub(l.SettlementTotal())
}

// IsComplete reports whether the settlement components reconstruct the recorded amount
func (l *Line) IsComplete() bool {
	return WithinTolerance(l.Delta())
}

// WithholdingTotal is income withheld + VAT withheld
func (l *Line) WithholdingTotal() decimal.Decimal {
	return l.IncomeWithheld.Add(l.VATWithheld)
}

// HasWithholding reports whether the line declares any withheld tax
func (l *Line) HasWithholding() bool {
	return !l.IncomeWithheld.IsZero() || !l.VATWithheld.IsZero()
}

// TrimmedWithholdingSequence returns the sequence used for document lookup
func (l *Line) TrimmedWithholdingSequence() string {
	return strings.TrimSpace(l.WithholdingSequence)
}

// HasWithholdingReference reports whether the line carries a document link or a sequence
func (l *Line) HasWithholdingReference() bool {
	return (l.WithholdingDocumentID != nil && *l.WithholdingDocumentID != "") ||
		l.TrimmedWithholdingSequence() != ""
}

// WithholdingResolved reports whether withheld amounts are backed by a resolved document
func (l *Line) WithholdingResolved() bool {
	return l.WithholdingState == WithholdingStateDone && l.HasWithholdingReference()
}

// Describe identifies the line the way operators read it: document, voucher, lot
func (l *Line) Describe() string {
	return fmt.Sprintf("%s (voucher %s, lot %s)", l.DocumentName, l.VoucherNumber, l.LotNumber)
}

// LineIssue is one reason a line cannot be posted
type LineIssue struct {
	Delta         *decimal.Decimal `json:"delta,omitempty"`
	LineID        string           `json:"line_id"`
	DocumentName  string           `json:"document_name"`
	VoucherNumber string           `json:"voucher_number"`
	LotNumber     string           `json:"lot_number"`
	Reason        string           `json:"reason"`
}

// String renders the issue for operator-facing reports
func (i LineIssue) String() string {
	return fmt.Sprintf("%s (voucher %s, lot %s): %s", i.DocumentName, i.VoucherNumber, i.LotNumber, i.Reason)
}

// NewLineIssue builds an issue pre-filled with the line's identifying fields
func NewLineIssue(l *Line, reason string) LineIssue {
	return LineIssue{
		LineID:        l.ID,
		DocumentName:  l.DocumentName,
		VoucherNumber: l.VoucherNumber,
		LotNumber:     l.LotNumber,
		Reason:        reason,
	}
}
