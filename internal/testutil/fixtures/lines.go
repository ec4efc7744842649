package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/shopspring/decimal"
)

// LineBuilder provides fluent API for building test settlement lines.
type LineBuilder struct {
	line *domain.Line
}

// NewLine creates an empty-settlement line of 100.00 for the given batch.
func NewLine(batchID string) *LineBuilder {
	id := uuid.NewString()
	return &LineBuilder{
		line: &domain.Line{
			ID:             id,
			BatchID:        batchID,
			PaymentID:      "pay-" + id,
			LedgerLineID:   "aml-" + id,
			AccountID:      CardAccountID,
			PartnerID:      CustomerPartnerID,
			PaymentDate:    Date(2026, time.March, 10),
			DocumentName:   "PAY/" + id[:8],
			LotNumber:      "L001",
			VoucherNumber:  "V" + id[:6],
			CardTypeName:   "Visa",
			RecordedAmount: Dec("100.00"),
			TotalDeposit:   decimal.Zero,
			IncomeWithheld: decimal.Zero,
			VATWithheld:    decimal.Zero,
			Commission:     decimal.Zero,
		},
	}
}

func (b *LineBuilder) WithID(id string) *LineBuilder {
	b.line.ID = id
	return b
}

func (b *LineBuilder) WithPosition(pos int) *LineBuilder {
	b.line.Position = pos
	return b
}

func (b *LineBuilder) WithVoucher(voucher string) *LineBuilder {
	b.line.VoucherNumber = voucher
	return b
}

func (b *LineBuilder) WithRecorded(amount string) *LineBuilder {
	b.line.RecordedAmount = Dec(amount)
	return b
}

// WithSettlement sets deposit, income withheld, VAT withheld and commission.
func (b *LineBuilder) WithSettlement(deposit, income, vat, commission string) *LineBuilder {
	b.line.TotalDeposit = Dec(deposit)
	b.line.IncomeWithheld = Dec(income)
	b.line.VATWithheld = Dec(vat)
	b.line.Commission = Dec(commission)
	return b
}

func (b *LineBuilder) WithSequence(seq string) *LineBuilder {
	b.line.WithholdingSequence = seq
	return b
}

// ResolvedTo links the line to a withholding document and marks it done.
func (b *LineBuilder) ResolvedTo(documentID string) *LineBuilder {
	b.line.WithholdingDocumentID = StringPtr(documentID)
	b.line.WithholdingState = domain.WithholdingStateDone
	return b
}

func (b *LineBuilder) WithWithholdingState(state domain.WithholdingState) *LineBuilder {
	b.line.WithholdingState = state
	return b
}

func (b *LineBuilder) WithSettlementDate(d time.Time) *LineBuilder {
	b.line.SettlementDate = TimePtr(d)
	return b
}

func (b *LineBuilder) Build() *domain.Line {
	return b.line
}
