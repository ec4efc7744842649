package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// PaymentBuilder provides fluent API for building test payments.
type PaymentBuilder struct {
	payment *domain.Payment
}

// NewPayment creates a posted 100.00 VISA payment on the source journal dated 2026-03-10.
func NewPayment() *PaymentBuilder {
	id := uuid.NewString()
	return &PaymentBuilder{
		payment: &domain.Payment{
			ID:            id,
			Date:          Date(2026, time.March, 10),
			Amount:        Dec("100.00"),
			JournalID:     SourceJournalID,
			CardSelector:  "VISA",
			PartnerID:     CustomerPartnerID,
			LedgerLineID:  "aml-" + id,
			AccountID:     CardAccountID,
			DocumentName:  "PAY/" + id[:8],
			LotNumber:     "L001",
			VoucherNumber: "V" + id[:6],
			Posted:        true,
		},
	}
}

func (b *PaymentBuilder) WithID(id string) *PaymentBuilder {
	b.payment.ID = id
	return b
}

func (b *PaymentBuilder) WithDate(d time.Time) *PaymentBuilder {
	b.payment.Date = d
	return b
}

func (b *PaymentBuilder) WithAmount(amount string) *PaymentBuilder {
	b.payment.Amount = Dec(amount)
	return b
}

func (b *PaymentBuilder) WithJournal(journalID string) *PaymentBuilder {
	b.payment.JournalID = journalID
	return b
}

func (b *PaymentBuilder) WithCardSelector(selector string) *PaymentBuilder {
	b.payment.CardSelector = selector
	return b
}

func (b *PaymentBuilder) WithVoucher(voucher, lot string) *PaymentBuilder {
	b.payment.VoucherNumber = voucher
	b.payment.LotNumber = lot
	return b
}

func (b *PaymentBuilder) Unposted() *PaymentBuilder {
	b.payment.Posted = false
	return b
}

func (b *PaymentBuilder) Build() *domain.Payment {
	return b.payment
}
