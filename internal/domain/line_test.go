package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLine_IsComplete(t *testing.T) {
	tests := []struct {
		name       string
		recorded   string
		deposit    string
		income     string
		vat        string
		commission string
		complete   bool
		delta      string
	}{
		{name: "exact_match", recorded: "115.00", deposit: "100.00", income: "5.00", vat: "10.00", commission: "0", complete: true, delta: "0"},
		{name: "half_cent_rounding_is_tolerated", recorded: "100.004", deposit: "100.00", income: "0", vat: "0", commission: "0", complete: true, delta: "0.004"},
		{name: "one_cent_short_is_rejected", recorded: "100.00", deposit: "99.99", income: "0", vat: "0", commission: "0", complete: false, delta: "0.01"},
		{name: "over_reported_is_rejected", recorded: "50.00", deposit: "45.00", income: "0", vat: "0", commission: "6.00", complete: false, delta: "-1"},
		{name: "empty_settlement", recorded: "80.00", deposit: "0", income: "0", vat: "0", commission: "0", complete: false, delta: "80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Line{
				RecordedAmount: dec(tt.recorded),
				TotalDeposit:   dec(tt.deposit),
				IncomeWithheld: dec(tt.income),
				VATWithheld:    dec(tt.vat),
				Commission:     dec(tt.commission),
			}
			assert.Equal(t, tt.complete, l.IsComplete())
			assert.True(t, dec(tt.delta).Equal(l.Delta()), "delta = %s", l.Delta())
		})
	}
}

func TestLine_WithholdingResolved(t *testing.T) {
	docID := "wd-1"
	empty := ""

	tests := []struct {
		name     string
		line     Line
		resolved bool
	}{
		{name: "done_with_document", line: Line{WithholdingState: WithholdingStateDone, WithholdingDocumentID: &docID}, resolved: true},
		{name: "done_with_sequence_only", line: Line{WithholdingState: WithholdingStateDone, WithholdingSequence: " 045 "}, resolved: true},
		{name: "done_without_reference", line: Line{WithholdingState: WithholdingStateDone, WithholdingDocumentID: &empty}, resolved: false},
		{name: "pending_with_sequence", line: Line{WithholdingState: WithholdingStatePending, WithholdingSequence: "045"}, resolved: false},
		{name: "unset", line: Line{}, resolved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.resolved, tt.line.WithholdingResolved())
		})
	}
}

func TestLine_HasWithholding(t *testing.T) {
	assert.False(t, (&Line{}).HasWithholding())
	assert.True(t, (&Line{IncomeWithheld: dec("0.01")}).HasWithholding())
	assert.True(t, (&Line{VATWithheld: dec("3")}).HasWithholding())
}

func TestNewLineFromPayment(t *testing.T) {
	batch := &Batch{ID: "b-1"}
	p := &Payment{
		ID: "pay-1", Amount: dec("42.50"), LedgerLineID: "aml-9", AccountID: "acc-card",
		PartnerID: "cust-1", DocumentName: "INV/0001", LotNumber: "L7", VoucherNumber: "V-33",
	}

	l := NewLineFromPayment("line-1", batch, p, CardType{ID: "ct-visa", Name: "Visa"}, 3)

	assert.Equal(t, "b-1", l.BatchID)
	assert.Equal(t, "pay-1", l.PaymentID)
	assert.Equal(t, "ct-visa", l.CardTypeID)
	assert.Equal(t, 3, l.Position)
	assert.True(t, l.RecordedAmount.Equal(dec("42.50")))
	assert.True(t, l.SettlementTotal().IsZero())
	assert.Equal(t, WithholdingStateUnset, l.WithholdingState)
	assert.Equal(t, "INV/0001 (voucher V-33, lot L7)", l.Describe())
}

func TestWithholdingDocument_TotalFor(t *testing.T) {
	doc := &WithholdingDocument{TaxLines: []TaxLine{
		{Category: TaxCategoryIncome, Amount: dec("12.00")},
		{Category: TaxCategoryVAT, Amount: dec("4.00")},
		{Category: TaxCategoryIncome, Amount: dec("8.00")},
	}}

	assert.True(t, doc.TotalFor(TaxCategoryIncome).Equal(dec("20.00")))
	assert.True(t, doc.TotalFor(TaxCategoryVAT).Equal(dec("4.00")))
}

func TestJournalEntry_IsBalanced(t *testing.T) {
	e := &JournalEntry{Legs: []JournalLeg{
		{Credit: dec("115.00")},
		{Debit: dec("15.00")},
		{Debit: dec("100.00")},
	}}
	assert.True(t, e.IsBalanced())

	e.Legs = append(e.Legs, JournalLeg{Debit: dec("0.01")})
	assert.False(t, e.IsBalanced())
}
