package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JournalLeg is one pre-aggregated debit or credit submitted to the ledger
type JournalLeg struct {
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	AccountID string          `json:"account_id"`
	PartnerID string          `json:"partner_id"`
	Label     string          `json:"label"`
	BatchTag  string          `json:"batch_tag"`
}

// JournalEntry is the balanced posting produced for one reconciled line
type JournalEntry struct {
	Date           time.Time    `json:"date"`
	Legs           []JournalLeg `json:"legs"`
	BatchID        string       `json:"batch_id"`
	BatchName      string       `json:"batch_name"`
	LineID         string       `json:"line_id"`
	JournalID      string       `json:"journal_id"`
	Reference      string       `json:"reference"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// TotalDebit sums the debit side
func (e *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, leg := range e.Legs {
		total = total.Add(leg.Debit)
	}
	return total
}

// TotalCredit sums the credit side
func (e *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, leg := range e.Legs {
		total = total.Add(leg.Credit)
	}
	return total
}

// IsBalanced reports whether debits equal credits exactly
func (e *JournalEntry) IsBalanced() bool {
	return e.TotalDebit().Equal(e.TotalCredit())
}

// PostingKey is the idempotency key of the entry for one line of one batch revision
func PostingKey(batchID string, revision int, lineID string) string {
	return fmt.Sprintf("%s:%d:%s", batchID, revision, lineID)
}
