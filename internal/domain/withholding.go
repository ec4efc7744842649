package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxCategory groups withholding tax lines
type TaxCategory string

const (
	TaxCategoryIncome TaxCategory = "income"
	TaxCategoryVAT    TaxCategory = "vat"
)

// TaxLine is one tax amount recorded on a withholding document
type TaxLine struct {
	Amount   decimal.Decimal `json:"amount"`
	Category TaxCategory     `json:"category"`
}

// WithholdingDocument is an external posted document for tax withheld by a counterpart
type WithholdingDocument struct {
	TaxLines     []TaxLine `json:"tax_lines"`
	ID           string    `json:"id"`
	DocumentType string    `json:"document_type"`
	Reference    string    `json:"reference"`
	PartnerID    string    `json:"partner_id"`
	Posted       bool      `json:"posted"`
}

// TotalFor sums the document's tax lines of one category
func (d *WithholdingDocument) TotalFor(category TaxCategory) decimal.Decimal {
	total := decimal.Zero
	for _, tl := range d.TaxLines {
		if tl.Category == category {
			total = total.Add(tl.Amount)
		}
	}
	return total
}

// WithholdingMismatch reports a document whose tax total disagrees with its lines
type WithholdingMismatch struct {
	Declared   decimal.Decimal `json:"declared"`
	Document   decimal.Decimal `json:"document"`
	Difference decimal.Decimal `json:"difference"`
	DocumentID string          `json:"document_id"`
	Reference  string          `json:"reference"`
	Category   TaxCategory     `json:"category"`
	LineIDs    []string        `json:"line_ids"`
}

// String renders the mismatch for reports
func (m WithholdingMismatch) String() string {
	return fmt.Sprintf("withholding %s %s: lines declare %s, document records %s (difference %s)",
		m.Reference, m.Category, FormatAmount(m.Declared), FormatAmount(m.Document), FormatAmount(m.Difference))
}

// AmbiguousMatch reports a line whose sequence resolved to several documents
type AmbiguousMatch struct {
	DocumentIDs   []string `json:"document_ids"`
	LineID        string   `json:"line_id"`
	VoucherNumber string   `json:"voucher_number"`
	Sequence      string   `json:"sequence"`
}
