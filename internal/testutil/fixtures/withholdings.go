package fixtures

import (
	"github.com/google/uuid"
	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// WithholdingDocumentType is the document type the fixtures and the default config agree on.
const WithholdingDocumentType = "withholding"

// NewWithholdingDocument creates a posted withholding document for the bank partner.
// Amounts are income and VAT tax line totals; "0" omits the tax line.
func NewWithholdingDocument(reference, income, vat string) *domain.WithholdingDocument {
	doc := &domain.WithholdingDocument{
		ID:           uuid.NewString(),
		DocumentType: WithholdingDocumentType,
		Reference:    reference,
		PartnerID:    BankPartnerID,
		Posted:       true,
	}
	if !Dec(income).IsZero() {
		doc.TaxLines = append(doc.TaxLines, domain.TaxLine{Category: domain.TaxCategoryIncome, Amount: Dec(income)})
	}
	if !Dec(vat).IsZero() {
		doc.TaxLines = append(doc.TaxLines, domain.TaxLine{Category: domain.TaxCategoryVAT, Amount: Dec(vat)})
	}
	return doc
}
