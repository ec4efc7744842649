package worksheet

// Columns is the fixed worksheet layout. Export always writes it; import requires
// it as the leading header cells and ignores anything after.
var Columns = []string{
	"line_id",
	"lot_number",
	"voucher_number",
	"card_type",
	"paid_amount",
	"payment_date",
	"total_deposit",
	"income_withheld",
	"vat_withheld",
	"commission",
	"bank_voucher_number",
	"withholding_sequence",
	"commission_invoice_sequence",
}

const (
	colLineID = iota
	colLotNumber
	colVoucherNumber
	colCardType
	colPaidAmount
	colPaymentDate
	colTotalDeposit
	colIncomeWithheld
	colVATWithheld
	colCommission
	colBankVoucherNumber
	colWithholdingSequence
	colCommissionInvoiceSequence
)
