package worksheet_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	adapter "github.com/kevin07696/card-reconciliation/internal/adapters/worksheet"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/services/worksheet"
	"github.com/kevin07696/card-reconciliation/internal/testutil/fixtures"
	"github.com/kevin07696/card-reconciliation/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const header = "line_id,lot_number,voucher_number,card_type,paid_amount,payment_date,total_deposit,income_withheld,vat_withheld,commission,bank_voucher_number,withholding_sequence,commission_invoice_sequence"

type worksheetEnv struct {
	store   *memstore.Store
	service *worksheet.Service
	batch   *domain.Batch
}

func newWorksheetEnv(t *testing.T, chunkSize int, lines ...*domain.Line) *worksheetEnv {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	batch := fixtures.NewBatch().WithID("b-1").Build()
	require.NoError(t, store.CreateBatch(ctx, nil, batch))
	for _, l := range lines {
		_, err := store.InsertLine(ctx, nil, l)
		require.NoError(t, err)
	}
	return &worksheetEnv{
		store:   store,
		service: worksheet.NewService(store, store, fixtures.NopLogger{}, chunkSize),
		batch:   batch,
	}
}

func (e *worksheetEnv) line(t *testing.T, id string) *domain.Line {
	t.Helper()
	lines, err := e.store.ListLines(context.Background(), nil, e.batch.ID)
	require.NoError(t, err)
	for _, l := range lines {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("line %s not found", id)
	return nil
}

func csvFile(rows ...string) *strings.Reader {
	return strings.NewReader(header + "\n" + strings.Join(rows, "\n") + "\n")
}

func TestExport_WritesFixedColumnsInLineOrder(t *testing.T) {
	first := fixtures.NewLine("b-1").WithID("l-1").WithPosition(1).WithVoucher("V1").
		WithRecorded("115").WithSettlement("100", "5", "10", "0").Build()
	second := fixtures.NewLine("b-1").WithID("l-2").WithPosition(2).WithVoucher("V2").
		WithSettlementDate(fixtures.Date(2026, time.March, 22)).Build()
	env := newWorksheetEnv(t, 0, second, first)

	var buf bytes.Buffer
	require.NoError(t, env.service.Export(context.Background(), env.batch, adapter.NewCSVCodec(), &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, worksheet.Columns, records[0])
	assert.Equal(t, []string{"l-1", "L001", "V1", "Visa", "115.00", "2026-03-10", "100.00", "5.00", "10.00", "0.00", "", "", ""}, records[1])
	assert.Equal(t, "l-2", records[2][0])
	assert.Equal(t, "2026-03-22", records[2][5], "settlement date wins over payment date")
}

func TestImport_AppliesRowsAndSkipsSoftFailures(t *testing.T) {
	env := newWorksheetEnv(t, 0,
		fixtures.NewLine("b-1").WithID("l-1").WithRecorded("115").Build(),
		fixtures.NewLine("b-1").WithID("l-2").Build(),
		fixtures.NewLine("b-1").WithID("l-3").Build(),
	)

	result, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), csvFile(
		"l-1,L001,V1,Visa,115.00,2026-03-21,100.00,5.00,10.00,0,BV-77,045,CI-9,ignored-extra",
		"unknown-line,L001,V9,Visa,10.00,2026-03-21,10.00,0,0,0,,,",
		"l-2,L001,V2,Visa,100.00,21/03/2026,99.00,0,0,1.00,,,",
		"l-3,L001,V3,Visa,100.00,next tuesday,abc,0,0,0,,,",
		",,,,,,,,,,,,",
	), worksheet.ImportOptions{Format: "csv"})

	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Unknown)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "l-3", result.Skipped[0].LineID)
	assert.Equal(t, 4, result.Skipped[0].Row)
	assert.Contains(t, result.Skipped[0].Reason, "total_deposit")

	l1 := env.line(t, "l-1")
	assert.True(t, l1.TotalDeposit.Equal(fixtures.Dec("100")))
	assert.True(t, l1.IncomeWithheld.Equal(fixtures.Dec("5")))
	assert.True(t, l1.VATWithheld.Equal(fixtures.Dec("10")))
	assert.Equal(t, "BV-77", l1.BankVoucherNumber)
	assert.Equal(t, "045", l1.WithholdingSequence)
	assert.Equal(t, "CI-9", l1.CommissionInvoiceSequence)
	require.NotNil(t, l1.SettlementDate)
	assert.Equal(t, fixtures.Date(2026, time.March, 21), *l1.SettlementDate)
	assert.True(t, l1.IsComplete())

	l2 := env.line(t, "l-2")
	require.NotNil(t, l2.SettlementDate)
	assert.Equal(t, fixtures.Date(2026, time.March, 21), *l2.SettlementDate)

	l3 := env.line(t, "l-3")
	assert.True(t, l3.TotalDeposit.IsZero(), "a skipped row leaves the line untouched")
}

func TestImport_UnparseableDateIsKeptAsText(t *testing.T) {
	env := newWorksheetEnv(t, 0, fixtures.NewLine("b-1").WithID("l-1").Build())

	_, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), csvFile(
		"l-1,L001,V1,Visa,100.00,end of march,100.00,0,0,0,,,",
	), worksheet.ImportOptions{})
	require.NoError(t, err)

	l := env.line(t, "l-1")
	assert.Nil(t, l.SettlementDate)
	assert.Equal(t, "end of march", l.SettlementDateText)
	assert.True(t, l.TotalDeposit.Equal(fixtures.Dec("100")))
}

func TestImport_IsIdempotent(t *testing.T) {
	env := newWorksheetEnv(t, 0, fixtures.NewLine("b-1").WithID("l-1").WithRecorded("120").Build())
	row := "l-1,L001,V1,Visa,120.00,2026-03-21,100.00,10.00,10.00,0,BV-1,045,"

	_, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), csvFile(row), worksheet.ImportOptions{})
	require.NoError(t, err)
	once := env.line(t, "l-1")

	_, err = env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), csvFile(row), worksheet.ImportOptions{})
	require.NoError(t, err)
	twice := env.line(t, "l-1")

	assert.Equal(t, once, twice)
}

func TestImport_RejectsWrongHeader(t *testing.T) {
	env := newWorksheetEnv(t, 0, fixtures.NewLine("b-1").WithID("l-1").Build())
	input := strings.NewReader("voucher_number,line_id\nV1,l-1\n")

	_, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), input, worksheet.ImportOptions{})

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeWorksheetFormat))
	assert.Equal(t, 0, env.store.Commits)
}

func TestImport_ResumesFromNextRow(t *testing.T) {
	env := newWorksheetEnv(t, 2,
		fixtures.NewLine("b-1").WithID("l-1").Build(),
		fixtures.NewLine("b-1").WithID("l-2").Build(),
		fixtures.NewLine("b-1").WithID("l-3").Build(),
	)
	file := func() *strings.Reader {
		return csvFile(
			"l-1,L001,V1,Visa,100.00,2026-03-21,100.00,0,0,0,,,",
			"l-2,L001,V2,Visa,100.00,2026-03-21,100.00,0,0,0,,,",
			"l-3,L001,V3,Visa,100.00,2026-03-21,100.00,0,0,0,,,",
		)
	}

	first, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), file(), worksheet.ImportOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.False(t, first.Complete)
	assert.Equal(t, 2, first.Applied)
	assert.Equal(t, 3, first.NextRow)
	assert.True(t, env.line(t, "l-3").TotalDeposit.IsZero())

	second, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), file(),
		worksheet.ImportOptions{StartRow: first.NextRow, MaxRows: 2})
	require.NoError(t, err)
	assert.True(t, second.Complete)
	assert.Equal(t, 1, second.Applied)
	assert.True(t, env.line(t, "l-3").TotalDeposit.Equal(fixtures.Dec("100")))
}

func TestImport_RefusesDoneBatch(t *testing.T) {
	env := newWorksheetEnv(t, 0)
	env.batch.State = domain.BatchStateDone

	_, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(), csvFile(), worksheet.ImportOptions{})

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeBatchImmutable))
}

func TestImport_ChangedSequenceDropsResolution(t *testing.T) {
	tests := []struct {
		name      string
		sequence  string
		wantState domain.WithholdingState
	}{
		{name: "new_sequence_awaits_matching", sequence: "999-999", wantState: domain.WithholdingStatePending},
		{name: "blanked_sequence", sequence: "", wantState: domain.WithholdingStateUnset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newWorksheetEnv(t, 0, fixtures.NewLine("b-1").WithID("l-1").WithRecorded("115").
				WithSettlement("100", "5", "10", "0").WithSequence("001-001").ResolvedTo("wd-1").Build())

			_, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(),
				csvFile("l-1,L001,V1,Visa,115.00,2026-03-21,100.00,5.00,10.00,0,,"+tt.sequence+","),
				worksheet.ImportOptions{})
			require.NoError(t, err)

			l := env.line(t, "l-1")
			assert.Equal(t, tt.sequence, l.WithholdingSequence)
			assert.Nil(t, l.WithholdingDocumentID)
			assert.Equal(t, tt.wantState, l.WithholdingState)
			assert.False(t, l.WithholdingResolved())
		})
	}
}

func TestImport_SameSequenceKeepsResolution(t *testing.T) {
	env := newWorksheetEnv(t, 0, fixtures.NewLine("b-1").WithID("l-1").WithRecorded("115").
		WithSequence("001-001").ResolvedTo("wd-1").Build())

	_, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(),
		csvFile("l-1,L001,V1,Visa,115.00,2026-03-21,100.00,5.00,10.00,0,, 001-001 ,"),
		worksheet.ImportOptions{})
	require.NoError(t, err)

	l := env.line(t, "l-1")
	require.NotNil(t, l.WithholdingDocumentID)
	assert.Equal(t, "wd-1", *l.WithholdingDocumentID)
	assert.Equal(t, domain.WithholdingStateDone, l.WithholdingState)
}

func TestImport_AcceptsFormattedAmounts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "thousands_separator", raw: "1,234.00", want: "1234"},
		{name: "grouped_integer", raw: "12,345", want: "12345"},
		{name: "decimal_comma", raw: "1.234,56", want: "1234.56"},
		{name: "single_decimal_comma", raw: "12,5", want: "12.5"},
		{name: "parenthesized_negative", raw: "(1,000.25)", want: "-1000.25"},
		{name: "spaced_groups", raw: "1 234.00", want: "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newWorksheetEnv(t, 0, fixtures.NewLine("b-1").WithID("l-1").Build())

			result, err := env.service.Import(context.Background(), env.batch, adapter.NewCSVCodec(),
				csvFile(`l-1,L001,V1,Visa,100.00,2026-03-21,"`+tt.raw+`",0,0,0,,,`),
				worksheet.ImportOptions{})
			require.NoError(t, err)
			assert.Equal(t, 1, result.Applied)
			assert.Empty(t, result.Skipped)

			l := env.line(t, "l-1")
			assert.True(t, l.TotalDeposit.Equal(fixtures.Dec(tt.want)), "got %s", l.TotalDeposit)
		})
	}
}

func TestImport_XLSXNumberFormatAmounts(t *testing.T) {
	env := newWorksheetEnv(t, 0, fixtures.NewLine("b-1").WithID("l-1").Build())

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{
		"line_id", "lot_number", "voucher_number", "card_type", "paid_amount", "payment_date",
		"total_deposit", "income_withheld", "vat_withheld", "commission",
		"bank_voucher_number", "withholding_sequence", "commission_invoice_sequence",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{
		"l-1", "L001", "V1", "Visa", "1234.00", "2026-03-21", 1234.0, 0, 0, 0,
	}))
	// builtin format 4 is #,##0.00
	style, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "G2", "G2", style))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := env.service.Import(context.Background(), env.batch, adapter.NewXLSXCodec(adapter.DefaultSheetName),
		&buf, worksheet.ImportOptions{Format: "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Empty(t, result.Skipped)
	assert.True(t, env.line(t, "l-1").TotalDeposit.Equal(fixtures.Dec("1234")))
}
