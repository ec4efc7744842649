package worksheet

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	svcports "github.com/kevin07696/card-reconciliation/internal/services/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readAll(t *testing.T, rr ports.WorksheetRowReader) [][]string {
	t.Helper()
	defer rr.Close()
	var out [][]string
	for {
		row, err := rr.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, row)
	}
}

func TestXLSXCodec_WriteThenOpen(t *testing.T) {
	codec := NewXLSXCodec(DefaultSheetName)
	header := []string{"line_id", "paid_amount"}
	rows := [][]string{{"l-1", "115.00"}, {"l-2", "80.50"}}

	var buf bytes.Buffer
	require.NoError(t, codec.Write(&buf, header, rows))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultSheetName}, f.GetSheetList())
	require.NoError(t, f.Close())

	rr, err := codec.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, [][]string{header, rows[0], rows[1]}, readAll(t, rr))
}

func TestXLSXCodec_FallsBackToFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "line_id"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "l-9"))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rr, err := NewXLSXCodec(DefaultSheetName).Open(&buf)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"line_id"}, {"l-9"}}, readAll(t, rr))
}

func TestXLSXCodec_RejectsGarbage(t *testing.T) {
	_, err := NewXLSXCodec(DefaultSheetName).Open(strings.NewReader("not a workbook"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeWorksheetFormat))
}

func TestCSVCodec_ToleratesRaggedRows(t *testing.T) {
	input := "line_id,paid_amount,notes\nl-1,115.00\nl-2, 80.50,extra,more\n"

	rr, err := NewCSVCodec().Open(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"line_id", "paid_amount", "notes"},
		{"l-1", "115.00"},
		{"l-2", "80.50", "extra", "more"},
	}, readAll(t, rr))
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec(svcports.WorksheetFormatCSV)
	require.NoError(t, err)
	assert.IsType(t, &CSVCodec{}, c)

	c, err = NewCodec("")
	require.NoError(t, err)
	assert.IsType(t, &XLSXCodec{}, c)

	_, err = NewCodec("ods")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeWorksheetFormat))
}
