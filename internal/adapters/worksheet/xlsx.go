package worksheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the sheet written on export and preferred on import
const DefaultSheetName = "Settlement"

// XLSXCodec reads and writes Office Open XML workbooks
type XLSXCodec struct {
	sheet string
}

// NewXLSXCodec creates an XLSX codec writing to the given sheet
func NewXLSXCodec(sheet string) *XLSXCodec {
	return &XLSXCodec{sheet: sheet}
}

// Write streams the header and rows into a single-sheet workbook
func (c *XLSXCodec) Write(w io.Writer, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), c.sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(c.sheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	if err := sw.SetRow("A1", toCells(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	return f.Write(w)
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

// Open reads the workbook and streams the settlement sheet, or the first sheet when absent
func (c *XLSXCodec) Open(r io.Reader) (ports.WorksheetRowReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWorksheetFormat, "worksheet is not a readable XLSX file", err)
	}

	sheet := c.sheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, domain.WrapError(domain.ErrorCodeWorksheetFormat, "worksheet has no readable sheet", err)
	}
	return &xlsxRowReader{file: f, rows: rows}, nil
}

type xlsxRowReader struct {
	file *excelize.File
	rows *excelize.Rows
}

func (r *xlsxRowReader) Next() ([]string, error) {
	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return r.rows.Columns()
}

func (r *xlsxRowReader) Close() error {
	return errors.Join(r.rows.Close(), r.file.Close())
}
