package worksheet

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// CSVCodec reads and writes comma-separated worksheets
type CSVCodec struct{}

// NewCSVCodec creates a CSV codec
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// Write emits the header and rows as CSV
func (c *CSVCodec) Write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Open streams CSV records. Rows may have any number of fields.
func (c *CSVCodec) Open(r io.Reader) (ports.WorksheetRowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	return &csvRowReader{reader: cr}, nil
}

type csvRowReader struct {
	reader *csv.Reader
}

func (r *csvRowReader) Next() ([]string, error) {
	return r.reader.Read()
}

func (r *csvRowReader) Close() error {
	return nil
}
