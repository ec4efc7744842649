package ports

import "io"

// WorksheetRowReader streams the rows of a settlement worksheet, header first.
// Next returns io.EOF after the last row.
type WorksheetRowReader interface {
	Next() ([]string, error)
	Close() error
}

// WorksheetCodec encodes and decodes one worksheet file format
type WorksheetCodec interface {
	// Write emits the header row followed by the data rows
	Write(w io.Writer, header []string, rows [][]string) error

	// Open starts streaming rows out of r
	Open(r io.Reader) (WorksheetRowReader, error)
}
