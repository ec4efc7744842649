// Package worksheet encodes and decodes settlement worksheets.
// Codecs move rows of text cells; column meaning belongs to the caller.
package worksheet

import (
	"fmt"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	svcports "github.com/kevin07696/card-reconciliation/internal/services/ports"
)

// NewCodec returns the codec for a worksheet format
func NewCodec(format svcports.WorksheetFormat) (ports.WorksheetCodec, error) {
	switch format {
	case svcports.WorksheetFormatXLSX, "":
		return NewXLSXCodec(DefaultSheetName), nil
	case svcports.WorksheetFormatCSV:
		return NewCSVCodec(), nil
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeWorksheetFormat,
			fmt.Sprintf("unsupported worksheet format %q", format))
	}
}

// ContentType returns the MIME type served for a worksheet format
func ContentType(format svcports.WorksheetFormat) string {
	if format == svcports.WorksheetFormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
