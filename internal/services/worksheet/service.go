// Package worksheet binds settlement worksheet rows to reconciliation lines.
package worksheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	svcports "github.com/kevin07696/card-reconciliation/internal/services/ports"
	"github.com/kevin07696/card-reconciliation/pkg/observability"
	"github.com/kevin07696/card-reconciliation/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// DefaultChunkSize is the number of rows applied per transaction when none is configured
const DefaultChunkSize = 200

// Service exports and imports settlement worksheets
type Service struct {
	db        ports.DBPort
	repo      ports.BatchRepository
	logger    ports.Logger
	chunkSize int
}

// NewService creates a new worksheet service
func NewService(db ports.DBPort, repo ports.BatchRepository, logger ports.Logger, chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Service{
		db:        db,
		repo:      repo,
		logger:    logger,
		chunkSize: chunkSize,
	}
}

// Export writes every line of the batch in line order
func (s *Service) Export(ctx context.Context, batch *domain.Batch, codec ports.WorksheetCodec, w io.Writer) error {
	var lines []*domain.Line
	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		lines, err = s.repo.ListLines(ctx, tx, batch.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("list batch lines: %w", err)
	}

	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = exportRow(l)
	}

	if err := codec.Write(w, Columns, rows); err != nil {
		return fmt.Errorf("write worksheet: %w", err)
	}

	s.logger.Info("worksheet exported",
		ports.String("batch_id", batch.ID),
		ports.Int("rows", len(rows)))
	return nil
}

func exportRow(l *domain.Line) []string {
	date := l.PaymentDate.Format(timeutil.DateLayout)
	switch {
	case l.SettlementDate != nil:
		date = l.SettlementDate.Format(timeutil.DateLayout)
	case l.SettlementDateText != "":
		date = l.SettlementDateText
	}

	return []string{
		l.ID,
		l.LotNumber,
		l.VoucherNumber,
		l.CardTypeName,
		domain.FormatAmount(l.RecordedAmount),
		date,
		domain.FormatAmount(l.TotalDeposit),
		domain.FormatAmount(l.IncomeWithheld),
		domain.FormatAmount(l.VATWithheld),
		domain.FormatAmount(l.Commission),
		l.BankVoucherNumber,
		l.WithholdingSequence,
		l.CommissionInvoiceSequence,
	}
}

// ImportOptions bounds one import call.
// StartRow is the first data row to apply (1-based); MaxRows of zero means no limit.
type ImportOptions struct {
	Format   string
	StartRow int
	MaxRows  int
}

// Import overwrites the settlement fields of every line named by a worksheet row.
// Rows are applied in chunks, each chunk in its own transaction. Rows naming an
// unknown line and rows with unparseable amounts are skipped, never fatal.
func (s *Service) Import(ctx context.Context, batch *domain.Batch, codec ports.WorksheetCodec, r io.Reader, opts ImportOptions) (*svcports.ImportResult, error) {
	if err := batch.EnsureMutable(); err != nil {
		return nil, err
	}

	rows, err := codec.Open(r)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	header, err := rows.Next()
	if errors.Is(err, io.EOF) {
		return nil, domain.NewDomainError(domain.ErrorCodeWorksheetFormat, "worksheet is empty")
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWorksheetFormat, "read worksheet header", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListLines(ctx, nil, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("list batch lines: %w", err)
	}
	byID := make(map[string]*domain.Line, len(existing))
	for _, l := range existing {
		byID[l.ID] = l
	}

	startRow := opts.StartRow
	if startRow < 1 {
		startRow = 1
	}

	result := &svcports.ImportResult{Skipped: []svcports.RowSkip{}}
	chunk := make([]*domain.Line, 0, s.chunkSize)
	processed := 0
	rowNum := 0

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			for _, l := range chunk {
				if err := s.repo.UpdateLine(ctx, tx, l); err != nil {
					return fmt.Errorf("update line %s: %w", l.ID, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		result.Applied += len(chunk)
		result.NextRow = rowNum + 1
		chunk = chunk[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cells, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ferr := flush(); ferr != nil {
				return nil, ferr
			}
			return result, domain.WrapError(domain.ErrorCodeWorksheetFormat,
				fmt.Sprintf("read worksheet row %d", rowNum+1), err).
				WithDetail("next_row", result.NextRow)
		}
		rowNum++
		if rowNum < startRow || blank(cells) {
			continue
		}
		if opts.MaxRows > 0 && processed == opts.MaxRows {
			rowNum--
			if err := flush(); err != nil {
				return nil, err
			}
			result.NextRow = rowNum + 1
			s.logImport(batch, opts, result)
			return result, nil
		}
		processed++

		lineID := strings.TrimSpace(cell(cells, colLineID))
		line, ok := byID[lineID]
		if !ok {
			result.Unknown++
			continue
		}
		if err := applyRow(line, cells); err != nil {
			result.Skipped = append(result.Skipped, svcports.RowSkip{Row: rowNum, LineID: lineID, Reason: err.Error()})
			s.logger.Warn("worksheet row skipped",
				ports.String("batch_id", batch.ID),
				ports.Int("row", rowNum),
				ports.String("line_id", lineID),
				ports.Err(err))
			continue
		}

		chunk = append(chunk, line)
		if len(chunk) == s.chunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	result.NextRow = rowNum + 1
	result.Complete = true
	s.logImport(batch, opts, result)
	return result, nil
}

func (s *Service) logImport(batch *domain.Batch, opts ImportOptions, result *svcports.ImportResult) {
	observability.RecordWorksheetRows(opts.Format, "applied", result.Applied)
	observability.RecordWorksheetRows(opts.Format, "unknown_line", result.Unknown)
	observability.RecordWorksheetRows(opts.Format, "invalid", len(result.Skipped))
	s.logger.Info("worksheet imported",
		ports.String("batch_id", batch.ID),
		ports.Int("applied", result.Applied),
		ports.Int("unknown", result.Unknown),
		ports.Int("skipped", len(result.Skipped)),
		ports.Int("next_row", result.NextRow),
		ports.Bool("complete", result.Complete))
}

func checkHeader(header []string) error {
	if len(header) < len(Columns) {
		return domain.NewDomainError(domain.ErrorCodeWorksheetFormat,
			fmt.Sprintf("worksheet header has %d columns, expected at least %d", len(header), len(Columns))).
			WithDetail("expected", Columns)
	}
	for i, name := range Columns {
		got := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
		if got != name {
			return domain.NewDomainError(domain.ErrorCodeWorksheetFormat,
				fmt.Sprintf("worksheet column %d is %q, expected %q", i+1, header[i], name)).
				WithDetail("expected", Columns)
		}
	}
	return nil
}

// applyRow parses every settlement cell before touching the line so a bad row leaves it unchanged
func applyRow(l *domain.Line, cells []string) error {
	amounts := make([]decimal.Decimal, 4)
	for i, col := range []int{colTotalDeposit, colIncomeWithheld, colVATWithheld, colCommission} {
		amount, err := parseAmount(cell(cells, col))
		if err != nil {
			return fmt.Errorf("column %s: %w", Columns[col], err)
		}
		amounts[i] = amount
	}

	l.TotalDeposit = amounts[0]
	l.IncomeWithheld = amounts[1]
	l.VATWithheld = amounts[2]
	l.Commission = amounts[3]
	l.BankVoucherNumber = strings.TrimSpace(cell(cells, colBankVoucherNumber))
	seq := strings.TrimSpace(cell(cells, colWithholdingSequence))
	if seq != l.TrimmedWithholdingSequence() {
		// A resolution only holds for the sequence it was matched on
		l.WithholdingDocumentID = nil
		l.WithholdingState = domain.WithholdingStateUnset
		if seq != "" {
			l.WithholdingState = domain.WithholdingStatePending
		}
	}
	l.WithholdingSequence = seq
	l.CommissionInvoiceSequence = strings.TrimSpace(cell(cells, colCommissionInvoiceSequence))

	raw := strings.TrimSpace(cell(cells, colPaymentDate))
	l.SettlementDate, l.SettlementDateText = parseSettlementDate(raw)
	return nil
}

func parseSettlementDate(raw string) (*time.Time, string) {
	if raw == "" {
		return nil, ""
	}
	d, err := timeutil.ParseWorksheetDate(raw)
	if err != nil {
		return nil, raw
	}
	return &d, ""
}

// thousandsGrouped matches "1,234" and "12,345,678.90" style comma grouping
var thousandsGrouped = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+$`)

// parseAmount accepts plain decimals and the display formats spreadsheets
// apply to number cells: thousands separators, decimal commas and
// parenthesized negatives
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}

	s := strings.NewReplacer(" ", "", "\u00a0", "", "'", "").Replace(raw)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && dot > comma:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && thousandsGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0 && strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
