package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// BatchRepository implements ports.BatchRepository on PostgreSQL
type BatchRepository struct {
	db ports.DBPort
}

// NewBatchRepository creates a batch repository backed by the given pool
func NewBatchRepository(db ports.DBPort) *BatchRepository {
	return &BatchRepository{db: db}
}

const lineColumns = `id, batch_id, position, payment_id, ledger_line_id, account_id, partner_id,
	payment_date, document_name, lot_number, voucher_number, card_type_id, card_type_name,
	recorded_amount, total_deposit, income_withheld, vat_withheld, commission,
	bank_voucher_number, settlement_date, settlement_date_text, withholding_document_id,
	withholding_sequence, commission_invoice_sequence, withholding_state`

// CreateBatch inserts the batch header and its card type filter
func (r *BatchRepository) CreateBatch(ctx context.Context, tx ports.DBTX, batch *domain.Batch) error {
	q := executor(tx, r.db)

	err := q.QueryRow(ctx, `
		INSERT INTO reconciliation_batches (
			id, name, cutoff_date, source_journal_id, destination_journal_id,
			responsible_party_id, reference_partner_id, state, revision, posted_entry_refs
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		batch.ID, batch.Name, pgtype.Date{Time: batch.CutoffDate, Valid: true},
		batch.SourceJournalID, batch.DestinationJournalID,
		batch.ResponsiblePartyID, batch.ReferencePartnerID,
		string(batch.State), batch.Revision, refsOrEmpty(batch.PostedEntryRefs),
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for i, ct := range batch.CardTypes {
		_, err := q.Exec(ctx, `
			INSERT INTO reconciliation_batch_card_types (batch_id, position, card_type_id, code, name)
			VALUES ($1, $2, $3, $4, $5)`,
			batch.ID, i, ct.ID, ct.Code, ct.Name)
		if err != nil {
			return fmt.Errorf("insert batch card type %s: %w", ct.ID, err)
		}
	}

	return nil
}

// GetBatch loads a batch with its card type filter
func (r *BatchRepository) GetBatch(ctx context.Context, db ports.DBTX, id string) (*domain.Batch, error) {
	q := executor(db, r.db)

	var (
		b      domain.Batch
		cutoff pgtype.Date
		state  string
	)
	err := q.QueryRow(ctx, `
		SELECT id, name, cutoff_date, source_journal_id, destination_journal_id,
			responsible_party_id, reference_partner_id, state, revision, posted_entry_refs,
			created_at, updated_at
		FROM reconciliation_batches
		WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &cutoff, &b.SourceJournalID, &b.DestinationJournalID,
		&b.ResponsiblePartyID, &b.ReferencePartnerID, &state, &b.Revision, &b.PostedEntryRefs,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBatchNotFound(id)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b.CutoffDate = cutoff.Time
	b.State = domain.BatchState(state)

	rows, err := q.Query(ctx, `
		SELECT card_type_id, code, name
		FROM reconciliation_batch_card_types
		WHERE batch_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list batch card types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct domain.CardType
		if err := rows.Scan(&ct.ID, &ct.Code, &ct.Name); err != nil {
			return nil, fmt.Errorf("scan card type: %w", err)
		}
		b.CardTypes = append(b.CardTypes, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card types: %w", err)
	}

	return &b, nil
}

// UpdateBatch persists state, revision and posted entry references
func (r *BatchRepository) UpdateBatch(ctx context.Context, tx ports.DBTX, batch *domain.Batch) error {
	q := executor(tx, r.db)

	err := q.QueryRow(ctx, `
		UPDATE reconciliation_batches
		SET state = $2, revision = $3, posted_entry_refs = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		batch.ID, string(batch.State), batch.Revision, refsOrEmpty(batch.PostedEntryRefs),
	).Scan(&batch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrBatchNotFound(batch.ID)
		}
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// DeleteBatch removes the batch; lines and card types cascade
func (r *BatchRepository) DeleteBatch(ctx context.Context, tx ports.DBTX, id string) error {
	tag, err := executor(tx, r.db).Exec(ctx, `DELETE FROM reconciliation_batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBatchNotFound(id)
	}
	return nil
}

// ListLines returns the batch's lines ordered by position
func (r *BatchRepository) ListLines(ctx context.Context, db ports.DBTX, batchID string) ([]*domain.Line, error) {
	rows, err := executor(db, r.db).Query(ctx, `
		SELECT `+lineColumns+`
		FROM reconciliation_lines
		WHERE batch_id = $1
		ORDER BY position, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	var lines []*domain.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lines: %w", err)
	}
	return lines, nil
}

// InsertLine adds a line unless its payment already belongs to a batch.
// The unique payment_id constraint arbitrates concurrent selections.
func (r *BatchRepository) InsertLine(ctx context.Context, tx ports.DBTX, line *domain.Line) (bool, error) {
	amounts, err := lineAmounts(line)
	if err != nil {
		return false, err
	}

	// Inside a transaction the insert runs under a savepoint: waiting out
	// lock_timeout on a rival batch's uncommitted claim must not abort the caller
	q := executor(tx, r.db)
	var sp pgx.Tx
	if outer, ok := tx.(pgx.Tx); ok {
		if sp, err = outer.Begin(ctx); err != nil {
			return false, fmt.Errorf("savepoint for payment %s: %w", line.PaymentID, err)
		}
		q = sp
	}

	tag, err := q.Exec(ctx, `
		INSERT INTO reconciliation_lines (`+lineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (payment_id) DO NOTHING`,
		line.ID, line.BatchID, line.Position, line.PaymentID,
		nullText(line.LedgerLineID), nullText(line.AccountID), nullText(line.PartnerID),
		pgtype.Date{Time: line.PaymentDate, Valid: true},
		nullText(line.DocumentName), nullText(line.LotNumber), nullText(line.VoucherNumber),
		nullText(line.CardTypeID), nullText(line.CardTypeName),
		amounts[0], amounts[1], amounts[2], amounts[3], amounts[4],
		nullText(line.BankVoucherNumber), nullDate(line.SettlementDate), nullText(line.SettlementDateText),
		nullTextPtr(line.WithholdingDocumentID), nullText(line.WithholdingSequence),
		nullText(line.CommissionInvoiceSequence), string(line.WithholdingState),
	)
	if err != nil {
		if sp != nil {
			_ = sp.Rollback(ctx)
		}
		if isLockNotAvailable(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert line for payment %s: %w", line.PaymentID, err)
	}
	if sp != nil {
		if err := sp.Commit(ctx); err != nil {
			return false, fmt.Errorf("release savepoint for payment %s: %w", line.PaymentID, err)
		}
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateLine persists the settlement and withholding fields of a line
func (r *BatchRepository) UpdateLine(ctx context.Context, tx ports.DBTX, line *domain.Line) error {
	amounts, err := lineAmounts(line)
	if err != nil {
		return err
	}

	tag, err := executor(tx, r.db).Exec(ctx, `
		UPDATE reconciliation_lines
		SET total_deposit = $2, income_withheld = $3, vat_withheld = $4, commission = $5,
			bank_voucher_number = $6, settlement_date = $7, settlement_date_text = $8,
			withholding_document_id = $9, withholding_sequence = $10,
			commission_invoice_sequence = $11, withholding_state = $12
		WHERE id = $1`,
		line.ID, amounts[1], amounts[2], amounts[3], amounts[4],
		nullText(line.BankVoucherNumber), nullDate(line.SettlementDate), nullText(line.SettlementDateText),
		nullTextPtr(line.WithholdingDocumentID), nullText(line.WithholdingSequence),
		nullText(line.CommissionInvoiceSequence), string(line.WithholdingState),
	)
	if err != nil {
		return fmt.Errorf("update line %s: %w", line.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update line %s: line not found", line.ID)
	}
	return nil
}

// ClaimedPayments maps already-claimed payment IDs to their owning batch
func (r *BatchRepository) ClaimedPayments(ctx context.Context, db ports.DBTX, paymentIDs []string) (map[string]string, error) {
	claimed := make(map[string]string)
	if len(paymentIDs) == 0 {
		return claimed, nil
	}

	rows, err := executor(db, r.db).Query(ctx, `
		SELECT payment_id, batch_id::text
		FROM reconciliation_lines
		WHERE payment_id = ANY($1)`, paymentIDs)
	if err != nil {
		return nil, fmt.Errorf("query claimed payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var paymentID, batchID string
		if err := rows.Scan(&paymentID, &batchID); err != nil {
			return nil, fmt.Errorf("scan claimed payment: %w", err)
		}
		claimed[paymentID] = batchID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed payments: %w", err)
	}
	return claimed, nil
}

func scanLine(row pgx.Row) (*domain.Line, error) {
	var (
		l                                                     domain.Line
		batchID, lineID                                       string
		ledgerLine, account, partner                          pgtype.Text
		docName, lot, voucher, ctID, ctName                   pgtype.Text
		recorded, deposit, income, vat, commission            pgtype.Numeric
		bankVoucher, settlementText, whDoc, whSeq, invoiceSeq pgtype.Text
		paymentDate, settlementDate                           pgtype.Date
		whState                                               string
	)
	err := row.Scan(&lineID, &batchID, &l.Position, &l.PaymentID, &ledgerLine, &account, &partner,
		&paymentDate, &docName, &lot, &voucher, &ctID, &ctName,
		&recorded, &deposit, &income, &vat, &commission,
		&bankVoucher, &settlementDate, &settlementText, &whDoc,
		&whSeq, &invoiceSeq, &whState)
	if err != nil {
		return nil, fmt.Errorf("scan line: %w", err)
	}

	l.ID = lineID
	l.BatchID = batchID
	l.LedgerLineID = ledgerLine.String
	l.AccountID = account.String
	l.PartnerID = partner.String
	l.PaymentDate = paymentDate.Time
	l.DocumentName = docName.String
	l.LotNumber = lot.String
	l.VoucherNumber = voucher.String
	l.CardTypeID = ctID.String
	l.CardTypeName = ctName.String
	l.BankVoucherNumber = bankVoucher.String
	l.SettlementDate = datePtr(settlementDate)
	l.SettlementDateText = settlementText.String
	l.WithholdingDocumentID = textPtr(whDoc)
	l.WithholdingSequence = whSeq.String
	l.CommissionInvoiceSequence = invoiceSeq.String
	l.WithholdingState = domain.WithholdingState(whState)

	for _, f := range []struct {
		src pgtype.Numeric
		dst *decimal.Decimal
	}{
		{recorded, &l.RecordedAmount},
		{deposit, &l.TotalDeposit},
		{income, &l.IncomeWithheld},
		{vat, &l.VATWithheld},
		{commission, &l.Commission},
	} {
		d, err := pgNumericToDecimal(f.src)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", lineID, err)
		}
		*f.dst = d
	}

	return &l, nil
}

// lineAmounts converts recorded, deposit, income, vat and commission in that order
func lineAmounts(line *domain.Line) ([5]pgtype.Numeric, error) {
	var out [5]pgtype.Numeric
	for i, d := range []decimal.Decimal{
		line.RecordedAmount, line.TotalDeposit, line.IncomeWithheld, line.VATWithheld, line.Commission,
	} {
		n, err := decimalToNumeric(d)
		if err != nil {
			return out, fmt.Errorf("line %s: %w", line.ID, err)
		}
		out[i] = n
	}
	return out, nil
}

func refsOrEmpty(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
