// Package posting composes and posts the journal entries of a reconciled batch.
package posting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	"github.com/kevin07696/card-reconciliation/pkg/observability"
	"github.com/shopspring/decimal"
)

// Composer builds one balanced entry per reconciled line and posts them
type Composer struct {
	accounts        ports.AccountSettings
	journals        ports.JournalDirectory
	withholdings    ports.WithholdingSource
	ledger          ports.LedgerPoster
	logger          ports.Logger
	depositKeywords []string
}

// NewComposer creates a journal entry composer
func NewComposer(
	accounts ports.AccountSettings,
	journals ports.JournalDirectory,
	withholdings ports.WithholdingSource,
	ledger ports.LedgerPoster,
	logger ports.Logger,
	depositKeywords []string,
) *Composer {
	if len(depositKeywords) == 0 {
		depositKeywords = DefaultDepositKeywords
	}
	return &Composer{
		accounts:        accounts,
		journals:        journals,
		withholdings:    withholdings,
		ledger:          ledger,
		logger:          logger,
		depositKeywords: depositKeywords,
	}
}

// postingAccounts are the accounts resolved for one batch; empty when not needed
type postingAccounts struct {
	commission string
	retention  string
	deposit    string
}

// Compose checks withholding aggregates, resolves every account and builds the
// entries without writing anything. lines must already have passed validation.
func (c *Composer) Compose(ctx context.Context, db ports.DBTX, batch *domain.Batch, lines []*domain.Line) ([]*domain.JournalEntry, error) {
	if err := c.checkWithholdings(ctx, db, lines); err != nil {
		return nil, err
	}

	accounts, err := c.resolveAccounts(ctx, db, batch, lines)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.JournalEntry, 0, len(lines))
	for _, l := range lines {
		entry := buildEntry(batch, l, accounts)
		if entry == nil {
			c.logger.Debug("line has nothing to post",
				ports.String("batch_id", batch.ID),
				ports.String("line_id", l.ID))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Post composes and posts every entry through tx, appending each reference to
// the batch link set. tx must span the whole call so a failure posts nothing.
func (c *Composer) Post(ctx context.Context, tx ports.DBTX, batch *domain.Batch, lines []*domain.Line) ([]string, error) {
	start := time.Now()

	entries, err := c.Compose(ctx, tx, batch, lines)
	if err != nil {
		observability.RecordPosting("failed", 0, time.Since(start).Seconds())
		return nil, err
	}

	refs := make([]string, 0, len(entries))
	for _, e := range entries {
		ref, err := c.ledger.Post(ctx, tx, e)
		if err != nil {
			observability.RecordPosting("failed", 0, time.Since(start).Seconds())
			return nil, fmt.Errorf("post entry for line %s: %w", e.LineID, err)
		}
		e.Reference = ref
		refs = append(refs, ref)
		batch.AppendEntryRef(ref)
	}

	observability.RecordPosting("success", len(refs), time.Since(start).Seconds())
	c.logger.Info("journal entries posted",
		ports.String("batch_id", batch.ID),
		ports.Int("revision", batch.Revision),
		ports.Int("entries", len(refs)))
	return refs, nil
}

// checkWithholdings compares, per linked document, the tax the lines declare with
// the document's own tax lines, by category
func (c *Composer) checkWithholdings(ctx context.Context, db ports.DBTX, lines []*domain.Line) error {
	byDoc := make(map[string][]*domain.Line)
	for _, l := range lines {
		if l.WithholdingDocumentID != nil && *l.WithholdingDocumentID != "" {
			byDoc[*l.WithholdingDocumentID] = append(byDoc[*l.WithholdingDocumentID], l)
		}
	}
	if len(byDoc) == 0 {
		return nil
	}

	ids := make([]string, 0, len(byDoc))
	for id := range byDoc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs, err := c.withholdings.GetDocuments(ctx, db, ids)
	if err != nil {
		return fmt.Errorf("load withholding documents: %w", err)
	}
	found := make(map[string]*domain.WithholdingDocument, len(docs))
	for _, d := range docs {
		found[d.ID] = d
	}

	var mismatches []domain.WithholdingMismatch
	for _, id := range ids {
		doc := found[id]
		if doc == nil {
			doc = &domain.WithholdingDocument{ID: id}
		}
		lineIDs := make([]string, len(byDoc[id]))
		income, vat := decimal.Zero, decimal.Zero
		for i, l := range byDoc[id] {
			lineIDs[i] = l.ID
			income = income.Add(l.IncomeWithheld)
			vat = vat.Add(l.VATWithheld)
		}

		for _, declared := range []struct {
			category domain.TaxCategory
			amount   decimal.Decimal
		}{
			{domain.TaxCategoryIncome, income},
			{domain.TaxCategoryVAT, vat},
		} {
			recorded := doc.TotalFor(declared.category)
			diff := recorded.Sub(declared.amount)
			if domain.WithinTolerance(diff) {
				continue
			}
			mismatches = append(mismatches, domain.WithholdingMismatch{
				DocumentID: id,
				Reference:  doc.Reference,
				Category:   declared.category,
				Declared:   declared.amount,
				Document:   recorded,
				Difference: diff.Abs(),
				LineIDs:    lineIDs,
			})
		}
	}

	if len(mismatches) > 0 {
		return domain.NewWithholdingMismatch(mismatches)
	}
	return nil
}

// resolveAccounts fails before any write when an account the lines need is not configured
func (c *Composer) resolveAccounts(ctx context.Context, db ports.DBTX, batch *domain.Batch, lines []*domain.Line) (postingAccounts, error) {
	var needCommission, needRetention, needDeposit bool
	for _, l := range lines {
		needCommission = needCommission || !l.Commission.IsZero()
		needRetention = needRetention || l.HasWithholding()
		needDeposit = needDeposit || !l.TotalDeposit.IsZero()
	}

	var resolved postingAccounts
	if needCommission || needRetention {
		settings, err := c.accounts.Get(ctx, db)
		if err != nil {
			return resolved, fmt.Errorf("read posting accounts: %w", err)
		}
		if needCommission {
			if settings.CommissionAccountID == "" {
				return resolved, domain.NewDomainError(domain.ErrorCodeConfigCommissionAccount,
					"card commission account is not configured")
			}
			resolved.commission = settings.CommissionAccountID
		}
		if needRetention {
			if settings.RetentionAccountID == "" {
				return resolved, domain.NewDomainError(domain.ErrorCodeConfigRetentionAccount,
					"withholding retention account is not configured")
			}
			resolved.retention = settings.RetentionAccountID
		}
	}

	if needDeposit {
		methodLines, err := c.journals.InboundPaymentMethodLines(ctx, db, batch.DestinationJournalID)
		if err != nil {
			return resolved, fmt.Errorf("read destination journal payment methods: %w", err)
		}
		account, ok := ResolveDepositAccount(methodLines, c.depositKeywords)
		if !ok {
			return resolved, domain.NewDomainError(domain.ErrorCodeConfigDepositAccount,
				"destination journal has no settlement payment method with an account").
				WithDetail("journal_id", batch.DestinationJournalID).
				WithDetail("keywords", c.depositKeywords)
		}
		resolved.deposit = account
	}

	return resolved, nil
}

func buildEntry(batch *domain.Batch, l *domain.Line, accounts postingAccounts) *domain.JournalEntry {
	if l.RecordedAmount.IsZero() {
		return nil
	}

	date := batch.CutoffDate
	if l.SettlementDate != nil {
		date = *l.SettlementDate
	}

	entry := &domain.JournalEntry{
		Date:           date,
		BatchID:        batch.ID,
		BatchName:      batch.Name,
		LineID:         l.ID,
		JournalID:      batch.DestinationJournalID,
		IdempotencyKey: domain.PostingKey(batch.ID, batch.Revision, l.ID),
	}
	tag := batch.ID
	label := fmt.Sprintf("%s %s", batch.Name, l.Describe())

	entry.Legs = append(entry.Legs, signedLeg(l.AccountID, l.PartnerID, l.RecordedAmount.Neg(), label, tag))

	var debits []int
	if !l.Commission.IsZero() {
		entry.Legs = append(entry.Legs, signedLeg(accounts.commission, batch.ReferencePartnerID, l.Commission, "Card commission "+l.VoucherNumber, tag))
		debits = append(debits, len(entry.Legs)-1)
	}
	if withheld := l.WithholdingTotal(); !withheld.IsZero() {
		entry.Legs = append(entry.Legs, signedLeg(accounts.retention, batch.ReferencePartnerID, withheld, "Card withholding "+l.VoucherNumber, tag))
		debits = append(debits, len(entry.Legs)-1)
	}
	if !l.TotalDeposit.IsZero() {
		entry.Legs = append(entry.Legs, signedLeg(accounts.deposit, batch.ReferencePartnerID, l.TotalDeposit, "Card deposit "+l.VoucherNumber, tag))
		debits = append(debits, len(entry.Legs)-1)
	}
	if len(debits) == 0 {
		return nil
	}

	// a sub-tolerance delta goes to the largest leg so the entry balances exactly
	if delta := l.Delta(); !delta.IsZero() {
		largest := debits[0]
		for _, i := range debits[1:] {
			if entry.Legs[i].Debit.Sub(entry.Legs[i].Credit).Abs().GreaterThan(
				entry.Legs[largest].Debit.Sub(entry.Legs[largest].Credit).Abs()) {
				largest = i
			}
		}
		if !l.TotalDeposit.IsZero() {
			largest = debits[len(debits)-1]
		}
		leg := &entry.Legs[largest]
		*leg = signedLeg(leg.AccountID, leg.PartnerID, leg.Debit.Sub(leg.Credit).Add(delta), leg.Label, tag)
	}

	return entry
}

// signedLeg books a positive amount as a debit and a negative one as a credit
func signedLeg(account, partner string, amount decimal.Decimal, label, tag string) domain.JournalLeg {
	leg := domain.JournalLeg{
		AccountID: account,
		PartnerID: partner,
		Label:     label,
		BatchTag:  tag,
		Debit:     decimal.Zero,
		Credit:    decimal.Zero,
	}
	if amount.IsNegative() {
		leg.Credit = amount.Neg()
	} else {
		leg.Debit = amount
	}
	return leg
}
