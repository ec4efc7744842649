// Package memstore provides an in-memory implementation of every storage port
// used by the reconciliation services. Transactions snapshot the mutable state and
// restore it when the callback fails, so tests can assert all-or-nothing behavior.
// Concurrent transactions are not isolated from each other.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

type sequence struct {
	prefix string
	next   int
}

// Store is an in-memory database. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	// mutable state, captured by snapshots
	batches   map[string]*domain.Batch
	lines     map[string]*domain.Line
	claims    map[string]string // payment ID -> line ID
	entries   []*domain.JournalEntry
	entryRefs map[string]string // idempotency key -> reference
	sequences map[string]*sequence

	// seeded read-only collaborators
	payments  []*domain.Payment
	documents []*domain.WithholdingDocument
	accounts  ports.PostingAccounts
	journals  map[string][]ports.JournalPaymentMethodLine

	// PostHook, when set, runs before every ledger write; a non-nil error aborts the post
	PostHook func(entry *domain.JournalEntry) error

	// Commits and Rollbacks count finished write transactions
	Commits   int
	Rollbacks int
}

// New creates an empty store with the journal entry sequence registered
func New() *Store {
	return &Store{
		batches:   make(map[string]*domain.Batch),
		lines:     make(map[string]*domain.Line),
		claims:    make(map[string]string),
		entryRefs: make(map[string]string),
		sequences: map[string]*sequence{"journal.entry": {prefix: "JE", next: 1}},
		journals:  make(map[string][]ports.JournalPaymentMethodLine),
	}
}

// AddSequence registers a numbering sequence
func (s *Store) AddSequence(code, prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[code] = &sequence{prefix: prefix, next: 1}
}

// AddPayments seeds the payment source
func (s *Store) AddPayments(payments ...*domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, payments...)
}

// AddWithholdingDocuments seeds the withholding document source
func (s *Store) AddWithholdingDocuments(docs ...*domain.WithholdingDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, docs...)
}

// SetPostingAccounts sets the company-level posting accounts
func (s *Store) SetPostingAccounts(accounts ports.PostingAccounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
}

// SetJournalLines sets the inbound payment method lines of a journal
func (s *Store) SetJournalLines(journalID string, lines ...ports.JournalPaymentMethodLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journals[journalID] = lines
}

// Entries returns every posted journal entry in posting order
func (s *Store) Entries() []*domain.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.JournalEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// GetDB returns nil; repositories in this package ignore the executor
func (s *Store) GetDB() *pgxpool.Pool {
	return nil
}

// WithTransaction runs fn and restores the pre-call state when it fails or panics
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
			return
		}
		s.mu.Lock()
		s.Commits++
		s.mu.Unlock()
	}()
	return fn(ctx, nil)
}

// WithReadOnlyTransaction runs fn without snapshotting
func (s *Store) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type snapshot struct {
	batches   map[string]*domain.Batch
	lines     map[string]*domain.Line
	claims    map[string]string
	entries   []*domain.JournalEntry
	entryRefs map[string]string
	sequences map[string]sequence
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		batches:   make(map[string]*domain.Batch, len(s.batches)),
		lines:     make(map[string]*domain.Line, len(s.lines)),
		claims:    make(map[string]string, len(s.claims)),
		entries:   append([]*domain.JournalEntry(nil), s.entries...),
		entryRefs: make(map[string]string, len(s.entryRefs)),
		sequences: make(map[string]sequence, len(s.sequences)),
	}
	for k, v := range s.batches {
		snap.batches[k] = cloneBatch(v)
	}
	for k, v := range s.lines {
		snap.lines[k] = cloneLine(v)
	}
	for k, v := range s.claims {
		snap.claims[k] = v
	}
	for k, v := range s.entryRefs {
		snap.entryRefs[k] = v
	}
	for k, v := range s.sequences {
		snap.sequences[k] = *v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = snap.batches
	s.lines = snap.lines
	s.claims = snap.claims
	s.entries = snap.entries
	s.entryRefs = snap.entryRefs
	s.sequences = make(map[string]*sequence, len(snap.sequences))
	for k, v := range snap.sequences {
		seq := v
		s.sequences[k] = &seq
	}
	s.Rollbacks++
}

func cloneBatch(b *domain.Batch) *domain.Batch {
	c := *b
	c.CardTypes = append([]domain.CardType(nil), b.CardTypes...)
	c.PostedEntryRefs = append([]string(nil), b.PostedEntryRefs...)
	return &c
}

func cloneLine(l *domain.Line) *domain.Line {
	c := *l
	if l.SettlementDate != nil {
		d := *l.SettlementDate
		c.SettlementDate = &d
	}
	if l.WithholdingDocumentID != nil {
		id := *l.WithholdingDocumentID
		c.WithholdingDocumentID = &id
	}
	return &c
}

// CreateBatch implements ports.BatchRepository
func (s *Store) CreateBatch(ctx context.Context, tx ports.DBTX, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; ok {
		return fmt.Errorf("batch %s already exists", batch.ID)
	}
	// same keys as reconciliation_batch_card_types
	ids := make(map[string]bool, len(batch.CardTypes))
	codes := make(map[string]bool, len(batch.CardTypes))
	for _, ct := range batch.CardTypes {
		code := strings.ToLower(ct.Code)
		if ids[ct.ID] || codes[code] {
			return fmt.Errorf("batch %s: duplicate card type %s (%s)", batch.ID, ct.ID, ct.Code)
		}
		ids[ct.ID], codes[code] = true, true
	}
	s.batches[batch.ID] = cloneBatch(batch)
	return nil
}

// GetBatch implements ports.BatchRepository
func (s *Store) GetBatch(ctx context.Context, db ports.DBTX, id string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound(id)
	}
	return cloneBatch(b), nil
}

// UpdateBatch implements ports.BatchRepository
func (s *Store) UpdateBatch(ctx context.Context, tx ports.DBTX, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; !ok {
		return domain.ErrBatchNotFound(batch.ID)
	}
	s.batches[batch.ID] = cloneBatch(batch)
	return nil
}

// DeleteBatch implements ports.BatchRepository; lines and their payment claims go with it
func (s *Store) DeleteBatch(ctx context.Context, tx ports.DBTX, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[id]; !ok {
		return domain.ErrBatchNotFound(id)
	}
	delete(s.batches, id)
	for lineID, l := range s.lines {
		if l.BatchID == id {
			delete(s.claims, l.PaymentID)
			delete(s.lines, lineID)
		}
	}
	return nil
}

// ListLines implements ports.BatchRepository
func (s *Store) ListLines(ctx context.Context, db ports.DBTX, batchID string) ([]*domain.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Line
	for _, l := range s.lines {
		if l.BatchID == batchID {
			out = append(out, cloneLine(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// InsertLine implements ports.BatchRepository with a unique claim per payment
func (s *Store) InsertLine(ctx context.Context, tx ports.DBTX, line *domain.Line) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, claimed := s.claims[line.PaymentID]; claimed {
		return false, nil
	}
	s.lines[line.ID] = cloneLine(line)
	s.claims[line.PaymentID] = line.ID
	return true, nil
}

// UpdateLine implements ports.BatchRepository
func (s *Store) UpdateLine(ctx context.Context, tx ports.DBTX, line *domain.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[line.ID]; !ok {
		return fmt.Errorf("line %s not found", line.ID)
	}
	s.lines[line.ID] = cloneLine(line)
	return nil
}

// ClaimedPayments implements ports.BatchRepository
func (s *Store) ClaimedPayments(ctx context.Context, db ports.DBTX, paymentIDs []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for _, id := range paymentIDs {
		if lineID, ok := s.claims[id]; ok {
			out[id] = s.lines[lineID].BatchID
		}
	}
	return out, nil
}

// ClaimPayment records a line owned by another batch without going through the selector.
// Tests use it to simulate a concurrent claim.
func (s *Store) ClaimPayment(paymentID, batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineID := "claim-" + paymentID
	s.lines[lineID] = &domain.Line{ID: lineID, BatchID: batchID, PaymentID: paymentID}
	s.claims[paymentID] = lineID
}

// ListPostedPayments implements ports.PaymentSource
func (s *Store) ListPostedPayments(ctx context.Context, db ports.DBTX, q ports.PaymentQuery) ([]*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range s.payments {
		if p.Posted && p.JournalID == q.JournalID && p.InPeriod(q.From, q.To) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// FindPosted implements ports.WithholdingSource
func (s *Store) FindPosted(ctx context.Context, db ports.DBTX, q ports.WithholdingQuery) ([]*domain.WithholdingDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WithholdingDocument
	for _, d := range s.documents {
		if d.Posted && d.DocumentType == q.DocumentType && d.Reference == q.Reference && d.PartnerID == q.PartnerID {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetDocuments implements ports.WithholdingSource
func (s *Store) GetDocuments(ctx context.Context, db ports.DBTX, ids []string) ([]*domain.WithholdingDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*domain.WithholdingDocument
	for _, d := range s.documents {
		if want[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

// Get implements ports.AccountSettings
func (s *Store) Get(ctx context.Context, db ports.DBTX) (ports.PostingAccounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts, nil
}

// InboundPaymentMethodLines implements ports.JournalDirectory
func (s *Store) InboundPaymentMethodLines(ctx context.Context, db ports.DBTX, journalID string) ([]ports.JournalPaymentMethodLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.JournalPaymentMethodLine(nil), s.journals[journalID]...), nil
}

// Next implements ports.SequenceGenerator
func (s *Store) Next(ctx context.Context, tx ports.DBTX, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked(code)
}

func (s *Store) nextLocked(code string) (string, error) {
	seq, ok := s.sequences[code]
	if !ok {
		return "", domain.NewDomainError(domain.ErrorCodeConfigSequence,
			fmt.Sprintf("numbering sequence %q is not configured", code))
	}
	ref := fmt.Sprintf("%s/%05d", strings.TrimSuffix(seq.prefix, "/"), seq.next)
	seq.next++
	return ref, nil
}

// Post implements ports.LedgerPoster
func (s *Store) Post(ctx context.Context, tx ports.DBTX, entry *domain.JournalEntry) (string, error) {
	if !entry.IsBalanced() {
		return "", fmt.Errorf("journal entry for line %s is unbalanced: debit %s, credit %s",
			entry.LineID, entry.TotalDebit(), entry.TotalCredit())
	}
	if s.PostHook != nil {
		if err := s.PostHook(entry); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.entryRefs[entry.IdempotencyKey]; ok {
		return ref, nil
	}
	ref, err := s.nextLocked("journal.entry")
	if err != nil {
		return "", err
	}
	posted := *entry
	posted.Reference = ref
	posted.Legs = append([]domain.JournalLeg(nil), entry.Legs...)
	s.entries = append(s.entries, &posted)
	s.entryRefs[entry.IdempotencyKey] = ref
	return ref, nil
}
