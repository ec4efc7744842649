package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/kevin07696/card-reconciliation/pkg/timeutil"
)

// BatchState is the lifecycle state of a reconciliation batch
type BatchState string

const (
	BatchStateDraft     BatchState = "draft"
	BatchStateInProcess BatchState = "in_process"
	BatchStateDone      BatchState = "done"
)

// IsValid reports whether s is one of the known batch states
func (s BatchState) IsValid() bool {
	switch s {
	case BatchStateDraft, BatchStateInProcess, BatchStateDone:
		return true
	}
	return false
}

// allowedTransitions lists every legal edge of the batch state machine.
// done -> draft is the explicit re-open; it does not reverse posted entries.
var allowedTransitions = map[BatchState][]BatchState{
	BatchStateDraft:     {BatchStateInProcess},
	BatchStateInProcess: {BatchStateDone},
	BatchStateDone:      {BatchStateDraft},
}

// CardType is a card brand/product eligible for a batch (e.g. VISA credit)
type CardType struct {
	ID   string `json:"id" validate:"required"`
	Code string `json:"code" validate:"required"`
	Name string `json:"name"`
}

// Batch is one settlement cut-off cycle for one bank/journal pairing.
// It owns its lines; deleting the batch deletes them.
type Batch struct {
	CutoffDate           time.Time  `json:"cutoff_date"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	CardTypes            []CardType `json:"card_types"`
	PostedEntryRefs      []string   `json:"posted_entry_refs"`
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	SourceJournalID      string     `json:"source_journal_id"`
	DestinationJournalID string     `json:"destination_journal_id"`
	ResponsiblePartyID   string     `json:"responsible_party_id"`
	ReferencePartnerID   string     `json:"reference_partner_id"`
	State                BatchState `json:"state"`
	Revision             int        `json:"revision"`
}

// CanTransitionTo returns true if the state machine has an edge from the current state to next
func (b *Batch) CanTransitionTo(next BatchState) bool {
	for _, s := range allowedTransitions[b.State] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the batch to next or returns BATCH_INVALID_TRANSITION.
// Re-opening a done batch bumps Revision so re-posting gets fresh idempotency keys.
func (b *Batch) TransitionTo(next BatchState) error {
	if !b.CanTransitionTo(next) {
		return NewDomainError(ErrorCodeBatchInvalidTransition,
			fmt.Sprintf("cannot move batch from %s to %s", b.State, next)).
			WithDetail("batch_id", b.ID).
			WithDetail("from", string(b.State)).
			WithDetail("to", string(next))
	}
	if b.State == BatchStateDone && next == BatchStateDraft {
		b.Revision++
	}
	b.State = next
	b.UpdatedAt = timeutil.Now()
	return nil
}

// IsMutable returns false once the batch is done; lines are frozen from then on
func (b *Batch) IsMutable() bool {
	return b.State != BatchStateDone
}

// EnsureMutable returns BATCH_IMMUTABLE for a done batch
func (b *Batch) EnsureMutable() error {
	if !b.IsMutable() {
		return ErrBatchImmutable(b)
	}
	return nil
}

// PeriodStart is the first day of the cutoff month, the lower bound of candidate payments
func (b *Batch) PeriodStart() time.Time {
	return timeutil.StartOfMonth(b.CutoffDate)
}

// PeriodEnd is the end of the cutoff day
func (b *Batch) PeriodEnd() time.Time {
	return timeutil.EndOfDay(b.CutoffDate)
}

// HasCardTypeFilter reports whether the batch restricts payments by card type
func (b *Batch) HasCardTypeFilter() bool {
	return len(b.CardTypes) > 0
}

// CardTypeForSelector finds the configured card type whose code matches a payment's card selector
func (b *Batch) CardTypeForSelector(selector string) (CardType, bool) {
	selector = strings.TrimSpace(selector)
	for _, ct := range b.CardTypes {
		if strings.EqualFold(strings.TrimSpace(ct.Code), selector) {
			return ct, true
		}
	}
	return CardType{}, false
}

// AppendEntryRef records a posted journal entry reference in the batch link set
func (b *Batch) AppendEntryRef(ref string) {
	for _, existing := range b.PostedEntryRefs {
		if existing == ref {
			return
		}
	}
	b.PostedEntryRefs = append(b.PostedEntryRefs, ref)
}
