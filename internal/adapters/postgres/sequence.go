package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// JournalEntrySequence is the numbering sequence of posted journal entries
const JournalEntrySequence = "journal.entry"

// SequenceGenerator hands out references from the number_sequences table
type SequenceGenerator struct {
	db ports.DBPort
}

// NewSequenceGenerator creates a sequence generator
func NewSequenceGenerator(db ports.DBPort) *SequenceGenerator {
	return &SequenceGenerator{db: db}
}

// Next increments the named sequence and formats the value it held as PREFIX/00042.
// The row lock taken by UPDATE serializes concurrent callers until tx ends.
func (g *SequenceGenerator) Next(ctx context.Context, tx ports.DBTX, code string) (string, error) {
	var (
		prefix  string
		padding int
		value   int64
	)
	err := executor(tx, g.db).QueryRow(ctx, `
		UPDATE number_sequences
		SET next_value = next_value + 1
		WHERE code = $1
		RETURNING prefix, padding, next_value - 1`, code,
	).Scan(&prefix, &padding, &value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NewDomainError(domain.ErrorCodeConfigSequence,
				fmt.Sprintf("numbering sequence %q is not configured", code))
		}
		return "", fmt.Errorf("advance sequence %s: %w", code, err)
	}
	return fmt.Sprintf("%s/%0*d", strings.TrimSuffix(prefix, "/"), padding, value), nil
}
