package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// AccountSettings reads the company posting accounts singleton row
type AccountSettings struct {
	db ports.DBPort
}

// NewAccountSettings creates an account settings reader
func NewAccountSettings(db ports.DBPort) *AccountSettings {
	return &AccountSettings{db: db}
}

// Get returns the configured accounts. A missing row means nothing is configured.
func (a *AccountSettings) Get(ctx context.Context, db ports.DBTX) (ports.PostingAccounts, error) {
	var commission, retention pgtype.Text
	err := executor(db, a.db).QueryRow(ctx, `
		SELECT commission_account_id, retention_account_id
		FROM company_posting_accounts
		WHERE id = 1`,
	).Scan(&commission, &retention)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.PostingAccounts{}, nil
		}
		return ports.PostingAccounts{}, fmt.Errorf("get posting accounts: %w", err)
	}
	return ports.PostingAccounts{
		CommissionAccountID: commission.String,
		RetentionAccountID:  retention.String,
	}, nil
}
