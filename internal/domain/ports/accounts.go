package ports

import "context"

// PostingAccounts holds the company-level accounts used when composing entries.
// Empty IDs mean the account is not configured.
type PostingAccounts struct {
	CommissionAccountID string
	RetentionAccountID  string
}

// AccountSettings reads the company-level posting accounts
type AccountSettings interface {
	Get(ctx context.Context, db DBTX) (PostingAccounts, error)
}
