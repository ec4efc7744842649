package postgres

import "github.com/kevin07696/card-reconciliation/internal/domain/ports"

var (
	_ ports.DBPort            = (*DBExecutor)(nil)
	_ ports.BatchRepository   = (*BatchRepository)(nil)
	_ ports.PaymentSource     = (*PaymentSource)(nil)
	_ ports.WithholdingSource = (*WithholdingSource)(nil)
	_ ports.LedgerPoster      = (*LedgerPoster)(nil)
	_ ports.JournalDirectory  = (*JournalDirectory)(nil)
	_ ports.AccountSettings   = (*AccountSettings)(nil)
	_ ports.SequenceGenerator = (*SequenceGenerator)(nil)
)
