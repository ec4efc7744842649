package memstore

import "github.com/kevin07696/card-reconciliation/internal/domain/ports"

var (
	_ ports.DBPort            = (*Store)(nil)
	_ ports.BatchRepository   = (*Store)(nil)
	_ ports.PaymentSource     = (*Store)(nil)
	_ ports.WithholdingSource = (*Store)(nil)
	_ ports.LedgerPoster      = (*Store)(nil)
	_ ports.AccountSettings   = (*Store)(nil)
	_ ports.JournalDirectory  = (*Store)(nil)
	_ ports.SequenceGenerator = (*Store)(nil)
)
