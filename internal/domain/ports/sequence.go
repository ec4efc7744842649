package ports

import "context"

// SequenceGenerator hands out document references
type SequenceGenerator interface {
	// Next returns the next reference of the named sequence.
	// Returns CONFIG_SEQUENCE_MISSING when the sequence does not exist.
	Next(ctx context.Context, tx DBTX, code string) (string, error)
}
