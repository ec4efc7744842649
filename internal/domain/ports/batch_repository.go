package ports

import (
	"context"

	"github.com/kevin07696/card-reconciliation/internal/domain"
)

// BatchRepository defines persistence for reconciliation batches and their lines
type BatchRepository interface {
	// CreateBatch inserts a new batch with its card type filter
	CreateBatch(ctx context.Context, tx DBTX, batch *domain.Batch) error

	// GetBatch retrieves a batch by ID; returns BATCH_NOT_FOUND when it does not exist
	GetBatch(ctx context.Context, db DBTX, id string) (*domain.Batch, error)

	// UpdateBatch persists state, revision and posted entry references
	UpdateBatch(ctx context.Context, tx DBTX, batch *domain.Batch) error

	// DeleteBatch removes a batch and every line it owns
	DeleteBatch(ctx context.Context, tx DBTX, id string) error

	// ListLines returns the batch's lines ordered by position
	ListLines(ctx context.Context, db DBTX, batchID string) ([]*domain.Line, error)

	// InsertLine adds a line. inserted is false when the payment is already
	// claimed by some batch, which leaves the store untouched.
	InsertLine(ctx context.Context, tx DBTX, line *domain.Line) (inserted bool, err error)

	// UpdateLine persists the settlement and withholding fields of a line
	UpdateLine(ctx context.Context, tx DBTX, line *domain.Line) error

	// ClaimedPayments maps each given payment ID that already belongs to a batch to that batch's ID
	ClaimedPayments(ctx context.Context, db DBTX, paymentIDs []string) (map[string]string, error)
}
