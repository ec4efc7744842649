package ports

import "context"

// BatchLocker serializes mutations of a single batch across processes
type BatchLocker interface {
	// Acquire obtains the batch lock or returns BATCH_LOCKED.
	// The returned release func is safe to call once the caller is done.
	Acquire(ctx context.Context, batchID string) (release func(), err error)
}
