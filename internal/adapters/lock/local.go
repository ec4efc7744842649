package lock

import (
	"context"
	"errors"
	"sync"

	"github.com/kevin07696/card-reconciliation/internal/domain"
)

var errHeldLocally = errors.New("batch lock held by another request")

// LocalLocker serializes batch writers inside one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates an in-process batch locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Acquire obtains the batch lock without waiting or returns BATCH_LOCKED
func (l *LocalLocker) Acquire(ctx context.Context, batchID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[batchID] {
		return nil, domain.ErrBatchLocked(batchID, errHeldLocally)
	}
	l.held[batchID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, batchID)
			l.mu.Unlock()
		})
	}, nil
}
