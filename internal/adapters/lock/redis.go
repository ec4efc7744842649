// Package lock implements the per-batch single-writer lock.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/kevin07696/card-reconciliation/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker holds batch locks in Redis so every service instance sees them
type RedisLocker struct {
	client *redislock.Client
	logger *zap.Logger
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker creates a Redis-backed batch locker.
// wait bounds how long Acquire retries before reporting BATCH_LOCKED.
func NewRedisLocker(rdb redis.UniversalClient, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	retry := redislock.NoRetry()
	if wait > 0 {
		const step = 100 * time.Millisecond
		retry = redislock.LimitRetry(redislock.LinearBackoff(step), int(wait/step))
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		logger: logger,
		ttl:    ttl,
		retry:  retry,
	}
}

func lockKey(batchID string) string {
	return "lock:reconciliation:batch:" + batchID
}

// Acquire obtains the batch lock or returns BATCH_LOCKED
func (l *RedisLocker) Acquire(ctx context.Context, batchID string) (func(), error) {
	key := lockKey(batchID)
	lk, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrBatchLocked(batchID, err)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "obtain batch lock", err).
			WithDetail("batch_id", batchID)
	}

	return func() {
		// the request context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release batch lock",
				zap.String("batch_id", batchID),
				zap.Error(err))
		}
	}, nil
}
