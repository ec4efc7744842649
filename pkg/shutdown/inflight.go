package shutdown

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker counts running requests so shutdown can wait for a batch
// completion that is mid-posting instead of cancelling its transaction
type InFlightTracker struct {
	mu         sync.Mutex
	wg         sync.WaitGroup
	shutdownCh chan struct{}
	closed     bool
	logger     *zap.Logger
	name       string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Add registers one unit of work. Returns false once shutdown has begun.
func (ift *InFlightTracker) Add() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	if ift.closed {
		return false
	}
	ift.wg.Add(1)
	return true
}

// Done marks one unit of work finished
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// IsShuttingDown returns true once Shutdown has been called
func (ift *InFlightTracker) IsShuttingDown() bool {
	select {
	case <-ift.shutdownCh:
		return true
	default:
		return false
	}
}

// Shutdown rejects new work and waits for running work or ctx
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	ift.mu.Lock()
	if !ift.closed {
		ift.closed = true
		close(ift.shutdownCh)
	}
	ift.mu.Unlock()

	ift.logger.Info("Waiting for in-flight work to complete", zap.String("tracker", ift.name))

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout - some work may be incomplete", zap.String("tracker", ift.name))
		return ctx.Err()
	}
}

// Middleware answers 503 once shutdown has begun and tracks every other request
func (ift *InFlightTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ift.Add() {
			w.Header().Set("Connection", "close")
			http.Error(w, "service is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer ift.Done()
		next.ServeHTTP(w, r)
	})
}
