package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ipLimiter tracks a rate limiter and its last access time
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles API calls per client IP. Populate and import hold a
// batch lock for their whole run, so a client retrying in a tight loop would
// otherwise keep other operators locked out.
type RateLimiter struct {
	limiters        map[string]*ipLimiter
	mu              sync.Mutex
	rate            rate.Limit
	burst           int
	maxSize         int
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	logger          *zap.Logger
	now             func() time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given burst per IP
func NewRateLimiter(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		limiters:        make(map[string]*ipLimiter),
		rate:            rate.Limit(requestsPerSecond),
		burst:           burst,
		maxSize:         10000,
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
		logger:          logger,
		now:             time.Now,
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes entries idle for longer than the cleanup interval
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cleanupInterval)
	removed := 0
	for ip, l := range rl.limiters {
		if l.lastAccess.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}

	if removed > 0 {
		rl.logger.Debug("Evicted idle rate limiters",
			zap.Int("removed", removed),
			zap.Int("remaining", len(rl.limiters)),
		)
	}
}

// Shutdown stops the cleanup goroutine
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if l, ok := rl.limiters[ip]; ok {
		l.lastAccess = now
		return l.limiter
	}

	// At capacity: evict the least recently used entry
	if len(rl.limiters) >= rl.maxSize {
		var oldestIP string
		var oldest time.Time
		for ip, l := range rl.limiters {
			if oldestIP == "" || l.lastAccess.Before(oldest) {
				oldestIP, oldest = ip, l.lastAccess
			}
		}
		delete(rl.limiters, oldestIP)
	}

	l := &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst), lastAccess: now}
	rl.limiters[ip] = l
	return l.limiter
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.getLimiter(ip).Allow() {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
