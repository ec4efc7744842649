package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Status    string            `json:"status"`
}

// HealthChecker manages health checks for the service
type HealthChecker struct {
	dbPool *pgxpool.Pool
	redis  redis.UniversalClient
}

// NewHealthChecker creates a new HealthChecker. Either dependency may be nil.
func NewHealthChecker(dbPool *pgxpool.Pool, redisClient redis.UniversalClient) *HealthChecker {
	return &HealthChecker{
		dbPool: dbPool,
		redis:  redisClient,
	}
}

// Check performs health checks and returns the status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string)
	overallStatus := "healthy"

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// Database health check
	if h.dbPool != nil {
		if err := h.dbPool.Ping(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// Redis backs the batch lock; without it mutations fail with BATCH_LOCKED
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(status)
	}
}
