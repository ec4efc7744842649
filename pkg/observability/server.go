package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StartMetricsServer starts an HTTP server for Prometheus metrics and health checks
func StartMetricsServer(port string, healthChecker *HealthChecker, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())

	if healthChecker != nil {
		mux.HandleFunc("GET /health", healthChecker.HealthHandler())
	}

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return server
}

// ShutdownMetricsServer gracefully shuts down the metrics server
func ShutdownMetricsServer(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
