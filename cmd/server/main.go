package main

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kevin07696/card-reconciliation/internal/adapters/database"
	"github.com/kevin07696/card-reconciliation/internal/adapters/lock"
	"github.com/kevin07696/card-reconciliation/internal/adapters/postgres"
	"github.com/kevin07696/card-reconciliation/internal/adapters/secrets"
	worksheetadapter "github.com/kevin07696/card-reconciliation/internal/adapters/worksheet"
	"github.com/kevin07696/card-reconciliation/internal/config"
	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	reconciliationHandler "github.com/kevin07696/card-reconciliation/internal/handlers/reconciliation"
	"github.com/kevin07696/card-reconciliation/internal/services/posting"
	"github.com/kevin07696/card-reconciliation/internal/services/reconciliation"
	"github.com/kevin07696/card-reconciliation/internal/services/selector"
	"github.com/kevin07696/card-reconciliation/internal/services/validation"
	"github.com/kevin07696/card-reconciliation/internal/services/withholding"
	"github.com/kevin07696/card-reconciliation/internal/services/worksheet"
	"github.com/kevin07696/card-reconciliation/pkg/middleware"
	"github.com/kevin07696/card-reconciliation/pkg/observability"
	"github.com/kevin07696/card-reconciliation/pkg/security"
	"github.com/kevin07696/card-reconciliation/pkg/shutdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "card-reconciliation: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger, err := security.BuildLogger(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting card reconciliation service",
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
		zap.String("secrets_backend", cfg.Secrets.Backend),
		zap.Bool("redis_lock", cfg.Redis.Enabled),
	)

	ctx := context.Background()
	stopper := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	secretProvider, err := secrets.New(ctx, secretsConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("init secrets: %w", err)
	}

	// Database
	dbPassword, err := secrets.Resolve(ctx, secretProvider, cfg.Database.PasswordSecret, cfg.Database.Password)
	if err != nil {
		return fmt.Errorf("resolve database password: %w", err)
	}
	pgCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString(dbPassword))
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns

	pg, err := database.NewPostgreSQLAdapter(ctx, pgCfg, logger)
	if err != nil {
		return err
	}
	stopper.RegisterNoErr("postgres", pg.Close)

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pg.Pool(), logger); err != nil {
			pg.Close()
			return err
		}
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	pg.StartPoolMonitoring(monitorCtx, 30*time.Second)
	stopper.RegisterNoErr("pool-monitor", stopMonitor)

	// Batch lock
	var (
		rdb    redis.UniversalClient
		locker ports.BatchLocker
	)
	if cfg.Redis.Enabled {
		redisPassword, err := secrets.Resolve(ctx, secretProvider, cfg.Redis.PasswordSecret, cfg.Redis.Password)
		if err != nil {
			stopper.Shutdown()
			return fmt.Errorf("resolve redis password: %w", err)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: redisPassword,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			stopper.Shutdown()
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Address, err)
		}
		stopper.Register("redis", func(context.Context) error { return client.Close() })
		rdb = client
		locker = lock.NewRedisLocker(client, cfg.Reconciliation.LockTTL, cfg.Reconciliation.LockWait, logger)
	} else {
		logger.Warn("Redis disabled, batch locks are local to this process")
		locker = lock.NewLocalLocker()
	}

	service := buildService(cfg, pg, locker, logger)

	// Metrics and health
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort),
		observability.NewHealthChecker(pg.Pool(), rdb), logger)
	stopper.Register("metrics-server", metricsServer.Shutdown)

	// API
	mux := http.NewServeMux()
	reconciliationHandler.NewHandler(service, logger).RegisterRoutes(mux)

	var api http.Handler = middleware.GzipHandler(gzip.DefaultCompression, logger)(mux)
	api = middleware.NewSecurityHeaders(cfg.Logger.Development).Middleware(api)
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)
		stopper.RegisterNoErr("rate-limiter", limiter.Shutdown)
		api = limiter.Middleware(api)
	}

	inflight := shutdown.NewInFlightTracker("api", logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           inflight.Middleware(observability.HTTPMiddleware(api)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()
	// Reverse order: stop admitting requests, then drain the server
	stopper.Register("http-server", httpServer.Shutdown)
	stopper.Register("inflight-requests", inflight.Shutdown)

	stopper.WaitForShutdown(ctx)
	return nil
}

// buildService wires the reconciliation engine on the PostgreSQL adapters
func buildService(cfg *config.Config, pg *database.PostgreSQLAdapter, locker ports.BatchLocker, zl *zap.Logger) *reconciliation.Service {
	logger := security.NewZapLogger(zl)
	db := postgres.NewDBExecutor(pg.Pool(), postgres.WithLockTimeout(cfg.Database.LockTimeout))

	repo := postgres.NewBatchRepository(db)
	sequences := postgres.NewSequenceGenerator(db)
	withholdings := postgres.NewWithholdingSource(db)

	return reconciliation.NewService(reconciliation.Dependencies{
		DB:         db,
		Repo:       repo,
		Sequences:  sequences,
		Locker:     locker,
		Selector:   selector.NewService(repo, postgres.NewPaymentSource(db), logger),
		Worksheets: worksheet.NewService(db, repo, logger, cfg.Reconciliation.ImportChunkSize),
		Matcher:    withholding.NewMatcher(repo, withholdings, logger, cfg.Reconciliation.WithholdingDocumentType),
		Validator:  validation.NewEngine(),
		Composer: posting.NewComposer(
			postgres.NewAccountSettings(db),
			postgres.NewJournalDirectory(db),
			withholdings,
			postgres.NewLedgerPoster(db, sequences),
			logger,
			cfg.Reconciliation.DepositKeywords,
		),
		Codecs:        worksheetadapter.NewCodec,
		Logger:        logger,
		BatchSequence: cfg.Reconciliation.BatchSequence,
	})
}

func secretsConfig(cfg *config.Config) secrets.Config {
	s := cfg.Secrets
	return secrets.Config{
		Backend:   s.Backend,
		LocalPath: s.LocalPath,
		AWS: secrets.AWSConfig{
			Region:   s.AWSRegion,
			Profile:  s.AWSProfile,
			Endpoint: s.AWSEndpoint,
			CacheTTL: s.CacheTTL,
		},
		Vault: secrets.VaultConfig{
			Address:    s.VaultAddress,
			AuthMethod: s.VaultAuthMethod,
			Token:      s.VaultToken,
			RoleID:     s.VaultRoleID,
			SecretID:   s.VaultSecretID,
			Namespace:  s.VaultNamespace,
			MountPath:  s.VaultMountPath,
			KVVersion:  s.VaultKVVersion,
			CacheTTL:   s.CacheTTL,
		},
	}
}
