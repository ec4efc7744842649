package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Secrets        SecretsConfig
	Reconciliation ReconciliationConfig
	Logger         LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `validate:"min=1,max=65535"`
	Host            string        `validate:"required"`
	MetricsPort     int           `validate:"min=1,max=65535,nefield=Port"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Per client IP. Zero disables rate limiting.
	RateLimitRPS   float64 `validate:"min=0"`
	RateLimitBurst int     `validate:"min=0"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	User     string `validate:"required"`
	Password string
	// PasswordSecret names a secret that overrides Password when set
	PasswordSecret string
	Database       string `validate:"required"`
	SSLMode        string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns       int32  `validate:"min=1"`
	MinConns       int32  `validate:"min=0,ltefield=MaxConns"`
	LockTimeout    time.Duration
	AutoMigrate    bool
}

// RedisConfig holds the distributed lock backend. Disabled means an in-process lock.
type RedisConfig struct {
	Enabled        bool
	Address        string `validate:"required_if=Enabled true"`
	Password       string
	PasswordSecret string
	DB             int `validate:"min=0"`
}

// SecretsConfig selects the secret backend
type SecretsConfig struct {
	Backend   string `validate:"oneof=local aws vault"`
	LocalPath string
	CacheTTL  time.Duration

	AWSRegion   string `validate:"required_if=Backend aws"`
	AWSProfile  string
	AWSEndpoint string

	VaultAddress    string `validate:"required_if=Backend vault"`
	VaultAuthMethod string `validate:"omitempty,oneof=token approle"`
	VaultToken      string
	VaultRoleID     string
	VaultSecretID   string
	VaultNamespace  string
	VaultMountPath  string
	VaultKVVersion  string `validate:"omitempty,oneof=v1 v2"`
}

// ReconciliationConfig holds the settlement engine settings
type ReconciliationConfig struct {
	// WithholdingDocumentType is the document type searched when resolving withholding sequences
	WithholdingDocumentType string `validate:"required"`
	// DepositKeywords mark the payment method line whose account receives deposits
	DepositKeywords []string `validate:"min=1,dive,required"`
	ImportChunkSize int      `validate:"min=1"`
	// BatchSequence numbers new batches
	BatchSequence string        `validate:"required"`
	LockTTL       time.Duration `validate:"gt=0"`
	LockWait      time.Duration `validate:"min=0"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `validate:"oneof=debug info warn error"`
	Development bool
}

// LoadFromEnv loads configuration from environment variables, reading .env first when present
func LoadFromEnv() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 20),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", ""),
			PasswordSecret: getEnv("DB_PASSWORD_SECRET", ""),
			Database:       getEnv("DB_NAME", "card_reconciliation"),
			SSLMode:        getEnv("DB_SSL_MODE", "disable"),
			MaxConns:       int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			LockTimeout:    getEnvAsDuration("DB_LOCK_TIMEOUT", 5*time.Second),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", false),
			Address:        getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			PasswordSecret: getEnv("REDIS_PASSWORD_SECRET", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
		},
		Secrets: SecretsConfig{
			Backend:         getEnv("SECRETS_BACKEND", "local"),
			LocalPath:       getEnv("SECRETS_LOCAL_PATH", "./secrets"),
			CacheTTL:        getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
			AWSRegion:       getEnv("AWS_REGION", ""),
			AWSProfile:      getEnv("AWS_PROFILE", ""),
			AWSEndpoint:     getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:    getEnv("VAULT_ADDR", ""),
			VaultAuthMethod: getEnv("VAULT_AUTH_METHOD", "token"),
			VaultToken:      getEnv("VAULT_TOKEN", ""),
			VaultRoleID:     getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:   getEnv("VAULT_SECRET_ID", ""),
			VaultNamespace:  getEnv("VAULT_NAMESPACE", ""),
			VaultMountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultKVVersion:  getEnv("VAULT_KV_VERSION", "v2"),
		},
		Reconciliation: ReconciliationConfig{
			WithholdingDocumentType: getEnv("RECON_WITHHOLDING_DOCUMENT_TYPE", "withholding"),
			DepositKeywords:         getEnvAsList("RECON_DEPOSIT_KEYWORDS", []string{"settlement", "liquidación", "liquidacion"}),
			ImportChunkSize:         getEnvAsInt("RECON_IMPORT_CHUNK_SIZE", 200),
			BatchSequence:           getEnv("RECON_BATCH_SEQUENCE", "card.reconciliation"),
			LockTTL:                 getEnvAsDuration("RECON_LOCK_TTL", 5*time.Minute),
			LockWait:                getEnvAsDuration("RECON_LOCK_WAIT", 2*time.Second),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.Password == "" && c.Database.PasswordSecret == "" {
		return fmt.Errorf("DB_PASSWORD or DB_PASSWORD_SECRET is required")
	}
	return nil
}

// ConnectionString returns a PostgreSQL URL for the given password
func (c *DatabaseConfig) ConnectionString(password string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
