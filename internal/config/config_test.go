package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "postgres")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, 20.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, "card_reconciliation", cfg.Database.Database)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "local", cfg.Secrets.Backend)
	assert.Equal(t, "withholding", cfg.Reconciliation.WithholdingDocumentType)
	assert.Equal(t, []string{"settlement", "liquidación", "liquidacion"}, cfg.Reconciliation.DepositKeywords)
	assert.Equal(t, 200, cfg.Reconciliation.ImportChunkSize)
	assert.Equal(t, 5*time.Minute, cfg.Reconciliation.LockTTL)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_PASSWORD_SECRET", "card-reconciliation/database")
	t.Setenv("RECON_DEPOSIT_KEYWORDS", " bank deposit , ,acreditación ")
	t.Setenv("RECON_IMPORT_CHUNK_SIZE", "50")
	t.Setenv("RECON_LOCK_TTL", "90s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"bank deposit", "acreditación"}, cfg.Reconciliation.DepositKeywords)
	assert.Equal(t, 50, cfg.Reconciliation.ImportChunkSize)
	assert.Equal(t, 90*time.Second, cfg.Reconciliation.LockTTL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing password",
			env:     map[string]string{},
			wantErr: "DB_PASSWORD or DB_PASSWORD_SECRET is required",
		},
		{
			name:    "unknown secrets backend",
			env:     map[string]string{"DB_PASSWORD": "x", "SECRETS_BACKEND": "gcp"},
			wantErr: "Config.Secrets.Backend (oneof)",
		},
		{
			name:    "aws without region",
			env:     map[string]string{"DB_PASSWORD": "x", "SECRETS_BACKEND": "aws"},
			wantErr: "Config.Secrets.AWSRegion (required_if)",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"DB_PASSWORD": "x", "LOG_LEVEL": "verbose"},
			wantErr: "Config.Logger.Level (oneof)",
		},
		{
			name:    "metrics port clashes with server port",
			env:     map[string]string{"DB_PASSWORD": "x", "SERVER_PORT": "9090"},
			wantErr: "Config.Server.MetricsPort (nefield)",
		},
		{
			name:    "min conns above max",
			env:     map[string]string{"DB_PASSWORD": "x", "DB_MIN_CONNS": "20"},
			wantErr: "Config.Database.MinConns (ltefield)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_PASSWORD", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "recon", Database: "card_reconciliation", SSLMode: "disable"}

	assert.Equal(t, "postgres://recon:p%40ss%2Fword@db:5432/card_reconciliation?sslmode=disable",
		c.ConnectionString("p@ss/word"))
}
