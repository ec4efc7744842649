// Package secrets resolves credentials from the local filesystem, AWS Secrets Manager or Vault.
package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// Backend names accepted by New
const (
	BackendLocal = "local"
	BackendAWS   = "aws"
	BackendVault = "vault"
)

// Config selects and configures a backend
type Config struct {
	Backend   string
	LocalPath string
	AWS       AWSConfig
	Vault     VaultConfig
}

// New builds the provider for cfg.Backend
func New(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretProvider, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		return NewLocalProvider(cfg.LocalPath, logger), nil
	case BackendAWS:
		p, err := NewAWSSecretsManager(ctx, cfg.AWS, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendVault:
		p, err := NewVaultProvider(ctx, cfg.Vault, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported secrets backend %q", cfg.Backend)
	}
}

// Resolve returns the secret at path, or fallback when path is empty
func Resolve(ctx context.Context, provider ports.SecretProvider, path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	secret, err := provider.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}
	return secret.Value, nil
}
