package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// VaultConfig contains configuration for HashiCorp Vault
type VaultConfig struct {
	Address string

	// "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string

	Namespace string

	// KV mount path, "secret" by default
	MountPath string

	// "v1" or "v2"
	KVVersion string

	CacheTTL      time.Duration
	TLSSkipVerify bool
}

// VaultProvider reads secrets from a Vault KV engine
type VaultProvider struct {
	client *vault.Client
	config VaultConfig
	logger *zap.Logger
	cache  *secretCache
}

// NewVaultProvider creates an authenticated Vault provider
func NewVaultProvider(ctx context.Context, cfg VaultConfig, logger *zap.Logger) (*VaultProvider, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.KVVersion == "" {
		cfg.KVVersion = "v2"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault provider initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)

	return &VaultProvider{
		client: client,
		config: cfg,
		logger: logger,
		cache:  newSecretCache(true, cfg.CacheTTL),
	}, nil
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "", "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret reads the "value" key of the secret at path, falling back to its only string field
func (v *VaultProvider) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := v.cache.get(path); cached != nil {
		return cached, nil
	}

	fullPath := fmt.Sprintf("%s/%s", v.config.MountPath, path)
	if v.config.KVVersion == "v2" {
		fullPath = fmt.Sprintf("%s/data/%s", v.config.MountPath, path)
	}

	start := time.Now()
	secret, err := v.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		v.logger.Error("Failed to retrieve secret from Vault", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("secret not found: %s", path)
	}

	data := secret.Data
	version := "1"
	if v.config.KVVersion == "v2" {
		inner, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid secret format from Vault")
		}
		data = inner
		if metadata, ok := secret.Data["metadata"].(map[string]interface{}); ok {
			if n, ok := metadata["version"].(json.Number); ok {
				version = n.String()
			}
		}
	}

	value, err := extractValue(data)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", path, err)
	}

	v.logger.Info("Secret retrieved",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
	)

	result := &ports.Secret{Value: value, Version: version}
	v.cache.set(path, result)
	return result, nil
}

func extractValue(data map[string]interface{}) (string, error) {
	if val, ok := data["value"].(string); ok && val != "" {
		return val, nil
	}
	var found []string
	for _, raw := range data {
		if s, ok := raw.(string); ok && s != "" {
			found = append(found, s)
		}
	}
	if len(found) != 1 {
		return "", fmt.Errorf("expected a \"value\" key or exactly one string field, found %d", len(found))
	}
	return found[0], nil
}
