package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// AWSConfig contains configuration for AWS Secrets Manager
type AWSConfig struct {
	Region string

	// Optional: AWS profile name (local development)
	Profile string

	// Optional: custom endpoint (LocalStack)
	Endpoint string

	CacheTTL time.Duration
}

// AWSSecretsManager reads secrets from AWS Secrets Manager
type AWSSecretsManager struct {
	client *secretsmanager.Client
	logger *zap.Logger
	cache  *secretCache
}

// NewAWSSecretsManager creates an AWS Secrets Manager provider using the default credential chain
func NewAWSSecretsManager(ctx context.Context, cfg AWSConfig, logger *zap.Logger) (*AWSSecretsManager, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOptions []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager provider initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return &AWSSecretsManager{
		client: secretsmanager.NewFromConfig(awsConfig, clientOptions...),
		logger: logger,
		cache:  newSecretCache(true, cfg.CacheTTL),
	}, nil
}

// GetSecret retrieves the current version of a secret by name or ARN
func (a *AWSSecretsManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		return cached, nil
	}

	start := time.Now()
	result, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		a.logger.Error("Failed to retrieve secret", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to get secret %s: %w", path, err)
	}

	a.logger.Info("Secret retrieved",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
	)

	secret := &ports.Secret{
		Value:   aws.ToString(result.SecretString),
		Version: aws.ToString(result.VersionId),
	}
	a.cache.set(path, secret)
	return secret, nil
}
