package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// LocalProvider reads secrets from files under a base directory.
// Development only. Files hold either the raw value or {"value": "..."}.
type LocalProvider struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalProvider creates a filesystem secret provider
func NewLocalProvider(basePath string, logger *zap.Logger) *LocalProvider {
	return &LocalProvider{basePath: basePath, logger: logger}
}

// GetSecret reads the file at basePath/path
func (p *LocalProvider) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	filePath := filepath.Join(p.basePath, filepath.Clean("/"+path))

	p.logger.Debug("Reading secret from filesystem", zap.String("path", path))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("secret not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Value != "" {
		return &ports.Secret{Value: wrapped.Value, Version: "local"}, nil
	}

	return &ports.Secret{Value: strings.TrimRight(string(data), "\r\n"), Version: "local"}, nil
}
