package ports

import "context"

// Secret is a value retrieved from a secret backend
type Secret struct {
	Value   string
	Version string
}

// SecretProvider resolves credentials at startup (database password, Redis password).
// Path format depends on the backend:
//   - local: file path relative to the configured directory
//   - aws:   secret name or ARN
//   - vault: path under the KV mount, e.g. "card-reconciliation/database"
type SecretProvider interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
