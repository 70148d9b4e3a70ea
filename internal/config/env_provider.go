package config

import (
	"context"
	"os"
)

// EnvPrefix lets deployments namespace variables, e.g. TWINQUERY_NEO4J_URI
const EnvPrefix = "TWINQUERY_"

// EnvProvider retrieves secrets from environment variables, preferring the
// prefixed name over the bare one
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable provider
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{prefix: EnvPrefix}
}

// GetSecret retrieves a secret from environment variables
func (e *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if e.prefix != "" {
		if v, ok := os.LookupEnv(e.prefix + key); ok {
			return v, nil
		}
	}
	return os.Getenv(key), nil
}

// Name returns the provider name
func (e *EnvProvider) Name() string {
	return "env"
}

// IsAvailable always returns true as env vars are always available
func (e *EnvProvider) IsAvailable(ctx context.Context) bool {
	return true
}
