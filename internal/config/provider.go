package config

import (
	"context"
	stderrors "errors"
	"fmt"
)

// SecretProvider is one source of configuration values, keyed by the
// environment variable name (NEO4J_URI, INFLUX_TOKEN, ...)
type SecretProvider interface {
	GetSecret(ctx context.Context, key string) (string, error)

	// Name identifies the provider in logs and in `twinq config`
	Name() string

	IsAvailable(ctx context.Context) bool
}

// ChainProvider consults providers in order. The first non-empty value wins.
type ChainProvider struct {
	providers []SecretProvider
}

// NewChainProvider creates a chain over providers, highest precedence first
func NewChainProvider(providers ...SecretProvider) *ChainProvider {
	return &ChainProvider{
		providers: providers,
	}
}

// Lookup returns the first non-empty value for key along with the name of
// the provider that supplied it. Provider errors are only reported when no
// provider had a value.
func (c *ChainProvider) Lookup(ctx context.Context, key string) (value, source string, err error) {
	var errs []error
	for _, provider := range c.providers {
		if !provider.IsAvailable(ctx) {
			continue
		}

		v, err := provider.GetSecret(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			continue
		}
		if v != "" {
			return v, provider.Name(), nil
		}
	}

	if len(errs) > 0 {
		return "", "", fmt.Errorf("no provider supplied %s: %w", key, stderrors.Join(errs...))
	}
	return "", "", fmt.Errorf("no available provider found for key: %s", key)
}

// GetSecret implements SecretProvider
func (c *ChainProvider) GetSecret(ctx context.Context, key string) (string, error) {
	value, _, err := c.Lookup(ctx, key)
	return value, err
}

// Name returns the chain provider name
func (c *ChainProvider) Name() string {
	return "chain"
}

// Available lists the names of providers that are currently usable, in
// lookup order
func (c *ChainProvider) Available(ctx context.Context) []string {
	var names []string
	for _, provider := range c.providers {
		if provider.IsAvailable(ctx) {
			names = append(names, provider.Name())
		}
	}
	return names
}

// IsAvailable reports whether any provider in the chain is usable
func (c *ChainProvider) IsAvailable(ctx context.Context) bool {
	return len(c.Available(ctx)) > 0
}
