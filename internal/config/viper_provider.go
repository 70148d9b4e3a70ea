package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// ViperProvider reads settings from a structured config file (YAML, TOML or
// JSON). Keys are looked up flat (neo4j_uri) and then sectioned, splitting on
// the first underscore (neo4j.uri), so both of these work:
//
//	neo4j_uri: bolt://graph:7687
//
//	neo4j:
//	  uri: bolt://graph:7687
type ViperProvider struct {
	path string
	v    *viper.Viper
	once sync.Once
	err  error
}

// NewViperProvider creates a provider for the given config file
func NewViperProvider(path string) *ViperProvider {
	return &ViperProvider{path: path}
}

func (p *ViperProvider) load() {
	p.once.Do(func() {
		p.v = viper.New()
		p.v.SetConfigFile(p.path)
		if err := p.v.ReadInConfig(); err != nil {
			p.err = fmt.Errorf("failed to read config file %s: %w", p.path, err)
		}
	})
}

// GetSecret resolves key against the config file
func (p *ViperProvider) GetSecret(ctx context.Context, key string) (string, error) {
	p.load()
	if p.err != nil {
		return "", p.err
	}

	flat := strings.ToLower(key)
	if p.v.IsSet(flat) {
		return p.v.GetString(flat), nil
	}

	if section, rest, ok := strings.Cut(flat, "_"); ok {
		nested := section + "." + rest
		if p.v.IsSet(nested) {
			return p.v.GetString(nested), nil
		}
	}

	return "", nil
}

// Name returns the provider name
func (p *ViperProvider) Name() string {
	return "viper"
}

// IsAvailable reports whether the config file exists
func (p *ViperProvider) IsAvailable(ctx context.Context) bool {
	if p.path == "" {
		return false
	}
	info, err := os.Stat(p.path)
	return err == nil && !info.IsDir()
}
