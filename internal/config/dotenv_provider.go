package config

import (
	"context"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// DotenvProvider reads secrets from a .env file without touching the process
// environment. The file is parsed once, on first use.
type DotenvProvider struct {
	path   string
	once   sync.Once
	values map[string]string
	err    error
}

// NewDotenvProvider creates a provider backed by the given .env file
func NewDotenvProvider(path string) *DotenvProvider {
	return &DotenvProvider{path: path}
}

func (d *DotenvProvider) load() {
	d.once.Do(func() {
		d.values, d.err = godotenv.Read(d.path)
	})
}

// GetSecret returns the value for key, or "" when the file lacks it
func (d *DotenvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	d.load()
	if d.err != nil {
		return "", d.err
	}
	return d.values[key], nil
}

// Name returns the provider name
func (d *DotenvProvider) Name() string {
	return "dotenv"
}

// IsAvailable reports whether the .env file exists
func (d *DotenvProvider) IsAvailable(ctx context.Context) bool {
	if d.path == "" {
		return false
	}
	info, err := os.Stat(d.path)
	return err == nil && !info.IsDir()
}
