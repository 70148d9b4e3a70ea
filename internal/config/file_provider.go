package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultSecretsDir is where deployments mount one file per secret
const DefaultSecretsDir = "/var/secrets"

// FileProvider reads values from a directory of mounted files. A key may be
// stored under its own name (INFLUX_TOKEN) or in lower kebab case
// (influx-token); the exact name is tried first.
type FileProvider struct {
	dir  string
	fsys fs.FS
}

// NewFileProvider reads secrets below dir
func NewFileProvider(dir string) *FileProvider {
	p := &FileProvider{dir: dir}
	if dir != "" {
		p.fsys = os.DirFS(dir)
	}
	return p
}

func (f *FileProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if f.fsys == nil {
		return "", fmt.Errorf("secrets path not configured")
	}

	for _, name := range []string{key, secretFileName(key)} {
		data, err := fs.ReadFile(f.fsys, name)
		switch {
		case err == nil:
			return strings.TrimSpace(string(data)), nil
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", fmt.Errorf("read %s in %s: %w", name, f.dir, err)
		}
	}
	return "", nil
}

func (f *FileProvider) Name() string {
	return "file"
}

// IsAvailable reports whether the directory is mounted
func (f *FileProvider) IsAvailable(ctx context.Context) bool {
	if f.fsys == nil {
		return false
	}
	info, err := fs.Stat(f.fsys, ".")
	return err == nil && info.IsDir()
}

// secretFileName maps NEO4J_PASSWORD to neo4j-password
func secretFileName(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}
