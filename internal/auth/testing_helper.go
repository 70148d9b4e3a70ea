package auth

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/observability"
)

// TestAdminPassword is the admin password used by NewTestManager
const TestAdminPassword = "admin-password"

// NewTestManager creates a manager whose sessions live in an in-memory
// Redis that is shut down with the test.
func NewTestManager(t testing.TB, cfg Config) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if cfg.AdminPassword == "" {
		cfg.AdminPassword = TestAdminPassword
	}

	m, err := NewManager(cfg, NewSessionStore(client, 0), observability.NewNopLogger())
	require.NoError(t, err)
	return m, mr
}
