package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/observability"
)

func TestNewManager(t *testing.T) {
	tests := []struct {
		name           string
		cfg            Config
		expectedExpiry time.Duration
	}{
		{"defaults", Config{JWTSecret: "test-secret"}, 24 * time.Hour},
		{"custom expiry", Config{JWTSecret: "test-secret", JWTExpiry: 2 * time.Hour}, 2 * time.Hour},
		{"generated secret", Config{}, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := NewTestManager(t, tt.cfg)
			assert.NotEmpty(t, m.Config().JWTSecret)
			assert.Equal(t, tt.expectedExpiry, m.Config().JWTExpiry)

			admin, err := m.GetUser(AdminID)
			require.NoError(t, err)
			assert.Equal(t, AdminUsername, admin.Username)
			assert.True(t, admin.HasRole(RoleAdmin))
			assert.True(t, admin.Active)
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.AuthConfig{
		JWTSecret:      "s",
		JWTExpiry:      time.Hour,
		RateLimit:      5,
		AllowAnonymous: true,
		AdminPassword:  "pw",
	})
	assert.Equal(t, Config{JWTSecret: "s", JWTExpiry: time.Hour, RateLimit: 5, AllowAnonymous: true, AdminPassword: "pw"}, cfg)
}

func TestAuthenticate(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	_, err := m.CreateUser("alice", "alice@example.com", "correct-horse", nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"admin with configured password", AdminUsername, TestAdminPassword, false},
		{"admin with wrong password", AdminUsername, "nope", true},
		{"user with password", "alice", "correct-horse", false},
		{"user with wrong password", "alice", "wrong-horse", true},
		{"unknown user", "mallory", "whatever", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := m.Authenticate(tt.username, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeInvalidCredentials))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.Username)
		})
	}
}

func TestAuthenticate_AdminWithoutPassword(t *testing.T) {
	m, err := NewManager(Config{JWTSecret: "test-secret"}, nil, observability.NewNopLogger())
	require.NoError(t, err)

	for _, pw := range []string{"", "anything"} {
		_, err := m.Authenticate(AdminUsername, pw)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidCredentials))
	}
}

func TestCreateUser(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})

	tests := []struct {
		name     string
		username string
		password string
		roles    []string
		wantCode errors.ErrorCode
		wantRole string
	}{
		{name: "default role", username: "bob", password: "password123", wantRole: RoleUser},
		{name: "explicit roles", username: "carol", password: "password123", roles: []string{RoleAdmin}, wantRole: RoleAdmin},
		{name: "duplicate", username: "bob", password: "password123", wantCode: errors.ErrCodeAlreadyExists},
		{name: "blank username", username: "  ", password: "password123", wantCode: errors.ErrCodeInvalidInput},
		{name: "short password", username: "dave", password: "short", wantCode: errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := m.CreateUser(tt.username, tt.username+"@example.com", tt.password, tt.roles)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, user.ID)
			assert.NotEqual(t, tt.password, user.PasswordHash)
			assert.True(t, user.HasRole(tt.wantRole))
		})
	}
}

func TestGetUser_NotFound(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	_, err := m.GetUser("missing")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestListUsers(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	_, err := m.CreateUser("zed", "z@example.com", "password123", nil)
	require.NoError(t, err)
	_, err = m.CreateUser("bea", "b@example.com", "password123", nil)
	require.NoError(t, err)

	users := m.ListUsers()
	require.Len(t, users, 3)
	assert.Equal(t, []string{"admin", "bea", "zed"}, []string{users[0].Username, users[1].Username, users[2].Username})
}

func TestAPIKeys(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	user, err := m.CreateUser("alice", "alice@example.com", "password123", nil)
	require.NoError(t, err)

	key, err := m.CreateAPIKey(user.ID, "ci", time.Hour)
	require.NoError(t, err)
	assert.True(t, len(key.Key) > len(apiKeyPrefix))
	assert.Equal(t, apiKeyPrefix, key.Key[:len(apiKeyPrefix)])

	got, err := m.ValidateAPIKey(key.Key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	listed := m.ListAPIKeys(user.ID)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Key)
	assert.False(t, listed[0].LastUsedAt.IsZero())

	_, err = m.ValidateAPIKey("tq_bogus")
	assert.True(t, errors.Is(err, errors.ErrCodeNotAuthenticated))

	assert.True(t, errors.Is(m.RevokeAPIKey(AdminID, key.ID), errors.ErrCodeNotFound), "only the owner may revoke")
	require.NoError(t, m.RevokeAPIKey(user.ID, key.ID))

	_, err = m.ValidateAPIKey(key.Key)
	assert.True(t, errors.Is(err, errors.ErrCodeNotAuthenticated))
}

func TestAPIKeys_Validation(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})

	_, err := m.CreateAPIKey(AdminID, " ", time.Hour)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = m.CreateAPIKey("missing", "ci", time.Hour)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestCleanupExpired(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})

	expired, err := m.CreateAPIKey(AdminID, "old", -time.Minute)
	require.NoError(t, err)
	_, err = m.CreateAPIKey(AdminID, "fresh", time.Hour)
	require.NoError(t, err)

	_, err = m.ValidateAPIKey(expired.Key)
	assert.Error(t, err)

	assert.Equal(t, 1, m.CleanupExpired())
	assert.Len(t, m.ListAPIKeys(AdminID), 1)
}

func TestJWTToken(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	admin, err := m.GetUser(AdminID)
	require.NoError(t, err)

	token, expiresAt, err := m.CreateJWTToken(admin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := m.ValidateJWTToken(token)
	require.NoError(t, err)
	assert.Equal(t, AdminID, claims.UserID)
	assert.Equal(t, "twin-query", claims.Issuer)
	assert.Contains(t, claims.Roles, RoleAdmin)
}

func TestValidateJWTToken_Rejects(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})
	other, _ := NewTestManager(t, Config{JWTSecret: "other-secret"})

	admin, err := other.GetUser(AdminID)
	require.NoError(t, err)
	foreign, _, err := other.CreateJWTToken(admin)
	require.NoError(t, err)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: AdminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongIssuerToken, err := wrongIssuer.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	unknownUser := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "ghost",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "twin-query",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unknownUserToken, err := unknownUser.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: AdminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "twin-query",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"wrong issuer": wrongIssuerToken,
		"unknown user": unknownUserToken,
		"expired":      expiredToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateJWTToken(token)
			assert.Error(t, err)
		})
	}
}

func TestSessions(t *testing.T) {
	m, mr := NewTestManager(t, Config{JWTSecret: "test-secret"})
	ctx := context.Background()
	admin, err := m.GetUser(AdminID)
	require.NoError(t, err)

	sess, err := m.CreateSession(ctx, admin)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, mr.Exists(sessionPrefix+sess.ID))
	assert.Equal(t, DefaultSessionExpiry, mr.TTL(sessionPrefix+sess.ID))

	mr.FastForward(time.Hour)
	user, err := m.ValidateSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, AdminID, user.ID)
	assert.Equal(t, DefaultSessionExpiry, mr.TTL(sessionPrefix+sess.ID), "validation slides the expiry")

	require.NoError(t, m.RevokeSession(ctx, sess.ID))
	_, err = m.ValidateSession(ctx, sess.ID)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestSessions_Expire(t *testing.T) {
	m, mr := NewTestManager(t, Config{JWTSecret: "test-secret"})
	ctx := context.Background()
	admin, _ := m.GetUser(AdminID)

	sess, err := m.CreateSession(ctx, admin)
	require.NoError(t, err)

	mr.FastForward(DefaultSessionExpiry + time.Second)
	_, err = m.ValidateSession(ctx, sess.ID)
	assert.Error(t, err)
}

func TestSessions_Disabled(t *testing.T) {
	m, err := NewManager(Config{JWTSecret: "test-secret"}, nil, observability.NewNopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, m.SessionsEnabled())
	_, err = m.CreateSession(ctx, &User{ID: AdminID})
	assert.Error(t, err)
	_, err = m.ValidateSession(ctx, "anything")
	assert.True(t, errors.Is(err, errors.ErrCodeNotAuthenticated))
	assert.NoError(t, m.RevokeSession(ctx, "anything"))
}

func TestConcurrentAccess(t *testing.T) {
	m, _ := NewTestManager(t, Config{JWTSecret: "test-secret"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := m.CreateAPIKey(AdminID, "k", time.Hour)
			if assert.NoError(t, err) {
				_, err = m.ValidateAPIKey(key.Key)
				assert.NoError(t, err)
			}
			m.ListUsers()
		}()
	}
	wg.Wait()

	assert.Len(t, m.ListAPIKeys(AdminID), 10)
}
