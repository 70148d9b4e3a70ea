// Package auth authenticates API callers with JWTs, API keys and Redis
// login sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/observability"
)

const (
	// AdminID is fixed so tokens stay valid across replicas
	AdminID       = "00000000-0000-0000-0000-000000000001"
	AdminUsername = "admin"

	RoleAdmin = "admin"
	RoleUser  = "user"

	issuer       = "twin-query"
	apiKeyPrefix = "tq_"
)

// User is an account that may ask questions
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasRole reports whether the user holds any of roles
func (u *User) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// APIKey is a long-lived credential. Key holds the plaintext only in the
// response that created it.
type APIKey struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Key        string    `json:"key,omitempty"`
	HashedKey  string    `json:"-"`
	UserID     string    `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	Active     bool      `json:"active"`
}

// Claims are the JWT claims issued at login
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Config holds authentication settings
type Config struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	RateLimit      int
	AllowAnonymous bool
	AdminPassword  string
}

// ConfigFrom converts the application auth section
func ConfigFrom(cfg config.AuthConfig) Config {
	return Config{
		JWTSecret:      cfg.JWTSecret,
		JWTExpiry:      cfg.JWTExpiry,
		RateLimit:      cfg.RateLimit,
		AllowAnonymous: cfg.AllowAnonymous,
		AdminPassword:  cfg.AdminPassword,
	}
}

// Manager owns users, API keys and sessions
type Manager struct {
	config         Config
	users          map[string]*User
	userByUsername map[string]*User
	apiKeys        map[string]*APIKey
	sessions       *SessionStore
	limiter        *RateLimiter
	logger         *observability.Logger
	mu             sync.RWMutex
}

// NewManager creates a manager with the built-in admin account. sessions
// may be nil, in which case login issues only a JWT.
func NewManager(cfg Config, sessions *SessionStore, logger *observability.Logger) (*Manager, error) {
	if cfg.JWTExpiry <= 0 {
		cfg.JWTExpiry = 24 * time.Hour
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateRandomString(32)
	}
	if logger == nil {
		logger = observability.NewLogger("auth")
	}

	m := &Manager{
		config:         cfg,
		users:          make(map[string]*User),
		userByUsername: make(map[string]*User),
		apiKeys:        make(map[string]*APIKey),
		sessions:       sessions,
		limiter:        NewRateLimiter(),
		logger:         logger,
	}

	admin := &User{
		ID:        AdminID,
		Username:  AdminUsername,
		Email:     "admin@localhost",
		Roles:     []string{RoleAdmin, RoleUser},
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		admin.PasswordHash = string(hash)
	} else {
		logger.Warn(context.Background(), "No admin password configured, admin login is disabled", nil)
	}
	m.users[admin.ID] = admin
	m.userByUsername[admin.Username] = admin

	return m, nil
}

// Config returns the effective settings
func (m *Manager) Config() Config {
	return m.config
}

// Limiter returns the request rate limiter
func (m *Manager) Limiter() *RateLimiter {
	return m.limiter
}

// CreateUser registers an account with a password
func (m *Manager) CreateUser(username, email, password string, roles []string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.NewInvalidInputError("username", "must not be empty")
	}
	if len(password) < 8 {
		return nil, errors.NewInvalidInputError("password", "must be at least 8 characters")
	}
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.userByUsername[username]; exists {
		return nil, errors.NewAlreadyExistsError("User", username)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        roles,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[user.ID] = user
	m.userByUsername[username] = user

	return user, nil
}

// Authenticate checks a username and password. Accounts without a password
// hash cannot log in.
func (m *Manager) Authenticate(username, password string) (*User, error) {
	m.mu.RLock()
	user, exists := m.userByUsername[username]
	m.mu.RUnlock()

	if !exists || !user.Active || user.PasswordHash == "" {
		return nil, errors.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.NewInvalidCredentialsError()
	}
	return user, nil
}

// GetUser looks up a user by ID
func (m *Manager) GetUser(userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, errors.NewNotFoundError("User", userID)
	}
	return user, nil
}

// ListUsers returns all users ordered by username
func (m *Manager) ListUsers() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

func (m *Manager) activeUser(userID string) (*User, error) {
	m.mu.RLock()
	user, exists := m.users[userID]
	m.mu.RUnlock()

	if !exists || !user.Active {
		return nil, errors.NewNotAuthenticatedError()
	}
	return user, nil
}

// CreateAPIKey issues a key for userID that expires after expiresIn
func (m *Manager) CreateAPIKey(userID, name string, expiresIn time.Duration) (*APIKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.NewInvalidInputError("name", "must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[userID]; !exists {
		return nil, errors.NewNotFoundError("User", userID)
	}

	key := apiKeyPrefix + generateRandomString(32)
	now := time.Now().UTC()
	apiKey := &APIKey{
		ID:        uuid.New().String(),
		Name:      name,
		Key:       key,
		HashedKey: hashAPIKey(key),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(expiresIn),
		Active:    true,
	}
	m.apiKeys[apiKey.HashedKey] = apiKey

	created := *apiKey
	return &created, nil
}

// ValidateAPIKey resolves a plaintext key to its owner
func (m *Manager) ValidateAPIKey(key string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apiKey, exists := m.apiKeys[hashAPIKey(key)]
	if !exists || !apiKey.Active || time.Now().After(apiKey.ExpiresAt) {
		return nil, errors.NewNotAuthenticatedError()
	}

	user, exists := m.users[apiKey.UserID]
	if !exists || !user.Active {
		return nil, errors.NewNotAuthenticatedError()
	}

	apiKey.LastUsedAt = time.Now().UTC()
	return user, nil
}

// RevokeAPIKey deactivates a key owned by userID
func (m *Manager) RevokeAPIKey(userID, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, apiKey := range m.apiKeys {
		if apiKey.ID == keyID && apiKey.UserID == userID {
			apiKey.Active = false
			return nil
		}
	}
	return errors.NewNotFoundError("API key", keyID)
}

// ListAPIKeys returns the user's keys without plaintext, newest first
func (m *Manager) ListAPIKeys(userID string) []*APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := []*APIKey{}
	for _, apiKey := range m.apiKeys {
		if apiKey.UserID == userID {
			keyCopy := *apiKey
			keyCopy.Key = ""
			keys = append(keys, &keyCopy)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys
}

// CleanupExpired drops expired API keys. Sessions expire in Redis.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for hash, apiKey := range m.apiKeys {
		if now.After(apiKey.ExpiresAt) {
			delete(m.apiKeys, hash)
			removed++
		}
	}
	return removed
}

// CreateJWTToken signs a token for user and returns it with its expiry
func (m *Manager) CreateJWTToken(user *User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.JWTExpiry)

	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, errors.NewTokenCreationError(err)
	}
	return signed, expiresAt, nil
}

// ValidateJWTToken verifies a token and that its user is still active
func (m *Manager) ValidateJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.JWTSecret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if _, err := m.activeUser(claims.UserID); err != nil {
		return nil, err
	}
	return claims, nil
}

// CreateSession opens a login session for user
func (m *Manager) CreateSession(ctx context.Context, user *User) (*Session, error) {
	if m.sessions == nil {
		return nil, fmt.Errorf("sessions are not enabled")
	}
	return m.sessions.Create(ctx, user)
}

// ValidateSession resolves a session ID to its active user
func (m *Manager) ValidateSession(ctx context.Context, sessionID string) (*User, error) {
	if m.sessions == nil {
		return nil, errors.NewNotAuthenticatedError()
	}

	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.activeUser(sess.UserID)
}

// RevokeSession ends a login session
func (m *Manager) RevokeSession(ctx context.Context, sessionID string) error {
	if m.sessions == nil {
		return nil
	}
	return m.sessions.Delete(ctx, sessionID)
}

// SessionsEnabled reports whether login sessions are backed by Redis
func (m *Manager) SessionsEnabled() bool {
	return m.sessions != nil
}

func generateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
